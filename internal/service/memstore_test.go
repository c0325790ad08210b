package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/veyra/fleet-collections/internal/address"
	"github.com/veyra/fleet-collections/internal/model"
)

// memStore is an in-memory implementation of the store interfaces used to
// exercise the services without postgres. The fake clock makes updated_at
// ordering deterministic.
type memStore struct {
	mu         sync.Mutex
	addresses  map[uuid.UUID]model.Address
	agreements map[uuid.UUID]*model.CollectionAgreement
	vehicles   map[uuid.UUID]*model.Vehicle
	history    map[uuid.UUID]*model.HistoryRecord

	clock time.Time

	failVehicleReads bool
}

func newMemStore() *memStore {
	return &memStore{
		addresses:  map[uuid.UUID]model.Address{},
		agreements: map[uuid.UUID]*model.CollectionAgreement{},
		vehicles:   map[uuid.UUID]*model.Vehicle{},
		history:    map[uuid.UUID]*model.HistoryRecord{},
		clock:      time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (m *memStore) tick() time.Time {
	m.clock = m.clock.Add(time.Second)
	return m.clock
}

func (m *memStore) addAddress(clientID uuid.UUID, street, number, city string) model.Address {
	m.mu.Lock()
	defer m.mu.Unlock()
	addr := model.Address{
		ID:        uuid.New(),
		ClientID:  clientID,
		Street:    street,
		Number:    number,
		City:      city,
		CreatedAt: m.tick(),
	}
	m.addresses[addr.ID] = addr
	return addr
}

func (m *memStore) addVehicle(clientID uuid.UUID, addr model.Address, plate string, status model.VehicleStatus) *model.Vehicle {
	m.mu.Lock()
	defer m.mu.Unlock()
	label := address.Label(addr.Street, addr.Number, addr.City)
	key := address.Key(label)
	vehicle := &model.Vehicle{
		ID:              uuid.New(),
		ClientID:        clientID,
		Plate:           plate,
		Status:          status,
		PickupAddressID: &addr.ID,
		PickupLabel:     &label,
		PickupKey:       &key,
		CreatedAt:       m.tick(),
		UpdatedAt:       m.clock,
	}
	m.vehicles[vehicle.ID] = vehicle
	return vehicle
}

// AddressStore

func (m *memStore) GetByID(_ context.Context, id uuid.UUID) (*model.Address, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	addr, ok := m.addresses[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &addr, nil
}

func (m *memStore) ListByClient(_ context.Context, clientID uuid.UUID) ([]model.Address, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var addrs []model.Address
	for _, addr := range m.addresses {
		if addr.ClientID == clientID {
			addrs = append(addrs, addr)
		}
	}
	sort.SliceStable(addrs, func(i, j int) bool {
		return addrs[i].CreatedAt.Before(addrs[j].CreatedAt)
	})
	return addrs, nil
}

func (m *memStore) Create(_ context.Context, addr model.Address) (*model.Address, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	addr.ID = uuid.New()
	addr.CreatedAt = m.tick()
	m.addresses[addr.ID] = addr
	return &addr, nil
}

// AgreementStore

func (m *memStore) agreementStore() *memAgreements { return &memAgreements{m} }
func (m *memStore) vehicleStore() *memVehicles     { return &memVehicles{m} }
func (m *memStore) historyStore() *memHistory      { return &memHistory{m} }

type memAgreements struct{ *memStore }

func (m *memAgreements) GetByID(_ context.Context, id uuid.UUID) (*model.CollectionAgreement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.agreements[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *row
	return &copied, nil
}

func (m *memAgreements) GetByKey(_ context.Context, clientID uuid.UUID, addressKey string, date *time.Time) (*model.CollectionAgreement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row := m.findByKey(clientID, addressKey, date)
	if row == nil {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *row
	return &copied, nil
}

func (m *memAgreements) findByKey(clientID uuid.UUID, addressKey string, date *time.Time) *model.CollectionAgreement {
	for _, row := range m.agreements {
		if row.ClientID != clientID || row.AddressKey != addressKey {
			continue
		}
		if sameDate(row.ScheduledDate, date) {
			return row
		}
	}
	return nil
}

func (m *memAgreements) UpsertFee(_ context.Context, clientID uuid.UUID, addressLabel, addressKey string, fee float64, date *time.Time) (*model.CollectionAgreement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if row := m.findByKey(clientID, addressKey, date); row != nil {
		row.Fee = fee
		row.AddressLabel = addressLabel
		row.UpdatedAt = m.tick()
		copied := *row
		return &copied, nil
	}
	row := &model.CollectionAgreement{
		ID:            uuid.New(),
		ClientID:      clientID,
		AddressLabel:  addressLabel,
		AddressKey:    addressKey,
		Fee:           fee,
		ScheduledDate: date,
		Status:        model.AgreementStatusRequested,
		CreatedAt:     m.tick(),
		UpdatedAt:     m.clock,
	}
	m.agreements[row.ID] = row
	copied := *row
	return &copied, nil
}

func (m *memAgreements) Upsert(_ context.Context, agreement model.CollectionAgreement) (*model.CollectionAgreement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if row := m.findByKey(agreement.ClientID, agreement.AddressKey, agreement.ScheduledDate); row != nil {
		if row.Status == model.AgreementStatusApproved {
			return nil, gorm.ErrRecordNotFound
		}
		row.Fee = agreement.Fee
		row.AddressLabel = agreement.AddressLabel
		row.Status = agreement.Status
		row.ProposedBy = agreement.ProposedBy
		row.RejectionReason = nil
		row.UpdatedAt = m.tick()
		copied := *row
		return &copied, nil
	}
	row := &model.CollectionAgreement{
		ID:            uuid.New(),
		ClientID:      agreement.ClientID,
		AddressLabel:  agreement.AddressLabel,
		AddressKey:    agreement.AddressKey,
		Fee:           agreement.Fee,
		ScheduledDate: agreement.ScheduledDate,
		Status:        agreement.Status,
		ProposedBy:    agreement.ProposedBy,
		CreatedAt:     m.tick(),
		UpdatedAt:     m.clock,
	}
	m.agreements[row.ID] = row
	copied := *row
	return &copied, nil
}

func (m *memAgreements) UpdateStatus(_ context.Context, id uuid.UUID, status model.AgreementStatus, proposedBy *model.ActorRole, rejectionReason *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.agreements[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	row.Status = status
	row.ProposedBy = proposedBy
	row.RejectionReason = rejectionReason
	row.UpdatedAt = m.tick()
	return nil
}

func (m *memAgreements) ListByClient(_ context.Context, clientID uuid.UUID) ([]model.CollectionAgreement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var rows []model.CollectionAgreement
	for _, row := range m.agreements {
		if row.ClientID == clientID {
			rows = append(rows, *row)
		}
	}
	sort.SliceStable(rows, func(i, j int) bool {
		di, dj := rows[i].ScheduledDate, rows[j].ScheduledDate
		switch {
		case di == nil && dj != nil:
			return true
		case di != nil && dj == nil:
			return false
		case di != nil && dj != nil && !di.Equal(*dj):
			return di.Before(*dj)
		default:
			return rows[i].UpdatedAt.Before(rows[j].UpdatedAt)
		}
	})
	return rows, nil
}

func (m *memAgreements) ListByAddress(_ context.Context, clientID uuid.UUID, addressKey string) ([]model.CollectionAgreement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var rows []model.CollectionAgreement
	for _, row := range m.agreements {
		if row.ClientID == clientID && row.AddressKey == addressKey {
			rows = append(rows, *row)
		}
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].UpdatedAt.After(rows[j].UpdatedAt)
	})
	return rows, nil
}

func (m *memAgreements) ListApprovedByClient(ctx context.Context, clientID uuid.UUID) ([]model.CollectionAgreement, error) {
	rows, err := m.ListByClient(ctx, clientID)
	if err != nil {
		return nil, err
	}
	approved := rows[:0]
	for _, row := range rows {
		if row.Status == model.AgreementStatusApproved {
			approved = append(approved, row)
		}
	}
	return approved, nil
}

// VehicleStore

type memVehicles struct{ *memStore }

var errStoreDown = errors.New("store unavailable")

func (m *memVehicles) GetByID(_ context.Context, id uuid.UUID) (*model.Vehicle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	vehicle, ok := m.vehicles[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *vehicle
	return &copied, nil
}

func (m *memVehicles) ListByClient(_ context.Context, clientID uuid.UUID) ([]model.Vehicle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failVehicleReads {
		return nil, errStoreDown
	}
	var vehicles []model.Vehicle
	for _, vehicle := range m.vehicles {
		if vehicle.ClientID == clientID {
			vehicles = append(vehicles, *vehicle)
		}
	}
	sort.SliceStable(vehicles, func(i, j int) bool {
		return vehicles[i].CreatedAt.Before(vehicles[j].CreatedAt)
	})
	return vehicles, nil
}

func (m *memVehicles) ListByClientAndKey(ctx context.Context, clientID uuid.UUID, pickupKey string) ([]model.Vehicle, error) {
	all, err := m.ListByClient(ctx, clientID)
	if err != nil {
		return nil, err
	}
	matched := all[:0]
	for _, vehicle := range all {
		if vehicle.PickupKey != nil && *vehicle.PickupKey == pickupKey {
			matched = append(matched, vehicle)
		}
	}
	return matched, nil
}

func (m *memVehicles) CountEligible(_ context.Context, clientID uuid.UUID, pickupKey string, allowed []model.VehicleStatus) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var count int64
	for _, vehicle := range m.vehicles {
		if m.matches(vehicle, clientID, pickupKey, allowed) {
			count++
		}
	}
	return count, nil
}

func (m *memVehicles) UpdateStatusBatch(_ context.Context, clientID uuid.UUID, pickupKey string, allowed []model.VehicleStatus, to model.VehicleStatus, estimatedDate *time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var moved int64
	for _, vehicle := range m.vehicles {
		if !m.matches(vehicle, clientID, pickupKey, allowed) {
			continue
		}
		vehicle.Status = to
		if estimatedDate != nil {
			d := *estimatedDate
			vehicle.EstimatedDate = &d
		}
		vehicle.UpdatedAt = m.tick()
		moved++
	}
	return moved, nil
}

func (m *memVehicles) LinkAgreementBatch(_ context.Context, clientID uuid.UUID, pickupKey string, allowed []model.VehicleStatus, agreementID uuid.UUID, scheduledDate *time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var linked int64
	for _, vehicle := range m.vehicles {
		if !m.matches(vehicle, clientID, pickupKey, allowed) {
			continue
		}
		vehicle.Status = model.VehicleStatusAwaitingCollection
		id := agreementID
		vehicle.AgreementID = &id
		if scheduledDate != nil {
			d := *scheduledDate
			vehicle.EstimatedDate = &d
		}
		vehicle.UpdatedAt = m.tick()
		linked++
	}
	return linked, nil
}

func (m *memVehicles) CountByAgreement(_ context.Context, agreementID uuid.UUID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var count int64
	for _, vehicle := range m.vehicles {
		if vehicle.AgreementID != nil && *vehicle.AgreementID == agreementID {
			count++
		}
	}
	return count, nil
}

func (m *memVehicles) matches(vehicle *model.Vehicle, clientID uuid.UUID, pickupKey string, allowed []model.VehicleStatus) bool {
	if vehicle.ClientID != clientID {
		return false
	}
	if vehicle.PickupKey == nil || *vehicle.PickupKey != pickupKey {
		return false
	}
	return model.StatusIn(vehicle.Status, allowed)
}

// HistoryStore

type memHistory struct{ *memStore }

func (m *memHistory) InsertIfAbsent(_ context.Context, record model.HistoryRecord) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.history {
		if existing.AgreementID == record.AgreementID {
			return false, nil
		}
	}
	record.ID = uuid.New()
	record.CreatedAt = m.tick()
	m.history[record.ID] = &record
	return true, nil
}

func (m *memHistory) MarkPaid(_ context.Context, id uuid.UUID, paidAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.history[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	record.Paid = true
	record.PaidAt = &paidAt
	return nil
}

func (m *memHistory) ListByClient(_ context.Context, clientID uuid.UUID) ([]model.HistoryRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var records []model.HistoryRecord
	for _, record := range m.history {
		if record.ClientID == clientID {
			records = append(records, *record)
		}
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].CreatedAt.Before(records[j].CreatedAt)
	})
	return records, nil
}

func sameDate(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return dateOnly(*a).Equal(dateOnly(*b))
}
