package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/veyra/fleet-collections/internal/address"
	"github.com/veyra/fleet-collections/internal/model"
)

// NegotiationService owns the fee and date negotiation between client and
// operator. Every operation keeps the ledger row and the vehicles at the
// address in lockstep: the row is written first, then the matching vehicles
// move in one bulk write, so a vehicle is never in an awaiting state without
// its row.
type NegotiationService struct {
	agreements AgreementStore
	vehicles   VehicleStore
	addresses  AddressStore
	log        zerolog.Logger
}

func NewNegotiationService(
	agreements AgreementStore,
	vehicles VehicleStore,
	addresses AddressStore,
	log zerolog.Logger,
) *NegotiationService {
	return &NegotiationService{
		agreements: agreements,
		vehicles:   vehicles,
		addresses:  addresses,
		log:        log,
	}
}

type FeeItem struct {
	AddressID uuid.UUID
	Fee       float64
	Date      *time.Time
}

type FeeItemResult struct {
	AddressID     uuid.UUID
	AgreementID   uuid.UUID
	VehiclesMoved int64
	Err           error
}

type SetFeesResult struct {
	Items        []FeeItemResult
	UpdatedCount int64
}

// SetFees prices one or more addresses for the client. The batch is
// best-effort: a failing item is recorded in the result and logged, and the
// remaining items still run.
func (s *NegotiationService) SetFees(ctx context.Context, clientID uuid.UUID, items []FeeItem) (*SetFeesResult, error) {
	if clientID == uuid.Nil {
		return nil, fmt.Errorf("%w: client_id is required", ErrInvalidInput)
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: at least one fee item is required", ErrInvalidInput)
	}

	result := &SetFeesResult{Items: make([]FeeItemResult, 0, len(items))}
	for _, item := range items {
		itemResult := s.setFee(ctx, clientID, item)
		if itemResult.Err != nil {
			s.log.Warn().
				Err(itemResult.Err).
				Str("client_id", clientID.String()).
				Str("address_id", item.AddressID.String()).
				Msg("fee item skipped")
		}
		result.UpdatedCount += itemResult.VehiclesMoved
		result.Items = append(result.Items, itemResult)
	}
	return result, nil
}

func (s *NegotiationService) setFee(ctx context.Context, clientID uuid.UUID, item FeeItem) FeeItemResult {
	itemResult := FeeItemResult{AddressID: item.AddressID}

	if item.AddressID == uuid.Nil {
		itemResult.Err = fmt.Errorf("%w: address_id is required", ErrInvalidInput)
		return itemResult
	}
	if item.Fee <= 0 {
		itemResult.Err = fmt.Errorf("%w: fee must be positive", ErrInvalidInput)
		return itemResult
	}

	label, key, err := s.resolveAddress(ctx, clientID, item.AddressID)
	if err != nil {
		itemResult.Err = err
		return itemResult
	}

	date := normalizeDate(item.Date)
	row, err := s.agreements.UpsertFee(ctx, clientID, label, key, item.Fee, date)
	if err != nil {
		itemResult.Err = fmt.Errorf("upsert agreement: %w", err)
		return itemResult
	}
	itemResult.AgreementID = row.ID

	moved, err := s.vehicles.UpdateStatusBatch(
		ctx, clientID, key,
		model.FeeEligibleStatuses,
		model.VehicleStatusFeeProposed,
		date,
	)
	if err != nil {
		itemResult.Err = fmt.Errorf("move vehicles to fee proposed: %w", err)
		return itemResult
	}
	itemResult.VehiclesMoved = moved
	return itemResult
}

// ProposeDate creates or retargets the ledger row for the new date and marks
// every reschedulable vehicle at the address as change requested. An address
// with no vehicle in an allowed prior status is a conflict: there is nothing
// legal to reschedule.
func (s *NegotiationService) ProposeDate(
	ctx context.Context,
	actor model.ActorRole,
	clientID uuid.UUID,
	addressID uuid.UUID,
	newDate time.Time,
) (*model.CollectionAgreement, error) {
	if actor != model.ActorRoleOperator && actor != model.ActorRoleClient {
		return nil, fmt.Errorf("%w: unknown actor role %q", ErrInvalidInput, actor)
	}
	if clientID == uuid.Nil || addressID == uuid.Nil {
		return nil, fmt.Errorf("%w: client_id and address_id are required", ErrInvalidInput)
	}
	if newDate.IsZero() {
		return nil, fmt.Errorf("%w: date is required", ErrInvalidInput)
	}

	label, key, err := s.resolveAddress(ctx, clientID, addressID)
	if err != nil {
		return nil, err
	}

	eligible, err := s.vehicles.CountEligible(ctx, clientID, key, model.ProposeEligibleStatuses)
	if err != nil {
		return nil, err
	}
	if eligible == 0 {
		return nil, fmt.Errorf("%w: no vehicle at this address can be rescheduled", ErrConflict)
	}

	date := dateOnly(newDate)
	status := model.ProposalStatusFor(actor)

	// Fee continuity: a reschedule must not lose the negotiated price. When
	// the row for the new date carries no fee yet, the latest priced row for
	// the address supplies it. An approved row for this date is terminal and
	// never reopens; a new date gets a new row instead.
	fee := 0.0
	existing, err := s.agreements.GetByKey(ctx, clientID, key, &date)
	switch {
	case err == nil:
		if !model.CanTransition(existing.Status, status) {
			return nil, fmt.Errorf("%w: agreement for %s is already approved", ErrConflict, date.Format("2006-01-02"))
		}
		if existing.Priced() {
			fee = existing.Fee
		}
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, err
	}
	if fee == 0 {
		rows, err := s.agreements.ListByAddress(ctx, clientID, key)
		if err != nil {
			return nil, err
		}
		for _, row := range rows {
			if row.Priced() {
				fee = row.Fee
				break
			}
		}
	}

	row, err := s.agreements.Upsert(ctx, model.CollectionAgreement{
		ClientID:      clientID,
		AddressLabel:  label,
		AddressKey:    key,
		Fee:           fee,
		ScheduledDate: &date,
		Status:        status,
		ProposedBy:    &actor,
	})
	if err != nil {
		// The store refuses to rewrite an approved row, so a concurrent
		// acceptance between the check above and this write surfaces here.
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: agreement for %s is already approved", ErrConflict, date.Format("2006-01-02"))
		}
		return nil, fmt.Errorf("upsert proposal row: %w", err)
	}

	moved, err := s.vehicles.UpdateStatusBatch(
		ctx, clientID, key,
		model.ProposeEligibleStatuses,
		model.VehicleStatusDateChangeRequested,
		&date,
	)
	if err != nil {
		return nil, fmt.Errorf("mark vehicles change requested: %w", err)
	}
	s.log.Info().
		Str("client_id", clientID.String()).
		Str("address", label).
		Time("date", date).
		Int64("vehicles", moved).
		Str("actor", string(actor)).
		Msg("date proposed")

	return row, nil
}

// AcceptProposal settles the pending date proposal for the address. The fee
// resolves by precedence: the latest approved row, else the latest
// requested or fee-set row with a positive fee. With no priced row at all
// the address was never quoted and acceptance has no meaning.
func (s *NegotiationService) AcceptProposal(
	ctx context.Context,
	clientID uuid.UUID,
	addressID uuid.UUID,
) (*model.CollectionAgreement, error) {
	if clientID == uuid.Nil || addressID == uuid.Nil {
		return nil, fmt.Errorf("%w: client_id and address_id are required", ErrInvalidInput)
	}

	label, key, err := s.resolveAddress(ctx, clientID, addressID)
	if err != nil {
		return nil, err
	}

	rows, err := s.agreements.ListByAddress(ctx, clientID, key)
	if err != nil {
		return nil, err
	}

	fee, ok := resolveFee(rows)
	if !ok {
		return nil, ErrPrecursorMissing
	}

	var proposal *model.CollectionAgreement
	for i := range rows {
		if rows[i].Pending() && rows[i].ScheduledDate != nil {
			proposal = &rows[i]
			break
		}
	}
	if proposal == nil {
		return nil, fmt.Errorf("%w: no pending date proposal for this address", ErrConflict)
	}

	accepted, err := s.agreements.Upsert(ctx, model.CollectionAgreement{
		ClientID:      clientID,
		AddressLabel:  label,
		AddressKey:    key,
		Fee:           fee,
		ScheduledDate: proposal.ScheduledDate,
		Status:        model.AgreementStatusApproved,
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: proposal was already settled", ErrConflict)
		}
		return nil, fmt.Errorf("approve agreement row: %w", err)
	}

	linked, err := s.vehicles.LinkAgreementBatch(
		ctx, clientID, key,
		model.AcceptEligibleStatuses,
		accepted.ID,
		accepted.ScheduledDate,
	)
	if err != nil {
		return nil, fmt.Errorf("link vehicles to agreement: %w", err)
	}
	s.log.Info().
		Str("client_id", clientID.String()).
		Str("address", label).
		Float64("fee", fee).
		Int64("vehicles", linked).
		Msg("proposal accepted")

	return accepted, nil
}

// RejectProposal reverts the pending proposal row to its prior negotiation
// state. The row is kept for audit; only its status and reason change.
func (s *NegotiationService) RejectProposal(
	ctx context.Context,
	actor model.ActorRole,
	clientID uuid.UUID,
	addressID uuid.UUID,
	reason *string,
) error {
	if actor != model.ActorRoleOperator && actor != model.ActorRoleClient {
		return fmt.Errorf("%w: unknown actor role %q", ErrInvalidInput, actor)
	}
	if clientID == uuid.Nil || addressID == uuid.Nil {
		return fmt.Errorf("%w: client_id and address_id are required", ErrInvalidInput)
	}

	label, key, err := s.resolveAddress(ctx, clientID, addressID)
	if err != nil {
		return err
	}

	rows, err := s.agreements.ListByAddress(ctx, clientID, key)
	if err != nil {
		return err
	}
	var proposal *model.CollectionAgreement
	for i := range rows {
		if rows[i].Pending() {
			proposal = &rows[i]
			break
		}
	}
	if proposal == nil {
		return fmt.Errorf("%w: no pending date proposal for this address", ErrConflict)
	}

	reverted := model.AgreementStatusRequested
	if proposal.Priced() {
		reverted = model.AgreementStatusFeeSet
	}
	if !model.CanTransition(proposal.Status, reverted) {
		return fmt.Errorf("%w: cannot revert agreement from %s", ErrConflict, proposal.Status)
	}

	if err := s.agreements.UpdateStatus(ctx, proposal.ID, reverted, nil, reason); err != nil {
		return fmt.Errorf("revert proposal row: %w", err)
	}

	if _, err := s.vehicles.UpdateStatusBatch(
		ctx, clientID, key,
		model.RejectRevertibleStatuses,
		model.VehicleStatusFeeProposed,
		nil,
	); err != nil {
		return fmt.Errorf("revert vehicle statuses: %w", err)
	}
	s.log.Info().
		Str("client_id", clientID.String()).
		Str("address", label).
		Str("actor", string(actor)).
		Msg("proposal rejected")

	return nil
}

// RegisterAddress stores a pickup address for the client. The canonical
// label is derived on read, so two spellings of the same street still meet
// at the key.
func (s *NegotiationService) RegisterAddress(ctx context.Context, clientID uuid.UUID, street, number, city string) (*model.Address, error) {
	if clientID == uuid.Nil {
		return nil, fmt.Errorf("%w: client_id is required", ErrInvalidInput)
	}
	street = strings.TrimSpace(street)
	number = strings.TrimSpace(number)
	city = strings.TrimSpace(city)
	if street == "" || city == "" {
		return nil, fmt.Errorf("%w: street and city are required", ErrInvalidInput)
	}

	addr, err := s.addresses.Create(ctx, model.Address{
		ClientID: clientID,
		Street:   street,
		Number:   number,
		City:     city,
	})
	if err != nil {
		return nil, fmt.Errorf("create address: %w", err)
	}
	s.log.Info().
		Str("client_id", clientID.String()).
		Str("address", address.Label(street, number, city)).
		Msg("address registered")
	return addr, nil
}

func (s *NegotiationService) ListAddresses(ctx context.Context, clientID uuid.UUID) ([]model.Address, error) {
	if clientID == uuid.Nil {
		return nil, fmt.Errorf("%w: client_id is required", ErrInvalidInput)
	}
	return s.addresses.ListByClient(ctx, clientID)
}

// ListVehicles returns the client's vehicles, narrowed to one pickup address
// when addressID is set.
func (s *NegotiationService) ListVehicles(ctx context.Context, clientID uuid.UUID, addressID *uuid.UUID) ([]model.Vehicle, error) {
	if clientID == uuid.Nil {
		return nil, fmt.Errorf("%w: client_id is required", ErrInvalidInput)
	}
	if addressID == nil {
		return s.vehicles.ListByClient(ctx, clientID)
	}
	_, key, err := s.resolveAddress(ctx, clientID, *addressID)
	if err != nil {
		return nil, err
	}
	return s.vehicles.ListByClientAndKey(ctx, clientID, key)
}

// GetVehicle fetches one vehicle. Like addresses, a vehicle belonging to
// another client reads as not found.
func (s *NegotiationService) GetVehicle(ctx context.Context, clientID, vehicleID uuid.UUID) (*model.Vehicle, error) {
	if clientID == uuid.Nil || vehicleID == uuid.Nil {
		return nil, fmt.Errorf("%w: client_id and vehicle_id are required", ErrInvalidInput)
	}
	vehicle, err := s.vehicles.GetByID(ctx, vehicleID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: vehicle %s", ErrNotFound, vehicleID)
		}
		return nil, err
	}
	if vehicle.ClientID != clientID {
		return nil, fmt.Errorf("%w: vehicle %s", ErrNotFound, vehicleID)
	}
	return vehicle, nil
}

func (s *NegotiationService) resolveAddress(ctx context.Context, clientID, addressID uuid.UUID) (label, key string, err error) {
	addr, err := s.addresses.GetByID(ctx, addressID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", "", fmt.Errorf("%w: address %s", ErrNotFound, addressID)
		}
		return "", "", err
	}
	if addr.ClientID != clientID {
		return "", "", fmt.Errorf("%w: address %s", ErrNotFound, addressID)
	}
	label = address.Label(addr.Street, addr.Number, addr.City)
	return label, address.Key(label), nil
}

// resolveFee applies the acceptance precedence over rows ordered most
// recently updated first.
func resolveFee(rows []model.CollectionAgreement) (float64, bool) {
	for _, row := range rows {
		if row.Status == model.AgreementStatusApproved && row.Priced() {
			return row.Fee, true
		}
	}
	for _, row := range rows {
		switch row.Status {
		case model.AgreementStatusRequested, model.AgreementStatusFeeSet:
			if row.Priced() {
				return row.Fee, true
			}
		}
	}
	return 0, false
}

func normalizeDate(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	d := dateOnly(*t)
	return &d
}

func dateOnly(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
