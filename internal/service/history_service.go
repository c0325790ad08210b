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

// StatementGenerator renders a reconciled history statement to a document.
type StatementGenerator interface {
	Generate(statement model.HistoryStatement) ([]byte, error)
}

// HistoryService reconciles the client's collection history on every read
// and owns the append-only archive. Reconciliation is a pure read-side
// computation: it never writes its conclusions back, so a partially applied
// batch from the protocol side heals on the next read instead of compounding.
type HistoryService struct {
	agreements AgreementStore
	vehicles   VehicleStore
	addresses  AddressStore
	history    HistoryStore
	excel      StatementGenerator
	pdf        StatementGenerator
	log        zerolog.Logger
}

func NewHistoryService(
	agreements AgreementStore,
	vehicles VehicleStore,
	addresses AddressStore,
	history HistoryStore,
	excel StatementGenerator,
	pdf StatementGenerator,
	log zerolog.Logger,
) *HistoryService {
	return &HistoryService{
		agreements: agreements,
		vehicles:   vehicles,
		addresses:  addresses,
		history:    history,
		excel:      excel,
		pdf:        pdf,
		log:        log,
	}
}

// GetHistory returns one group per agreement row with the vehicles
// attributed to it. A set agreement pointer wins when it resolves to one of
// the client's rows; otherwise attribution falls back to matching the
// vehicle's estimated date against same-address rows, preferring the newest
// match. Rows with no vehicles are kept as empty groups. A vehicle fetch
// failure degrades to bare rows rather than failing the read.
func (s *HistoryService) GetHistory(ctx context.Context, clientID uuid.UUID) ([]model.HistoryGroup, error) {
	if clientID == uuid.Nil {
		return nil, fmt.Errorf("%w: client_id is required", ErrInvalidInput)
	}

	rows, err := s.agreements.ListByClient(ctx, clientID)
	if err != nil {
		return nil, err
	}

	groups := make([]model.HistoryGroup, len(rows))
	rowIndexByID := make(map[uuid.UUID]int, len(rows))
	rowIndexesByKey := make(map[string][]int, len(rows))
	for i, row := range rows {
		groups[i] = model.HistoryGroup{Agreement: row, Vehicles: []model.Vehicle{}}
		rowIndexByID[row.ID] = i
		rowIndexesByKey[row.AddressKey] = append(rowIndexesByKey[row.AddressKey], i)
	}

	vehicles, err := s.vehicles.ListByClient(ctx, clientID)
	if err != nil {
		s.log.Warn().Err(err).Str("client_id", clientID.String()).Msg("history enrichment degraded to bare agreement rows")
		return groups, nil
	}

	for _, vehicle := range vehicles {
		if idx, ok := s.attribute(vehicle, rowIndexByID, rowIndexesByKey, rows); ok {
			groups[idx].Vehicles = append(groups[idx].Vehicles, vehicle)
		}
	}
	return groups, nil
}

func (s *HistoryService) attribute(
	vehicle model.Vehicle,
	rowIndexByID map[uuid.UUID]int,
	rowIndexesByKey map[string][]int,
	rows []model.CollectionAgreement,
) (int, bool) {
	// A pointer is authoritative only while it resolves; dangling pointers
	// fall through to date matching like unlinked vehicles.
	if vehicle.AgreementID != nil {
		if idx, ok := rowIndexByID[*vehicle.AgreementID]; ok {
			return idx, true
		}
	}
	if vehicle.PickupKey == nil || vehicle.EstimatedDate == nil {
		return 0, false
	}

	candidates := rowIndexesByKey[*vehicle.PickupKey]
	estimated := dateOnly(*vehicle.EstimatedDate)
	// Rows arrive date-ascending; keeping the last match attributes a
	// rescheduled vehicle to the newer row when its date moved on without
	// the pointer ever being set.
	match, found := 0, false
	for _, idx := range candidates {
		date := rows[idx].ScheduledDate
		if date != nil && dateOnly(*date).Equal(estimated) {
			match, found = idx, true
		}
	}
	return match, found
}

// CurrentAgreement is the display tie-break when an address accumulated
// several rows: the most recently updated approved row wins, else the most
// recently updated row still in negotiation.
func (s *HistoryService) CurrentAgreement(ctx context.Context, clientID, addressID uuid.UUID) (*model.CollectionAgreement, error) {
	if clientID == uuid.Nil || addressID == uuid.Nil {
		return nil, fmt.Errorf("%w: client_id and address_id are required", ErrInvalidInput)
	}

	addr, err := s.addresses.GetByID(ctx, addressID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: address %s", ErrNotFound, addressID)
		}
		return nil, err
	}
	if addr.ClientID != clientID {
		return nil, fmt.Errorf("%w: address %s", ErrNotFound, addressID)
	}
	key := address.Key(address.Label(addr.Street, addr.Number, addr.City))

	rows, err := s.agreements.ListByAddress(ctx, clientID, key)
	if err != nil {
		return nil, err
	}
	for i := range rows {
		if rows[i].Status == model.AgreementStatusApproved {
			return &rows[i], nil
		}
	}
	if len(rows) > 0 {
		return &rows[0], nil
	}
	return nil, fmt.Errorf("%w: no agreement for address %s", ErrNotFound, addressID)
}

// ArchiveAgreement appends the archive record for a finalized agreement.
// Keyed by agreement id: repeated calls are no-ops, so the sibling
// fulfillment workflow may call it as often as it likes.
func (s *HistoryService) ArchiveAgreement(ctx context.Context, agreementID uuid.UUID) (bool, error) {
	if agreementID == uuid.Nil {
		return false, fmt.Errorf("%w: agreement_id is required", ErrInvalidInput)
	}

	row, err := s.agreements.GetByID(ctx, agreementID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, fmt.Errorf("%w: agreement %s", ErrNotFound, agreementID)
		}
		return false, err
	}
	if row.Status != model.AgreementStatusApproved {
		return false, fmt.Errorf("%w: agreement %s is not approved", ErrConflict, agreementID)
	}

	count, err := s.vehicles.CountByAgreement(ctx, agreementID)
	if err != nil {
		return false, err
	}
	if count < 1 {
		count = 1
	}

	return s.history.InsertIfAbsent(ctx, model.HistoryRecord{
		ClientID:     row.ClientID,
		AgreementID:  row.ID,
		AddressLabel: row.AddressLabel,
		Fee:          row.Fee,
		CollectedOn:  row.ScheduledDate,
		VehicleCount: int(count),
		TotalAmount:  row.Fee * float64(count),
	})
}

// BackfillArchive archives every approved agreement of the client that is
// not archived yet. Best-effort: a failing row is logged and skipped.
func (s *HistoryService) BackfillArchive(ctx context.Context, clientID uuid.UUID) (int, error) {
	if clientID == uuid.Nil {
		return 0, fmt.Errorf("%w: client_id is required", ErrInvalidInput)
	}

	rows, err := s.agreements.ListApprovedByClient(ctx, clientID)
	if err != nil {
		return 0, err
	}

	archived := 0
	for _, row := range rows {
		inserted, err := s.ArchiveAgreement(ctx, row.ID)
		if err != nil {
			s.log.Warn().Err(err).Str("agreement_id", row.ID.String()).Msg("backfill item skipped")
			continue
		}
		if inserted {
			archived++
		}
	}
	return archived, nil
}

// MarkPaid flips the payment flag on an archive record.
func (s *HistoryService) MarkPaid(ctx context.Context, recordID uuid.UUID) error {
	if recordID == uuid.Nil {
		return fmt.Errorf("%w: record_id is required", ErrInvalidInput)
	}
	if err := s.history.MarkPaid(ctx, recordID, time.Now().UTC()); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: history record %s", ErrNotFound, recordID)
		}
		return err
	}
	return nil
}

func (s *HistoryService) ListArchive(ctx context.Context, clientID uuid.UUID) ([]model.HistoryRecord, error) {
	if clientID == uuid.Nil {
		return nil, fmt.Errorf("%w: client_id is required", ErrInvalidInput)
	}
	return s.history.ListByClient(ctx, clientID)
}

type ExportResult struct {
	FileName    string
	ContentType string
	Content     []byte
}

// ExportStatement renders the reconciled history as a spreadsheet.
func (s *HistoryService) ExportStatement(ctx context.Context, clientID uuid.UUID) (*ExportResult, error) {
	statement, err := s.buildStatement(ctx, clientID)
	if err != nil {
		return nil, err
	}
	content, err := s.excel.Generate(*statement)
	if err != nil {
		return nil, err
	}
	return &ExportResult{
		FileName:    statementFileName(clientID, statement.GeneratedAt, "xlsx"),
		ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		Content:     content,
	}, nil
}

// ExportStatementPDF renders the reconciled history as a PDF.
func (s *HistoryService) ExportStatementPDF(ctx context.Context, clientID uuid.UUID) (*ExportResult, error) {
	statement, err := s.buildStatement(ctx, clientID)
	if err != nil {
		return nil, err
	}
	content, err := s.pdf.Generate(*statement)
	if err != nil {
		return nil, err
	}
	return &ExportResult{
		FileName:    statementFileName(clientID, statement.GeneratedAt, "pdf"),
		ContentType: "application/pdf",
		Content:     content,
	}, nil
}

func (s *HistoryService) buildStatement(ctx context.Context, clientID uuid.UUID) (*model.HistoryStatement, error) {
	groups, err := s.GetHistory(ctx, clientID)
	if err != nil {
		return nil, err
	}
	return &model.HistoryStatement{
		ClientID:    clientID,
		GeneratedAt: time.Now().UTC(),
		Groups:      groups,
	}, nil
}

func statementFileName(clientID uuid.UUID, generatedAt time.Time, ext string) string {
	id := strings.ReplaceAll(clientID.String(), "-", "")
	return fmt.Sprintf("collections-%s-%s.%s", id[:12], generatedAt.Format("20060102"), ext)
}
