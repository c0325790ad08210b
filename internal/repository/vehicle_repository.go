package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/veyra/fleet-collections/internal/model"
)

const vehicleColumns = `
	id,
	client_id,
	plate,
	status,
	pickup_address_id,
	pickup_label,
	pickup_key,
	estimated_date,
	agreement_id,
	created_at,
	updated_at`

type VehicleRepository struct {
	db *gorm.DB
}

func NewVehicleRepository(db *gorm.DB) *VehicleRepository {
	return &VehicleRepository{db: db}
}

func (r *VehicleRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Vehicle, error) {
	var vehicle model.Vehicle
	err := r.db.WithContext(ctx).Raw(`
		SELECT `+vehicleColumns+`
		FROM vehicles
		WHERE id = ?
		LIMIT 1
	`, id).Scan(&vehicle).Error
	if err != nil {
		return nil, err
	}
	if vehicle.ID == uuid.Nil {
		return nil, gorm.ErrRecordNotFound
	}
	return &vehicle, nil
}

func (r *VehicleRepository) ListByClient(ctx context.Context, clientID uuid.UUID) ([]model.Vehicle, error) {
	var vehicles []model.Vehicle
	err := r.db.WithContext(ctx).Raw(`
		SELECT `+vehicleColumns+`
		FROM vehicles
		WHERE client_id = ?
		ORDER BY created_at ASC
	`, clientID).Scan(&vehicles).Error
	if err != nil {
		return nil, err
	}
	return vehicles, nil
}

func (r *VehicleRepository) ListByClientAndKey(
	ctx context.Context,
	clientID uuid.UUID,
	pickupKey string,
) ([]model.Vehicle, error) {
	var vehicles []model.Vehicle
	err := r.db.WithContext(ctx).Raw(`
		SELECT `+vehicleColumns+`
		FROM vehicles
		WHERE client_id = ? AND pickup_key = ?
		ORDER BY created_at ASC
	`, clientID, pickupKey).Scan(&vehicles).Error
	if err != nil {
		return nil, err
	}
	return vehicles, nil
}

// CountEligible counts the vehicles at an address currently in one of the
// allowed prior statuses. Protocol operations use this to refuse illegal
// transitions before touching the ledger.
func (r *VehicleRepository) CountEligible(
	ctx context.Context,
	clientID uuid.UUID,
	pickupKey string,
	allowed []model.VehicleStatus,
) (int64, error) {
	if len(allowed) == 0 {
		return 0, nil
	}
	query := `
		SELECT COUNT(*)
		FROM vehicles
		WHERE client_id = ? AND pickup_key = ?
	`
	args := []interface{}{clientID, pickupKey}
	query += statusFilter(allowed, &args)

	var count int64
	if err := r.db.WithContext(ctx).Raw(query, args...).Scan(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// UpdateStatusBatch moves every vehicle at the address whose status is in
// the allowed set to the new status in one bulk write. When estimatedDate is
// non-nil it is carried onto the vehicles as well. Returns the number of
// vehicles moved; a partial failure is the store's to report, not handled
// per vehicle here.
func (r *VehicleRepository) UpdateStatusBatch(
	ctx context.Context,
	clientID uuid.UUID,
	pickupKey string,
	allowed []model.VehicleStatus,
	to model.VehicleStatus,
	estimatedDate *time.Time,
) (int64, error) {
	if len(allowed) == 0 {
		return 0, nil
	}
	query := `
		UPDATE vehicles
		SET
			status = ?,
			estimated_date = COALESCE(?::date, estimated_date),
			updated_at = NOW()
		WHERE client_id = ? AND pickup_key = ?
	`
	args := []interface{}{to, estimatedDate, clientID, pickupKey}
	query += statusFilter(allowed, &args)

	result := r.db.WithContext(ctx).Exec(query, args...)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// LinkAgreementBatch is the acceptance write: status, agreement pointer and
// settled date move together in a single statement so a vehicle can never be
// awaiting collection without its ledger row.
func (r *VehicleRepository) LinkAgreementBatch(
	ctx context.Context,
	clientID uuid.UUID,
	pickupKey string,
	allowed []model.VehicleStatus,
	agreementID uuid.UUID,
	scheduledDate *time.Time,
) (int64, error) {
	if len(allowed) == 0 {
		return 0, nil
	}
	query := `
		UPDATE vehicles
		SET
			status = ?,
			agreement_id = ?,
			estimated_date = COALESCE(?::date, estimated_date),
			updated_at = NOW()
		WHERE client_id = ? AND pickup_key = ?
	`
	args := []interface{}{model.VehicleStatusAwaitingCollection, agreementID, scheduledDate, clientID, pickupKey}
	query += statusFilter(allowed, &args)

	result := r.db.WithContext(ctx).Exec(query, args...)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// CountByAgreement counts vehicles whose pointer is set to the agreement.
func (r *VehicleRepository) CountByAgreement(ctx context.Context, agreementID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Raw(`
		SELECT COUNT(*) FROM vehicles WHERE agreement_id = ?
	`, agreementID).Scan(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

func statusFilter(allowed []model.VehicleStatus, args *[]interface{}) string {
	placeholders := make([]string, len(allowed))
	for i, status := range allowed {
		placeholders[i] = "?"
		*args = append(*args, status)
	}
	return fmt.Sprintf(" AND status IN (%s)", strings.Join(placeholders, ","))
}
