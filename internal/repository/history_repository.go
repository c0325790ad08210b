package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/veyra/fleet-collections/internal/model"
)

const historyColumns = `
	id,
	client_id,
	agreement_id,
	address_label,
	fee,
	collected_on,
	paid,
	paid_at,
	vehicle_count,
	total_amount,
	created_at`

type HistoryRepository struct {
	db *gorm.DB
}

func NewHistoryRepository(db *gorm.DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

// InsertIfAbsent appends the archive record unless the agreement was already
// archived. Reports whether a row was written, so backfills stay idempotent.
func (r *HistoryRepository) InsertIfAbsent(ctx context.Context, record model.HistoryRecord) (bool, error) {
	result := r.db.WithContext(ctx).Exec(`
		INSERT INTO collection_history (client_id, agreement_id, address_label, fee, collected_on, vehicle_count, total_amount)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (agreement_id) DO NOTHING
	`,
		record.ClientID,
		record.AgreementID,
		record.AddressLabel,
		record.Fee,
		record.CollectedOn,
		record.VehicleCount,
		record.TotalAmount,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// MarkPaid is the single permitted mutation of an archived record.
func (r *HistoryRepository) MarkPaid(ctx context.Context, id uuid.UUID, paidAt time.Time) error {
	result := r.db.WithContext(ctx).Exec(`
		UPDATE collection_history
		SET paid = TRUE, paid_at = ?
		WHERE id = ?
	`, paidAt, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *HistoryRepository) ListByClient(ctx context.Context, clientID uuid.UUID) ([]model.HistoryRecord, error) {
	var records []model.HistoryRecord
	err := r.db.WithContext(ctx).Raw(`
		SELECT `+historyColumns+`
		FROM collection_history
		WHERE client_id = ?
		ORDER BY created_at ASC
	`, clientID).Scan(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}
