package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/veyra/fleet-collections/internal/model"
)

const agreementColumns = `
	id,
	client_id,
	address_label,
	address_key,
	fee,
	scheduled_date,
	status,
	proposed_by,
	rejection_reason,
	created_at,
	updated_at`

type AgreementRepository struct {
	db *gorm.DB
}

func NewAgreementRepository(db *gorm.DB) *AgreementRepository {
	return &AgreementRepository{db: db}
}

func (r *AgreementRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.CollectionAgreement, error) {
	var row model.CollectionAgreement
	err := r.db.WithContext(ctx).Raw(`
		SELECT `+agreementColumns+`
		FROM collection_agreements
		WHERE id = ?
		LIMIT 1
	`, id).Scan(&row).Error
	if err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, gorm.ErrRecordNotFound
	}
	return &row, nil
}

func (r *AgreementRepository) GetByKey(
	ctx context.Context,
	clientID uuid.UUID,
	addressKey string,
	date *time.Time,
) (*model.CollectionAgreement, error) {
	var row model.CollectionAgreement
	err := r.db.WithContext(ctx).Raw(`
		SELECT `+agreementColumns+`
		FROM collection_agreements
		WHERE client_id = ?
			AND address_key = ?
			AND COALESCE(scheduled_date, '0001-01-01'::date) = COALESCE(?::date, '0001-01-01'::date)
		LIMIT 1
	`, clientID, addressKey, date).Scan(&row).Error
	if err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, gorm.ErrRecordNotFound
	}
	return &row, nil
}

// UpsertFee creates the (client, key, date) row with the given fee, or, when
// the row already exists, updates only the fee. A concurrent create racing
// on the unique index lands in the DO UPDATE branch instead of failing, so
// the existing status is never clobbered.
func (r *AgreementRepository) UpsertFee(
	ctx context.Context,
	clientID uuid.UUID,
	addressLabel, addressKey string,
	fee float64,
	date *time.Time,
) (*model.CollectionAgreement, error) {
	var row model.CollectionAgreement
	err := r.db.WithContext(ctx).Raw(`
		INSERT INTO collection_agreements (client_id, address_label, address_key, fee, scheduled_date, status)
		VALUES (?, ?, ?, ?, ?, 'REQUESTED')
		ON CONFLICT (client_id, address_key, COALESCE(scheduled_date, '0001-01-01'::date))
		DO UPDATE SET
			fee = EXCLUDED.fee,
			address_label = EXCLUDED.address_label,
			updated_at = NOW()
		RETURNING `+agreementColumns+`
	`, clientID, addressLabel, addressKey, fee, date).Scan(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// Upsert writes fee, status and proposing actor for the (client, key, date)
// row, creating it when absent. Used by ProposeDate and AcceptProposal where
// the new status is the point of the write. Approved rows are terminal: the
// DO UPDATE branch skips them and the caller gets ErrRecordNotFound.
func (r *AgreementRepository) Upsert(
	ctx context.Context,
	agreement model.CollectionAgreement,
) (*model.CollectionAgreement, error) {
	var row model.CollectionAgreement
	err := r.db.WithContext(ctx).Raw(`
		INSERT INTO collection_agreements (client_id, address_label, address_key, fee, scheduled_date, status, proposed_by)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (client_id, address_key, COALESCE(scheduled_date, '0001-01-01'::date))
		DO UPDATE SET
			fee = EXCLUDED.fee,
			address_label = EXCLUDED.address_label,
			status = EXCLUDED.status,
			proposed_by = EXCLUDED.proposed_by,
			rejection_reason = NULL,
			updated_at = NOW()
		WHERE collection_agreements.status <> 'APPROVED'
		RETURNING `+agreementColumns+`
	`,
		agreement.ClientID,
		agreement.AddressLabel,
		agreement.AddressKey,
		agreement.Fee,
		agreement.ScheduledDate,
		agreement.Status,
		agreement.ProposedBy,
	).Scan(&row).Error
	if err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, gorm.ErrRecordNotFound
	}
	return &row, nil
}

func (r *AgreementRepository) UpdateStatus(
	ctx context.Context,
	id uuid.UUID,
	status model.AgreementStatus,
	proposedBy *model.ActorRole,
	rejectionReason *string,
) error {
	return r.db.WithContext(ctx).Exec(`
		UPDATE collection_agreements
		SET
			status = ?,
			proposed_by = ?,
			rejection_reason = ?,
			updated_at = NOW()
		WHERE id = ?
	`, status, proposedBy, rejectionReason, id).Error
}

// ListByClient returns every ledger row for the client ordered by scheduled
// date, undated rows first. This is the reconciler's row set.
func (r *AgreementRepository) ListByClient(ctx context.Context, clientID uuid.UUID) ([]model.CollectionAgreement, error) {
	var rows []model.CollectionAgreement
	err := r.db.WithContext(ctx).Raw(`
		SELECT `+agreementColumns+`
		FROM collection_agreements
		WHERE client_id = ?
		ORDER BY scheduled_date ASC NULLS FIRST, updated_at ASC
	`, clientID).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// ListByAddress returns the rows for one address, most recently updated
// first, so callers can apply the fee-precedence and tie-break rules by
// walking the slice in order.
func (r *AgreementRepository) ListByAddress(
	ctx context.Context,
	clientID uuid.UUID,
	addressKey string,
) ([]model.CollectionAgreement, error) {
	var rows []model.CollectionAgreement
	err := r.db.WithContext(ctx).Raw(`
		SELECT `+agreementColumns+`
		FROM collection_agreements
		WHERE client_id = ? AND address_key = ?
		ORDER BY updated_at DESC
	`, clientID, addressKey).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// ListApprovedByClient feeds the archive backfill.
func (r *AgreementRepository) ListApprovedByClient(ctx context.Context, clientID uuid.UUID) ([]model.CollectionAgreement, error) {
	var rows []model.CollectionAgreement
	err := r.db.WithContext(ctx).Raw(`
		SELECT `+agreementColumns+`
		FROM collection_agreements
		WHERE client_id = ? AND status = 'APPROVED'
		ORDER BY scheduled_date ASC NULLS FIRST
	`, clientID).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
