package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/veyra/fleet-collections/internal/model"
)

// Store interfaces consumed by the services; implemented by
// internal/repository against postgres and by in-memory fakes in tests.

type AddressStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Address, error)
	ListByClient(ctx context.Context, clientID uuid.UUID) ([]model.Address, error)
	Create(ctx context.Context, addr model.Address) (*model.Address, error)
}

type AgreementStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.CollectionAgreement, error)
	GetByKey(ctx context.Context, clientID uuid.UUID, addressKey string, date *time.Time) (*model.CollectionAgreement, error)
	UpsertFee(ctx context.Context, clientID uuid.UUID, addressLabel, addressKey string, fee float64, date *time.Time) (*model.CollectionAgreement, error)
	Upsert(ctx context.Context, agreement model.CollectionAgreement) (*model.CollectionAgreement, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status model.AgreementStatus, proposedBy *model.ActorRole, rejectionReason *string) error
	ListByClient(ctx context.Context, clientID uuid.UUID) ([]model.CollectionAgreement, error)
	ListByAddress(ctx context.Context, clientID uuid.UUID, addressKey string) ([]model.CollectionAgreement, error)
	ListApprovedByClient(ctx context.Context, clientID uuid.UUID) ([]model.CollectionAgreement, error)
}

type VehicleStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Vehicle, error)
	ListByClient(ctx context.Context, clientID uuid.UUID) ([]model.Vehicle, error)
	ListByClientAndKey(ctx context.Context, clientID uuid.UUID, pickupKey string) ([]model.Vehicle, error)
	CountEligible(ctx context.Context, clientID uuid.UUID, pickupKey string, allowed []model.VehicleStatus) (int64, error)
	UpdateStatusBatch(ctx context.Context, clientID uuid.UUID, pickupKey string, allowed []model.VehicleStatus, to model.VehicleStatus, estimatedDate *time.Time) (int64, error)
	LinkAgreementBatch(ctx context.Context, clientID uuid.UUID, pickupKey string, allowed []model.VehicleStatus, agreementID uuid.UUID, scheduledDate *time.Time) (int64, error)
	CountByAgreement(ctx context.Context, agreementID uuid.UUID) (int64, error)
}

type HistoryStore interface {
	InsertIfAbsent(ctx context.Context, record model.HistoryRecord) (bool, error)
	MarkPaid(ctx context.Context, id uuid.UUID, paidAt time.Time) error
	ListByClient(ctx context.Context, clientID uuid.UUID) ([]model.HistoryRecord, error)
}
