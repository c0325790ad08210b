package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/veyra/fleet-collections/internal/model"
)

type AddressRepository struct {
	db *gorm.DB
}

func NewAddressRepository(db *gorm.DB) *AddressRepository {
	return &AddressRepository{db: db}
}

func (r *AddressRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Address, error) {
	var addr model.Address
	err := r.db.WithContext(ctx).Raw(`
		SELECT id, client_id, street, number, city, created_at
		FROM addresses
		WHERE id = ?
		LIMIT 1
	`, id).Scan(&addr).Error
	if err != nil {
		return nil, err
	}
	if addr.ID == uuid.Nil {
		return nil, gorm.ErrRecordNotFound
	}
	return &addr, nil
}

func (r *AddressRepository) ListByClient(ctx context.Context, clientID uuid.UUID) ([]model.Address, error) {
	var addrs []model.Address
	err := r.db.WithContext(ctx).Raw(`
		SELECT id, client_id, street, number, city, created_at
		FROM addresses
		WHERE client_id = ?
		ORDER BY created_at ASC
	`, clientID).Scan(&addrs).Error
	if err != nil {
		return nil, err
	}
	return addrs, nil
}

func (r *AddressRepository) Create(ctx context.Context, addr model.Address) (*model.Address, error) {
	var saved model.Address
	err := r.db.WithContext(ctx).Raw(`
		INSERT INTO addresses (client_id, street, number, city)
		VALUES (?, ?, ?, ?)
		RETURNING id, client_id, street, number, city, created_at
	`, addr.ClientID, addr.Street, addr.Number, addr.City).Scan(&saved).Error
	if err != nil {
		return nil, err
	}
	return &saved, nil
}
