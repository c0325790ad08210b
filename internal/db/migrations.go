package db

import (
	"fmt"

	"gorm.io/gorm"
)

var migrationStatements = []string{
	`CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`,
	`CREATE EXTENSION IF NOT EXISTS "pgcrypto";`,
	`DO $$
	BEGIN
		IF NOT EXISTS (SELECT 1 FROM pg_type WHERE typname = 'agreement_status') THEN
			CREATE TYPE agreement_status AS ENUM (
				'REQUESTED',
				'FEE_SET',
				'DATE_PROPOSED_BY_OPERATOR',
				'DATE_PROPOSED_BY_CLIENT',
				'APPROVED'
			);
		END IF;
		IF NOT EXISTS (SELECT 1 FROM pg_type WHERE typname = 'vehicle_status') THEN
			CREATE TYPE vehicle_status AS ENUM (
				'AWAITING_QUOTE',
				'FEE_PROPOSED',
				'DATE_CHANGE_REQUESTED',
				'AWAITING_COLLECTION',
				'COLLECTED',
				'DELIVERED'
			);
		END IF;
		IF NOT EXISTS (SELECT 1 FROM pg_type WHERE typname = 'actor_role') THEN
			CREATE TYPE actor_role AS ENUM ('OPERATOR', 'CLIENT');
		END IF;
	END
	$$;`,
	`CREATE TABLE IF NOT EXISTS addresses (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		client_id UUID NOT NULL,
		street VARCHAR(255) NOT NULL,
		number VARCHAR(32) NOT NULL DEFAULT '',
		city VARCHAR(128) NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE INDEX IF NOT EXISTS idx_addresses_client_id ON addresses (client_id);`,
	`CREATE TABLE IF NOT EXISTS collection_agreements (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		client_id UUID NOT NULL,
		address_label TEXT NOT NULL,
		address_key TEXT NOT NULL,
		fee NUMERIC(18,2) NOT NULL DEFAULT 0,
		scheduled_date DATE,
		status agreement_status NOT NULL DEFAULT 'REQUESTED',
		proposed_by actor_role,
		rejection_reason TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	// The (client, key, date) triple is the sole serialization point for
	// concurrent proposals; the date is nullable so the index goes through
	// a sentinel expression to keep NULL dates unique too.
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_agreement_client_key_date
		ON collection_agreements (client_id, address_key, COALESCE(scheduled_date, '0001-01-01'::date));`,
	`CREATE INDEX IF NOT EXISTS idx_agreements_client_key ON collection_agreements (client_id, address_key);`,
	`CREATE INDEX IF NOT EXISTS idx_agreements_client_id ON collection_agreements (client_id);`,
	`CREATE INDEX IF NOT EXISTS idx_agreements_status ON collection_agreements (status);`,
	`CREATE TABLE IF NOT EXISTS vehicles (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		client_id UUID NOT NULL,
		plate VARCHAR(32) NOT NULL DEFAULT '',
		status vehicle_status NOT NULL DEFAULT 'AWAITING_QUOTE',
		pickup_address_id UUID REFERENCES addresses(id),
		pickup_label TEXT,
		pickup_key TEXT,
		estimated_date DATE,
		agreement_id UUID,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	// agreement_id is deliberately not a foreign key: vehicles are created
	// before their agreement exists and the reconciler heals the pointer.
	`CREATE INDEX IF NOT EXISTS idx_vehicles_client_id ON vehicles (client_id);`,
	`CREATE INDEX IF NOT EXISTS idx_vehicles_client_key ON vehicles (client_id, pickup_key) WHERE pickup_key IS NOT NULL;`,
	`CREATE INDEX IF NOT EXISTS idx_vehicles_status ON vehicles (status);`,
	`CREATE INDEX IF NOT EXISTS idx_vehicles_agreement_id ON vehicles (agreement_id) WHERE agreement_id IS NOT NULL;`,
	`CREATE TABLE IF NOT EXISTS collection_history (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		client_id UUID NOT NULL,
		agreement_id UUID NOT NULL,
		address_label TEXT NOT NULL,
		fee NUMERIC(18,2) NOT NULL,
		collected_on DATE,
		paid BOOLEAN NOT NULL DEFAULT FALSE,
		paid_at TIMESTAMPTZ,
		vehicle_count INT NOT NULL,
		total_amount NUMERIC(18,2) NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_history_agreement_id ON collection_history (agreement_id);`,
	`CREATE INDEX IF NOT EXISTS idx_history_client_id ON collection_history (client_id);`,
}

func runMigrations(db *gorm.DB) error {
	for i, stmt := range migrationStatements {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	return nil
}
