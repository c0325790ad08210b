package model

import (
	"time"

	"github.com/google/uuid"
)

// HistoryRecord is the append-only archive entry derived from a finalized
// agreement. Only the payment flag and timestamp ever change after insert.
type HistoryRecord struct {
	ID           uuid.UUID
	ClientID     uuid.UUID
	AgreementID  uuid.UUID
	AddressLabel string
	Fee          float64
	CollectedOn  *time.Time
	Paid         bool
	PaidAt       *time.Time
	VehicleCount int
	TotalAmount  float64
	CreatedAt    time.Time
}

// HistoryGroup is one reconciled line of the client history: an agreement
// row plus the vehicles attributed to it. Groups with no vehicles are kept.
type HistoryGroup struct {
	Agreement CollectionAgreement
	Vehicles  []Vehicle
}

type HistoryStatement struct {
	ClientID    uuid.UUID
	GeneratedAt time.Time
	Groups      []HistoryGroup
}
