package model

import (
	"time"

	"github.com/google/uuid"
)

type VehicleStatus string

const (
	VehicleStatusAwaitingQuote       VehicleStatus = "AWAITING_QUOTE"
	VehicleStatusFeeProposed         VehicleStatus = "FEE_PROPOSED"
	VehicleStatusDateChangeRequested VehicleStatus = "DATE_CHANGE_REQUESTED"
	VehicleStatusAwaitingCollection  VehicleStatus = "AWAITING_COLLECTION"
	// Fulfillment states. Nothing in the negotiation protocol sets these,
	// but the transition tables must refuse to move vehicles out of them.
	VehicleStatusCollected VehicleStatus = "COLLECTED"
	VehicleStatusDelivered VehicleStatus = "DELIVERED"
)

// Vehicle carries a denormalized pickup label and a nullable agreement
// pointer. The pointer is set only on acceptance; vehicles created before
// their agreement existed stay unlinked until the reconciler attributes them.
type Vehicle struct {
	ID              uuid.UUID
	ClientID        uuid.UUID
	Plate           string
	Status          VehicleStatus
	PickupAddressID *uuid.UUID
	PickupLabel     *string
	PickupKey       *string
	EstimatedDate   *time.Time
	AgreementID     *uuid.UUID
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
