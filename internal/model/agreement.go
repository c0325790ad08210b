package model

import (
	"time"

	"github.com/google/uuid"
)

type AgreementStatus string

const (
	AgreementStatusRequested              AgreementStatus = "REQUESTED"
	AgreementStatusFeeSet                 AgreementStatus = "FEE_SET"
	AgreementStatusDateProposedByOperator AgreementStatus = "DATE_PROPOSED_BY_OPERATOR"
	AgreementStatusDateProposedByClient   AgreementStatus = "DATE_PROPOSED_BY_CLIENT"
	AgreementStatusApproved               AgreementStatus = "APPROVED"
)

type ActorRole string

const (
	ActorRoleOperator ActorRole = "OPERATOR"
	ActorRoleClient   ActorRole = "CLIENT"
)

// CollectionAgreement is one ledger row. At most one row exists per
// (client_id, address_key, scheduled_date); repeated rescheduling for the
// same address produces multiple rows that differ only in date. AddressLabel
// is the display form, AddressKey the canonicalizer's comparison form; every
// match in SQL goes through the key, never the label.
type CollectionAgreement struct {
	ID              uuid.UUID
	ClientID        uuid.UUID
	AddressLabel    string
	AddressKey      string
	Fee             float64
	ScheduledDate   *time.Time
	Status          AgreementStatus
	ProposedBy      *ActorRole
	RejectionReason *string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Priced reports whether the row carries a usable fee. A zero fee means the
// address has never been priced, not that collection is free.
func (a CollectionAgreement) Priced() bool {
	return a.Fee > 0
}

// Pending reports whether the row is waiting on the counterparty.
func (a CollectionAgreement) Pending() bool {
	return a.Status == AgreementStatusDateProposedByOperator ||
		a.Status == AgreementStatusDateProposedByClient
}

// ProposalStatusFor maps the proposing actor to the resulting row status.
func ProposalStatusFor(actor ActorRole) AgreementStatus {
	if actor == ActorRoleClient {
		return AgreementStatusDateProposedByClient
	}
	return AgreementStatusDateProposedByOperator
}
