package model

// The negotiation workflow is a closed state machine. Every protocol
// operation names the vehicle statuses it is allowed to move, so illegal
// transitions (for example rescheduling an already collected vehicle) are
// refused at the table, not by scattered string comparisons.

// FeeEligibleStatuses are the vehicle statuses SetFees may advance to
// FEE_PROPOSED.
var FeeEligibleStatuses = []VehicleStatus{
	VehicleStatusAwaitingQuote,
}

// ProposeEligibleStatuses are the vehicle statuses ProposeDate may move to
// DATE_CHANGE_REQUESTED. Rescheduling an accepted-but-not-collected vehicle
// is legal; a collected or delivered one is not.
var ProposeEligibleStatuses = []VehicleStatus{
	VehicleStatusFeeProposed,
	VehicleStatusDateChangeRequested,
	VehicleStatusAwaitingCollection,
}

// AcceptEligibleStatuses are the vehicle statuses AcceptProposal may move to
// AWAITING_COLLECTION and link to the accepted row.
var AcceptEligibleStatuses = []VehicleStatus{
	VehicleStatusFeeProposed,
	VehicleStatusDateChangeRequested,
}

// RejectRevertibleStatuses are the vehicle statuses RejectProposal rolls
// back to FEE_PROPOSED.
var RejectRevertibleStatuses = []VehicleStatus{
	VehicleStatusDateChangeRequested,
}

var agreementTransitions = map[AgreementStatus][]AgreementStatus{
	AgreementStatusRequested: {
		AgreementStatusRequested,
		AgreementStatusFeeSet,
		AgreementStatusDateProposedByOperator,
		AgreementStatusDateProposedByClient,
		AgreementStatusApproved,
	},
	AgreementStatusFeeSet: {
		AgreementStatusFeeSet,
		AgreementStatusDateProposedByOperator,
		AgreementStatusDateProposedByClient,
		AgreementStatusApproved,
	},
	AgreementStatusDateProposedByOperator: {
		AgreementStatusRequested,
		AgreementStatusFeeSet,
		AgreementStatusDateProposedByOperator,
		AgreementStatusDateProposedByClient,
		AgreementStatusApproved,
	},
	AgreementStatusDateProposedByClient: {
		AgreementStatusRequested,
		AgreementStatusFeeSet,
		AgreementStatusDateProposedByOperator,
		AgreementStatusDateProposedByClient,
		AgreementStatusApproved,
	},
	// Approved is terminal for the negotiation; a new date means a new row.
	AgreementStatusApproved: {
		AgreementStatusApproved,
	},
}

// CanTransition reports whether an agreement row may move between the two
// statuses.
func CanTransition(from, to AgreementStatus) bool {
	for _, allowed := range agreementTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// StatusIn reports whether status is a member of the given allow-list.
func StatusIn(status VehicleStatus, allowed []VehicleStatus) bool {
	for _, s := range allowed {
		if s == status {
			return true
		}
	}
	return false
}
