package workflow

import (
	"github.com/fatflowers/repairdesk/pkg/apperr"
	"github.com/fatflowers/repairdesk/pkg/types"
)

var allowedTransitions = map[types.ServiceStatus][]types.ServiceStatus{
	types.ServiceStatusReceived: {
		types.ServiceStatusDiagnosisPending,
		types.ServiceStatusCancelled,
	},
	types.ServiceStatusDiagnosisPending: {
		types.ServiceStatusCustomerApprovalPending,
		types.ServiceStatusRepairing,
		types.ServiceStatusCancelled,
	},
	types.ServiceStatusCustomerApprovalPending: {
		types.ServiceStatusRepairing,
		types.ServiceStatusCancelled,
	},
	types.ServiceStatusPartsPending: {
		types.ServiceStatusRepairing,
		types.ServiceStatusCancelled,
	},
	types.ServiceStatusRepairing: {
		types.ServiceStatusCompletedReadyForDelivery,
		types.ServiceStatusPartsPending,
		types.ServiceStatusCancelled,
	},
	types.ServiceStatusCompletedReadyForDelivery: {
		types.ServiceStatusDelivered,
	},
}

// CanTransition reports whether the adjacency table allows from -> to.
func CanTransition(from, to types.ServiceStatus) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// NextStatuses lists the statuses reachable from s, empty for terminal states.
func NextStatuses(s types.ServiceStatus) []types.ServiceStatus {
	return append([]types.ServiceStatus{}, allowedTransitions[s]...)
}

func checkTransition(enforce bool, from, to types.ServiceStatus) error {
	if !enforce || CanTransition(from, to) {
		return nil
	}
	return apperr.Invalid("illegal status transition %s -> %s", from, to)
}
