package types

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestServiceStatusPredicates(t *testing.T) {
	require.True(t, ServiceStatusRepairing.Valid())
	require.False(t, ServiceStatus("repairing").Valid())

	for _, s := range AllServiceStatuses {
		// every status is in exactly one bucket
		n := 0
		if s.Active() {
			n++
		}
		if s.Terminal() {
			n++
		}
		if s == ServiceStatusCompletedReadyForDelivery {
			n++
		}
		require.Equal(t, 1, n, s)
	}
	require.True(t, ServiceStatusDelivered.Finished())
	require.False(t, ServiceStatusCancelled.Finished())
}

func TestNotificationForStatus(t *testing.T) {
	nt, ok := NotificationForStatus(ServiceStatusCompletedReadyForDelivery)
	require.True(t, ok)
	require.Equal(t, NotificationTypeServiceCompleted, nt)

	_, ok = NotificationForStatus(ServiceStatusCancelled)
	require.False(t, ok)
	_, ok = NotificationForStatus(ServiceStatusDelivered)
	require.False(t, ok)
}

func TestPageQuery(t *testing.T) {
	q := PageQuery{Page: 0, Limit: 500}.Normalize()
	require.Equal(t, 1, q.Page)
	require.Equal(t, MaxPageSize, q.Limit)
	require.Equal(t, 0, q.Offset())

	q = PageQuery{Page: 3}.Normalize()
	require.Equal(t, DefaultPageSize, q.Limit)
	require.Equal(t, 20, q.Offset())

	p := q.Result(21)
	require.Equal(t, int64(3), p.Pages)
	require.Equal(t, int64(21), p.Total)
}
