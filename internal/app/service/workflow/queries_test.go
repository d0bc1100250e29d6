package workflow

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fatflowers/repairdesk/internal/platform/db/dbtest"
	"github.com/fatflowers/repairdesk/pkg/apperr"
	"github.com/fatflowers/repairdesk/pkg/types"
)

func TestList_SearchStatusAndPaging(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	olga := dbtest.Customer(t, f.db, "Olga", "")
	bob := dbtest.Customer(t, f.db, "Bob", "")

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	oldest := dbtest.Service(t, f.db, olga.ID, dbtest.ServiceOpts{CreatedAt: base})
	dbtest.Service(t, f.db, olga.ID, dbtest.ServiceOpts{CreatedAt: base.Add(time.Hour), Status: types.ServiceStatusRepairing})
	newest := dbtest.Service(t, f.db, olga.ID, dbtest.ServiceOpts{CreatedAt: base.Add(2 * time.Hour)})
	dbtest.Service(t, f.db, bob.ID, dbtest.ServiceOpts{CreatedAt: base.Add(30 * time.Minute)})

	res, err := f.s.List(ctx, ListQuery{Search: "OLGA", PageQuery: types.PageQuery{Page: 1, Limit: 2}})
	require.NoError(t, err)
	require.Equal(t, types.Pagination{Page: 1, Limit: 2, Total: 3, Pages: 2}, res.Pagination)
	require.Len(t, res.Services, 2)
	require.Equal(t, newest.ID, res.Services[0].ID)
	require.NotNil(t, res.Services[0].Customer)

	res, err = f.s.List(ctx, ListQuery{Search: "olga", PageQuery: types.PageQuery{Page: 2, Limit: 2}})
	require.NoError(t, err)
	require.Len(t, res.Services, 1)
	require.Equal(t, oldest.ID, res.Services[0].ID)

	res, err = f.s.List(ctx, ListQuery{Search: "bob"})
	require.NoError(t, err)
	require.Len(t, res.Services, 1)
	require.Equal(t, types.DefaultPageSize, res.Pagination.Limit)

	res, err = f.s.List(ctx, ListQuery{Status: string(types.ServiceStatusRepairing)})
	require.NoError(t, err)
	require.Len(t, res.Services, 1)
	require.Equal(t, types.ServiceStatusRepairing, res.Services[0].Status)

	res, err = f.s.List(ctx, ListQuery{Search: "no such ticket"})
	require.NoError(t, err)
	require.Empty(t, res.Services)
	require.Zero(t, res.Pagination.Total)
}

func TestSearch_FiltersAndSort(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	cust := dbtest.Customer(t, f.db, "Olga", "")

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	first := dbtest.Service(t, f.db, cust.ID, dbtest.ServiceOpts{CreatedAt: base, Status: types.ServiceStatusRepairing})
	second := dbtest.Service(t, f.db, cust.ID, dbtest.ServiceOpts{CreatedAt: base.Add(time.Hour), Status: types.ServiceStatusRepairing})
	dbtest.Service(t, f.db, cust.ID, dbtest.ServiceOpts{CreatedAt: base.Add(2 * time.Hour)})

	res, err := f.s.Search(ctx, &ScanRequest{
		Filters:   []*types.CommonFilter{{Field: "status", Operator: types.CommonFilterOperatorEq, Values: []any{"REPAIRING"}}},
		SortBy:    "created_at",
		SortOrder: "asc",
	})
	require.NoError(t, err)
	require.EqualValues(t, 2, res.Total)
	require.Equal(t, []string{first.ID, second.ID}, []string{res.Items[0].ID, res.Items[1].ID})

	res, err = f.s.Search(ctx, &ScanRequest{Size: 1})
	require.NoError(t, err)
	require.EqualValues(t, 3, res.Total)
	require.Len(t, res.Items, 1)

	_, err = f.s.Search(ctx, &ScanRequest{
		Filters: []*types.CommonFilter{{Field: "problem_description", Operator: types.CommonFilterOperatorContains, Values: []any{"boot"}}},
	})
	require.True(t, errors.Is(err, apperr.ErrInvalidArgument))

	_, err = f.s.Search(ctx, &ScanRequest{SortBy: "created_at; DROP TABLE services"})
	require.True(t, errors.Is(err, apperr.ErrInvalidArgument))

	_, err = f.s.Search(ctx, nil)
	require.True(t, errors.Is(err, apperr.ErrInvalidArgument))
}

func TestStats_ComparesWithLastMonth(t *testing.T) {
	f := newFixture(t, true)
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	f.s.now = func() time.Time { return now }
	cust := dbtest.Customer(t, f.db, "Olga", "")

	feb := func(day int) time.Time { return time.Date(2026, 2, day, 9, 0, 0, 0, time.UTC) }
	mar := func(day int) *time.Time { v := time.Date(2026, 3, day, 9, 0, 0, 0, time.UTC); return &v }

	dbtest.Service(t, f.db, cust.ID, dbtest.ServiceOpts{CreatedAt: *mar(2)})
	dbtest.Service(t, f.db, cust.ID, dbtest.ServiceOpts{CreatedAt: feb(10), Status: types.ServiceStatusRepairing})
	dbtest.Service(t, f.db, cust.ID, dbtest.ServiceOpts{CreatedAt: feb(11), Status: types.ServiceStatusPartsPending})
	febDelivered := feb(5)
	dbtest.Service(t, f.db, cust.ID, dbtest.ServiceOpts{
		CreatedAt: feb(1), Status: types.ServiceStatusDelivered, ActualFee: "100", DeliveredAt: &febDelivered,
	})
	dbtest.Service(t, f.db, cust.ID, dbtest.ServiceOpts{
		CreatedAt: feb(20), Status: types.ServiceStatusDelivered, ActualFee: "200", DeliveredAt: mar(5),
	})

	st, err := f.s.Stats(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 3, st.ActiveServices)
	require.EqualValues(t, 2, st.CompletedServices)
	require.EqualValues(t, 1, st.PendingServices)
	require.Equal(t, "200", st.MonthlyRevenue.String())
	// Two of the three active tickets were opened in February.
	require.InDelta(t, 50.0, st.ActiveChange, 0.001)
	require.InDelta(t, 0.0, st.CompletedChange, 0.001)
	require.InDelta(t, 0.0, st.PendingChange, 0.001)
	require.InDelta(t, 100.0, st.RevenueChange, 0.001)
}

func TestPercentChange(t *testing.T) {
	require.Zero(t, PercentChange(5, 0))
	require.InDelta(t, -50.0, PercentChange(1, 2), 0.001)
	require.InDelta(t, 200.0, PercentChange(3, 1), 0.001)
}
