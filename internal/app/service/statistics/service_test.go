package statistics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/fatflowers/repairdesk/internal/models"
	"github.com/fatflowers/repairdesk/internal/platform/db/dbtest"
	"github.com/fatflowers/repairdesk/pkg/apperr"
	"github.com/fatflowers/repairdesk/pkg/types"
)

var testNow = time.Date(2026, 5, 20, 15, 0, 0, 0, time.UTC)

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	gdb := dbtest.Open(t)
	s := New(gdb)
	s.now = func() time.Time { return testNow }
	return s, gdb
}

func at(month time.Month, day int) time.Time {
	return time.Date(2026, month, day, 10, 0, 0, 0, time.UTC)
}

func TestFanOut(t *testing.T) {
	res, err := fanOut(context.Background(), []int{1, 2, 3}, func(_ context.Context, k int) (int, error) {
		return k * k, nil
	})
	require.NoError(t, err)
	require.Equal(t, map[int]int{1: 1, 2: 4, 3: 9}, res)

	boom := errors.New("boom")
	_, err = fanOut(context.Background(), []string{"a", "b"}, func(_ context.Context, k string) (int, error) {
		if k == "b" {
			return 0, boom
		}
		return 1, nil
	})
	require.ErrorIs(t, err, boom)
}

func TestMonthlyReport(t *testing.T) {
	s, gdb := newTestService(t)
	c := dbtest.Customer(t, gdb, "Ada", "")
	svc := dbtest.Service(t, gdb, c.ID, dbtest.ServiceOpts{Status: types.ServiceStatusDelivered})

	dbtest.Record(t, gdb, types.FinancialRecordTypeIncome, "300", at(5, 2), &svc.ID)
	dbtest.Record(t, gdb, types.FinancialRecordTypeIncome, "200", at(5, 2), nil)
	dbtest.Record(t, gdb, types.FinancialRecordTypeExpense, "120", at(5, 10), nil)
	dbtest.Record(t, gdb, types.FinancialRecordTypeIncome, "999", at(4, 30), nil)

	r, err := s.Report(context.Background(), ReportRequest{Type: ReportTypeMonthly, Year: 2026, Month: 5})
	require.NoError(t, err)
	require.Equal(t, "2026-05", r.Period)
	require.Equal(t, "500", r.Summary.Income.String())
	require.Equal(t, "120", r.Summary.Expense.String())
	require.Equal(t, "380", r.Summary.Net.String())
	require.EqualValues(t, 3, r.Summary.TransactionCount)

	require.Len(t, r.ServiceIncome, 1)
	require.Equal(t, svc.ServiceNumber, r.ServiceIncome[0].ServiceNumber)
	require.Equal(t, "300", r.ServiceIncome[0].Amount.String())

	require.Len(t, r.Breakdown, 31)
	require.Equal(t, "2026-05-02", r.Breakdown[1].Label)
	require.Equal(t, "500", r.Breakdown[1].Income.String())
	require.Equal(t, "-120", r.Breakdown[9].Net.String())
}

func TestYearlyReport(t *testing.T) {
	s, gdb := newTestService(t)
	dbtest.Record(t, gdb, types.FinancialRecordTypeIncome, "100", at(1, 15), nil)
	dbtest.Record(t, gdb, types.FinancialRecordTypeExpense, "40", at(3, 1), nil)

	r, err := s.Report(context.Background(), ReportRequest{Type: ReportTypeYearly})
	require.NoError(t, err)
	require.Equal(t, "2026", r.Period)
	require.Len(t, r.Breakdown, 12)
	require.Equal(t, "100", r.Breakdown[0].Income.String())
	require.Equal(t, "2026-03", r.Breakdown[2].Label)
	require.Equal(t, "40", r.Breakdown[2].Expense.String())
	require.Equal(t, "60", r.Summary.Net.String())
}

func TestReportValidation(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()

	_, err := s.Report(ctx, ReportRequest{Type: ReportTypeMonthly, Month: 13})
	require.ErrorIs(t, err, apperr.ErrInvalidArgument)
	_, err = s.Report(ctx, ReportRequest{Type: "trends"})
	require.ErrorIs(t, err, apperr.ErrInvalidArgument)
}

func TestDashboard(t *testing.T) {
	s, gdb := newTestService(t)
	c := dbtest.Customer(t, gdb, "Ada", "")
	today := testNow.Add(-2 * time.Hour)
	yesterday := testNow.Add(-26 * time.Hour)

	dbtest.Service(t, gdb, c.ID, dbtest.ServiceOpts{CreatedAt: today})
	dbtest.Service(t, gdb, c.ID, dbtest.ServiceOpts{CreatedAt: today, Status: types.ServiceStatusRepairing})
	dbtest.Service(t, gdb, c.ID, dbtest.ServiceOpts{
		CreatedAt: yesterday, Status: types.ServiceStatusDelivered, ActualFee: "150", DeliveredAt: &today,
	})
	dbtest.Service(t, gdb, c.ID, dbtest.ServiceOpts{
		CreatedAt: at(3, 1), Status: types.ServiceStatusDelivered, ActualFee: "100", DeliveredAt: &yesterday,
	})
	dbtest.Service(t, gdb, c.ID, dbtest.ServiceOpts{CreatedAt: at(3, 1), Status: types.ServiceStatusCancelled})

	d, err := s.Dashboard(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 2, d.TodayServices)
	require.EqualValues(t, 2, d.PendingServices)
	require.EqualValues(t, 2, d.CompletedServices)
	require.Equal(t, "150", d.TodayRevenue.String())
	require.InDelta(t, 100.0, d.Changes.TodayServiceChange, 0.001)
	require.InDelta(t, 50.0, d.Changes.RevenueChange, 0.001)

	require.Len(t, d.MonthlyRevenue, 6)
	require.Equal(t, "2025-12", d.MonthlyRevenue[0].Month)
	require.Equal(t, "2026-05", d.MonthlyRevenue[5].Month)
	require.Equal(t, "250", d.MonthlyRevenue[5].Revenue.String())

	byStatus := map[types.ServiceStatus]int64{}
	for _, sc := range d.ServicesByStatus {
		byStatus[sc.Status] = sc.Count
	}
	require.EqualValues(t, 2, byStatus[types.ServiceStatusDelivered])
	require.EqualValues(t, 1, byStatus[types.ServiceStatusCancelled])
}

func TestActivities(t *testing.T) {
	s, gdb := newTestService(t)
	c := dbtest.Customer(t, gdb, "Ada", "")
	require.NoError(t, gdb.Model(&models.Customer{}).Where("id = ?", c.ID).Update("created_at", at(1, 1)).Error)
	done := testNow.Add(-30 * time.Minute)
	dbtest.Service(t, gdb, c.ID, dbtest.ServiceOpts{CreatedAt: testNow.Add(-3 * time.Hour), CompletedAt: &done})
	for i := 0; i < 4; i++ {
		dbtest.Service(t, gdb, c.ID, dbtest.ServiceOpts{CreatedAt: at(1, 1+i)})
	}

	acts, err := s.Activities(context.Background())
	require.NoError(t, err)
	require.Len(t, acts, activityLimit)
	require.Equal(t, ActivityServiceCompleted, acts[0].Type)
	require.Equal(t, "30 minutes ago", acts[0].TimeAgo)
	require.Equal(t, ActivityServiceCreated, acts[1].Type)
	require.Equal(t, "3 hours ago", acts[1].TimeAgo)
	for i := 1; i < len(acts); i++ {
		require.False(t, acts[i].Time.After(acts[i-1].Time))
	}
}
