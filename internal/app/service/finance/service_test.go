package finance

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/fatflowers/repairdesk/internal/models"
	"github.com/fatflowers/repairdesk/internal/platform/db/dbtest"
	"github.com/fatflowers/repairdesk/pkg/apperr"
	"github.com/fatflowers/repairdesk/pkg/types"
)

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	gdb := dbtest.Open(t)
	return New(gdb, zap.NewNop().Sugar()), gdb
}

func TestUpsertServiceIncome_IsIdempotentPerService(t *testing.T) {
	s, gdb := newTestService(t)
	c := dbtest.Customer(t, gdb, "Ada", "")
	svc := dbtest.Service(t, gdb, c.ID, dbtest.ServiceOpts{Status: types.ServiceStatusDelivered})

	require.NoError(t, s.UpsertServiceIncome(gdb, svc, decimal.NewFromInt(100)))
	require.NoError(t, s.UpsertServiceIncome(gdb, svc, decimal.NewFromInt(150)))

	var recs []models.FinancialRecord
	require.NoError(t, gdb.Where("service_id = ?", svc.ID).Find(&recs).Error)
	require.Len(t, recs, 1)
	require.Equal(t, "150", recs[0].Amount.String())
	require.Equal(t, types.FinancialRecordTypeIncome, recs[0].Type)
	require.Contains(t, *recs[0].Description, svc.ServiceNumber)
}

func TestUpsertServiceIncome_SkipsNonPositive(t *testing.T) {
	s, gdb := newTestService(t)
	c := dbtest.Customer(t, gdb, "Ada", "")
	svc := dbtest.Service(t, gdb, c.ID, dbtest.ServiceOpts{})

	require.NoError(t, s.UpsertServiceIncome(gdb, svc, decimal.Zero))

	var n int64
	require.NoError(t, gdb.Model(&models.FinancialRecord{}).Count(&n).Error)
	require.Zero(t, n)
}

func TestCreate_Validation(t *testing.T) {
	s, gdb := newTestService(t)
	ctx := context.Background()

	_, err := s.Create(ctx, RecordInput{Amount: decimal.Zero, Type: "income"})
	require.ErrorIs(t, err, apperr.ErrInvalidArgument)

	_, err = s.Create(ctx, RecordInput{Amount: decimal.NewFromInt(10)})
	require.ErrorIs(t, err, apperr.ErrInvalidArgument)

	_, err = s.Create(ctx, RecordInput{Amount: decimal.NewFromInt(10), Type: "refund"})
	require.ErrorIs(t, err, apperr.ErrInvalidArgument)

	missing := "nope"
	_, err = s.Create(ctx, RecordInput{Amount: decimal.NewFromInt(10), Type: "income", ServiceID: &missing})
	require.ErrorIs(t, err, apperr.ErrInvalidArgument)

	c := dbtest.Customer(t, gdb, "Ada", "")
	svc := dbtest.Service(t, gdb, c.ID, dbtest.ServiceOpts{})
	dbtest.Record(t, gdb, types.FinancialRecordTypeIncome, "40", time.Now(), &svc.ID)
	_, err = s.Create(ctx, RecordInput{Amount: decimal.NewFromInt(10), Type: "income", ServiceID: &svc.ID})
	require.ErrorIs(t, err, apperr.ErrConflict)
}

func TestCRUD(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()
	desc := "rent"

	rec, err := s.Create(ctx, RecordInput{Amount: decimal.RequireFromString("1200.50"), Type: "expense", Description: &desc})
	require.NoError(t, err)
	require.Equal(t, types.FinancialRecordTypeExpense, rec.Type)
	require.Equal(t, "1200.5", rec.Amount.String())

	updated, err := s.Update(ctx, rec.ID, RecordInput{Amount: decimal.NewFromInt(1300), Type: "EXPENSE", Description: &desc})
	require.NoError(t, err)
	require.Equal(t, "1300", updated.Amount.String())

	_, err = s.Update(ctx, "missing", RecordInput{Amount: decimal.NewFromInt(1), Type: "INCOME"})
	require.ErrorIs(t, err, apperr.ErrNotFound)

	require.NoError(t, s.Delete(ctx, rec.ID))
	require.ErrorIs(t, s.Delete(ctx, rec.ID), apperr.ErrNotFound)
	_, err = s.Get(ctx, rec.ID)
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestList_FiltersAndSummary(t *testing.T) {
	s, gdb := newTestService(t)
	now := time.Date(2026, 5, 20, 15, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	dbtest.Record(t, gdb, types.FinancialRecordTypeIncome, "1500", now.Add(-time.Hour), nil)
	dbtest.Record(t, gdb, types.FinancialRecordTypeIncome, "500", now.AddDate(0, 0, -3), nil)
	dbtest.Record(t, gdb, types.FinancialRecordTypeExpense, "300", now.AddDate(0, 0, -2), nil)
	dbtest.Record(t, gdb, types.FinancialRecordTypeExpense, "900", now.AddDate(0, 0, -40), nil)

	all, err := s.List(context.Background(), ListFilter{}, types.PageQuery{})
	require.NoError(t, err)
	require.Len(t, all.Records, 4)
	require.Equal(t, "2000", all.Summary.Income.String())
	require.Equal(t, "1200", all.Summary.Expense.String())
	require.Equal(t, "800", all.Summary.Net.String())
	require.Equal(t, int64(4), all.Summary.TransactionCount)
	require.True(t, all.Records[0].RecordedAt.After(all.Records[1].RecordedAt))

	weekly, err := s.List(context.Background(), ListFilter{Period: "weekly"}, types.PageQuery{})
	require.NoError(t, err)
	require.Equal(t, int64(3), weekly.Pagination.Total)
	require.Equal(t, "1700", weekly.Summary.Net.String())

	daily, err := s.List(context.Background(), ListFilter{Type: "income", Period: "daily"}, types.PageQuery{})
	require.NoError(t, err)
	require.Len(t, daily.Records, 1)
	require.Equal(t, "0", daily.Summary.Expense.String())

	paged, err := s.List(context.Background(), ListFilter{}, types.PageQuery{Page: 2, Limit: 3})
	require.NoError(t, err)
	require.Len(t, paged.Records, 1)
	require.Equal(t, int64(2), paged.Pagination.Pages)
}

func TestPeriodStart(t *testing.T) {
	now := time.Date(2026, 5, 20, 15, 30, 0, 0, time.UTC)
	start, ok := PeriodStart(types.PeriodDaily, now)
	require.True(t, ok)
	require.Equal(t, time.Date(2026, 5, 20, 0, 0, 0, 0, time.UTC), start)

	start, ok = PeriodStart(types.PeriodMonthly, now)
	require.True(t, ok)
	require.Equal(t, now.AddDate(0, 0, -30), start)

	_, ok = PeriodStart(types.PeriodAll, now)
	require.False(t, ok)
}

func TestExport(t *testing.T) {
	s, gdb := newTestService(t)
	c := dbtest.Customer(t, gdb, "Grace", "")
	svc := dbtest.Service(t, gdb, c.ID, dbtest.ServiceOpts{Status: types.ServiceStatusDelivered})
	dbtest.Record(t, gdb, types.FinancialRecordTypeIncome, "250", time.Now(), &svc.ID)
	dbtest.Record(t, gdb, types.FinancialRecordTypeExpense, "50", time.Now().Add(-time.Minute), nil)

	f, err := s.Export(context.Background(), ListFilter{})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	out, err := excelize.OpenReader(&buf)
	require.NoError(t, err)

	header, err := out.GetCellValue(exportSheet, "A1")
	require.NoError(t, err)
	require.Equal(t, "Recorded At", header)

	svcNumber, err := out.GetCellValue(exportSheet, "E2")
	require.NoError(t, err)
	require.Equal(t, svc.ServiceNumber, svcNumber)
	customer, err := out.GetCellValue(exportSheet, "F2")
	require.NoError(t, err)
	require.Equal(t, "Grace", customer)

	net, err := out.GetCellValue(exportSheet, "C7")
	require.NoError(t, err)
	require.Equal(t, "200", net)
}
