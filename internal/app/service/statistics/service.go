// Package statistics builds the ledger reports and the dashboard figures.
// Independent queries of one response run concurrently.
package statistics

import (
	"context"
	"fmt"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/fatflowers/repairdesk/internal/models"
	"github.com/fatflowers/repairdesk/pkg/apperr"
	"github.com/fatflowers/repairdesk/pkg/metrics"
	"github.com/fatflowers/repairdesk/pkg/types"
)

type ReportType string

const (
	ReportTypeMonthly ReportType = "monthly"
	ReportTypeYearly  ReportType = "yearly"
)

type ReportRequest struct {
	Type  ReportType `form:"type"`
	Year  int        `form:"year"`
	Month int        `form:"month"` // 1-12, monthly reports only
}

type Totals struct {
	Income           decimal.Decimal `json:"totalIncome" swaggertype:"number"`
	Expense          decimal.Decimal `json:"totalExpense" swaggertype:"number"`
	Net              decimal.Decimal `json:"netProfit" swaggertype:"number"`
	TransactionCount int64           `json:"transactionCount"`
}

type ServiceIncome struct {
	ServiceID     string          `json:"serviceId"`
	ServiceNumber string          `json:"serviceNumber"`
	Amount        decimal.Decimal `json:"amount" swaggertype:"number"`
	Count         int64           `json:"count"`
}

// Bucket is one day of a monthly report or one month of a yearly report.
type Bucket struct {
	Label            string          `json:"label"`
	Income           decimal.Decimal `json:"income" swaggertype:"number"`
	Expense          decimal.Decimal `json:"expense" swaggertype:"number"`
	Net              decimal.Decimal `json:"net" swaggertype:"number"`
	TransactionCount int64           `json:"transactionCount"`
}

type Report struct {
	Type          ReportType      `json:"type"`
	Period        string          `json:"period"`
	Summary       Totals          `json:"summary"`
	ServiceIncome []ServiceIncome `json:"serviceAnalysis"`
	Breakdown     []Bucket        `json:"breakdown"`
}

type reportPart string

const (
	partSummary   reportPart = "summary"
	partServices  reportPart = "service_income"
	partBreakdown reportPart = "breakdown"
)

// Service provides report and dashboard queries
type Service struct {
	db  *gorm.DB
	now func() time.Time
}

func New(db *gorm.DB) *Service { return &Service{db: db, now: time.Now} }

func (s *Service) normalize(req ReportRequest) (ReportRequest, time.Time, time.Time, error) {
	now := s.now()
	if req.Type == "" {
		req.Type = ReportTypeMonthly
	}
	if req.Year == 0 {
		req.Year = now.Year()
	}
	if req.Year < 1970 || req.Year > 9999 {
		return req, time.Time{}, time.Time{}, apperr.Invalid("invalid year %d", req.Year)
	}
	switch req.Type {
	case ReportTypeMonthly:
		if req.Month == 0 {
			req.Month = int(now.Month())
		}
		if req.Month < 1 || req.Month > 12 {
			return req, time.Time{}, time.Time{}, apperr.Invalid("month must be between 1 and 12")
		}
		start := time.Date(req.Year, time.Month(req.Month), 1, 0, 0, 0, 0, now.Location())
		return req, start, start.AddDate(0, 1, 0), nil
	case ReportTypeYearly:
		start := time.Date(req.Year, 1, 1, 0, 0, 0, 0, now.Location())
		return req, start, start.AddDate(1, 0, 0), nil
	default:
		return req, time.Time{}, time.Time{}, apperr.Invalid("unknown report type %q", req.Type)
	}
}

// Report totals the ledger over a calendar month or year.
func (s *Service) Report(ctx context.Context, req ReportRequest) (*Report, error) {
	req, start, end, err := s.normalize(req)
	if err != nil {
		return nil, err
	}

	defer metrics.ObserveSince(metrics.MetricsBusinessProcess, time.Now(), "report", string(req.Type))
	parts, err := fanOut(ctx, []reportPart{partSummary, partServices, partBreakdown}, func(ctx context.Context, p reportPart) (any, error) {
		switch p {
		case partSummary:
			return s.totals(ctx, start, end)
		case partServices:
			return s.serviceIncome(ctx, start, end)
		default:
			return s.breakdown(ctx, req.Type, start, end)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build report: %w", err)
	}

	r := &Report{
		Type:          req.Type,
		Summary:       parts[partSummary].(Totals),
		ServiceIncome: parts[partServices].([]ServiceIncome),
		Breakdown:     parts[partBreakdown].([]Bucket),
	}
	if req.Type == ReportTypeMonthly {
		r.Period = start.Format("2006-01")
	} else {
		r.Period = start.Format("2006")
	}
	return r, nil
}

func (s *Service) totals(ctx context.Context, start, end time.Time) (Totals, error) {
	var rows []struct {
		Type  types.FinancialRecordType
		Total decimal.Decimal
		Count int64
	}
	err := s.db.WithContext(ctx).Model(&models.FinancialRecord{}).
		Select("type, COALESCE(SUM(amount), 0) AS total, COUNT(*) AS count").
		Where("recorded_at >= ? AND recorded_at < ?", start, end).
		Group("type").
		Scan(&rows).Error
	if err != nil {
		return Totals{}, err
	}
	var t Totals
	for _, r := range rows {
		switch r.Type {
		case types.FinancialRecordTypeIncome:
			t.Income = t.Income.Add(r.Total)
		case types.FinancialRecordTypeExpense:
			t.Expense = t.Expense.Add(r.Total)
		}
		t.TransactionCount += r.Count
	}
	t.Net = t.Income.Sub(t.Expense)
	return t, nil
}

func (s *Service) serviceIncome(ctx context.Context, start, end time.Time) ([]ServiceIncome, error) {
	rows := make([]ServiceIncome, 0)
	err := s.db.WithContext(ctx).Model(&models.FinancialRecord{}).
		Select("financial_records.service_id, services.service_number, COALESCE(SUM(financial_records.amount), 0) AS amount, COUNT(*) AS count").
		Joins("JOIN services ON services.id = financial_records.service_id").
		Where("financial_records.type = ?", types.FinancialRecordTypeIncome).
		Where("financial_records.recorded_at >= ? AND financial_records.recorded_at < ?", start, end).
		Group("financial_records.service_id, services.service_number").
		Order("amount DESC").
		Scan(&rows).Error
	return rows, err
}

// breakdown buckets rows in Go so the same code runs on every driver.
func (s *Service) breakdown(ctx context.Context, typ ReportType, start, end time.Time) ([]Bucket, error) {
	var recs []models.FinancialRecord
	err := s.db.WithContext(ctx).
		Select("type", "amount", "recorded_at").
		Where("recorded_at >= ? AND recorded_at < ?", start, end).
		Find(&recs).Error
	if err != nil {
		return nil, err
	}

	var buckets []Bucket
	index := func(t time.Time) int { return int(t.In(start.Location()).Month()) - 1 }
	if typ == ReportTypeMonthly {
		for d := start; d.Before(end); d = d.AddDate(0, 0, 1) {
			buckets = append(buckets, Bucket{Label: d.Format(time.DateOnly)})
		}
		index = func(t time.Time) int { return t.In(start.Location()).Day() - 1 }
	} else {
		for m := start; m.Before(end); m = m.AddDate(0, 1, 0) {
			buckets = append(buckets, Bucket{Label: m.Format("2006-01")})
		}
	}

	for _, r := range recs {
		i := index(r.RecordedAt)
		if i < 0 || i >= len(buckets) {
			continue
		}
		b := &buckets[i]
		if r.Type == types.FinancialRecordTypeIncome {
			b.Income = b.Income.Add(r.Amount)
		} else {
			b.Expense = b.Expense.Add(r.Amount)
		}
		b.TransactionCount++
	}
	for i := range buckets {
		buckets[i].Net = buckets[i].Income.Sub(buckets[i].Expense)
	}
	return buckets, nil
}

type StatusCount struct {
	Status types.ServiceStatus `json:"status"`
	Count  int64               `json:"count"`
}

type MonthRevenue struct {
	Month   string          `json:"month"`
	Revenue decimal.Decimal `json:"revenue" swaggertype:"number"`
}

type DashboardChanges struct {
	TodayServiceChange float64 `json:"todayServiceChange"`
	RevenueChange      float64 `json:"revenueChange"`
}

type Dashboard struct {
	TodayServices     int64            `json:"todayServices"`
	PendingServices   int64            `json:"pendingServices"`
	CompletedServices int64            `json:"completedServices"`
	TodayRevenue      decimal.Decimal  `json:"todayRevenue" swaggertype:"number"`
	ServicesByStatus  []StatusCount    `json:"servicesByStatus"`
	MonthlyRevenue    []MonthRevenue   `json:"monthlyRevenue"`
	Changes           DashboardChanges `json:"changes"`
}

type dashboardPart string

const (
	dashTodayServices     dashboardPart = "today_services"
	dashYesterdayServices dashboardPart = "yesterday_services"
	dashPending           dashboardPart = "pending"
	dashCompleted         dashboardPart = "completed"
	dashTodayRevenue      dashboardPart = "today_revenue"
	dashYesterdayRevenue  dashboardPart = "yesterday_revenue"
	dashByStatus          dashboardPart = "by_status"
	dashMonthlyRevenue    dashboardPart = "monthly_revenue"
)

var dashboardParts = []dashboardPart{
	dashTodayServices, dashYesterdayServices, dashPending, dashCompleted,
	dashTodayRevenue, dashYesterdayRevenue, dashByStatus, dashMonthlyRevenue,
}

var (
	pendingStatuses  = lo.Filter(types.AllServiceStatuses, func(s types.ServiceStatus, _ int) bool { return s.Active() })
	finishedStatuses = lo.Filter(types.AllServiceStatuses, func(s types.ServiceStatus, _ int) bool { return s.Finished() })
)

// percentChange is (cur-prev)/prev in percent, zero without a baseline.
func percentChange(cur, prev float64) float64 {
	if prev <= 0 {
		return 0
	}
	return (cur - prev) / prev * 100
}

// Dashboard compares today with yesterday and summarizes the queue.
func (s *Service) Dashboard(ctx context.Context) (*Dashboard, error) {
	now := s.now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	yesterday := today.AddDate(0, 0, -1)
	tomorrow := today.AddDate(0, 0, 1)
	firstMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location()).AddDate(0, -5, 0)

	defer metrics.ObserveSince(metrics.MetricsBusinessProcess, time.Now(), "dashboard", "stats")
	parts, err := fanOut(ctx, dashboardParts, func(ctx context.Context, p dashboardPart) (any, error) {
		switch p {
		case dashTodayServices:
			return s.countServices(ctx, "created_at >= ? AND created_at < ?", today, tomorrow)
		case dashYesterdayServices:
			return s.countServices(ctx, "created_at >= ? AND created_at < ?", yesterday, today)
		case dashPending:
			return s.countServices(ctx, "status IN ?", pendingStatuses)
		case dashCompleted:
			return s.countServices(ctx, "status IN ?", finishedStatuses)
		case dashTodayRevenue:
			return s.deliveredRevenue(ctx, today, tomorrow)
		case dashYesterdayRevenue:
			return s.deliveredRevenue(ctx, yesterday, today)
		case dashByStatus:
			return s.byStatus(ctx)
		default:
			return s.monthlyRevenue(ctx, firstMonth, tomorrow)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build dashboard: %w", err)
	}

	d := &Dashboard{
		TodayServices:     parts[dashTodayServices].(int64),
		PendingServices:   parts[dashPending].(int64),
		CompletedServices: parts[dashCompleted].(int64),
		TodayRevenue:      parts[dashTodayRevenue].(decimal.Decimal),
		ServicesByStatus:  parts[dashByStatus].([]StatusCount),
		MonthlyRevenue:    parts[dashMonthlyRevenue].([]MonthRevenue),
	}
	d.Changes.TodayServiceChange = percentChange(float64(d.TodayServices), float64(parts[dashYesterdayServices].(int64)))
	d.Changes.RevenueChange = percentChange(d.TodayRevenue.InexactFloat64(), parts[dashYesterdayRevenue].(decimal.Decimal).InexactFloat64())
	return d, nil
}

func (s *Service) countServices(ctx context.Context, query string, args ...any) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.Service{}).Where(query, args...).Count(&n).Error
	return n, err
}

func (s *Service) deliveredRevenue(ctx context.Context, from, to time.Time) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := s.db.WithContext(ctx).Model(&models.Service{}).
		Select("COALESCE(SUM(actual_fee), 0)").
		Where("status = ? AND delivered_at >= ? AND delivered_at < ?", types.ServiceStatusDelivered, from, to).
		Row().Scan(&total)
	return total, err
}

func (s *Service) byStatus(ctx context.Context) ([]StatusCount, error) {
	rows := make([]StatusCount, 0)
	err := s.db.WithContext(ctx).Model(&models.Service{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Order("status").
		Scan(&rows).Error
	return rows, err
}

// monthlyRevenue sums delivered fees per calendar month, oldest first,
// including months without deliveries.
func (s *Service) monthlyRevenue(ctx context.Context, from, to time.Time) ([]MonthRevenue, error) {
	var delivered []models.Service
	err := s.db.WithContext(ctx).
		Select("actual_fee", "delivered_at").
		Where("status = ? AND delivered_at >= ? AND delivered_at < ?", types.ServiceStatusDelivered, from, to).
		Find(&delivered).Error
	if err != nil {
		return nil, err
	}

	sums := map[string]decimal.Decimal{}
	for _, svc := range delivered {
		if svc.DeliveredAt == nil || !svc.ActualFee.Valid {
			continue
		}
		key := svc.DeliveredAt.In(from.Location()).Format("2006-01")
		sums[key] = sums[key].Add(svc.ActualFee.Decimal)
	}

	var out []MonthRevenue
	for m := from; m.Before(to); m = m.AddDate(0, 1, 0) {
		key := m.Format("2006-01")
		out = append(out, MonthRevenue{Month: key, Revenue: sums[key]})
	}
	return out, nil
}
