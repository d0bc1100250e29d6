package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fatflowers/repairdesk/internal/models"
	"github.com/fatflowers/repairdesk/pkg/apperr"
	"github.com/fatflowers/repairdesk/pkg/types"
)

// Get returns a ticket with customer, technician, income record and history
// (newest first).
func (s *Service) Get(ctx context.Context, id string) (*models.Service, error) {
	var svc models.Service
	err := s.db.WithContext(ctx).
		Preload("Customer").
		Preload("Technician").
		Preload("FinancialRecord").
		Preload("StatusHistory", func(db *gorm.DB) *gorm.DB {
			return db.Order("changed_at DESC").Order("id DESC")
		}).
		Where("id = ?", id).
		First(&svc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("service", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load service: %w", err)
	}
	return &svc, nil
}

type ListQuery struct {
	Search string `form:"search"`
	Status string `form:"status"`
	types.PageQuery
}

type ListResult struct {
	Services   []models.Service `json:"services"`
	Pagination types.Pagination `json:"pagination"`
}

// List pages through tickets newest first. Search matches ticket and device
// identifiers and the customer's name or phone, case-insensitively.
func (s *Service) List(ctx context.Context, q ListQuery) (*ListResult, error) {
	page := q.PageQuery.Normalize()

	base := func() *gorm.DB {
		tx := s.db.WithContext(ctx).Model(&models.Service{})
		if term := strings.ToLower(strings.TrimSpace(q.Search)); term != "" {
			like := "%" + term + "%"
			tx = tx.Joins("LEFT JOIN customers ON customers.id = services.customer_id").
				Where(`(LOWER(services.service_number) LIKE ? OR LOWER(services.brand) LIKE ? OR LOWER(services.model) LIKE ?
 OR LOWER(COALESCE(services.serial_number, '')) LIKE ? OR LOWER(COALESCE(services.imei, '')) LIKE ?
 OR LOWER(customers.name) LIKE ? OR LOWER(customers.phone) LIKE ?)`,
					like, like, like, like, like, like, like)
		}
		if q.Status != "" {
			tx = tx.Where("services.status = ?", q.Status)
		}
		return tx
	}

	var total int64
	if err := base().Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count services: %w", err)
	}

	services := make([]models.Service, 0)
	err := base().
		Preload("Customer").
		Preload("Technician").
		Order("services.created_at DESC").
		Offset(page.Offset()).
		Limit(page.Limit).
		Find(&services).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list services: %w", err)
	}
	return &ListResult{Services: services, Pagination: page.Result(total)}, nil
}

// searchableColumns are the only columns admin scans may filter or sort on.
var searchableColumns = map[string]bool{
	"id":             true,
	"service_number": true,
	"customer_id":    true,
	"technician_id":  true,
	"device_type":    true,
	"brand":          true,
	"model":          true,
	"serial_number":  true,
	"imei":           true,
	"status":         true,
	"estimated_fee":  true,
	"actual_fee":     true,
	"created_at":     true,
	"updated_at":     true,
	"completed_at":   true,
	"delivered_at":   true,
}

type ScanRequest struct {
	Filters   []*types.CommonFilter `json:"filters"`
	From      int                   `json:"from"`
	Size      int                   `json:"size"`
	SortBy    string                `json:"sort_by"`
	SortOrder string                `json:"sort_order"`
}

type ScanResponse struct {
	Items []models.Service `json:"items"`
	Total int64            `json:"total"`
}

// filtersAnd combines multiple CommonFilter into a single clause.Expression
type filtersAnd struct{ filters []*types.CommonFilter }

func (w filtersAnd) Build(builder clause.Builder) {
	if len(w.filters) == 0 {
		builder.WriteString("1=1")
		return
	}
	exprs := make([]clause.Expression, 0, len(w.filters))
	for _, f := range w.filters {
		exprs = append(exprs, f)
	}
	clause.And(exprs...).Build(builder)
}

// Search implements paginated admin listing with filters
func (s *Service) Search(ctx context.Context, req *ScanRequest) (*ScanResponse, error) {
	if req == nil {
		return nil, apperr.Invalid("empty search request")
	}
	for _, f := range req.Filters {
		if f == nil {
			continue
		}
		if err := f.Validate(searchableColumns); err != nil {
			return nil, apperr.Invalid("%v", err)
		}
	}
	if req.SortBy != "" && !searchableColumns[req.SortBy] {
		return nil, apperr.Invalid("cannot sort by %q", req.SortBy)
	}
	if req.Size <= 0 {
		req.Size = types.DefaultPageSize
	}
	if req.Size > types.MaxPageSize {
		req.Size = types.MaxPageSize
	}
	if req.From < 0 {
		req.From = 0
	}

	filters := make([]*types.CommonFilter, 0, len(req.Filters))
	for _, f := range req.Filters {
		if f != nil {
			filters = append(filters, f)
		}
	}

	scope := func() *gorm.DB {
		tx := s.db.WithContext(ctx).Model(&models.Service{})
		if len(filters) > 0 {
			tx = tx.Where(clause.Where{Exprs: []clause.Expression{filtersAnd{filters: filters}}})
		}
		return tx
	}

	var total int64
	if err := scope().Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count services: %w", err)
	}

	sortBy := req.SortBy
	if sortBy == "" {
		sortBy = "created_at"
	}
	rows := make([]models.Service, 0)
	err := scope().Preload("Customer").Preload("Technician").
		Order(clause.OrderBy{Columns: []clause.OrderByColumn{{Column: clause.Column{Name: sortBy}, Desc: req.SortOrder != "asc"}}}).
		Offset(req.From).
		Limit(req.Size).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to search services: %w", err)
	}
	return &ScanResponse{Items: rows, Total: total}, nil
}

type Stats struct {
	ActiveServices    int64           `json:"activeServices"`
	CompletedServices int64           `json:"completedServices"`
	PendingServices   int64           `json:"pendingServices"`
	MonthlyRevenue    decimal.Decimal `json:"monthlyRevenue" swaggertype:"number"`
	ActiveChange      float64         `json:"activeChange"`
	CompletedChange   float64         `json:"completedChange"`
	PendingChange     float64         `json:"pendingChange"`
	RevenueChange     float64         `json:"revenueChange"`
}

var (
	activeStatuses = []types.ServiceStatus{
		types.ServiceStatusReceived, types.ServiceStatusDiagnosisPending, types.ServiceStatusCustomerApprovalPending,
		types.ServiceStatusPartsPending, types.ServiceStatusRepairing,
	}
	completedStatuses = []types.ServiceStatus{types.ServiceStatusCompletedReadyForDelivery, types.ServiceStatusDelivered}
	pendingStatuses   = []types.ServiceStatus{types.ServiceStatusCustomerApprovalPending, types.ServiceStatusPartsPending}
)

// PercentChange is (cur-prev)/prev in percent, zero when prev is zero.
func PercentChange(cur, prev float64) float64 {
	if prev <= 0 {
		return 0
	}
	return (cur - prev) / prev * 100
}

// Stats counts the current queue and compares it with tickets opened last
// month, plus revenue delivered this month against last month.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	now := s.now()
	startOfMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	startOfLastMonth := startOfMonth.AddDate(0, -1, 0)

	count := func(statuses []types.ServiceStatus, lastMonth bool) (int64, error) {
		var n int64
		q := s.db.WithContext(ctx).Model(&models.Service{}).Where("status IN ?", statuses)
		if lastMonth {
			q = q.Where("created_at >= ? AND created_at < ?", startOfLastMonth, startOfMonth)
		}
		err := q.Count(&n).Error
		return n, err
	}
	revenue := func(from, to time.Time) (decimal.Decimal, error) {
		var total decimal.Decimal
		q := s.db.WithContext(ctx).Model(&models.Service{}).
			Select("COALESCE(SUM(actual_fee), 0)").
			Where("status = ? AND delivered_at >= ?", types.ServiceStatusDelivered, from)
		if !to.IsZero() {
			q = q.Where("delivered_at < ?", to)
		}
		err := q.Row().Scan(&total)
		return total, err
	}

	var (
		st                                Stats
		lastActive, lastDone, lastPending int64
		lastRevenue                       decimal.Decimal
		err                               error
	)
	if st.ActiveServices, err = count(activeStatuses, false); err != nil {
		return nil, fmt.Errorf("failed to count active services: %w", err)
	}
	if lastActive, err = count(activeStatuses, true); err != nil {
		return nil, fmt.Errorf("failed to count active services: %w", err)
	}
	if st.CompletedServices, err = count(completedStatuses, false); err != nil {
		return nil, fmt.Errorf("failed to count completed services: %w", err)
	}
	if lastDone, err = count(completedStatuses, true); err != nil {
		return nil, fmt.Errorf("failed to count completed services: %w", err)
	}
	if st.PendingServices, err = count(pendingStatuses, false); err != nil {
		return nil, fmt.Errorf("failed to count pending services: %w", err)
	}
	if lastPending, err = count(pendingStatuses, true); err != nil {
		return nil, fmt.Errorf("failed to count pending services: %w", err)
	}
	if st.MonthlyRevenue, err = revenue(startOfMonth, time.Time{}); err != nil {
		return nil, fmt.Errorf("failed to sum revenue: %w", err)
	}
	if lastRevenue, err = revenue(startOfLastMonth, startOfMonth); err != nil {
		return nil, fmt.Errorf("failed to sum revenue: %w", err)
	}

	st.ActiveChange = PercentChange(float64(st.ActiveServices), float64(lastActive))
	st.CompletedChange = PercentChange(float64(st.CompletedServices), float64(lastDone))
	st.PendingChange = PercentChange(float64(st.PendingServices), float64(lastPending))
	st.RevenueChange = PercentChange(st.MonthlyRevenue.InexactFloat64(), lastRevenue.InexactFloat64())
	return &st, nil
}
