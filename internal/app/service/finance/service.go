package finance

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fatflowers/repairdesk/internal/models"
	"github.com/fatflowers/repairdesk/pkg/apperr"
	"github.com/fatflowers/repairdesk/pkg/logctx"
	"github.com/fatflowers/repairdesk/pkg/tool"
	"github.com/fatflowers/repairdesk/pkg/types"
)

type Service struct {
	db  *gorm.DB
	log *zap.SugaredLogger
	now func() time.Time
}

func New(db *gorm.DB, log *zap.SugaredLogger) *Service {
	return &Service{db: db, log: log, now: time.Now}
}

// RecordInput is the body accepted by create and update.
type RecordInput struct {
	Amount      decimal.Decimal `json:"amount" swaggertype:"number"`
	Type        string          `json:"type"`
	Description *string         `json:"description"`
	ServiceID   *string         `json:"serviceId"`
}

func (in *RecordInput) validate() (types.FinancialRecordType, error) {
	if !in.Amount.IsPositive() {
		return "", apperr.Invalid("amount must be greater than zero")
	}
	t := types.FinancialRecordType(strings.ToUpper(strings.TrimSpace(in.Type)))
	if t == "" {
		return "", apperr.Invalid("type is required")
	}
	if !t.Valid() {
		return "", apperr.Invalid("unknown record type %q", in.Type)
	}
	if in.ServiceID != nil && *in.ServiceID == "" {
		in.ServiceID = nil
	}
	return t, nil
}

// ListFilter selects ledger rows by type and trailing period.
type ListFilter struct {
	Type   string `form:"type"`
	Period string `form:"period"`
}

type Summary struct {
	Income           decimal.Decimal `json:"income" swaggertype:"number"`
	Expense          decimal.Decimal `json:"expense" swaggertype:"number"`
	Net              decimal.Decimal `json:"net" swaggertype:"number"`
	TransactionCount int64           `json:"transactionCount"`
}

type ListResult struct {
	Records    []models.FinancialRecord `json:"records"`
	Pagination types.Pagination         `json:"pagination"`
	Summary    Summary                  `json:"summary"`
}

// PeriodStart returns the lower bound of a trailing period. The second result
// is false for "all" and unknown periods, which apply no bound.
func PeriodStart(p types.Period, now time.Time) (time.Time, bool) {
	switch p {
	case types.PeriodDaily:
		y, m, d := now.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, now.Location()), true
	case types.PeriodWeekly:
		return now.AddDate(0, 0, -7), true
	case types.PeriodMonthly:
		return now.AddDate(0, 0, -30), true
	case types.PeriodYearly:
		return now.AddDate(-1, 0, 0), true
	default:
		return time.Time{}, false
	}
}

func (s *Service) filtered(ctx context.Context, f ListFilter) *gorm.DB {
	q := s.db.WithContext(ctx).Model(&models.FinancialRecord{})
	if t := strings.ToUpper(f.Type); t != "" && t != "ALL" {
		q = q.Where("type = ?", t)
	}
	if start, ok := PeriodStart(types.Period(strings.ToLower(f.Period)), s.now()); ok {
		q = q.Where("recorded_at >= ?", start)
	}
	return q
}

func (s *Service) List(ctx context.Context, f ListFilter, page types.PageQuery) (*ListResult, error) {
	page = page.Normalize()

	var total int64
	if err := s.filtered(ctx, f).Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count financial records: %w", err)
	}

	records := make([]models.FinancialRecord, 0)
	err := s.filtered(ctx, f).
		Preload("Service.Customer").
		Order("recorded_at DESC").
		Offset(page.Offset()).
		Limit(page.Limit).
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list financial records: %w", err)
	}

	summary, err := s.summarize(ctx, f)
	if err != nil {
		return nil, err
	}
	summary.TransactionCount = total

	return &ListResult{Records: records, Pagination: page.Result(total), Summary: *summary}, nil
}

type typeTotal struct {
	Type  types.FinancialRecordType
	Total decimal.Decimal
}

func (s *Service) summarize(ctx context.Context, f ListFilter) (*Summary, error) {
	var rows []typeTotal
	err := s.filtered(ctx, f).
		Select("type, COALESCE(SUM(amount), 0) AS total").
		Group("type").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to summarize financial records: %w", err)
	}
	sum := &Summary{Income: decimal.Zero, Expense: decimal.Zero}
	for _, r := range rows {
		switch r.Type {
		case types.FinancialRecordTypeIncome:
			sum.Income = r.Total
		case types.FinancialRecordTypeExpense:
			sum.Expense = r.Total
		}
	}
	sum.Net = sum.Income.Sub(sum.Expense)
	return sum, nil
}

func (s *Service) Get(ctx context.Context, id string) (*models.FinancialRecord, error) {
	var rec models.FinancialRecord
	err := s.db.WithContext(ctx).Preload("Service.Customer").Where("id = ?", id).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("financial record", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load financial record: %w", err)
	}
	return &rec, nil
}

// ensureServiceFree rejects linking a record to a ticket that already owns one.
func ensureServiceFree(tx *gorm.DB, serviceID *string, exceptID string) error {
	if serviceID == nil {
		return nil
	}
	var svcCount int64
	if err := tx.Model(&models.Service{}).Where("id = ?", *serviceID).Count(&svcCount).Error; err != nil {
		return fmt.Errorf("failed to check service: %w", err)
	}
	if svcCount == 0 {
		return apperr.Invalid("service %s does not exist", *serviceID)
	}
	q := tx.Model(&models.FinancialRecord{}).Where("service_id = ?", *serviceID)
	if exceptID != "" {
		q = q.Where("id <> ?", exceptID)
	}
	var n int64
	if err := q.Count(&n).Error; err != nil {
		return fmt.Errorf("failed to check service record: %w", err)
	}
	if n > 0 {
		return apperr.Conflict("service %s already has a financial record", *serviceID)
	}
	return nil
}

func (s *Service) Create(ctx context.Context, in RecordInput) (*models.FinancialRecord, error) {
	t, err := in.validate()
	if err != nil {
		return nil, err
	}
	rec := &models.FinancialRecord{
		ID:          tool.GenerateUUIDV7(),
		Amount:      in.Amount,
		Type:        t,
		Description: in.Description,
		ServiceID:   in.ServiceID,
		RecordedAt:  s.now(),
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureServiceFree(tx, in.ServiceID, ""); err != nil {
			return err
		}
		return tx.Create(rec).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create financial record: %w", err)
	}
	logctx.FromCtx(ctx, s.log).Infow("financial_record_created", "id", rec.ID, "type", rec.Type, "amount", rec.Amount.String())
	return s.Get(ctx, rec.ID)
}

func (s *Service) Update(ctx context.Context, id string, in RecordInput) (*models.FinancialRecord, error) {
	t, err := in.validate()
	if err != nil {
		return nil, err
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.FinancialRecord
		if err := tx.Where("id = ?", id).First(&existing).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("financial record", id)
			}
			return err
		}
		if err := ensureServiceFree(tx, in.ServiceID, id); err != nil {
			return err
		}
		return tx.Model(&existing).Updates(map[string]any{
			"amount":      in.Amount,
			"type":        t,
			"description": in.Description,
			"service_id":  in.ServiceID,
		}).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update financial record: %w", err)
	}
	return s.Get(ctx, id)
}

func (s *Service) Delete(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&models.FinancialRecord{})
	if res.Error != nil {
		return fmt.Errorf("failed to delete financial record: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("financial record", id)
	}
	logctx.FromCtx(ctx, s.log).Infow("financial_record_deleted", "id", id)
	return nil
}

// UpsertServiceIncome writes the single automatic income row of a ticket.
// It must run on the caller's transaction so the ledger entry commits or
// rolls back with the status change that produced it.
func (s *Service) UpsertServiceIncome(tx *gorm.DB, svc *models.Service, amount decimal.Decimal) error {
	if svc == nil || !amount.IsPositive() {
		return nil
	}
	desc := fmt.Sprintf("Service income - %s", svc.ServiceNumber)
	serviceID := svc.ID
	rec := &models.FinancialRecord{
		ID:          tool.GenerateUUIDV7(),
		Amount:      amount,
		Type:        types.FinancialRecordTypeIncome,
		Description: &desc,
		ServiceID:   &serviceID,
		RecordedAt:  s.now(),
	}
	err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "service_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"amount", "type", "description", "recorded_at", "updated_at"}),
	}).Create(rec).Error
	if err != nil {
		return fmt.Errorf("failed to upsert service income: %w", err)
	}
	return nil
}
