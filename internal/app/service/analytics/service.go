// Package analytics derives read-only customer and technician views from
// tickets and their income records.
package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/fatflowers/repairdesk/internal/models"
	"github.com/fatflowers/repairdesk/pkg/types"
)

type Service struct {
	db  *gorm.DB
	now func() time.Time
}

func New(db *gorm.DB) *Service {
	return &Service{db: db, now: time.Now}
}

// loadServices returns tickets oldest first with their customer, technician
// and income record.
func (s *Service) loadServices(ctx context.Context, scope func(*gorm.DB) *gorm.DB) ([]models.Service, error) {
	var services []models.Service
	q := s.db.WithContext(ctx).
		Preload("Customer").
		Preload("Technician").
		Preload("FinancialRecord", "type = ?", types.FinancialRecordTypeIncome).
		Order("created_at ASC")
	if scope != nil {
		q = q.Scopes(scope)
	}
	if err := q.Find(&services).Error; err != nil {
		return nil, fmt.Errorf("failed to load services: %w", err)
	}
	return services, nil
}

func income(svc *models.Service) decimal.Decimal {
	if svc.FinancialRecord == nil {
		return decimal.Zero
	}
	return svc.FinancialRecord.Amount
}

func days(d time.Duration) int {
	return int(d.Hours() / 24)
}
