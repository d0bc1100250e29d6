package customer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/fatflowers/repairdesk/internal/models"
	"github.com/fatflowers/repairdesk/pkg/apperr"
	"github.com/fatflowers/repairdesk/pkg/logctx"
	"github.com/fatflowers/repairdesk/pkg/tool"
)

type Service struct {
	db  *gorm.DB
	log *zap.SugaredLogger
	now func() time.Time
}

func New(db *gorm.DB, log *zap.SugaredLogger) *Service {
	return &Service{db: db, log: log, now: time.Now}
}

// Input is the body of create and update. Blank optional strings are stored
// as NULL.
type Input struct {
	Name    string  `json:"name"`
	Email   *string `json:"email"`
	Phone   string  `json:"phone"`
	Address *string `json:"address"`
}

func (in *Input) normalize() error {
	in.Name = strings.TrimSpace(in.Name)
	in.Phone = strings.TrimSpace(in.Phone)
	var missing []string
	if in.Name == "" {
		missing = append(missing, "name")
	}
	if in.Phone == "" {
		missing = append(missing, "phone")
	}
	if len(missing) > 0 {
		return apperr.Invalid("missing required fields: %s", strings.Join(missing, ", "))
	}
	in.Email = blankToNil(in.Email)
	in.Address = blankToNil(in.Address)
	if in.Email != nil && !strings.Contains(*in.Email, "@") {
		return apperr.Invalid("invalid email %q", *in.Email)
	}
	return nil
}

func blankToNil(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

// List returns customers newest first with a summary of their tickets.
// search matches name, email, phone or address case-insensitively.
func (s *Service) List(ctx context.Context, search string) ([]models.Customer, error) {
	q := s.db.WithContext(ctx).Model(&models.Customer{})
	if term := strings.ToLower(strings.TrimSpace(search)); term != "" {
		like := "%" + term + "%"
		q = q.Where(`(LOWER(name) LIKE ? OR LOWER(COALESCE(email, '')) LIKE ? OR LOWER(phone) LIKE ? OR LOWER(COALESCE(address, '')) LIKE ?)`,
			like, like, like, like)
	}
	customers := make([]models.Customer, 0)
	err := q.Preload("Services", func(db *gorm.DB) *gorm.DB {
		return db.Select("id", "customer_id", "service_number", "status", "created_at", "device_type", "brand", "model").
			Order("created_at DESC")
	}).Order("created_at DESC").Find(&customers).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list customers: %w", err)
	}
	return customers, nil
}

// Get returns a customer with all tickets newest first and their technician.
func (s *Service) Get(ctx context.Context, id string) (*models.Customer, error) {
	var c models.Customer
	err := s.db.WithContext(ctx).
		Preload("Services", func(db *gorm.DB) *gorm.DB { return db.Order("created_at DESC") }).
		Preload("Services.Technician").
		Where("id = ?", id).
		First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("customer", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load customer: %w", err)
	}
	return &c, nil
}

func (s *Service) Create(ctx context.Context, in Input) (*models.Customer, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}
	now := s.now()
	c := &models.Customer{
		ID:        tool.GenerateUUIDV7(),
		Name:      in.Name,
		Email:     in.Email,
		Phone:     in.Phone,
		Address:   in.Address,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.db.WithContext(ctx).Create(c).Error; err != nil {
		return nil, fmt.Errorf("failed to create customer: %w", err)
	}
	logctx.FromCtx(ctx, s.log).Infow("customer_created", "customer_id", c.ID)
	return c, nil
}

func (s *Service) Update(ctx context.Context, id string, in Input) (*models.Customer, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}
	res := s.db.WithContext(ctx).Model(&models.Customer{}).Where("id = ?", id).Updates(map[string]any{
		"name":       in.Name,
		"email":      in.Email,
		"phone":      in.Phone,
		"address":    in.Address,
		"updated_at": s.now(),
	})
	if res.Error != nil {
		return nil, fmt.Errorf("failed to update customer: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, apperr.NotFound("customer", id)
	}
	var c models.Customer
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&c).Error; err != nil {
		return nil, fmt.Errorf("failed to reload customer: %w", err)
	}
	return &c, nil
}

// Delete removes a customer that owns no tickets.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&models.Service{}).Where("customer_id = ?", id).Count(&n).Error; err != nil {
			return fmt.Errorf("failed to count services: %w", err)
		}
		if n > 0 {
			return apperr.Conflict("customer %s still has %d service(s)", id, n)
		}
		res := tx.Where("id = ?", id).Delete(&models.Customer{})
		if res.Error != nil {
			return fmt.Errorf("failed to delete customer: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return apperr.NotFound("customer", id)
		}
		logctx.FromCtx(ctx, s.log).Infow("customer_deleted", "customer_id", id)
		return nil
	})
}
