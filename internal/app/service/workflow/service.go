package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/fatflowers/repairdesk/internal/app/service/notifier"
	"github.com/fatflowers/repairdesk/internal/models"
	"github.com/fatflowers/repairdesk/internal/platform/broker"
	"github.com/fatflowers/repairdesk/pkg/apperr"
	"github.com/fatflowers/repairdesk/pkg/config"
	"github.com/fatflowers/repairdesk/pkg/logctx"
	"github.com/fatflowers/repairdesk/pkg/metrics"
	"github.com/fatflowers/repairdesk/pkg/tool"
	"github.com/fatflowers/repairdesk/pkg/types"
)

const (
	SystemActor         = "system"
	createdNote         = "Service ticket created"
	serviceNumberTries  = 5
	defaultNumberPrefix = "SRV"
)

// Notifier queues a customer notification without blocking the caller.
type Notifier interface {
	Dispatch(ctx context.Context, req notifier.Request)
}

// IncomeRecorder writes the automatic income row of a delivered ticket on
// the caller's transaction.
type IncomeRecorder interface {
	UpsertServiceIncome(tx *gorm.DB, svc *models.Service, amount decimal.Decimal) error
}

type Service struct {
	db        *gorm.DB
	log       *zap.SugaredLogger
	cfg       config.WorkflowConfig
	ledger    IncomeRecorder
	notifier  Notifier
	publisher broker.Publisher
	now       func() time.Time
}

func New(db *gorm.DB, log *zap.SugaredLogger, cfg config.WorkflowConfig, ledger IncomeRecorder, n Notifier, pub broker.Publisher) *Service {
	if cfg.ServiceNumberPrefix == "" {
		cfg.ServiceNumberPrefix = defaultNumberPrefix
	}
	return &Service{db: db, log: log, cfg: cfg, ledger: ledger, notifier: n, publisher: pub, now: time.Now}
}

type CreateRequest struct {
	CustomerID         string              `json:"customerId"`
	DeviceType         types.DeviceType    `json:"deviceType"`
	Brand              string              `json:"brand"`
	Model              string              `json:"model"`
	SerialNumber       *string             `json:"serialNumber"`
	IMEI               *string             `json:"imei"`
	ProblemDescription string              `json:"problemDescription"`
	Accessories        *string             `json:"accessories"`
	PhysicalCondition  *string             `json:"physicalCondition"`
	EstimatedFee       decimal.NullDecimal `json:"estimatedFee" swaggertype:"number"`
	TechnicianID       *string             `json:"technicianId"`
}

func (r *CreateRequest) validate() error {
	var missing []string
	if strings.TrimSpace(r.CustomerID) == "" {
		missing = append(missing, "customerId")
	}
	if r.DeviceType == "" {
		missing = append(missing, "deviceType")
	}
	if strings.TrimSpace(r.Brand) == "" {
		missing = append(missing, "brand")
	}
	if strings.TrimSpace(r.Model) == "" {
		missing = append(missing, "model")
	}
	if strings.TrimSpace(r.ProblemDescription) == "" {
		missing = append(missing, "problemDescription")
	}
	if len(missing) > 0 {
		return apperr.Invalid("missing required fields: %s", strings.Join(missing, ", "))
	}
	if !r.DeviceType.Valid() {
		return apperr.Invalid("unknown device type %q", r.DeviceType)
	}
	if r.EstimatedFee.Valid && r.EstimatedFee.Decimal.IsNegative() {
		return apperr.Invalid("estimatedFee must not be negative")
	}
	return nil
}

// StatusUpdate is the body of a status change.
type StatusUpdate struct {
	Status       types.ServiceStatus `json:"status"`
	Notes        *string             `json:"notes"`
	TechnicianID *string             `json:"technicianId"`
	// ActualFee is only applied when entering DELIVERED, and only when
	// positive; a zero fee leaves the estimate as the amount owed.
	ActualFee decimal.NullDecimal `json:"actualFee" swaggertype:"number"`
}

// ServiceUpdate is a partial edit. Nil fields are left untouched; an empty
// technicianId unassigns the technician.
type ServiceUpdate struct {
	CustomerID         *string              `json:"customerId"`
	DeviceType         *types.DeviceType    `json:"deviceType"`
	Brand              *string              `json:"brand"`
	Model              *string              `json:"model"`
	SerialNumber       *string              `json:"serialNumber"`
	IMEI               *string              `json:"imei"`
	ProblemDescription *string              `json:"problemDescription"`
	Accessories        *string              `json:"accessories"`
	PhysicalCondition  *string              `json:"physicalCondition"`
	EstimatedFee       *decimal.Decimal     `json:"estimatedFee" swaggertype:"number"`
	ActualFee          *decimal.Decimal     `json:"actualFee" swaggertype:"number"`
	Status             *types.ServiceStatus `json:"status"`
	Notes              *string              `json:"notes"`
	TechnicianID       *string              `json:"technicianId"`
}

func actorOr(actor, fallback string) string {
	if strings.TrimSpace(actor) == "" {
		return fallback
	}
	return actor
}

func (s *Service) CreateService(ctx context.Context, actor string, req CreateRequest) (*models.Service, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	actor = actorOr(actor, SystemActor)
	now := s.now()

	svc := &models.Service{
		ID:                 tool.GenerateUUIDV7(),
		CustomerID:         req.CustomerID,
		TechnicianID:       nonEmpty(req.TechnicianID),
		DeviceType:         req.DeviceType,
		Brand:              strings.TrimSpace(req.Brand),
		Model:              strings.TrimSpace(req.Model),
		SerialNumber:       req.SerialNumber,
		IMEI:               req.IMEI,
		ProblemDescription: req.ProblemDescription,
		Accessories:        req.Accessories,
		PhysicalCondition:  req.PhysicalCondition,
		EstimatedFee:       req.EstimatedFee,
		Status:             types.ServiceStatusReceived,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureCustomer(tx, svc.CustomerID); err != nil {
			return err
		}
		if err := ensureTechnician(tx, svc.TechnicianID); err != nil {
			return err
		}
		number, err := s.nextServiceNumber(tx, now)
		if err != nil {
			return err
		}
		svc.ServiceNumber = number
		if err := tx.Create(svc).Error; err != nil {
			return apperr.Internal("insert service", err)
		}
		return appendHistory(tx, svc.ID, types.ServiceStatusReceived, createdNote, actor, now)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create service: %w", err)
	}

	logctx.FromCtx(ctx, s.log).Infow("service_created", "service_id", svc.ID, "service_number", svc.ServiceNumber, "actor", actor)
	s.publish(ctx, broker.StatusChanged{
		ServiceID:     svc.ID,
		ServiceNumber: svc.ServiceNumber,
		To:            types.ServiceStatusReceived,
		Actor:         actor,
		ChangedAt:     now,
	})
	created, err := s.Get(ctx, svc.ID)
	if err != nil {
		logctx.FromCtx(ctx, s.log).Warnw("service_reload_failed", "service_id", svc.ID, "err", err)
		return svc, nil
	}
	return created, nil
}

// nextServiceNumber draws ticket numbers until one is unused. The unique
// index still guards against a concurrent writer picking the same number.
func (s *Service) nextServiceNumber(tx *gorm.DB, now time.Time) (string, error) {
	for i := 0; i < serviceNumberTries; i++ {
		number := tool.GenerateServiceNumber(s.cfg.ServiceNumberPrefix, now)
		var n int64
		if err := tx.Model(&models.Service{}).Where("service_number = ?", number).Count(&n).Error; err != nil {
			return "", apperr.Internal("check service number", err)
		}
		if n == 0 {
			return number, nil
		}
	}
	return "", apperr.Conflict("could not allocate a unique service number")
}

// UpdateStatus moves a ticket to a new status and performs the bookkeeping
// the transition implies.
func (s *Service) UpdateStatus(ctx context.Context, actor, id string, req StatusUpdate) (*models.Service, error) {
	if req.Status == "" {
		return nil, apperr.Invalid("status is required")
	}
	if !req.Status.Valid() {
		return nil, apperr.Invalid("unknown status %q", req.Status)
	}
	if req.ActualFee.Valid && req.ActualFee.Decimal.IsNegative() {
		return nil, apperr.Invalid("actualFee must not be negative")
	}

	return s.apply(ctx, actorOr(actor, "user"), id, func(tx *gorm.DB, svc *models.Service) (*change, error) {
		if err := checkTransition(s.cfg.EnforceTransitions, svc.Status, req.Status); err != nil {
			return nil, err
		}
		ch := &change{fields: map[string]any{}, to: req.Status, notes: deref(req.Notes)}
		if req.Status == types.ServiceStatusDelivered && req.ActualFee.Valid && req.ActualFee.Decimal.IsPositive() {
			ch.fields["actual_fee"] = req.ActualFee
		}
		if tid := nonEmpty(req.TechnicianID); tid != nil {
			if err := ensureTechnician(tx, tid); err != nil {
				return nil, err
			}
			ch.fields["technician_id"] = *tid
		}
		return ch, nil
	})
}

// UpdateService edits ticket fields. A status different from the current one
// runs the same transition bookkeeping as UpdateStatus.
func (s *Service) UpdateService(ctx context.Context, actor, id string, req ServiceUpdate) (*models.Service, error) {
	if req.Status != nil && *req.Status != "" && !req.Status.Valid() {
		return nil, apperr.Invalid("unknown status %q", *req.Status)
	}
	if req.DeviceType != nil && !req.DeviceType.Valid() {
		return nil, apperr.Invalid("unknown device type %q", *req.DeviceType)
	}
	for name, v := range map[string]*string{"brand": req.Brand, "model": req.Model, "problemDescription": req.ProblemDescription, "customerId": req.CustomerID} {
		if v != nil && strings.TrimSpace(*v) == "" {
			return nil, apperr.Invalid("%s must not be empty", name)
		}
	}
	for name, v := range map[string]*decimal.Decimal{"estimatedFee": req.EstimatedFee, "actualFee": req.ActualFee} {
		if v != nil && v.IsNegative() {
			return nil, apperr.Invalid("%s must not be negative", name)
		}
	}

	return s.apply(ctx, actorOr(actor, "user"), id, func(tx *gorm.DB, svc *models.Service) (*change, error) {
		ch := &change{fields: map[string]any{}, notes: deref(req.Notes)}
		if req.CustomerID != nil && *req.CustomerID != svc.CustomerID {
			if err := ensureCustomer(tx, *req.CustomerID); err != nil {
				return nil, err
			}
			ch.fields["customer_id"] = *req.CustomerID
		}
		setIf(ch.fields, "device_type", req.DeviceType)
		setIf(ch.fields, "brand", req.Brand)
		setIf(ch.fields, "model", req.Model)
		setIf(ch.fields, "serial_number", req.SerialNumber)
		setIf(ch.fields, "imei", req.IMEI)
		setIf(ch.fields, "problem_description", req.ProblemDescription)
		setIf(ch.fields, "accessories", req.Accessories)
		setIf(ch.fields, "physical_condition", req.PhysicalCondition)
		if req.EstimatedFee != nil {
			ch.fields["estimated_fee"] = decimal.NewNullDecimal(*req.EstimatedFee)
		}
		if req.ActualFee != nil {
			// Zero clears the actual fee so delivery falls back to the estimate.
			if req.ActualFee.IsPositive() {
				ch.fields["actual_fee"] = decimal.NewNullDecimal(*req.ActualFee)
			} else {
				ch.fields["actual_fee"] = decimal.NullDecimal{}
			}
		}
		if req.TechnicianID != nil {
			tid := nonEmpty(req.TechnicianID)
			if err := ensureTechnician(tx, tid); err != nil {
				return nil, err
			}
			ch.fields["technician_id"] = tid
		}
		if req.Status != nil && *req.Status != "" && *req.Status != svc.Status {
			if err := checkTransition(s.cfg.EnforceTransitions, svc.Status, *req.Status); err != nil {
				return nil, err
			}
			ch.to = *req.Status
		}
		return ch, nil
	})
}

// change is what a caller wants applied to a ticket inside the transaction.
// An empty to means no status transition.
type change struct {
	fields map[string]any
	to     types.ServiceStatus
	notes  string
}

type planFunc func(tx *gorm.DB, svc *models.Service) (*change, error)

// apply loads the ticket, lets plan decide the change and writes it in one
// transaction: the service row (compare-and-swap on the status read), the
// history row and the income row commit or roll back together.
// Notification and event publication only happen after commit, from the
// row as committed, so a failed reload afterwards cannot drop them.
func (s *Service) apply(ctx context.Context, actor, id string, plan planFunc) (*models.Service, error) {
	var (
		from      types.ServiceStatus
		ch        *change
		committed models.Service
		now       = s.now()
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var svc models.Service
		if err := tx.Where("id = ?", id).First(&svc).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("service", id)
			}
			return apperr.Internal("load service", err)
		}
		from = svc.Status

		var err error
		if ch, err = plan(tx, &svc); err != nil {
			return err
		}

		updates := ch.fields
		updates["updated_at"] = now
		if ch.to != "" {
			updates["status"] = ch.to
			if ch.to == types.ServiceStatusCompletedReadyForDelivery && svc.CompletedAt == nil {
				updates["completed_at"] = now
			}
			if ch.to == types.ServiceStatusDelivered && svc.DeliveredAt == nil {
				updates["delivered_at"] = now
			}
		}

		res := tx.Model(&models.Service{}).Where("id = ? AND status = ?", id, from).Updates(updates)
		if res.Error != nil {
			return apperr.Internal("update service", res.Error)
		}
		if res.RowsAffected == 0 {
			return apperr.Conflict("service %s changed status concurrently", id)
		}
		if err := tx.Preload("Customer").Where("id = ?", id).First(&committed).Error; err != nil {
			return apperr.Internal("reload service", err)
		}
		if ch.to == "" {
			return nil
		}

		if err := appendHistory(tx, id, ch.to, ch.notes, actor, now); err != nil {
			return err
		}
		if ch.to == types.ServiceStatusDelivered {
			if err := s.ledger.UpsertServiceIncome(tx, &committed, committed.Fee()); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if ch.to != "" {
		s.afterTransition(ctx, &committed, from, ch.to, actor, now)
	}
	updated, err := s.Get(ctx, id)
	if err != nil {
		logctx.FromCtx(ctx, s.log).Warnw("service_reload_failed", "service_id", id, "err", err)
		return &committed, nil
	}
	return updated, nil
}

func (s *Service) afterTransition(ctx context.Context, svc *models.Service, from, to types.ServiceStatus, actor string, at time.Time) {
	metrics.IncCounter(metrics.MetricsStatusTransition, string(from), string(to))
	logctx.FromCtx(ctx, s.log).Infow("service_status_changed",
		"service_id", svc.ID, "service_number", svc.ServiceNumber, "from", from, "to", to, "actor", actor)

	if nt, ok := types.NotificationForStatus(to); ok && svc.Customer.HasEmail() && s.notifier != nil {
		s.notifier.Dispatch(ctx, notifier.Request{
			Type:          nt,
			ServiceID:     svc.ID,
			CustomerEmail: *svc.Customer.Email,
			ServiceNumber: svc.ServiceNumber,
			EstimatedFee:  svc.EstimatedFee,
		})
	}
	s.publish(ctx, broker.StatusChanged{
		ServiceID:     svc.ID,
		ServiceNumber: svc.ServiceNumber,
		From:          from,
		To:            to,
		Actor:         actor,
		ChangedAt:     at,
	})
}

func (s *Service) publish(ctx context.Context, evt broker.StatusChanged) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishStatusChanged(ctx, evt); err != nil {
		logctx.FromCtx(ctx, s.log).Warnw("event_publish_failed", "service_id", evt.ServiceID, "err", err)
	}
}

func appendHistory(tx *gorm.DB, serviceID string, status types.ServiceStatus, notes, actor string, at time.Time) error {
	h := &models.ServiceStatusHistory{
		ID:        tool.GenerateUUIDV7(),
		ServiceID: serviceID,
		Status:    status,
		Notes:     notes,
		ChangedBy: actor,
		ChangedAt: at,
	}
	if err := tx.Create(h).Error; err != nil {
		return apperr.Internal("append status history", err)
	}
	return nil
}

func ensureCustomer(tx *gorm.DB, id string) error {
	var n int64
	if err := tx.Model(&models.Customer{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return apperr.Internal("check customer", err)
	}
	if n == 0 {
		return apperr.NotFound("customer", id)
	}
	return nil
}

func ensureTechnician(tx *gorm.DB, id *string) error {
	if id == nil {
		return nil
	}
	var n int64
	if err := tx.Model(&models.User{}).Where("id = ?", *id).Count(&n).Error; err != nil {
		return apperr.Internal("check technician", err)
	}
	if n == 0 {
		return apperr.NotFound("technician", *id)
	}
	return nil
}

func nonEmpty(s *string) *string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	return s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func setIf[T any](m map[string]any, column string, v *T) {
	if v != nil {
		m[column] = *v
	}
}
