package notifier

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/fatflowers/repairdesk/internal/models"
	"github.com/fatflowers/repairdesk/pkg/apperr"
	"github.com/fatflowers/repairdesk/pkg/config"
	"github.com/fatflowers/repairdesk/pkg/logctx"
	"github.com/fatflowers/repairdesk/pkg/metrics"
	"github.com/fatflowers/repairdesk/pkg/tool"
	"github.com/fatflowers/repairdesk/pkg/types"
)

const (
	dispatchTimeout = 30 * time.Second
	listLimit       = 100
)

// Request asks for one customer email about a ticket.
type Request struct {
	Type          types.NotificationType `json:"type"`
	ServiceID     string                 `json:"serviceId"`
	CustomerEmail string                 `json:"customerEmail"`
	ServiceNumber string                 `json:"serviceNumber,omitempty"`
	EstimatedFee  decimal.NullDecimal    `json:"estimatedFee" swaggertype:"number"`
}

func (r *Request) validate() error {
	var missing []string
	if r.Type == "" {
		missing = append(missing, "type")
	}
	if r.ServiceID == "" {
		missing = append(missing, "serviceId")
	}
	if strings.TrimSpace(r.CustomerEmail) == "" {
		missing = append(missing, "customerEmail")
	}
	if len(missing) > 0 {
		return apperr.Invalid("missing required fields: %s", strings.Join(missing, ", "))
	}
	if !r.Type.Valid() {
		return apperr.Invalid("unknown notification type %q", r.Type)
	}
	return nil
}

type Service struct {
	db     *gorm.DB
	log    *zap.SugaredLogger
	sender Sender
	shop   config.ShopConfig
	now    func() time.Time
}

func New(db *gorm.DB, log *zap.SugaredLogger, sender Sender, cfg *config.Config) *Service {
	return &Service{db: db, log: log, sender: sender, shop: cfg.Shop, now: time.Now}
}

// Send renders and delivers one notification and records the attempt. Every
// attempt that reaches a known ticket leaves exactly one NotificationLog row.
func (s *Service) Send(ctx context.Context, req Request) (*models.NotificationLog, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	var svc models.Service
	err := s.db.WithContext(ctx).Preload("Customer").Where("id = ?", req.ServiceID).First(&svc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("service", req.ServiceID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load service: %w", err)
	}

	now := s.now()
	data := s.templateData(&svc, req, now)
	subject, html, renderErr := render(req.Type, data)

	var sendErr error
	if renderErr == nil {
		sendErr = s.sender.Send(ctx, Message{To: req.CustomerEmail, Subject: subject, HTML: html})
	}

	entry := &models.NotificationLog{
		ID:            tool.GenerateUUIDV7(),
		Type:          req.Type,
		ServiceID:     svc.ID,
		CustomerEmail: req.CustomerEmail,
		Status:        types.NotificationStatusSent,
		Subject:       subject,
		SentAt:        now,
	}
	failure := errors.Join(renderErr, sendErr)
	if failure != nil {
		entry.Status = types.NotificationStatusFailed
		entry.Details = datatypes.JSONMap{"error": failure.Error()}
	}
	metrics.IncCounter(metrics.MetricsNotification, string(req.Type), string(entry.Status))

	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		logctx.FromCtx(ctx, s.log).Errorw("notification_log_failed", "service_id", svc.ID, "type", req.Type, "err", err)
		if failure == nil {
			return entry, nil
		}
	}

	if renderErr != nil {
		return entry, renderErr
	}
	if sendErr != nil {
		return entry, fmt.Errorf("failed to send %s notification: %w", req.Type, sendErr)
	}
	logctx.FromCtx(ctx, s.log).Infow("notification_sent", "service_id", svc.ID, "type", req.Type)
	return entry, nil
}

func (s *Service) templateData(svc *models.Service, req Request, now time.Time) templateData {
	fee := req.EstimatedFee
	if !fee.Valid {
		switch req.Type {
		case types.NotificationTypePaymentReminder:
			if f := svc.Fee(); f.IsPositive() {
				fee = decimal.NewNullDecimal(f)
			}
		default:
			fee = svc.EstimatedFee
		}
	}
	data := templateData{
		ShopName:      s.shop.Name,
		ShopPhone:     s.shop.Phone,
		ShopAddress:   s.shop.Address,
		ShopHours:     s.shop.Hours,
		ServiceNumber: svc.ServiceNumber,
		Device:        strings.TrimSpace(svc.Brand + " " + svc.Model),
		Date:          now.Format("2006-01-02"),
		Year:          now.Year(),
	}
	if svc.Customer != nil {
		data.CustomerName = svc.Customer.Name
	}
	if fee.Valid {
		data.Fee = fee.Decimal.StringFixed(2)
	}
	return data
}

// Dispatch sends in the background. The caller's context only contributes
// its values; cancellation of the request does not abort delivery.
func (s *Service) Dispatch(ctx context.Context, req Request) {
	bg := context.WithoutCancel(ctx)
	go func() {
		ctx, cancel := context.WithTimeout(bg, dispatchTimeout)
		defer cancel()
		if _, err := s.Send(ctx, req); err != nil {
			logctx.FromCtx(ctx, s.log).Warnw("notification_failed", "service_id", req.ServiceID, "type", req.Type, "err", err)
		}
	}()
}

// List returns the latest notification attempts, optionally by status.
func (s *Service) List(ctx context.Context, status string) ([]models.NotificationLog, error) {
	q := s.db.WithContext(ctx).Preload("Service.Customer").Order("sent_at DESC").Limit(listLimit)
	if status != "" && !strings.EqualFold(status, "all") {
		q = q.Where("status = ?", strings.ToUpper(status))
	}
	logs := make([]models.NotificationLog, 0)
	if err := q.Find(&logs).Error; err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	return logs, nil
}
