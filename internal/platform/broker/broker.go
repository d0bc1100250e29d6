// Package broker publishes domain events to NATS. Without a configured URL the
// module provides a publisher that only logs.
package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/fatflowers/repairdesk/pkg/config"
	"github.com/fatflowers/repairdesk/pkg/logctx"
	"github.com/fatflowers/repairdesk/pkg/types"
)

const SubjectStatusChanged = "service.status_changed"

// StatusChanged is emitted once per committed status transition.
type StatusChanged struct {
	ServiceID     string              `json:"serviceId"`
	ServiceNumber string              `json:"serviceNumber"`
	From          types.ServiceStatus `json:"from"`
	To            types.ServiceStatus `json:"to"`
	Actor         string              `json:"actor"`
	ChangedAt     time.Time           `json:"changedAt"`
}

type Publisher interface {
	PublishStatusChanged(ctx context.Context, evt StatusChanged) error
}

type conn interface {
	Publish(subj string, data []byte) error
	Drain() error
}

type NatsPublisher struct {
	nc     conn
	prefix string
	log    *zap.SugaredLogger
}

func (p *NatsPublisher) subject(name string) string {
	if p.prefix == "" {
		return name
	}
	return p.prefix + "." + name
}

func (p *NatsPublisher) PublishStatusChanged(ctx context.Context, evt StatusChanged) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal status changed event: %w", err)
	}
	subj := p.subject(SubjectStatusChanged)
	if err := p.nc.Publish(subj, data); err != nil {
		return fmt.Errorf("publish %s: %w", subj, err)
	}
	logctx.FromCtx(ctx, p.log).Debugw("event_published", "subject", subj, "service_id", evt.ServiceID)
	return nil
}

// LogPublisher stands in for NATS when no broker is configured.
type LogPublisher struct {
	log *zap.SugaredLogger
}

func (p *LogPublisher) PublishStatusChanged(ctx context.Context, evt StatusChanged) error {
	logctx.FromCtx(ctx, p.log).Infow("event_logged", "subject", SubjectStatusChanged,
		"service_id", evt.ServiceID, "service_number", evt.ServiceNumber,
		"from", evt.From, "to", evt.To, "actor", evt.Actor)
	return nil
}

func NewPublisher(lc fx.Lifecycle, cfg *config.Config, log *zap.SugaredLogger) (Publisher, error) {
	if cfg.Broker.NatsURL == "" {
		return &LogPublisher{log: log}, nil
	}
	nc, err := nats.Connect(cfg.Broker.NatsURL,
		nats.Name("repairdesk"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warnw("nats disconnected", "err", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Infow("nats reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			log.Infow("draining nats connection")
			return nc.Drain()
		},
	})
	log.Infow("connected to nats", "url", nc.ConnectedUrl())
	return &NatsPublisher{nc: nc, prefix: cfg.Broker.SubjectPrefix, log: log}, nil
}

var Module = fx.Options(
	fx.Provide(NewPublisher),
)
