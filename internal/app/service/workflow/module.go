package workflow

import (
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/fatflowers/repairdesk/internal/app/service/finance"
	"github.com/fatflowers/repairdesk/internal/app/service/notifier"
	"github.com/fatflowers/repairdesk/internal/platform/broker"
	"github.com/fatflowers/repairdesk/pkg/config"
)

func provide(db *gorm.DB, log *zap.SugaredLogger, cfg *config.Config, ledger *finance.Service, n *notifier.Service, pub broker.Publisher) *Service {
	return New(db, log, cfg.Workflow, ledger, n, pub)
}

// Module exposes the ticket workflow via Fx.
var Module = fx.Options(
	fx.Provide(provide),
)
