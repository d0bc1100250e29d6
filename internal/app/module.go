package app

import (
	"time"

	"go.uber.org/fx"

	"github.com/fatflowers/repairdesk/internal/app/api/server"
	"github.com/fatflowers/repairdesk/internal/app/service/analytics"
	"github.com/fatflowers/repairdesk/internal/app/service/customer"
	"github.com/fatflowers/repairdesk/internal/app/service/finance"
	"github.com/fatflowers/repairdesk/internal/app/service/notifier"
	"github.com/fatflowers/repairdesk/internal/app/service/statistics"
	"github.com/fatflowers/repairdesk/internal/app/service/user"
	"github.com/fatflowers/repairdesk/internal/app/service/workflow"
	"github.com/fatflowers/repairdesk/internal/platform/broker"
	"github.com/fatflowers/repairdesk/internal/platform/db"
	"github.com/fatflowers/repairdesk/pkg/config"
	"github.com/fatflowers/repairdesk/pkg/logger"
)

const (
	DefaultStartTimeout = 15 * time.Second
	DefaultStopTimeout  = 10 * time.Second
)

var Module = fx.Options(
	logger.Module,
	config.Module,
	db.Module,
	broker.Module,
	server.Module,
	finance.Module,
	notifier.Module,
	workflow.Module,
	customer.Module,
	statistics.Module,
	analytics.Module,
	user.Module,
)
