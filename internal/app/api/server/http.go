package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/fatflowers/repairdesk/docs"
	"github.com/fatflowers/repairdesk/internal/app/api/handlers"
	mw "github.com/fatflowers/repairdesk/internal/app/api/middleware"
	"github.com/fatflowers/repairdesk/internal/app/service/analytics"
	"github.com/fatflowers/repairdesk/internal/app/service/customer"
	"github.com/fatflowers/repairdesk/internal/app/service/finance"
	"github.com/fatflowers/repairdesk/internal/app/service/notifier"
	"github.com/fatflowers/repairdesk/internal/app/service/statistics"
	"github.com/fatflowers/repairdesk/internal/app/service/user"
	"github.com/fatflowers/repairdesk/internal/app/service/workflow"
	cfgpkg "github.com/fatflowers/repairdesk/pkg/config"
	"github.com/fatflowers/repairdesk/pkg/metrics"
	"github.com/fatflowers/repairdesk/pkg/types"
)

func newEngine(cfg *cfgpkg.Config) *gin.Engine {
	if cfg != nil && cfg.Env == cfgpkg.EnvProd {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	// Request logger & access log are attached per group in registerRoutes
	r.Use(mw.TraceMiddleware())
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/api/v1/finance/export"})))
	return r
}

// Services groups everything the HTTP layer calls into.
type Services struct {
	fx.In

	DB         *gorm.DB
	Workflow   *workflow.Service
	Customers  *customer.Service
	Finance    *finance.Service
	Notifier   *notifier.Service
	Statistics *statistics.Service
	Analytics  *analytics.Service
	Users      *user.Service
}

func registerRoutes(r *gin.Engine, log *zap.SugaredLogger, cfg *cfgpkg.Config, s Services) {
	// Prometheus metrics
	if cfg != nil && cfg.MetricsAddr != "" {
		p := metrics.NewPrometheus(metrics.NewPrometheusOptions{
			MetricsList: metrics.DomainMetrics,
			ReqCntURLLabelMappingFn: func(c *gin.Context) string {
				if fp := c.FullPath(); fp != "" {
					return fp
				}
				return c.Request.URL.Path
			},
			Logger: log,
		})
		p.SetListenAddress(cfg.MetricsAddr)
		p.Use(r)

		log.Infow("metrics started", "addr", cfg.MetricsAddr)
	}

	// Public group: request logger + access log
	pub := r.Group("/")
	pub.Use(mw.RequestLoggerMiddleware(log), mw.AccessLogMiddleware(log))
	handlers.RegisterHealthRoutes(pub, s.DB)
	// Swagger UI
	docs.SwaggerInfo.BasePath = "/"
	pub.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	apiV1 := r.Group("/api/v1")
	apiV1.Use(mw.RequestLoggerMiddleware(log), mw.AccessLogMiddleware(log))
	handlers.RegisterAuthRoutes(apiV1, s.Users, cfg)

	// Everything else requires a session when auth is enabled
	protected := apiV1.Group("")
	protected.Use(mw.AuthMiddleware(cfg.Auth, s.Users, log))
	handlers.RegisterServiceRoutes(protected, s.Workflow)
	handlers.RegisterAdminRoutes(protected, s.Workflow, mw.RequireRole(cfg.Auth, string(types.UserRoleAdmin), string(types.UserRoleStaff)))
	handlers.RegisterCustomerRoutes(protected, s.Customers)
	handlers.RegisterFinanceRoutes(protected, s.Finance, log)
	handlers.RegisterNotificationRoutes(protected, s.Notifier)
	handlers.RegisterAnalyticsRoutes(protected, s.Analytics)
	handlers.RegisterReportRoutes(protected, s.Statistics)
	handlers.RegisterUserRoutes(protected, s.Users, cfg)
}

func runServer(lc fx.Lifecycle, log *zap.SugaredLogger, cfg *cfgpkg.Config, r *gin.Engine, shutdowner fx.Shutdowner) {
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 5 * time.Second}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Infow("starting HTTP server", "addr", addr)
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Errorf("server error: %v", err)
					_ = shutdowner.Shutdown(fx.ExitCode(1))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Infow("stopping HTTP server")
			shutdownCtx, cancel := context.WithTimeout(ctx, 120*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

var Module = fx.Options(
	fx.Provide(newEngine),
	fx.Invoke(registerRoutes),
	fx.Invoke(runServer),
)
