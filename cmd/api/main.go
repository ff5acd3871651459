package main

import (
	"context"
	"fmt"
	"log"
	"time"

	common_api "go-cats/internal/common/api"
	"go-cats/internal/config"
	"go-cats/internal/database"
	"go-cats/internal/features/audit"
	"go-cats/internal/features/cases"
	cron_feature "go-cats/internal/features/cron"
	"go-cats/internal/features/escalation"
	"go-cats/internal/features/notification"
	"go-cats/internal/features/report"
	"go-cats/internal/features/slarule"
	"go-cats/internal/features/system"
	"go-cats/internal/features/timeline"
	"go-cats/internal/logger"
	"go-cats/internal/metrics"
	"go-cats/internal/middleware"
	"go-cats/pkg/sla"
	"go-cats/pkg/utils"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

// NewFiberServer creates a new Fiber app instance
func NewFiberServer() *fiber.App {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return middleware.ErrorResponse(c, err)
		},
	})

	app.Use(middleware.CORSMiddleware())

	return app
}

// AsRoute is a helper function to reduce boilerplate.
// It tags the constructor so Fx knows to add it to the "routes" group.
func AsRoute(f any) any {
	return fx.Annotate(
		f,
		fx.As(new(common_api.Route)),    // Cast to Interface
		fx.ResultTags(`group:"routes"`), // Add to Group
	)
}

// RegisterAllRoutes takes the group "routes" (slice of interfaces)
// and calls Setup() on each one.
func RegisterAllRoutes(app *fiber.App, routes []common_api.Route) {
	log.Printf("Registering %d routes...\n", len(routes))
	for i, route := range routes {
		log.Printf("Setting up route %d: %T\n", i+1, route)
		route.Setup(app)
	}
	log.Println("All routes registered successfully")
}

// RegisterAllRoutesWithAnnotation wraps RegisterAllRoutes with fx annotations
var RegisterAllRoutesWithAnnotation = fx.Annotate(
	RegisterAllRoutes,
	fx.ParamTags(``, `group:"routes"`),
)

// StartServer creates a lifecycle hook to start Fiber in a goroutine
// and shut it down when the app exits.
func StartServer(lc fx.Lifecycle, app *fiber.App, cfg *config.Config) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				port := fmt.Sprintf(":%s", cfg.Port)
				if err := app.Listen(port); err != nil {
					log.Fatalf("Server failed to start: %v", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return app.Shutdown()
		},
	})
}

// NewEngine builds the SLA engine over the stored rule catalog and the wall clock
func NewEngine(ruleRepo slarule.RuleRepository) *sla.Engine {
	return sla.NewEngine(slarule.NewCatalog(ruleRepo), sla.SystemClock{})
}

type indexParams struct {
	fx.In

	Audit         audit.AuditRepository
	Rules         slarule.RuleRepository
	Cases         cases.CaseRepository
	Timeline      timeline.TimelineRepository
	Notifications notification.NotificationRepository
	Runs          escalation.RunRepository
	Cron          cron_feature.CronRepository
	Statistics    report.StatisticsRepository
}

// InitializeIndexes ensures that necessary database indexes are created
func InitializeIndexes(lc fx.Lifecycle, p indexParams, zapLogger *zap.Logger) {
	repos := map[string]database.IndexInitializer{
		"audit_logs":          p.Audit,
		"sla_rules":           p.Rules,
		"cases":               p.Cases,
		"case_timeline":       p.Timeline,
		"notifications":       p.Notifications,
		"sla_evaluation_runs": p.Runs,
		"cron_job_logs":       p.Cron,
		"sla_rule_statistics": p.Statistics,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				// Use a background context with timeout for index creation
				ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				defer cancel()

				for name, repo := range repos {
					if err := repo.EnsureIndexes(ctx); err != nil {
						zapLogger.Error("Failed to ensure indexes", zap.String("collection", name), zap.Error(err))
					}
				}
			}()
			return nil
		},
	})
}

// StartScheduler runs the SLA jobs for the lifetime of the app
func StartScheduler(lc fx.Lifecycle, cronService cron_feature.CronService) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return cronService.InitializeScheduler(ctx)
		},
		OnStop: func(ctx context.Context) error {
			return cronService.StopScheduler()
		},
	})
}

func main() {
	app := fx.New(
		fx.Provide(
			// Load Config
			config.LoadConfig,

			// Initialize Logger
			logger.NewLogger,

			// Initialize Fiber Server
			NewFiberServer,

			// Initialize Database
			database.NewDatabase,

			// Metrics
			metrics.NewRegistry,
			metrics.NewMetrics,

			// Initialize Repository
			audit.NewAuditRepository,
			slarule.NewRuleRepository,
			cases.NewCaseRepository,
			timeline.NewTimelineRepository,
			notification.NewNotificationRepository,
			escalation.NewRunRepository,
			cron_feature.NewCronRepository,
			report.NewStatisticsRepository,

			// SLA engine
			NewEngine,

			audit.NewAuditService,
			slarule.NewRuleService,
			timeline.NewTimelineService,
			cases.NewCaseService,
			notification.NewNotificationService,
			escalation.NewActionDispatcher,
			escalation.NewEscalationService,
			report.NewReportService,
			cron_feature.NewCronService,

			// Initialize Controller
			audit.NewAuditController,
			slarule.NewRuleController,
			timeline.NewTimelineController,
			cases.NewCaseController,
			notification.NewNotificationController,
			escalation.NewEscalationController,
			report.NewReportController,
			cron_feature.NewCronController,
			system.NewSystemController,

			// Initialize API Routes
			AsRoute(audit.NewAuditApi),
			AsRoute(slarule.NewRuleApi),
			AsRoute(timeline.NewTimelineApi),
			AsRoute(cases.NewCaseApi),
			AsRoute(notification.NewNotificationApi),
			AsRoute(escalation.NewEscalationApi),
			AsRoute(report.NewReportApi),
			AsRoute(cron_feature.NewCronApi),
			AsRoute(system.NewSystemApi),
		),
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log}
		}),
		fx.Invoke(
			func(cfg *config.Config) { utils.SetSecret(cfg.JWTSecret) },

			// Register Routes & Start
			RegisterAllRoutesWithAnnotation,
			StartServer,
			StartScheduler,
			InitializeIndexes,
		),
	)

	app.Run()
}
