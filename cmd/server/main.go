package main

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"

	"github.com/flexprice/payflow/internal/api"
	v1 "github.com/flexprice/payflow/internal/api/v1"
	"github.com/flexprice/payflow/internal/config"
	"github.com/flexprice/payflow/internal/domain/ledger"
	"github.com/flexprice/payflow/internal/domain/payment"
	"github.com/flexprice/payflow/internal/gateway"
	"github.com/flexprice/payflow/internal/idempotency"
	"github.com/flexprice/payflow/internal/jobs"
	"github.com/flexprice/payflow/internal/logger"
	"github.com/flexprice/payflow/internal/postgres"
	"github.com/flexprice/payflow/internal/pubsub"
	pubsubMemory "github.com/flexprice/payflow/internal/pubsub/memory"
	"github.com/flexprice/payflow/internal/repository"
	postgresRepo "github.com/flexprice/payflow/internal/repository/postgres"
	"github.com/flexprice/payflow/internal/service"
	"github.com/flexprice/payflow/internal/types"
)

func init() {
	// Set UTC timezone for the entire application
	time.Local = time.UTC
}

func main() {
	fx.New(
		fx.Provide(
			// Config
			config.NewConfig,

			// Logger
			newLogger,

			// Postgres
			postgres.NewDB,

			// Repositories
			repository.NewPaymentRepository,
			repository.NewLedgerRepository,

			// Job substrate
			newPubSub,

			// Gateway collaborator
			gateway.NewSimulator,

			// Fingerprints
			idempotency.NewGenerator,

			// Services
			newServiceParams,
			service.NewTransitionService,
			service.NewAdmissionService,
			service.NewOrchestratorService,
			service.NewSweeperService,

			// Job runner
			newRunner,

			// API
			v1.NewPaymentHandler,
			v1.NewHealthHandler,
			newRouter,
		),
		fx.Invoke(startApp),
	).Run()
}

func newLogger(cfg *config.Configuration) (*logger.Logger, error) {
	return logger.NewLogger(cfg.Logging.Level)
}

func newPubSub(log *logger.Logger) pubsub.PubSub {
	return pubsubMemory.NewPubSub(log)
}

func newServiceParams(
	log *logger.Logger,
	cfg *config.Configuration,
	db *postgres.DB,
	paymentRepo payment.Repository,
	ledgerRepo ledger.Repository,
	ps pubsub.PubSub,
	gw payment.Gateway,
	fingerprints *idempotency.Generator,
) service.ServiceParams {
	return service.ServiceParams{
		Logger:       log,
		Config:       cfg,
		DB:           db,
		PaymentRepo:  paymentRepo,
		LedgerRepo:   ledgerRepo,
		Gateway:      gw,
		JobPublisher: ps,
		Fingerprints: fingerprints,
	}
}

func newRunner(ps pubsub.PubSub, orchestrator service.OrchestratorService, log *logger.Logger) *jobs.Runner {
	return jobs.NewRunner(ps, orchestrator, log)
}

func newRouter(payment *v1.PaymentHandler, health *v1.HealthHandler, cfg *config.Configuration) *gin.Engine {
	if cfg.Deployment.Mode != types.ModeLocal {
		gin.SetMode(gin.ReleaseMode)
	}
	return api.NewRouter(api.Handlers{Payment: payment, Health: health})
}

func startApp(
	lc fx.Lifecycle,
	cfg *config.Configuration,
	log *logger.Logger,
	db *postgres.DB,
	router *gin.Engine,
	runner *jobs.Runner,
	sweeper service.SweeperService,
) {
	mode := cfg.Deployment.Mode
	srv := &http.Server{Addr: cfg.Server.Address, Handler: router}
	workerCtx, stopWorkers := context.WithCancel(context.Background())

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if cfg.Postgres.AutoMigrate {
				if err := postgresRepo.Migrate(ctx, db); err != nil {
					return err
				}
			}

			if mode == types.ModeLocal || mode == types.ModeAPI {
				go func() {
					log.Infow("starting server", "address", cfg.Server.Address)
					if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
						log.Fatalf("server failed: %v", err)
					}
				}()
			}

			if mode == types.ModeLocal || mode == types.ModeWorker {
				go func() {
					if err := runner.Start(workerCtx); err != nil {
						log.Errorw("job runner exited", "error", err)
					}
				}()
				go sweeper.Start(workerCtx)
			}
			return nil
		},
		OnStop: func(ctx context.Context) error {
			stopWorkers()
			if mode == types.ModeLocal || mode == types.ModeAPI {
				if err := srv.Shutdown(ctx); err != nil {
					return err
				}
			}
			db.Close()
			return nil
		},
	})
}
