package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/tidepool-org/cardiac/aggregation"
	"github.com/tidepool-org/cardiac/alerts"
	"github.com/tidepool-org/cardiac/biomarkers"
	"github.com/tidepool-org/cardiac/clinicians"
	"github.com/tidepool-org/cardiac/config"
	"github.com/tidepool-org/cardiac/ingestion"
	"github.com/tidepool-org/cardiac/logger"
	"github.com/tidepool-org/cardiac/notes"
	"github.com/tidepool-org/cardiac/outbox"
	"github.com/tidepool-org/cardiac/patients"
	"github.com/tidepool-org/cardiac/provider"
	"github.com/tidepool-org/cardiac/ranges"
	"github.com/tidepool-org/cardiac/samples"
	"github.com/tidepool-org/cardiac/sessions"
	"github.com/tidepool-org/cardiac/store"
	"github.com/tidepool-org/cardiac/symptoms"
)

func Start(e *echo.Echo, cfg *config.Config, logger *zap.SugaredLogger, lifecycle fx.Lifecycle) {
	lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			address := fmt.Sprintf(":%d", cfg.HttpPort)
			go func() {
				if err := e.Start(address); err != nil && err != http.ErrServerClosed {
					logger.Errorw("http server stopped unexpectedly", "error", err)
				}
			}()
			logger.Infow("started http server", "address", address)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return e.Shutdown(ctx)
		},
	})
}

func SetReady(healthCheck *HealthCheck, _ *Handler, db *mongo.Database, lifecycle fx.Lifecycle) {
	lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := db.Client().Ping(ctx, nil); err != nil {
				return err
			}

			// Taking the handler as a dependency makes the repositories register their
			// index hooks first, and lifecycle hooks run in the order they were appended
			healthCheck.SetReady(true)
			return nil
		},
	})
}

// NewCredentials exposes the session registry to the ingestion pipeline
func NewCredentials(registry *sessions.Registry) ingestion.Credentials {
	return registry
}

// NewEvaluator exposes the alert engine to the ingestion pipeline
func NewEvaluator(engine *alerts.Engine) ingestion.Evaluator {
	return engine
}

// Services returns the providers of the domain components shared by the http service and the cli
func Services() fx.Option {
	return fx.Options(
		fx.Provide(
			logger.NewProductionLogger,
			logger.Suggar,
			config.NewConfig,
			store.NewConfig,
			store.NewClientFromConfig,
			store.NewDatabase,
			provider.NewConfig,
			provider.NewLimiter,
			provider.NewClient,
			ranges.NewTable,
			ranges.NewClassifier,
			patients.NewRepository,
			clinicians.NewRepository,
			samples.NewRepository,
			biomarkers.NewRepository,
			symptoms.NewRepository,
			notes.NewRepository,
			outbox.NewRepository,
			alerts.NewRepository,
			alerts.NewEngine,
			sessions.NewRepository,
			sessions.NewRegistry,
			NewCredentials,
			NewEvaluator,
			ingestion.NewPipeline,
			aggregation.NewCacheConfig,
			aggregation.NewCache,
			aggregation.NewService,
		),
	)
}

// Dependencies returns the application graph of the http service without starting the listener
func Dependencies() []fx.Option {
	return []fx.Option{
		Services(),
		fx.Provide(
			NewHealthCheck,
			NewHandler,
			NewServer,
			ranges.NewReloader,
		),
		fx.Invoke(SetReady),
		fx.Invoke(ranges.ReloadOnHangup),
	}
}

func MainLoop() {
	deps := append(Dependencies(), fx.Invoke(Start))
	fx.New(deps...).Run()
}
