package ranges

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/tidepool-org/cardiac/config"
)

// Reloader re-reads the range overrides into a running classifier
type Reloader struct {
	classifier   *Classifier
	overridePath string
	logger       *zap.SugaredLogger
}

func NewReloader(cfg *config.Config, classifier *Classifier, logger *zap.SugaredLogger) *Reloader {
	return &Reloader{
		classifier:   classifier,
		overridePath: cfg.RangesOverridePath,
		logger:       logger,
	}
}

// Reload loads the overrides and replaces the table of the classifier. The current table is kept on failure.
func (r *Reloader) Reload() error {
	table, err := Load(r.overridePath)
	if err != nil {
		return err
	}
	return r.classifier.Replace(table)
}

// Run reloads the table on every received signal until ctx is done
func (r *Reloader) Run(ctx context.Context, signals <-chan os.Signal) {
	for {
		select {
		case <-ctx.Done():
			return
		case sig := <-signals:
			if err := r.Reload(); err != nil {
				r.logger.Errorw("unable to reload range table", "signal", sig.String(), "path", r.overridePath, "error", err)
			}
		}
	}
}

// ReloadOnHangup reloads the range table when the process receives SIGHUP
func ReloadOnHangup(reloader *Reloader, lifecycle fx.Lifecycle) {
	ctx, cancel := context.WithCancel(context.Background())
	signals := make(chan os.Signal, 1)

	lifecycle.Append(fx.Hook{
		OnStart: func(context.Context) error {
			signal.Notify(signals, syscall.SIGHUP)
			go reloader.Run(ctx, signals)
			return nil
		},
		OnStop: func(context.Context) error {
			signal.Stop(signals)
			cancel()
			return nil
		},
	})
}
