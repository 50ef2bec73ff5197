package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	WarningSeverityHigh   = "high"
	WarningSeverityMedium = "medium"
)

type Config struct {
	HttpPort           uint16        `envconfig:"CARDIAC_HTTP_SERVER_PORT" default:"8080" required:"true"`
	RangesOverridePath string        `envconfig:"CARDIAC_RANGES_OVERRIDE_PATH"`
	WarningSeverity    string        `envconfig:"CARDIAC_WARNING_SEVERITY" default:"high"`
	BackfillDays       int           `envconfig:"CARDIAC_BACKFILL_DAYS" default:"7"`
	SyncWorkers        int           `envconfig:"CARDIAC_SYNC_WORKERS" default:"4"`
	DashboardWindow    time.Duration `envconfig:"CARDIAC_DASHBOARD_WINDOW" default:"168h"`
	ReportWindow       time.Duration `envconfig:"CARDIAC_REPORT_WINDOW" default:"720h"`
	SessionCacheSize   int           `envconfig:"CARDIAC_SESSION_CACHE_SIZE" default:"1024"`
}

func New() *Config {
	return &Config{}
}

func NewConfig() (*Config, error) {
	cfg := New()
	if err := cfg.LoadFromEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) LoadFromEnv() error {
	return envconfig.Process("", c)
}
