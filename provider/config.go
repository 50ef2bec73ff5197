package provider

import (
	"time"

	"github.com/kelseyhightower/envconfig"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

type Config struct {
	BaseURL        string        `envconfig:"CARDIAC_PROVIDER_BASE_URL" default:"https://api.fitbit.com/1/user/-"`
	AuthURL        string        `envconfig:"CARDIAC_PROVIDER_AUTH_URL" default:"https://www.fitbit.com/oauth2/authorize"`
	TokenURL       string        `envconfig:"CARDIAC_PROVIDER_TOKEN_URL" default:"https://api.fitbit.com/oauth2/token"`
	ClientID       string        `envconfig:"CARDIAC_PROVIDER_CLIENT_ID"`
	ClientSecret   string        `envconfig:"CARDIAC_PROVIDER_CLIENT_SECRET"`
	RedirectURL    string        `envconfig:"CARDIAC_PROVIDER_REDIRECT_URL" default:"http://localhost:8080/v1/oauth/callback"`
	Scopes         []string      `envconfig:"CARDIAC_PROVIDER_SCOPES" default:"activity,heartrate,sleep,profile,weight"`
	RequestTimeout time.Duration `envconfig:"CARDIAC_PROVIDER_REQUEST_TIMEOUT" default:"30s"`
	IntradayDetail string        `envconfig:"CARDIAC_PROVIDER_INTRADAY_DETAIL" default:"1min"`

	// Admission gate shared by every outbound call
	RequestsPerSecond float64 `envconfig:"CARDIAC_PROVIDER_REQUESTS_PER_SECOND" default:"2"`
	Burst             int     `envconfig:"CARDIAC_PROVIDER_BURST" default:"5"`

	RetryAttempts  uint          `envconfig:"CARDIAC_PROVIDER_RETRY_ATTEMPTS" default:"4"`
	RetryDelay     time.Duration `envconfig:"CARDIAC_PROVIDER_RETRY_DELAY" default:"1s"`
	RetryMaxDelay  time.Duration `envconfig:"CARDIAC_PROVIDER_RETRY_MAX_DELAY" default:"30s"`
	RetryMaxJitter time.Duration `envconfig:"CARDIAC_PROVIDER_RETRY_MAX_JITTER" default:"500ms"`
}

func NewConfig() (*Config, error) {
	cfg := &Config{}
	if err := envconfig.Process("", cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) OAuth2() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		RedirectURL:  c.RedirectURL,
		Scopes:       c.Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:   c.AuthURL,
			TokenURL:  c.TokenURL,
			AuthStyle: oauth2.AuthStyleInHeader,
		},
	}
}

// NewLimiter returns the admission gate for outbound provider calls
func NewLimiter(cfg *Config) *rate.Limiter {
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	return rate.NewLimiter(limit, burst)
}
