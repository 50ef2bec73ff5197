package ingestion

import (
	"context"
	"errors"
	"time"

	"github.com/avast/retry-go"
	"go.uber.org/zap"

	"github.com/tidepool-org/cardiac/provider"
)

// RetryPolicy bounds the retries of rate limited and failed provider calls
type RetryPolicy struct {
	Attempts  uint
	Delay     time.Duration
	MaxDelay  time.Duration
	MaxJitter time.Duration
}

func NewRetryPolicy(cfg *provider.Config) RetryPolicy {
	return RetryPolicy{
		Attempts:  cfg.RetryAttempts,
		Delay:     cfg.RetryDelay,
		MaxDelay:  cfg.RetryMaxDelay,
		MaxJitter: cfg.RetryMaxJitter,
	}
}

// IsRetryable returns true for provider errors which may succeed when retried
func IsRetryable(err error) bool {
	return errors.Is(err, provider.ErrRateLimited) ||
		errors.Is(err, provider.ErrNetwork) ||
		errors.Is(err, provider.ErrProvider)
}

// Do calls fn until it succeeds, fails with an error which is not retryable or the attempts are exhausted.
// The provider's Retry-After hint takes precedence over the exponential backoff.
func (p RetryPolicy) Do(ctx context.Context, logger *zap.SugaredLogger, fn func() error) error {
	attempts := p.Attempts
	if attempts == 0 {
		attempts = 1
	}

	backoff := retry.BackOffDelay
	if p.MaxJitter > 0 {
		backoff = retry.CombineDelay(retry.BackOffDelay, retry.RandomDelay)
	}

	return retry.Do(fn,
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.Delay(p.Delay),
		retry.MaxDelay(p.MaxDelay),
		retry.MaxJitter(p.MaxJitter),
		retry.LastErrorOnly(true),
		retry.RetryIf(IsRetryable),
		retry.DelayType(func(n uint, err error, config *retry.Config) time.Duration {
			var statusErr *provider.StatusError
			if errors.As(err, &statusErr) && statusErr.RetryAfter > 0 {
				return statusErr.RetryAfter
			}
			return backoff(n, err, config)
		}),
		retry.OnRetry(func(n uint, err error) {
			logger.Warnw("retrying provider request", "attempt", n+1, "error", err)
		}),
	)
}
