package provider

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	intradayHeartRatePath = "/activities/heart/date/{date}/1d/{detail}.json"
	heartRatePath         = "/activities/heart/date/{date}/1d.json"
	activitySummaryPath   = "/activities/date/{date}.json"
	profilePath           = "/profile.json"
	devicesPath           = "/devices.json"
)

var _ Client = &client{}

type client struct {
	http    *resty.Client
	limiter *rate.Limiter
	logger  *zap.SugaredLogger
}

func NewClient(cfg *Config, limiter *rate.Limiter, logger *zap.SugaredLogger) Client {
	httpClient := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.RequestTimeout).
		SetHeader("Accept", "application/json").
		SetHeader("Accept-Language", "en_US")

	return &client{
		http:    httpClient,
		limiter: limiter,
		logger:  logger,
	}
}

func (c *client) IntradayHeartRate(ctx context.Context, accessToken string, date time.Time, detail string) (*HeartRateResponse, error) {
	if detail == "" {
		detail = DetailOneMinute
	}
	result := &HeartRateResponse{}
	params := map[string]string{
		"date":   date.Format(DateLayout),
		"detail": detail,
	}
	if err := c.get(ctx, accessToken, intradayHeartRatePath, params, result); err != nil {
		return nil, err
	}
	return result, nil
}

func (c *client) RestingHeartRate(ctx context.Context, accessToken string, date time.Time) (*HeartRateResponse, error) {
	result := &HeartRateResponse{}
	params := map[string]string{
		"date": date.Format(DateLayout),
	}
	if err := c.get(ctx, accessToken, heartRatePath, params, result); err != nil {
		return nil, err
	}
	return result, nil
}

func (c *client) ActivitySummary(ctx context.Context, accessToken string, date time.Time) (*ActivityResponse, error) {
	result := &ActivityResponse{}
	params := map[string]string{
		"date": date.Format(DateLayout),
	}
	if err := c.get(ctx, accessToken, activitySummaryPath, params, result); err != nil {
		return nil, err
	}
	return result, nil
}

func (c *client) Profile(ctx context.Context, accessToken string) (*ProfileResponse, error) {
	result := &ProfileResponse{}
	if err := c.get(ctx, accessToken, profilePath, nil, result); err != nil {
		return nil, err
	}
	return result, nil
}

func (c *client) Devices(ctx context.Context, accessToken string) ([]Device, error) {
	var result []Device
	if err := c.get(ctx, accessToken, devicesPath, nil, &result); err != nil {
		return nil, err
	}
	return result, nil
}

func (c *client) get(ctx context.Context, accessToken string, path string, params map[string]string, result interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("unable to acquire provider request slot: %w", err)
	}

	req := c.http.R().
		SetContext(ctx).
		SetAuthToken(accessToken).
		SetResult(result)
	if len(params) > 0 {
		req.SetPathParams(params)
	}

	start := time.Now()
	res, err := req.Get(path)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}

	status := 0
	if res != nil {
		status = res.StatusCode()
	}
	c.logger.Debugw("provider request completed", "path", path, "params", params, "status", status, "duration", time.Since(start))

	if err != nil {
		if status == http.StatusOK {
			return fmt.Errorf("%w: unable to decode %s response: %v", ErrProvider, path, err)
		}
		return fmt.Errorf("%w: %s: %v", ErrNetwork, path, err)
	}

	switch status {
	case http.StatusOK:
		return nil
	case http.StatusUnauthorized:
		return &StatusError{StatusCode: status, Path: path, err: ErrCredentialInvalid}
	case http.StatusTooManyRequests:
		return &StatusError{
			StatusCode: status,
			Path:       path,
			RetryAfter: retryAfter(res.Header()),
			err:        ErrRateLimited,
		}
	default:
		return &StatusError{StatusCode: status, Path: path, err: ErrProvider}
	}
}

// retryAfter returns the delay requested by the provider, preferring the standard
// header over the seconds until the rate limit window resets
func retryAfter(header http.Header) time.Duration {
	for _, name := range []string{"Retry-After", "Fitbit-Rate-Limit-Reset"} {
		if seconds, err := strconv.Atoi(header.Get(name)); err == nil && seconds > 0 {
			return time.Duration(seconds) * time.Second
		}
	}
	return 0
}
