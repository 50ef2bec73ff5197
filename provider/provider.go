package provider

import (
	"context"
	"fmt"
	"time"

	"github.com/tidepool-org/cardiac/errors"
)

//go:generate mockgen -source=./provider.go -destination=./test/mock_provider.go -package test

const (
	Name = "fitbit"

	DateLayout = "2006-01-02"
	TimeLayout = "15:04:05"

	DetailOneMinute     = "1min"
	DetailFiveMinutes   = "5min"
	DetailFifteenMinute = "15min"
	DetailOneSecond     = "1sec"
)

var (
	ErrCredentialInvalid = fmt.Errorf("provider credential %w", errors.Unauthorized)
	ErrRateLimited       = fmt.Errorf("provider %w", errors.TooManyRequests)
	ErrNetwork           = fmt.Errorf("provider network %w", errors.ServiceUnavailable)
	ErrProvider          = fmt.Errorf("provider %w", errors.BadGateway)
)

// Client issues the provider calls on behalf of the account owning accessToken
type Client interface {
	IntradayHeartRate(ctx context.Context, accessToken string, date time.Time, detail string) (*HeartRateResponse, error)
	RestingHeartRate(ctx context.Context, accessToken string, date time.Time) (*HeartRateResponse, error)
	ActivitySummary(ctx context.Context, accessToken string, date time.Time) (*ActivityResponse, error)
	Profile(ctx context.Context, accessToken string) (*ProfileResponse, error)
	Devices(ctx context.Context, accessToken string) ([]Device, error)
}

// StatusError is returned for unsuccessful responses
type StatusError struct {
	StatusCode int
	RetryAfter time.Duration
	Path       string
	err        error
}

func (s *StatusError) Error() string {
	return fmt.Sprintf("%s: %s returned status %d", s.err.Error(), s.Path, s.StatusCode)
}

func (s *StatusError) Unwrap() error {
	return s.err
}

type HeartRateResponse struct {
	Summaries []HeartRateSummary `json:"activities-heart"`
	Intraday  *IntradaySeries    `json:"activities-heart-intraday,omitempty"`
}

// RestingHeartRate returns the resting heart rate of the first summary if the provider computed one
func (h *HeartRateResponse) RestingHeartRate() *float64 {
	if h == nil {
		return nil
	}
	for _, s := range h.Summaries {
		if s.Value.RestingHeartRate != nil {
			return s.Value.RestingHeartRate
		}
	}
	return nil
}

type HeartRateSummary struct {
	DateTime string              `json:"dateTime"`
	Value    HeartRateDaySummary `json:"value"`
}

type HeartRateDaySummary struct {
	RestingHeartRate *float64        `json:"restingHeartRate,omitempty"`
	HeartRateZones   []HeartRateZone `json:"heartRateZones,omitempty"`
}

type HeartRateZone struct {
	Name        string   `json:"name"`
	Min         float64  `json:"min"`
	Max         float64  `json:"max"`
	Minutes     int      `json:"minutes"`
	CaloriesOut *float64 `json:"caloriesOut,omitempty"`
}

type IntradaySeries struct {
	Dataset         []IntradayPoint `json:"dataset"`
	DatasetInterval int             `json:"datasetInterval"`
	DatasetType     string          `json:"datasetType"`
}

type IntradayPoint struct {
	Time  string  `json:"time"`
	Value float64 `json:"value"`
}

// Timestamp returns the instant of the point on the given day in loc
func (p IntradayPoint) Timestamp(day time.Time, loc *time.Location) (time.Time, error) {
	t, err := time.Parse(TimeLayout, p.Time)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid intraday time %q: %w", p.Time, err)
	}
	return time.Date(day.Year(), day.Month(), day.Day(), t.Hour(), t.Minute(), t.Second(), 0, loc), nil
}

type ActivityResponse struct {
	Summary ActivitySummary `json:"summary"`
}

type ActivitySummary struct {
	Steps                int      `json:"steps"`
	CaloriesOut          float64  `json:"caloriesOut"`
	RestingHeartRate     *float64 `json:"restingHeartRate,omitempty"`
	SedentaryMinutes     int      `json:"sedentaryMinutes"`
	LightlyActiveMinutes int      `json:"lightlyActiveMinutes"`
	FairlyActiveMinutes  int      `json:"fairlyActiveMinutes"`
	VeryActiveMinutes    int      `json:"veryActiveMinutes"`
}

// ActiveMinutes returns the sum of lightly, fairly and very active minutes
func (a ActivitySummary) ActiveMinutes() int {
	return a.LightlyActiveMinutes + a.FairlyActiveMinutes + a.VeryActiveMinutes
}

type ProfileResponse struct {
	User Profile `json:"user"`
}

type Profile struct {
	EncodedId           string `json:"encodedId"`
	DisplayName         string `json:"displayName"`
	Gender              string `json:"gender"`
	Age                 int    `json:"age"`
	Timezone            string `json:"timezone"`
	OffsetFromUTCMillis int64  `json:"offsetFromUTCMillis"`
}

// Location returns the time zone of the account, falling back to the UTC offset
// when the zone name is unknown
func (p Profile) Location() *time.Location {
	if p.Timezone != "" {
		if loc, err := time.LoadLocation(p.Timezone); err == nil {
			return loc
		}
	}
	if p.OffsetFromUTCMillis != 0 {
		return time.FixedZone(p.Timezone, int(p.OffsetFromUTCMillis/1000))
	}
	return time.UTC
}

type Device struct {
	Id            string `json:"id"`
	DeviceVersion string `json:"deviceVersion"`
	Type          string `json:"type"`
	Battery       string `json:"battery"`
	BatteryLevel  int    `json:"batteryLevel"`
	LastSyncTime  string `json:"lastSyncTime"`
}
