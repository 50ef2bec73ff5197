package test

import (
	providerTest "github.com/tidepool-org/cardiac/provider/test"
)

const (
	TestClinicianId = "clinician-integration"
	TestResolver    = "dr-integration"
)

// Environment returns the variables which point the service at the provider stub
func Environment(fitbit *providerTest.FitbitServer) map[string]string {
	return map[string]string{
		"CARDIAC_PROVIDER_BASE_URL":            fitbit.BaseURL(),
		"CARDIAC_PROVIDER_AUTH_URL":            fitbit.AuthURL(),
		"CARDIAC_PROVIDER_TOKEN_URL":           fitbit.TokenURL(),
		"CARDIAC_PROVIDER_CLIENT_ID":           providerTest.ClientId,
		"CARDIAC_PROVIDER_CLIENT_SECRET":       providerTest.ClientSecret,
		"CARDIAC_PROVIDER_RETRY_DELAY":         "10ms",
		"CARDIAC_PROVIDER_RETRY_MAX_JITTER":    "0s",
		"CARDIAC_PROVIDER_REQUESTS_PER_SECOND": "0",
		"CARDIAC_REDIS_ADDRESS":                "",
		"CARDIAC_WARNING_SEVERITY":             "high",
	}
}
