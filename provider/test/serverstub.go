package test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
)

const (
	ClientId          = "client-id"
	ClientSecret      = "client-secret"
	AuthorizationCode = "authorization-code"
	TokenEndpoint     = "/oauth2/token"
	AuthorizeEndpoint = "/oauth2/authorize"
	ApiPrefix         = "/1/user/-"
)

type failure struct {
	status     int
	retryAfter string
}

// FitbitServer is an in-memory stand in for the provider web api and token endpoint
type FitbitServer struct {
	*httptest.Server

	mu               sync.Mutex
	accessTokens     map[string]bool
	refreshTokens    map[string]bool
	intraday         map[string][]map[string]interface{}
	resting          map[string]float64
	activity         map[string]map[string]interface{}
	profile          map[string]interface{}
	failures         map[string][]failure
	requests         map[string]int
	issued           int
	refreshCount     int
	rejectRefresh    bool
	rejectExchange   bool
	expiresInSeconds int
	hold             *tokenHold
}

type tokenHold struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func ServerStub() *FitbitServer {
	f := &FitbitServer{
		accessTokens:     map[string]bool{},
		refreshTokens:    map[string]bool{},
		intraday:         map[string][]map[string]interface{}{},
		resting:          map[string]float64{},
		activity:         map[string]map[string]interface{}{},
		failures:         map[string][]failure{},
		requests:         map[string]int{},
		expiresInSeconds: 28800,
		profile: map[string]interface{}{
			"encodedId":           "ABC123",
			"displayName":         "Test User",
			"timezone":            "UTC",
			"offsetFromUTCMillis": 0,
		},
	}
	f.Server = httptest.NewServer(http.HandlerFunc(f.handle))
	return f
}

func (f *FitbitServer) BaseURL() string {
	return f.URL + ApiPrefix
}

func (f *FitbitServer) TokenURL() string {
	return f.URL + TokenEndpoint
}

func (f *FitbitServer) AuthURL() string {
	return f.URL + AuthorizeEndpoint
}

// IssueToken registers and returns a valid access token
func (f *FitbitServer) IssueToken() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	access, _ := f.issue()
	return access
}

func (f *FitbitServer) RevokeAccessTokens() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.accessTokens = map[string]bool{}
}

func (f *FitbitServer) SetExpiresIn(seconds int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.expiresInSeconds = seconds
}

func (f *FitbitServer) RejectRefresh(reject bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rejectRefresh = reject
}

func (f *FitbitServer) RejectExchange(reject bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rejectExchange = reject
}

// HoldTokenRequests blocks token requests until release is called. started is
// closed when the first held request arrives.
func (f *FitbitServer) HoldTokenRequests() (<-chan struct{}, func()) {
	h := &tokenHold{
		started: make(chan struct{}),
		release: make(chan struct{}),
	}

	f.mu.Lock()
	f.hold = h
	f.mu.Unlock()

	var once sync.Once
	return h.started, func() {
		once.Do(func() {
			f.mu.Lock()
			f.hold = nil
			f.mu.Unlock()
			close(h.release)
		})
	}
}

func (f *FitbitServer) RefreshCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refreshCount
}

func (f *FitbitServer) AddIntraday(date string, points map[string]float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for t, v := range points {
		f.intraday[date] = append(f.intraday[date], map[string]interface{}{"time": t, "value": v})
	}
}

func (f *FitbitServer) SetRestingHeartRate(date string, value float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resting[date] = value
}

func (f *FitbitServer) SetActivity(date string, steps int, caloriesOut float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.activity[date] = map[string]interface{}{
		"steps":                steps,
		"caloriesOut":          caloriesOut,
		"lightlyActiveMinutes": 30,
		"fairlyActiveMinutes":  10,
		"veryActiveMinutes":    5,
	}
}

// FailNext makes the next count requests whose path contains fragment fail with status
func (f *FitbitServer) FailNext(fragment string, status int, count int) {
	f.FailNextWithRetryAfter(fragment, status, count, "")
}

func (f *FitbitServer) FailNextWithRetryAfter(fragment string, status int, count int, retryAfter string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := 0; i < count; i++ {
		f.failures[fragment] = append(f.failures[fragment], failure{status: status, retryAfter: retryAfter})
	}
}

// Requests returns the number of api requests whose path contains fragment
func (f *FitbitServer) Requests(fragment string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for path, n := range f.requests {
		if strings.Contains(path, fragment) {
			count += n
		}
	}
	return count
}

func (f *FitbitServer) issue() (string, string) {
	f.issued++
	access := fmt.Sprintf("access-%d", f.issued)
	refresh := fmt.Sprintf("refresh-%d", f.issued)
	f.accessTokens[access] = true
	f.refreshTokens[refresh] = true
	return access, refresh
}

func (f *FitbitServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == TokenEndpoint {
		f.mu.Lock()
		h := f.hold
		f.mu.Unlock()
		if h != nil {
			h.once.Do(func() { close(h.started) })
			<-h.release
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if r.Method == http.MethodPost && r.URL.Path == TokenEndpoint {
		f.handleToken(w, r)
		return
	}

	if !strings.HasPrefix(r.URL.Path, ApiPrefix) {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	path := strings.TrimPrefix(r.URL.Path, ApiPrefix)
	f.requests[path]++

	for fragment, failures := range f.failures {
		if strings.Contains(path, fragment) && len(failures) > 0 {
			f.failures[fragment] = failures[1:]
			if failures[0].retryAfter != "" {
				w.Header().Set("Retry-After", failures[0].retryAfter)
			}
			w.WriteHeader(failures[0].status)
			return
		}
	}

	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !f.accessTokens[token] {
		writeJSON(w, http.StatusUnauthorized, map[string]interface{}{
			"errors": []map[string]string{{"errorType": "expired_token"}},
		})
		return
	}

	parts := strings.Split(strings.TrimPrefix(path, "/"), "/")
	switch {
	case path == "/profile.json":
		writeJSON(w, http.StatusOK, map[string]interface{}{"user": f.profile})
	case path == "/devices.json":
		writeJSON(w, http.StatusOK, []map[string]interface{}{
			{"id": "1234", "deviceVersion": "Charge 5", "type": "TRACKER", "battery": "High", "batteryLevel": 80},
		})
	case len(parts) == 6 && parts[0] == "activities" && parts[1] == "heart":
		date := parts[3]
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"activities-heart": f.heartSummaries(date),
			"activities-heart-intraday": map[string]interface{}{
				"dataset":         f.dataset(date),
				"datasetInterval": 1,
				"datasetType":     "minute",
			},
		})
	case len(parts) == 5 && parts[0] == "activities" && parts[1] == "heart":
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"activities-heart": f.heartSummaries(parts[3]),
		})
	case len(parts) == 3 && parts[0] == "activities" && parts[1] == "date":
		date := strings.TrimSuffix(parts[2], ".json")
		summary, ok := f.activity[date]
		if !ok {
			summary = map[string]interface{}{"steps": 0, "caloriesOut": 0}
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"summary": summary})
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (f *FitbitServer) heartSummaries(date string) []map[string]interface{} {
	value := map[string]interface{}{}
	if resting, ok := f.resting[date]; ok {
		value["restingHeartRate"] = resting
	}
	return []map[string]interface{}{{"dateTime": date, "value": value}}
}

func (f *FitbitServer) dataset(date string) []map[string]interface{} {
	if points, ok := f.intraday[date]; ok {
		return points
	}
	return []map[string]interface{}{}
}

func (f *FitbitServer) handleToken(w http.ResponseWriter, r *http.Request) {
	clientId, clientSecret, ok := r.BasicAuth()
	if !ok || clientId != ClientId || clientSecret != ClientSecret {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid_client"})
		return
	}
	if err := r.ParseForm(); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	switch r.PostForm.Get("grant_type") {
	case "authorization_code":
		if f.rejectExchange || r.PostForm.Get("code") != AuthorizationCode {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_grant"})
			return
		}
	case "refresh_token":
		refresh := r.PostForm.Get("refresh_token")
		if f.rejectRefresh || !f.refreshTokens[refresh] {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_grant"})
			return
		}
		// refresh tokens are single use
		delete(f.refreshTokens, refresh)
		f.refreshCount++
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unsupported_grant_type"})
		return
	}

	access, refresh := f.issue()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"access_token":  access,
		"refresh_token": refresh,
		"token_type":    "Bearer",
		"expires_in":    f.expiresInSeconds,
		"scope":         "heartrate activity profile sleep weight",
		"user_id":       "ABC123",
	})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	encoded, err := json.Marshal(body)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json;charset=UTF-8")
	w.WriteHeader(status)
	w.Write(encoded)
}
