package sessions

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// Manager owns the provider credential of a single patient. Refreshes are
// serialized; a caller arriving during a refresh waits for it and reuses the
// refreshed token.
type Manager struct {
	patientId string
	provider  string
	oauth     *oauth2.Config
	repo      Repository
	logger    *zap.SugaredLogger
	now       func() time.Time

	mu      sync.Mutex
	session *ExternalSession
	loaded  bool
	// unsaved is set while the in-memory token is newer than the persisted one
	unsaved bool
	state   atomic.Value
}

func NewManager(patientId string, providerName string, oauth *oauth2.Config, repo Repository, logger *zap.SugaredLogger, now func() time.Time) *Manager {
	if now == nil {
		now = time.Now
	}
	m := &Manager{
		patientId: patientId,
		provider:  providerName,
		oauth:     oauth,
		repo:      repo,
		logger:    logger.With("patientId", patientId),
		now:       now,
	}
	m.state.Store(StateUnauthenticated)
	return m
}

func (m *Manager) PatientId() string {
	return m.patientId
}

// State returns the last observed state without waiting for an in-flight refresh
func (m *Manager) State() State {
	return m.state.Load().(State)
}

// Load reads the persisted session, returning the current state
func (m *Manager) Load(ctx context.Context) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := m.load(ctx); err != nil {
		return "", err
	}
	return m.State(), nil
}

// BeginAuthorization returns the provider consent url carrying a new anti-forgery state
func (m *Manager) BeginAuthorization(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, err := m.load(ctx)
	if err != nil {
		return "", err
	}
	if session == nil {
		session = &ExternalSession{
			PatientId: m.patientId,
			Provider:  m.provider,
			State:     StateUnauthenticated,
		}
	}

	next := *session
	next.PendingState = uuid.NewString()
	next.PendingStateExpiresAt = m.now().Add(pendingStateTTL)
	if !next.HasCredential() {
		next.State = StateAuthorizing
	}

	if err := m.save(ctx, &next); err != nil {
		return "", err
	}

	url := m.oauth.AuthCodeURL(next.PendingState, oauth2.AccessTypeOffline, oauth2.SetAuthURLParam("prompt", "login"))
	m.logger.Infow("began provider authorization", "state", m.State())
	return url, nil
}

// CompleteAuthorization validates the callback state and exchanges the authorization code
func (m *Manager) CompleteAuthorization(ctx context.Context, params CallbackParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, err := m.load(ctx)
	if err != nil {
		return err
	}
	if session == nil || session.PendingState == "" {
		return fmt.Errorf("%w: no authorization in progress", ErrAuthExchange)
	}
	if params.State != session.PendingState {
		return fmt.Errorf("%w: state mismatch", ErrAuthExchange)
	}

	next := *session
	next.clearPendingState()
	if !next.HasCredential() {
		next.State = StateUnauthenticated
	}

	if m.now().After(session.PendingStateExpiresAt) {
		return m.failExchange(ctx, &next, fmt.Errorf("%w: authorization request expired", ErrAuthExchange))
	}
	if params.Error != "" {
		return m.failExchange(ctx, &next, fmt.Errorf("%w: %s %s", ErrAuthExchange, params.Error, params.ErrorDescription))
	}
	if params.Code == "" {
		return m.failExchange(ctx, &next, fmt.Errorf("%w: missing authorization code", ErrAuthExchange))
	}

	token, err := m.oauth.Exchange(ctx, params.Code)
	if err != nil {
		return m.failExchange(ctx, &next, fmt.Errorf("%w: %v", ErrAuthExchange, err))
	}

	next.setToken(token, m.now())
	if err := m.save(ctx, &next); err != nil {
		return err
	}

	m.logger.Infow("completed provider authorization", "expiresAt", next.ExpiresAt, "scope", next.Scope)
	return nil
}

func (m *Manager) failExchange(ctx context.Context, next *ExternalSession, exchangeErr error) error {
	if err := m.save(ctx, next); err != nil {
		m.logger.Errorw("unable to clear pending authorization", "error", err)
	}
	m.logger.Warnw("provider authorization failed", "error", exchangeErr)
	return exchangeErr
}

// GetValidToken returns an access token which is valid for at least the refresh buffer,
// refreshing it first when needed
func (m *Manager) GetValidToken(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, err := m.load(ctx)
	if err != nil {
		return "", err
	}
	if !session.HasCredential() {
		return "", ErrNotAuthenticated
	}
	if !session.NeedsRefresh(m.now()) {
		return session.AccessToken, nil
	}

	// Another process may have refreshed the token since it was loaded
	session, err = m.reload(ctx)
	if err != nil {
		return "", err
	}
	if !session.HasCredential() {
		return "", ErrNotAuthenticated
	}
	if !session.NeedsRefresh(m.now()) {
		return session.AccessToken, nil
	}

	return m.refresh(ctx, session)
}

func (m *Manager) refresh(ctx context.Context, session *ExternalSession) (string, error) {
	m.state.Store(StateRefreshing)
	m.logger.Debugw("refreshing provider token", "expiresAt", session.ExpiresAt)

	source := m.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: session.RefreshToken})
	token, err := source.Token()
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			// the provider rejected the refresh token, the patient has to authorize again
			next := *session
			next.clearCredential()
			if saveErr := m.save(ctx, &next); saveErr != nil {
				m.session = &next
				m.unsaved = false
				m.state.Store(next.State)
				m.logger.Errorw("unable to clear rejected credential", "error", saveErr)
			}
			m.logger.Warnw("provider rejected token refresh", "error", err)
		} else {
			m.state.Store(session.State)
			m.logger.Warnw("unable to refresh provider token", "error", err)
		}
		return "", fmt.Errorf("%w: %v", ErrCredentialExpired, err)
	}

	next := *session
	next.setToken(token, m.now())
	if err := m.save(ctx, &next); err != nil {
		// the previous refresh token may already be invalidated, keep the new one in memory
		m.session = &next
		m.unsaved = true
		m.state.Store(next.State)
		m.logger.Errorw("unable to persist refreshed token", "error", err)
	}

	m.logger.Infow("refreshed provider token", "expiresAt", next.ExpiresAt)
	return next.AccessToken, nil
}

// Revoke drops the stored credential. Revoking an unauthenticated session is a no-op.
func (m *Manager) Revoke(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.repo.Delete(ctx, m.patientId); err != nil {
		return err
	}

	m.session = nil
	m.loaded = true
	m.unsaved = false
	m.state.Store(StateUnauthenticated)
	m.logger.Infow("revoked provider credential")
	return nil
}

func (m *Manager) load(ctx context.Context) (*ExternalSession, error) {
	if m.loaded {
		return m.session, nil
	}

	session, err := m.repo.Get(ctx, m.patientId)
	if errors.Is(err, ErrNotFound) {
		session = nil
	} else if err != nil {
		return nil, err
	}

	m.session = session
	m.loaded = true
	if session != nil {
		m.state.Store(session.State)
	} else {
		m.state.Store(StateUnauthenticated)
	}
	return session, nil
}

// reload reads the persisted session again unless the in-memory token wasn't persisted
func (m *Manager) reload(ctx context.Context) (*ExternalSession, error) {
	if m.unsaved {
		return m.session, nil
	}
	m.loaded = false
	return m.load(ctx)
}

func (m *Manager) save(ctx context.Context, session *ExternalSession) error {
	saved, err := m.repo.Upsert(ctx, session)
	if err != nil {
		return err
	}

	m.session = saved
	m.loaded = true
	m.unsaved = false
	m.state.Store(saved.State)
	return nil
}
