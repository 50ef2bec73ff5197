package sessions

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/simplelru"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/tidepool-org/cardiac/config"
	"github.com/tidepool-org/cardiac/provider"
)

const defaultCacheSize = 1024

// Registry hands out the session manager of a patient. Managers are cached so
// that every caller of a patient shares the same refresh lock. A manager which
// is in use stays leased even when it is evicted from the cache.
type Registry struct {
	oauth  *oauth2.Config
	repo   Repository
	logger *zap.SugaredLogger
	now    func() time.Time

	mu       sync.Mutex
	managers *simplelru.LRU
	leases   map[string]*lease
}

type lease struct {
	manager *Manager
	refs    int
}

func NewRegistry(cfg *config.Config, providerConfig *provider.Config, repo Repository, logger *zap.SugaredLogger) (*Registry, error) {
	return NewRegistryWithClock(cfg.SessionCacheSize, providerConfig.OAuth2(), repo, logger, time.Now)
}

func NewRegistryWithClock(size int, oauth *oauth2.Config, repo Repository, logger *zap.SugaredLogger, now func() time.Time) (*Registry, error) {
	if size <= 0 {
		size = defaultCacheSize
	}
	r := &Registry{
		oauth:  oauth,
		repo:   repo,
		logger: logger,
		now:    now,
		leases: map[string]*lease{},
	}

	managers, err := simplelru.NewLRU(size, func(key interface{}, _ interface{}) {
		r.logger.Debugw("evicted session manager", "patientId", key)
	})
	if err != nil {
		return nil, fmt.Errorf("unable to create session manager cache: %w", err)
	}
	r.managers = managers
	return r, nil
}

// Manager returns the session manager of the patient
func (r *Registry) Manager(patientId string) *Manager {
	r.mu.Lock()
	defer r.mu.Unlock()

	if l, ok := r.leases[patientId]; ok {
		return l.manager
	}
	return r.cached(patientId)
}

// acquire leases the manager of the patient until release is called
func (r *Registry) acquire(patientId string) (*Manager, func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	l, ok := r.leases[patientId]
	if !ok {
		l = &lease{manager: r.cached(patientId)}
		r.leases[patientId] = l
	}
	l.refs++

	var once sync.Once
	return l.manager, func() {
		once.Do(func() { r.release(patientId) })
	}
}

func (r *Registry) release(patientId string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	l, ok := r.leases[patientId]
	if !ok {
		return
	}
	l.refs--
	if l.refs > 0 {
		return
	}

	delete(r.leases, patientId)
	if !r.managers.Contains(patientId) {
		r.managers.Add(patientId, l.manager)
	}
}

// cached must be called with r.mu held
func (r *Registry) cached(patientId string) *Manager {
	if m, ok := r.managers.Get(patientId); ok {
		return m.(*Manager)
	}

	m := NewManager(patientId, provider.Name, r.oauth, r.repo, r.logger, r.now)
	r.managers.Add(patientId, m)
	return m
}

// CompleteAuthorization resolves the patient from the callback state and completes the exchange
func (r *Registry) CompleteAuthorization(ctx context.Context, params CallbackParams) (string, error) {
	session, err := r.repo.GetByPendingState(ctx, params.State)
	if err != nil {
		return "", fmt.Errorf("%w: unknown authorization state", ErrAuthExchange)
	}

	m, release := r.acquire(session.PatientId)
	defer release()

	if err := m.CompleteAuthorization(ctx, params); err != nil {
		return session.PatientId, err
	}
	return session.PatientId, nil
}

func (r *Registry) BeginAuthorization(ctx context.Context, patientId string) (string, error) {
	m, release := r.acquire(patientId)
	defer release()
	return m.BeginAuthorization(ctx)
}

func (r *Registry) GetValidToken(ctx context.Context, patientId string) (string, error) {
	m, release := r.acquire(patientId)
	defer release()
	return m.GetValidToken(ctx)
}

func (r *Registry) Revoke(ctx context.Context, patientId string) error {
	m, release := r.acquire(patientId)
	defer release()
	return m.Revoke(ctx)
}

func (r *Registry) State(ctx context.Context, patientId string) (State, error) {
	m, release := r.acquire(patientId)
	defer release()
	return m.Load(ctx)
}

// AuthenticatedPatientIds returns the patients with a connected provider account
func (r *Registry) AuthenticatedPatientIds(ctx context.Context) ([]string, error) {
	return r.repo.ListAuthenticatedPatientIds(ctx)
}
