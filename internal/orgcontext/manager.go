// manager.go owns one context store per signed-in identity. Stores are created
// lazily on first use, torn down on sign-out, and evicted by a background
// janitor when idle, so a long-running server does not accumulate state for
// sessions that simply stopped sending requests.
package orgcontext

import (
	"context"
	"sync"
	"time"

	"github.com/member-portal/member-portal/internal/safego"
)

// ManagerConfig tunes store eviction.
type ManagerConfig struct {
	// IdleTTL is how long a store may go unused before the janitor evicts it.
	IdleTTL time.Duration
	// SweepInterval is how often the janitor scans for idle stores.
	SweepInterval time.Duration
}

// DefaultManagerConfig returns the eviction defaults.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		IdleTTL:       30 * time.Minute,
		SweepInterval: 5 * time.Minute,
	}
}

// Manager hands out the context store for each identity.
type Manager struct {
	deps ManagerDeps
	cfg  ManagerConfig

	mu     sync.Mutex
	stores map[string]*Store
	stop   chan struct{}
	once   sync.Once
}

// ManagerDeps are the collaborators shared by every store the manager creates.
type ManagerDeps struct {
	Memberships MembershipSource
	Orgs        OrganizationSource
	Prefs       PreferenceStore
}

// NewManager creates a manager and starts its eviction janitor.
func NewManager(deps ManagerDeps, cfg ManagerConfig) *Manager {
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = DefaultManagerConfig().IdleTTL
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = DefaultManagerConfig().SweepInterval
	}
	m := &Manager{
		deps:   deps,
		cfg:    cfg,
		stores: make(map[string]*Store),
		stop:   make(chan struct{}),
	}
	safego.Go(m.janitor)
	return m
}

// StoreFor returns the identity's context store, creating it on first use.
// Creation performs no I/O; the caller decides when to Fetch.
func (m *Manager) StoreFor(ident Identity) *Store {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.stores[ident.ID]; ok {
		return s
	}
	s := NewStoreForIdentity(ident, Deps{
		Memberships: m.deps.Memberships,
		Orgs:        m.deps.Orgs,
		Prefs:       m.deps.Prefs,
	})
	m.stores[ident.ID] = s
	return s
}

// SignedOut tears down the identity's store: state cleared, preference
// cleared, store removed so the next sign-in starts fresh. Safe to call for
// identities without a store.
func (m *Manager) SignedOut(ctx context.Context, identityID string) {
	m.mu.Lock()
	s, ok := m.stores[identityID]
	if ok {
		delete(m.stores, identityID)
	}
	m.mu.Unlock()
	if ok {
		s.SignedOut(ctx)
	}
}

// Close stops the janitor. Stores are left to the garbage collector; nothing
// in them needs explicit teardown.
func (m *Manager) Close() {
	m.once.Do(func() { close(m.stop) })
}

func (m *Manager) janitor() {
	ticker := time.NewTicker(m.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-m.cfg.IdleTTL)
			m.mu.Lock()
			for id, s := range m.stores {
				if s.idleSince().Before(cutoff) {
					delete(m.stores, id)
				}
			}
			m.mu.Unlock()
		}
	}
}
