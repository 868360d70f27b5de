// preference.go implements the persisted active-organization preference. The
// preference is a hint for resolution, never authoritative: readers must always
// revalidate it against current active memberships. Keys are scoped per
// identity so one user's hint can never leak to another account on a shared
// device, and the Store clears the key on sign-out.
package orgcontext

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// PreferenceStore persists one organization id per identity. Get returns
// ("", nil) when no preference is stored; absence is a valid state.
type PreferenceStore interface {
	Get(ctx context.Context, identityID string) (string, error)
	Set(ctx context.Context, identityID, orgID string) error
	Clear(ctx context.Context, identityID string) error
}

const preferenceKeyPrefix = "portal:active_org:"

// Preferences older than this are dropped by Redis on its own; the TTL is
// refreshed on every write so active users never lose their hint.
const preferenceTTL = 90 * 24 * time.Hour

// RedisPreferences stores preferences in Redis under portal:active_org:<id>.
type RedisPreferences struct {
	client *redis.Client
}

// NewRedisPreferences creates a Redis-backed preference store.
func NewRedisPreferences(client *redis.Client) *RedisPreferences {
	return &RedisPreferences{client: client}
}

// Get returns the stored organization id for the identity, or "" when absent.
func (p *RedisPreferences) Get(ctx context.Context, identityID string) (string, error) {
	val, err := p.client.Get(ctx, preferenceKeyPrefix+identityID).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return val, nil
}

// Set stores the organization id for the identity.
func (p *RedisPreferences) Set(ctx context.Context, identityID, orgID string) error {
	return p.client.Set(ctx, preferenceKeyPrefix+identityID, orgID, preferenceTTL).Err()
}

// Clear removes the identity's stored preference.
func (p *RedisPreferences) Clear(ctx context.Context, identityID string) error {
	return p.client.Del(ctx, preferenceKeyPrefix+identityID).Err()
}

// MemoryPreferences is an in-process preference store used when Redis is not
// configured (single-instance deployments, local development) and in tests.
type MemoryPreferences struct {
	mu    sync.RWMutex
	prefs map[string]string
}

// NewMemoryPreferences creates an empty in-memory preference store.
func NewMemoryPreferences() *MemoryPreferences {
	return &MemoryPreferences{prefs: make(map[string]string)}
}

// Get returns the stored organization id for the identity, or "" when absent.
func (p *MemoryPreferences) Get(_ context.Context, identityID string) (string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.prefs[identityID], nil
}

// Set stores the organization id for the identity.
func (p *MemoryPreferences) Set(_ context.Context, identityID, orgID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.prefs[identityID] = orgID
	return nil
}

// Clear removes the identity's stored preference.
func (p *MemoryPreferences) Clear(_ context.Context, identityID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.prefs, identityID)
	return nil
}
