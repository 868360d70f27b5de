// store.go implements the session-scoped context store and its lifecycle
// operations. The store owns the mutable {organizations, activeOrg,
// activeMembership, loading, error} state for one authenticated session and
// mediates every read and write through the repository collaborators.
//
// Concurrency model: all state lives behind one mutex and commits are atomic —
// no caller can observe activeOrg updated without its matching membership. A
// monotonically increasing generation counter orders user-driven actions
// against in-flight fetches: SetActiveOrg and SignedOut bump the generation,
// and a fetch that started under an older generation discards its result on
// arrival instead of clobbering newer state. Preference writes carry the same
// generation and are serialized against the sign-out clear, so a slow write
// cannot resurrect a preference sign-out already removed. Loading is tracked
// as an in-flight counter so overlapping refreshes cannot strand the loading
// flag.
package orgcontext

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/member-portal/member-portal/internal/db/models"
	"github.com/member-portal/member-portal/internal/telemetry"
)

// Identity is the signed-in principal a store operates for.
type Identity struct {
	ID    string
	Email string
}

// IdentitySource reports the session's current identity. A (nil, nil) result
// means unauthenticated — a valid terminal state for a fetch, not an error.
type IdentitySource interface {
	CurrentIdentity(ctx context.Context) (*Identity, error)
}

// MembershipSource is the membership slice of the repository collaborator.
type MembershipSource interface {
	ListActiveMemberships(ctx context.Context, userID string) ([]*models.Membership, error)
	GetMembership(ctx context.Context, orgID, userID string) (*models.Membership, error)
}

// OrganizationSource is the organization slice of the repository collaborator.
type OrganizationSource interface {
	GetByIDs(ctx context.Context, ids []string) ([]*models.Organization, error)
}

// Snapshot is a consistent read of the session context. ActiveOrg and
// ActiveMembership are set and cleared together; Err carries repository
// failures only — empty states (no identity, no organizations) are not errors.
type Snapshot struct {
	Organizations    []*models.Organization
	ActiveOrg        *models.Organization
	ActiveMembership *models.Membership
	IsLoading        bool
	Loaded           bool
	Err              error
}

// Deps are the collaborators a Store mediates between.
type Deps struct {
	Identity    IdentitySource
	Memberships MembershipSource
	Orgs        OrganizationSource
	Prefs       PreferenceStore
}

// Store holds the session context for one identity.
type Store struct {
	deps Deps

	mu               sync.Mutex
	prefMu           sync.Mutex
	gen              uint64
	inflight         int
	loaded           bool
	organizations    []*models.Organization
	activeOrg        *models.Organization
	activeMembership *models.Membership
	err              error
	lastUsed         time.Time
}

// NewStore creates an empty store. Call Fetch to populate it; creation itself
// performs no I/O so it is safe at session start without blocking anything.
func NewStore(deps Deps) *Store {
	return &Store{deps: deps, lastUsed: time.Now()}
}

// fixedIdentity is the production IdentitySource: the identity is pinned at
// session creation and withdrawn on sign-out.
type fixedIdentity struct {
	mu    sync.Mutex
	ident *Identity
}

func (f *fixedIdentity) CurrentIdentity(context.Context) (*Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ident, nil
}

func (f *fixedIdentity) withdraw() {
	f.mu.Lock()
	f.ident = nil
	f.mu.Unlock()
}

// NewStoreForIdentity creates a store pinned to the given identity. SignedOut
// withdraws the identity so later fetches resolve to the cleared state.
func NewStoreForIdentity(ident Identity, deps Deps) *Store {
	deps.Identity = &fixedIdentity{ident: &ident}
	return NewStore(deps)
}

// Snapshot returns a consistent copy of the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastUsed = time.Now()
	orgs := make([]*models.Organization, len(s.organizations))
	copy(orgs, s.organizations)
	return Snapshot{
		Organizations:    orgs,
		ActiveOrg:        s.activeOrg,
		ActiveMembership: s.activeMembership,
		IsLoading:        s.inflight > 0,
		Loaded:           s.loaded,
		Err:              s.err,
	}
}

// Fetch loads the identity's active memberships and organizations, resolves
// the active organization with the persisted preference as hint, and commits
// the result atomically. An absent identity clears all state without error.
// Repository failures surface on the snapshot's Err field; "no organizations"
// is a valid empty state, not a failure. A fetch whose generation was
// overtaken by a user action or sign-out discards its result.
func (s *Store) Fetch(ctx context.Context) {
	s.mu.Lock()
	startGen := s.gen
	s.inflight++
	s.err = nil
	s.lastUsed = time.Now()
	s.mu.Unlock()

	ident, err := s.deps.Identity.CurrentIdentity(ctx)
	if err != nil {
		s.finish(startGen, fmt.Errorf("resolve identity: %w", err))
		return
	}
	if ident == nil {
		s.commit(startGen, nil, Selection{})
		telemetry.ContextResolutionsTotal.WithLabelValues("unauthenticated").Inc()
		return
	}

	memberships, err := s.deps.Memberships.ListActiveMemberships(ctx, ident.ID)
	if err != nil {
		s.finish(startGen, fmt.Errorf("list memberships: %w", err))
		telemetry.ContextResolutionsTotal.WithLabelValues("error").Inc()
		return
	}

	orgIDs := make([]string, 0, len(memberships))
	seen := make(map[string]bool, len(memberships))
	for _, m := range memberships {
		if !seen[m.OrgID] {
			seen[m.OrgID] = true
			orgIDs = append(orgIDs, m.OrgID)
		}
	}

	orgs, err := s.deps.Orgs.GetByIDs(ctx, orgIDs)
	if err != nil {
		s.finish(startGen, fmt.Errorf("load organizations: %w", err))
		telemetry.ContextResolutionsTotal.WithLabelValues("error").Inc()
		return
	}

	preferred, err := s.deps.Prefs.Get(ctx, ident.ID)
	if err != nil {
		// The preference is a hint; a failed read degrades resolution, it
		// must not fail the whole fetch.
		slog.Warn("failed to read active-org preference", "user_id", ident.ID, "error", err)
		preferred = ""
	}

	sel := Resolve(memberships, orgs, preferred)
	committed := s.commit(startGen, orgs, sel)
	if !committed {
		telemetry.ContextResolutionsTotal.WithLabelValues("discarded").Inc()
		return
	}

	switch {
	case sel.Org != nil && !sel.Ambiguous:
		telemetry.ContextResolutionsTotal.WithLabelValues("ready").Inc()
		s.persistPreference(ctx, startGen, ident.ID, sel.Org.ID)
	case len(orgs) == 0:
		telemetry.ContextResolutionsTotal.WithLabelValues("no_org").Inc()
		s.persistPreference(ctx, startGen, ident.ID, "")
	default:
		// Multiple non-individual organizations with no valid preference:
		// the positional fallback is not committed; the gate prompts for an
		// explicit choice instead.
		telemetry.ContextResolutionsTotal.WithLabelValues("needs_selection").Inc()
		s.persistPreference(ctx, startGen, ident.ID, "")
	}
}

// persistPreference writes (orgID set) or clears (orgID empty) the persisted
// preference on behalf of the given generation. The write is skipped once the
// generation is stale and serialized through prefMu with the sign-out clear,
// so a slow write that committed before sign-out still lands before the clear.
func (s *Store) persistPreference(ctx context.Context, gen uint64, identID, orgID string) {
	s.prefMu.Lock()
	defer s.prefMu.Unlock()
	s.mu.Lock()
	stale := s.gen != gen
	s.mu.Unlock()
	if stale {
		return
	}
	if orgID == "" {
		if err := s.deps.Prefs.Clear(ctx, identID); err != nil {
			slog.Warn("failed to clear active-org preference", "user_id", identID, "error", err)
		}
		return
	}
	if err := s.deps.Prefs.Set(ctx, identID, orgID); err != nil {
		slog.Warn("failed to persist active-org preference", "user_id", identID, "error", err)
	}
}

// commit applies a fetch result if its generation is still current. The three
// context fields always change together. Returns false when discarded.
func (s *Store) commit(startGen uint64, orgs []*models.Organization, sel Selection) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inflight--
	if s.gen != startGen {
		return false
	}
	s.loaded = true
	if orgs == nil {
		orgs = []*models.Organization{}
	}
	s.organizations = orgs
	if sel.Ambiguous {
		s.activeOrg = nil
		s.activeMembership = nil
	} else {
		s.activeOrg = sel.Org
		s.activeMembership = sel.Membership
	}
	s.err = nil
	return true
}

// finish records a fetch failure unless the fetch was overtaken.
func (s *Store) finish(startGen uint64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inflight--
	if s.gen != startGen {
		return
	}
	s.loaded = true
	s.err = err
}

// SetActiveOrg switches the session to orgID after revalidating, against the
// repository, that the identity still holds an active membership there. The
// locally cached organization list is only used to reject unknown ids
// (ErrOrganizationNotFound); it is never trusted for access. A denied switch
// commits nothing; if claiming the generation discarded an in-flight fetch,
// resolution is re-run so its result is not simply lost. On success activeOrg
// and activeMembership update together and the preference is persisted.
func (s *Store) SetActiveOrg(ctx context.Context, orgID string) error {
	s.mu.Lock()
	var target *models.Organization
	for _, org := range s.organizations {
		if org.ID == orgID {
			target = org
			break
		}
	}
	if target == nil {
		s.mu.Unlock()
		telemetry.OrgSwitchesTotal.WithLabelValues("not_found").Inc()
		return ErrOrganizationNotFound
	}
	// Claim a new generation so an in-flight fetch completing after this
	// switch cannot overwrite it with stale resolver output.
	s.gen++
	myGen := s.gen
	interrupted := s.inflight > 0
	s.lastUsed = time.Now()
	s.mu.Unlock()

	ident, err := s.deps.Identity.CurrentIdentity(ctx)
	if err != nil {
		return fmt.Errorf("resolve identity: %w", err)
	}
	if ident == nil {
		telemetry.OrgSwitchesTotal.WithLabelValues("denied").Inc()
		return ErrAccessDenied
	}

	membership, err := s.deps.Memberships.GetMembership(ctx, orgID, ident.ID)
	if err != nil {
		return fmt.Errorf("revalidate membership: %w", err)
	}
	if membership == nil || !membership.IsActive() {
		telemetry.OrgSwitchesTotal.WithLabelValues("denied").Inc()
		if interrupted {
			// Claiming the generation discarded an in-flight fetch, and this
			// switch committed nothing in its place. Re-resolve rather than
			// leave the session on the pre-fetch state.
			s.Fetch(ctx)
		}
		return ErrAccessDenied
	}

	s.mu.Lock()
	if s.gen != myGen {
		// A newer switch or a sign-out won while we were validating.
		s.mu.Unlock()
		telemetry.OrgSwitchesTotal.WithLabelValues("superseded").Inc()
		return ErrSuperseded
	}
	s.activeOrg = target
	s.activeMembership = membership
	s.mu.Unlock()

	telemetry.OrgSwitchesTotal.WithLabelValues("ok").Inc()
	s.persistPreference(ctx, myGen, ident.ID, orgID)
	return nil
}

// Refresh re-runs Fetch. It is idempotent; concurrent calls coalesce through
// the atomic commit and generation checks. Errors surface on the snapshot.
func (s *Store) Refresh(ctx context.Context) {
	s.Fetch(ctx)
}

// SignedOut clears all state and the persisted preference. The generation bump
// makes any in-flight fetch discard its result on arrival rather than apply it
// to the cleared state.
func (s *Store) SignedOut(ctx context.Context) {
	var identID string
	if fixed, ok := s.deps.Identity.(*fixedIdentity); ok {
		fixed.mu.Lock()
		if fixed.ident != nil {
			identID = fixed.ident.ID
		}
		fixed.mu.Unlock()
		fixed.withdraw()
	} else if ident, err := s.deps.Identity.CurrentIdentity(ctx); err == nil && ident != nil {
		identID = ident.ID
	}

	s.mu.Lock()
	s.gen++
	s.loaded = true
	s.organizations = nil
	s.activeOrg = nil
	s.activeMembership = nil
	s.err = nil
	s.mu.Unlock()

	if identID != "" {
		// Taken after the generation bump, prefMu orders this clear behind
		// any preference write that passed its generation check first.
		s.prefMu.Lock()
		err := s.deps.Prefs.Clear(ctx, identID)
		s.prefMu.Unlock()
		if err != nil {
			slog.Warn("failed to clear active-org preference on sign-out", "user_id", identID, "error", err)
		}
	}
}

// idleSince reports the last time the store served a caller.
func (s *Store) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUsed
}
