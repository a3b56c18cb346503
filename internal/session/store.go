// Package session implements the session/profile store: the single source of
// truth for who is signed in, what their role is, and what their profile
// contains, reconciled across the remote document store and the local cache.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/almahub/backend/internal/identity"
	"github.com/almahub/backend/internal/models"
	"github.com/almahub/backend/internal/profile"
	"github.com/almahub/backend/internal/storage"
)

// State is the store's position in its lifecycle.
type State string

const (
	StateInitializing          State = "initializing"
	StateUnauthenticated       State = "unauthenticated"
	StateAuthenticatedPending  State = "authenticated-pending"
	StateAuthenticatedResolved State = "authenticated-resolved"
)

// Status is the coarse readiness flag the UI consumes.
type Status string

const (
	StatusLoading Status = "loading"
	StatusReady   Status = "ready"
)

// Reachability is a best-effort diagnostic of the remote document store.
// It never gates correctness.
type Reachability string

const (
	ReachabilityChecking Reachability = "checking"
	ReachabilityOnline   Reachability = "online"
	ReachabilityOffline  Reachability = "offline"
)

// ErrNotAuthenticated is returned when a profile edit is attempted without a
// resolved session.
var ErrNotAuthenticated = errors.New("no active session")

// Snapshot is a read-only view of the store handed to consumers. Mutation
// happens only through store operations.
type Snapshot struct {
	State        State
	Status       Status
	User         *identity.Identity
	Role         models.Role
	Profile      *models.Profile
	Reachability Reachability
}

// StagedRegistration buffers role selection made before the identity exists,
// for the registration flow to consume once sign-up completes.
type StagedRegistration struct {
	Role   models.Role     `json:"role"`
	Fields models.Document `json:"fields,omitempty"`
}

// Options tune the store's bounded waits.
type Options struct {
	// SignOutTimeout caps the wait on the remote sign-out during logout.
	SignOutTimeout time.Duration
	// ProbeTimeout caps the startup reachability probe.
	ProbeTimeout time.Duration
}

func (o *Options) withDefaults() {
	if o.SignOutTimeout <= 0 {
		o.SignOutTimeout = 10 * time.Second
	}
	if o.ProbeTimeout <= 0 {
		o.ProbeTimeout = 5 * time.Second
	}
}

// Store owns the session state machine. All collaborators are injected; one
// Store per process is the intended shape.
type Store struct {
	provider identity.Provider
	repo     *profile.Repository
	cache    *storage.Cache
	bcast    *storage.Broadcaster
	log      *zap.Logger
	opts     Options

	mu           sync.Mutex
	state        State
	user         *identity.Identity
	doc          models.Document
	reachability Reachability
	ready        bool

	logoutInFlight bool

	watchers    map[int]chan Snapshot
	nextWatcher int

	events         chan *identity.Identity
	cancelProvider func()
	cancelBcast    func()
	stop           chan struct{}
	stopped        sync.Once
}

// New wires a store over the given identity provider, primary document store
// (nil for offline mode) and local cache.
func New(provider identity.Provider, primary profile.PrimaryStore, cache *storage.Cache, bcast *storage.Broadcaster, log *zap.Logger, opts Options) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	opts.withDefaults()

	s := &Store{
		provider:     provider,
		cache:        cache,
		bcast:        bcast,
		log:          log,
		opts:         opts,
		state:        StateInitializing,
		reachability: ReachabilityChecking,
		watchers:     make(map[int]chan Snapshot),
		events:       make(chan *identity.Identity, 8),
		stop:         make(chan struct{}),
	}
	s.repo = profile.NewRepository(primary, profile.CacheTier{Cache: cache}, log, s.setReachability)
	return s
}

// Repository exposes the underlying two-tier repository for callers that need
// raw document access (the HTTP layer shares it).
func (s *Store) Repository() *profile.Repository {
	return s.repo
}

// Start subscribes to the identity provider and cache broadcasts and begins
// processing session changes. The provider's first notification, and the
// profile fetch it triggers, resolve the Initializing state.
func (s *Store) Start(ctx context.Context) {
	go func() {
		s.repo.Probe(ctx, s.opts.ProbeTimeout)
	}()

	var bcastCh <-chan storage.Event
	if s.bcast != nil {
		bcastCh, s.cancelBcast = s.bcast.Subscribe()
	}

	go s.run(ctx, bcastCh)

	// Registering delivers the current session immediately; events are queued
	// so the run loop processes them strictly in order.
	s.cancelProvider = s.provider.OnSessionChange(func(id *identity.Identity) {
		select {
		case s.events <- id:
		case <-s.stop:
		}
	})
}

// Close detaches the store from its collaborators.
func (s *Store) Close() {
	s.stopped.Do(func() {
		close(s.stop)
		if s.cancelProvider != nil {
			s.cancelProvider()
		}
		if s.cancelBcast != nil {
			s.cancelBcast()
		}
	})
}

func (s *Store) run(ctx context.Context, bcastCh <-chan storage.Event) {
	for {
		select {
		case id := <-s.events:
			s.handleSessionChange(ctx, id)
		case ev, ok := <-bcastCh:
			if !ok {
				bcastCh = nil
				continue
			}
			if ev.Key == storage.SessionKey {
				s.adoptSessionPointer(ev.Removed)
			}
		case <-s.stop:
			return
		case <-ctx.Done():
			return
		}
	}
}

// handleSessionChange drives the Initializing -> {Unauthenticated,
// AuthenticatedPending -> AuthenticatedResolved} transitions. The profile
// fetch begins only after a session is confirmed present.
func (s *Store) handleSessionChange(ctx context.Context, id *identity.Identity) {
	if id == nil {
		s.mu.Lock()
		initializing := s.state == StateInitializing
		s.mu.Unlock()
		// A fresh provider carries no session, but the cache may hold one from
		// a previous run. Restore it before concluding "signed out".
		if initializing && s.restoreFromCache() {
			return
		}
		s.mu.Lock()
		s.state = StateUnauthenticated
		s.user = nil
		s.doc = nil
		s.ready = true
		s.mu.Unlock()
		s.publish()
		return
	}

	s.mu.Lock()
	s.state = StateAuthenticatedPending
	s.user = id
	s.doc = nil
	s.mu.Unlock()
	s.publish()

	doc, err := s.repo.Fetch(ctx, id.UID)
	if err != nil {
		// Fetch absorbs unavailability; an error here is a local cache fault.
		s.log.Warn("profile resolution failed", zap.String("uid", id.UID), zap.Error(err))
	}
	if doc == nil {
		// Authenticated but no document: synthesize one rather than treating
		// it as an error. A staged registration supplies the role; otherwise
		// the default applies.
		role := models.DefaultRole
		var extra models.Document
		if staged, serr := s.ConsumeStagedRegistration(); serr == nil && staged != nil {
			role = staged.Role
			extra = staged.Fields
		}
		doc = models.NewProfileDocument(id.UID, id.Email, id.DisplayName, role, extra)
		if _, cerr := s.repo.Create(ctx, id.UID, doc); cerr != nil {
			s.log.Warn("default profile persistence failed, keeping in-memory copy",
				zap.String("uid", id.UID), zap.Error(cerr))
		}
	}

	s.mu.Lock()
	// A sign-out may have raced the fetch; apply only if this identity is
	// still the current one. The session pointer is written under the same
	// lock so a concurrent logout cannot interleave between check and write.
	if s.user == nil || s.user.UID != id.UID {
		s.mu.Unlock()
		return
	}
	s.state = StateAuthenticatedResolved
	s.doc = doc
	s.ready = true
	if err := s.cache.Put(storage.SessionKey, doc); err != nil {
		s.log.Warn("failed to persist session pointer", zap.Error(err))
	}
	s.mu.Unlock()
	s.publish()
}

// restoreFromCache resurrects the previous run's session from the persisted
// pointer. Returns false when no usable pointer exists.
func (s *Store) restoreFromCache() bool {
	var doc models.Document
	ok, err := s.cache.Get(storage.SessionKey, &doc)
	if err != nil || !ok || doc.UID() == "" {
		return false
	}

	s.mu.Lock()
	s.state = StateAuthenticatedResolved
	s.user = &identity.Identity{
		UID:         doc.UID(),
		Email:       doc.Email(),
		DisplayName: doc.DisplayName(),
	}
	s.doc = doc
	s.ready = true
	s.mu.Unlock()
	s.publish()
	return true
}

// adoptSessionPointer reacts to session-pointer changes published by another
// process sharing the cache (the cross-tab channel).
func (s *Store) adoptSessionPointer(removed bool) {
	if removed {
		s.mu.Lock()
		changed := s.state == StateAuthenticatedPending || s.state == StateAuthenticatedResolved
		if changed {
			s.state = StateUnauthenticated
			s.user = nil
			s.doc = nil
		}
		s.mu.Unlock()
		if changed {
			s.publish()
		}
		return
	}

	var doc models.Document
	ok, err := s.cache.Get(storage.SessionKey, &doc)
	if err != nil || !ok {
		return
	}

	s.mu.Lock()
	sameUser := s.user != nil && s.user.UID == doc.UID()
	if sameUser && s.state == StateAuthenticatedResolved && s.doc != nil && s.doc.UID() == doc.UID() {
		// Same user; another tab may have edited the profile.
		s.doc = doc
		s.mu.Unlock()
		s.publish()
		return
	}
	if sameUser {
		s.mu.Unlock()
		return
	}
	s.state = StateAuthenticatedResolved
	s.user = &identity.Identity{
		UID:         doc.UID(),
		Email:       doc.Email(),
		DisplayName: doc.DisplayName(),
	}
	s.doc = doc
	s.ready = true
	s.mu.Unlock()
	s.publish()
}

// CreateProfile writes a new profile document for the given identity. Session
// state is untouched; the caller decides whether to activate it.
func (s *Store) CreateProfile(ctx context.Context, id *identity.Identity, role models.Role, extra models.Document) (models.Document, error) {
	if !role.Valid() {
		return nil, errors.New("invalid role")
	}
	doc := models.NewProfileDocument(id.UID, id.Email, id.DisplayName, role, extra)
	return s.repo.Create(ctx, id.UID, doc)
}

// FetchProfile returns the profile document for uid, or nil when neither tier
// has one. Remote unavailability never surfaces as an error.
func (s *Store) FetchProfile(ctx context.Context, uid string) (models.Document, error) {
	return s.repo.Fetch(ctx, uid)
}

// UpdateProfile merge-writes partial into the active user's profile and
// optimistically updates the in-memory state from the merged value.
func (s *Store) UpdateProfile(ctx context.Context, partial models.Document) (models.Document, error) {
	s.mu.Lock()
	if s.state != StateAuthenticatedResolved || s.user == nil {
		s.mu.Unlock()
		s.log.Warn("profile edit without active session")
		return nil, ErrNotAuthenticated
	}
	uid := s.user.UID
	s.mu.Unlock()

	merged, err := s.repo.Update(ctx, uid, partial)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	// Apply only if the session didn't flip while the write was in flight. A
	// logout that completed mid-write stays final: the late result must not
	// resurrect the session pointer or the cached profile it cleared.
	if s.user == nil || s.user.UID != uid {
		s.mu.Unlock()
		if derr := s.repo.DropLocal(uid); derr != nil {
			s.log.Warn("failed to drop stale cached profile", zap.String("uid", uid), zap.Error(derr))
		}
		return merged, nil
	}
	s.doc = merged
	if err := s.cache.Put(storage.SessionKey, merged); err != nil {
		s.log.Warn("failed to refresh session pointer", zap.Error(err))
	}
	s.mu.Unlock()
	s.publish()
	return merged, nil
}

// UpdateRole merges a new role plus extra fields into the active profile.
func (s *Store) UpdateRole(ctx context.Context, role models.Role, extra models.Document) (models.Document, error) {
	if !role.Valid() {
		return nil, errors.New("invalid role")
	}
	partial := extra.Clone()
	if partial == nil {
		partial = models.Document{}
	}
	partial[models.FieldRole] = string(role)
	return s.UpdateProfile(ctx, partial)
}

// StageRegistrationRole buffers a role selection made before sign-up creates
// the identity. A later call overwrites the previous stage.
func (s *Store) StageRegistrationRole(role models.Role, extra models.Document) error {
	if !role.Valid() {
		return errors.New("invalid role")
	}
	return s.cache.Put(storage.RegistrationKey, StagedRegistration{Role: role, Fields: extra})
}

// ConsumeStagedRegistration returns and clears the staged registration data,
// or nil when nothing is staged.
func (s *Store) ConsumeStagedRegistration() (*StagedRegistration, error) {
	var staged StagedRegistration
	ok, err := s.cache.Get(storage.RegistrationKey, &staged)
	if err != nil || !ok {
		return nil, err
	}
	if err := s.cache.Delete(storage.RegistrationKey); err != nil {
		s.log.Warn("failed to clear staged registration", zap.Error(err))
	}
	return &staged, nil
}

// Logout clears local state first and then attempts the remote sign-out with
// a bounded wait. It is idempotent: re-entrant calls while one is in flight
// collapse into it, and the local clears are guaranteed even when the remote
// call fails or hangs.
func (s *Store) Logout(ctx context.Context) error {
	s.mu.Lock()
	if s.logoutInFlight {
		s.mu.Unlock()
		return nil
	}
	if s.state == StateUnauthenticated {
		s.mu.Unlock()
		return nil
	}
	s.logoutInFlight = true
	uid := ""
	if s.user != nil {
		uid = s.user.UID
	}
	// Flip the in-memory state before touching the cache so any in-flight
	// update observes the sign-out and skips its session-pointer write.
	s.state = StateUnauthenticated
	s.user = nil
	s.doc = nil
	s.mu.Unlock()
	s.publish()

	defer func() {
		s.mu.Lock()
		s.logoutInFlight = false
		s.mu.Unlock()
	}()

	// Local steps complete regardless of the remote outcome.
	if uid != "" {
		if err := s.repo.DropLocal(uid); err != nil {
			s.log.Warn("failed to clear cached profile", zap.String("uid", uid), zap.Error(err))
		}
	}
	if err := s.cache.Delete(storage.RegistrationKey); err != nil {
		s.log.Warn("failed to clear staged registration", zap.Error(err))
	}
	if err := s.cache.Delete(storage.SessionKey); err != nil {
		s.log.Warn("failed to clear session pointer", zap.Error(err))
	}

	done := make(chan error, 1)
	go func() {
		sctx, cancel := context.WithTimeout(context.Background(), s.opts.SignOutTimeout)
		defer cancel()
		done <- s.provider.SignOut(sctx)
	}()

	select {
	case err := <-done:
		if err != nil {
			s.log.Warn("remote sign-out failed, local state already cleared", zap.Error(err))
		}
	case <-time.After(s.opts.SignOutTimeout):
		s.log.Warn("remote sign-out timed out, local state already cleared")
	case <-ctx.Done():
		s.log.Warn("logout context cancelled during remote sign-out", zap.Error(ctx.Err()))
	}
	return nil
}

func (s *Store) setReachability(online bool) {
	s.mu.Lock()
	next := ReachabilityOffline
	if online {
		next = ReachabilityOnline
	}
	changed := s.reachability != next
	s.reachability = next
	s.mu.Unlock()

	if changed {
		s.publish()
	}
}

// Snapshot returns a read-only copy of the current session.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() Snapshot {
	snap := Snapshot{
		State:        s.state,
		Status:       StatusLoading,
		Reachability: s.reachability,
		Role:         models.RoleUnset,
	}
	if s.ready {
		snap.Status = StatusReady
	}
	if s.user != nil {
		u := *s.user
		snap.User = &u
	}
	if s.doc != nil {
		snap.Profile = models.DecodeProfile(s.doc)
		snap.Role = s.doc.Role()
	}
	return snap
}

// Watch returns a channel of snapshots published after every state change.
// Slow consumers miss intermediate snapshots rather than blocking the store.
func (s *Store) Watch() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 16)

	s.mu.Lock()
	id := s.nextWatcher
	s.nextWatcher++
	s.watchers[id] = ch
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.watchers[id]; ok {
			delete(s.watchers, id)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

func (s *Store) publish() {
	s.mu.Lock()
	snap := s.snapshotLocked()
	for _, ch := range s.watchers {
		select {
		case ch <- snap:
		default:
		}
	}
	s.mu.Unlock()
}
