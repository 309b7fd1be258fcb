package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"go.pilab.hu/gtgram/cache"
	"go.pilab.hu/gtgram/domain"
	"go.pilab.hu/gtgram/internal/audit"
	"go.pilab.hu/gtgram/internal/metrics"
	"go.pilab.hu/gtgram/internal/placeholder"
)

// State is the derived authentication state exposed to observers.
type State int

const (
	// StateUnknown holds until the first bootstrap or identity event.
	StateUnknown State = iota
	StateAuthenticated
	StateUnauthenticated
)

func (s State) String() string {
	switch s {
	case StateAuthenticated:
		return "authenticated"
	case StateUnauthenticated:
		return "unauthenticated"
	default:
		return "unknown"
	}
}

const (
	defaultValidityWindow = 30 * 24 * time.Hour
	defaultRemoteTimeout  = 10 * time.Second
)

// ReconcilerOption configures a Reconciler.
type ReconcilerOption func(*Reconciler)

// WithValidityWindow overrides the cached-session validity window.
func WithValidityWindow(d time.Duration) ReconcilerOption {
	return func(r *Reconciler) { r.validity = d }
}

// WithRemoteTimeout bounds each profile store call.
func WithRemoteTimeout(d time.Duration) ReconcilerOption {
	return func(r *Reconciler) { r.remoteTimeout = d }
}

// Reconciler merges the local session cache, the identity provider state
// and the remote profile store into one authoritative session record, and
// keeps it fresh across sign-in state transitions.
//
// All entry paths (email login, provider login, auto-provisioning, cache
// restore) funnel through the same commit path, so the invariant that the
// in-memory record and the cache stay consistent holds everywhere.
// Failure policy is correctness over availability: when a remote read or
// write fails mid-reconciliation, the session is cleared rather than left
// half-populated.
type Reconciler struct {
	cache    cache.SessionCache
	profiles domain.ProfileRepository
	idp      domain.IdentityProvider

	validity      time.Duration
	remoteTimeout time.Duration
	now           func() time.Time

	mu          sync.Mutex
	current     *domain.Session
	state       State
	seq         uint64
	watchers    map[int]func(State, *domain.Session)
	nextWatcher int
	// notifyMu serializes watcher delivery so observers see transitions
	// in commit order even though delivery runs outside mu.
	notifyMu sync.Mutex

	subOnce     sync.Once
	unsubscribe func()
}

// NewReconciler creates a Reconciler over the given collaborators. The
// identity provider may be nil when only explicit logins are used.
func NewReconciler(sessionCache cache.SessionCache, profiles domain.ProfileRepository, idp domain.IdentityProvider, opts ...ReconcilerOption) *Reconciler {
	r := &Reconciler{
		cache:         sessionCache,
		profiles:      profiles,
		idp:           idp,
		validity:      defaultValidityWindow,
		remoteTimeout: defaultRemoteTimeout,
		now:           time.Now,
		state:         StateUnknown,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Current returns a copy of the committed session record, or nil when
// unauthenticated.
func (r *Reconciler) Current() *domain.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current.Clone()
}

// StateNow returns the current derived authentication state.
func (r *Reconciler) StateNow() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Watch registers an observer for state transitions. The observer is
// immediately invoked with the current snapshot, then on every commit,
// in commit order. Observers must not call back into the reconciler.
// The returned function cancels the subscription.
func (r *Reconciler) Watch(fn func(State, *domain.Session)) (cancel func()) {
	r.mu.Lock()
	if r.watchers == nil {
		r.watchers = make(map[int]func(State, *domain.Session))
	}
	id := r.nextWatcher
	r.nextWatcher++
	r.watchers[id] = fn
	state := r.state
	sess := r.current.Clone()
	r.notifyMu.Lock()
	r.mu.Unlock()
	fn(state, sess)
	r.notifyMu.Unlock()

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.watchers, id)
	}
}

// Close cancels the identity provider subscription.
func (r *Reconciler) Close() {
	if r.unsubscribe != nil {
		r.unsubscribe()
	}
}

// Bootstrap restores the session from the local cache, reconciles it
// against the profile store, and subscribes to identity change events.
// It returns the restored session, or nil when there is no usable one.
// Every failure path degrades to a cleared session; Bootstrap never
// exposes a half-populated record.
func (r *Reconciler) Bootstrap(ctx context.Context) *domain.Session {
	defer r.subscribeOnce()

	seq := r.beginEvent()

	raw, err := r.cache.Read(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Bootstrap: session cache read failed")
		r.commitLoggedOut(ctx, seq, true)
		return nil
	}
	if raw == nil || !raw.AutoLogin {
		r.commitLoggedOut(ctx, seq, true)
		return nil
	}

	if r.now().Sub(raw.LoginTime) > r.validity {
		log.Info().Time("loginTime", raw.LoginTime).Msg("Bootstrap: saved login expired, clearing session cache")
		metrics.SessionsExpiredTotal.Inc()
		r.commitLoggedOut(ctx, seq, true)
		return nil
	}

	var sess domain.Session
	if err := json.Unmarshal(raw.Record, &sess); err != nil {
		log.Error().Err(err).Msg("Bootstrap: failed to parse saved session record")
		r.commitLoggedOut(ctx, seq, true)
		return nil
	}
	if !sess.Valid() {
		log.Error().Msg("Bootstrap: saved session record has no uid, discarding")
		r.commitLoggedOut(ctx, seq, true)
		return nil
	}

	profile, err := r.getProfile(ctx, sess.ID)
	if err != nil {
		if errors.Is(err, domain.ErrProfileNotFound) {
			log.Info().Str("userID", sess.ID).Msg("Bootstrap: profile deleted remotely, clearing session cache")
		} else {
			log.Error().Err(err).Str("userID", sess.ID).Msg("Bootstrap: profile store unreachable, clearing session")
		}
		r.commitLoggedOut(ctx, seq, true)
		return nil
	}

	merged := mergeProfile(&sess, profile)
	// The cache keeps its original login timestamp: the validity window
	// runs from the last explicit login, not from restores.
	if installed, err := r.commitSession(ctx, seq, merged, false); err == nil && installed {
		metrics.SessionsRestoredTotal.Inc()
		audit.Log(audit.ActionRestore, merged.ID, "cache", true, nil)
	}
	return r.Current()
}

// OnIdentityChange reconciles a sign-in state transition reported by the
// identity provider. A nil identity is a definitive logout. A non-nil
// identity refreshes the session from the profile store, provisioning a
// profile document when none exists.
func (r *Reconciler) OnIdentityChange(ctx context.Context, identity *domain.Identity) {
	metrics.IdentityChangeTotal.Inc()
	seq := r.beginEvent()

	if identity == nil {
		log.Info().Msg("Identity change: signed out")
		r.commitLoggedOut(ctx, seq, true)
		return
	}
	if identity.ID == "" {
		log.Error().Msg("Identity change: identity has no stable ID, treating as logged out")
		r.commitLoggedOut(ctx, seq, true)
		return
	}

	profile, err := r.getProfile(ctx, identity.ID)
	switch {
	case errors.Is(err, domain.ErrProfileNotFound):
		profile = r.synthesizeProfile(identity)
		if cerr := r.createProfile(ctx, profile); cerr != nil {
			log.Error().Err(cerr).Str("userID", identity.ID).Msg("Identity change: failed to provision profile")
			r.commitLoggedOut(ctx, seq, true)
			return
		}
		metrics.AutoProvisionedTotal.Inc()
		audit.Log(audit.ActionAutoProvision, identity.ID, identity.Provider, true, nil)
		log.Info().Str("userID", identity.ID).Str("username", profile.Username).Msg("Identity change: provisioned new profile")
	case err != nil:
		log.Error().Err(err).Str("userID", identity.ID).Msg("Identity change: profile store unreachable, clearing session")
		r.commitLoggedOut(ctx, seq, true)
		return
	}

	sess := sessionFromProfile(profile, identity, provenanceFromProvider(identity.Provider), r.now())
	if _, err := r.commitSession(ctx, seq, sess, true); err != nil {
		log.Error().Err(err).Str("userID", identity.ID).Msg("Identity change: failed to commit session")
	}
}

// Login installs a candidate record that already resolved identity and
// profile reads upstream. Invalid candidates are rejected without
// touching the current session or the cache; the error is reported, not
// panicked.
func (r *Reconciler) Login(ctx context.Context, candidate *domain.Session) error {
	clean, err := NormalizeSession(candidate)
	if err != nil {
		metrics.LoginFailureTotal.Inc()
		audit.Log(audit.ActionLogin, "", "invalid candidate", false, err)
		log.Error().Err(err).Msg("Login rejected: invalid candidate record")
		return err
	}
	clean.IssuedAt = r.now()

	seq := r.beginEvent()
	installed, err := r.commitSession(ctx, seq, clean, true)
	if err != nil {
		metrics.LoginFailureTotal.Inc()
		audit.Log(audit.ActionLogin, clean.ID, string(clean.Provenance), false, err)
		return err
	}
	if !installed {
		// Overtaken by a newer event; the newer result already accounted
		// for itself.
		return nil
	}
	metrics.LoginSuccessTotal.Inc()
	audit.Log(audit.ActionLogin, clean.ID, string(clean.Provenance), true, nil)
	log.Info().Str("userID", clean.ID).Str("provenance", string(clean.Provenance)).Msg("Login: session installed")
	return nil
}

// Logout clears the in-memory record and the cache, then signs out of
// the identity provider best-effort. Observers see the unauthenticated
// state before SignOut runs, so the logout redirect never waits on the
// provider.
func (r *Reconciler) Logout(ctx context.Context) {
	var userID string
	if current := r.Current(); current != nil {
		userID = current.ID
	}

	seq := r.beginEvent()
	r.commitLoggedOut(ctx, seq, true)
	audit.Log(audit.ActionLogout, userID, "", true, nil)

	if r.idp != nil {
		if err := r.idp.SignOut(ctx); err != nil {
			log.Warn().Err(err).Msg("Logout: identity provider sign-out failed")
		}
	}
	log.Info().Msg("Logout: session cleared")
}

func (r *Reconciler) subscribeOnce() {
	if r.idp == nil {
		return
	}
	r.subOnce.Do(func() {
		r.unsubscribe = r.idp.Subscribe(func(identity *domain.Identity) {
			r.OnIdentityChange(context.Background(), identity)
		})
	})
}

// beginEvent assigns the next event sequence number. Commits re-check it
// so a reconciliation that was overtaken by a newer event cannot
// overwrite the newer result.
func (r *Reconciler) beginEvent() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	return r.seq
}

// commitSession makes sess the current record, persisting it to the
// cache when persist is set. Stale events (seq no longer latest) are
// dropped; installed reports false so callers skip their success
// bookkeeping. A cache write failure clears both sides to preserve the
// memory/cache consistency invariant.
func (r *Reconciler) commitSession(ctx context.Context, seq uint64, sess *domain.Session, persist bool) (installed bool, err error) {
	r.mu.Lock()
	if seq != r.seq {
		r.mu.Unlock()
		log.Debug().Uint64("seq", seq).Msg("Dropping stale reconciliation result")
		return false, nil
	}

	if persist {
		data, merr := json.Marshal(sess)
		werr := merr
		if werr == nil {
			werr = r.cache.Write(ctx, &cache.RawSession{
				Record:    data,
				LoginTime: r.now(),
				AutoLogin: true,
			})
		}
		if werr != nil {
			if cerr := r.cache.Clear(ctx); cerr != nil {
				log.Warn().Err(cerr).Msg("Failed to clear session cache after write failure")
			}
			r.setLocked(nil, StateUnauthenticated)
			r.notifyAndUnlock(StateUnauthenticated, nil)
			return false, fmt.Errorf("failed to persist session: %w", werr)
		}
	}

	r.setLocked(sess, StateAuthenticated)
	r.notifyAndUnlock(StateAuthenticated, sess.Clone())
	return true, nil
}

// commitLoggedOut clears the current record, optionally clearing the
// cache as well. Stale events are dropped.
func (r *Reconciler) commitLoggedOut(ctx context.Context, seq uint64, clearCache bool) {
	r.mu.Lock()
	if seq != r.seq {
		r.mu.Unlock()
		log.Debug().Uint64("seq", seq).Msg("Dropping stale reconciliation result")
		return
	}
	if clearCache {
		if err := r.cache.Clear(ctx); err != nil {
			log.Warn().Err(err).Msg("Failed to clear session cache")
		}
	}
	r.setLocked(nil, StateUnauthenticated)
	r.notifyAndUnlock(StateUnauthenticated, nil)
}

func (r *Reconciler) setLocked(sess *domain.Session, state State) {
	r.current = sess
	r.state = state
	if state == StateAuthenticated {
		metrics.ActiveSessionsGauge.Set(1)
	} else {
		metrics.ActiveSessionsGauge.Set(0)
	}
}

// notifyAndUnlock hands the committed snapshot to watchers. It takes the
// delivery lock before releasing the state lock, so two racing commits
// cannot deliver their notifications out of commit order. Watchers run
// holding the delivery lock and must not call back into the reconciler;
// they get the state and session as arguments instead.
func (r *Reconciler) notifyAndUnlock(state State, sess *domain.Session) {
	watchers := make([]func(State, *domain.Session), 0, len(r.watchers))
	for _, fn := range r.watchers {
		watchers = append(watchers, fn)
	}
	r.notifyMu.Lock()
	r.mu.Unlock()
	for _, fn := range watchers {
		fn(state, sess)
	}
	r.notifyMu.Unlock()
}

// getProfile reads from the profile store under the remote call budget.
func (r *Reconciler) getProfile(ctx context.Context, id string) (*domain.Profile, error) {
	tctx, cancel := context.WithTimeout(ctx, r.remoteTimeout)
	defer cancel()
	return r.profiles.GetProfileByID(tctx, id)
}

func (r *Reconciler) createProfile(ctx context.Context, profile *domain.Profile) error {
	tctx, cancel := context.WithTimeout(ctx, r.remoteTimeout)
	defer cancel()
	return r.profiles.CreateProfile(tctx, profile)
}

// synthesizeProfile builds the default profile document for an identity
// that has no profile yet.
func (r *Reconciler) synthesizeProfile(identity *domain.Identity) *domain.Profile {
	fullName := identity.DisplayName
	if fullName == "" {
		fullName = "Unknown User"
	}
	avatar := identity.AvatarURL
	if avatar == "" {
		avatar = placeholder.Avatar()
	}
	return &domain.Profile{
		ID:          identity.ID,
		Email:       identity.Email,
		PhoneNumber: identity.PhoneNumber,
		Username:    UsernameFor(identity.DisplayName, identity.Email),
		FullName:    fullName,
		Bio:         "",
		AvatarURL:   avatar,
		Followers:   []string{},
		Following:   []string{},
		Verified:    false,
		CreatedVia:  provenanceFromProvider(identity.Provider),
		JoinedAt:    r.now(),
	}
}

// mergeProfile refreshes a cached session record with profile store
// data. The profile store wins for avatar, username, bio, follower
// lists and the verification flag; contact identifiers stay with the
// cached record when the profile has none.
func mergeProfile(cached *domain.Session, profile *domain.Profile) *domain.Session {
	merged := cached.Clone()
	merged.Username = coalesce(profile.Username, cached.Username)
	merged.Bio = profile.Bio
	merged.FullName = coalesce(profile.FullName, cached.FullName)
	merged.Email = coalesce(profile.Email, cached.Email)
	merged.PhoneNumber = coalesce(profile.PhoneNumber, cached.PhoneNumber)
	merged.AvatarURL = coalesce(profile.AvatarURL, cached.AvatarURL, placeholder.Avatar())
	merged.Followers = append([]string{}, profile.Followers...)
	merged.Following = append([]string{}, profile.Following...)
	merged.Verified = profile.Verified
	return merged
}

// sessionFromProfile builds a session record from a profile document and
// the asserted identity. Avatar priority is profile store, then identity
// provider, then the placeholder.
func sessionFromProfile(profile *domain.Profile, identity *domain.Identity, prov domain.Provenance, now time.Time) *domain.Session {
	var idEmail, idPhone, idDisplay, idAvatar string
	verified := profile.Verified
	if identity != nil {
		idEmail = identity.Email
		idPhone = identity.PhoneNumber
		idDisplay = identity.DisplayName
		idAvatar = identity.AvatarURL
	}
	return &domain.Session{
		ID:          profile.ID,
		Email:       coalesce(profile.Email, idEmail),
		PhoneNumber: coalesce(profile.PhoneNumber, idPhone),
		DisplayName: coalesce(idDisplay, profile.FullName, profile.Username),
		Username:    profile.Username,
		FullName:    coalesce(profile.FullName, idDisplay),
		Bio:         profile.Bio,
		AvatarURL:   coalesce(profile.AvatarURL, idAvatar, placeholder.Avatar()),
		Followers:   append([]string{}, profile.Followers...),
		Following:   append([]string{}, profile.Following...),
		Verified:    verified,
		Provenance:  prov,
		IssuedAt:    now,
	}
}
