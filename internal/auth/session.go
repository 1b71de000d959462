package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// State is the resolution state of a SessionContext.
type State int

const (
	StateInitializing State = iota
	StateAuthenticated
	StateUnauthenticated
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateAuthenticated:
		return "authenticated"
	case StateUnauthenticated:
		return "unauthenticated"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// AuthClient is the external authentication service.
type AuthClient interface {
	// GetCurrentSession returns the existing session, or nil when nobody is signed in.
	GetCurrentSession(ctx context.Context) (*Session, error)
	// OnSessionChange registers handler for every sign-in, sign-out and refresh.
	// A nil session means the session was lost. The returned func unsubscribes.
	OnSessionChange(handler func(*Session)) (unsubscribe func())
	SignInWithPassword(ctx context.Context, email, password string) (*Session, error)
	SignOut(ctx context.Context) error
}

// ProfileStore resolves a user id to an identity. A nil identity with a nil
// error means no profile exists.
type ProfileStore interface {
	GetProfile(ctx context.Context, userID string) (*Identity, error)
}

// DealershipStore resolves an affiliation id. A nil dealership with a nil
// error means the record does not exist.
type DealershipStore interface {
	GetDealership(ctx context.Context, dealershipID string) (*Dealership, error)
}

// Snapshot is an immutable view of the session at one point in time.
type Snapshot struct {
	state         State
	identity      Identity
	dealership    Dealership
	hasDealership bool
}

// InitializingSnapshot is the state before the first resolution.
func InitializingSnapshot() Snapshot {
	return Snapshot{state: StateInitializing}
}

// UnauthenticatedSnapshot is the state with no signed-in identity.
func UnauthenticatedSnapshot() Snapshot {
	return Snapshot{state: StateUnauthenticated}
}

// AuthenticatedSnapshot builds a resolved snapshot. d may be nil.
func AuthenticatedSnapshot(id Identity, d *Dealership) Snapshot {
	s := Snapshot{state: StateAuthenticated, identity: id}
	if d != nil {
		s.dealership = *d
		s.hasDealership = true
	}
	return s
}

func (s Snapshot) State() State { return s.state }

// Identity returns the signed-in identity, if any.
func (s Snapshot) Identity() (Identity, bool) {
	return s.identity, s.state == StateAuthenticated
}

// Dealership returns the affiliated dealership once it has been fetched.
func (s Snapshot) Dealership() (Dealership, bool) {
	return s.dealership, s.state == StateAuthenticated && s.hasDealership
}

// Snapshot lets a fixed snapshot act as a SnapshotReader.
func (s Snapshot) Snapshot() Snapshot { return s }

// SessionContext is the single source of truth for who is signed in.
// Each auth event stamps a new generation; fetch results from an older
// generation are discarded.
type SessionContext struct {
	auth        AuthClient
	profiles    ProfileStore
	dealerships DealershipStore
	logger      *zap.Logger

	current    atomic.Pointer[Snapshot]
	generation atomic.Uint64
	applyMu    sync.Mutex

	subMu   sync.Mutex
	subs    map[uint64]func(Snapshot)
	nextSub uint64

	ctx         context.Context
	cancel      context.CancelFunc
	unsubscribe func()
	started     atomic.Bool
}

// NewSessionContext creates a SessionContext in the Initializing state.
func NewSessionContext(authClient AuthClient, profiles ProfileStore, dealerships DealershipStore, logger *zap.Logger) *SessionContext {
	if logger == nil {
		logger = zap.NewNop()
	}
	sc := &SessionContext{
		auth:        authClient,
		profiles:    profiles,
		dealerships: dealerships,
		logger:      logger,
		subs:        make(map[uint64]func(Snapshot)),
	}
	initial := InitializingSnapshot()
	sc.current.Store(&initial)
	return sc
}

// Start subscribes to auth changes and resolves the existing session in the
// background. It returns immediately.
func (sc *SessionContext) Start(ctx context.Context) {
	if !sc.started.CompareAndSwap(false, true) {
		return
	}
	sc.ctx, sc.cancel = context.WithCancel(ctx)

	gen := sc.generation.Add(1)
	sc.unsubscribe = sc.auth.OnSessionChange(sc.handleSessionChange)

	go func() {
		sess, err := sc.auth.GetCurrentSession(sc.ctx)
		if err != nil {
			sc.logger.Warn("failed to resolve current session", zap.Error(err))
			sc.apply(gen, UnauthenticatedSnapshot())
			return
		}
		sc.resolve(gen, sess)
	}()
}

// Close unsubscribes from the auth service and abandons in-flight fetches.
// Results that arrive after Close are discarded and the snapshot is left as is.
func (sc *SessionContext) Close() {
	sc.generation.Add(1)
	if sc.unsubscribe != nil {
		sc.unsubscribe()
	}
	if sc.cancel != nil {
		sc.cancel()
	}
}

// Snapshot returns the current state.
func (sc *SessionContext) Snapshot() Snapshot {
	return *sc.current.Load()
}

// Subscribe registers fn for every applied state change. Deliveries are
// serialized in generation order; fn must not call SignIn or SignOut
// synchronously.
func (sc *SessionContext) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	sc.subMu.Lock()
	id := sc.nextSub
	sc.nextSub++
	sc.subs[id] = fn
	sc.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			sc.subMu.Lock()
			delete(sc.subs, id)
			sc.subMu.Unlock()
		})
	}
}

// Await blocks until the session leaves Initializing or ctx is done.
func (sc *SessionContext) Await(ctx context.Context) (Snapshot, error) {
	ready := make(chan Snapshot, 1)
	unsubscribe := sc.Subscribe(func(s Snapshot) {
		if s.State() != StateInitializing {
			select {
			case ready <- s:
			default:
			}
		}
	})
	defer unsubscribe()

	if s := sc.Snapshot(); s.State() != StateInitializing {
		return s, nil
	}
	select {
	case <-ready:
		return sc.Snapshot(), nil
	case <-ctx.Done():
		return sc.Snapshot(), ctx.Err()
	}
}

// SignIn passes credentials to the auth service. The resulting state change
// arrives through the session change subscription.
func (sc *SessionContext) SignIn(ctx context.Context, email, password string) error {
	if _, err := sc.auth.SignInWithPassword(ctx, email, password); err != nil {
		var ce *CredentialError
		if errors.As(err, &ce) {
			return ce
		}
		return fmt.Errorf("sign in: %w", err)
	}
	return nil
}

// SignOut ends the session at the auth service.
func (sc *SessionContext) SignOut(ctx context.Context) error {
	if err := sc.auth.SignOut(ctx); err != nil {
		return fmt.Errorf("sign out: %w", err)
	}
	return nil
}

func (sc *SessionContext) handleSessionChange(sess *Session) {
	gen := sc.generation.Add(1)
	if sess == nil {
		sc.apply(gen, UnauthenticatedSnapshot())
		return
	}
	go sc.resolve(gen, sess)
}

func (sc *SessionContext) resolve(gen uint64, sess *Session) {
	if sess == nil {
		sc.apply(gen, UnauthenticatedSnapshot())
		return
	}

	identity, err := sc.profiles.GetProfile(sc.ctx, sess.UserID)
	if err == nil && identity == nil {
		err = ErrProfileNotFound
	}
	if err != nil {
		if gen != sc.generation.Load() {
			return
		}
		perr := &ProfileResolutionError{UserID: sess.UserID, Err: err}
		sc.logger.Warn("profile resolution failed, treating session as unauthenticated",
			zap.String("user_id", sess.UserID),
			zap.Error(perr),
		)
		sc.apply(gen, UnauthenticatedSnapshot())
		return
	}

	if !sc.apply(gen, AuthenticatedSnapshot(*identity, nil)) {
		return
	}
	if identity.DealershipID == "" {
		return
	}

	dealership, err := sc.dealerships.GetDealership(sc.ctx, identity.DealershipID)
	if err != nil || dealership == nil {
		sc.logger.Warn("dealership fetch failed",
			zap.String("user_id", identity.ID),
			zap.String("dealership_id", identity.DealershipID),
			zap.Error(err),
		)
		return
	}
	sc.apply(gen, AuthenticatedSnapshot(*identity, dealership))
}

// apply installs next if gen is still the newest generation and delivers it
// to subscribers. The store and the fan-out happen under one lock, so
// subscribers see transitions in generation order.
func (sc *SessionContext) apply(gen uint64, next Snapshot) bool {
	sc.applyMu.Lock()
	defer sc.applyMu.Unlock()

	if gen != sc.generation.Load() {
		sc.logger.Debug("discarding stale session result",
			zap.Uint64("generation", gen),
			zap.String("state", next.State().String()),
		)
		return false
	}
	sc.current.Store(&next)

	sc.subMu.Lock()
	subs := make([]func(Snapshot), 0, len(sc.subs))
	for _, fn := range sc.subs {
		subs = append(subs, fn)
	}
	sc.subMu.Unlock()

	for _, fn := range subs {
		fn(next)
	}
	return true
}
