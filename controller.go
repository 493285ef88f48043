package authflow

import (
	"context"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// SessionController is the single owner of the in-memory session. All
// mutation funnels through Login, Logout, Restore, and Refresh; the
// persisted store is a write-through cache and is never read by anything
// else once the controller is up.
type SessionController struct {
	mu     sync.Mutex
	api    APIClient
	store  SessionStore
	logger Logger
	sink   EventSink
	now    func() time.Time

	token     string
	user      *User
	authReady bool
	ready     chan struct{}

	// epoch guards against stale in-flight responses: every state change
	// bumps it, and a revalidation result is discarded unless the epoch it
	// started under is still current. A logout always wins over an
	// in-flight refresh.
	epoch uint64

	transitions map[SessionState]map[SessionState]struct{}
	subscribers []chan Session
}

// SessionControllerOption customizes controller construction.
type SessionControllerOption func(*SessionController)

// WithSessionLogger overrides the default logger.
func WithSessionLogger(logger Logger) SessionControllerOption {
	return func(c *SessionController) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithSessionEventSink sets the EventSink used to publish lifecycle events.
func WithSessionEventSink(sink EventSink) SessionControllerOption {
	return func(c *SessionController) {
		c.sink = normalizeEventSink(sink)
	}
}

// WithSessionClock injects a custom clock (useful for tests).
func WithSessionClock(clock func() time.Time) SessionControllerOption {
	return func(c *SessionController) {
		if clock != nil {
			c.now = clock
		}
	}
}

// NewSessionController returns a controller in the unresolved state, ready
// for Restore.
func NewSessionController(api APIClient, store SessionStore, opts ...SessionControllerOption) *SessionController {
	c := &SessionController{
		api:    api,
		store:  store,
		logger: defLogger{},
		sink:   noopEventSink{},
		now:    time.Now,
		ready:  make(chan struct{}),
		transitions: map[SessionState]map[SessionState]struct{}{
			StateUnresolved: {
				StateAnonymous:     {},
				StateAuthenticated: {},
			},
			StateAnonymous: {
				StateAnonymous:     {},
				StateAuthenticated: {},
			},
			StateAuthenticated: {
				StateAnonymous:     {},
				StateAuthenticated: {},
			},
		},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	return c
}

// Current returns an immutable snapshot of the session.
func (c *SessionController) Current() Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// State returns the logical state derived from the snapshot.
func (c *SessionController) State() SessionState {
	return c.Current().State()
}

// Ready is closed once the boot restoration has resolved, whatever the
// branch. It never reopens.
func (c *SessionController) Ready() <-chan struct{} {
	return c.ready
}

// Subscribe returns a channel that receives a fresh snapshot after every
// session change. Slow consumers only ever lag by one snapshot: stale
// pending values are replaced, never queued.
func (c *SessionController) Subscribe() <-chan Session {
	ch := make(chan Session, 1)
	c.mu.Lock()
	c.subscribers = append(c.subscribers, ch)
	c.mu.Unlock()
	return ch
}

// Login installs a (token, user) pair the caller already obtained from the
// backend. Any state transitions to authenticated; the store is written
// through.
func (c *SessionController) Login(ctx context.Context, token string, user *User) error {
	if token == "" || user == nil {
		return goerrors.New("login requires both token and user", goerrors.CategoryValidation).
			WithCode(goerrors.CodeBadRequest)
	}

	c.mu.Lock()
	if !c.canTransition(c.stateLocked(), StateAuthenticated) {
		c.mu.Unlock()
		return ErrInvalidSessionTransition
	}
	c.applyAuthenticatedLocked(user, token)
	c.markReadyLocked()
	c.notifyLocked()
	c.mu.Unlock()

	c.writeThrough(ctx, token, user)
	c.record(ctx, SessionEvent{EventType: EventLoginSuccess, UserID: user.ID})
	return nil
}

// Logout clears the in-memory session and the persisted record. It never
// fails: a store error is logged and swallowed so the user is always
// logged out locally.
func (c *SessionController) Logout(ctx context.Context) {
	c.mu.Lock()
	userID := ""
	if c.user != nil {
		userID = c.user.ID
	}
	c.applyAnonymousLocked()
	c.markReadyLocked()
	c.notifyLocked()
	c.mu.Unlock()

	if err := c.store.Clear(ctx); err != nil {
		c.logger.Warn("failed to clear persisted session: %v", err)
	}
	c.record(ctx, SessionEvent{EventType: EventLogout, UserID: userID})
}

// Restore runs the boot sequence: read the persisted record, and if a token
// is present revalidate it against the backend. authReady flips true exactly
// once when this returns, whatever the branch. The returned error is
// diagnostic only; transient failures leave the provisional session intact.
func (c *SessionController) Restore(ctx context.Context) error {
	defer func() {
		c.mu.Lock()
		c.markReadyLocked()
		c.notifyLocked()
		c.mu.Unlock()
	}()

	token, user, err := c.store.Load(ctx)
	if err != nil {
		// unreadable storage; resolve anonymous without touching the record
		c.logger.Warn("failed to load persisted session: %v", err)
		c.record(ctx, SessionEvent{EventType: EventSessionRestored, Metadata: map[string]any{"outcome": "storage_error"}})
		return err
	}

	if token == "" {
		c.record(ctx, SessionEvent{EventType: EventSessionRestored, Metadata: map[string]any{"outcome": "empty"}})
		return nil
	}

	// adopt the cached pair provisionally; the whoAmI payload is
	// authoritative and overwrites the cached user on success
	c.mu.Lock()
	c.token = token
	c.user = user
	epoch := c.epoch
	c.mu.Unlock()

	if err := c.revalidate(ctx, token, epoch); err != nil {
		return err
	}
	c.record(ctx, SessionEvent{EventType: EventSessionRestored, Metadata: map[string]any{"outcome": "resolved"}})
	return nil
}

// Refresh revalidates the current token on demand. Callers treat it as
// fire-and-forget: a transient failure leaves the session untouched and
// only an explicit rejection evicts it.
func (c *SessionController) Refresh(ctx context.Context) error {
	c.mu.Lock()
	token := c.token
	epoch := c.epoch
	c.mu.Unlock()

	if token == "" {
		return nil
	}
	return c.revalidate(ctx, token, epoch)
}

func (c *SessionController) revalidate(ctx context.Context, token string, epoch uint64) error {
	user, err := c.api.WhoAmI(ctx, token)

	c.mu.Lock()
	if c.epoch != epoch {
		// the session changed while this request was in flight; a stale
		// response must not resurrect or overwrite it
		c.mu.Unlock()
		c.logger.Debug("discarding stale whoAmI response")
		return nil
	}

	if err == nil {
		c.applyAuthenticatedLocked(user, token)
		c.markReadyLocked()
		c.notifyLocked()
		c.mu.Unlock()

		c.writeThrough(ctx, token, user)
		c.record(ctx, SessionEvent{EventType: EventSessionRefreshed, UserID: user.ID})
		return nil
	}
	c.mu.Unlock()

	if IsAuthRejection(err) {
		c.record(ctx, SessionEvent{EventType: EventRefreshRejected})
		c.Logout(ctx)
		return err
	}

	// transient: token kept, user is whatever was last known
	c.logger.Debug("session revalidation failed, keeping session: %v", err)
	return err
}

func (c *SessionController) writeThrough(ctx context.Context, token string, user *User) {
	if err := c.store.Save(ctx, token, user); err != nil {
		c.logger.Warn("failed to persist session: %v", err)
	}
}

func (c *SessionController) record(ctx context.Context, event SessionEvent) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = c.now()
	}
	sink := normalizeEventSink(c.sink)
	if err := sink.Record(ctx, event); err != nil {
		c.logger.Warn("session event sink error: %v", err)
	}
}

func (c *SessionController) canTransition(from, to SessionState) bool {
	if allowed, ok := c.transitions[from]; ok {
		_, exists := allowed[to]
		return exists
	}
	return false
}

func (c *SessionController) stateLocked() SessionState {
	return c.snapshotLocked().State()
}

func (c *SessionController) snapshotLocked() Session {
	return Session{
		Token:     c.token,
		User:      c.user.Clone(),
		AuthReady: c.authReady,
	}
}

func (c *SessionController) applyAuthenticatedLocked(user *User, token string) {
	c.token = token
	c.user = user.Clone()
	c.epoch++
}

func (c *SessionController) applyAnonymousLocked() {
	c.token = ""
	c.user = nil
	c.epoch++
}

func (c *SessionController) markReadyLocked() {
	if c.authReady {
		return
	}
	c.authReady = true
	close(c.ready)
}

func (c *SessionController) notifyLocked() {
	snap := c.snapshotLocked()
	for _, ch := range c.subscribers {
		select {
		case ch <- snap:
		default:
			// replace the pending stale snapshot with the current one
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}
