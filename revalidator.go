package authflow

import (
	"context"
	"sync"
	"sync/atomic"
)

// Signal is an app-foreground transition: the surfaces that suggest the
// user's attention returned and cached state may be stale.
type Signal = string

const (
	// SignalVisible the document became visible again
	SignalVisible Signal = "visibilitychange"
	// SignalFocus the window regained input focus
	SignalFocus Signal = "focus"
)

// Revalidator turns attention signals into a best-effort session refresh
// plus a page epoch bump. It owns no session state. Refresh failures are
// swallowed on purpose: staleness is preferable to an intrusive failure
// surface mid-task, so staleness only shows passively.
type Revalidator struct {
	session *SessionController
	logger  Logger

	epoch   atomic.Uint64
	mu      sync.Mutex
	waiters []chan uint64
}

// RevalidatorOption customizes construction.
type RevalidatorOption func(*Revalidator)

// WithRevalidatorLogger overrides the logger.
func WithRevalidatorLogger(logger Logger) RevalidatorOption {
	return func(r *Revalidator) {
		if logger != nil {
			r.logger = logger
		}
	}
}

func NewRevalidator(session *SessionController, opts ...RevalidatorOption) *Revalidator {
	r := &Revalidator{
		session: session,
		logger:  defLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// Notify handles one attention signal. If no user is present nothing
// happens; the anonymous surfaces have nothing to revalidate.
func (r *Revalidator) Notify(ctx context.Context, sig Signal) {
	if r.session.Current().User == nil {
		return
	}

	if err := r.session.Refresh(ctx); err != nil {
		r.logger.Debug("refresh after %s signal failed: %v", sig, err)
	}

	// the page epoch is independent of the refresh outcome: whichever
	// screen is mounted refetches its own data regardless
	epoch := r.epoch.Add(1)
	r.wake(epoch)
}

// Run consumes signals until the context ends or the channel closes.
func (r *Revalidator) Run(ctx context.Context, signals <-chan Signal) {
	for {
		select {
		case <-ctx.Done():
			return
		case sig, ok := <-signals:
			if !ok {
				return
			}
			r.Notify(ctx, sig)
		}
	}
}

// PageEpoch is the monotonically increasing counter screens key their
// remount-and-refetch on.
func (r *Revalidator) PageEpoch() uint64 {
	return r.epoch.Load()
}

// Updates returns a channel receiving the epoch after each bump. Slow
// consumers lag by at most one value.
func (r *Revalidator) Updates() <-chan uint64 {
	ch := make(chan uint64, 1)
	r.mu.Lock()
	r.waiters = append(r.waiters, ch)
	r.mu.Unlock()
	return ch
}

func (r *Revalidator) wake(epoch uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ch := range r.waiters {
		select {
		case ch <- epoch:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- epoch:
			default:
			}
		}
	}
}
