package authflow

import (
	"context"

	"github.com/uptrace/bun"
)

// Stack wires the session components the way an app shell consumes them:
// one storage handle, one API client, one session controller, one
// revalidator, one guard. Credential flows are created per screen instance
// through NewFlow.
type Stack struct {
	DB          *bun.DB
	API         *HTTPAPIClient
	Sessions    *SessionController
	Revalidator *Revalidator
	Guard       RouteGuard

	sessionStore SessionStore
	credStore    CredentialStore
	logger       Logger
	phonePrefix  string
}

// StackOption customizes stack assembly.
type StackOption func(*Stack)

// WithStackLogger sets the logger every component inherits.
func WithStackLogger(logger Logger) StackOption {
	return func(s *Stack) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewStack assembles the full client-side session stack from config. It
// does not run Restore; the app shell calls that once at boot.
func NewStack(ctx context.Context, cfg Config, opts ...StackOption) (*Stack, error) {
	s := &Stack{
		logger:      defLogger{},
		phonePrefix: cfg.GetPhonePrefix(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	db, err := OpenStorage(ctx, cfg.GetStorageDSN())
	if err != nil {
		return nil, err
	}
	s.DB = db
	s.sessionStore = NewBunSessionStore(db)
	s.credStore = NewBunCredentialStore(db)

	s.API = NewHTTPAPIClient(cfg.GetAPIBaseURL(), WithClientLogger(s.logger))
	s.Sessions = NewSessionController(s.API, s.sessionStore, WithSessionLogger(s.logger))
	s.Revalidator = NewRevalidator(s.Sessions, WithRevalidatorLogger(s.logger))
	s.Guard = NewRouteGuard(GuardRoutes{
		Login:   cfg.GetLoginRoute(),
		Landing: cfg.GetLandingRoute(),
	})

	return s, nil
}

// NewFlow creates a credential flow bound to the stack's session controller
// and remembered-credential store.
func (s *Stack) NewFlow(entryURL string) *CredentialFlow {
	return NewCredentialFlow(s.API, s.Sessions,
		WithFlowCredentialStore(s.credStore),
		WithFlowLogger(s.logger),
		WithEntryURL(entryURL),
		WithPhonePrefix(s.phonePrefix),
	)
}

// Close releases the storage handle.
func (s *Stack) Close() error {
	if s.DB == nil {
		return nil
	}
	return s.DB.Close()
}
