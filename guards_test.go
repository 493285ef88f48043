package authflow_test

import (
	"testing"

	authflow "github.com/garagehub/go-authflow"
	"github.com/stretchr/testify/assert"
)

func TestProtectedRoute(t *testing.T) {
	guard := authflow.NewRouteGuard(authflow.GuardRoutes{})

	tests := []struct {
		name    string
		session authflow.Session
		outcome authflow.GuardOutcome
		target  string
	}{
		{
			name:    "unresolved renders loading, never redirects",
			session: authflow.Session{},
			outcome: authflow.GuardPending,
		},
		{
			name:    "anonymous redirects to login",
			session: authflow.Session{AuthReady: true},
			outcome: authflow.GuardRedirect,
			target:  "/login",
		},
		{
			name: "authenticated renders",
			session: authflow.Session{
				AuthReady: true,
				Token:     "t1",
				User:      testUser("1"),
			},
			outcome: authflow.GuardRender,
		},
		{
			name: "pending user still renders protected content",
			session: authflow.Session{
				AuthReady: true,
				Token:     "t1",
				User:      &authflow.User{ID: "1", Status: authflow.StatusPending},
			},
			outcome: authflow.GuardRender,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decision := guard.Protected(tt.session)
			assert.Equal(t, tt.outcome, decision.Outcome)
			assert.Equal(t, tt.target, decision.Target)
		})
	}
}

func TestPublicOnlyRoute(t *testing.T) {
	guard := authflow.NewRouteGuard(authflow.GuardRoutes{Login: "/sign-in", Landing: "/dashboard"})

	tests := []struct {
		name    string
		session authflow.Session
		outcome authflow.GuardOutcome
		target  string
	}{
		{
			name:    "unresolved renders loading",
			session: authflow.Session{},
			outcome: authflow.GuardPending,
		},
		{
			name:    "anonymous renders public content",
			session: authflow.Session{AuthReady: true},
			outcome: authflow.GuardRender,
		},
		{
			name: "active user redirects to landing",
			session: authflow.Session{
				AuthReady: true,
				Token:     "t1",
				User:      &authflow.User{ID: "1", Status: authflow.StatusActive},
			},
			outcome: authflow.GuardRedirect,
			target:  "/dashboard",
		},
		{
			name: "unset status counts as admitted",
			session: authflow.Session{
				AuthReady: true,
				Token:     "t1",
				User:      &authflow.User{ID: "1"},
			},
			outcome: authflow.GuardRedirect,
			target:  "/dashboard",
		},
		{
			name: "pending user may still see public screens",
			session: authflow.Session{
				AuthReady: true,
				Token:     "t1",
				User:      &authflow.User{ID: "1", Status: authflow.StatusPending},
			},
			outcome: authflow.GuardRender,
		},
		{
			name: "blocked user may still see public screens",
			session: authflow.Session{
				AuthReady: true,
				Token:     "t1",
				User:      &authflow.User{ID: "1", Status: authflow.StatusBlocked},
			},
			outcome: authflow.GuardRender,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decision := guard.PublicOnly(tt.session)
			assert.Equal(t, tt.outcome, decision.Outcome)
			assert.Equal(t, tt.target, decision.Target)
		})
	}
}

func TestGuardDefaultsRoutes(t *testing.T) {
	guard := authflow.NewRouteGuard(authflow.GuardRoutes{})
	assert.Equal(t, "/login", guard.Routes.Login)
	assert.Equal(t, "/", guard.Routes.Landing)
}
