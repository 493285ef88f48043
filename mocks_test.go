package authflow_test

import (
	"context"
	"sync"

	authflow "github.com/garagehub/go-authflow"
	"github.com/stretchr/testify/mock"
)

// MockAPIClient implements authflow.APIClient
type MockAPIClient struct {
	mock.Mock
}

func (m *MockAPIClient) Login(ctx context.Context, email, password string) (*authflow.LoginResult, error) {
	args := m.Called(ctx, email, password)
	res, _ := args.Get(0).(*authflow.LoginResult)
	return res, args.Error(1)
}

func (m *MockAPIClient) Verify2FA(ctx context.Context, userID, code string) (*authflow.LoginResult, error) {
	args := m.Called(ctx, userID, code)
	res, _ := args.Get(0).(*authflow.LoginResult)
	return res, args.Error(1)
}

func (m *MockAPIClient) Signup(ctx context.Context, req authflow.SignupRequest) (*authflow.SignupResult, error) {
	args := m.Called(ctx, req)
	res, _ := args.Get(0).(*authflow.SignupResult)
	return res, args.Error(1)
}

func (m *MockAPIClient) VerifyEmail(ctx context.Context, userID, code string) error {
	args := m.Called(ctx, userID, code)
	return args.Error(0)
}

func (m *MockAPIClient) SendVerificationOTP(ctx context.Context, email string) (string, error) {
	args := m.Called(ctx, email)
	return args.String(0), args.Error(1)
}

func (m *MockAPIClient) ForgotPassword(ctx context.Context, email string, channel authflow.OTPChannel) (*authflow.ForgotPasswordResult, error) {
	args := m.Called(ctx, email, channel)
	res, _ := args.Get(0).(*authflow.ForgotPasswordResult)
	return res, args.Error(1)
}

func (m *MockAPIClient) ResetPassword(ctx context.Context, userID, code, newPassword string) error {
	args := m.Called(ctx, userID, code, newPassword)
	return args.Error(0)
}

func (m *MockAPIClient) VerifyInvitation(ctx context.Context, token string) (*authflow.Invitation, error) {
	args := m.Called(ctx, token)
	res, _ := args.Get(0).(*authflow.Invitation)
	return res, args.Error(1)
}

func (m *MockAPIClient) WhoAmI(ctx context.Context, token string) (*authflow.User, error) {
	args := m.Called(ctx, token)
	res, _ := args.Get(0).(*authflow.User)
	return res, args.Error(1)
}

// recordingSink collects session events for assertions.
type recordingSink struct {
	mu     sync.Mutex
	events []authflow.SessionEvent
}

func (s *recordingSink) Record(_ context.Context, event authflow.SessionEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *recordingSink) types() []authflow.EventType {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]authflow.EventType, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e.EventType)
	}
	return out
}

type constError string

func (e constError) Error() string { return string(e) }

const errAlwaysFails = constError("store unavailable")

// failingSessionStore errors on every operation; Logout must still succeed.
type failingSessionStore struct{}

func (failingSessionStore) Save(context.Context, string, *authflow.User) error {
	return errAlwaysFails
}

func (failingSessionStore) Load(context.Context) (string, *authflow.User, error) {
	return "", nil, errAlwaysFails
}

func (failingSessionStore) Clear(context.Context) error {
	return errAlwaysFails
}

func testUser(id string) *authflow.User {
	return &authflow.User{
		ID:     id,
		Name:   "Pepe Rone",
		Email:  "pepe.rone@example.com",
		Role:   authflow.RoleAdmin,
		Status: authflow.StatusActive,
	}
}
