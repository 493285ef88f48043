package authflow_test

import (
	"context"
	"testing"
	"time"

	authflow "github.com/garagehub/go-authflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newFlowFixture(t *testing.T) (*MockAPIClient, *authflow.SessionController, *authflow.CredentialFlow) {
	t.Helper()
	api := new(MockAPIClient)
	ctrl := authflow.NewSessionController(api, authflow.NewMemorySessionStore())
	flow := authflow.NewCredentialFlow(api, ctrl)
	return api, ctrl, flow
}

func TestLoginSuccessEstablishesSession(t *testing.T) {
	ctx := context.Background()
	api, ctrl, flow := newFlowFixture(t)

	user := &authflow.User{ID: "1", Role: authflow.RoleAdmin}
	api.On("Login", mock.Anything, "a@b.com", "secret1").Return(&authflow.LoginResult{
		Token: "t1",
		User:  user,
	}, nil)

	flow.SetLoginEmail("a@b.com")
	flow.SetLoginPassword("secret1")
	require.NoError(t, flow.SubmitLogin(ctx))

	assert.True(t, flow.Done())

	snap := ctrl.Current()
	assert.Equal(t, "t1", snap.Token)
	require.NotNil(t, snap.User)
	assert.Equal(t, "1", snap.User.ID)
	assert.Equal(t, authflow.RoleAdmin, snap.User.Role)

	// the public-only guard now redirects away from login
	guard := authflow.NewRouteGuard(authflow.GuardRoutes{})
	decision := guard.PublicOnly(ctrl.Current())
	assert.Equal(t, authflow.GuardRedirect, decision.Outcome)
}

func TestLoginValidationBlocksSubmission(t *testing.T) {
	ctx := context.Background()
	api, _, flow := newFlowFixture(t)

	flow.SetLoginEmail("not-an-email")
	flow.SetLoginPassword("secret1")
	err := flow.SubmitLogin(ctx)
	require.Error(t, err)

	assert.NotEmpty(t, flow.FieldError("email"))
	api.AssertNotCalled(t, "Login", mock.Anything, mock.Anything, mock.Anything)
}

func TestLoginFieldScopedRejection(t *testing.T) {
	ctx := context.Background()
	api, ctrl, flow := newFlowFixture(t)

	api.On("Login", mock.Anything, "a@b.com", "wrongpass").
		Return(nil, authflow.FieldRejection("password", "Incorrect password"))

	flow.SetLoginEmail("a@b.com")
	flow.SetLoginPassword("wrongpass")
	require.Error(t, flow.SubmitLogin(ctx))

	assert.Equal(t, authflow.ViewLogin, flow.View())
	assert.Equal(t, "Incorrect password", flow.FieldError("password"))
	assert.Empty(t, flow.Err())
	assert.Nil(t, ctrl.Current().User)
}

func TestLoginTransientFailureShowsGenericBanner(t *testing.T) {
	ctx := context.Background()
	api, _, flow := newFlowFixture(t)

	api.On("Login", mock.Anything, "a@b.com", "secret1").
		Return(nil, authflow.ErrBackendUnavailable)

	flow.SetLoginEmail("a@b.com")
	flow.SetLoginPassword("secret1")
	require.Error(t, flow.SubmitLogin(ctx))

	assert.Equal(t, authflow.ViewLogin, flow.View())
	assert.NotEmpty(t, flow.Err())
	assert.Empty(t, flow.FieldErrors())
}

func TestTwoFactorBranch(t *testing.T) {
	ctx := context.Background()
	api, ctrl, flow := newFlowFixture(t)

	api.On("Login", mock.Anything, "a@b.com", "secret1").
		Return(&authflow.LoginResult{Requires2FA: true, PendingUserID: "42"}, nil)

	flow.SetLoginEmail("a@b.com")
	flow.SetLoginPassword("secret1")
	require.NoError(t, flow.SubmitLogin(ctx))

	assert.Equal(t, authflow.ViewTwoFactor, flow.View())
	assert.Equal(t, "42", flow.PendingUserID())

	// a rejected code stays on the 2FA view with no session change
	api.On("Verify2FA", mock.Anything, "42", "111111").
		Return(nil, authflow.BusinessRejection("Invalid code"))
	flow.SetTwoFactorCode("111111")
	require.Error(t, flow.SubmitTwoFactor(ctx))
	assert.Equal(t, authflow.ViewTwoFactor, flow.View())
	assert.Equal(t, "Invalid code", flow.Err())
	assert.Nil(t, ctrl.Current().User)

	// the accepted code establishes the session, terminal
	user := testUser("42")
	api.On("Verify2FA", mock.Anything, "42", "000000").
		Return(&authflow.LoginResult{Token: "t2", User: user}, nil)
	flow.SetTwoFactorCode("000000")
	require.NoError(t, flow.SubmitTwoFactor(ctx))

	assert.True(t, flow.Done())
	assert.Equal(t, "t2", ctrl.Current().Token)
}

func TestVerificationRequiredBranch(t *testing.T) {
	ctx := context.Background()
	api, _, flow := newFlowFixture(t)

	api.On("Login", mock.Anything, "a@b.com", "secret1").
		Return(&authflow.LoginResult{RequiresVerification: true, PendingUserID: "7"}, nil)

	flow.SetLoginEmail("a@b.com")
	flow.SetLoginPassword("secret1")
	require.NoError(t, flow.SubmitLogin(ctx))

	assert.Equal(t, authflow.ViewEmailVerification, flow.View())
	assert.Equal(t, "7", flow.PendingUserID())
}

func TestInvitationSignup(t *testing.T) {
	ctx := context.Background()
	api := new(MockAPIClient)
	ctrl := authflow.NewSessionController(api, authflow.NewMemorySessionStore())

	api.On("VerifyInvitation", mock.Anything, "XYZ").Return(&authflow.Invitation{
		Email: "inv@x.com",
		Role:  authflow.RoleTechnician,
	}, nil)

	flow := authflow.NewCredentialFlow(api, ctrl,
		authflow.WithEntryURL("https://app.example.com/signup?invitation=XYZ&tab=jobs"))
	flow.Start(ctx)

	assert.Equal(t, authflow.ViewSignup, flow.View())
	assert.Equal(t, "inv@x.com", flow.SignupForm().Email)
	assert.True(t, flow.EmailLocked())
	require.NotNil(t, flow.Invitation())
	assert.Equal(t, authflow.RoleTechnician, flow.Invitation().Role)

	// the locked email cannot be altered by further input
	flow.SetSignupEmail("evil@x.com")
	assert.Equal(t, "inv@x.com", flow.SignupForm().Email)

	// the invitation parameter is consumed and stripped
	assert.Equal(t, "https://app.example.com/signup?tab=jobs", flow.EntryURL())
}

func TestInvitationFailureDegradesToUngatedSignup(t *testing.T) {
	ctx := context.Background()
	api := new(MockAPIClient)
	ctrl := authflow.NewSessionController(api, authflow.NewMemorySessionStore())

	api.On("VerifyInvitation", mock.Anything, "XYZ").
		Return(nil, authflow.BusinessRejection("Invitation expired"))

	flow := authflow.NewCredentialFlow(api, ctrl,
		authflow.WithEntryURL("/signup?invitation=XYZ"))
	flow.Start(ctx)

	assert.Equal(t, authflow.ViewSignup, flow.View())
	assert.Equal(t, "Invitation expired", flow.Err())
	assert.False(t, flow.EmailLocked())
	assert.Nil(t, flow.Invitation())

	// signup still works, just ungated
	api.On("Signup", mock.Anything, mock.MatchedBy(func(req authflow.SignupRequest) bool {
		return req.InvitationToken == ""
	})).Return(&authflow.SignupResult{UserID: "9"}, nil)

	flow.SetSignupName("Pepe Rone")
	flow.SetSignupEmail("pepe.rone@example.com")
	flow.SetSignupPassword("longenough1")
	flow.TypePhone("+919876543210")
	require.NoError(t, flow.SubmitSignup(ctx))

	assert.Equal(t, authflow.ViewEmailVerification, flow.View())
	assert.Equal(t, "9", flow.PendingUserID())
}

func TestSignupCarriesInvitationToken(t *testing.T) {
	ctx := context.Background()
	api := new(MockAPIClient)
	ctrl := authflow.NewSessionController(api, authflow.NewMemorySessionStore())

	api.On("VerifyInvitation", mock.Anything, "XYZ").Return(&authflow.Invitation{
		Email: "inv@x.com",
		Role:  authflow.RoleTechnician,
	}, nil)
	api.On("Signup", mock.Anything, mock.MatchedBy(func(req authflow.SignupRequest) bool {
		return req.InvitationToken == "XYZ" && req.Email == "inv@x.com"
	})).Return(&authflow.SignupResult{UserID: "11", Role: authflow.RoleTechnician}, nil)

	flow := authflow.NewCredentialFlow(api, ctrl, authflow.WithEntryURL("/signup?invitation=XYZ"))
	flow.Start(ctx)

	flow.SetSignupName("Invited Tech")
	flow.SetSignupPassword("longenough1")
	flow.TypePhone("+919876543210")
	require.NoError(t, flow.SubmitSignup(ctx))

	assert.Equal(t, authflow.ViewEmailVerification, flow.View())
	assert.Equal(t, "11", flow.PendingUserID())
}

func TestEmailVerificationReturnsToLoginWithoutSession(t *testing.T) {
	ctx := context.Background()
	api, ctrl, flow := newFlowFixture(t)

	api.On("Login", mock.Anything, "a@b.com", "secret1").
		Return(&authflow.LoginResult{RequiresVerification: true, PendingUserID: "7"}, nil)
	api.On("VerifyEmail", mock.Anything, "7", "123456").Return(nil)

	flow.SetLoginEmail("a@b.com")
	flow.SetLoginPassword("secret1")
	require.NoError(t, flow.SubmitLogin(ctx))

	flow.SetVerificationCode("123456")
	require.NoError(t, flow.SubmitEmailVerification(ctx))

	assert.Equal(t, authflow.ViewLogin, flow.View())
	assert.NotEmpty(t, flow.Notice())
	assert.Nil(t, ctrl.Current().User)
	assert.False(t, flow.Done())
}

func TestResendVerificationRotatesUserID(t *testing.T) {
	ctx := context.Background()
	api, _, flow := newFlowFixture(t)

	api.On("Login", mock.Anything, "a@b.com", "secret1").
		Return(&authflow.LoginResult{RequiresVerification: true, PendingUserID: "7"}, nil)
	api.On("SendVerificationOTP", mock.Anything, "a@b.com").Return("8", nil)

	flow.SetLoginEmail("a@b.com")
	flow.SetLoginPassword("secret1")
	require.NoError(t, flow.SubmitLogin(ctx))

	require.NoError(t, flow.ResendVerification(ctx))
	assert.Equal(t, "8", flow.PendingUserID())
}

func TestPasswordResetRoundTrip(t *testing.T) {
	ctx := context.Background()
	api, _, flow := newFlowFixture(t)

	api.On("ForgotPassword", mock.Anything, "a@b.com", authflow.ChannelEmail).
		Return(&authflow.ForgotPasswordResult{UserID: "9", AccountEmail: "A@B.com"}, nil)
	api.On("ResetPassword", mock.Anything, "9", "123456", "longenough1").Return(nil)

	require.NoError(t, flow.GoTo(authflow.ViewForgotPassword))
	flow.SetForgotEmail("a@b.com")
	require.NoError(t, flow.SubmitForgotPassword(ctx))

	// the backend's account email is authoritative
	assert.Equal(t, authflow.ViewResetPassword, flow.View())
	assert.Equal(t, "A@B.com", flow.AccountEmail())

	// submit is held back until code, password, and confirmation all hold
	assert.False(t, flow.CanSubmitReset())
	flow.SetResetCode("123456")
	flow.SetResetPassword("longenough1")
	assert.False(t, flow.CanSubmitReset())
	flow.SetResetConfirm("longenough1")
	assert.True(t, flow.CanSubmitReset())

	require.NoError(t, flow.SubmitResetPassword(ctx))

	assert.Equal(t, authflow.ViewLogin, flow.View())
	assert.Empty(t, flow.ResetForm().Code)
	assert.Empty(t, flow.ResetForm().Password)
	assert.Empty(t, flow.AccountEmail())
	assert.NotEmpty(t, flow.Notice())
}

func TestResetWithoutPendingUserIsRejected(t *testing.T) {
	_, _, flow := newFlowFixture(t)

	// jump straight to reset-password without the forgot round trip
	err := flow.GoTo(authflow.ViewResetPassword)
	require.Error(t, err)
	assert.Equal(t, authflow.ViewLogin, flow.View())
}

func TestTransitionClearsDepartingViewState(t *testing.T) {
	_, _, flow := newFlowFixture(t)

	flow.SetLoginEmail("a@b.com")
	flow.SetLoginPassword("secret1")
	require.NoError(t, flow.GoTo(authflow.ViewSignup))

	flow.SetSignupName("Someone")
	require.NoError(t, flow.GoTo(authflow.ViewLogin))

	// both directions wiped their inputs
	assert.Empty(t, flow.LoginForm().Email)
	require.NoError(t, flow.GoTo(authflow.ViewSignup))
	assert.Empty(t, flow.SignupForm().Name)
}

func TestSubmissionsAreSerializedPerView(t *testing.T) {
	ctx := context.Background()
	api, _, flow := newFlowFixture(t)

	release := make(chan struct{})
	api.On("Login", mock.Anything, "a@b.com", "secret1").Run(func(mock.Arguments) {
		<-release
	}).Return(&authflow.LoginResult{Token: "t1", User: testUser("1")}, nil)

	flow.SetLoginEmail("a@b.com")
	flow.SetLoginPassword("secret1")

	done := make(chan error, 1)
	go func() {
		done <- flow.SubmitLogin(ctx)
	}()

	// wait for the in-flight submission to own the busy flag
	for !flow.Busy() {
		time.Sleep(time.Millisecond)
	}

	err := flow.SubmitLogin(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, authflow.ErrFlowBusy)

	close(release)
	require.NoError(t, <-done)
}

func TestRememberMePersistsAndClearsCredentials(t *testing.T) {
	ctx := context.Background()
	api := new(MockAPIClient)
	ctrl := authflow.NewSessionController(api, authflow.NewMemorySessionStore())
	creds := authflow.NewMemoryCredentialStore()

	api.On("Login", mock.Anything, "a@b.com", "secret1").
		Return(&authflow.LoginResult{Token: "t1", User: testUser("1")}, nil)

	flow := authflow.NewCredentialFlow(api, ctrl, authflow.WithFlowCredentialStore(creds))
	flow.SetLoginEmail("a@b.com")
	flow.SetLoginPassword("secret1")
	flow.SetRememberMe(true)
	require.NoError(t, flow.SubmitLogin(ctx))

	email, password, err := creds.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a@b.com", email)
	assert.Equal(t, "secret1", password)

	// a fresh flow pre-fills from the remembered pair
	flow2 := authflow.NewCredentialFlow(api, ctrl, authflow.WithFlowCredentialStore(creds))
	flow2.Start(ctx)
	assert.Equal(t, "a@b.com", flow2.LoginForm().Email)
	assert.True(t, flow2.LoginForm().RememberMe)

	// unchecking the opt-in clears the pair at submit time
	flow2.SetRememberMe(false)
	require.NoError(t, flow2.SubmitLogin(ctx))
	email, password, err = creds.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, email)
	assert.Empty(t, password)
}

func TestPhoneInputPolicy(t *testing.T) {
	_, _, flow := newFlowFixture(t)
	require.NoError(t, flow.GoTo(authflow.ViewSignup))

	// the prefix is seeded up front
	assert.Equal(t, "+91", flow.SignupForm().Phone)

	// digits append, non-digits are dropped
	flow.TypePhone("+9198a76-54321")
	assert.Equal(t, "+91987654321", flow.SignupForm().Phone)

	// entry beyond the fixed length is silently truncated
	flow.TypePhone("+91987654321099999")
	assert.Equal(t, "+919876543210", flow.SignupForm().Phone)

	// clobbering the prefix cannot remove it
	flow.TypePhone("9876543210")
	assert.Equal(t, "+919876543210", flow.SignupForm().Phone)
}

func TestFlowEventsRecorded(t *testing.T) {
	ctx := context.Background()
	api := new(MockAPIClient)
	ctrl := authflow.NewSessionController(api, authflow.NewMemorySessionStore())
	sink := &recordingSink{}

	api.On("Signup", mock.Anything, mock.Anything).
		Return(&authflow.SignupResult{UserID: "5"}, nil)

	flow := authflow.NewCredentialFlow(api, ctrl, authflow.WithFlowEventSink(sink))
	require.NoError(t, flow.GoTo(authflow.ViewSignup))
	flow.SetSignupName("Pepe Rone")
	flow.SetSignupEmail("pepe.rone@example.com")
	flow.SetSignupPassword("longenough1")
	flow.TypePhone("+919876543210")
	require.NoError(t, flow.SubmitSignup(ctx))

	assert.Contains(t, sink.types(), authflow.EventSignupSuccess)
}
