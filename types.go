package authflow

import (
	"context"
	"fmt"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// SessionStore is the durable {token, user} record that survives restarts.
// No validation, no network I/O; a Load with nothing stored returns empty
// values and a nil error.
type SessionStore interface {
	Save(ctx context.Context, token string, user *User) error
	Load(ctx context.Context) (string, *User, error)
	Clear(ctx context.Context) error
}

// CredentialStore is the independent remembered-credential pair used solely
// to pre-fill the login form. It has its own clear-on-uncheck semantics and
// shares nothing with the session record.
type CredentialStore interface {
	Save(ctx context.Context, email, password string) error
	Load(ctx context.Context) (string, string, error)
	Clear(ctx context.Context) error
}

// APIClient is the backend boundary. Implementations classify failures into
// the taxonomy in errors.go: explicit rejection (CategoryAuth), business
// rejection (CategoryValidation), everything else transient
// (CategoryOperation).
type APIClient interface {
	Login(ctx context.Context, email, password string) (*LoginResult, error)
	Verify2FA(ctx context.Context, userID, code string) (*LoginResult, error)
	Signup(ctx context.Context, req SignupRequest) (*SignupResult, error)
	VerifyEmail(ctx context.Context, userID, code string) error
	SendVerificationOTP(ctx context.Context, email string) (string, error)
	ForgotPassword(ctx context.Context, email string, channel OTPChannel) (*ForgotPasswordResult, error)
	ResetPassword(ctx context.Context, userID, code, newPassword string) error
	VerifyInvitation(ctx context.Context, token string) (*Invitation, error)
	WhoAmI(ctx context.Context, token string) (*User, error)
}

// LoginResult is the union of the login and 2FA verification outcomes. At
// most one branch is set: a full (Token, User) pair, a pending 2FA user, or
// a pending verification user.
type LoginResult struct {
	Token                string
	User                 *User
	Requires2FA          bool
	RequiresVerification bool
	PendingUserID        string
}

// Established reports whether the result carries a usable session.
func (r *LoginResult) Established() bool {
	return r != nil && r.Token != "" && r.User != nil
}

// SignupRequest carries a validated registration to the backend.
type SignupRequest struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	Phone           string `json:"phone"`
	InvitationToken string `json:"invitationToken,omitempty"`
}

// SignupResult seeds the email verification step.
type SignupResult struct {
	UserID string
	Role   UserRole
}

// ForgotPasswordResult carries the reset session: the user id the code is
// bound to and the authoritative account email, which may differ in
// case/format from what the user typed.
type ForgotPasswordResult struct {
	UserID       string
	AccountEmail string
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] AUTHFLOW "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] AUTHFLOW "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] AUTHFLOW "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] AUTHFLOW "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
