package authflow

// UserRole is the user's role
type UserRole = string

const (
	// RoleTechnician can work assigned jobs (i.e. view, edit)
	RoleTechnician UserRole = "Technician"
	// RoleSupervisor manages technicians and job intake (i.e. view, edit, create)
	RoleSupervisor UserRole = "Supervisor"
	// RoleAdmin owns the account (i.e. view, edit, create, delete)
	RoleAdmin UserRole = "Admin"
)

// UserStatus is the admission state of an account
type UserStatus = string

const (
	// StatusPending account exists but has not been fully admitted
	StatusPending UserStatus = "pending"
	// StatusActive account is fully admitted
	StatusActive UserStatus = "active"
	// StatusBlocked account has been locked out by an admin
	StatusBlocked UserStatus = "blocked"
)

// User is the profile the backend returns for an authenticated account.
// It is sourced from the backend and owned by the SessionController while a
// session is active; client code never fabricates one outside signup-pending
// states.
type User struct {
	ID       string         `json:"id,omitempty"`
	Name     string         `json:"name,omitempty"`
	Email    string         `json:"email,omitempty"`
	Phone    string         `json:"phone,omitempty"`
	Role     UserRole       `json:"role,omitempty"`
	Status   UserStatus     `json:"status,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Clone returns an independent copy so snapshots handed to callers cannot
// mutate controller state.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	out := *u
	if u.Metadata != nil {
		out.Metadata = make(map[string]any, len(u.Metadata))
		for k, v := range u.Metadata {
			out.Metadata[k] = v
		}
	}
	return &out
}

// AddMetadata will append information to a metadata attribute
func (u *User) AddMetadata(key string, val any) *User {
	if u.Metadata == nil {
		u.Metadata = make(map[string]any)
	}
	u.Metadata[key] = val
	return u
}

// Admitted reports whether the account may enter the authenticated area.
// An unset status is treated as admitted for backwards compatibility with
// backends that predate the status field.
func (u *User) Admitted() bool {
	if u == nil {
		return false
	}
	return u.Status == "" || u.Status == StatusActive
}

// SessionState is the logical state of the session singleton
type SessionState = string

const (
	// StateUnresolved boot restoration has not finished yet
	StateUnresolved SessionState = "unresolved"
	// StateAnonymous restoration finished with no valid session
	StateAnonymous SessionState = "anonymous"
	// StateAuthenticated a token and user are present
	StateAuthenticated SessionState = "authenticated"
)

// Session is an immutable snapshot of the controller state. Token and User
// are all-or-nothing: one being empty implies the other is too.
type Session struct {
	Token     string `json:"token,omitempty"`
	User      *User  `json:"user,omitempty"`
	AuthReady bool   `json:"auth_ready"`
}

// Authenticated reports whether the snapshot carries a full session.
func (s Session) Authenticated() bool {
	return s.Token != "" && s.User != nil
}

// State derives the logical state from the snapshot.
func (s Session) State() SessionState {
	if !s.AuthReady {
		return StateUnresolved
	}
	if s.Authenticated() {
		return StateAuthenticated
	}
	return StateAnonymous
}

// Invitation is the resolved {email, role} pair behind an invitation token.
// It lives only for the duration of one credential flow and is never
// persisted.
type Invitation struct {
	Email string   `json:"email"`
	Role  UserRole `json:"role"`
}

// OTPChannel selects how a one-time code is delivered.
type OTPChannel = string

const (
	ChannelEmail OTPChannel = "email"
	ChannelSMS   OTPChannel = "sms"
)

// OTPPurpose tags what a pending code is for.
type OTPPurpose = string

const (
	PurposeEmailVerification OTPPurpose = "email-verification"
	PurposePasswordReset     OTPPurpose = "password-reset"
	PurposeTwoFactor         OTPPurpose = "2fa"
)
