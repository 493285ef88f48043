package authflow

import (
	"context"
	"net/url"
	"sync"
	"time"

	"github.com/goliatone/go-print"
)

// FlowView identifies one screen of the credential wizard
type FlowView = string

const (
	// ViewLogin email/password sign in
	ViewLogin FlowView = "login"
	// ViewSignup registration, optionally gated by an invitation
	ViewSignup FlowView = "signup"
	// ViewEmailVerification one-time code confirming the signup email
	ViewEmailVerification FlowView = "email-verification"
	// ViewForgotPassword requests a reset code
	ViewForgotPassword FlowView = "forgot-password"
	// ViewResetPassword trades code + new password for a changed account
	ViewResetPassword FlowView = "reset-password"
	// ViewTwoFactor second factor challenge after login
	ViewTwoFactor FlowView = "2fa"
)

// flowTransitions is the wizard's explicit graph. Moving against it is an
// error; moving along it wipes the departing view's transient state.
var flowTransitions = map[FlowView]map[FlowView]struct{}{
	ViewLogin: {
		ViewSignup:            {},
		ViewForgotPassword:    {},
		ViewTwoFactor:         {},
		ViewEmailVerification: {},
	},
	ViewSignup: {
		ViewEmailVerification: {},
		ViewLogin:             {},
	},
	ViewEmailVerification: {
		ViewLogin: {},
	},
	ViewForgotPassword: {
		ViewResetPassword: {},
		ViewLogin:         {},
	},
	ViewResetPassword: {
		ViewLogin: {},
	},
	ViewTwoFactor: {
		ViewLogin: {},
	},
}

const transientFlowMessage = "Something went wrong. Please try again."

// CredentialFlow drives the credential wizard for one screen instance. It
// produces a session through the SessionController and otherwise owns only
// transient view state. Submissions are serialized per view: a second one
// cannot be issued while the first is still in flight.
type CredentialFlow struct {
	mu      sync.Mutex
	api     APIClient
	session *SessionController
	creds   CredentialStore
	logger  Logger
	sink    EventSink
	Debug   bool

	phonePrefix string
	entryURL    *url.URL

	view   FlowView
	busy   bool
	done   bool
	notice string

	flowErr   string
	fieldErrs map[string]string

	login  LoginPayload
	signup SignupPayload
	forgot ForgotPasswordPayload
	reset  ResetPasswordPayload

	verifyCode   string
	twoFACode    string
	emailLocked  bool
	invitation   *Invitation
	inviteToken  string
	pendingUser  string
	pendingEmail string
	accountEmail string
}

// CredentialFlowOption customizes flow construction.
type CredentialFlowOption func(*CredentialFlow)

// WithFlowCredentialStore enables the remember-me pre-fill pair.
func WithFlowCredentialStore(store CredentialStore) CredentialFlowOption {
	return func(f *CredentialFlow) {
		f.creds = store
	}
}

// WithFlowLogger overrides the default logger.
func WithFlowLogger(logger Logger) CredentialFlowOption {
	return func(f *CredentialFlow) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// WithFlowEventSink publishes signup/reset events best-effort.
func WithFlowEventSink(sink EventSink) CredentialFlowOption {
	return func(f *CredentialFlow) {
		f.sink = normalizeEventSink(sink)
	}
}

// WithEntryURL hands the flow the URL the app was entered through so it can
// consume a pending invitation parameter.
func WithEntryURL(raw string) CredentialFlowOption {
	return func(f *CredentialFlow) {
		u, err := url.Parse(raw)
		if err != nil {
			f.logger.Warn("ignoring unparseable entry URL: %v", err)
			return
		}
		f.entryURL = u
	}
}

// WithPhonePrefix overrides the enforced country-code prefix.
func WithPhonePrefix(prefix string) CredentialFlowOption {
	return func(f *CredentialFlow) {
		if prefix != "" {
			f.phonePrefix = prefix
		}
	}
}

// NewCredentialFlow builds a flow positioned on the login view. Call Start
// before rendering so remembered credentials and a pending invitation are
// applied.
func NewCredentialFlow(api APIClient, session *SessionController, opts ...CredentialFlowOption) *CredentialFlow {
	f := &CredentialFlow{
		api:         api,
		session:     session,
		logger:      defLogger{},
		sink:        noopEventSink{},
		phonePrefix: DefaultPhonePrefix,
		view:        ViewLogin,
		fieldErrs:   map[string]string{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}

	f.signup.Phone = f.phonePrefix
	return f
}

// Start applies entry-time state: the remembered credential pair, and the
// invitation token if the entry URL carried one. The invitation parameter
// is consumed exactly once and stripped from the URL whether verification
// succeeds or not.
func (f *CredentialFlow) Start(ctx context.Context) {
	if f.creds != nil {
		email, password, err := f.creds.Load(ctx)
		if err != nil {
			f.logger.Warn("failed to load remembered credentials: %v", err)
		} else if email != "" {
			f.mu.Lock()
			f.login.Email = email
			f.login.Password = password
			f.login.RememberMe = true
			f.mu.Unlock()
		}
	}

	token := f.consumeInvitationParam()
	if token == "" {
		return
	}

	f.mu.Lock()
	f.view = ViewSignup
	f.inviteToken = token
	f.mu.Unlock()

	inv, err := f.api.VerifyInvitation(ctx, token)

	f.mu.Lock()
	defer f.mu.Unlock()
	if err != nil {
		// degrade to ungated signup; the view still renders
		f.logger.Info("invitation verification failed: %v", err)
		f.inviteToken = ""
		f.flowErr = messageFromError(err)
		if IsTransient(err) {
			f.flowErr = transientFlowMessage
		}
		return
	}

	f.invitation = inv
	f.signup.Email = inv.Email
	f.emailLocked = true
}

func (f *CredentialFlow) consumeInvitationParam() string {
	if f.entryURL == nil {
		return ""
	}
	q := f.entryURL.Query()
	token := q.Get("invitation")
	if token == "" {
		return ""
	}
	q.Del("invitation")
	f.entryURL.RawQuery = q.Encode()
	return token
}

// EntryURL returns the entry URL with the invitation parameter stripped.
func (f *CredentialFlow) EntryURL() string {
	if f.entryURL == nil {
		return ""
	}
	return f.entryURL.String()
}

// GoTo performs a user-initiated view change, e.g. "create an account" or
// "back to sign in".
func (f *CredentialFlow) GoTo(view FlowView) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.busy {
		return ErrFlowBusy
	}
	return f.transitionLocked(view)
}

// SubmitLogin validates the login form and resolves the backend's answer:
// a session, a 2FA challenge, a pending verification, or an inline error.
func (f *CredentialFlow) SubmitLogin(ctx context.Context) error {
	if err := f.begin(ViewLogin); err != nil {
		return err
	}
	defer f.end()

	f.mu.Lock()
	payload := f.login
	f.mu.Unlock()

	if err := payload.Validate(); err != nil {
		f.setValidationErrors(err)
		return err
	}

	if f.Debug {
		f.logger.Debug("login submit: %s", print.MaybePrettyJSON(payload))
	}

	res, err := f.api.Login(ctx, payload.Email, payload.Password)
	if err != nil {
		f.applySubmitError(err)
		return err
	}

	switch {
	case res.Requires2FA:
		f.mu.Lock()
		defer f.mu.Unlock()
		f.pendingUser = res.PendingUserID
		return f.transitionLocked(ViewTwoFactor)

	case res.RequiresVerification:
		f.mu.Lock()
		pendingEmail := payload.Email
		f.pendingUser = res.PendingUserID
		err := f.transitionLocked(ViewEmailVerification)
		f.pendingEmail = pendingEmail
		f.mu.Unlock()
		return err

	case res.Established():
		f.rememberCredentials(ctx, payload)
		if err := f.session.Login(ctx, res.Token, res.User); err != nil {
			f.applySubmitError(err)
			return err
		}
		f.mu.Lock()
		f.done = true
		f.notice = "Signed in"
		f.mu.Unlock()
		return nil

	default:
		f.applySubmitError(ErrMalformedResponse)
		return ErrMalformedResponse
	}
}

// SubmitSignup registers the account and seeds the verification step with
// the returned user id.
func (f *CredentialFlow) SubmitSignup(ctx context.Context) error {
	if err := f.begin(ViewSignup); err != nil {
		return err
	}
	defer f.end()

	f.mu.Lock()
	payload := f.signup
	payload.PhonePrefix = f.phonePrefix
	inviteToken := f.inviteToken
	f.mu.Unlock()

	if err := payload.Validate(); err != nil {
		f.setValidationErrors(err)
		return err
	}

	res, err := f.api.Signup(ctx, SignupRequest{
		Name:            payload.Name,
		Email:           payload.Email,
		Password:        payload.Password,
		Phone:           payload.Phone,
		InvitationToken: inviteToken,
	})
	if err != nil {
		f.applySubmitError(err)
		return err
	}

	f.record(ctx, SessionEvent{EventType: EventSignupSuccess, UserID: res.UserID})

	f.mu.Lock()
	defer f.mu.Unlock()
	pendingEmail := payload.Email
	f.pendingUser = res.UserID
	if err := f.transitionLocked(ViewEmailVerification); err != nil {
		return err
	}
	f.pendingEmail = pendingEmail
	f.notice = "Account created. Check your email for a verification code."
	return nil
}

// SetVerificationCode records the typed one-time code.
func (f *CredentialFlow) SetVerificationCode(code string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.verifyCode = code
}

// SubmitEmailVerification confirms the signup email. Success returns the
// flow to login; the session is not established here.
func (f *CredentialFlow) SubmitEmailVerification(ctx context.Context) error {
	if err := f.begin(ViewEmailVerification); err != nil {
		return err
	}
	defer f.end()

	f.mu.Lock()
	payload := OTPPayload{Code: f.verifyCode}
	userID := f.pendingUser
	f.mu.Unlock()

	if err := payload.Validate(); err != nil {
		f.setValidationErrors(err)
		return err
	}
	if userID == "" {
		f.applySubmitError(ErrNoPendingUser)
		return ErrNoPendingUser
	}

	if err := f.api.VerifyEmail(ctx, userID, payload.Code); err != nil {
		f.applySubmitError(err)
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.transitionLocked(ViewLogin); err != nil {
		return err
	}
	f.notice = "Email verified. Sign in to continue."
	return nil
}

// ResendVerification re-requests a code for the tracked email. The backend
// may rotate the pending user id.
func (f *CredentialFlow) ResendVerification(ctx context.Context) error {
	if err := f.begin(ViewEmailVerification); err != nil {
		return err
	}
	defer f.end()

	f.mu.Lock()
	email := f.pendingEmail
	f.mu.Unlock()

	if email == "" {
		f.applySubmitError(ErrNoPendingUser)
		return ErrNoPendingUser
	}

	userID, err := f.api.SendVerificationOTP(ctx, email)
	if err != nil {
		f.applySubmitError(err)
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if userID != "" {
		f.pendingUser = userID
	}
	f.notice = "A new code is on its way."
	return nil
}

// SubmitForgotPassword starts the reset round trip. The backend's account
// email is authoritative and replaces whatever the user typed.
func (f *CredentialFlow) SubmitForgotPassword(ctx context.Context) error {
	if err := f.begin(ViewForgotPassword); err != nil {
		return err
	}
	defer f.end()

	f.mu.Lock()
	payload := f.forgot
	if payload.Channel == "" {
		payload.Channel = ChannelEmail
	}
	f.mu.Unlock()

	if err := payload.Validate(); err != nil {
		f.setValidationErrors(err)
		return err
	}

	res, err := f.api.ForgotPassword(ctx, payload.Email, payload.Channel)
	if err != nil {
		f.applySubmitError(err)
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.transitionLocked(ViewResetPassword); err != nil {
		return err
	}
	f.pendingUser = res.UserID
	f.accountEmail = res.AccountEmail
	f.notice = "We sent a reset code to " + res.AccountEmail + "."
	return nil
}

// CanSubmitReset reports whether the reset form holds: a six digit code, a
// long enough password, and a matching confirmation. The submit control
// stays disabled until it does.
func (f *CredentialFlow) CanSubmitReset() bool {
	f.mu.Lock()
	payload := f.reset
	f.mu.Unlock()
	return payload.Validate() == nil
}

// SubmitResetPassword finalizes the reset and returns the flow to login
// with all reset-specific fields cleared.
func (f *CredentialFlow) SubmitResetPassword(ctx context.Context) error {
	if err := f.begin(ViewResetPassword); err != nil {
		return err
	}
	defer f.end()

	f.mu.Lock()
	payload := f.reset
	userID := f.pendingUser
	f.mu.Unlock()

	if err := payload.Validate(); err != nil {
		f.setValidationErrors(err)
		return err
	}
	if userID == "" {
		f.applySubmitError(ErrNoPendingUser)
		return ErrNoPendingUser
	}

	if err := f.api.ResetPassword(ctx, userID, payload.Code, payload.Password); err != nil {
		f.applySubmitError(err)
		return err
	}

	f.record(ctx, SessionEvent{EventType: EventPasswordReset, UserID: userID})

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.transitionLocked(ViewLogin); err != nil {
		return err
	}
	f.notice = "Password updated. Sign in with your new password."
	return nil
}

// SetTwoFactorCode records the typed second-factor code.
func (f *CredentialFlow) SetTwoFactorCode(code string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.twoFACode = code
}

// SubmitTwoFactor trades the pending challenge for a session, terminating
// the flow on success. A rejected code stays on the 2FA view with an
// inline error and no session change.
func (f *CredentialFlow) SubmitTwoFactor(ctx context.Context) error {
	if err := f.begin(ViewTwoFactor); err != nil {
		return err
	}
	defer f.end()

	f.mu.Lock()
	payload := OTPPayload{Code: f.twoFACode}
	userID := f.pendingUser
	f.mu.Unlock()

	if err := payload.Validate(); err != nil {
		f.setValidationErrors(err)
		return err
	}
	if userID == "" {
		f.applySubmitError(ErrNoPendingUser)
		return ErrNoPendingUser
	}

	res, err := f.api.Verify2FA(ctx, userID, payload.Code)
	if err != nil {
		f.applySubmitError(err)
		return err
	}
	if !res.Established() {
		f.applySubmitError(ErrMalformedResponse)
		return ErrMalformedResponse
	}

	if err := f.session.Login(ctx, res.Token, res.User); err != nil {
		f.applySubmitError(err)
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.done = true
	f.notice = "Signed in"
	return nil
}

// --- form input ---

// SetLoginEmail records the typed login email.
func (f *CredentialFlow) SetLoginEmail(email string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.login.Email = email
}

// SetLoginPassword records the typed login password.
func (f *CredentialFlow) SetLoginPassword(password string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.login.Password = password
}

// SetRememberMe toggles the remembered-credential opt-in.
func (f *CredentialFlow) SetRememberMe(remember bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.login.RememberMe = remember
}

// SetSignupName records the typed name.
func (f *CredentialFlow) SetSignupName(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signup.Name = name
}

// SetSignupEmail records the typed email. Input is dropped while the field
// is locked by a verified invitation.
func (f *CredentialFlow) SetSignupEmail(email string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.emailLocked {
		return
	}
	f.signup.Email = email
}

// SetSignupPassword records the typed password.
func (f *CredentialFlow) SetSignupPassword(password string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signup.Password = password
}

// TypePhone applies raw phone input under the fixed-format policy: the
// prefix cannot be removed or altered and digits past the fixed length are
// dropped without erroring.
func (f *CredentialFlow) TypePhone(raw string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signup.Phone = NormalizePhoneInput(f.phonePrefix, raw)
}

// SetForgotEmail records the typed email for the reset request.
func (f *CredentialFlow) SetForgotEmail(email string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.forgot.Email = email
}

// SetForgotChannel selects the code delivery channel.
func (f *CredentialFlow) SetForgotChannel(channel OTPChannel) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.forgot.Channel = channel
}

// SetResetCode records the typed reset code.
func (f *CredentialFlow) SetResetCode(code string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reset.Code = code
}

// SetResetPassword records the new password.
func (f *CredentialFlow) SetResetPassword(password string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reset.Password = password
}

// SetResetConfirm records the confirmation password.
func (f *CredentialFlow) SetResetConfirm(password string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reset.ConfirmPassword = password
}

// --- view state accessors ---

// View is the wizard's current view.
func (f *CredentialFlow) View() FlowView {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.view
}

// Busy reports whether a submission is in flight; render submit controls
// disabled while it is.
func (f *CredentialFlow) Busy() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.busy
}

// Done reports whether the flow terminated with an established session.
func (f *CredentialFlow) Done() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.done
}

// Err is the flow-scoped error banner, empty when there is none.
func (f *CredentialFlow) Err() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.flowErr
}

// FieldError returns the inline error attached to one input, if any.
func (f *CredentialFlow) FieldError(field string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fieldErrs[field]
}

// FieldErrors returns a copy of all inline errors.
func (f *CredentialFlow) FieldErrors() map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]string, len(f.fieldErrs))
	for k, v := range f.fieldErrs {
		out[k] = v
	}
	return out
}

// Notice is the transient confirmation shown after a step succeeds.
func (f *CredentialFlow) Notice() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.notice
}

// LoginForm is the current login form state.
func (f *CredentialFlow) LoginForm() LoginPayload {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.login
}

// SignupForm is the current signup form state.
func (f *CredentialFlow) SignupForm() SignupPayload {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.signup
}

// ResetForm is the current reset form state.
func (f *CredentialFlow) ResetForm() ResetPasswordPayload {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reset
}

// Invitation is the verified invitation, if the flow was entered through
// one.
func (f *CredentialFlow) Invitation() *Invitation {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.invitation == nil {
		return nil
	}
	inv := *f.invitation
	return &inv
}

// EmailLocked reports whether the signup email field is frozen by a
// verified invitation.
func (f *CredentialFlow) EmailLocked() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.emailLocked
}

// PendingUserID is the backend user id the current code step is bound to.
func (f *CredentialFlow) PendingUserID() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pendingUser
}

// AccountEmail is the authoritative email shown on the reset view.
func (f *CredentialFlow) AccountEmail() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.accountEmail
}

// --- internals ---

func (f *CredentialFlow) begin(view FlowView) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.view != view {
		return ErrInvalidFlowTransition.WithMetadata(map[string]any{
			"current":   f.view,
			"submitted": view,
		})
	}
	if f.busy {
		return ErrFlowBusy
	}
	f.busy = true
	f.flowErr = ""
	f.notice = ""
	f.fieldErrs = map[string]string{}
	return nil
}

func (f *CredentialFlow) end() {
	f.mu.Lock()
	f.busy = false
	f.mu.Unlock()
}

func (f *CredentialFlow) transitionLocked(to FlowView) error {
	allowed, ok := flowTransitions[f.view]
	if !ok {
		return ErrInvalidFlowTransition.WithMetadata(map[string]any{"from": f.view, "to": to})
	}
	if _, ok := allowed[to]; !ok {
		return ErrInvalidFlowTransition.WithMetadata(map[string]any{"from": f.view, "to": to})
	}

	f.resetViewLocked(f.view)
	f.view = to
	f.flowErr = ""
	f.notice = ""
	f.fieldErrs = map[string]string{}
	return nil
}

// resetViewLocked wipes the transient state of the view being left so no
// view carries stale errors or inputs into the next.
func (f *CredentialFlow) resetViewLocked(view FlowView) {
	switch view {
	case ViewLogin:
		f.login = LoginPayload{}
	case ViewSignup:
		f.signup = SignupPayload{Phone: f.phonePrefix}
		f.invitation = nil
		f.inviteToken = ""
		f.emailLocked = false
	case ViewEmailVerification:
		f.verifyCode = ""
		f.pendingUser = ""
		f.pendingEmail = ""
	case ViewForgotPassword:
		f.forgot = ForgotPasswordPayload{}
	case ViewResetPassword:
		f.reset = ResetPasswordPayload{}
		f.pendingUser = ""
		f.accountEmail = ""
	case ViewTwoFactor:
		f.twoFACode = ""
		f.pendingUser = ""
	}
}

func (f *CredentialFlow) setValidationErrors(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fieldErrs = ValidationErrorMap(err)
}

// applySubmitError maps a backend failure onto the view: field-scoped
// rejections attach to their input, business rejections become the banner,
// and transient failures get the generic retry message.
func (f *CredentialFlow) applySubmitError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if field := FieldFromError(err); field != "" {
		f.fieldErrs[field] = messageFromError(err)
		return
	}
	if IsTransient(err) {
		f.flowErr = transientFlowMessage
		return
	}
	f.flowErr = messageFromError(err)
}

func (f *CredentialFlow) rememberCredentials(ctx context.Context, payload LoginPayload) {
	if f.creds == nil {
		return
	}
	if payload.RememberMe {
		if err := f.creds.Save(ctx, payload.Email, payload.Password); err != nil {
			f.logger.Warn("failed to remember credentials: %v", err)
		}
		return
	}
	if err := f.creds.Clear(ctx); err != nil {
		f.logger.Warn("failed to clear remembered credentials: %v", err)
	}
}

func (f *CredentialFlow) record(ctx context.Context, event SessionEvent) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}
	sink := normalizeEventSink(f.sink)
	if err := sink.Record(ctx, event); err != nil {
		f.logger.Warn("flow event sink error: %v", err)
	}
}
