package authflow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
)

// HTTPAPIClient talks to the workshop backend's auth endpoints. It owns
// failure classification: explicit rejection, business rejection, or
// transient. No timeouts are enforced here; the transport's defaults apply.
type HTTPAPIClient struct {
	baseURL string
	client  *http.Client
	logger  Logger
	Debug   bool
}

var _ APIClient = (*HTTPAPIClient)(nil)

type HTTPAPIClientOption func(*HTTPAPIClient)

// WithHTTPClient overrides the transport, mostly for tests.
func WithHTTPClient(client *http.Client) HTTPAPIClientOption {
	return func(c *HTTPAPIClient) {
		if client != nil {
			c.client = client
		}
	}
}

// WithClientLogger overrides the logger used for request failures.
func WithClientLogger(logger Logger) HTTPAPIClientOption {
	return func(c *HTTPAPIClient) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func NewHTTPAPIClient(baseURL string, opts ...HTTPAPIClientOption) *HTTPAPIClient {
	c := &HTTPAPIClient{
		baseURL: baseURL,
		client:  http.DefaultClient,
		logger:  defLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// envelope is the backend's response shape across all auth endpoints.
// Endpoints use the subset of fields they need.
type envelope struct {
	Success              bool        `json:"success"`
	Error                string      `json:"error,omitempty"`
	ErrorType            string      `json:"errorType,omitempty"`
	Token                string      `json:"token,omitempty"`
	User                 *User       `json:"user,omitempty"`
	UserID               string      `json:"userId,omitempty"`
	AccountEmail         string      `json:"accountEmail,omitempty"`
	Requires2FA          bool        `json:"requires2FA,omitempty"`
	RequiresVerification bool        `json:"requiresVerification,omitempty"`
	Data                 *Invitation `json:"data,omitempty"`
}

func (c *HTTPAPIClient) do(ctx context.Context, method, path, bearer string, body any) (*envelope, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to encode request body")
		}
	}

	if c.Debug && body != nil {
		c.logger.Debug("%s %s payload: %s", method, path, print.MaybePrettyJSON(body))
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, &buf)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to build request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	res, err := c.client.Do(req)
	if err != nil {
		c.logger.Debug("request failed: %s %s: %v", method, path, err)
		return nil, ErrBackendUnavailable.WithMetadata(map[string]any{
			"path":  path,
			"cause": err.Error(),
		})
	}
	defer res.Body.Close()

	switch {
	case res.StatusCode == http.StatusUnauthorized || res.StatusCode == http.StatusForbidden:
		return nil, ErrAuthRejected.WithMetadata(map[string]any{
			"path":   path,
			"status": res.StatusCode,
		})
	case res.StatusCode < 200 || res.StatusCode > 299:
		return nil, ErrBackendUnavailable.WithMetadata(map[string]any{
			"path":   path,
			"status": res.StatusCode,
		})
	}

	env := new(envelope)
	if err := json.NewDecoder(res.Body).Decode(env); err != nil {
		return nil, ErrMalformedResponse.WithMetadata(map[string]any{
			"path":  path,
			"cause": err.Error(),
		})
	}
	return env, nil
}

// Login resolves into exactly one of: an established session, a pending 2FA
// challenge, a pending email verification, or a field-scoped rejection.
func (c *HTTPAPIClient) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	env, err := c.do(ctx, http.MethodPost, "/auth/login", "", map[string]string{
		"email":    email,
		"password": password,
	})
	if err != nil {
		return nil, err
	}
	return loginResultFromEnvelope(env)
}

// Verify2FA trades a pending user id plus code for a full session.
func (c *HTTPAPIClient) Verify2FA(ctx context.Context, userID, code string) (*LoginResult, error) {
	env, err := c.do(ctx, http.MethodPost, "/auth/verify-2fa", "", map[string]string{
		"userId": userID,
		"code":   code,
	})
	if err != nil {
		return nil, err
	}
	if !env.Success {
		return nil, BusinessRejection(env.Error)
	}
	if env.Token == "" || env.User == nil {
		return nil, ErrMalformedResponse.WithMetadata(map[string]any{"path": "/auth/verify-2fa"})
	}
	return &LoginResult{Token: env.Token, User: env.User}, nil
}

func loginResultFromEnvelope(env *envelope) (*LoginResult, error) {
	switch {
	case env.Requires2FA:
		return &LoginResult{Requires2FA: true, PendingUserID: env.UserID}, nil
	case env.RequiresVerification:
		return &LoginResult{RequiresVerification: true, PendingUserID: env.UserID}, nil
	case env.Success:
		if env.Token == "" || env.User == nil {
			return nil, ErrMalformedResponse.WithMetadata(map[string]any{"path": "/auth/login"})
		}
		return &LoginResult{Token: env.Token, User: env.User}, nil
	default:
		if env.ErrorType == "email" || env.ErrorType == "password" {
			return nil, FieldRejection(env.ErrorType, env.Error)
		}
		return nil, BusinessRejection(env.Error)
	}
}

func (c *HTTPAPIClient) Signup(ctx context.Context, req SignupRequest) (*SignupResult, error) {
	env, err := c.do(ctx, http.MethodPost, "/auth/signup", "", req)
	if err != nil {
		return nil, err
	}
	if !env.Success {
		return nil, BusinessRejection(env.Error)
	}
	if env.User == nil || env.User.ID == "" {
		return nil, ErrMalformedResponse.WithMetadata(map[string]any{"path": "/auth/signup"})
	}
	return &SignupResult{UserID: env.User.ID, Role: env.User.Role}, nil
}

func (c *HTTPAPIClient) VerifyEmail(ctx context.Context, userID, code string) error {
	env, err := c.do(ctx, http.MethodPost, "/auth/verify-email", "", map[string]string{
		"userId": userID,
		"code":   code,
	})
	if err != nil {
		return err
	}
	if !env.Success {
		return BusinessRejection(env.Error)
	}
	return nil
}

// SendVerificationOTP re-requests a code for the given email. The backend
// may answer with a different user id than the one the flow is tracking.
func (c *HTTPAPIClient) SendVerificationOTP(ctx context.Context, email string) (string, error) {
	env, err := c.do(ctx, http.MethodPost, "/auth/send-verification-otp", "", map[string]string{
		"email": email,
	})
	if err != nil {
		return "", err
	}
	if !env.Success {
		return "", BusinessRejection(env.Error)
	}
	return env.UserID, nil
}

func (c *HTTPAPIClient) ForgotPassword(ctx context.Context, email string, channel OTPChannel) (*ForgotPasswordResult, error) {
	env, err := c.do(ctx, http.MethodPost, "/auth/forgot-password", "", map[string]string{
		"email":   email,
		"channel": channel,
	})
	if err != nil {
		return nil, err
	}
	if !env.Success {
		return nil, BusinessRejection(env.Error)
	}
	out := &ForgotPasswordResult{UserID: env.UserID, AccountEmail: env.AccountEmail}
	if out.AccountEmail == "" {
		out.AccountEmail = email
	}
	return out, nil
}

func (c *HTTPAPIClient) ResetPassword(ctx context.Context, userID, code, newPassword string) error {
	env, err := c.do(ctx, http.MethodPost, "/auth/reset-password", "", map[string]string{
		"userId":      userID,
		"code":        code,
		"newPassword": newPassword,
	})
	if err != nil {
		return err
	}
	if !env.Success {
		return BusinessRejection(env.Error)
	}
	return nil
}

func (c *HTTPAPIClient) VerifyInvitation(ctx context.Context, token string) (*Invitation, error) {
	env, err := c.do(ctx, http.MethodPost, "/auth/verify-invitation", "", map[string]string{
		"token": token,
	})
	if err != nil {
		return nil, err
	}
	if !env.Success {
		return nil, BusinessRejection(env.Error)
	}
	if env.Data == nil || env.Data.Email == "" {
		return nil, ErrMalformedResponse.WithMetadata(map[string]any{"path": "/auth/verify-invitation"})
	}
	return env.Data, nil
}

// WhoAmI validates the bearer token and returns the authoritative user. A
// success=false payload counts as an explicit rejection, same as 401/403.
func (c *HTTPAPIClient) WhoAmI(ctx context.Context, token string) (*User, error) {
	env, err := c.do(ctx, http.MethodGet, "/auth/me", token, nil)
	if err != nil {
		return nil, err
	}
	if !env.Success {
		return nil, ErrAuthRejected.WithMetadata(map[string]any{
			"path":  "/auth/me",
			"cause": env.Error,
		})
	}
	if env.User == nil {
		return nil, ErrMalformedResponse.WithMetadata(map[string]any{"path": "/auth/me"})
	}
	return env.User, nil
}

func (c *HTTPAPIClient) String() string {
	return fmt.Sprintf("authflow client base=%s", c.baseURL)
}
