package api

import (
	"context"
	"net/http"

	"github.com/courseflow/courseflow/internal/models"
)

// LoginRequest is the payload for the login endpoint.
type LoginRequest struct {
	Email    string            `json:"email"`
	Password string            `json:"password"`
	Device   models.DeviceInfo `json:"device"`
	// Force terminates a conflicting active session on the server. Set it
	// only after a first attempt returned ErrActiveSession.
	Force bool `json:"force,omitempty"`
}

// LoginResult is the decoded login response.
type LoginResult struct {
	Token  string `json:"token"`
	UserID string `json:"userId"`
	Role   string `json:"role"`
}

// Login authenticates and returns the issued session. A conflicting active
// session surfaces as ErrActiveSession so the caller can retry with Force.
func (c *Client) Login(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	var res LoginResult
	if err := c.do(ctx, http.MethodPost, "/auth/login", req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// RegisterRequest is the payload for account creation.
type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register creates an account.
func (c *Client) Register(ctx context.Context, req RegisterRequest) error {
	return c.do(ctx, http.MethodPost, "/auth/register", req, nil)
}

// Logout notifies the server that the session ends. Callers treat failures
// as best-effort; local state is cleared regardless.
func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/auth/logout", nil, nil)
}

// Refresh exchanges the current token for a fresh one.
func (c *Client) Refresh(ctx context.Context) (*LoginResult, error) {
	var res LoginResult
	if err := c.do(ctx, http.MethodPost, "/auth/refresh", nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// ValidateSession asks the server whether the current session is still
// valid, attaching a fresh device fingerprint. ErrUnauthorized means the
// session is gone; transport errors mean the answer is unknown.
func (c *Client) ValidateSession(ctx context.Context, device models.DeviceInfo) error {
	payload := map[string]models.DeviceInfo{"device": device}
	return c.do(ctx, http.MethodPost, "/auth/validate-session", payload, nil)
}

// ForgotPassword requests a password reset email.
func (c *Client) ForgotPassword(ctx context.Context, email string) error {
	return c.do(ctx, http.MethodPost, "/auth/forgot-password", map[string]string{"email": email}, nil)
}

// VerifyResetToken checks a reset token before showing the reset form.
func (c *Client) VerifyResetToken(ctx context.Context, token string) error {
	return c.do(ctx, http.MethodPost, "/auth/verify-reset-token", map[string]string{"token": token}, nil)
}

// ResetPassword sets a new password using a verified reset token.
func (c *Client) ResetPassword(ctx context.Context, token, password string) error {
	payload := map[string]string{"token": token, "password": password}
	return c.do(ctx, http.MethodPost, "/auth/reset-password", payload, nil)
}
