package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/learnsphere/platform-client/internal/core/domain"
)

// envelope is the platform's standard response shape for the auth endpoints.
type envelope struct {
	Success bool         `json:"success"`
	Message string       `json:"message,omitempty"`
	User    *domain.User `json:"user,omitempty"`
}

type loginRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	RememberMe bool   `json:"rememberMe"`
}

// Login implements ports.AuthAPI. The server's session cookies land in the
// jar as a side effect of the exchange.
func (c *Client) Login(ctx context.Context, email, password string, rememberMe bool) (*domain.User, error) {
	var env envelope
	err := c.PostJSON(ctx, loginPath, loginRequest{Email: email, Password: password, RememberMe: rememberMe}, &env)
	if err != nil {
		return nil, err
	}
	if !env.Success || env.User == nil {
		return nil, &domain.APIError{StatusCode: http.StatusUnauthorized, Message: env.Message}
	}
	return env.User, nil
}

// Logout implements ports.AuthAPI. Local cookies for the platform are dropped
// regardless of the server's answer.
func (c *Client) Logout(ctx context.Context) error {
	err := c.PostJSON(ctx, logoutPath, struct{}{}, nil)
	c.jar.Reset()
	return err
}

// RefreshToken implements ports.AuthAPI.
func (c *Client) RefreshToken(ctx context.Context) error {
	var env envelope
	if err := c.PostJSON(ctx, refreshPath, struct{}{}, &env); err != nil {
		return err
	}
	if !env.Success {
		return fmt.Errorf("refresh rejected: %w", domain.ErrUnauthorized)
	}
	return nil
}

// CurrentUser implements ports.AuthAPI. A well-formed success=false answer is
// an explicit rejection, not a transport fault.
func (c *Client) CurrentUser(ctx context.Context) (*domain.User, error) {
	var env envelope
	if err := c.GetJSON(ctx, currentUserPath, &env); err != nil {
		return nil, err
	}
	if !env.Success || env.User == nil {
		return nil, fmt.Errorf("verify rejected: %w", domain.ErrUnauthorized)
	}
	return env.User, nil
}
