package supabase

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// AuthSession is a GoTrue token grant.
type AuthSession struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresIn    int       `json:"expires_in"`
	ExpiresAt    time.Time `json:"-"`
	User         AuthUser  `json:"user"`
}

type AuthUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type tokenResponse struct {
	AccessToken  string   `json:"access_token"`
	RefreshToken string   `json:"refresh_token"`
	ExpiresIn    int      `json:"expires_in"`
	User         AuthUser `json:"user"`
}

func (r tokenResponse) session() *AuthSession {
	return &AuthSession{
		AccessToken:  r.AccessToken,
		RefreshToken: r.RefreshToken,
		ExpiresIn:    r.ExpiresIn,
		ExpiresAt:    time.Now().Add(time.Duration(r.ExpiresIn) * time.Second),
		User:         r.User,
	}
}

// SignIn exchanges email/password for a session.
func (c *Client) SignIn(ctx context.Context, email, password string) (*AuthSession, error) {
	var resp tokenResponse
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/auth/v1/token?grant_type=password", "", nil, body, &resp); err != nil {
		return nil, err
	}
	return resp.session(), nil
}

// SignUp registers a new account. The service sends a confirmation code
// to the address; the account is unusable until VerifyOTP succeeds.
func (c *Client) SignUp(ctx context.Context, email, password, name string) error {
	body := map[string]any{
		"email":    email,
		"password": password,
		"data":     map[string]string{"name": name},
	}
	return c.do(ctx, http.MethodPost, "/auth/v1/signup", "", nil, body, nil)
}

// VerifyOTP confirms a signup with the emailed code and returns the
// resulting session.
func (c *Client) VerifyOTP(ctx context.Context, email, code string) (*AuthSession, error) {
	var resp tokenResponse
	body := map[string]string{"type": "signup", "email": email, "token": code}
	if err := c.do(ctx, http.MethodPost, "/auth/v1/verify", "", nil, body, &resp); err != nil {
		return nil, err
	}
	if resp.AccessToken == "" {
		return nil, fmt.Errorf("verify succeeded but no session was returned")
	}
	return resp.session(), nil
}

// ResendOTP asks the service to email a fresh signup code.
func (c *Client) ResendOTP(ctx context.Context, email string) error {
	body := map[string]string{"type": "signup", "email": email}
	return c.do(ctx, http.MethodPost, "/auth/v1/resend", "", nil, body, nil)
}

// RefreshSession trades a refresh token for a new session.
func (c *Client) RefreshSession(ctx context.Context, refreshToken string) (*AuthSession, error) {
	var resp tokenResponse
	body := map[string]string{"refresh_token": refreshToken}
	if err := c.do(ctx, http.MethodPost, "/auth/v1/token?grant_type=refresh_token", "", nil, body, &resp); err != nil {
		return nil, err
	}
	return resp.session(), nil
}

// SignOut revokes the session server-side.
func (c *Client) SignOut(ctx context.Context, accessToken string) error {
	return c.do(ctx, http.MethodPost, "/auth/v1/logout", accessToken, nil, nil, nil)
}

// AuthUserPatch updates the authenticated user's credentials. Email
// changes require confirmation on the new address.
type AuthUserPatch struct {
	Email    string `json:"email,omitempty"`
	Password string `json:"password,omitempty"`
}

func (c *Client) UpdateAuthUser(ctx context.Context, accessToken string, patch AuthUserPatch) error {
	return c.do(ctx, http.MethodPut, "/auth/v1/user", accessToken, nil, patch, nil)
}
