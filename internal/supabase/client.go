// Package supabase is a thin binding to the hosted auth/storage service:
// GoTrue password and OTP auth, PostgREST row access on the users table,
// and object storage for the avatars bucket. The service is consumed,
// never reimplemented; this package only shapes requests and normalizes
// errors.
package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// ServiceError is a non-2xx managed-service response.
type ServiceError struct {
	Status  int
	Message string
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("supabase error (%d): %s", e.Status, e.Message)
}

// Client talks to one Supabase project. The anon key authenticates every
// request; per-user calls additionally carry the session's access token.
type Client struct {
	baseURL    string
	anonKey    string
	httpClient *http.Client
}

func NewClient(baseURL, anonKey string) (*Client, error) {
	if baseURL == "" || anonKey == "" {
		return nil, fmt.Errorf("supabase url and anon key are required")
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		anonKey:    anonKey,
		httpClient: http.DefaultClient,
	}, nil
}

// SetHTTPClient overrides the transport (for testing).
func (c *Client) SetHTTPClient(hc *http.Client) {
	c.httpClient = hc
}

// do issues a JSON request. token may be empty, in which case the anon
// key doubles as the bearer. out may be nil for no-body responses.
func (c *Client) do(ctx context.Context, method, path, token string, headers map[string]string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.setAuth(req, token)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeError(resp)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) setAuth(req *http.Request, token string) {
	req.Header.Set("apikey", c.anonKey)
	if token == "" {
		token = c.anonKey
	}
	req.Header.Set("Authorization", "Bearer "+token)
}

// decodeError digs the human-readable message out of the service's
// error body. GoTrue, PostgREST and storage each use different field
// names, so try them all before falling back to the status text.
func decodeError(resp *http.Response) error {
	msg := resp.Status

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err == nil && len(data) > 0 {
		var body struct {
			Message          string `json:"message"`
			Msg              string `json:"msg"`
			Error            string `json:"error"`
			ErrorDescription string `json:"error_description"`
		}
		if json.Unmarshal(data, &body) == nil {
			switch {
			case body.ErrorDescription != "":
				msg = body.ErrorDescription
			case body.Msg != "":
				msg = body.Msg
			case body.Message != "":
				msg = body.Message
			case body.Error != "":
				msg = body.Error
			}
		}
	}

	return &ServiceError{Status: resp.StatusCode, Message: msg}
}
