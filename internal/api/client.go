package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// APIError is a non-2xx backend response. Detail carries the backend's
// structured {"detail": ...} message when present, the HTTP status text
// otherwise.
type APIError struct {
	Status int
	Detail string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error (%d): %s", e.Status, e.Detail)
}

// Client wraps the assistant backend's REST API. It performs no retries
// and holds no state beyond the base URL; every failure is terminal for
// that call.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: http.DefaultClient,
	}
}

// SetHTTPClient overrides the transport (for testing).
func (c *Client) SetHTTPClient(hc *http.Client) {
	c.httpClient = hc
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
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

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail := resp.Status
		var errBody struct {
			Detail string `json:"detail"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&errBody); err == nil && errBody.Detail != "" {
			detail = errBody.Detail
		}
		return &APIError{Status: resp.StatusCode, Detail: detail}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Ask sends a chat message. An empty ConversationID starts a new
// conversation; the response carries the id (and title) to continue it.
func (c *Client) Ask(ctx context.Context, req AskRequest) (*AskResponse, error) {
	var resp AskResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/chat", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Conversations lists all conversations owned by a user.
func (c *Client) Conversations(ctx context.Context, userID string) ([]Conversation, error) {
	var out []Conversation
	if err := c.do(ctx, http.MethodGet, "/api/v1/conversations/"+url.PathEscape(userID), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Messages returns the transcript of one conversation.
func (c *Client) Messages(ctx context.Context, conversationID string) ([]Message, error) {
	var out []Message
	path := "/api/v1/conversations/" + url.PathEscape(conversationID) + "/messages"
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Conversation fetches a single conversation by id.
func (c *Client) Conversation(ctx context.Context, conversationID string) (*Conversation, error) {
	var out Conversation
	if err := c.do(ctx, http.MethodGet, "/api/v1/conversation/"+url.PathEscape(conversationID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateConversation applies a partial update. The backend returns no
// body on success.
func (c *Client) UpdateConversation(ctx context.Context, conversationID string, patch ConversationPatch) error {
	return c.do(ctx, http.MethodPatch, "/api/v1/conversations/"+url.PathEscape(conversationID), patch, nil)
}

func (c *Client) DeleteConversation(ctx context.Context, conversationID string) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/conversations/"+url.PathEscape(conversationID), nil, nil)
}

// Memories returns the user's memory facts, optionally filtered by
// category ("personal", "preference", "project", ...).
func (c *Client) Memories(ctx context.Context, userID, category string) ([]MemoryFact, error) {
	path := "/api/v1/memory/" + url.PathEscape(userID)
	if category != "" {
		path += "?category=" + url.QueryEscape(category)
	}
	var out []MemoryFact
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteMemory removes one fact. The backend requires the owning user id
// as a query parameter.
func (c *Client) DeleteMemory(ctx context.Context, factID, userID string) error {
	path := "/api/v1/memory/" + url.PathEscape(factID) + "?user_id=" + url.QueryEscape(userID)
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}
