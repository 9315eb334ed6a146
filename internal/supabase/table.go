package supabase

import (
	"context"
	"net/http"
	"net/url"
)

// UserRow is the application's row in the users table. The email lives
// in the auth service, not here.
type UserRow struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url"`
	CreatedAt string `json:"created_at,omitempty"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

// UserRowPatch is a partial users-table update. AvatarURL uses a double
// pointer so callers can distinguish "leave alone" from "set to null".
type UserRowPatch struct {
	Name      *string `json:"name,omitempty"`
	AvatarURL **string `json:"avatar_url,omitempty"`
}

// SelectUser fetches a single row by id.
func (c *Client) SelectUser(ctx context.Context, accessToken, userID string) (*UserRow, error) {
	path := "/rest/v1/users?select=*&id=eq." + url.QueryEscape(userID)
	headers := map[string]string{
		// Ask PostgREST for a bare object instead of a one-element array.
		"Accept": "application/vnd.pgrst.object+json",
	}
	var row UserRow
	if err := c.do(ctx, http.MethodGet, path, accessToken, headers, nil, &row); err != nil {
		return nil, err
	}
	return &row, nil
}

// UpdateUserRow applies a partial update to the user's row.
func (c *Client) UpdateUserRow(ctx context.Context, accessToken, userID string, patch UserRowPatch) error {
	path := "/rest/v1/users?id=eq." + url.QueryEscape(userID)
	headers := map[string]string{"Prefer": "return=minimal"}
	return c.do(ctx, http.MethodPatch, path, accessToken, headers, patch, nil)
}
