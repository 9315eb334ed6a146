package supabase

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
)

// StorageObject is one entry from a bucket listing.
type StorageObject struct {
	Name      string `json:"name"`
	ID        string `json:"id"`
	UpdatedAt string `json:"updated_at"`
}

// ListObjects lists the objects under prefix in a bucket.
func (c *Client) ListObjects(ctx context.Context, accessToken, bucket, prefix string) ([]StorageObject, error) {
	body := map[string]any{"prefix": prefix, "limit": 100, "offset": 0}
	var out []StorageObject
	path := "/storage/v1/object/list/" + bucket
	if err := c.do(ctx, http.MethodPost, path, accessToken, nil, body, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// UploadObject writes data to bucket/objectPath. Uploads are raw bodies,
// not JSON, so this bypasses the shared do helper.
func (c *Client) UploadObject(ctx context.Context, accessToken, bucket, objectPath string, data []byte, contentType string, upsert bool) error {
	url := c.baseURL + "/storage/v1/object/" + bucket + "/" + objectPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("create upload request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Cache-Control", "max-age=3600")
	if upsert {
		req.Header.Set("x-upsert", "true")
	}
	c.setAuth(req, accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("upload object: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeError(resp)
	}
	return nil
}

// RemoveObjects deletes the named objects from a bucket.
func (c *Client) RemoveObjects(ctx context.Context, accessToken, bucket string, paths []string) error {
	body := map[string]any{"prefixes": paths}
	return c.do(ctx, http.MethodDelete, "/storage/v1/object/"+bucket, accessToken, nil, body, nil)
}

// PublicURL returns the unauthenticated URL for an object in a public
// bucket. No network call is made; existence is not checked.
func (c *Client) PublicURL(bucket, objectPath string) string {
	return c.baseURL + "/storage/v1/object/public/" + bucket + "/" + objectPath
}
