package supabase

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient(srv.URL, "anon-key")
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c, srv
}

func TestNewClient_RequiresConfig(t *testing.T) {
	if _, err := NewClient("", "key"); err == nil {
		t.Error("expected error for empty url")
	}
	if _, err := NewClient("http://x", ""); err == nil {
		t.Error("expected error for empty key")
	}
}

func TestSignIn(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/v1/token" || r.URL.Query().Get("grant_type") != "password" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL)
		}
		if got := r.Header.Get("apikey"); got != "anon-key" {
			t.Errorf("apikey = %q, want anon-key", got)
		}
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["email"] != "ada@example.com" {
			t.Errorf("email = %q", body["email"])
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "at",
			"refresh_token": "rt",
			"expires_in":    3600,
			"user":          map[string]string{"id": "u1", "email": "ada@example.com"},
		})
	})

	sess, err := c.SignIn(context.Background(), "ada@example.com", "hunter22")
	if err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	if sess.AccessToken != "at" || sess.RefreshToken != "rt" || sess.User.ID != "u1" {
		t.Errorf("unexpected session: %+v", sess)
	}
	if sess.ExpiresAt.IsZero() {
		t.Error("ExpiresAt not set")
	}
}

func TestSignIn_ErrorBody(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid_grant","error_description":"Invalid login credentials"}`))
	})

	_, err := c.SignIn(context.Background(), "x@example.com", "nope")
	if err == nil {
		t.Fatal("expected error")
	}
	var serr *ServiceError
	if !errors.As(err, &serr) {
		t.Fatalf("error type = %T, want *ServiceError", err)
	}
	if serr.Status != 400 || serr.Message != "Invalid login credentials" {
		t.Errorf("got %d %q", serr.Status, serr.Message)
	}
}

func TestVerifyOTP(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/v1/verify" {
			t.Errorf("path = %s", r.URL.Path)
		}
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["type"] != "signup" || body["token"] != "123456" {
			t.Errorf("body = %v", body)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "at", "refresh_token": "rt", "expires_in": 3600,
			"user": map[string]string{"id": "u1"},
		})
	})

	sess, err := c.VerifyOTP(context.Background(), "ada@example.com", "123456")
	if err != nil {
		t.Fatalf("VerifyOTP: %v", err)
	}
	if sess.User.ID != "u1" {
		t.Errorf("user id = %q", sess.User.ID)
	}
}

func TestSelectUser(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rest/v1/users" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("id"); got != "eq.u1" {
			t.Errorf("id filter = %q", got)
		}
		if got := r.Header.Get("Accept"); got != "application/vnd.pgrst.object+json" {
			t.Errorf("accept = %q", got)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer user-token" {
			t.Errorf("authorization = %q", got)
		}
		_ = json.NewEncoder(w).Encode(UserRow{ID: "u1", Name: "Ada"})
	})

	row, err := c.SelectUser(context.Background(), "user-token", "u1")
	if err != nil {
		t.Fatalf("SelectUser: %v", err)
	}
	if row.Name != "Ada" {
		t.Errorf("name = %q", row.Name)
	}
}

func TestUpdateUserRow_NullsAvatar(t *testing.T) {
	var got map[string]any
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch {
			t.Errorf("method = %s", r.Method)
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusNoContent)
	})

	var null *string
	err := c.UpdateUserRow(context.Background(), "tok", "u1", UserRowPatch{AvatarURL: &null})
	if err != nil {
		t.Fatalf("UpdateUserRow: %v", err)
	}
	v, ok := got["avatar_url"]
	if !ok || v != nil {
		t.Errorf("avatar_url = %v (present=%v), want explicit null", v, ok)
	}
	if _, ok := got["name"]; ok {
		t.Error("name should be omitted from partial patch")
	}
}

func TestStorageUploadAndPublicURL(t *testing.T) {
	c, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/storage/v1/object/avatars/u1/avatar.png" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("x-upsert"); got != "true" {
			t.Errorf("x-upsert = %q", got)
		}
		if got := r.Header.Get("Content-Type"); got != "image/png" {
			t.Errorf("content-type = %q", got)
		}
		data, _ := io.ReadAll(r.Body)
		if string(data) != "png-bytes" {
			t.Errorf("body = %q", data)
		}
		w.WriteHeader(http.StatusOK)
	})

	err := c.UploadObject(context.Background(), "tok", "avatars", "u1/avatar.png", []byte("png-bytes"), "image/png", true)
	if err != nil {
		t.Fatalf("UploadObject: %v", err)
	}

	want := srv.URL + "/storage/v1/object/public/avatars/u1/avatar.png"
	if got := c.PublicURL("avatars", "u1/avatar.png"); got != want {
		t.Errorf("PublicURL = %q, want %q", got, want)
	}
}

func TestRemoveObjects(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete || r.URL.Path != "/storage/v1/object/avatars" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		var body struct {
			Prefixes []string `json:"prefixes"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		if len(body.Prefixes) != 1 || body.Prefixes[0] != "u1/avatar.png" {
			t.Errorf("prefixes = %v", body.Prefixes)
		}
		w.WriteHeader(http.StatusOK)
	})

	if err := c.RemoveObjects(context.Background(), "tok", "avatars", []string{"u1/avatar.png"}); err != nil {
		t.Fatalf("RemoveObjects: %v", err)
	}
}
