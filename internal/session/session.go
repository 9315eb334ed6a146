// Package session holds the signed-in user's auth state as an explicit
// object with a load/save/clear lifecycle. Nothing else in the program
// keeps auth state; commands load a session, pass it down, and tear it
// down on sign-out.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/synapticlabs/synaptic/internal/supabase"
)

// Session is the persisted auth state for one signed-in user.
type Session struct {
	UserID       string    `json:"user_id"`
	Email        string    `json:"email"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Expired reports whether the access token needs refreshing. A short
// skew keeps a token from expiring mid-request.
func (s *Session) Expired() bool {
	return time.Now().After(s.ExpiresAt.Add(-30 * time.Second))
}

// FromAuth converts a GoTrue grant into a persistable session.
func FromAuth(a *supabase.AuthSession) *Session {
	return &Session{
		UserID:       a.User.ID,
		Email:        a.User.Email,
		AccessToken:  a.AccessToken,
		RefreshToken: a.RefreshToken,
		ExpiresAt:    a.ExpiresAt,
	}
}

// ErrNotSignedIn is returned when no session file exists.
var ErrNotSignedIn = fmt.Errorf("not signed in")

// Store persists the session file.
type Store struct {
	path string
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

func (st *Store) Load() (*Session, error) {
	data, err := os.ReadFile(st.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotSignedIn
		}
		return nil, fmt.Errorf("read session: %w", err)
	}
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse session: %w", err)
	}
	if s.AccessToken == "" {
		return nil, ErrNotSignedIn
	}
	return &s, nil
}

func (st *Store) Save(s *Session) error {
	if err := os.MkdirAll(filepath.Dir(st.path), 0755); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	// Tokens: keep the file private.
	return os.WriteFile(st.path, data, 0600)
}

func (st *Store) Clear() error {
	if err := os.Remove(st.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove session: %w", err)
	}
	return nil
}

// Manager layers token refresh over the store.
type Manager struct {
	store *Store
	auth  *supabase.Client
}

func NewManager(store *Store, auth *supabase.Client) *Manager {
	return &Manager{store: store, auth: auth}
}

// Current returns a live session, refreshing and re-persisting it when
// the access token has expired.
func (m *Manager) Current(ctx context.Context) (*Session, error) {
	s, err := m.store.Load()
	if err != nil {
		return nil, err
	}
	if !s.Expired() {
		return s, nil
	}

	refreshed, err := m.auth.RefreshSession(ctx, s.RefreshToken)
	if err != nil {
		return nil, fmt.Errorf("refresh session: %w", err)
	}
	next := FromAuth(refreshed)
	if next.Email == "" {
		next.Email = s.Email
	}
	if next.UserID == "" {
		next.UserID = s.UserID
	}
	if err := m.store.Save(next); err != nil {
		return nil, err
	}
	return next, nil
}

// SignOut revokes the session remotely and clears the local file. The
// local file is cleared even when revocation fails: a stale server-side
// token beats a client stuck signed in.
func (m *Manager) SignOut(ctx context.Context) error {
	s, err := m.store.Load()
	if err != nil {
		if err == ErrNotSignedIn {
			return nil
		}
		return err
	}
	revokeErr := m.auth.SignOut(ctx, s.AccessToken)
	if err := m.store.Clear(); err != nil {
		return err
	}
	return revokeErr
}
