// Package profile implements the account-profile operations on top of
// the managed service: the users-table row, credential updates, and the
// avatar object in storage.
package profile

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/synapticlabs/synaptic/internal/session"
	"github.com/synapticlabs/synaptic/internal/supabase"
)

const (
	avatarBucket  = "avatars"
	maxAvatarSize = 2 * 1024 * 1024
)

// allowedAvatarTypes maps file extensions to the MIME type sent on
// upload. Anything else is rejected before any network call.
var allowedAvatarTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
}

// Profile joins the users-table row with the auth email.
type Profile struct {
	ID        string
	Name      string
	Email     string
	AvatarURL string
}

type Service struct {
	sb *supabase.Client
}

func NewService(sb *supabase.Client) *Service {
	return &Service{sb: sb}
}

// Get fetches the signed-in user's profile row.
func (s *Service) Get(ctx context.Context, sess *session.Session) (*Profile, error) {
	row, err := s.sb.SelectUser(ctx, sess.AccessToken, sess.UserID)
	if err != nil {
		return nil, fmt.Errorf("fetch profile: %w", err)
	}
	return &Profile{
		ID:        row.ID,
		Name:      row.Name,
		Email:     sess.Email,
		AvatarURL: row.AvatarURL,
	}, nil
}

// UpdateName changes the display name on the users row.
func (s *Service) UpdateName(ctx context.Context, sess *session.Session, name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("name must not be empty")
	}
	patch := supabase.UserRowPatch{Name: &name}
	if err := s.sb.UpdateUserRow(ctx, sess.AccessToken, sess.UserID, patch); err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	return nil
}

// UpdateEmail asks the auth service to change the address; the service
// sends a confirmation to the new one.
func (s *Service) UpdateEmail(ctx context.Context, sess *session.Session, email string) error {
	if !strings.Contains(email, "@") {
		return fmt.Errorf("invalid email address")
	}
	return s.sb.UpdateAuthUser(ctx, sess.AccessToken, supabase.AuthUserPatch{Email: email})
}

// UpdatePassword changes the account password.
func (s *Service) UpdatePassword(ctx context.Context, sess *session.Session, password string) error {
	if len(password) < 6 {
		return fmt.Errorf("password must be at least 6 characters")
	}
	return s.sb.UpdateAuthUser(ctx, sess.AccessToken, supabase.AuthUserPatch{Password: password})
}

// UploadAvatar validates the image, replaces whatever is stored under
// the user's prefix, uploads to {userID}/avatar.{ext}, and writes the
// public URL back to the profile row. Returns the public URL.
func (s *Service) UploadAvatar(ctx context.Context, sess *session.Session, filename string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("avatar file is empty")
	}
	if len(data) > maxAvatarSize {
		return "", fmt.Errorf("avatar must be smaller than 2MB")
	}
	ext := strings.ToLower(path.Ext(filename))
	contentType, ok := allowedAvatarTypes[ext]
	if !ok {
		return "", fmt.Errorf("avatar must be a JPEG, PNG, or WebP image")
	}

	// Drop any previous avatar objects first so stale extensions don't
	// linger next to the new file.
	existing, err := s.sb.ListObjects(ctx, sess.AccessToken, avatarBucket, sess.UserID)
	if err != nil {
		return "", fmt.Errorf("list existing avatars: %w", err)
	}
	if len(existing) > 0 {
		paths := make([]string, 0, len(existing))
		for _, obj := range existing {
			paths = append(paths, sess.UserID+"/"+obj.Name)
		}
		if err := s.sb.RemoveObjects(ctx, sess.AccessToken, avatarBucket, paths); err != nil {
			return "", fmt.Errorf("remove old avatar: %w", err)
		}
	}

	objectPath := sess.UserID + "/avatar" + ext
	if err := s.sb.UploadObject(ctx, sess.AccessToken, avatarBucket, objectPath, data, contentType, true); err != nil {
		return "", fmt.Errorf("upload avatar: %w", err)
	}

	url := s.sb.PublicURL(avatarBucket, objectPath)
	urlPtr := &url
	if err := s.sb.UpdateUserRow(ctx, sess.AccessToken, sess.UserID, supabase.UserRowPatch{AvatarURL: &urlPtr}); err != nil {
		return "", fmt.Errorf("save avatar url: %w", err)
	}
	return url, nil
}

// RemoveAvatar deletes every object under the user's prefix and nulls
// the profile's avatar URL.
func (s *Service) RemoveAvatar(ctx context.Context, sess *session.Session) error {
	files, err := s.sb.ListObjects(ctx, sess.AccessToken, avatarBucket, sess.UserID)
	if err != nil {
		return fmt.Errorf("list avatars: %w", err)
	}
	if len(files) > 0 {
		paths := make([]string, 0, len(files))
		for _, obj := range files {
			paths = append(paths, sess.UserID+"/"+obj.Name)
		}
		if err := s.sb.RemoveObjects(ctx, sess.AccessToken, avatarBucket, paths); err != nil {
			return fmt.Errorf("remove avatar: %w", err)
		}
	}

	var null *string
	if err := s.sb.UpdateUserRow(ctx, sess.AccessToken, sess.UserID, supabase.UserRowPatch{AvatarURL: &null}); err != nil {
		return fmt.Errorf("clear avatar url: %w", err)
	}
	return nil
}
