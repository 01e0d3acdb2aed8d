// Package auth implements the Subsonic (username, salt, token) scheme
// and a compact binary wire form for trusted clients, grounded on the
// teacher's internal/auth Service{db} structural idiom.
package auth

import (
	"context"
	"crypto/subtle"

	"github.com/nghego/nghego/internal/apperr"
	"github.com/nghego/nghego/internal/models"
)

// UserStore is the minimal persistence surface auth needs; implemented
// by internal/library or a thin wrapper over *database.DB.
type UserStore interface {
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
}

type Service struct {
	users        UserStore
	serverSecret string
}

func New(users UserStore, serverSecret string) *Service {
	return &Service{users: users, serverSecret: serverSecret}
}

// Authenticate verifies the Subsonic (username, salt, token) triple
// against the stored, reversibly-encrypted password.
func (s *Service) Authenticate(ctx context.Context, username, salt, token string) (*models.User, error) {
	user, err := s.users.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUnauthenticated, "invalid credentials", err)
	}

	password, err := DecryptPassword(s.serverSecret, user.PasswordEnc)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "decrypt stored password", err)
	}

	expected := SubsonicToken(password, salt)
	if subtle.ConstantTimeCompare([]byte(expected), []byte(token)) != 1 {
		return nil, apperr.New(apperr.KindUnauthenticated, "invalid credentials")
	}
	return user, nil
}

// Role is one of the fixed authorization flags a Subsonic endpoint may
// require.
type Role int

const (
	RoleNone Role = iota
	RoleStream
	RoleDownload
	RoleShare
	RoleAdmin
)

// Authorize checks user carries the role an endpoint declares as its
// minimum requirement.
func Authorize(user *models.User, role Role) error {
	switch role {
	case RoleNone:
		return nil
	case RoleStream:
		if !user.CanStream {
			return apperr.New(apperr.KindForbidden, "streaming not permitted for this user")
		}
	case RoleDownload:
		if !user.CanDownload {
			return apperr.New(apperr.KindForbidden, "download not permitted for this user")
		}
	case RoleShare:
		if !user.CanShare {
			return apperr.New(apperr.KindForbidden, "sharing not permitted for this user")
		}
	case RoleAdmin:
		if !user.IsAdmin {
			return apperr.New(apperr.KindForbidden, "admin privilege required")
		}
	}
	return nil
}
