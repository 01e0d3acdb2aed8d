package tests

import (
	"context"
	"testing"

	"github.com/nghego/nghego/internal/apperr"
	"github.com/nghego/nghego/internal/auth"
	"github.com/nghego/nghego/internal/models"
)

type fakeUserStore struct {
	byUsername map[string]*models.User
}

func (f *fakeUserStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	u, ok := f.byUsername[username]
	if !ok {
		return nil, apperr.New(apperr.KindNotFound, "no such user")
	}
	return u, nil
}

func newTestUser(t *testing.T, serverSecret, username, password string) *models.User {
	t.Helper()
	enc, err := auth.EncryptPassword(serverSecret, password)
	if err != nil {
		t.Fatalf("encrypt password: %v", err)
	}
	return &models.User{ID: 1, Username: username, PasswordEnc: enc, CanStream: true}
}

func TestAuthenticateAcceptsValidToken(t *testing.T) {
	const serverSecret = "0123456789abcdef0123456789abcdef"
	user := newTestUser(t, serverSecret, "tester", "hunter2")
	store := &fakeUserStore{byUsername: map[string]*models.User{"tester": user}}
	svc := auth.New(store, serverSecret)

	salt := "saltvalue"
	token := auth.SubsonicToken("hunter2", salt)

	got, err := svc.Authenticate(context.Background(), "tester", salt, token)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if got.ID != user.ID {
		t.Fatalf("expected user id %d, got %d", user.ID, got.ID)
	}
}

func TestAuthenticateRejectsWrongToken(t *testing.T) {
	const serverSecret = "0123456789abcdef0123456789abcdef"
	user := newTestUser(t, serverSecret, "tester", "hunter2")
	store := &fakeUserStore{byUsername: map[string]*models.User{"tester": user}}
	svc := auth.New(store, serverSecret)

	_, err := svc.Authenticate(context.Background(), "tester", "saltvalue", "deadbeef")
	if apperr.KindOf(err) != apperr.KindUnauthenticated {
		t.Fatalf("expected KindUnauthenticated, got %v", err)
	}
}

func TestAuthenticateRejectsUnknownUser(t *testing.T) {
	const serverSecret = "0123456789abcdef0123456789abcdef"
	store := &fakeUserStore{byUsername: map[string]*models.User{}}
	svc := auth.New(store, serverSecret)

	_, err := svc.Authenticate(context.Background(), "ghost", "saltvalue", "whatever")
	if apperr.KindOf(err) != apperr.KindUnauthenticated {
		t.Fatalf("expected KindUnauthenticated, got %v", err)
	}
}

func TestAuthorize(t *testing.T) {
	streamer := &models.User{CanStream: true}
	if err := auth.Authorize(streamer, auth.RoleStream); err != nil {
		t.Fatalf("expected streamer to pass RoleStream: %v", err)
	}
	if err := auth.Authorize(streamer, auth.RoleAdmin); apperr.KindOf(err) != apperr.KindForbidden {
		t.Fatalf("expected RoleAdmin to be forbidden for non-admin, got %v", err)
	}

	admin := &models.User{IsAdmin: true}
	if err := auth.Authorize(admin, auth.RoleAdmin); err != nil {
		t.Fatalf("expected admin to pass RoleAdmin: %v", err)
	}
}
