package playlist

import (
	"context"
	"testing"

	"github.com/nghego/nghego/internal/apperr"
)

func TestCreateRejectsEmptyName(t *testing.T) {
	s := New(nil)
	_, err := s.Create(context.Background(), 1, "", "", false)
	if apperr.KindOf(err) != apperr.KindInvalidParameter {
		t.Fatalf("expected KindInvalidParameter, got %v", err)
	}
}
