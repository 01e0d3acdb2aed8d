package auth

import (
	"bytes"
	"testing"
)

func TestEncryptDecryptPasswordRoundTrip(t *testing.T) {
	secret := "test-server-secret"
	password := "correct horse battery staple"

	enc, err := EncryptPassword(secret, password)
	if err != nil {
		t.Fatalf("EncryptPassword: %v", err)
	}
	got, err := DecryptPassword(secret, enc)
	if err != nil {
		t.Fatalf("DecryptPassword: %v", err)
	}
	if got != password {
		t.Errorf("round trip = %q, want %q", got, password)
	}
}

func TestSubsonicToken(t *testing.T) {
	token := SubsonicToken("sesame", "c19b2d")
	if len(token) != 32 {
		t.Errorf("expected 32-char hex md5, got %q", token)
	}
}

func TestBinaryRequestRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	req := BinaryRequest{Username: "alice", Salt: "abc123", Token: "deadbeef", Payload: []byte("hello")}
	if err := WriteBinaryRequest(&buf, req); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := ReadBinaryRequest(&buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got.Username != req.Username || got.Salt != req.Salt || got.Token != req.Token || string(got.Payload) != string(req.Payload) {
		t.Errorf("round trip mismatch: %+v", got)
	}
}
