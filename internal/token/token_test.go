package token

import (
	"errors"
	"testing"
	"time"
)

func TestNewCodecRequiresSecret(t *testing.T) {
	if _, err := NewCodec("", "peerpoints"); err == nil {
		t.Fatal("expected error for empty secret")
	}
}

func TestSignVerifyRoundTrip(t *testing.T) {
	codec, err := NewCodec("test-secret", "peerpoints")
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}

	now := time.Now()
	signed, err := codec.Sign(Claims{
		Email:       "alice@example.com",
		Name:        "Alice",
		Role:        "Administrator",
		RoleID:      "administrator",
		SessionID:   "sess-123",
		LoginMethod: "password",
	}, now, now.Add(time.Hour))
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	claims, err := codec.Verify(signed)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.SessionID != "sess-123" {
		t.Errorf("SessionID = %q, want sess-123", claims.SessionID)
	}
	if claims.Email != "alice@example.com" {
		t.Errorf("Email = %q, want alice@example.com", claims.Email)
	}
	if claims.RoleID != "administrator" {
		t.Errorf("RoleID = %q, want administrator", claims.RoleID)
	}
	if claims.Issuer != "peerpoints" {
		t.Errorf("Issuer = %q, want peerpoints", claims.Issuer)
	}
}

func TestVerifyExpiredToken(t *testing.T) {
	codec, _ := NewCodec("test-secret", "peerpoints")

	past := time.Now().Add(-2 * time.Hour)
	signed, err := codec.Sign(Claims{SessionID: "sess-123"}, past, past.Add(time.Hour))
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	if _, err := codec.Verify(signed); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("Verify expired = %v, want ErrInvalidToken", err)
	}
}

func TestVerifyTamperedToken(t *testing.T) {
	codec, _ := NewCodec("test-secret", "peerpoints")

	now := time.Now()
	signed, err := codec.Sign(Claims{SessionID: "sess-123"}, now, now.Add(time.Hour))
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	// Flip a byte in the payload segment.
	raw := []byte(signed)
	mid := len(raw) / 2
	if raw[mid] == 'a' {
		raw[mid] = 'b'
	} else {
		raw[mid] = 'a'
	}

	if _, err := codec.Verify(string(raw)); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("Verify tampered = %v, want ErrInvalidToken", err)
	}
}

func TestVerifyWrongSecret(t *testing.T) {
	codec, _ := NewCodec("test-secret", "peerpoints")
	other, _ := NewCodec("other-secret", "peerpoints")

	now := time.Now()
	signed, _ := codec.Sign(Claims{SessionID: "sess-123"}, now, now.Add(time.Hour))

	if _, err := other.Verify(signed); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("Verify with wrong secret = %v, want ErrInvalidToken", err)
	}
}

func TestVerifyWrongIssuer(t *testing.T) {
	codec, _ := NewCodec("test-secret", "someone-else")
	now := time.Now()
	signed, _ := codec.Sign(Claims{SessionID: "sess-123"}, now, now.Add(time.Hour))

	ours, _ := NewCodec("test-secret", "peerpoints")
	if _, err := ours.Verify(signed); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("Verify with wrong issuer = %v, want ErrInvalidToken", err)
	}
}

func TestVerifyMissingSessionID(t *testing.T) {
	codec, _ := NewCodec("test-secret", "peerpoints")
	now := time.Now()
	signed, _ := codec.Sign(Claims{Email: "alice@example.com"}, now, now.Add(time.Hour))

	if _, err := codec.Verify(signed); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("Verify without session ID = %v, want ErrInvalidToken", err)
	}
}

func TestVerifyGarbage(t *testing.T) {
	codec, _ := NewCodec("test-secret", "peerpoints")
	for _, tok := range []string{"", "not-a-token", "a.b.c"} {
		if _, err := codec.Verify(tok); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("Verify(%q) = %v, want ErrInvalidToken", tok, err)
		}
	}
}
