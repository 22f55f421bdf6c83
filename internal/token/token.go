package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is the only failure surfaced by Verify. Malformed
// structure, signature mismatch and expiry all collapse into it so that a
// caller (or an attacker probing the endpoint) cannot distinguish why a
// token was rejected.
var ErrInvalidToken = errors.New("invalid token")

// Claims is the signed session payload carried by the client.
type Claims struct {
	jwt.RegisteredClaims
	Email       string `json:"email,omitempty"`
	Name        string `json:"name,omitempty"`
	Role        string `json:"role,omitempty"`
	RoleID      string `json:"role_id,omitempty"`
	SessionID   string `json:"sid"`
	LoginMethod string `json:"login_method,omitempty"`
}

// Codec signs and verifies session tokens with a symmetric key. Sign and
// Verify are pure over the secret and payload; all session state lives in
// the server-side registry.
type Codec struct {
	secret []byte
	issuer string
}

// NewCodec creates a Codec. The secret must be non-empty.
func NewCodec(secret, issuer string) (*Codec, error) {
	if secret == "" {
		return nil, errors.New("token secret cannot be empty")
	}
	return &Codec{secret: []byte(secret), issuer: issuer}, nil
}

// Sign produces a compact signed token for the given claims, valid until
// expiresAt. Any bit-flip in the encoded claims invalidates the signature.
func (c *Codec) Sign(claims Claims, issuedAt, expiresAt time.Time) (string, error) {
	claims.Issuer = c.issuer
	claims.IssuedAt = jwt.NewNumericDate(issuedAt)
	claims.ExpiresAt = jwt.NewNumericDate(expiresAt)
	claims.ID = claims.SessionID

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a token, returning its claims. Expired,
// tampered and malformed tokens all return ErrInvalidToken.
func (c *Codec) Verify(tokenString string) (*Claims, error) {
	tok, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return c.secret, nil
	}, jwt.WithIssuer(c.issuer), jwt.WithExpirationRequired())
	if err != nil {
		return nil, ErrInvalidToken
	}

	claims, ok := tok.Claims.(*Claims)
	if !ok || !tok.Valid || claims.SessionID == "" {
		return nil, ErrInvalidToken
	}

	return claims, nil
}
