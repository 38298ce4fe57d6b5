package link

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/vitalinkhq/vitalink/internal/identity"
)

const stateTokenType = "link_state"

// StateCodec encodes the canonical identity into the OAuth state parameter
// as a short-lived HS256 JWT, and decodes it exactly once on callback.
// Signing makes the round trip tamper-evident: a callback cannot claim an
// identity the service never issued a login link for.
type StateCodec struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewStateCodec creates a StateCodec with the given signing secret and TTL.
func NewStateCodec(secret string, ttl time.Duration) *StateCodec {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &StateCodec{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// Encode produces the state parameter for the given canonical identity.
func (c *StateCodec) Encode(id string) (string, error) {
	if err := identity.Validate(id); err != nil {
		return "", err
	}
	now := c.now().UTC()
	claims := jwt.MapClaims{
		"sub": id,
		"typ": stateTokenType,
		"iat": now.Unix(),
		"exp": now.Add(c.ttl).Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign state: %w", err)
	}
	return signed, nil
}

// Decode validates the state parameter and returns the canonical identity.
// Any failure (signature, expiry, claim shape, identity form) yields
// ErrInvalidState.
func (c *StateCodec) Decode(state string) (string, error) {
	token, err := jwt.Parse(state, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return c.secret, nil
	}, jwt.WithTimeFunc(func() time.Time { return c.now() }))
	if err != nil || !token.Valid {
		return "", ErrInvalidState
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", ErrInvalidState
	}
	if typ, _ := claims["typ"].(string); typ != stateTokenType {
		return "", ErrInvalidState
	}
	id, _ := claims["sub"].(string)
	if err := identity.Validate(id); err != nil {
		return "", ErrInvalidState
	}
	return id, nil
}
