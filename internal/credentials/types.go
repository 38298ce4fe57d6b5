package credentials

import (
	"errors"
	"time"
)

// ErrNotFound indicates no credential record exists for the identity.
var ErrNotFound = errors.New("credential not found")

// Record is the persisted OAuth token bundle for one identity. Exactly zero
// or one record exists per identity.
type Record struct {
	Identity     string    `json:"identity"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type"`
	Scope        string    `json:"scope"`
	IssuedAt     time.Time `json:"issued_at"`
	ExpiresAt    time.Time `json:"expires_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Usable reports whether the record carries an access token. An expired
// access token is still usable here: expiry is discovered and handled by
// the upstream client's refresh policy, not guessed from the clock.
func (r Record) Usable() bool {
	return r.AccessToken != ""
}

// CanRefresh reports whether a refresh grant is possible.
func (r Record) CanRefresh() bool {
	return r.RefreshToken != ""
}

// TokenFields is the replace-or-create payload for Upsert. The whole record
// is written in one statement so concurrent writers never interleave
// partial field updates.
type TokenFields struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	Scope        string
	IssuedAt     time.Time
	ExpiresAt    time.Time
}
