// Package identity defines the canonical messaging identity used as the
// primary key across credential and reading storage.
//
// The canonical form is digits only: no transport prefix, no leading plus,
// no separators. "whatsapp:+1 (415) 555-0100" and "+14155550100" both
// normalize to "14155550100". Every boundary (webhook parse, OAuth state
// decode, store reads and writes) must go through Normalize so the same
// user never forks into two identities.
package identity

import (
	"errors"
	"strings"
)

// ErrInvalidIdentity indicates the input does not normalize to a plausible
// phone-number identity.
var ErrInvalidIdentity = errors.New("invalid identity")

const (
	minDigits = 7
	maxDigits = 15 // E.164 upper bound
)

// Normalize strips the whatsapp: transport prefix and every non-digit
// character. It does not validate length; combine with Validate at
// trust boundaries.
func Normalize(raw string) string {
	s := strings.TrimSpace(raw)
	if len(s) >= 9 && strings.EqualFold(s[:9], "whatsapp:") {
		s = s[9:]
	}
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Validate reports whether id is already in canonical form and of
// plausible phone-number length.
func Validate(id string) error {
	if len(id) < minDigits || len(id) > maxDigits {
		return ErrInvalidIdentity
	}
	for _, r := range id {
		if r < '0' || r > '9' {
			return ErrInvalidIdentity
		}
	}
	return nil
}

// NormalizeAndValidate is the common boundary helper: normalize, then
// validate the result.
func NormalizeAndValidate(raw string) (string, error) {
	id := Normalize(raw)
	if err := Validate(id); err != nil {
		return "", err
	}
	return id, nil
}

// WhatsAppAddress renders the canonical identity back into the transport
// address form Twilio expects.
func WhatsAppAddress(id string) string {
	return "whatsapp:+" + id
}
