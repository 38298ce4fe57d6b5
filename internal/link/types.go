package link

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidState indicates the callback state parameter did not decode
	// to a valid identity. There is exactly one accepted encoding; anything
	// else is rejected without fallback decode attempts.
	ErrInvalidState = errors.New("invalid state")
	// ErrMissingCode indicates the callback arrived without an
	// authorization code.
	ErrMissingCode = errors.New("missing authorization code")
)

// TokenExchangeError carries the provider's response when a token endpoint
// call fails with a non-2xx status.
type TokenExchangeError struct {
	Status int
	Body   string
}

func (e *TokenExchangeError) Error() string {
	return fmt.Sprintf("token exchange failed: status %d: %s", e.Status, e.Body)
}

// CallbackOutcome is the terminal state of one callback invocation.
type CallbackOutcome struct {
	Identity string
}
