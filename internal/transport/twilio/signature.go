package twilio

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/subtle"
	"encoding/base64"
	"net/url"
	"sort"
	"strings"
)

// SignatureValidator checks that a webhook request was signed by Twilio
// with this account's auth token.
type SignatureValidator struct {
	authToken string
}

// NewSignatureValidator creates a validator over the account auth token.
func NewSignatureValidator(authToken string) *SignatureValidator {
	return &SignatureValidator{authToken: authToken}
}

// Validate recomputes the signature over the request URL plus the form
// parameters appended in sorted key order, and compares it to the signature
// header value in constant time.
func (v *SignatureValidator) Validate(requestURL string, form url.Values, signature string) error {
	expected := v.sign(requestURL, form)
	if subtle.ConstantTimeCompare([]byte(expected), []byte(signature)) != 1 {
		return ErrInvalidSignature
	}
	return nil
}

func (v *SignatureValidator) sign(requestURL string, form url.Values) string {
	keys := make([]string, 0, len(form))
	for k := range form {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(requestURL)
	for _, k := range keys {
		// each value for a repeated key is appended in order
		for _, val := range form[k] {
			b.WriteString(k)
			b.WriteString(val)
		}
	}

	mac := hmac.New(sha1.New, []byte(v.authToken))
	mac.Write([]byte(b.String()))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
