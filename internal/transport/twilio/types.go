// Package twilio implements the WhatsApp transport: inbound webhook form
// parsing, request signature validation, the outbound message REST client,
// and authenticated media fetching.
package twilio

import "errors"

var (
	// ErrInvalidSignature indicates the webhook request did not carry a
	// valid X-Twilio-Signature for this account's auth token.
	ErrInvalidSignature = errors.New("invalid request signature")
	// ErrMissingSender indicates the inbound form had no From address.
	ErrMissingSender = errors.New("missing sender address")
)

// MediaItem is one attachment reference on an inbound message.
type MediaItem struct {
	URL         string
	ContentType string
}

// InboundMessage is one parsed webhook delivery.
type InboundMessage struct {
	From  string
	To    string
	Body  string
	SID   string
	Media []MediaItem
}

// OutboundMessage is one message to deliver.
type OutboundMessage struct {
	To       string
	Body     string
	MediaURL string
}
