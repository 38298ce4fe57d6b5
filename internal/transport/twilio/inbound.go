package twilio

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// ParseInbound extracts an InboundMessage from webhook form values. Media
// references come as MediaUrl0..MediaUrlN-1 with matching content types;
// NumMedia bounds the scan.
func ParseInbound(form url.Values) (InboundMessage, error) {
	from := strings.TrimSpace(form.Get("From"))
	if from == "" {
		return InboundMessage{}, ErrMissingSender
	}

	msg := InboundMessage{
		From: from,
		To:   strings.TrimSpace(form.Get("To")),
		Body: strings.TrimSpace(form.Get("Body")),
		SID:  strings.TrimSpace(form.Get("MessageSid")),
	}

	numMedia, err := strconv.Atoi(strings.TrimSpace(form.Get("NumMedia")))
	if err != nil || numMedia <= 0 {
		return msg, nil
	}
	// Twilio caps attachments at 10 per message
	if numMedia > 10 {
		numMedia = 10
	}
	for i := 0; i < numMedia; i++ {
		mediaURL := strings.TrimSpace(form.Get(fmt.Sprintf("MediaUrl%d", i)))
		if mediaURL == "" {
			continue
		}
		msg.Media = append(msg.Media, MediaItem{
			URL:         mediaURL,
			ContentType: strings.TrimSpace(form.Get(fmt.Sprintf("MediaContentType%d", i))),
		})
	}
	return msg, nil
}
