package twilio

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const defaultAPIBase = "https://api.twilio.com"

// Sender delivers outbound WhatsApp messages through the Twilio REST API.
// A client-side rate limiter keeps bursts under the messaging throughput
// Twilio grants WhatsApp senders.
type Sender struct {
	accountSID string
	authToken  string
	from       string
	apiBase    string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// NewSender creates a message sender. from is the WhatsApp-enabled Twilio
// number in "whatsapp:+E164" form. sendsPerSecond <= 0 disables the cap.
func NewSender(log *slog.Logger, accountSID, authToken, from, apiBase string, sendsPerSecond float64) *Sender {
	if log == nil {
		log = slog.Default()
	}
	if strings.TrimSpace(apiBase) == "" {
		apiBase = defaultAPIBase
	}
	limit := rate.Inf
	burst := 1
	if sendsPerSecond > 0 {
		limit = rate.Limit(sendsPerSecond)
		burst = 5
	}
	return &Sender{
		accountSID: accountSID,
		authToken:  authToken,
		from:       from,
		apiBase:    strings.TrimRight(apiBase, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
		limiter:    rate.NewLimiter(limit, burst),
		logger:     log.With(slog.String("service", "twilio")),
	}
}

// Send delivers one message and returns the created message SID.
func (s *Sender) Send(ctx context.Context, msg OutboundMessage) (string, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit wait: %w", err)
	}

	form := url.Values{}
	form.Set("From", s.from)
	form.Set("To", msg.To)
	form.Set("Body", msg.Body)
	if msg.MediaURL != "" {
		form.Set("MediaUrl", msg.MediaURL)
	}

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", s.apiBase, s.accountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("build send request: %w", err)
	}
	req.SetBasicAuth(s.accountSID, s.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("send message: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return "", fmt.Errorf("read send response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("send status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var created struct {
		SID string `json:"sid"`
	}
	if err := json.Unmarshal(body, &created); err != nil {
		return "", fmt.Errorf("decode send response: %w", err)
	}
	s.logger.Info("message sent", slog.String("to", msg.To), slog.String("sid", created.SID))
	return created.SID, nil
}

// FetchMedia downloads inbound message media. Twilio media URLs require the
// account's basic auth credentials. The caller owns the returned reader.
func (s *Sender) FetchMedia(ctx context.Context, mediaURL string) (io.ReadCloser, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, mediaURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("build media request: %w", err)
	}
	req.SetBasicAuth(s.accountSID, s.authToken)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("fetch media: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		resp.Body.Close()
		return nil, "", fmt.Errorf("media status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return resp.Body, resp.Header.Get("Content-Type"), nil
}
