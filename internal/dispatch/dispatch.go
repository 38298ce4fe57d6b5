// Package dispatch routes one inbound message through the turn state
// machine: resolve the sender's identity, check its account link, gather
// context, compose one reply, deliver it. Every inbound webhook invocation
// is handled independently; no turn state survives in process memory.
package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/vitalinkhq/vitalink/internal/compose"
	"github.com/vitalinkhq/vitalink/internal/credentials"
	"github.com/vitalinkhq/vitalink/internal/identity"
	"github.com/vitalinkhq/vitalink/internal/ingest"
	"github.com/vitalinkhq/vitalink/internal/readings"
	"github.com/vitalinkhq/vitalink/internal/transport/twilio"
	"github.com/vitalinkhq/vitalink/internal/whoop"
)

const (
	trendLimit  = 20
	recentLimit = 5
	// snapshotWindow is how far back the recovery query reaches
	snapshotWindow = 48 * time.Hour
)

const linkPrompt = "Hi! To get personalized coaching, link your WHOOP account here: "

// CredentialReader reports the link state of an identity.
type CredentialReader interface {
	Get(ctx context.Context, id string) (credentials.Record, error)
}

// LoginURLBuilder produces the OAuth authorization URL for an identity.
type LoginURLBuilder interface {
	BuildAuthorizationRequest(rawIdentity string) (string, error)
}

// DataClient fetches third-party fitness data for a linked identity.
type DataClient interface {
	FetchRecoveryWindow(ctx context.Context, id string, start, end time.Time) (whoop.Snapshot, error)
	FetchProfile(ctx context.Context, id string) (whoop.Profile, error)
	FetchSleep(ctx context.Context, id string) ([]whoop.SleepSummary, error)
	FetchWorkouts(ctx context.Context, id string) ([]whoop.WorkoutSummary, error)
}

// TrendQuerier reads biomarker history for context gathering.
type TrendQuerier interface {
	History(ctx context.Context, id, marker string, limit int, order readings.Order) ([]readings.Reading, error)
	Recent(ctx context.Context, id string, limit int) ([]readings.Reading, error)
}

// Ingester runs attachment ingestion; per-attachment failures surface as
// notes, never as errors.
type Ingester interface {
	IngestAttachment(ctx context.Context, id, mediaURL, contentType string) ingest.Result
}

// ReplyComposer builds the outbound text for a gathered turn context.
type ReplyComposer interface {
	Compose(ctx context.Context, tc compose.Context) string
}

// Deliverer sends one outbound message.
type Deliverer interface {
	Send(ctx context.Context, msg twilio.OutboundMessage) (string, error)
}

// Dispatcher runs the per-message turn.
type Dispatcher struct {
	creds    CredentialReader
	login    LoginURLBuilder
	data     DataClient
	trends   TrendQuerier
	ingester Ingester
	composer ReplyComposer
	sender   Deliverer
	logger   *slog.Logger
	now      func() time.Time
}

// NewDispatcher wires the turn state machine.
func NewDispatcher(
	log *slog.Logger,
	creds CredentialReader,
	login LoginURLBuilder,
	data DataClient,
	trends TrendQuerier,
	ingester Ingester,
	composer ReplyComposer,
	sender Deliverer,
) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	return &Dispatcher{
		creds:    creds,
		login:    login,
		data:     data,
		trends:   trends,
		ingester: ingester,
		composer: composer,
		sender:   sender,
		logger:   log.With(slog.String("service", "dispatch")),
		now:      time.Now,
	}
}

// HandleInbound processes one webhook delivery end to end. It always
// returns nil for per-turn failures after the identity resolves, so the
// webhook acknowledges and the transport does not retry-storm; only an
// unresolvable sender is reported back.
func (d *Dispatcher) HandleInbound(ctx context.Context, msg twilio.InboundMessage) error {
	id, err := identity.NormalizeAndValidate(msg.From)
	if err != nil {
		d.logger.Warn("unresolvable sender", slog.String("from", msg.From), slog.Any("error", err))
		return err
	}
	log := d.logger.With(slog.String("identity", id))

	linked, err := d.checkLink(ctx, id)
	if err != nil {
		log.Error("link check failed", slog.Any("error", err))
		d.deliver(ctx, log, id, compose.ApologyReply, "")
		return nil
	}
	if !linked {
		d.promptLogin(ctx, log, id)
		return nil
	}

	tc, reauth := d.fetchContext(ctx, log, id, msg)
	if reauth {
		// mid-turn downgrade: the credential died during this turn
		d.promptLogin(ctx, log, id)
		return nil
	}

	reply := d.composer.Compose(ctx, tc)

	chartURL := ""
	if compose.WantsChart(msg.Body) && tc.TrendMarker != "" {
		chartURL = compose.BuildChartURL(tc.TrendMarker, tc.Trend)
	}
	d.deliver(ctx, log, id, reply, chartURL)
	return nil
}

// checkLink reports whether the identity holds a usable access token.
// A record whose access token was invalidated counts as unlinked even
// when a refresh token remains: its refresh already failed once, so the
// only way forward is a new login.
func (d *Dispatcher) checkLink(ctx context.Context, id string) (bool, error) {
	rec, err := d.creds.Get(ctx, id)
	if errors.Is(err, credentials.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return rec.Usable(), nil
}

func (d *Dispatcher) promptLogin(ctx context.Context, log *slog.Logger, id string) {
	authURL, err := d.login.BuildAuthorizationRequest(id)
	if err != nil {
		log.Error("build login url failed", slog.Any("error", err))
		d.deliver(ctx, log, id, compose.ApologyReply, "")
		return
	}
	d.deliver(ctx, log, id, linkPrompt+authURL, "")
}

// fetchContext gathers every context source independently. A failure in
// one source becomes a log line or a note; it never blocks the others.
// Only a dead credential escapes, as the downgrade signal.
func (d *Dispatcher) fetchContext(ctx context.Context, log *slog.Logger, id string, msg twilio.InboundMessage) (compose.Context, bool) {
	tc := compose.Context{InboundText: msg.Body}

	end := d.now()
	snapshot, err := d.data.FetchRecoveryWindow(ctx, id, end.Add(-snapshotWindow), end)
	switch {
	case errors.Is(err, whoop.ErrReauthRequired), errors.Is(err, whoop.ErrNotLinked):
		// the credential died between the link check and this fetch
		return tc, true
	case err != nil:
		log.Warn("recovery fetch failed", slog.Any("error", err))
		tc.LinkNote = "Fitness data is temporarily unavailable."
	default:
		tc.Snapshot = &snapshot
	}

	if mentionsProfile(msg.Body) {
		if profile, err := d.data.FetchProfile(ctx, id); err != nil {
			log.Warn("profile fetch failed", slog.Any("error", err))
		} else {
			tc.Profile = &profile
		}
	}
	if mentionsSleep(msg.Body) {
		if sleeps, err := d.data.FetchSleep(ctx, id); err != nil {
			log.Warn("sleep fetch failed", slog.Any("error", err))
		} else if len(sleeps) > 0 {
			tc.Sleep = &sleeps[0]
		}
	}
	if mentionsWorkout(msg.Body) {
		if workouts, err := d.data.FetchWorkouts(ctx, id); err != nil {
			log.Warn("workout fetch failed", slog.Any("error", err))
		} else {
			tc.Workouts = workouts
		}
	}

	if marker := readings.DetectRequestedMarker(msg.Body); marker != "" {
		tc.TrendMarker = marker
		if history, err := d.trends.History(ctx, id, marker, trendLimit, readings.Ascending); err != nil {
			log.Warn("trend query failed", slog.String("marker", marker), slog.Any("error", err))
		} else {
			tc.Trend = history
		}
	}

	if recent, err := d.trends.Recent(ctx, id, recentLimit); err != nil {
		log.Warn("recent readings query failed", slog.Any("error", err))
	} else {
		tc.Recent = recent
	}

	// attachments are ingested sequentially, each fault-isolated
	for _, item := range msg.Media {
		res := d.ingester.IngestAttachment(ctx, id, item.URL, item.ContentType)
		if res.Note != "" {
			tc.IngestNotes = append(tc.IngestNotes, res.Note)
		}
	}

	return tc, false
}

// deliver sends exactly one outbound message; delivery failures are
// logged, not retried within the turn.
func (d *Dispatcher) deliver(ctx context.Context, log *slog.Logger, id, body, mediaURL string) {
	sid, err := d.sender.Send(ctx, twilio.OutboundMessage{
		To:       identity.WhatsAppAddress(id),
		Body:     body,
		MediaURL: mediaURL,
	})
	if err != nil {
		log.Error("delivery failed", slog.Any("error", err))
		return
	}
	log.Info("reply delivered", slog.String("sid", sid))
}

func mentionsProfile(text string) bool {
	return containsAnyFold(text, "profile", "account", "who am i")
}

func mentionsSleep(text string) bool {
	return containsAnyFold(text, "sleep", "slept", "rest")
}

func mentionsWorkout(text string) bool {
	return containsAnyFold(text, "workout", "training", "exercise", "strain")
}

func containsAnyFold(text string, keywords ...string) bool {
	lowered := strings.ToLower(text)
	for _, kw := range keywords {
		if strings.Contains(lowered, kw) {
			return true
		}
	}
	return false
}
