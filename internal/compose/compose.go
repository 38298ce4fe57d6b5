// Package compose assembles the bounded context bundle for the coaching
// model and enforces the outbound reply length limit. It makes exactly one
// completion call per inbound turn and degrades to a static apology when
// the model is unavailable.
package compose

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/vitalinkhq/vitalink/internal/chat"
	"github.com/vitalinkhq/vitalink/internal/readings"
	"github.com/vitalinkhq/vitalink/internal/whoop"
)

// ApologyReply is the fixed fallback sent when reply composition fails.
const ApologyReply = "Sorry, I couldn't put together a reply just now. Please try again in a moment."

const systemInstructions = `You are a concise personal health coach on WhatsApp.
You receive the user's latest message together with their fitness snapshot and lab results when available.
Ground every statement in the provided context; never invent numbers.
Keep replies short and actionable. Plain text only, no markdown.`

// Completer is the single external text-generation call the composer makes.
type Completer interface {
	Complete(ctx context.Context, req chat.Request) (chat.Result, error)
}

// Context carries everything a turn gathered for the composer. Any field
// may be zero; the composer only mentions what is present.
type Context struct {
	InboundText string
	Snapshot    *whoop.Snapshot
	Profile     *whoop.Profile
	Sleep       *whoop.SleepSummary
	Workouts    []whoop.WorkoutSummary
	Trend       []readings.Reading
	TrendMarker string
	Recent      []readings.Reading
	IngestNotes []string
	LinkNote    string
}

// Composer builds the model payload and bounds the outbound reply.
type Composer struct {
	completer Completer
	logger    *slog.Logger
}

// NewComposer creates a reply composer over the given completion client.
func NewComposer(log *slog.Logger, completer Completer) *Composer {
	if log == nil {
		log = slog.Default()
	}
	return &Composer{
		completer: completer,
		logger:    log.With(slog.String("service", "compose")),
	}
}

// Compose produces the outbound reply text for one turn. It never returns
// an empty string: composition failures yield the static apology so the
// dispatcher always has exactly one message to deliver.
func (c *Composer) Compose(ctx context.Context, tc Context) string {
	userContext := c.buildUserContext(tc)

	result, err := c.completer.Complete(ctx, chat.Request{
		Messages: []chat.Message{
			{Role: "system", Content: systemInstructions},
			{Role: "user", Content: userContext},
		},
	})
	if err != nil {
		c.logger.Error("reply composition failed", slog.Any("error", err))
		return ApologyReply
	}
	return TruncateReply(result.Message.Content, MaxReplyChars)
}

// buildUserContext renders the context bundle as labeled sections. Raw
// numeric dumps are included only when the inbound text asks for detail.
func (c *Composer) buildUserContext(tc Context) string {
	var b strings.Builder
	detail := wantsRawDetail(tc.InboundText)

	fmt.Fprintf(&b, "User message: %s\n", strings.TrimSpace(tc.InboundText))

	if tc.LinkNote != "" {
		fmt.Fprintf(&b, "\nAccount status: %s\n", tc.LinkNote)
	}

	if s := tc.Snapshot; s != nil {
		fmt.Fprintf(&b, "\nToday's recovery: score %.0f/100, HRV %.1f ms, resting HR %.0f bpm, SpO2 %.1f%%\n",
			s.RecoveryScore, s.HRV, s.RestingHeartRate, s.SpO2)
	}
	if p := tc.Profile; p != nil {
		fmt.Fprintf(&b, "Linked account: %s %s (%s)\n", p.FirstName, p.LastName, p.Email)
	}
	if s := tc.Sleep; s != nil {
		fmt.Fprintf(&b, "Last sleep: performance %.0f%% (%s to %s)\n",
			s.PerformancePct, s.Start, s.End)
	}
	if len(tc.Workouts) > 0 {
		fmt.Fprintf(&b, "Recent workouts: %d recorded, latest %s with strain %.1f\n",
			len(tc.Workouts), tc.Workouts[0].SportName, tc.Workouts[0].StrainRate)
	}

	if len(tc.Trend) > 0 && tc.TrendMarker != "" {
		fmt.Fprintf(&b, "\n%s history (oldest first):\n", tc.TrendMarker)
		for _, r := range tc.Trend {
			if v, ok := r.Markers[tc.TrendMarker]; ok {
				fmt.Fprintf(&b, "  %s: %g\n", r.ObservedAt.Format("2006-01-02"), v)
			}
		}
	}

	if detail && len(tc.Recent) > 0 {
		b.WriteString("\nRecent lab values (requested detail):\n")
		for _, r := range tc.Recent {
			fmt.Fprintf(&b, "  %s:", r.ObservedAt.Format("2006-01-02"))
			for name, v := range r.Markers {
				fmt.Fprintf(&b, " %s=%g", name, v)
			}
			b.WriteString("\n")
		}
	} else if len(tc.Recent) > 0 {
		fmt.Fprintf(&b, "\nLab history on file: %d reading(s). Summarize rather than listing numbers unless asked.\n", len(tc.Recent))
	}

	for _, note := range tc.IngestNotes {
		fmt.Fprintf(&b, "\nDocument note: %s\n", note)
	}

	return b.String()
}

// wantsRawDetail reports whether the inbound text explicitly asks for raw
// numbers rather than a summary.
func wantsRawDetail(text string) bool {
	lowered := strings.ToLower(text)
	for _, kw := range []string{"raw", "detail", "exact", "numbers", "values"} {
		if strings.Contains(lowered, kw) {
			return true
		}
	}
	return false
}

// WantsChart reports whether the inbound text asks for a chart of a marker.
func WantsChart(text string) bool {
	lowered := strings.ToLower(text)
	for _, kw := range []string{"chart", "graph", "plot", "trend"} {
		if strings.Contains(lowered, kw) {
			return true
		}
	}
	return false
}
