// Package whoop is the authenticated client for the WHOOP developer API.
// It owns the bounded refresh-and-retry policy: a 401 triggers at most one
// refresh grant followed by at most one retry of the original call.
package whoop

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/vitalinkhq/vitalink/internal/credentials"
)

// CredentialSource reads and invalidates stored credentials.
type CredentialSource interface {
	Get(ctx context.Context, id string) (credentials.Record, error)
	InvalidateAccessToken(ctx context.Context, id string) error
}

// Refresher performs exactly one refresh grant and persists the result.
type Refresher interface {
	RefreshCredential(ctx context.Context, id, refreshToken string) (credentials.Record, error)
}

// Client calls the WHOOP developer API with per-identity bearer auth.
type Client struct {
	apiBase    string
	store      CredentialSource
	refresher  Refresher
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a Client for the given API base URL.
func NewClient(log *slog.Logger, apiBase string, store CredentialSource, refresher Refresher) *Client {
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		apiBase:    strings.TrimRight(apiBase, "/"),
		store:      store,
		refresher:  refresher,
		httpClient: &http.Client{Timeout: 20 * time.Second},
		logger:     log.With(slog.String("service", "whoop")),
	}
}

// --- wire shapes ---

type recoveryResponse struct {
	Records []struct {
		Score struct {
			RecoveryScore    float64 `json:"recovery_score"`
			HRVRmssdMilli    float64 `json:"hrv_rmssd_milli"`
			RestingHeartRate float64 `json:"resting_heart_rate"`
			SpO2Percentage   float64 `json:"spo2_percentage"`
		} `json:"score"`
	} `json:"records"`
}

type sleepResponse struct {
	Records []struct {
		ID    string `json:"id"`
		Start string `json:"start"`
		End   string `json:"end"`
		Score struct {
			SleepPerformancePercentage float64 `json:"sleep_performance_percentage"`
		} `json:"score"`
	} `json:"records"`
}

type workoutResponse struct {
	Records []struct {
		ID        string `json:"id"`
		SportName string `json:"sport_name"`
		Start     string `json:"start"`
		End       string `json:"end"`
		Score     struct {
			Strain float64 `json:"strain"`
		} `json:"score"`
	} `json:"records"`
}

// FetchRecoveryWindow returns the latest recovery snapshot within
// [start, end]. Absent numeric fields are zero: missing biometrics are
// "no data", not an error.
func (c *Client) FetchRecoveryWindow(ctx context.Context, id string, start, end time.Time) (Snapshot, error) {
	q := url.Values{}
	if !start.IsZero() {
		q.Set("start", start.UTC().Format(time.RFC3339))
	}
	if !end.IsZero() {
		q.Set("end", end.UTC().Format(time.RFC3339))
	}

	var parsed recoveryResponse
	if err := c.getJSON(ctx, id, "/developer/v1/recovery", q, &parsed); err != nil {
		return Snapshot{}, err
	}
	if len(parsed.Records) == 0 {
		return Snapshot{}, nil
	}
	score := parsed.Records[0].Score
	return Snapshot{
		RecoveryScore:    score.RecoveryScore,
		HRV:              score.HRVRmssdMilli,
		RestingHeartRate: score.RestingHeartRate,
		SpO2:             score.SpO2Percentage,
	}, nil
}

// FetchProfile returns the linked account profile.
func (c *Client) FetchProfile(ctx context.Context, id string) (Profile, error) {
	var profile Profile
	if err := c.getJSON(ctx, id, "/developer/v1/user/profile/basic", nil, &profile); err != nil {
		return Profile{}, err
	}
	return profile, nil
}

// FetchSleep returns recent sleep records.
func (c *Client) FetchSleep(ctx context.Context, id string) ([]SleepSummary, error) {
	var parsed sleepResponse
	if err := c.getJSON(ctx, id, "/developer/v1/sleep", nil, &parsed); err != nil {
		return nil, err
	}
	out := make([]SleepSummary, 0, len(parsed.Records))
	for _, r := range parsed.Records {
		out = append(out, SleepSummary{
			ID:             r.ID,
			Start:          r.Start,
			End:            r.End,
			PerformancePct: r.Score.SleepPerformancePercentage,
		})
	}
	return out, nil
}

// FetchWorkouts returns recent workout records.
func (c *Client) FetchWorkouts(ctx context.Context, id string) ([]WorkoutSummary, error) {
	var parsed workoutResponse
	if err := c.getJSON(ctx, id, "/developer/v1/activity/workout", nil, &parsed); err != nil {
		return nil, err
	}
	out := make([]WorkoutSummary, 0, len(parsed.Records))
	for _, r := range parsed.Records {
		out = append(out, WorkoutSummary{
			ID:         r.ID,
			SportName:  r.SportName,
			Start:      r.Start,
			End:        r.End,
			StrainRate: r.Score.Strain,
		})
	}
	return out, nil
}

// getJSON runs one authenticated GET through the credential lifecycle:
// load credential, call, and on 401 refresh once and retry once. Refresh
// failure or a missing refresh token invalidates the access token and
// surfaces ErrReauthRequired.
func (c *Client) getJSON(ctx context.Context, id, path string, query url.Values, out any) error {
	rec, err := c.store.Get(ctx, id)
	if errors.Is(err, credentials.ErrNotFound) {
		return ErrNotLinked
	}
	if err != nil {
		return fmt.Errorf("load credential: %w", err)
	}
	if !rec.Usable() {
		return ErrNotLinked
	}

	status, body, err := c.do(ctx, path, query, rec.AccessToken)
	if err != nil {
		return err
	}
	if status == http.StatusUnauthorized {
		rec, err = c.refreshOnce(ctx, id, rec)
		if err != nil {
			return err
		}
		status, body, err = c.do(ctx, path, query, rec.AccessToken)
		if err != nil {
			return err
		}
		if status == http.StatusUnauthorized {
			// The refreshed token was rejected too; surface upstream
			// rather than looping.
			return &UpstreamError{Status: status, Body: string(body)}
		}
	}
	if status < 200 || status >= 300 {
		return &UpstreamError{Status: status, Body: string(body)}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &UpstreamError{Status: status, Body: string(body)}
	}
	return nil
}

func (c *Client) refreshOnce(ctx context.Context, id string, rec credentials.Record) (credentials.Record, error) {
	if !rec.CanRefresh() || c.refresher == nil {
		if err := c.store.InvalidateAccessToken(ctx, id); err != nil {
			c.logger.Warn("invalidate access token failed", slog.String("identity", id), slog.Any("error", err))
		}
		return credentials.Record{}, ErrReauthRequired
	}
	refreshed, err := c.refresher.RefreshCredential(ctx, id, rec.RefreshToken)
	if err != nil {
		c.logger.Warn("token refresh failed", slog.String("identity", id), slog.Any("error", err))
		if invErr := c.store.InvalidateAccessToken(ctx, id); invErr != nil {
			c.logger.Warn("invalidate access token failed", slog.String("identity", id), slog.Any("error", invErr))
		}
		return credentials.Record{}, ErrReauthRequired
	}
	return refreshed, nil
}

func (c *Client) do(ctx context.Context, path string, query url.Values, accessToken string) (int, []byte, error) {
	rawURL := c.apiBase + path
	if len(query) > 0 {
		rawURL += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("whoop request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("read whoop response: %w", err)
	}
	return resp.StatusCode, body, nil
}
