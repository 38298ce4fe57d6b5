package whoop

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitalinkhq/vitalink/internal/credentials"
)

const testIdentity = "14155550100"

type fakeStore struct {
	mu          sync.Mutex
	records     map[string]credentials.Record
	invalidated []string
}

func newFakeStore(rec *credentials.Record) *fakeStore {
	s := &fakeStore{records: map[string]credentials.Record{}}
	if rec != nil {
		s.records[rec.Identity] = *rec
	}
	return s
}

func (s *fakeStore) Get(_ context.Context, id string) (credentials.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return credentials.Record{}, credentials.ErrNotFound
	}
	return rec, nil
}

func (s *fakeStore) InvalidateAccessToken(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invalidated = append(s.invalidated, id)
	rec := s.records[id]
	rec.AccessToken = ""
	s.records[id] = rec
	return nil
}

type fakeRefresher struct {
	mu     sync.Mutex
	calls  int
	result credentials.Record
	err    error
}

func (r *fakeRefresher) RefreshCredential(_ context.Context, id, refreshToken string) (credentials.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = r.calls + 1
	if r.err != nil {
		return credentials.Record{}, r.err
	}
	return r.result, nil
}

func linkedRecord() *credentials.Record {
	return &credentials.Record{
		Identity:     testIdentity,
		AccessToken:  "at-old",
		RefreshToken: "rt",
		TokenType:    "bearer",
		ExpiresAt:    time.Now().Add(time.Hour),
	}
}

const recoveryBody = `{
	"records": [
		{"score": {"recovery_score": 71, "hrv_rmssd_milli": 48.5, "resting_heart_rate": 52, "spo2_percentage": 97.2}}
	]
}`

func TestFetchRecoveryWindow(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/developer/v1/recovery", r.URL.Path)
		assert.Equal(t, "Bearer at-old", r.Header.Get("Authorization"))
		assert.NotEmpty(t, r.URL.Query().Get("start"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(recoveryBody))
	}))
	defer srv.Close()

	client := NewClient(nil, srv.URL, newFakeStore(linkedRecord()), &fakeRefresher{})
	snap, err := client.FetchRecoveryWindow(context.Background(), testIdentity, time.Now().Add(-24*time.Hour), time.Now())
	require.NoError(t, err)
	assert.Equal(t, 71.0, snap.RecoveryScore)
	assert.Equal(t, 48.5, snap.HRV)
	assert.Equal(t, 52.0, snap.RestingHeartRate)
	assert.Equal(t, 97.2, snap.SpO2)
}

func TestFetchRecoveryWindowMissingFieldsDefaultToZero(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"records": [{"score": {"recovery_score": 44}}]}`))
	}))
	defer srv.Close()

	client := NewClient(nil, srv.URL, newFakeStore(linkedRecord()), &fakeRefresher{})
	snap, err := client.FetchRecoveryWindow(context.Background(), testIdentity, time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 44.0, snap.RecoveryScore)
	assert.Zero(t, snap.HRV)
	assert.Zero(t, snap.SpO2)
}

func TestFetchRecoveryWindowEmptyRecords(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"records": []}`))
	}))
	defer srv.Close()

	client := NewClient(nil, srv.URL, newFakeStore(linkedRecord()), &fakeRefresher{})
	snap, err := client.FetchRecoveryWindow(context.Background(), testIdentity, time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Zero(t, snap.RecoveryScore)
}

func TestNotLinkedWhenNoRecord(t *testing.T) {
	client := NewClient(nil, "http://127.0.0.1:0", newFakeStore(nil), &fakeRefresher{})
	_, err := client.FetchRecoveryWindow(context.Background(), testIdentity, time.Time{}, time.Time{})
	assert.ErrorIs(t, err, ErrNotLinked)
}

func TestNotLinkedWhenAccessTokenCleared(t *testing.T) {
	rec := linkedRecord()
	rec.AccessToken = ""
	client := NewClient(nil, "http://127.0.0.1:0", newFakeStore(rec), &fakeRefresher{})
	_, err := client.FetchRecoveryWindow(context.Background(), testIdentity, time.Time{}, time.Time{})
	assert.ErrorIs(t, err, ErrNotLinked)
}

func TestRefreshHappensExactlyOnce(t *testing.T) {
	var mu sync.Mutex
	var seenTokens []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		token := r.Header.Get("Authorization")
		seenTokens = append(seenTokens, token)
		mu.Unlock()
		if token != "Bearer at-new" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(recoveryBody))
	}))
	defer srv.Close()

	store := newFakeStore(linkedRecord())
	refresher := &fakeRefresher{result: credentials.Record{
		Identity:     testIdentity,
		AccessToken:  "at-new",
		RefreshToken: "rt-new",
	}}
	client := NewClient(nil, srv.URL, store, refresher)

	snap, err := client.FetchRecoveryWindow(context.Background(), testIdentity, time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 71.0, snap.RecoveryScore)
	assert.Equal(t, 1, refresher.calls)
	assert.Equal(t, []string{"Bearer at-old", "Bearer at-new"}, seenTokens)
	assert.Empty(t, store.invalidated)
}

func TestRefreshedTokenStillUnauthorizedDoesNotLoop(t *testing.T) {
	var calls int
	var mu sync.Mutex
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		mu.Unlock()
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	refresher := &fakeRefresher{result: credentials.Record{Identity: testIdentity, AccessToken: "at-new"}}
	client := NewClient(nil, srv.URL, newFakeStore(linkedRecord()), refresher)

	_, err := client.FetchRecoveryWindow(context.Background(), testIdentity, time.Time{}, time.Time{})
	var upstreamErr *UpstreamError
	require.ErrorAs(t, err, &upstreamErr)
	assert.Equal(t, http.StatusUnauthorized, upstreamErr.Status)
	assert.Equal(t, 1, refresher.calls)
	assert.Equal(t, 2, calls)
}

func TestNoRefreshTokenYieldsReauthRequired(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	rec := linkedRecord()
	rec.RefreshToken = ""
	store := newFakeStore(rec)
	client := NewClient(nil, srv.URL, store, &fakeRefresher{})

	_, err := client.FetchRecoveryWindow(context.Background(), testIdentity, time.Time{}, time.Time{})
	assert.ErrorIs(t, err, ErrReauthRequired)
	assert.Equal(t, []string{testIdentity}, store.invalidated)

	// The stored record is retained with the access token cleared, so the
	// next dispatcher turn lands in the login prompt.
	after, err := store.Get(context.Background(), testIdentity)
	require.NoError(t, err)
	assert.False(t, after.Usable())
}

func TestRefreshFailureInvalidatesAndRequiresReauth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	store := newFakeStore(linkedRecord())
	refresher := &fakeRefresher{err: assert.AnError}
	client := NewClient(nil, srv.URL, store, refresher)

	_, err := client.FetchRecoveryWindow(context.Background(), testIdentity, time.Time{}, time.Time{})
	assert.ErrorIs(t, err, ErrReauthRequired)
	assert.Equal(t, 1, refresher.calls)
	assert.Equal(t, []string{testIdentity}, store.invalidated)
}

func TestUpstreamErrorOnServerFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream exploded"))
	}))
	defer srv.Close()

	client := NewClient(nil, srv.URL, newFakeStore(linkedRecord()), &fakeRefresher{})
	_, err := client.FetchRecoveryWindow(context.Background(), testIdentity, time.Time{}, time.Time{})
	var upstreamErr *UpstreamError
	require.ErrorAs(t, err, &upstreamErr)
	assert.Equal(t, http.StatusBadGateway, upstreamErr.Status)
	assert.Contains(t, upstreamErr.Body, "upstream exploded")
}

func TestUpstreamErrorOnNonJSONBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>maintenance</html>"))
	}))
	defer srv.Close()

	client := NewClient(nil, srv.URL, newFakeStore(linkedRecord()), &fakeRefresher{})
	_, err := client.FetchRecoveryWindow(context.Background(), testIdentity, time.Time{}, time.Time{})
	var upstreamErr *UpstreamError
	require.ErrorAs(t, err, &upstreamErr)
	assert.Contains(t, upstreamErr.Body, "maintenance")
}

func TestFetchProfileAndSleepShareAuthPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/developer/v1/user/profile/basic":
			_, _ = w.Write([]byte(`{"user_id": 42, "email": "u@example.com", "first_name": "Ada"}`))
		case "/developer/v1/sleep":
			_, _ = w.Write([]byte(`{"records": [{"id": "s1", "score": {"sleep_performance_percentage": 88}}]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	client := NewClient(nil, srv.URL, newFakeStore(linkedRecord()), &fakeRefresher{})

	profile, err := client.FetchProfile(context.Background(), testIdentity)
	require.NoError(t, err)
	assert.Equal(t, int64(42), profile.UserID)
	assert.Equal(t, "Ada", profile.FirstName)

	sleep, err := client.FetchSleep(context.Background(), testIdentity)
	require.NoError(t, err)
	require.Len(t, sleep, 1)
	assert.Equal(t, 88.0, sleep[0].PerformancePct)
}
