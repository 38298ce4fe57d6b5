package whoop

import (
	"errors"
	"fmt"
)

var (
	// ErrNotLinked indicates no usable credential exists for the identity.
	ErrNotLinked = errors.New("identity not linked")
	// ErrReauthRequired indicates the credential is unusable and cannot be
	// refreshed; the user must go through the login flow again.
	ErrReauthRequired = errors.New("reauthorization required")
)

// UpstreamError carries a non-2xx or malformed response from the WHOOP API.
type UpstreamError struct {
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("whoop upstream error: status %d: %s", e.Status, e.Body)
}

// Snapshot is the transient result of one recovery query. It is never
// persisted; it belongs to the request that produced it.
type Snapshot struct {
	RecoveryScore    float64 `json:"recovery_score"`
	HRV              float64 `json:"hrv"`
	RestingHeartRate float64 `json:"resting_heart_rate"`
	SpO2             float64 `json:"spo2"`
}

// Profile is the linked WHOOP account's profile.
type Profile struct {
	UserID    int64  `json:"user_id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// SleepSummary is one sleep activity record.
type SleepSummary struct {
	ID             string  `json:"id"`
	Start          string  `json:"start"`
	End            string  `json:"end"`
	PerformancePct float64 `json:"sleep_performance_percentage"`
}

// WorkoutSummary is one workout activity record.
type WorkoutSummary struct {
	ID         string  `json:"id"`
	SportName  string  `json:"sport_name"`
	Start      string  `json:"start"`
	End        string  `json:"end"`
	StrainRate float64 `json:"strain"`
}
