package link

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/vitalinkhq/vitalink/internal/credentials"
)

// ExpiringLister lists credentials nearing expiry.
type ExpiringLister interface {
	ExpiringBefore(ctx context.Context, cutoff time.Time) ([]credentials.Record, error)
}

// Sweeper proactively refreshes credentials before they expire so most
// user turns never hit the 401-refresh-retry path.
type Sweeper struct {
	service  *Service
	store    ExpiringLister
	horizon  time.Duration
	schedule string
	cron     *cron.Cron
	logger   *slog.Logger
}

// NewSweeper creates a Sweeper. schedule is a cron spec; horizon is how far
// ahead of expiry a credential qualifies for refresh.
func NewSweeper(log *slog.Logger, service *Service, store ExpiringLister, schedule string, horizon time.Duration) *Sweeper {
	if log == nil {
		log = slog.Default()
	}
	if horizon <= 0 {
		horizon = time.Hour
	}
	return &Sweeper{
		service:  service,
		store:    store,
		horizon:  horizon,
		schedule: schedule,
		logger:   log.With(slog.String("service", "link_sweeper")),
	}
}

// Start schedules the sweep. It returns after registering the cron entry.
func (s *Sweeper) Start() error {
	c := cron.New()
	if _, err := c.AddFunc(s.schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		s.Sweep(ctx)
	}); err != nil {
		return err
	}
	c.Start()
	s.cron = c
	s.logger.Info("refresh sweep scheduled", slog.String("schedule", s.schedule))
	return nil
}

// Stop halts the schedule and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
}

// Sweep refreshes every credential expiring within the horizon. Failures
// are logged per identity and never abort the rest of the batch.
func (s *Sweeper) Sweep(ctx context.Context) {
	cutoff := time.Now().UTC().Add(s.horizon)
	recs, err := s.store.ExpiringBefore(ctx, cutoff)
	if err != nil {
		s.logger.Error("list expiring credentials failed", slog.Any("error", err))
		return
	}
	for _, rec := range recs {
		if _, err := s.service.RefreshCredential(ctx, rec.Identity, rec.RefreshToken); err != nil {
			s.logger.Warn("proactive refresh failed",
				slog.String("identity", rec.Identity),
				slog.Any("error", err),
			)
		}
	}
	if len(recs) > 0 {
		s.logger.Info("refresh sweep finished", slog.Int("candidates", len(recs)))
	}
}
