// Package readings persists the append-only biomarker reading log and
// serves trend queries over it.
package readings

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/vitalinkhq/vitalink/internal/identity"
)

// Store reads and appends biomarker readings in PostgreSQL.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

// NewStore creates a readings store.
func NewStore(log *slog.Logger, db *sql.DB) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{
		db:     db,
		logger: log.With(slog.String("service", "readings")),
		now:    time.Now,
	}
}

// Append writes one reading observed now. Prior readings are never touched.
func (s *Store) Append(ctx context.Context, id string, markers map[string]float64, rawText, cleanedText string) (Reading, error) {
	id, err := identity.NormalizeAndValidate(id)
	if err != nil {
		return Reading{}, err
	}
	if markers == nil {
		markers = map[string]float64{}
	}
	payload, err := json.Marshal(markers)
	if err != nil {
		return Reading{}, fmt.Errorf("marshal markers: %w", err)
	}

	reading := Reading{
		ID:          uuid.NewString(),
		Identity:    id,
		ObservedAt:  s.now().UTC(),
		Markers:     markers,
		RawText:     rawText,
		CleanedText: cleanedText,
	}
	_, err = s.db.ExecContext(ctx, `
		insert into biomarker_readings (id, identity, observed_at, markers, raw_text, cleaned_text)
		values ($1,$2,$3,$4,$5,$6)
	`, reading.ID, reading.Identity, reading.ObservedAt, payload, reading.RawText, reading.CleanedText)
	if err != nil {
		return Reading{}, fmt.Errorf("append reading: %w", err)
	}
	s.logger.Info("reading appended",
		slog.String("identity", id),
		slog.Int("markers", len(markers)),
	)
	return reading, nil
}

// History returns up to limit readings containing the named marker, sorted
// by observation time in the requested order. One query serves both
// charting (ascending) and display (descending).
func (s *Store) History(ctx context.Context, id, marker string, limit int, order Order) ([]Reading, error) {
	id, err := identity.NormalizeAndValidate(id)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 10
	}
	direction := "desc"
	if order == Ascending {
		direction = "asc"
	}
	query := fmt.Sprintf(`
		select id, identity, observed_at, markers, raw_text, cleaned_text
		from biomarker_readings
		where identity = $1 and markers ? $2
		order by observed_at %s
		limit $3
	`, direction)
	return s.queryReadings(ctx, query, id, marker, limit)
}

// Recent returns the newest readings for the identity regardless of marker.
func (s *Store) Recent(ctx context.Context, id string, limit int) ([]Reading, error) {
	id, err := identity.NormalizeAndValidate(id)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 5
	}
	return s.queryReadings(ctx, `
		select id, identity, observed_at, markers, raw_text, cleaned_text
		from biomarker_readings
		where identity = $1
		order by observed_at desc
		limit $2
	`, id, limit)
}

// Sink adapts the store to the ingestion pipeline's append-only contract,
// which does not care about the created Reading.
type Sink struct {
	Store *Store
}

func (s Sink) Append(ctx context.Context, id string, markers map[string]float64, rawText, cleanedText string) error {
	_, err := s.Store.Append(ctx, id, markers, rawText, cleanedText)
	return err
}

func (s *Store) queryReadings(ctx context.Context, query string, args ...any) ([]Reading, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query readings: %w", err)
	}
	defer rows.Close()

	var out []Reading
	for rows.Next() {
		var r Reading
		var markersRaw []byte
		if err := rows.Scan(&r.ID, &r.Identity, &r.ObservedAt, &markersRaw, &r.RawText, &r.CleanedText); err != nil {
			return nil, fmt.Errorf("scan reading: %w", err)
		}
		if err := json.Unmarshal(markersRaw, &r.Markers); err != nil {
			return nil, fmt.Errorf("unmarshal markers: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
