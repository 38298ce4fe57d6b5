// Package credentials persists per-identity OAuth credential records.
package credentials

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/vitalinkhq/vitalink/internal/identity"
)

// Store reads and writes credential records in PostgreSQL.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewStore creates a credential store.
func NewStore(log *slog.Logger, db *sql.DB) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{
		db:     db,
		logger: log.With(slog.String("service", "credentials")),
	}
}

// Get returns the credential record for the identity, or ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (Record, error) {
	id, err := identity.NormalizeAndValidate(id)
	if err != nil {
		return Record{}, err
	}
	var rec Record
	err = s.db.QueryRowContext(ctx, `
		select identity, access_token, refresh_token, token_type, scope,
		       issued_at, expires_at, updated_at
		from credentials where identity = $1
	`, id).Scan(
		&rec.Identity, &rec.AccessToken, &rec.RefreshToken, &rec.TokenType,
		&rec.Scope, &rec.IssuedAt, &rec.ExpiresAt, &rec.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("get credential: %w", err)
	}
	return rec, nil
}

// Upsert replaces or creates the record for the identity in a single
// atomic statement. Repeated callbacks for the same identity overwrite,
// never duplicate.
func (s *Store) Upsert(ctx context.Context, id string, fields TokenFields) error {
	id, err := identity.NormalizeAndValidate(id)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	_, err = s.db.ExecContext(ctx, `
		insert into credentials
			(identity, access_token, refresh_token, token_type, scope, issued_at, expires_at, updated_at)
		values ($1,$2,$3,$4,$5,$6,$7,$8)
		on conflict (identity) do update set
			access_token  = excluded.access_token,
			refresh_token = excluded.refresh_token,
			token_type    = excluded.token_type,
			scope         = excluded.scope,
			issued_at     = excluded.issued_at,
			expires_at    = excluded.expires_at,
			updated_at    = excluded.updated_at
	`, id, fields.AccessToken, fields.RefreshToken, fields.TokenType,
		fields.Scope, fields.IssuedAt.UTC(), fields.ExpiresAt.UTC(), now)
	if err != nil {
		return fmt.Errorf("upsert credential: %w", err)
	}
	s.logger.Info("credential upserted", slog.String("identity", id))
	return nil
}

// InvalidateAccessToken clears only the access token, keeping the refresh
// token and the record itself so the next turn can prompt for re-login
// without losing scope history.
func (s *Store) InvalidateAccessToken(ctx context.Context, id string) error {
	id, err := identity.NormalizeAndValidate(id)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		update credentials set access_token = '', updated_at = $2 where identity = $1
	`, id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("invalidate access token: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	s.logger.Warn("access token invalidated", slog.String("identity", id))
	return nil
}

// ExpiringBefore lists identities whose credentials expire before the cutoff
// and still hold both tokens. Invalidated records are excluded: their refresh
// token already failed, so the sweep would retry a known-dead grant forever.
func (s *Store) ExpiringBefore(ctx context.Context, cutoff time.Time) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		select identity, access_token, refresh_token, token_type, scope,
		       issued_at, expires_at, updated_at
		from credentials
		where expires_at < $1 and refresh_token <> '' and access_token <> ''
		order by expires_at asc
	`, cutoff.UTC())
	if err != nil {
		return nil, fmt.Errorf("list expiring credentials: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(
			&rec.Identity, &rec.AccessToken, &rec.RefreshToken, &rec.TokenType,
			&rec.Scope, &rec.IssuedAt, &rec.ExpiresAt, &rec.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan credential: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
