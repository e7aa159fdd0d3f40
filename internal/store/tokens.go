package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// LocationToken is a cached per-location CRM access token.
type LocationToken struct {
	LocationID  string
	AccessToken string
	ExpiresAt   time.Time
}

// AgencyToken is the agency-level OAuth credential used to mint location
// tokens. A single row keyed by a fixed key.
type AgencyToken struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// LocationToken returns the cached token for a location, or nil when no
// token has been stored.
func (s *Store) LocationToken(ctx context.Context, locationID string) (*LocationToken, error) {
	var t LocationToken
	err := s.pool.QueryRow(ctx,
		`SELECT location_id, access_token, expires_at FROM location_token WHERE location_id = $1`,
		locationID).Scan(&t.LocationID, &t.AccessToken, &t.ExpiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying location token: %w", err)
	}
	return &t, nil
}

// UpsertLocationToken stores or refreshes a location token.
func (s *Store) UpsertLocationToken(ctx context.Context, t LocationToken) error {
	_, err := s.pool.Exec(ctx, `INSERT INTO location_token (location_id, access_token, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (location_id) DO UPDATE SET
			access_token = EXCLUDED.access_token,
			expires_at = EXCLUDED.expires_at`,
		t.LocationID, t.AccessToken, t.ExpiresAt)
	if err != nil {
		return fmt.Errorf("upserting location token: %w", err)
	}
	return nil
}

// AgencyToken returns the stored agency credential, or nil when the agency
// has never been authorized.
func (s *Store) AgencyToken(ctx context.Context) (*AgencyToken, error) {
	var t AgencyToken
	err := s.pool.QueryRow(ctx,
		`SELECT access_token, refresh_token, expires_at FROM agency_token WHERE key = 'agency'`).Scan(
		&t.AccessToken, &t.RefreshToken, &t.ExpiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying agency token: %w", err)
	}
	return &t, nil
}

// UpsertAgencyToken stores the agency credential after an OAuth refresh.
func (s *Store) UpsertAgencyToken(ctx context.Context, t AgencyToken) error {
	_, err := s.pool.Exec(ctx, `INSERT INTO agency_token (key, access_token, refresh_token, expires_at)
		VALUES ('agency', $1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET
			access_token = EXCLUDED.access_token,
			refresh_token = EXCLUDED.refresh_token,
			expires_at = EXCLUDED.expires_at`,
		t.AccessToken, t.RefreshToken, t.ExpiresAt)
	if err != nil {
		return fmt.Errorf("upserting agency token: %w", err)
	}
	return nil
}
