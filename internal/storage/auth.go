package storage

import (
	"context"
	"database/sql"
	"errors"
)

// GetSyncToken returns the current People API sync token, empty on first run.
func (s *Store) GetSyncToken(ctx context.Context) (string, error) {
	var token sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT sync_token FROM sync_metadata WHERE id = 1`).Scan(&token)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return token.String, nil
}

// SetSyncToken persists a new sync token after a successful sync.
func (s *Store) SetSyncToken(ctx context.Context, token string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE sync_metadata SET sync_token = ?, last_sync = datetime('now') WHERE id = 1`,
		token)
	return err
}

// StoreOAuthToken stores the OAuth2 token JSON and the user's Google email.
// The token itself lives in the vault; this row mirrors presence and email
// for the settings surface.
func (s *Store) StoreOAuthToken(ctx context.Context, tokenJSON, googleEmail string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO oauth_tokens (id, token_json, google_email) VALUES (1, ?, ?)`,
		tokenJSON, googleEmail)
	return err
}

// GetOAuthToken returns the stored token JSON, empty when not logged in.
func (s *Store) GetOAuthToken(ctx context.Context) (string, error) {
	var tokenJSON string
	err := s.db.QueryRowContext(ctx,
		`SELECT token_json FROM oauth_tokens WHERE id = 1`).Scan(&tokenJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return tokenJSON, nil
}

// HasOAuthToken reports whether a token row exists.
func (s *Store) HasOAuthToken(ctx context.Context) bool {
	var n int64
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM oauth_tokens WHERE id = 1`).Scan(&n); err != nil {
		return false
	}
	return n > 0
}

// ClearOAuthToken removes the stored token row (logout).
func (s *Store) ClearOAuthToken(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM oauth_tokens WHERE id = 1`)
	return err
}

// GetGoogleEmail returns the authenticated user's email, empty when unknown.
// Rows written before the column existed hold NULL.
func (s *Store) GetGoogleEmail(ctx context.Context) (string, error) {
	var email sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT google_email FROM oauth_tokens WHERE id = 1`).Scan(&email)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return email.String, nil
}
