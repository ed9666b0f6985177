package storage

import (
	"context"
	"database/sql"
	"errors"
	"strings"
)

// Contact is a cached address-book entry.
type Contact struct {
	ResourceName    string
	Etag            string
	DisplayName     string
	VCard           string
	SearchablePhone string
}

// UpsertContact inserts or replaces a contact row keyed by resource name.
func (s *Store) UpsertContact(ctx context.Context, c Contact) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO contacts (resource_name, etag, display_name, vcard, searchable_phone, updated_at)
		VALUES (?, ?, ?, ?, ?, datetime('now'))
		ON CONFLICT(resource_name) DO UPDATE SET
			etag             = excluded.etag,
			display_name     = excluded.display_name,
			vcard            = excluded.vcard,
			searchable_phone = excluded.searchable_phone,
			updated_at       = excluded.updated_at
	`, c.ResourceName, c.Etag, c.DisplayName, c.VCard, c.SearchablePhone)
	return err
}

// DeleteContact removes a contact by resource name. Deleting a missing row
// is not an error.
func (s *Store) DeleteContact(ctx context.Context, resourceName string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM contacts WHERE resource_name = ?`, resourceName)
	return err
}

// GetContact returns a single contact, or nil when the resource is unknown.
func (s *Store) GetContact(ctx context.Context, resourceName string) (*Contact, error) {
	c := Contact{ResourceName: resourceName}
	err := s.db.QueryRowContext(ctx, `
		SELECT etag, display_name, vcard, searchable_phone
		FROM contacts WHERE resource_name = ?
	`, resourceName).Scan(&c.Etag, &c.DisplayName, &c.VCard, &c.SearchablePhone)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// AllContacts returns every cached contact ordered by display name.
func (s *Store) AllContacts(ctx context.Context) ([]Contact, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT resource_name, etag, display_name, vcard, searchable_phone
		FROM contacts ORDER BY display_name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Contact
	for rows.Next() {
		var c Contact
		if err := rows.Scan(&c.ResourceName, &c.Etag, &c.DisplayName, &c.VCard, &c.SearchablePhone); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// SearchByPhone finds contacts whose stored numbers match the normalized
// query by digit suffix in either direction, so country-code differences do
// not break the match: a search for 4156466123 finds +14156466123 and vice
// versa. A broad SQL LIKE narrows the candidates, the suffix check refines
// them here.
func (s *Store) SearchByPhone(ctx context.Context, normalizedNumber string) ([]Contact, error) {
	queryDigits := strings.TrimPrefix(normalizedNumber, "+")
	if queryDigits == "" {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT resource_name, etag, display_name, vcard, searchable_phone
		FROM contacts
		WHERE searchable_phone LIKE ?
		ORDER BY display_name
	`, "%"+queryDigits+"%")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Contact
	for rows.Next() {
		var c Contact
		if err := rows.Scan(&c.ResourceName, &c.Etag, &c.DisplayName, &c.VCard, &c.SearchablePhone); err != nil {
			return nil, err
		}
		if phoneSuffixMatch(c.SearchablePhone, queryDigits) {
			out = append(out, c)
		}
	}
	return out, rows.Err()
}

func phoneSuffixMatch(searchable, queryDigits string) bool {
	for _, stored := range strings.Fields(searchable) {
		storedDigits := strings.TrimPrefix(stored, "+")
		if strings.HasSuffix(storedDigits, queryDigits) || strings.HasSuffix(queryDigits, storedDigits) {
			return true
		}
	}
	return false
}

// ApplySync applies one sync cycle's changes in a single transaction:
// upserts, deletions, then the new sync token (skipped when empty).
func (s *Store) ApplySync(ctx context.Context, upserts []Contact, deletions []string, syncToken string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, c := range upserts {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO contacts (resource_name, etag, display_name, vcard, searchable_phone, updated_at)
				VALUES (?, ?, ?, ?, ?, datetime('now'))
				ON CONFLICT(resource_name) DO UPDATE SET
					etag             = excluded.etag,
					display_name     = excluded.display_name,
					vcard            = excluded.vcard,
					searchable_phone = excluded.searchable_phone,
					updated_at       = excluded.updated_at
			`, c.ResourceName, c.Etag, c.DisplayName, c.VCard, c.SearchablePhone); err != nil {
				return err
			}
		}
		for _, rn := range deletions {
			if _, err := tx.ExecContext(ctx, `DELETE FROM contacts WHERE resource_name = ?`, rn); err != nil {
				return err
			}
		}
		if syncToken != "" {
			if _, err := tx.ExecContext(ctx, `
				UPDATE sync_metadata SET sync_token = ?, last_sync = datetime('now') WHERE id = 1
			`, syncToken); err != nil {
				return err
			}
		}
		return nil
	})
}
