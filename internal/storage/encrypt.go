package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"
)

// MigrateToEncrypted converts a plaintext database at path into one encrypted
// with hexKey. Already-encrypted and not-yet-existing databases are left
// alone. The rows are copied into a sibling file opened under the key, which
// then atomically replaces the original.
func MigrateToEncrypted(path, hexKey string, logger zerolog.Logger) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	if readable(dsn(path, hexKey)) {
		return nil
	}
	if !readable(dsn(path, "")) {
		return errors.New("existing database is neither unencrypted nor encrypted with the stored key")
	}

	encPath := path + ".enc"
	_ = os.Remove(encPath)

	dst, err := Open(encPath, hexKey, logger)
	if err != nil {
		return fmt.Errorf("create encrypted copy: %w", err)
	}

	src, err := sql.Open("sqlite3", dsn(path, ""))
	if err != nil {
		dst.Close()
		return err
	}

	copyErr := copyRows(src, dst.db)
	_ = src.Close()
	dst.Close()
	if copyErr != nil {
		_ = os.Remove(encPath)
		return fmt.Errorf("copy rows into encrypted database: %w", copyErr)
	}

	// The plaintext WAL may hold unencrypted pages.
	_ = os.Remove(path + "-wal")
	_ = os.Remove(path + "-shm")
	if err := os.Rename(encPath, path); err != nil {
		return fmt.Errorf("replace unencrypted database with encrypted copy: %w", err)
	}

	logger.Info().Str("path", path).Msg("migrated database to encrypted storage")
	return nil
}

func readable(dsn string) bool {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return false
	}
	defer db.Close()
	var n int64
	return db.QueryRow(`SELECT count(*) FROM sqlite_master`).Scan(&n) == nil
}

// copyRows moves the three tables across. Column probes fall back to the
// pre-migration shapes so very old plaintext databases still convert.
func copyRows(src, dst *sql.DB) error {
	rows, err := src.Query(`
		SELECT resource_name, etag, display_name, vcard, searchable_phone FROM contacts`)
	if err != nil {
		rows, err = src.Query(`
			SELECT resource_name, etag, display_name, vcard, '' FROM contacts`)
	}
	if err == nil {
		defer rows.Close()
		for rows.Next() {
			var rn, etag, dn, vc, phone string
			if err := rows.Scan(&rn, &etag, &dn, &vc, &phone); err != nil {
				return err
			}
			if _, err := dst.Exec(`
				INSERT OR REPLACE INTO contacts (resource_name, etag, display_name, vcard, searchable_phone)
				VALUES (?, ?, ?, ?, ?)`, rn, etag, dn, vc, phone); err != nil {
				return err
			}
		}
		if err := rows.Err(); err != nil {
			return err
		}
	}

	var token, lastSync sql.NullString
	err = src.QueryRow(`SELECT sync_token, last_sync FROM sync_metadata WHERE id = 1`).
		Scan(&token, &lastSync)
	if err == nil {
		if _, err := dst.Exec(`
			UPDATE sync_metadata SET sync_token = ?, last_sync = ? WHERE id = 1`,
			token, lastSync); err != nil {
			return err
		}
	}

	var tokenJSON, email string
	err = src.QueryRow(`SELECT token_json, google_email FROM oauth_tokens WHERE id = 1`).
		Scan(&tokenJSON, &email)
	if err != nil {
		email = ""
		err = src.QueryRow(`SELECT token_json FROM oauth_tokens WHERE id = 1`).Scan(&tokenJSON)
	}
	if err == nil {
		if _, err := dst.Exec(`
			INSERT OR REPLACE INTO oauth_tokens (id, token_json, google_email)
			VALUES (1, ?, ?)`, tokenJSON, email); err != nil {
			return err
		}
	}

	return nil
}
