package vault

import (
	"errors"

	"github.com/rs/zerolog"
	"github.com/zalando/go-keyring"
)

// legacyService is the keyring service name used before the product rename.
const legacyService = "wincard"

var migrateKeys = []string{
	KeyDBKey,
	KeyOAuthToken,
	KeyCardDAVPassword,
	KeyGoogleClientSecret,
}

// MigrateFromLegacy copies keyring entries from the old "wincard" service to
// "setu". Entries that already exist under the new service are left alone,
// and old entries are not removed. Safe to call on every startup.
func MigrateFromLegacy(logger zerolog.Logger) {
	for _, key := range migrateKeys {
		if _, err := keyring.Get(Service, key); err == nil {
			continue
		}
		val, err := keyring.Get(legacyService, key)
		if err != nil {
			if !errors.Is(err, keyring.ErrNotFound) {
				logger.Debug().Err(err).Str("key", key).Msg("legacy keyring read failed")
			}
			continue
		}
		if err := keyring.Set(Service, key, val); err != nil {
			logger.Warn().Err(err).Str("key", key).Msg("failed to migrate keyring entry")
			continue
		}
		logger.Info().Str("key", key).Msg("migrated keyring entry from wincard")
	}
}
