package vault

import (
	"crypto/rand"
	"encoding/hex"
	"errors"

	"github.com/zalando/go-keyring"
)

// Service is the keyring service name under which all secrets are stored.
const Service = "setu"

// Secret keys used by the daemon.
const (
	KeyDBKey              = "db_key"
	KeyOAuthToken         = "oauth_token"
	KeyCardDAVPassword    = "carddav_password"
	KeyGoogleClientSecret = "google_client_secret"
)

// ErrNotFound is returned by Get when no secret is stored under the key.
var ErrNotFound = errors.New("vault: secret not found")

// Vault abstracts OS-level secret storage. The production implementation is
// the platform keyring; tests use Memory.
type Vault interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Delete(key string) error
}

// GetOrInit returns the stored secret, generating and storing a fresh one on
// first use.
func GetOrInit(v Vault, key string, generate func() string) (string, error) {
	val, err := v.Get(key)
	if err == nil {
		return val, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return "", err
	}
	val = generate()
	if err := v.Set(key, val); err != nil {
		return "", err
	}
	return val, nil
}

// Has reports whether a secret exists under the key.
func Has(v Vault, key string) bool {
	_, err := v.Get(key)
	return err == nil
}

// Keyring is the OS keyring implementation (Credential Manager on Windows,
// Secret Service on Linux, Keychain on macOS).
type Keyring struct {
	Service string
}

func NewKeyring() *Keyring {
	return &Keyring{Service: Service}
}

func (k *Keyring) Get(key string) (string, error) {
	val, err := keyring.Get(k.Service, key)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", ErrNotFound
	}
	return val, err
}

func (k *Keyring) Set(key, value string) error {
	return keyring.Set(k.Service, key, value)
}

func (k *Keyring) Delete(key string) error {
	err := keyring.Delete(k.Service, key)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	return err
}

// GenerateHexKey returns n random bytes hex-encoded (2n chars). Used for the
// 256-bit database encryption key.
func GenerateHexKey(n int) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		panic(err) // crypto/rand never fails on supported platforms
	}
	return hex.EncodeToString(buf)
}

const passwordCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// GeneratePassword returns a random alphanumeric string of length n.
func GeneratePassword(n int) string {
	// Reject bytes past the largest multiple of the charset size, a plain
	// modulo would skew the draw towards the first few characters.
	max := byte(256 - 256%len(passwordCharset))
	out := make([]byte, 0, n)
	buf := make([]byte, n)
	for len(out) < n {
		if _, err := rand.Read(buf); err != nil {
			panic(err)
		}
		for _, b := range buf {
			if b >= max {
				continue
			}
			out = append(out, passwordCharset[int(b)%len(passwordCharset)])
			if len(out) == n {
				break
			}
		}
	}
	return string(out)
}
