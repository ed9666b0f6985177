// Package carddav serves the cached Google contacts as a read-only CardDAV
// address book on loopback.
//
// Discovery chain (RFC 6764 / RFC 6352):
//
//	GET  /.well-known/carddav           → 301 /
//	PROPFIND /                          → current-user-principal → /principals/
//	PROPFIND /principals/               → addressbook-home-set  → /addressbook/
//	PROPFIND /addressbook/   (Depth 0)  → address book properties
//	PROPFIND /addressbook/   (Depth 1)  → properties + per-contact entries
//	REPORT   /addressbook/              → addressbook-multiget or addressbook-query
//	GET      /addressbook/<id>.vcf      → individual vCard 3.0
//
// When an addressbook-query REPORT carries a TEL prop-filter and the local
// cache has no match, the server searches Google in real time, caches the
// result and returns it immediately.
package carddav

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	people "google.golang.org/api/people/v1"

	"github.com/setu-dav/setu/internal/storage"
	"github.com/setu-dav/setu/internal/vault"
)

// Upstream is the slice of the Google client the server needs for on-demand
// phone lookups.
type Upstream interface {
	SearchByPhone(ctx context.Context, number string) (*people.Person, error)
}

// Server holds the handler state. api is nil when Google credentials are not
// configured; reactive lookup is then disabled.
type Server struct {
	store  *storage.Store
	api    Upstream
	vault  vault.Vault
	logger zerolog.Logger
}

func NewServer(store *storage.Store, api Upstream, v vault.Vault, logger zerolog.Logger) *Server {
	return &Server{
		store:  store,
		api:    api,
		vault:  v,
		logger: logger.With().Str("component", "carddav").Logger(),
	}
}

// Handler builds the router with Basic-auth applied to every route.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/.well-known/carddav", s.handleWellKnown)
	r.HandleFunc("/", s.handleRoot)
	r.HandleFunc("/principals/", s.handlePrincipals)
	r.HandleFunc("/addressbook/", s.handleAddressbook)
	r.HandleFunc("/addressbook/{id}", s.handleContact)
	r.Use(s.authMiddleware)
	return r
}

// authMiddleware checks HTTP Basic auth against the vault password. OPTIONS
// passes through for DAV discovery. The password is re-read from the vault
// on every request so changes take effect without a restart.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		expected, err := vault.GetOrInit(s.vault, vault.KeyCardDAVPassword, func() string {
			return vault.GeneratePassword(24)
		})
		if err != nil {
			s.logger.Error().Err(err).Msg("failed to read password from vault")
			internalError(w)
			return
		}

		if _, password, ok := r.BasicAuth(); ok && password == expected {
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("WWW-Authenticate", `Basic realm="Setu CardDAV"`)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
	})
}
