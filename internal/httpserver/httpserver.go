// Package httpserver wraps the CardDAV handler in an http.Server bound to
// loopback, with optional TLS.
package httpserver

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

type Server struct {
	http   *http.Server
	useTLS bool
	logger zerolog.Logger
}

// New builds a server on 127.0.0.1:port. A nil tlsConfig means plain HTTP.
func New(port uint16, handler http.Handler, tlsConfig *tls.Config, logger zerolog.Logger) *Server {
	addr := fmt.Sprintf("127.0.0.1:%d", port)
	srv := &Server{
		http: &http.Server{
			Addr:         addr,
			Handler:      handler,
			TLSConfig:    tlsConfig,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 120 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		useTLS: tlsConfig != nil,
		logger: logger.With().Str("component", "httpserver").Logger(),
	}
	scheme := "http"
	if srv.useTLS {
		scheme = "https"
	}
	logger.Info().Msgf("CardDAV server listening on %s://%s", scheme, addr)
	return srv
}

func (s *Server) Start() error {
	if s.useTLS {
		return s.http.ListenAndServeTLS("", "")
	}
	return s.http.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
