package google

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"google.golang.org/api/option"
	people "google.golang.org/api/people/v1"

	"github.com/setu-dav/setu/internal/config"
	"github.com/setu-dav/setu/internal/storage"
	"github.com/setu-dav/setu/internal/vault"
)

const emailFetchTimeout = 10 * time.Second

// Login runs the OAuth2 installed-app flow:
//
//  1. Start a loopback listener on an OS-assigned port.
//  2. Open the Google consent URL in the default browser (also printed, for
//     headless setups).
//  3. Capture the code from the redirect and exchange it for tokens.
//  4. Persist the token to the vault and the on-disk token cache, and record
//     a marker row in the store.
//
// Returns the user's email, or "Authenticated" when the best-effort email
// fetch fails or times out.
func Login(ctx context.Context, clientID, clientSecret string, v vault.Vault, store *storage.Store, logger zerolog.Logger) (string, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", fmt.Errorf("start loopback listener: %w", err)
	}
	defer ln.Close()

	cfg := oauthConfig(clientID, clientSecret, fmt.Sprintf("http://%s/", ln.Addr().String()))
	state := uuid.NewString()
	authURL := cfg.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)

	// Always print the URL so the user can open it manually if the browser
	// launch fails (containers, SSH sessions).
	fmt.Fprintf(os.Stderr, "\n  Open this URL to sign in with Google:\n  %s\n\n", authURL)
	if err := openBrowser(authURL); err != nil {
		logger.Warn().Err(err).Msg("could not open browser, copy the URL from the terminal")
	}

	codeCh := make(chan string, 1)
	srv := &http.Server{Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("state") != state {
			http.Error(w, "state mismatch", http.StatusBadRequest)
			return
		}
		code := q.Get("code")
		if code == "" {
			http.Error(w, "missing authorization code", http.StatusBadRequest)
			return
		}
		fmt.Fprintln(w, "Signed in. You can close this window.")
		select {
		case codeCh <- code:
		default:
		}
	})}
	go srv.Serve(ln)
	defer srv.Close()

	var code string
	select {
	case code = <-codeCh:
	case <-ctx.Done():
		return "", ctx.Err()
	}

	tok, err := cfg.Exchange(ctx, code)
	if err != nil {
		return "", fmt.Errorf("exchange authorization code: %w", err)
	}

	tokenJSON, err := json.Marshal(tok)
	if err != nil {
		return "", fmt.Errorf("encode token: %w", err)
	}
	if err := v.Set(vault.KeyOAuthToken, string(tokenJSON)); err != nil {
		return "", fmt.Errorf("store token in vault: %w", err)
	}
	if tokenPath, err := config.TokenFilePath(); err == nil {
		if err := os.WriteFile(tokenPath, tokenJSON, 0o600); err != nil {
			logger.Warn().Err(err).Msg("could not write token cache file")
		}
	}

	// Marker row only; the token itself stays in the vault.
	if err := store.StoreOAuthToken(ctx, "<stored-in-keyring>", ""); err != nil {
		return "", fmt.Errorf("record login: %w", err)
	}
	logger.Info().Msg("oauth login successful")

	email := fetchUserEmail(ctx, cfg, tok, logger)
	if email != "Authenticated" {
		if err := store.StoreOAuthToken(ctx, "<stored-in-keyring>", email); err != nil {
			logger.Warn().Err(err).Msg("could not record email")
		}
	}
	return email, nil
}

// fetchUserEmail is best-effort with a hard timeout; the login flow never
// fails because of it.
func fetchUserEmail(ctx context.Context, cfg *oauth2.Config, tok *oauth2.Token, logger zerolog.Logger) string {
	ectx, cancel := context.WithTimeout(ctx, emailFetchTimeout)
	defer cancel()

	svc, err := people.NewService(ectx, option.WithTokenSource(cfg.TokenSource(ectx, tok)))
	if err != nil {
		logger.Warn().Err(err).Msg("could not build service for email fetch")
		return "Authenticated"
	}
	p, err := svc.People.Get("people/me").PersonFields("emailAddresses").Context(ectx).Do()
	if err != nil {
		logger.Warn().Err(err).Msg("could not fetch user email")
		return "Authenticated"
	}
	for _, addr := range p.EmailAddresses {
		if addr.Value != "" {
			return addr.Value
		}
	}
	return "Authenticated"
}
