// Package google wraps the People API for the sync engine and the server's
// on-demand search fallback.
//
// The searchContacts endpoint needs a "warmup" call (empty query) before real
// searches return results. SearchByPhone re-warms automatically once the
// warmup is older than the TTL.
package google

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	googleauth "golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	people "google.golang.org/api/people/v1"

	"github.com/setu-dav/setu/internal/vault"
)

// personFields is requested from the People API by both sync and search.
const personFields = "names,emailAddresses,phoneNumbers,addresses,organizations,birthdays,photos,metadata"

const (
	// warmupTTL is how long a warmup remains valid before re-warming.
	warmupTTL = 300 * time.Second
	// postWarmupDelay is the pause after a fresh warmup before the real
	// search is issued.
	postWarmupDelay = 2 * time.Second

	listPageSize   = 1000
	searchPageSize = 5
)

// Client is an authenticated People API wrapper, safe for concurrent use.
type Client struct {
	svc    *people.Service
	logger zerolog.Logger

	mu       sync.Mutex
	warmedAt time.Time
}

func oauthConfig(clientID, clientSecret, redirectURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     googleauth.Endpoint,
		RedirectURL:  redirectURL,
		Scopes:       []string{people.ContactsReadonlyScope},
	}
}

// NewClient builds a Client from the OAuth token stored in the vault. The
// client secret is passed explicitly (it also lives in the vault, never in
// the config file).
func NewClient(ctx context.Context, clientID, clientSecret string, v vault.Vault, logger zerolog.Logger) (*Client, error) {
	tokenJSON, err := v.Get(vault.KeyOAuthToken)
	if err != nil {
		return nil, fmt.Errorf("load oauth token: %w", err)
	}
	var tok oauth2.Token
	if err := json.Unmarshal([]byte(tokenJSON), &tok); err != nil {
		return nil, fmt.Errorf("parse oauth token: %w", err)
	}

	cfg := oauthConfig(clientID, clientSecret, "http://localhost")
	svc, err := people.NewService(ctx, option.WithTokenSource(cfg.TokenSource(ctx, &tok)))
	if err != nil {
		return nil, fmt.Errorf("build people service: %w", err)
	}

	return &Client{
		svc:    svc,
		logger: logger.With().Str("component", "google").Logger(),
	}, nil
}

// ListDelta fetches the connection list, paging until exhaustion. With an
// empty syncToken this is a full listing; otherwise only changes since that
// token are returned (deleted contacts carry metadata.deleted). Returns the
// accumulated persons and the nextSyncToken for the following cycle.
func (c *Client) ListDelta(ctx context.Context, syncToken string) ([]*people.Person, string, error) {
	var (
		persons   []*people.Person
		nextToken string
		pageToken string
	)
	for {
		call := c.svc.People.Connections.List("people/me").
			PersonFields(personFields).
			PageSize(listPageSize).
			RequestSyncToken(true).
			Context(ctx)
		if syncToken != "" {
			call = call.SyncToken(syncToken)
		}
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		resp, err := call.Do()
		if err != nil {
			return nil, "", fmt.Errorf("people.connections.list: %w", err)
		}

		persons = append(persons, resp.Connections...)
		if resp.NextSyncToken != "" {
			nextToken = resp.NextSyncToken
		}
		if resp.NextPageToken == "" {
			break
		}
		pageToken = resp.NextPageToken
	}
	return persons, nextToken, nil
}

// WarmupSearch primes Google's server-side search cache with an empty query.
func (c *Client) WarmupSearch(ctx context.Context) error {
	_, err := c.svc.People.SearchContacts().
		Query("").
		ReadMask(personFields).
		PageSize(1).
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("warmup searchContacts: %w", err)
	}

	c.mu.Lock()
	c.warmedAt = time.Now()
	c.mu.Unlock()
	c.logger.Info().Msg("searchContacts warmup complete")
	return nil
}

func (c *Client) isWarm() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.warmedAt.IsZero() && time.Since(c.warmedAt) < warmupTTL
}

// ensureWarm re-warms when the cache has gone stale. A fresh warmup is
// followed by a mandatory pause before the real search.
func (c *Client) ensureWarm(ctx context.Context) error {
	if c.isWarm() {
		return nil
	}
	if err := c.WarmupSearch(ctx); err != nil {
		return err
	}
	select {
	case <-time.After(postWarmupDelay):
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

// SearchByPhone runs a live searchContacts query, warming up first when
// needed. Returns nil when no contact matches.
func (c *Client) SearchByPhone(ctx context.Context, number string) (*people.Person, error) {
	if err := c.ensureWarm(ctx); err != nil {
		return nil, err
	}

	resp, err := c.svc.People.SearchContacts().
		Query(number).
		ReadMask(personFields).
		PageSize(searchPageSize).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("searchContacts by phone: %w", err)
	}

	for _, r := range resp.Results {
		if r.Person != nil {
			return r.Person, nil
		}
	}
	return nil, nil
}
