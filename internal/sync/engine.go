// Package sync replicates Google contacts into the local store.
//
// Flow:
//  1. First run  → full sync (fetch everything, store the syncToken).
//  2. Later runs → incremental sync (deltas via the syncToken).
//  3. Token expired (410 Gone) → fall back to a full sync.
package sync

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"
	people "google.golang.org/api/people/v1"

	"github.com/setu-dav/setu/internal/google"
	"github.com/setu-dav/setu/internal/storage"
	"github.com/setu-dav/setu/internal/vault"
	"github.com/setu-dav/setu/pkg/vcard"
)

// Upstream is the slice of the Google client the engine needs.
type Upstream interface {
	ListDelta(ctx context.Context, syncToken string) ([]*people.Person, string, error)
}

// Engine runs the periodic sync loop. TriggerSync requests an immediate
// cycle from other goroutines.
type Engine struct {
	api      Upstream
	store    *storage.Store
	vault    vault.Vault
	interval time.Duration
	trigger  chan struct{}
	logger   zerolog.Logger
}

func New(api Upstream, store *storage.Store, v vault.Vault, interval time.Duration, logger zerolog.Logger) *Engine {
	return &Engine{
		api:      api,
		store:    store,
		vault:    v,
		interval: interval,
		trigger:  make(chan struct{}, 4),
		logger:   logger.With().Str("component", "sync").Logger(),
	}
}

// TriggerSync requests an immediate sync. Never blocks; requests beyond the
// channel capacity are dropped, a pending cycle covers them anyway.
func (e *Engine) TriggerSync() {
	select {
	case e.trigger <- struct{}{}:
	default:
	}
}

// Run loops until ctx is cancelled: one cycle, then wait for the interval
// timer or a manual trigger.
func (e *Engine) Run(ctx context.Context) {
	e.logger.Info().Dur("interval", e.interval).Msg("sync loop started")
	timer := time.NewTimer(e.interval)
	defer timer.Stop()

	for {
		if err := e.runOnce(ctx); err != nil {
			e.logger.Error().Err(err).Msg("sync failed")
		}

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(e.interval)

		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		case <-e.trigger:
			e.logger.Info().Msg("immediate sync triggered")
		}
	}
}

func (e *Engine) runOnce(ctx context.Context) error {
	if !vault.Has(e.vault, vault.KeyOAuthToken) {
		e.logger.Warn().Msg("not authenticated, skipping sync")
		return nil
	}

	token, err := e.store.GetSyncToken(ctx)
	if err != nil {
		return err
	}
	if token == "" {
		e.logger.Info().Msg("no sync token found, performing full sync")
		return e.fullSync(ctx)
	}

	if err := e.incrementalSync(ctx, token); err != nil {
		if google.IsSyncTokenExpired(err) {
			e.logger.Warn().Msg("sync token expired, falling back to full sync")
			return e.fullSync(ctx)
		}
		return err
	}
	return nil
}

func (e *Engine) fullSync(ctx context.Context) error {
	persons, nextToken, err := e.api.ListDelta(ctx, "")
	if err != nil {
		return err
	}

	upserts := make([]storage.Contact, 0, len(persons))
	for _, p := range persons {
		if c, ok := e.buildContact(p); ok {
			upserts = append(upserts, c)
		}
	}
	if err := e.store.ApplySync(ctx, upserts, nil, nextToken); err != nil {
		return err
	}

	e.logger.Info().Int("contacts", len(upserts)).Msg("full sync complete")
	return nil
}

func (e *Engine) incrementalSync(ctx context.Context, syncToken string) error {
	persons, nextToken, err := e.api.ListDelta(ctx, syncToken)
	if err != nil {
		return err
	}

	var (
		upserts   []storage.Contact
		deletions []string
	)
	for _, p := range persons {
		if p.Metadata != nil && p.Metadata.Deleted {
			if p.ResourceName != "" {
				deletions = append(deletions, p.ResourceName)
			}
			continue
		}
		if c, ok := e.buildContact(p); ok {
			upserts = append(upserts, c)
		}
	}
	if err := e.store.ApplySync(ctx, upserts, deletions, nextToken); err != nil {
		return err
	}

	if len(upserts) > 0 || len(deletions) > 0 {
		e.logger.Info().
			Int("upserted", len(upserts)).
			Int("deleted", len(deletions)).
			Msg("incremental sync complete")
	} else {
		e.logger.Debug().Msg("incremental sync: no changes")
	}
	return nil
}

func (e *Engine) buildContact(p *people.Person) (storage.Contact, bool) {
	if p.ResourceName == "" {
		e.logger.Warn().Msg("skipping person with no resource name")
		return storage.Contact{}, false
	}
	return storage.Contact{
		ResourceName:    p.ResourceName,
		Etag:            p.Etag,
		DisplayName:     vcard.DisplayName(p),
		VCard:           vcard.FromPerson(p),
		SearchablePhone: SearchablePhones(p),
	}, true
}

// SearchablePhones normalizes all of a person's numbers into one
// space-separated string for substring search.
func SearchablePhones(p *people.Person) string {
	var phones []string
	for _, n := range p.PhoneNumbers {
		if norm := storage.NormalizePhone(n.Value); norm != "" {
			phones = append(phones, norm)
		}
	}
	return strings.Join(phones, " ")
}
