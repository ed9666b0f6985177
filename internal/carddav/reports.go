package carddav

import (
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	people "google.golang.org/api/people/v1"

	"github.com/setu-dav/setu/internal/storage"
	"github.com/setu-dav/setu/internal/sync"
	"github.com/setu-dav/setu/pkg/vcard"
)

// reportBodyLimit caps REPORT request bodies.
const reportBodyLimit = 64 * 1024

// addressbookReport handles addressbook-multiget, generic addressbook-query,
// and the on-demand TEL search with Google fallback:
//
//  1. Normalize the number from the TEL prop-filter.
//  2. Search the local searchable_phone column.
//  3. On a miss, query Google in real time when a client is configured.
//  4. Upsert the result with a fresh etag and return it in the multistatus.
func (s *Server) addressbookReport(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, reportBodyLimit))
	if err != nil {
		http.Error(w, "request body too large", http.StatusBadRequest)
		return
	}
	bodyStr := string(body)
	s.logger.Debug().Str("body", bodyStr).Msg("REPORT request body")

	if strings.Contains(bodyStr, "addressbook-multiget") {
		s.reportMultiget(w, r, bodyStr)
		return
	}

	if rawPhone := extractTelFilter(bodyStr); rawPhone != "" {
		normalized := storage.NormalizePhone(rawPhone)
		s.logger.Debug().
			Str("raw", rawPhone).
			Str("normalized", normalized).
			Msg("TEL prop-filter in REPORT")
		if normalized == "" {
			s.writeReport(w, nil)
			return
		}
		s.reportPhoneQuery(w, r, rawPhone, normalized)
		return
	}

	// Generic addressbook-query: the whole collection.
	contacts, err := s.store.AllContacts(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("store error in REPORT")
		internalError(w)
		return
	}
	s.writeReport(w, contacts)
}

// reportMultiget returns only the contacts whose hrefs were requested, or
// everything when the body lists none.
func (s *Server) reportMultiget(w http.ResponseWriter, r *http.Request, body string) {
	contacts, err := s.store.AllContacts(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("store error in REPORT")
		internalError(w)
		return
	}

	requested := extractHrefs(body)
	if len(requested) == 0 {
		s.writeReport(w, contacts)
		return
	}

	wanted := make(map[string]bool, len(requested))
	for _, href := range requested {
		wanted[href] = true
	}
	var filtered []storage.Contact
	for _, c := range contacts {
		if wanted[ContactHref(c.ResourceName)] {
			filtered = append(filtered, c)
		}
	}
	s.writeReport(w, filtered)
}

// reportPhoneQuery answers a TEL-filtered query: local cache first, then a
// live Google search written through the cache. No match yields an empty
// multistatus, never an error.
func (s *Server) reportPhoneQuery(w http.ResponseWriter, r *http.Request, rawPhone, normalized string) {
	hits, err := s.store.SearchByPhone(r.Context(), normalized)
	if err != nil {
		s.logger.Error().Err(err).Msg("store error in phone search")
		internalError(w)
		return
	}
	if len(hits) > 0 {
		s.writeReport(w, hits)
		return
	}

	if s.api != nil {
		s.logger.Info().Str("phone", rawPhone).Msg("no local match, querying Google")
		person, err := s.api.SearchByPhone(r.Context(), rawPhone)
		switch {
		case err != nil:
			s.logger.Error().Err(err).Msg("Google search failed")
		case person != nil:
			c, err := s.cachePerson(r, person)
			if err != nil {
				s.logger.Error().Err(err).Msg("failed to cache Google result")
				internalError(w)
				return
			}
			s.writeReport(w, []storage.Contact{c})
			return
		default:
			s.logger.Debug().Str("phone", rawPhone).Msg("Google search returned no results")
		}
	}

	s.writeReport(w, nil)
}

// cachePerson writes an on-demand Google result through the store. Records
// without an etag get a generated one so clients still see change tracking.
func (s *Server) cachePerson(r *http.Request, p *people.Person) (storage.Contact, error) {
	resourceName := p.ResourceName
	if resourceName == "" {
		resourceName = "unknown"
	}
	etag := p.Etag
	if etag == "" {
		etag = uuid.NewString()
	}

	c := storage.Contact{
		ResourceName:    resourceName,
		Etag:            etag,
		DisplayName:     vcard.DisplayName(p),
		VCard:           vcard.FromPerson(p),
		SearchablePhone: sync.SearchablePhones(p),
	}
	if err := s.store.UpsertContact(r.Context(), c); err != nil {
		return storage.Contact{}, err
	}

	s.logger.Info().
		Str("resource_name", c.ResourceName).
		Str("display_name", c.DisplayName).
		Msg("cached on-demand Google contact")
	return c, nil
}

func (s *Server) writeReport(w http.ResponseWriter, contacts []storage.Contact) {
	names := make([]string, 0, len(contacts))
	for _, c := range contacts {
		names = append(names, c.ResourceName)
	}
	s.logger.Info().
		Int("count", len(contacts)).
		Strs("contacts", names).
		Msg("REPORT response")
	writeMultistatus(w, buildReportXML(contacts))
}
