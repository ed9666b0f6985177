package carddav

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
)

const rootPropfindXML = `<?xml version="1.0" encoding="UTF-8"?>
<D:multistatus xmlns:D="DAV:" xmlns:C="urn:ietf:params:xml:ns:carddav">
  <D:response>
    <D:href>/</D:href>
    <D:propstat>
      <D:prop>
        <D:resourcetype>
          <D:collection/>
        </D:resourcetype>
        <D:current-user-principal>
          <D:href>/principals/</D:href>
        </D:current-user-principal>
      </D:prop>
      <D:status>HTTP/1.1 200 OK</D:status>
    </D:propstat>
  </D:response>
</D:multistatus>`

const principalsPropfindXML = `<?xml version="1.0" encoding="UTF-8"?>
<D:multistatus xmlns:D="DAV:" xmlns:C="urn:ietf:params:xml:ns:carddav">
  <D:response>
    <D:href>/principals/</D:href>
    <D:propstat>
      <D:prop>
        <D:resourcetype>
          <D:collection/>
        </D:resourcetype>
        <C:addressbook-home-set>
          <D:href>/addressbook/</D:href>
        </C:addressbook-home-set>
      </D:prop>
      <D:status>HTTP/1.1 200 OK</D:status>
    </D:propstat>
  </D:response>
</D:multistatus>`

// handleWellKnown redirects per RFC 6764.
func (s *Server) handleWellKnown(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Location", "/")
	w.WriteHeader(http.StatusMovedPermanently)
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	s.logger.Info().Str("method", r.Method).Msg("/ request")
	switch r.Method {
	case http.MethodOptions:
		writeOptions(w)
	case "PROPFIND":
		writeMultistatus(w, rootPropfindXML)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handlePrincipals(w http.ResponseWriter, r *http.Request) {
	s.logger.Info().Str("method", r.Method).Msg("/principals/ request")
	switch r.Method {
	case http.MethodOptions:
		writeOptions(w)
	case "PROPFIND":
		writeMultistatus(w, principalsPropfindXML)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleAddressbook(w http.ResponseWriter, r *http.Request) {
	depth := r.Header.Get("Depth")
	if depth == "" {
		depth = "0"
	}
	s.logger.Info().
		Str("method", r.Method).
		Str("depth", depth).
		Str("user_agent", r.UserAgent()).
		Msg("/addressbook/ request")

	switch r.Method {
	case http.MethodOptions:
		writeOptions(w)
	case "PROPFIND":
		s.addressbookPropfind(w, r, depth)
	case "REPORT":
		s.addressbookReport(w, r)
	default:
		methodNotAllowed(w)
	}
}

// addressbookPropfind answers Depth 0 with the collection's own properties
// and Depth 1 with one extra entry per contact.
func (s *Server) addressbookPropfind(w http.ResponseWriter, r *http.Request, depth string) {
	contacts, err := s.store.AllContacts(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("store error in PROPFIND")
		internalError(w)
		return
	}

	ctag := strconv.FormatInt(time.Now().Unix(), 10)

	var xml strings.Builder
	xml.WriteString(`<?xml version="1.0" encoding="UTF-8"?>
<D:multistatus xmlns:D="DAV:" xmlns:C="urn:ietf:params:xml:ns:carddav" xmlns:CS="http://calendarserver.org/ns/">
  <D:response>
    <D:href>/addressbook/</D:href>
    <D:propstat>
      <D:prop>
        <D:resourcetype>
          <D:collection/>
          <C:addressbook/>
        </D:resourcetype>
        <D:displayname>Google Contacts</D:displayname>
        <CS:getctag>`)
	xml.WriteString(xmlEscape(ctag))
	xml.WriteString(`</CS:getctag>
        <D:supported-report-set>
          <D:supported-report>
            <D:report><C:addressbook-multiget/></D:report>
          </D:supported-report>
          <D:supported-report>
            <D:report><C:addressbook-query/></D:report>
          </D:supported-report>
        </D:supported-report-set>
      </D:prop>
      <D:status>HTTP/1.1 200 OK</D:status>
    </D:propstat>
  </D:response>
`)

	if depth == "1" || depth == "infinity" {
		for _, c := range contacts {
			xml.WriteString("  <D:response>\n    <D:href>")
			xml.WriteString(xmlEscape(ContactHref(c.ResourceName)))
			xml.WriteString("</D:href>\n    <D:propstat>\n      <D:prop>\n")
			xml.WriteString("        <D:getetag>\"")
			xml.WriteString(xmlEscape(c.Etag))
			xml.WriteString("\"</D:getetag>\n")
			xml.WriteString("        <D:getcontenttype>text/vcard;charset=utf-8</D:getcontenttype>\n")
			xml.WriteString("        <D:resourcetype/>\n")
			xml.WriteString("      </D:prop>\n      <D:status>HTTP/1.1 200 OK</D:status>\n")
			xml.WriteString("    </D:propstat>\n  </D:response>\n")
		}
	}
	xml.WriteString("</D:multistatus>")

	s.logger.Info().
		Str("depth", depth).
		Int("contact_count", len(contacts)).
		Msg("PROPFIND /addressbook/ response")
	writeMultistatus(w, xml.String())
}

func (s *Server) handleContact(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	switch r.Method {
	case http.MethodGet, http.MethodHead:
		s.contactGet(w, r, id)
	case "PROPFIND":
		s.contactPropfind(w, r, id)
	case http.MethodOptions:
		writeOptions(w)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) contactGet(w http.ResponseWriter, r *http.Request, id string) {
	resourceName := IDToResourceName(id)
	s.logger.Info().Str("resource_name", resourceName).Msg("GET contact")

	c, err := s.store.GetContact(r.Context(), resourceName)
	if err != nil {
		s.logger.Error().Err(err).Msg("store error in GET")
		internalError(w)
		return
	}
	if c == nil {
		s.logger.Info().Str("resource_name", resourceName).Msg("GET response 404")
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}

	s.logger.Info().
		Str("resource_name", resourceName).
		Str("etag", c.Etag).
		Int("len", len(c.VCard)).
		Msg("GET response 200")
	w.Header().Set("Content-Type", "text/vcard;charset=utf-8")
	w.Header().Set("ETag", `"`+c.Etag+`"`)
	w.Write([]byte(c.VCard))
}

func (s *Server) contactPropfind(w http.ResponseWriter, r *http.Request, id string) {
	resourceName := IDToResourceName(id)

	c, err := s.store.GetContact(r.Context(), resourceName)
	if err != nil {
		s.logger.Error().Err(err).Msg("store error in contact PROPFIND")
		internalError(w)
		return
	}
	if c == nil {
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}

	xml := fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<D:multistatus xmlns:D="DAV:" xmlns:C="urn:ietf:params:xml:ns:carddav">
  <D:response>
    <D:href>%s</D:href>
    <D:propstat>
      <D:prop>
        <D:getetag>"%s"</D:getetag>
        <D:getcontenttype>text/vcard;charset=utf-8</D:getcontenttype>
        <D:getcontentlength>%d</D:getcontentlength>
        <D:resourcetype/>
      </D:prop>
      <D:status>HTTP/1.1 200 OK</D:status>
    </D:propstat>
  </D:response>
</D:multistatus>`,
		xmlEscape("/addressbook/"+id), xmlEscape(c.Etag), len(c.VCard))
	writeMultistatus(w, xml)
}
