package carddav

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	people "google.golang.org/api/people/v1"

	"github.com/setu-dav/setu/internal/storage"
	"github.com/setu-dav/setu/internal/vault"
)

const testPassword = "test-password"

type stubUpstream struct {
	person  *people.Person
	err     error
	queries []string
}

func (u *stubUpstream) SearchByPhone(_ context.Context, number string) (*people.Person, error) {
	u.queries = append(u.queries, number)
	return u.person, u.err
}

func testLogger() zerolog.Logger {
	return zerolog.New(os.Stderr).Level(zerolog.Disabled)
}

func newTestServer(t *testing.T, api Upstream) (*Server, *storage.Store, http.Handler) {
	t.Helper()
	store, err := storage.Open(filepath.Join(t.TempDir(), "contacts.db"), "", testLogger())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(store.Close)

	v := vault.NewMemory()
	if err := v.Set(vault.KeyCardDAVPassword, testPassword); err != nil {
		t.Fatal(err)
	}
	srv := NewServer(store, api, v, testLogger())
	return srv, store, srv.Handler()
}

func davRequest(method, path, body string) *http.Request {
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, path, nil)
	} else {
		r = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	r.SetBasicAuth("setu", testPassword)
	return r
}

func seed(t *testing.T, store *storage.Store, contacts ...storage.Contact) {
	t.Helper()
	for _, c := range contacts {
		if err := store.UpsertContact(context.Background(), c); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
}

func TestContactHrefRoundTrip(t *testing.T) {
	rn := "people/c1234567890"
	href := ContactHref(rn)
	if href != "/addressbook/people_c1234567890.vcf" {
		t.Fatalf("ContactHref = %q", href)
	}
	if got := IDToResourceName("people_c1234567890.vcf"); got != rn {
		t.Fatalf("IDToResourceName = %q, want %q", got, rn)
	}
}

func TestXMLEscape(t *testing.T) {
	if got := xmlEscape(`a<b>c&d"e`); got != "a&lt;b&gt;c&amp;d&quot;e" {
		t.Fatalf("xmlEscape = %q", got)
	}
	if got := xmlEscape("plain text"); got != "plain text" {
		t.Fatalf("xmlEscape should leave plain text alone, got %q", got)
	}
}

func TestExtractHrefs(t *testing.T) {
	namespaced := `<?xml version="1.0"?>
<C:addressbook-multiget xmlns:D="DAV:" xmlns:C="urn:ietf:params:xml:ns:carddav">
  <D:prop><D:getetag/><C:address-data/></D:prop>
  <D:href>/addressbook/people_c111.vcf</D:href>
  <D:href>/addressbook/people_c222.vcf</D:href>
</C:addressbook-multiget>`
	hrefs := extractHrefs(namespaced)
	if len(hrefs) != 2 || hrefs[0] != "/addressbook/people_c111.vcf" || hrefs[1] != "/addressbook/people_c222.vcf" {
		t.Fatalf("unexpected hrefs: %v", hrefs)
	}

	bare := `<addressbook-multiget>
  <href>/addressbook/people_c999.vcf</href>
</addressbook-multiget>`
	hrefs = extractHrefs(bare)
	if len(hrefs) != 1 || hrefs[0] != "/addressbook/people_c999.vcf" {
		t.Fatalf("unexpected hrefs: %v", hrefs)
	}
}

func TestExtractTelFilter(t *testing.T) {
	namespaced := `<?xml version="1.0"?>
<C:addressbook-query xmlns:D="DAV:" xmlns:C="urn:ietf:params:xml:ns:carddav">
  <D:prop><D:getetag/><C:address-data/></D:prop>
  <C:filter>
    <C:prop-filter name="TEL">
      <C:text-match collation="i;unicode-casemap" match-type="contains">5551234567</C:text-match>
    </C:prop-filter>
  </C:filter>
</C:addressbook-query>`
	if got := extractTelFilter(namespaced); got != "5551234567" {
		t.Fatalf("namespaced: got %q", got)
	}

	bare := `<addressbook-query>
  <filter>
    <prop-filter name="TEL">
      <text-match match-type="contains">+1-555-999-0000</text-match>
    </prop-filter>
  </filter>
</addressbook-query>`
	if got := extractTelFilter(bare); got != "+1-555-999-0000" {
		t.Fatalf("bare: got %q", got)
	}

	fnOnly := `<C:addressbook-query xmlns:C="urn:ietf:params:xml:ns:carddav">
  <C:filter>
    <C:prop-filter name="FN">
      <C:text-match>John</C:text-match>
    </C:prop-filter>
  </C:filter>
</C:addressbook-query>`
	if got := extractTelFilter(fnOnly); got != "" {
		t.Fatalf("FN filter should not match, got %q", got)
	}
	if got := extractTelFilter(""); got != "" {
		t.Fatalf("empty body: got %q", got)
	}
	if got := extractTelFilter("<empty/>"); got != "" {
		t.Fatalf("no filter: got %q", got)
	}
}

func TestDiscoveryChain(t *testing.T) {
	_, _, h := newTestServer(t, nil)

	// Well-known redirect.
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, davRequest(http.MethodGet, "/.well-known/carddav", ""))
	if rec.Code != http.StatusMovedPermanently {
		t.Fatalf("well-known status = %d", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/" {
		t.Fatalf("well-known Location = %q", loc)
	}

	// Root PROPFIND: current-user-principal.
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, davRequest("PROPFIND", "/", ""))
	if rec.Code != http.StatusMultiStatus {
		t.Fatalf("root PROPFIND status = %d", rec.Code)
	}
	if dav := rec.Header().Get("DAV"); dav != "1, 3, addressbook" {
		t.Fatalf("DAV header = %q", dav)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.Contains(ct, "application/xml") {
		t.Fatalf("Content-Type = %q", ct)
	}
	body := rec.Body.String()
	if !strings.HasPrefix(body, "<?xml") {
		t.Fatal("body should start with XML declaration")
	}
	if !strings.Contains(body, "<D:current-user-principal>") ||
		!strings.Contains(body, "<D:href>/principals/</D:href>") {
		t.Fatalf("root PROPFIND missing principal pointer:\n%s", body)
	}

	// Principals PROPFIND: addressbook-home-set.
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, davRequest("PROPFIND", "/principals/", ""))
	if rec.Code != http.StatusMultiStatus {
		t.Fatalf("principals PROPFIND status = %d", rec.Code)
	}
	body = rec.Body.String()
	if !strings.Contains(body, "<C:addressbook-home-set>") ||
		!strings.Contains(body, "<D:href>/addressbook/</D:href>") {
		t.Fatalf("principals PROPFIND missing home set:\n%s", body)
	}

	// Addressbook PROPFIND Depth 0: properties with a numeric getctag.
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, davRequest("PROPFIND", "/addressbook/", ""))
	if rec.Code != http.StatusMultiStatus {
		t.Fatalf("addressbook PROPFIND status = %d", rec.Code)
	}
	body = rec.Body.String()
	for _, want := range []string{
		"<C:addressbook/>",
		"<D:displayname>Google Contacts</D:displayname>",
		"<CS:getctag>",
		"<C:addressbook-multiget/>",
		"<C:addressbook-query/>",
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("addressbook PROPFIND missing %q:\n%s", want, body)
		}
	}
}

func TestOptionsAdvertisesDAVWithoutAuth(t *testing.T) {
	_, _, h := newTestServer(t, nil)

	// No credentials at all.
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/addressbook/", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("OPTIONS status = %d", rec.Code)
	}
	if dav := rec.Header().Get("DAV"); dav != "1, 3, addressbook" {
		t.Fatalf("DAV header = %q", dav)
	}
	if allow := rec.Header().Get("Allow"); !strings.Contains(allow, "REPORT") {
		t.Fatalf("Allow header = %q", allow)
	}
}

func TestBasicAuthRequired(t *testing.T) {
	_, _, h := newTestServer(t, nil)

	// Missing credentials.
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("PROPFIND", "/addressbook/", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if got := rec.Header().Get("WWW-Authenticate"); got != `Basic realm="Setu CardDAV"` {
		t.Fatalf("WWW-Authenticate = %q", got)
	}

	// Wrong password.
	rec = httptest.NewRecorder()
	req := httptest.NewRequest("PROPFIND", "/addressbook/", nil)
	req.SetBasicAuth("setu", "wrong")
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong password status = %d, want 401", rec.Code)
	}

	// Username is ignored, only the password counts.
	rec = httptest.NewRecorder()
	req = httptest.NewRequest("PROPFIND", "/addressbook/", nil)
	req.SetBasicAuth("anything-at-all", testPassword)
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusMultiStatus {
		t.Fatalf("valid password status = %d, want 207", rec.Code)
	}
}

func TestAuthGeneratesPasswordOnFirstUse(t *testing.T) {
	store, err := storage.Open(filepath.Join(t.TempDir(), "contacts.db"), "", testLogger())
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	v := vault.NewMemory() // no password stored yet
	h := NewServer(store, nil, v, testLogger()).Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("PROPFIND", "/", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}

	pw, err := v.Get(vault.KeyCardDAVPassword)
	if err != nil {
		t.Fatalf("password should have been generated: %v", err)
	}
	if len(pw) != 24 {
		t.Fatalf("generated password length = %d, want 24", len(pw))
	}

	// The generated password works.
	rec = httptest.NewRecorder()
	req := httptest.NewRequest("PROPFIND", "/", nil)
	req.SetBasicAuth("setu", pw)
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusMultiStatus {
		t.Fatalf("status with generated password = %d, want 207", rec.Code)
	}
}

func TestPropfindDepth1ListsContacts(t *testing.T) {
	_, store, h := newTestServer(t, nil)
	seed(t, store,
		storage.Contact{ResourceName: "people/c1", Etag: "e1", DisplayName: "Alice", VCard: "BEGIN:VCARD\r\nEND:VCARD\r\n"},
		storage.Contact{ResourceName: "people/c2", Etag: "e2", DisplayName: "Bob", VCard: "BEGIN:VCARD\r\nEND:VCARD\r\n"},
	)

	// Depth 0: no children.
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, davRequest("PROPFIND", "/addressbook/", ""))
	if strings.Contains(rec.Body.String(), "people_c1.vcf") {
		t.Fatal("Depth 0 should not list children")
	}

	// Depth 1: one response per contact.
	rec = httptest.NewRecorder()
	req := davRequest("PROPFIND", "/addressbook/", "")
	req.Header.Set("Depth", "1")
	h.ServeHTTP(rec, req)
	body := rec.Body.String()
	if !strings.Contains(body, "/addressbook/people_c1.vcf") ||
		!strings.Contains(body, "/addressbook/people_c2.vcf") {
		t.Fatalf("Depth 1 should list children:\n%s", body)
	}
	if !strings.Contains(body, `<D:getetag>"e1"</D:getetag>`) {
		t.Fatalf("child entries should carry etags:\n%s", body)
	}
}

func TestReportMultiget(t *testing.T) {
	_, store, h := newTestServer(t, nil)
	seed(t, store,
		storage.Contact{ResourceName: "people/c111", Etag: "etag_aaa", DisplayName: "Alice", VCard: "BEGIN:VCARD\r\nFN:Alice\r\nEND:VCARD\r\n"},
		storage.Contact{ResourceName: "people/c222", Etag: "etag_bbb", DisplayName: "Bob", VCard: "BEGIN:VCARD\r\nFN:Bob\r\nEND:VCARD\r\n"},
		storage.Contact{ResourceName: "people/c333", Etag: "etag_ccc", DisplayName: "Carol", VCard: "BEGIN:VCARD\r\nFN:Carol\r\nEND:VCARD\r\n"},
	)

	body := `<?xml version="1.0"?>
<C:addressbook-multiget xmlns:D="DAV:" xmlns:C="urn:ietf:params:xml:ns:carddav">
  <D:prop><D:getetag/><C:address-data/></D:prop>
  <D:href>/addressbook/people_c111.vcf</D:href>
  <D:href>/addressbook/people_c333.vcf</D:href>
</C:addressbook-multiget>`

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, davRequest("REPORT", "/addressbook/", body))
	if rec.Code != http.StatusMultiStatus {
		t.Fatalf("status = %d", rec.Code)
	}
	xml := rec.Body.String()
	if got := strings.Count(xml, "<D:response>"); got != 2 {
		t.Fatalf("expected 2 responses, got %d:\n%s", got, xml)
	}
	if !strings.Contains(xml, "FN:Alice") || !strings.Contains(xml, "FN:Carol") {
		t.Fatalf("requested contacts missing:\n%s", xml)
	}
	if strings.Contains(xml, "FN:Bob") {
		t.Fatalf("unrequested contact included:\n%s", xml)
	}
	if !strings.Contains(xml, `"etag_aaa"`) {
		t.Fatalf("etag missing:\n%s", xml)
	}

	// No hrefs listed: the whole collection.
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, davRequest("REPORT", "/addressbook/",
		`<C:addressbook-multiget xmlns:C="urn:ietf:params:xml:ns:carddav"/>`))
	if got := strings.Count(rec.Body.String(), "<D:response>"); got != 3 {
		t.Fatalf("empty multiget should return all contacts, got %d", got)
	}
}

func TestReportQueryLocalPhoneHit(t *testing.T) {
	api := &stubUpstream{}
	_, store, h := newTestServer(t, api)
	seed(t, store, storage.Contact{
		ResourceName:    "people/c1",
		Etag:            "e1",
		DisplayName:     "Alice",
		VCard:           "BEGIN:VCARD\r\nFN:Alice\r\nEND:VCARD\r\n",
		SearchablePhone: "+15559876543",
	})

	body := `<C:addressbook-query xmlns:D="DAV:" xmlns:C="urn:ietf:params:xml:ns:carddav">
  <C:filter>
    <C:prop-filter name="TEL">
      <C:text-match match-type="contains">(555) 987-6543</C:text-match>
    </C:prop-filter>
  </C:filter>
</C:addressbook-query>`

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, davRequest("REPORT", "/addressbook/", body))
	xml := rec.Body.String()
	if !strings.Contains(xml, "FN:Alice") {
		t.Fatalf("local hit missing:\n%s", xml)
	}
	if len(api.queries) != 0 {
		t.Fatalf("local hit should not reach Google, got queries %v", api.queries)
	}
}

func TestReportQueryReactiveGoogleFallback(t *testing.T) {
	api := &stubUpstream{person: &people.Person{
		ResourceName: "people/c98765",
		Etag:         "google_etag_xyz",
		Names:        []*people.Name{{DisplayName: "Eve Searcher", GivenName: "Eve"}},
		PhoneNumbers: []*people.PhoneNumber{{Value: "+1 (555) 987-6543", Type: "mobile"}},
	}}
	_, store, h := newTestServer(t, api)

	body := `<C:addressbook-query xmlns:D="DAV:" xmlns:C="urn:ietf:params:xml:ns:carddav">
  <C:filter>
    <C:prop-filter name="TEL">
      <C:text-match match-type="contains">+1 (555) 987-6543</C:text-match>
    </C:prop-filter>
  </C:filter>
</C:addressbook-query>`

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, davRequest("REPORT", "/addressbook/", body))
	if rec.Code != http.StatusMultiStatus {
		t.Fatalf("status = %d", rec.Code)
	}
	xml := rec.Body.String()
	if !strings.Contains(xml, "FN:Eve Searcher") {
		t.Fatalf("Google result missing from response:\n%s", xml)
	}
	if len(api.queries) != 1 || api.queries[0] != "+1 (555) 987-6543" {
		t.Fatalf("raw phone should be passed to Google, got %v", api.queries)
	}

	// The result was written through the cache.
	c, err := store.GetContact(context.Background(), "people/c98765")
	if err != nil || c == nil {
		t.Fatalf("contact not cached: %v %v", c, err)
	}
	if c.Etag != "google_etag_xyz" {
		t.Fatalf("cached etag = %q", c.Etag)
	}

	// A second identical query is served locally.
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, davRequest("REPORT", "/addressbook/", body))
	if !strings.Contains(rec.Body.String(), "FN:Eve Searcher") {
		t.Fatal("cached contact should answer the repeat query")
	}
	if len(api.queries) != 1 {
		t.Fatalf("repeat query should not reach Google again, got %v", api.queries)
	}
}

func TestReportQueryNoMatchReturnsEmptyMultistatus(t *testing.T) {
	api := &stubUpstream{} // person nil: Google miss
	_, _, h := newTestServer(t, api)

	body := `<C:addressbook-query xmlns:C="urn:ietf:params:xml:ns:carddav">
  <C:filter>
    <C:prop-filter name="TEL">
      <C:text-match>0000000</C:text-match>
    </C:prop-filter>
  </C:filter>
</C:addressbook-query>`

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, davRequest("REPORT", "/addressbook/", body))
	if rec.Code != http.StatusMultiStatus {
		t.Fatalf("status = %d, want 207 even with no match", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "<D:response>") {
		t.Fatalf("expected empty multistatus:\n%s", rec.Body.String())
	}
}

func TestReportQueryGoogleErrorDegradesToEmpty(t *testing.T) {
	api := &stubUpstream{err: context.DeadlineExceeded}
	_, _, h := newTestServer(t, api)

	body := `<C:addressbook-query xmlns:C="urn:ietf:params:xml:ns:carddav">
  <C:filter>
    <C:prop-filter name="TEL">
      <C:text-match>5551112222</C:text-match>
    </C:prop-filter>
  </C:filter>
</C:addressbook-query>`

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, davRequest("REPORT", "/addressbook/", body))
	if rec.Code != http.StatusMultiStatus {
		t.Fatalf("upstream failure should degrade to empty 207, got %d", rec.Code)
	}
}

func TestReportGenericQueryReturnsAll(t *testing.T) {
	_, store, h := newTestServer(t, nil)
	seed(t, store,
		storage.Contact{ResourceName: "people/c1", Etag: "e1", DisplayName: "Alice", VCard: "BEGIN:VCARD\r\nFN:Alice\r\nEND:VCARD\r\n"},
		storage.Contact{ResourceName: "people/c2", Etag: "e2", DisplayName: "Bob", VCard: "BEGIN:VCARD\r\nFN:Bob\r\nEND:VCARD\r\n"},
	)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, davRequest("REPORT", "/addressbook/",
		`<C:addressbook-query xmlns:C="urn:ietf:params:xml:ns:carddav"/>`))
	if got := strings.Count(rec.Body.String(), "<D:response>"); got != 2 {
		t.Fatalf("generic query should return all contacts, got %d responses", got)
	}
}

func TestReportBodyTooLarge(t *testing.T) {
	_, _, h := newTestServer(t, nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, davRequest("REPORT", "/addressbook/", strings.Repeat("x", 65*1024)))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("oversized body status = %d, want 400", rec.Code)
	}
}

func TestContactGet(t *testing.T) {
	_, store, h := newTestServer(t, nil)
	vc := "BEGIN:VCARD\r\nVERSION:3.0\r\nFN:Alice\r\nEND:VCARD\r\n"
	seed(t, store, storage.Contact{ResourceName: "people/c1", Etag: "e1", DisplayName: "Alice", VCard: vc})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, davRequest(http.MethodGet, "/addressbook/people_c1.vcf", ""))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/vcard;charset=utf-8" {
		t.Fatalf("Content-Type = %q", ct)
	}
	if etag := rec.Header().Get("ETag"); etag != `"e1"` {
		t.Fatalf("ETag = %q", etag)
	}
	if rec.Body.String() != vc {
		t.Fatalf("body = %q", rec.Body.String())
	}

	// Unknown contact.
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, davRequest(http.MethodGet, "/addressbook/people_c404.vcf", ""))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("missing contact status = %d, want 404", rec.Code)
	}
}

func TestContactPropfind(t *testing.T) {
	_, store, h := newTestServer(t, nil)
	vc := "BEGIN:VCARD\r\nVERSION:3.0\r\nFN:Alice\r\nEND:VCARD\r\n"
	seed(t, store, storage.Contact{ResourceName: "people/c1", Etag: "e1", DisplayName: "Alice", VCard: vc})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, davRequest("PROPFIND", "/addressbook/people_c1.vcf", ""))
	if rec.Code != http.StatusMultiStatus {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{
		"<D:href>/addressbook/people_c1.vcf</D:href>",
		`<D:getetag>"e1"</D:getetag>`,
		"<D:getcontenttype>text/vcard;charset=utf-8</D:getcontenttype>",
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("missing %q:\n%s", want, body)
		}
	}
	if !strings.Contains(body, "<D:getcontentlength>") {
		t.Fatalf("missing content length:\n%s", body)
	}
}

func TestWriteMethodsRejected(t *testing.T) {
	_, store, h := newTestServer(t, nil)
	seed(t, store, storage.Contact{ResourceName: "people/c1", Etag: "e1", VCard: "BEGIN:VCARD\r\nEND:VCARD\r\n"})

	for _, tc := range []struct{ method, path string }{
		{"PUT", "/addressbook/people_c1.vcf"},
		{"DELETE", "/addressbook/people_c1.vcf"},
		{"MKCOL", "/addressbook/"},
		{"POST", "/"},
	} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, davRequest(tc.method, tc.path, ""))
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("%s %s = %d, want 405", tc.method, tc.path, rec.Code)
		}
	}
}

func TestReportXMLGeneration(t *testing.T) {
	xml := buildReportXML([]storage.Contact{
		{ResourceName: "people/c111", Etag: "etag_aaa", VCard: "BEGIN:VCARD\r\nFN:Alice\r\nEND:VCARD\r\n"},
		{ResourceName: "people/c222", Etag: "etag_bbb", VCard: "BEGIN:VCARD\r\nFN:Bob\r\nEND:VCARD\r\n"},
	})

	if !strings.HasPrefix(xml, "<?xml") {
		t.Fatal("missing XML declaration")
	}
	if !strings.Contains(xml, "<D:multistatus") || !strings.HasSuffix(xml, "</D:multistatus>") {
		t.Fatalf("malformed multistatus:\n%s", xml)
	}
	if got := strings.Count(xml, "<D:response>"); got != 2 {
		t.Fatalf("expected 2 responses, got %d", got)
	}
	for _, want := range []string{
		"/addressbook/people_c111.vcf",
		"/addressbook/people_c222.vcf",
		`"etag_aaa"`,
		`"etag_bbb"`,
		"<C:address-data>",
		"FN:Alice",
		"FN:Bob",
	} {
		if !strings.Contains(xml, want) {
			t.Fatalf("missing %q:\n%s", want, xml)
		}
	}
}
