package integration

import (
	"bytes"
	"context"
	"encoding/xml"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	govcard "github.com/emersion/go-vcard"
	"github.com/rs/zerolog"

	"github.com/setu-dav/setu/internal/carddav"
	"github.com/setu-dav/setu/internal/storage"
	"github.com/setu-dav/setu/internal/vault"
)

const testPassword = "integration-password"

// Minimal Multi-Status parser sufficient for validations (RFC 4918 §13)
type multiStatus struct {
	XMLName   xml.Name     `xml:"multistatus"`
	Responses []msResponse `xml:"response"`
}
type msResponse struct {
	Href     string     `xml:"href"`
	PropStat []propStat `xml:"propstat"`
	Status   string     `xml:"status"`
}
type propStat struct {
	Status  string `xml:"status"`
	PropRaw anyXML `xml:"prop"`
	// For simplicity, keep raw inner XML for flexible checks
	PropXML string `xml:"-"`
}
type anyXML struct {
	Inner string `xml:",innerxml"`
}

func parseMultiStatus(t *testing.T, b []byte) *multiStatus {
	t.Helper()
	var ms multiStatus
	if err := xml.Unmarshal(b, &ms); err != nil {
		t.Fatalf("parsing multistatus: %v\nbody: %s", err, b)
	}
	for i := range ms.Responses {
		for j := range ms.Responses[i].PropStat {
			ms.Responses[i].PropStat[j].PropXML = ms.Responses[i].PropStat[j].PropRaw.Inner
		}
	}
	return &ms
}

func statusOK(s string) bool {
	// Typical format: "HTTP/1.1 200 OK"
	return strings.Contains(s, " 200 ")
}

// env is a running server with direct access to the backing store.
type env struct {
	ts    *httptest.Server
	store *storage.Store
}

func startServer(t *testing.T, api carddav.Upstream) *env {
	t.Helper()

	logger := zerolog.New(nil).Level(zerolog.Disabled)
	store, err := storage.Open(t.TempDir()+"/setu.db", "", logger)
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(store.Close)

	v := vault.NewMemory()
	if err := v.Set(vault.KeyCardDAVPassword, testPassword); err != nil {
		t.Fatalf("seeding vault: %v", err)
	}

	ts := httptest.NewServer(carddav.NewServer(store, api, v, logger).Handler())
	t.Cleanup(ts.Close)

	return &env{ts: ts, store: store}
}

// request performs an authenticated DAV request and returns status, headers
// and body.
func (e *env) request(t *testing.T, method, path, depth, body string) (int, http.Header, []byte) {
	t.Helper()

	var rd io.Reader
	if body != "" {
		rd = bytes.NewBufferString(body)
	}
	req, err := http.NewRequest(method, e.ts.URL+path, rd)
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	req.SetBasicAuth("setu", testPassword)
	if depth != "" {
		req.Header.Set("Depth", depth)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/xml;charset=utf-8")
	}

	resp, err := e.ts.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("reading body: %v", err)
	}
	return resp.StatusCode, resp.Header, b
}

// decodeVCard parses a single vCard and fails the test on malformed input.
func decodeVCard(t *testing.T, raw string) govcard.Card {
	t.Helper()
	card, err := govcard.NewDecoder(strings.NewReader(raw)).Decode()
	if err != nil {
		t.Fatalf("decoding vCard: %v\n%s", err, raw)
	}
	return card
}

func seedContact(t *testing.T, e *env, resourceName, etag, name, vcardText, phone string) {
	t.Helper()
	c := storage.Contact{
		ResourceName:    resourceName,
		Etag:            etag,
		DisplayName:     name,
		VCard:           vcardText,
		SearchablePhone: phone,
	}
	if err := e.store.UpsertContact(context.Background(), c); err != nil {
		t.Fatalf("seeding contact: %v", err)
	}
}
