package carddav

import (
	"net/http"
	"strings"

	"github.com/setu-dav/setu/internal/storage"
)

// ContactHref converts a Google resource name (people/c123) to a CardDAV
// href.
func ContactHref(resourceName string) string {
	return "/addressbook/" + strings.ReplaceAll(resourceName, "/", "_") + ".vcf"
}

// IDToResourceName is the reverse of ContactHref: people_c123.vcf → people/c123.
func IDToResourceName(id string) string {
	return strings.ReplaceAll(strings.TrimSuffix(id, ".vcf"), "_", "/")
}

var xmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
)

// xmlEscape covers the characters that can appear in etags and vCard text.
func xmlEscape(s string) string {
	return xmlEscaper.Replace(s)
}

// extractHrefs pulls the <D:href> values out of a multiget REPORT body. Both
// namespaced and bare tags are accepted, some clients omit the prefix.
func extractHrefs(xml string) []string {
	var hrefs []string
	for _, tagOpen := range []string{"<D:href>", "<href>"} {
		tagClose := strings.Replace(tagOpen, "<", "</", 1)
		rest := xml
		for {
			start := strings.Index(rest, tagOpen)
			if start < 0 {
				break
			}
			rest = rest[start+len(tagOpen):]
			end := strings.Index(rest, tagClose)
			if end < 0 {
				break
			}
			if href := strings.TrimSpace(rest[:end]); href != "" {
				hrefs = append(hrefs, href)
			}
			rest = rest[end+len(tagClose):]
		}
	}
	return hrefs
}

// extractTelFilter pulls the phone number out of a
// `<C:prop-filter name="TEL">` element in an addressbook-query body,
// accepting either quote style on the attribute and either namespaced or
// bare text-match tags. Empty string means no TEL filter.
func extractTelFilter(xml string) string {
	telPos := -1
	for _, marker := range []string{`prop-filter name="TEL"`, `prop-filter name='TEL'`} {
		if pos := strings.Index(xml, marker); pos >= 0 && (telPos < 0 || pos < telPos) {
			telPos = pos
		}
	}
	if telPos < 0 {
		return ""
	}

	afterTel := xml[telPos:]
	for _, tagOpen := range []string{"<C:text-match", "<text-match"} {
		tagClose := "</text-match>"
		if strings.HasPrefix(tagOpen, "<C:") {
			tagClose = "</C:text-match>"
		}

		openStart := strings.Index(afterTel, tagOpen)
		if openStart < 0 {
			continue
		}
		afterOpen := afterTel[openStart:]
		gt := strings.Index(afterOpen, ">")
		if gt < 0 {
			continue
		}
		content := afterOpen[gt+1:]
		closePos := strings.Index(content, tagClose)
		if closePos < 0 {
			continue
		}
		if value := strings.TrimSpace(content[:closePos]); value != "" {
			return value
		}
	}
	return ""
}

// buildReportXML assembles the multistatus body for a REPORT response: one
// <D:response> with etag and inline address-data per contact.
func buildReportXML(contacts []storage.Contact) string {
	var xml strings.Builder
	xml.Grow(len(contacts)*2048 + 256)
	xml.WriteString(`<?xml version="1.0" encoding="UTF-8"?>
<D:multistatus xmlns:D="DAV:" xmlns:C="urn:ietf:params:xml:ns:carddav">
`)
	for _, c := range contacts {
		xml.WriteString("  <D:response>\n    <D:href>")
		xml.WriteString(xmlEscape(ContactHref(c.ResourceName)))
		xml.WriteString("</D:href>\n    <D:propstat>\n      <D:prop>\n")
		xml.WriteString("        <D:getetag>\"")
		xml.WriteString(xmlEscape(c.Etag))
		xml.WriteString("\"</D:getetag>\n")
		xml.WriteString("        <C:address-data>")
		xml.WriteString(xmlEscape(c.VCard))
		xml.WriteString("</C:address-data>\n")
		xml.WriteString("      </D:prop>\n      <D:status>HTTP/1.1 200 OK</D:status>\n")
		xml.WriteString("    </D:propstat>\n  </D:response>\n")
	}
	xml.WriteString("</D:multistatus>")
	return xml.String()
}

func writeMultistatus(w http.ResponseWriter, xml string) {
	w.Header().Set("Content-Type", "application/xml;charset=utf-8")
	w.Header().Set("DAV", "1, 3, addressbook")
	w.WriteHeader(http.StatusMultiStatus)
	w.Write([]byte(xml))
}

func writeOptions(w http.ResponseWriter) {
	w.Header().Set("Allow", "OPTIONS, GET, HEAD, PROPFIND, REPORT")
	w.Header().Set("DAV", "1, 3, addressbook")
	w.WriteHeader(http.StatusOK)
}

func methodNotAllowed(w http.ResponseWriter) {
	http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
}

func internalError(w http.ResponseWriter) {
	http.Error(w, "Internal Server Error", http.StatusInternalServerError)
}
