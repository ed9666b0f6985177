// Package vcard renders Google People API records as vCard 3.0 (RFC 2426).
package vcard

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	govcard "github.com/emersion/go-vcard"
	people "google.golang.org/api/people/v1"
)

var escaper = strings.NewReplacer(
	"\\", "\\\\",
	";", "\\;",
	",", "\\,",
	"\n", "\\n",
)

// escape escapes special characters in vCard text values.
func escape(s string) string {
	return escaper.Replace(s)
}

// FromPerson builds a vCard 3.0 string from a People API record. The UID is
// the resource name with '/' flattened to '-'.
func FromPerson(p *people.Person) string {
	lines := make([]string, 0, 20)

	lines = append(lines, "BEGIN:VCARD", "VERSION:3.0")

	rn := p.ResourceName
	if rn == "" {
		rn = "unknown"
	}
	lines = append(lines, "UID:"+strings.ReplaceAll(rn, "/", "-"))

	if len(p.Names) > 0 {
		n := p.Names[0]
		lines = append(lines, fmt.Sprintf("N:%s;%s;%s;%s;%s",
			escape(n.FamilyName),
			escape(n.GivenName),
			escape(n.MiddleName),
			escape(n.HonorificPrefix),
			escape(n.HonorificSuffix)))
		display := n.DisplayName
		if display == "" {
			display = strings.TrimSpace(n.GivenName + " " + n.FamilyName)
		}
		lines = append(lines, "FN:"+escape(display))
	} else {
		lines = append(lines, "N:;;;;", "FN:")
	}

	for _, email := range p.EmailAddresses {
		if email.Value == "" {
			continue
		}
		typ := "INTERNET"
		switch email.Type {
		case "home":
			typ = "HOME"
		case "work":
			typ = "WORK"
		}
		lines = append(lines, fmt.Sprintf("EMAIL;TYPE=%s:%s", typ, email.Value))
	}

	for _, phone := range p.PhoneNumbers {
		if phone.Value == "" {
			continue
		}
		typ := "VOICE"
		switch phone.Type {
		case "mobile":
			typ = "CELL"
		case "home":
			typ = "HOME"
		case "work":
			typ = "WORK"
		case "homeFax", "workFax":
			typ = "FAX"
		}
		lines = append(lines, fmt.Sprintf("TEL;TYPE=%s:%s", typ, phone.Value))
	}

	for _, addr := range p.Addresses {
		typ := "HOME"
		if addr.Type == "work" {
			typ = "WORK"
		}
		// ADR: PO Box ; Extended ; Street ; City ; Region ; Postal ; Country
		lines = append(lines, fmt.Sprintf("ADR;TYPE=%s:;;%s;%s;%s;%s;%s",
			typ,
			escape(addr.StreetAddress),
			escape(addr.City),
			escape(addr.Region),
			escape(addr.PostalCode),
			escape(addr.Country)))
	}

	if len(p.Organizations) > 0 {
		org := p.Organizations[0]
		if org.Name != "" {
			lines = append(lines, "ORG:"+escape(org.Name))
		}
		if org.Title != "" {
			lines = append(lines, "TITLE:"+escape(org.Title))
		}
	}

	if len(p.Birthdays) > 0 {
		if date := p.Birthdays[0].Date; date != nil && date.Month > 0 && date.Day > 0 {
			if date.Year > 0 {
				lines = append(lines, fmt.Sprintf("BDAY:%04d-%02d-%02d", date.Year, date.Month, date.Day))
			} else {
				// Year unknown, vCard 3.0 convention
				lines = append(lines, fmt.Sprintf("BDAY:--%02d-%02d", date.Month, date.Day))
			}
		}
	}

	if len(p.Photos) > 0 {
		// Google's default silhouette carries Default=true and is skipped.
		if photo := p.Photos[0]; photo.Url != "" && !photo.Default {
			lines = append(lines, "PHOTO;VALUE=URI:"+photo.Url)
		}
	}

	// The People API does not consistently expose a modification time, so
	// REV is the generation time.
	lines = append(lines, "REV:"+time.Now().UTC().Format("2006-01-02T15:04:05Z"))

	lines = append(lines, "END:VCARD")
	return strings.Join(lines, "\r\n") + "\r\n"
}

// DisplayName extracts the primary display name, empty when the record has
// no names.
func DisplayName(p *people.Person) string {
	if len(p.Names) == 0 {
		return ""
	}
	return p.Names[0].DisplayName
}

// Validate checks that raw is a parseable vCard with VERSION set.
func Validate(raw []byte) error {
	if len(raw) == 0 {
		return errors.New("empty vCard data")
	}
	content := string(raw)
	if !strings.Contains(content, "BEGIN:VCARD") {
		return errors.New("vCard data missing BEGIN:VCARD")
	}
	if !strings.Contains(content, "END:VCARD") {
		return errors.New("vCard data missing END:VCARD")
	}

	cards, err := parseAll(raw)
	if err != nil {
		return fmt.Errorf("vCard parsing failed: %w", err)
	}
	if len(cards) == 0 {
		return errors.New("no valid vCard found after parsing")
	}
	for i, c := range cards {
		if c.Value(govcard.FieldVersion) == "" {
			return fmt.Errorf("vCard %d missing VERSION", i)
		}
	}
	return nil
}

func parseAll(raw []byte) ([]govcard.Card, error) {
	dec := govcard.NewDecoder(bytes.NewReader(raw))
	var cards []govcard.Card
	for {
		card, err := dec.Decode()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		cards = append(cards, card)
	}
	return cards, nil
}
