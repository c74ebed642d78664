// Package campaign runs one outreach campaign: it renders a personalized
// message per contact, applies the compliance checks, invokes the delivery
// backend, and records one durable outcome per contact.
package campaign

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ignite/outreach/internal/pkg/logger"
	"github.com/ignite/outreach/internal/suppression"
)

// Contact is one recipient with the per-contact field values used for
// placeholder substitution. Immutable for the duration of a run.
type Contact struct {
	Email  string
	Fields map[string]string
}

// Domain returns the lowercased domain part of the contact's address.
func (c Contact) Domain() string {
	_, domain, ok := strings.Cut(c.Email, "@")
	if !ok {
		return ""
	}
	return strings.ToLower(domain)
}

// LoadContacts reads a CSV contact list. The header row names the
// placeholder fields; an "email" column (any casing) is required.
// Duplicate addresses are dropped case-insensitively, keeping the first.
func LoadContacts(path string) ([]Contact, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("reading header from %s: %w", path, err)
	}

	emailCol := -1
	for i, name := range header {
		if strings.EqualFold(strings.TrimSpace(name), "email") {
			emailCol = i
			break
		}
	}
	if emailCol == -1 {
		return nil, fmt.Errorf("%s: no email column in header %v", path, header)
	}

	var contacts []Contact
	seen := make(map[string]struct{})
	line := 1

	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", path, line, err)
		}

		email := strings.TrimSpace(record[emailCol])
		if email == "" || !strings.Contains(email, "@") {
			logger.Warn("skipping contact row without usable address", "file", path, "line", line)
			continue
		}

		key := suppression.Normalize(email)
		if _, dup := seen[key]; dup {
			logger.Warn("skipping duplicate contact", "email", email, "line", line)
			continue
		}
		seen[key] = struct{}{}

		fields := make(map[string]string, len(header)-1)
		for i, name := range header {
			if i == emailCol || i >= len(record) {
				continue
			}
			fields[strings.TrimSpace(name)] = strings.TrimSpace(record[i])
		}

		contacts = append(contacts, Contact{Email: email, Fields: fields})
	}

	return contacts, nil
}
