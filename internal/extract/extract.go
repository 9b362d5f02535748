// Package extract pulls a domain name out of a task payload and turns it
// into the monitor the bridge should ensure exists.
package extract

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/tjfontaine/uptime-bridge/internal/core/domain"
)

// DefaultDomainField is the custom field label that carries the domain.
const DefaultDomainField = "домен"

// domainPattern matches a whole token: one or more labels followed by an
// alphabetic top-level label of at least two letters.
var domainPattern = regexp.MustCompile(`^(?:[a-zA-Z0-9-]+\.)+[a-zA-Z]{2,}$`)

// Extractor finds the domain in a task's custom fields.
type Extractor struct {
	field string
}

// NewExtractor returns an Extractor matching fields named label,
// case-insensitively. An empty label selects DefaultDomainField.
func NewExtractor(label string) *Extractor {
	if label == "" {
		label = DefaultDomainField
	}
	return &Extractor{field: strings.ToLower(label)}
}

// Field returns the lowercased label the extractor matches.
func (e *Extractor) Field() string {
	return e.field
}

// Extract returns the first domain found in the first matching custom field
// that holds one. Absence is reported with false, never as an error.
func (e *Extractor) Extract(ev domain.Event) (string, bool) {
	fields, ok := ev.CustomFields()
	if !ok {
		return "", false
	}
	for _, f := range fields {
		if strings.ToLower(f.Name) != e.field || !f.HasText {
			continue
		}
		if d, ok := FindDomain(f.TextValue); ok {
			return d, true
		}
	}
	return "", false
}

// FindDomain returns the first domain-like token in free text. A token must
// not touch a word, dot or hyphen character on either side, so only a
// complete run of such characters can match.
func FindDomain(text string) (string, bool) {
	start := -1
	for i, r := range text {
		if isTokenRune(r) {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			if tok := text[start:i]; domainPattern.MatchString(tok) {
				return tok, true
			}
			start = -1
		}
	}
	if start >= 0 {
		if tok := text[start:]; domainPattern.MatchString(tok) {
			return tok, true
		}
	}
	return "", false
}

func isTokenRune(r rune) bool {
	return r == '.' || r == '-' || r == '_' || unicode.IsLetter(r) || unicode.IsNumber(r)
}
