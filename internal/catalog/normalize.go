package catalog

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ForceHTTPS rewrites a plain http URL to https. Other values pass through.
func ForceHTTPS(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "http://") {
		return "https://" + strings.TrimPrefix(raw, "http://")
	}
	return raw
}

// CompactDate turns an 8-digit YYYYMMDD date into YYYY-MM-DD.
func CompactDate(raw string) string {
	raw = strings.TrimSpace(raw)
	if len(raw) != 8 {
		return raw
	}
	return raw[:4] + "-" + raw[4:6] + "-" + raw[6:]
}

// PreferISBN13 picks the 13-character token of a space separated ISBN list,
// falling back to the first token.
func PreferISBN13(list string) string {
	tokens := strings.Fields(list)
	if len(tokens) == 0 {
		return ""
	}
	for _, tok := range tokens {
		if len(tok) == 13 {
			return tok
		}
	}
	return tokens[0]
}

// Identifier is one entry of a Google Books industryIdentifiers list.
type Identifier struct {
	Type       string `json:"type"`
	Identifier string `json:"identifier"`
}

// PickIdentifier returns the ISBN_13 identifier, else the first one listed.
func PickIdentifier(ids []Identifier) string {
	for _, id := range ids {
		if id.Type == "ISBN_13" {
			return strings.TrimSpace(id.Identifier)
		}
	}
	if len(ids) > 0 {
		return strings.TrimSpace(ids[0].Identifier)
	}
	return ""
}

// StripMarkup drops HTML tags and decodes entities.
func StripMarkup(raw string) string {
	if !strings.ContainsAny(raw, "<&") {
		return strings.TrimSpace(raw)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return strings.TrimSpace(raw)
	}
	return strings.TrimSpace(doc.Text())
}
