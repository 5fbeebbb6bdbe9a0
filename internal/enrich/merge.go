// Package enrich combines the answers of the primary and fallback catalogs.
package enrich

import "github.com/JakeFAU/shelfscan/internal/book"

// Merge takes each field from a when non-empty, else from b. Either side may be nil.
func Merge(a, b *book.Metadata) book.Metadata {
	var pa, pb book.Metadata
	if a != nil {
		pa = *a
	}
	if b != nil {
		pb = *b
	}
	return book.Metadata{
		Description:   firstNonEmpty(pa.Description, pb.Description),
		PublishedDate: firstNonEmpty(pa.PublishedDate, pb.PublishedDate),
		ISBN:          firstNonEmpty(pa.ISBN, pb.ISBN),
		CoverImageURL: firstNonEmpty(pa.CoverImageURL, pb.CoverImageURL),
	}
}

// NeedsFallback reports whether the primary answer lacks a cover image.
func NeedsFallback(a *book.Metadata) bool {
	return a == nil || a.CoverImageURL == ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
