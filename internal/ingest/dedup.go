package ingest

import (
	"context"
	"fmt"

	"github.com/JakeFAU/shelfscan/internal/book"
)

// Dedup finds an existing record for a candidate: by ISBN first, then by
// exact (title, author).
type Dedup struct{}

// Existing returns the matching record or nil. Store errors are returned as is
// and are fatal to the batch.
func (Dedup) Existing(ctx context.Context, tx book.Tx, merged book.Metadata, c book.Candidate) (*book.Record, error) {
	if merged.ISBN != "" {
		rec, err := tx.FindByISBN(ctx, merged.ISBN)
		if err != nil {
			return nil, fmt.Errorf("dedup by isbn: %w", err)
		}
		if rec != nil {
			return rec, nil
		}
	}
	rec, err := tx.FindByTitleAuthor(ctx, c.Title, c.Author)
	if err != nil {
		return nil, fmt.Errorf("dedup by title and author: %w", err)
	}
	return rec, nil
}
