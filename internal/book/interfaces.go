package book

import (
	"context"
	"time"
)

// CatalogProvider looks a book up in one external catalog.
// It returns (nil, nil) when the catalog answered without a usable item and an
// error wrapping ErrUnavailable when the catalog could not be reached.
type CatalogProvider interface {
	Name() string
	Lookup(ctx context.Context, title, author string) (*Metadata, error)
}

// Store is the inventory table.
type Store interface {
	Begin(ctx context.Context) (Tx, error)
	List(ctx context.Context) ([]Record, error)
	Delete(ctx context.Context, id int64) error
	Reset(ctx context.Context) error
	Close()
}

// Tx is one inventory transaction. Reads observe rows written earlier in the
// same transaction.
type Tx interface {
	FindByISBN(ctx context.Context, isbn string) (*Record, error)
	FindByTitleAuthor(ctx context.Context, title, author string) (*Record, error)
	// Insert writes one row. A row-level rejection wraps ErrRecordRejected and
	// leaves the transaction usable; any other error is fatal to the transaction.
	Insert(ctx context.Context, rec NewRecord) (Record, error)
	ListIncomplete(ctx context.Context) ([]Record, error)
	// FillMissing sets the non-empty fields of patch on columns that are still
	// empty and reports whether the row changed.
	FillMissing(ctx context.Context, id int64, patch Metadata) (bool, error)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// ImageStore persists uploaded shelf photos.
type ImageStore interface {
	// Save stores data under name and returns the relative path to persist.
	Save(ctx context.Context, name string, data []byte) (string, error)
	Delete(ctx context.Context, path string) error
	// Purge removes every stored image and returns how many were deleted.
	Purge(ctx context.Context) (int, error)
}

// Extractor turns a shelf photo into book candidates.
type Extractor interface {
	Extract(ctx context.Context, image []byte, mimeType string) ([]Candidate, error)
}

// Publisher pushes events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces unique tokens.
type IDGenerator interface {
	NewID() (string, error)
}
