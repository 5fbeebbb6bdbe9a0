package catalog

import (
	"context"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/JakeFAU/shelfscan/internal/book"
)

// Cached memoizes lookups of a provider by trimmed (title, author), case
// preserved. Answers without items are cached too; errors are not.
type Cached struct {
	next  book.CatalogProvider
	cache *gocache.Cache
}

var _ book.CatalogProvider = (*Cached)(nil)

type cachedAnswer struct {
	meta *book.Metadata
}

// NewCached wraps next. A non-positive ttl returns next unchanged.
func NewCached(next book.CatalogProvider, ttl time.Duration) book.CatalogProvider {
	if ttl <= 0 {
		return next
	}
	return &Cached{
		next:  next,
		cache: gocache.New(ttl, 2*ttl),
	}
}

// Name implements book.CatalogProvider.
func (c *Cached) Name() string { return c.next.Name() }

// Lookup implements book.CatalogProvider.
func (c *Cached) Lookup(ctx context.Context, title, author string) (*book.Metadata, error) {
	key := strings.TrimSpace(title) + "\x00" + strings.TrimSpace(author)
	if v, ok := c.cache.Get(key); ok {
		return copyMeta(v.(cachedAnswer).meta), nil
	}
	meta, err := c.next.Lookup(ctx, title, author)
	if err != nil {
		return nil, err
	}
	c.cache.SetDefault(key, cachedAnswer{meta: copyMeta(meta)})
	return meta, nil
}

func copyMeta(m *book.Metadata) *book.Metadata {
	if m == nil {
		return nil
	}
	dup := *m
	return &dup
}
