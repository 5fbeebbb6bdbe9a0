package enrich

import (
	"context"

	"go.uber.org/zap"

	"github.com/JakeFAU/shelfscan/internal/book"
)

// Enricher runs the primary catalog and, only when its answer has no cover,
// the fallback catalog.
type Enricher struct {
	primary  book.CatalogProvider
	fallback book.CatalogProvider
	logger   *zap.Logger
}

// New builds an Enricher. Either provider may be nil.
func New(primary, fallback book.CatalogProvider, logger *zap.Logger) *Enricher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Enricher{primary: primary, fallback: fallback, logger: logger.Named("enrich")}
}

// Lookup returns the merged metadata for a candidate. Provider failures are
// logged and treated as no answer.
func (e *Enricher) Lookup(ctx context.Context, title, author string) book.Metadata {
	a := e.ask(ctx, e.primary, title, author)
	if !NeedsFallback(a) {
		return Merge(a, nil)
	}
	if a != nil {
		e.logger.Debug("primary answer has no cover, asking fallback", zap.String("title", title))
	}
	b := e.ask(ctx, e.fallback, title, author)
	return Merge(a, b)
}

func (e *Enricher) ask(ctx context.Context, p book.CatalogProvider, title, author string) *book.Metadata {
	if p == nil {
		return nil
	}
	meta, err := p.Lookup(ctx, title, author)
	if err != nil {
		e.logger.Warn("catalog lookup failed",
			zap.String("provider", p.Name()),
			zap.String("title", title),
			zap.String("author", author),
			zap.Error(err),
		)
		return nil
	}
	return meta
}
