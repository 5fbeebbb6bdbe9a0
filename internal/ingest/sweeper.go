package ingest

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/shelfscan/internal/book"
	"github.com/JakeFAU/shelfscan/internal/metrics"
)

var (
	bracketed = regexp.MustCompile(`\(.*?\)|\[.*?\]`)
	subtitle  = regexp.MustCompile(`:.*$`)
)

// CleanTitle drops parenthesized and bracketed segments and any subtitle
// after the first colon.
func CleanTitle(title string) string {
	title = bracketed.ReplaceAllString(title, "")
	title = subtitle.ReplaceAllString(title, "")
	return strings.TrimSpace(title)
}

// MissingFields keeps the fields of fresh that are empty on rec.
func MissingFields(rec book.Record, fresh book.Metadata) book.Metadata {
	var out book.Metadata
	if rec.ISBN == "" {
		out.ISBN = fresh.ISBN
	}
	if rec.OfficialCoverURL == "" {
		out.CoverImageURL = fresh.CoverImageURL
	}
	if rec.Description == "" {
		out.Description = fresh.Description
	}
	if rec.PublishedDate == "" {
		out.PublishedDate = fresh.PublishedDate
	}
	return out
}

// SweepResult summarizes one re-enrichment run.
type SweepResult struct {
	UpdatedCount int
	TotalChecked int
	Skipped      int
}

// Sweeper backfills records lacking an ISBN or cover from a single catalog.
type Sweeper struct {
	store    book.Store
	provider book.CatalogProvider
	logger   *zap.Logger
}

// NewSweeper builds a Sweeper.
func NewSweeper(store book.Store, provider book.CatalogProvider, logger *zap.Logger) (*Sweeper, error) {
	if store == nil {
		return nil, errors.New("store is required")
	}
	if provider == nil {
		return nil, errors.New("catalog provider is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sweeper{store: store, provider: provider, logger: logger.Named("reenrich")}, nil
}

// Run scans incomplete records in one transaction and fills only empty
// columns. Store errors roll back the whole run.
func (s *Sweeper) Run(ctx context.Context) (SweepResult, error) {
	var res SweepResult

	tx, err := s.store.Begin(ctx)
	if err != nil {
		return res, fmt.Errorf("begin sweep: %w", err)
	}
	rollback := func(cause error) (SweepResult, error) {
		if rbErr := tx.Rollback(context.WithoutCancel(ctx)); rbErr != nil {
			s.logger.Error("rollback failed", zap.Error(rbErr))
		}
		return SweepResult{TotalChecked: res.TotalChecked}, cause
	}

	records, err := tx.ListIncomplete(ctx)
	if err != nil {
		return rollback(err)
	}
	res.TotalChecked = len(records)
	if len(records) == 0 {
		if err := tx.Commit(ctx); err != nil {
			return rollback(err)
		}
		return res, nil
	}

	for _, rec := range records {
		log := s.logger.With(zap.Int64("id", rec.ID), zap.String("title", rec.Title))
		clean := CleanTitle(rec.Title)
		if clean == "" {
			log.Warn("title empty after cleaning, skipping")
			res.Skipped++
			continue
		}

		fresh, err := s.provider.Lookup(ctx, clean, "")
		if err != nil {
			log.Debug("catalog unavailable", zap.String("clean_title", clean), zap.Error(err))
			res.Skipped++
			continue
		}
		if fresh == nil {
			log.Debug("no catalog match", zap.String("clean_title", clean))
			res.Skipped++
			continue
		}

		patch := MissingFields(rec, *fresh)
		if patch.IsEmpty() {
			continue
		}
		changed, err := tx.FillMissing(ctx, rec.ID, patch)
		if err != nil {
			return rollback(err)
		}
		if changed {
			res.UpdatedCount++
			log.Info("record backfilled",
				zap.Bool("isbn", patch.ISBN != ""),
				zap.Bool("cover", patch.CoverImageURL != ""),
			)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return rollback(err)
	}
	metrics.ObserveReenrichUpdates(res.UpdatedCount)
	s.logger.Info("sweep finished",
		zap.Int("updated", res.UpdatedCount),
		zap.Int("checked", res.TotalChecked),
		zap.Int("skipped", res.Skipped),
	)
	return res, nil
}
