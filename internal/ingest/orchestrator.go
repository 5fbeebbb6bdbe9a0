package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/JakeFAU/shelfscan/internal/book"
	"github.com/JakeFAU/shelfscan/internal/metrics"
	"github.com/JakeFAU/shelfscan/internal/telemetry"
)

// BatchState tracks the lifecycle of one ingest batch.
type BatchState string

// Batch states.
const (
	BatchStarted              BatchState = "started"
	BatchProcessingCandidates BatchState = "processing_candidates"
	BatchCommitted            BatchState = "committed"
	BatchRolledBack           BatchState = "rolled_back"
)

// CandidateOutcome records what happened to one candidate.
type CandidateOutcome string

// Candidate outcomes.
const (
	OutcomeInserted           CandidateOutcome = "inserted"
	OutcomeSkippedDuplicate   CandidateOutcome = "skipped_duplicate"
	OutcomeSkippedInsertError CandidateOutcome = "skipped_insert_error"
)

// BatchResult summarizes one batch.
type BatchResult struct {
	Records       []book.Record
	TotalFound    int
	TotalInserted int
	Outcomes      []CandidateOutcome
	State         BatchState
}

// Lookuper returns merged catalog metadata for a candidate.
type Lookuper interface {
	Lookup(ctx context.Context, title, author string) book.Metadata
}

// OrchestratorConfig wires the orchestrator's collaborators. Images, Publisher
// and Clock are optional.
type OrchestratorConfig struct {
	Store     book.Store
	Enricher  Lookuper
	Images    book.ImageStore
	Publisher book.Publisher
	Topic     string
	Clock     book.Clock
	Logger    *zap.Logger
}

// Orchestrator ingests the candidates of one image in a single transaction.
type Orchestrator struct {
	store     book.Store
	enricher  Lookuper
	dedup     Dedup
	images    book.ImageStore
	publisher book.Publisher
	topic     string
	now       func() time.Time
	logger    *zap.Logger
}

// NewOrchestrator builds an Orchestrator.
func NewOrchestrator(cfg OrchestratorConfig) (*Orchestrator, error) {
	if cfg.Store == nil {
		return nil, errors.New("store is required")
	}
	if cfg.Enricher == nil {
		return nil, errors.New("enricher is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := func() time.Time { return time.Now().UTC() }
	if cfg.Clock != nil {
		now = cfg.Clock.Now
	}
	return &Orchestrator{
		store:     cfg.Store,
		enricher:  cfg.Enricher,
		images:    cfg.Images,
		publisher: cfg.Publisher,
		topic:     cfg.Topic,
		now:       now,
		logger:    logger.Named("ingest"),
	}, nil
}

// Ingest enriches, de-duplicates and stores candidates in the order given.
// Errors wrap book.ErrBatchAborted; in that case nothing was persisted and
// the image at imagePath was removed.
func (o *Orchestrator) Ingest(ctx context.Context, imagePath string, candidates []book.Candidate) (BatchResult, error) {
	ctx, span := telemetry.Tracer("ingest").Start(ctx, "ingest.batch",
		trace.WithAttributes(attribute.Int("shelfscan.candidates", len(candidates))))
	defer span.End()

	res, err := o.ingest(ctx, imagePath, candidates)
	span.SetAttributes(
		attribute.String("shelfscan.batch_state", string(res.State)),
		attribute.Int("shelfscan.inserted", res.TotalInserted),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "batch aborted")
	}
	return res, err
}

func (o *Orchestrator) ingest(ctx context.Context, imagePath string, candidates []book.Candidate) (BatchResult, error) {
	res := BatchResult{
		TotalFound: len(candidates),
		Outcomes:   make([]CandidateOutcome, 0, len(candidates)),
		Records:    make([]book.Record, 0, len(candidates)),
		State:      BatchStarted,
	}
	log := o.logger.With(zap.String("image", imagePath), zap.Int("candidates", len(candidates)))

	tx, err := o.store.Begin(ctx)
	if err != nil {
		return o.abort(ctx, nil, imagePath, res, err)
	}
	res.State = BatchProcessingCandidates

	for i, c := range candidates {
		c = c.Trimmed()
		merged := o.enricher.Lookup(ctx, c.Title, c.Author)

		existing, err := o.dedup.Existing(ctx, tx, merged, c)
		if err != nil {
			return o.abort(ctx, tx, imagePath, res, err)
		}
		if existing != nil {
			log.Debug("duplicate candidate skipped",
				zap.Int("index", i),
				zap.String("title", c.Title),
				zap.String("author", c.Author),
				zap.String("isbn", merged.ISBN),
				zap.Int64("existing_id", existing.ID),
			)
			res.Outcomes = append(res.Outcomes, OutcomeSkippedDuplicate)
			metrics.ObserveCandidate(string(OutcomeSkippedDuplicate))
			continue
		}

		rec, err := tx.Insert(ctx, book.NewRecord{Candidate: c, ImageURL: imagePath, Metadata: merged})
		if errors.Is(err, book.ErrRecordRejected) {
			log.Warn("candidate insert rejected",
				zap.Int("index", i),
				zap.String("title", c.Title),
				zap.Error(err),
			)
			res.Outcomes = append(res.Outcomes, OutcomeSkippedInsertError)
			metrics.ObserveCandidate(string(OutcomeSkippedInsertError))
			continue
		}
		if err != nil {
			return o.abort(ctx, tx, imagePath, res, err)
		}
		res.Records = append(res.Records, rec)
		res.Outcomes = append(res.Outcomes, OutcomeInserted)
		metrics.ObserveCandidate(string(OutcomeInserted))
	}

	if err := tx.Commit(ctx); err != nil {
		return o.abort(ctx, tx, imagePath, res, err)
	}
	res.State = BatchCommitted
	res.TotalInserted = len(res.Records)
	metrics.ObserveBatch(string(BatchCommitted))
	log.Info("batch committed", zap.Int("inserted", res.TotalInserted))

	o.publish(ctx, imagePath, res)
	return res, nil
}

func (o *Orchestrator) abort(ctx context.Context, tx book.Tx, imagePath string, res BatchResult, cause error) (BatchResult, error) {
	// cleanup must run even when the request context is already canceled
	cleanupCtx := context.WithoutCancel(ctx)
	log := o.logger.With(zap.String("image", imagePath))

	if tx != nil {
		if err := tx.Rollback(cleanupCtx); err != nil {
			log.Error("rollback failed", zap.Error(err))
		}
	}
	if o.images != nil && imagePath != "" {
		if err := o.images.Delete(cleanupCtx, imagePath); err != nil {
			log.Warn("failed to remove image of aborted batch", zap.Error(err))
		}
	}

	res.State = BatchRolledBack
	res.Records = nil
	res.TotalInserted = 0
	metrics.ObserveBatch(string(BatchRolledBack))
	log.Error("batch rolled back", zap.Error(cause))
	return res, fmt.Errorf("%w: %w", book.ErrBatchAborted, cause)
}

func (o *Orchestrator) publish(ctx context.Context, imagePath string, res BatchResult) {
	if o.publisher == nil || o.topic == "" {
		return
	}
	event := book.BatchEvent{
		ImageURL:      imagePath,
		TotalFound:    res.TotalFound,
		TotalInserted: res.TotalInserted,
		RecordIDs:     make([]int64, 0, len(res.Records)),
		ISBNs:         make([]string, 0, len(res.Records)),
		CommittedAt:   o.now(),
	}
	for _, r := range res.Records {
		event.RecordIDs = append(event.RecordIDs, r.ID)
		if r.ISBN != "" {
			event.ISBNs = append(event.ISBNs, r.ISBN)
		}
	}
	id, err := o.publisher.Publish(ctx, o.topic, event)
	if err != nil {
		o.logger.Warn("failed to publish batch event", zap.String("topic", o.topic), zap.Error(err))
		return
	}
	o.logger.Debug("batch event published", zap.String("topic", o.topic), zap.String("message_id", id))
}
