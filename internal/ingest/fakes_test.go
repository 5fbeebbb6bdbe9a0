package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/JakeFAU/shelfscan/internal/book"
	"github.com/JakeFAU/shelfscan/internal/clock/system"
	"github.com/JakeFAU/shelfscan/internal/storage/memory"
)

var errConnLost = errors.New("connection lost")

var testClock = system.Fixed(time.Unix(1700000000, 0))

// stubEnricher answers from a table keyed by title.
type stubEnricher struct {
	mu      sync.Mutex
	answers map[string]book.Metadata
	calls   []string
}

func (s *stubEnricher) Lookup(_ context.Context, title, _ string) book.Metadata {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, title)
	return s.answers[title]
}

// faultyStore wraps the memory store and injects failures into its transactions.
type faultyStore struct {
	*memory.InventoryStore
	rejectTitle string
	insertErr   error
	findErr     error
	commitErr   error
	beginErr    error
	listErr     error
	fillErr     error
	rollbacks   int
}

func newFaultyStore() *faultyStore {
	return &faultyStore{InventoryStore: memory.NewInventoryStore(testClock)}
}

func (s *faultyStore) Begin(ctx context.Context) (book.Tx, error) {
	if s.beginErr != nil {
		return nil, s.beginErr
	}
	tx, err := s.InventoryStore.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &faultyTx{Tx: tx, store: s}, nil
}

type faultyTx struct {
	book.Tx
	store *faultyStore
}

func (t *faultyTx) FindByTitleAuthor(ctx context.Context, title, author string) (*book.Record, error) {
	if t.store.findErr != nil {
		return nil, t.store.findErr
	}
	return t.Tx.FindByTitleAuthor(ctx, title, author)
}

func (t *faultyTx) Insert(ctx context.Context, rec book.NewRecord) (book.Record, error) {
	if t.store.rejectTitle != "" && rec.Title == t.store.rejectTitle {
		return book.Record{}, fmt.Errorf("%w: value too long", book.ErrRecordRejected)
	}
	if t.store.insertErr != nil {
		return book.Record{}, t.store.insertErr
	}
	return t.Tx.Insert(ctx, rec)
}

func (t *faultyTx) ListIncomplete(ctx context.Context) ([]book.Record, error) {
	if t.store.listErr != nil {
		return nil, t.store.listErr
	}
	return t.Tx.ListIncomplete(ctx)
}

func (t *faultyTx) FillMissing(ctx context.Context, id int64, patch book.Metadata) (bool, error) {
	if t.store.fillErr != nil {
		return false, t.store.fillErr
	}
	return t.Tx.FillMissing(ctx, id, patch)
}

func (t *faultyTx) Commit(ctx context.Context) error {
	if t.store.commitErr != nil {
		return t.store.commitErr
	}
	return t.Tx.Commit(ctx)
}

func (t *faultyTx) Rollback(ctx context.Context) error {
	t.store.rollbacks++
	return t.Tx.Rollback(ctx)
}

type capturePublisher struct {
	topics []string
	events []book.BatchEvent
	err    error
}

func (p *capturePublisher) Publish(_ context.Context, topic string, payload any) (string, error) {
	if p.err != nil {
		return "", p.err
	}
	p.topics = append(p.topics, topic)
	p.events = append(p.events, payload.(book.BatchEvent))
	return fmt.Sprintf("msg-%d", len(p.events)), nil
}

// stubProvider is a catalog that answers from a table keyed by title.
type stubProvider struct {
	answers map[string]*book.Metadata
	err     error
	calls   []string
}

func (p *stubProvider) Name() string { return "stub" }

func (p *stubProvider) Lookup(_ context.Context, title, _ string) (*book.Metadata, error) {
	p.calls = append(p.calls, title)
	if p.err != nil {
		return nil, p.err
	}
	return p.answers[title], nil
}
