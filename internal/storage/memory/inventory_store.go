// Package memory provides in-process stores for development and tests.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/JakeFAU/shelfscan/internal/book"
)

var errTxDone = errors.New("transaction already finished")

// InventoryStore keeps inventory rows in memory. Transactions stage their
// writes and apply them on commit.
type InventoryStore struct {
	mu     sync.RWMutex
	rows   map[int64]book.Record
	nextID int64
	now    func() time.Time
}

var _ book.Store = (*InventoryStore)(nil)

// NewInventoryStore constructs an empty store. A nil clock uses time.Now.
func NewInventoryStore(clock book.Clock) *InventoryStore {
	now := func() time.Time { return time.Now().UTC() }
	if clock != nil {
		now = clock.Now
	}
	return &InventoryStore{
		rows:   make(map[int64]book.Record),
		nextID: 1,
		now:    now,
	}
}

// Begin opens a transaction.
func (s *InventoryStore) Begin(context.Context) (book.Tx, error) {
	return &inventoryTx{store: s, patches: make(map[int64]book.Metadata)}, nil
}

// List returns every record, newest first.
func (s *InventoryStore) List(context.Context) ([]book.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]book.Record, 0, len(s.rows))
	for _, r := range s.rows {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// Delete removes one record.
func (s *InventoryStore) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rows[id]; !ok {
		return fmt.Errorf("record %d: %w", id, book.ErrNotFound)
	}
	delete(s.rows, id)
	return nil
}

// Reset deletes every record and restarts ids at 1.
func (s *InventoryStore) Reset(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = make(map[int64]book.Record)
	s.nextID = 1
	return nil
}

// Close is a no-op.
func (s *InventoryStore) Close() {}

func (s *InventoryStore) allocate() (int64, time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	return id, s.now()
}

type inventoryTx struct {
	store    *InventoryStore
	inserted []book.Record
	patches  map[int64]book.Metadata
	done     bool
}

// view returns committed rows overlaid with this transaction's writes, ordered by id.
func (t *inventoryTx) view() []book.Record {
	t.store.mu.RLock()
	out := make([]book.Record, 0, len(t.store.rows)+len(t.inserted))
	for _, r := range t.store.rows {
		out = append(out, r)
	}
	t.store.mu.RUnlock()
	out = append(out, t.inserted...)
	for i := range out {
		if p, ok := t.patches[out[i].ID]; ok {
			out[i] = fill(out[i], p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (t *inventoryTx) FindByISBN(_ context.Context, isbn string) (*book.Record, error) {
	if t.done {
		return nil, errTxDone
	}
	if isbn == "" {
		return nil, nil
	}
	for _, r := range t.view() {
		if r.ISBN == isbn {
			return &r, nil
		}
	}
	return nil, nil
}

func (t *inventoryTx) FindByTitleAuthor(_ context.Context, title, author string) (*book.Record, error) {
	if t.done {
		return nil, errTxDone
	}
	for _, r := range t.view() {
		if r.Title == title && r.Author == author {
			return &r, nil
		}
	}
	return nil, nil
}

func (t *inventoryTx) Insert(_ context.Context, rec book.NewRecord) (book.Record, error) {
	if t.done {
		return book.Record{}, errTxDone
	}
	id, now := t.store.allocate()
	r := book.Record{
		ID:               id,
		Title:            rec.Title,
		Author:           rec.Author,
		Publisher:        rec.Publisher,
		ImageURL:         rec.ImageURL,
		Description:      rec.Description,
		ISBN:             rec.ISBN,
		PublishedDate:    rec.PublishedDate,
		OfficialCoverURL: rec.CoverImageURL,
		CreatedAt:        now,
	}
	t.inserted = append(t.inserted, r)
	return r, nil
}

func (t *inventoryTx) ListIncomplete(context.Context) ([]book.Record, error) {
	if t.done {
		return nil, errTxDone
	}
	var out []book.Record
	for _, r := range t.view() {
		if r.ISBN == "" || r.OfficialCoverURL == "" {
			out = append(out, r)
		}
	}
	return out, nil
}

func (t *inventoryTx) FillMissing(_ context.Context, id int64, patch book.Metadata) (bool, error) {
	if t.done {
		return false, errTxDone
	}
	for _, r := range t.view() {
		if r.ID != id {
			continue
		}
		if fill(r, patch) == r {
			return false, nil
		}
		prev := t.patches[id]
		t.patches[id] = book.Metadata{
			Description:   firstSet(prev.Description, patch.Description),
			PublishedDate: firstSet(prev.PublishedDate, patch.PublishedDate),
			ISBN:          firstSet(prev.ISBN, patch.ISBN),
			CoverImageURL: firstSet(prev.CoverImageURL, patch.CoverImageURL),
		}
		return true, nil
	}
	return false, nil
}

func (t *inventoryTx) Commit(context.Context) error {
	if t.done {
		return errTxDone
	}
	t.done = true
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	for _, r := range t.inserted {
		t.store.rows[r.ID] = r
	}
	for id, p := range t.patches {
		if r, ok := t.store.rows[id]; ok {
			t.store.rows[id] = fill(r, p)
		}
	}
	return nil
}

func (t *inventoryTx) Rollback(context.Context) error {
	t.done = true
	t.inserted = nil
	t.patches = nil
	return nil
}

// fill sets the fields of patch on the record columns that are still empty.
func fill(r book.Record, p book.Metadata) book.Record {
	r.Description = firstSet(r.Description, p.Description)
	r.PublishedDate = firstSet(r.PublishedDate, p.PublishedDate)
	r.ISBN = firstSet(r.ISBN, p.ISBN)
	r.OfficialCoverURL = firstSet(r.OfficialCoverURL, p.CoverImageURL)
	return r
}

func firstSet(current, candidate string) string {
	if current != "" {
		return current
	}
	return candidate
}
