package enrich

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/JakeFAU/shelfscan/internal/book"
)

type stubProvider struct {
	name  string
	meta  *book.Metadata
	err   error
	calls int
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) Lookup(context.Context, string, string) (*book.Metadata, error) {
	s.calls++
	return s.meta, s.err
}

func TestLookupSkipsFallbackWhenPrimaryHasCover(t *testing.T) {
	t.Parallel()

	a := &stubProvider{name: "a", meta: &book.Metadata{
		ISBN:          "9788966262335",
		PublishedDate: "2019-12-25",
		CoverImageURL: "https://shopping-phinf.pstatic.net/cover.jpg",
	}}
	b := &stubProvider{name: "b", meta: &book.Metadata{Description: "never used"}}

	got := New(a, b, nil).Lookup(context.Background(), "Clean Code", "Martin")

	assert.Equal(t, 0, b.calls)
	assert.Equal(t, "", got.Description)
	assert.Equal(t, "9788966262335", got.ISBN)
	assert.Equal(t, "https://shopping-phinf.pstatic.net/cover.jpg", got.CoverImageURL)
}

func TestLookupFallsBackWhenPrimaryLacksCover(t *testing.T) {
	t.Parallel()

	a := &stubProvider{name: "a", meta: &book.Metadata{ISBN: "9788966262335"}}
	b := &stubProvider{name: "b", meta: &book.Metadata{ISBN: "9780132350884", CoverImageURL: "https://b/c.jpg", Description: "d"}}

	got := New(a, b, nil).Lookup(context.Background(), "Clean Code", "")

	assert.Equal(t, 1, b.calls)
	assert.Equal(t, book.Metadata{ISBN: "9788966262335", CoverImageURL: "https://b/c.jpg", Description: "d"}, got)
}

func TestLookupPrimaryUnavailable(t *testing.T) {
	t.Parallel()

	a := &stubProvider{name: "a", err: fmt.Errorf("%w: timeout", book.ErrUnavailable)}
	b := &stubProvider{name: "b", meta: &book.Metadata{Description: "X"}}

	got := New(a, b, nil).Lookup(context.Background(), "Clean Code", "")

	assert.Equal(t, 1, a.calls)
	assert.Equal(t, 1, b.calls)
	assert.Equal(t, "X", got.Description)
}

func TestLookupBothEmpty(t *testing.T) {
	t.Parallel()

	a := &stubProvider{name: "a"}
	b := &stubProvider{name: "b", err: book.ErrUnavailable}

	got := New(a, b, nil).Lookup(context.Background(), "Nothing", "")
	assert.True(t, got.IsEmpty())
}

func TestLookupNilProviders(t *testing.T) {
	t.Parallel()

	b := &stubProvider{name: "b", meta: &book.Metadata{ISBN: "1"}}
	assert.Equal(t, "1", New(nil, b, nil).Lookup(context.Background(), "t", "").ISBN)
	assert.True(t, New(nil, nil, nil).Lookup(context.Background(), "t", "").IsEmpty())
}
