package ingest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/shelfscan/internal/book"
)

func TestDedupPrefersISBN(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newFaultyStore()
	tx, err := store.Begin(ctx)
	require.NoError(t, err)
	byISBN, err := tx.Insert(ctx, book.NewRecord{
		Candidate: book.Candidate{Title: "Other Title", Author: "Other"},
		Metadata:  book.Metadata{ISBN: "9788966262335"},
	})
	require.NoError(t, err)
	byName, err := tx.Insert(ctx, book.NewRecord{Candidate: book.Candidate{Title: "Clean Code", Author: "Martin"}})
	require.NoError(t, err)

	var d Dedup
	got, err := d.Existing(ctx, tx, book.Metadata{ISBN: "9788966262335"}, book.Candidate{Title: "Clean Code", Author: "Martin"})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, byISBN.ID, got.ID)

	got, err = d.Existing(ctx, tx, book.Metadata{ISBN: "0000000000000"}, book.Candidate{Title: "Clean Code", Author: "Martin"})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, byName.ID, got.ID)

	got, err = d.Existing(ctx, tx, book.Metadata{}, book.Candidate{Title: "Clean Code", Author: "Someone Else"})
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestDedupReturnsStoreErrors(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newFaultyStore()
	store.findErr = errConnLost
	tx, err := store.Begin(ctx)
	require.NoError(t, err)

	_, err = Dedup{}.Existing(ctx, tx, book.Metadata{}, book.Candidate{Title: "x"})
	assert.ErrorIs(t, err, errConnLost)
}
