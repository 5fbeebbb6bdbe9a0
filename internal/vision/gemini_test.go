package vision

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/shelfscan/internal/book"
)

type fakeModel struct {
	resp  *genai.GenerateContentResponse
	err   error
	parts []genai.Part
	ctxOK bool
}

func (f *fakeModel) GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error) {
	f.parts = parts
	_, f.ctxOK = ctx.Deadline()
	return f.resp, f.err
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []genai.Part{genai.Text(text)}},
		}},
	}
}

func TestExtract(t *testing.T) {
	t.Parallel()

	model := &fakeModel{resp: textResponse(`[{"title":"Dune","author":"Herbert","publisher":""}]`)}
	g := newWithGenerator(model, time.Second, nil)

	got, err := g.Extract(context.Background(), []byte{0xff, 0xd8}, "image/jpeg")
	require.NoError(t, err)
	assert.Equal(t, []book.Candidate{{Title: "Dune", Author: "Herbert"}}, got)

	require.Len(t, model.parts, 2)
	blob, ok := model.parts[1].(genai.Blob)
	require.True(t, ok)
	assert.Equal(t, "image/jpeg", blob.MIMEType)
	assert.True(t, model.ctxOK, "extraction runs under a deadline")
	assert.NoError(t, g.Close())
}

func TestExtractErrors(t *testing.T) {
	t.Parallel()

	g := newWithGenerator(&fakeModel{err: errors.New("quota")}, time.Second, nil)
	_, err := g.Extract(context.Background(), nil, "image/png")
	require.Error(t, err)

	g = newWithGenerator(&fakeModel{resp: &genai.GenerateContentResponse{}}, time.Second, nil)
	_, err = g.Extract(context.Background(), nil, "image/png")
	assert.ErrorIs(t, err, book.ErrVisionParse)

	g = newWithGenerator(&fakeModel{resp: textResponse("sorry, I cannot")}, time.Second, nil)
	_, err = g.Extract(context.Background(), nil, "image/png")
	assert.ErrorIs(t, err, book.ErrVisionParse)
}

func TestNewGeminiRequiresKey(t *testing.T) {
	t.Parallel()

	_, err := NewGemini(context.Background(), Config{})
	require.Error(t, err)
}
