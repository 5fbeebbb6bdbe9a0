package enrich

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/shelfscan/internal/catalog"
)

func newCatalogs(t *testing.T) (*catalog.Naver, *catalog.GoogleBooks, *httpmock.MockTransport) {
	t.Helper()
	mt := httpmock.NewMockTransport()
	client := &http.Client{Transport: mt}
	naver := catalog.NewNaver(catalog.NaverConfig{
		ClientID:     "id",
		ClientSecret: "secret",
		BaseURL:      "https://naver.test",
		HTTPClient:   client,
	})
	google := catalog.NewGoogleBooks(catalog.GoogleBooksConfig{
		BaseURL:    "https://google.test/books/v1",
		Language:   "ko",
		Retry:      catalog.FixedRetryPolicy{MaxAttempts: 2},
		HTTPClient: client,
	})
	return naver, google, mt
}

func TestNaverCoverShortCircuitsGoogle(t *testing.T) {
	t.Parallel()

	naver, google, mt := newCatalogs(t)
	mt.RegisterResponder(http.MethodGet, "https://naver.test/v1/search/book.json",
		httpmock.NewStringResponder(http.StatusOK, `{"items":[{
			"isbn": "8966262333 9788966262335",
			"pubdate": "20191225",
			"image": "http://shopping-phinf.pstatic.net/c.jpg",
			"description": ""
		}]}`))
	mt.RegisterResponder(http.MethodGet, "https://google.test/books/v1/volumes",
		httpmock.NewStringResponder(http.StatusOK, `{"items":[{"volumeInfo":{"description":"google"}}]}`))

	got := New(naver, google, nil).Lookup(context.Background(), "Clean Code", "Martin")

	assert.Equal(t, "9788966262335", got.ISBN)
	assert.Equal(t, "2019-12-25", got.PublishedDate)
	assert.Equal(t, "https://shopping-phinf.pstatic.net/c.jpg", got.CoverImageURL)
	assert.Equal(t, "", got.Description)
	assert.Zero(t, mt.GetCallCountInfo()["GET https://google.test/books/v1/volumes"])
}

func TestNaverDownGoogleKeywordFallback(t *testing.T) {
	t.Parallel()

	naver, google, mt := newCatalogs(t)
	mt.RegisterResponder(http.MethodGet, "https://naver.test/v1/search/book.json",
		httpmock.NewErrorResponder(errors.New("dial tcp: i/o timeout")))
	mt.RegisterResponder(http.MethodGet, "https://google.test/books/v1/volumes",
		func(req *http.Request) (*http.Response, error) {
			if strings.HasPrefix(req.URL.Query().Get("q"), "intitle:") {
				return httpmock.NewStringResponse(http.StatusOK, `{"totalItems":0}`), nil
			}
			return httpmock.NewStringResponse(http.StatusOK,
				`{"items":[{"volumeInfo":{"description":"X","industryIdentifiers":[]}}]}`), nil
		})

	got := New(naver, google, nil).Lookup(context.Background(), "Some Book", "Someone")

	require.Equal(t, "X", got.Description)
	assert.Equal(t, "", got.ISBN)
	assert.Equal(t, "", got.CoverImageURL)
	assert.Equal(t, "", got.PublishedDate)
}
