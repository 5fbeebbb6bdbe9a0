package catalog

import (
	"net/http"
	"testing"

	"github.com/jarcoal/httpmock"
)

const (
	testNaverURL  = "https://naver.test/v1/search/book.json"
	testGoogleURL = "https://google.test/books/v1/volumes"
)

// newMockClient returns an HTTP client backed by its own mock transport so
// tests can run in parallel.
func newMockClient(t *testing.T) (*http.Client, *httpmock.MockTransport) {
	t.Helper()
	mt := httpmock.NewMockTransport()
	return &http.Client{Transport: mt}, mt
}

func newTestNaver(client *http.Client) *Naver {
	return NewNaver(NaverConfig{
		ClientID:     "id",
		ClientSecret: "secret",
		BaseURL:      "https://naver.test",
		HTTPClient:   client,
	})
}

func newTestGoogleBooks(client *http.Client) *GoogleBooks {
	return NewGoogleBooks(GoogleBooksConfig{
		BaseURL:    "https://google.test/books/v1",
		Language:   "ko",
		Retry:      FixedRetryPolicy{MaxAttempts: 2},
		HTTPClient: client,
	})
}
