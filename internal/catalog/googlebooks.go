package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/shelfscan/internal/book"
	"github.com/JakeFAU/shelfscan/internal/policy/ratelimit"
)

const (
	// GoogleBooksName identifies the fallback catalog in logs and metrics.
	GoogleBooksName = "google_books"

	googleBooksBaseURL = "https://www.googleapis.com/books/v1"
)

// GoogleBooksConfig configures the Google Books client.
type GoogleBooksConfig struct {
	APIKey  string
	BaseURL string
	// Language restricts the first search strategy; empty disables it.
	Language   string
	Timeout    time.Duration
	Retry      FixedRetryPolicy
	HTTPClient *http.Client
	Limiter    *ratelimit.Limiter
	Logger     *zap.Logger
}

// GoogleBooks queries the Google Books volumes API with a fielded search
// first and a free-text search second.
type GoogleBooks struct {
	req      requester
	baseURL  string
	apiKey   string
	language string
	retry    FixedRetryPolicy
	logger   *zap.Logger
}

var _ book.CatalogProvider = (*GoogleBooks)(nil)

// NewGoogleBooks builds the client.
func NewGoogleBooks(cfg GoogleBooksConfig) *GoogleBooks {
	client := cfg.HTTPClient
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		client = newHTTPClient(timeout)
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = googleBooksBaseURL
	}
	retry := cfg.Retry
	if retry.MaxAttempts <= 0 {
		retry = DefaultRetryPolicy()
	}
	return &GoogleBooks{
		req:      requester{client: client, limiter: cfg.Limiter},
		baseURL:  base,
		apiKey:   cfg.APIKey,
		language: cfg.Language,
		retry:    retry,
		logger:   nopIfNil(cfg.Logger).Named(GoogleBooksName),
	}
}

// Name implements book.CatalogProvider.
func (g *GoogleBooks) Name() string { return GoogleBooksName }

type volumesResponse struct {
	TotalItems int `json:"totalItems"`
	Items      []struct {
		VolumeInfo struct {
			Title               string       `json:"title"`
			PublishedDate       string       `json:"publishedDate"`
			Description         string       `json:"description"`
			IndustryIdentifiers []Identifier `json:"industryIdentifiers"`
			ImageLinks          struct {
				Thumbnail string `json:"thumbnail"`
			} `json:"imageLinks"`
		} `json:"volumeInfo"`
	} `json:"items"`
}

// Lookup runs the fielded search and, when it yields nothing, the keyword search.
func (g *GoogleBooks) Lookup(ctx context.Context, title, author string) (*book.Metadata, error) {
	start := time.Now()
	meta, err := g.lookup(ctx, title, author)
	observe(GoogleBooksName, start, meta, err)
	return meta, err
}

func (g *GoogleBooks) lookup(ctx context.Context, title, author string) (*book.Metadata, error) {
	title = strings.TrimSpace(title)
	author = strings.TrimSpace(author)

	fielded := "intitle:" + title
	if author != "" {
		fielded += " inauthor:" + author
	}
	meta, fieldedErr := g.search(ctx, fielded, g.language)
	if meta != nil {
		return meta, nil
	}
	if fieldedErr != nil && errors.Is(fieldedErr, context.Canceled) {
		return nil, fmt.Errorf("%w: google books: %v", book.ErrUnavailable, fieldedErr)
	}

	g.logger.Debug("fielded search found nothing, trying keywords", zap.String("title", title))
	keywords := strings.TrimSpace(title + " " + author)
	meta, keywordErr := g.search(ctx, keywords, "")
	if meta != nil {
		return meta, nil
	}
	if fieldedErr != nil && keywordErr != nil {
		return nil, fmt.Errorf("%w: google books: %v", book.ErrUnavailable, errors.Join(fieldedErr, keywordErr))
	}
	return nil, nil
}

// search performs one strategy under the retry policy. A nil result with a
// nil error means the catalog answered without items.
func (g *GoogleBooks) search(ctx context.Context, query, lang string) (*book.Metadata, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("maxResults", "1")
	if lang != "" {
		params.Set("langRestrict", lang)
	}
	if g.apiKey != "" {
		params.Set("key", g.apiKey)
	}
	endpoint := g.baseURL + "/volumes?" + params.Encode()

	var resp volumesResponse
	var err error
	for attempt := 1; ; attempt++ {
		resp = volumesResponse{}
		err = g.req.getJSON(ctx, endpoint, nil, &resp)
		if err == nil || !g.retry.ShouldRetry(err, attempt) {
			break
		}
		g.logger.Warn("google books request failed, retrying",
			zap.String("query", query),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		if sleepErr := sleepCtx(ctx, g.retry.Backoff(attempt)); sleepErr != nil {
			err = errors.Join(err, sleepErr)
			break
		}
	}
	if err != nil {
		g.logger.Error("google books request gave up", zap.String("query", query), zap.Error(err))
		return nil, err
	}
	if len(resp.Items) == 0 {
		return nil, nil
	}

	info := resp.Items[0].VolumeInfo
	return &book.Metadata{
		Description:   strings.TrimSpace(info.Description),
		PublishedDate: strings.TrimSpace(info.PublishedDate),
		ISBN:          PickIdentifier(info.IndustryIdentifiers),
		CoverImageURL: ForceHTTPS(info.ImageLinks.Thumbnail),
	}, nil
}
