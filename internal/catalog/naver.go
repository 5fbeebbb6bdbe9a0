package catalog

import (
	"context"
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
	// NaverName identifies the primary catalog in logs and metrics.
	NaverName = "naver"

	naverBaseURL = "https://openapi.naver.com"
)

// NaverConfig configures the Naver book search client.
type NaverConfig struct {
	ClientID     string
	ClientSecret string
	BaseURL      string
	Timeout      time.Duration
	HTTPClient   *http.Client
	Limiter      *ratelimit.Limiter
	Logger       *zap.Logger
}

// Naver queries the Naver book search API. Requests are single attempt.
type Naver struct {
	req          requester
	baseURL      string
	clientID     string
	clientSecret string
	logger       *zap.Logger
}

var _ book.CatalogProvider = (*Naver)(nil)

// NewNaver builds the client. Missing credentials leave it unconfigured, in
// which case every lookup reports no result.
func NewNaver(cfg NaverConfig) *Naver {
	client := cfg.HTTPClient
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		client = newHTTPClient(timeout)
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = naverBaseURL
	}
	return &Naver{
		req:          requester{client: client, limiter: cfg.Limiter},
		baseURL:      base,
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		logger:       nopIfNil(cfg.Logger).Named(NaverName),
	}
}

// Name implements book.CatalogProvider.
func (n *Naver) Name() string { return NaverName }

// Configured reports whether both credentials are present.
func (n *Naver) Configured() bool {
	return n.clientID != "" && n.clientSecret != ""
}

type naverResponse struct {
	Items []struct {
		Title       string `json:"title"`
		Image       string `json:"image"`
		Author      string `json:"author"`
		Publisher   string `json:"publisher"`
		Pubdate     string `json:"pubdate"`
		ISBN        string `json:"isbn"`
		Description string `json:"description"`
	} `json:"items"`
}

// Lookup searches by "title author" and normalizes the first item.
func (n *Naver) Lookup(ctx context.Context, title, author string) (*book.Metadata, error) {
	if !n.Configured() {
		n.logger.Debug("naver credentials not configured, skipping")
		return nil, nil
	}
	start := time.Now()
	meta, err := n.lookup(ctx, title, author)
	observe(NaverName, start, meta, err)
	return meta, err
}

func (n *Naver) lookup(ctx context.Context, title, author string) (*book.Metadata, error) {
	query := strings.TrimSpace(strings.TrimSpace(title) + " " + strings.TrimSpace(author))
	params := url.Values{}
	params.Set("query", query)
	params.Set("display", "1")
	endpoint := n.baseURL + "/v1/search/book.json?" + params.Encode()

	header := http.Header{}
	header.Set("X-Naver-Client-Id", n.clientID)
	header.Set("X-Naver-Client-Secret", n.clientSecret)

	var resp naverResponse
	if err := n.req.getJSON(ctx, endpoint, header, &resp); err != nil {
		n.logger.Warn("naver request failed", zap.String("query", query), zap.Error(err))
		return nil, fmt.Errorf("%w: naver: %v", book.ErrUnavailable, err)
	}
	if len(resp.Items) == 0 {
		return nil, nil
	}

	item := resp.Items[0]
	n.logger.Debug("naver match",
		zap.String("query", query),
		zap.String("match", StripMarkup(item.Title)),
		zap.Bool("has_cover", item.Image != ""),
	)
	return &book.Metadata{
		Description:   StripMarkup(item.Description),
		PublishedDate: CompactDate(item.Pubdate),
		ISBN:          PreferISBN13(item.ISBN),
		CoverImageURL: ForceHTTPS(item.Image),
	}, nil
}
