package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/JakeFAU/shelfscan/internal/book"
	"github.com/JakeFAU/shelfscan/internal/metrics"
	"github.com/JakeFAU/shelfscan/internal/policy/ratelimit"
)

// maxBodyBytes caps how much of a catalog response is read.
const maxBodyBytes = 4 << 20

// StatusError reports a non-200 catalog response.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("catalog returned status %d", e.Code)
}

type requester struct {
	client  *http.Client
	limiter *ratelimit.Limiter
}

func (r requester) getJSON(ctx context.Context, endpoint string, header http.Header, out any) error {
	if err := r.limiter.Wait(ctx, endpoint); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("catalog request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return &StatusError{Code: resp.StatusCode}
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(out); err != nil {
		return fmt.Errorf("%w: %v", errMalformed, err)
	}
	return nil
}

func newHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout, Transport: otelhttp.NewTransport(http.DefaultTransport)}
}

// observe records the outcome of one provider lookup.
func observe(provider string, start time.Time, meta *book.Metadata, err error) {
	outcome := metrics.OutcomeHit
	switch {
	case err != nil:
		outcome = metrics.OutcomeUnavailable
	case meta == nil:
		outcome = metrics.OutcomeMiss
	}
	metrics.ObserveCatalogLookup(provider, outcome, time.Since(start))
}

func nopIfNil(logger *zap.Logger) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}
