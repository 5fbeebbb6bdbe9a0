package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestSanitizeHost(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{"standard https", "https://OpenAPI.naver.com/v1/search/book.json", "openapi.naver.com"},
		{"no scheme", "www.googleapis.com/books/v1/volumes", "www.googleapis.com"},
		{"host with port", "127.0.0.1:8080", "127.0.0.1"},
		{"invalid url", "http://%", "unknown"},
		{"empty string", "", "unknown"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := SanitizeHost(tc.input); got != tc.expected {
				t.Errorf("SanitizeHost(%q) = %q; want %q", tc.input, got, tc.expected)
			}
		})
	}
}

func TestInit(t *testing.T) {
	// Call Init multiple times to test idempotency.
	Init()
	Init()

	if catalogLookupsTotal == nil || batchesTotal == nil ||
		httpRequestsTotal == nil || httpRequestDurationSeconds == nil {
		t.Fatal("Init() did not initialize metrics collectors")
	}
}

func TestObserveCatalogLookup(t *testing.T) {
	before := testutil.ToFloat64(catalogCounter("test-provider", OutcomeHit))
	ObserveCatalogLookup("test-provider", OutcomeHit, 20*time.Millisecond)
	ObserveCatalogLookup("test-provider", OutcomeMiss, 5*time.Millisecond)

	if got := testutil.ToFloat64(catalogCounter("test-provider", OutcomeHit)); got != before+1 {
		t.Errorf("expected hit counter %f, got %f", before+1, got)
	}
	if val := testutil.CollectAndCount(catalogLookupDurationSeconds); val <= 0 {
		t.Errorf("expected lookup duration to be observed, got %d", val)
	}
}

func TestObserveReenrichUpdatesIgnoresZero(t *testing.T) {
	Init()
	before := testutil.ToFloat64(reenrichUpdatesTotal)
	ObserveReenrichUpdates(0)
	ObserveReenrichUpdates(3)
	if got := testutil.ToFloat64(reenrichUpdatesTotal); got != before+3 {
		t.Errorf("expected %f updates, got %f", before+3, got)
	}
}

func catalogCounter(provider, outcome string) prometheus.Counter {
	Init()
	return catalogLookupsTotal.WithLabelValues(provider, outcome)
}

// Fuzz test for SanitizeHost.
func FuzzSanitizeHost(f *testing.F) {
	testcases := []string{"https://openapi.naver.com", "https://www.googleapis.com", "ftp://example.com"}
	for _, tc := range testcases {
		f.Add(tc)
	}
	f.Fuzz(func(t *testing.T, orig string) {
		if SanitizeHost(orig) == "" {
			t.Errorf("SanitizeHost(%q) returned an empty string", orig)
		}
	})
}
