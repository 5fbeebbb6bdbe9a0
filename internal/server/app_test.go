package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/shelfscan/internal/book"
	"github.com/JakeFAU/shelfscan/internal/config"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	return config.Config{
		App:     config.AppConfig{Env: "development"},
		Server:  config.ServerConfig{Port: freePort(t), RequestTimeoutSeconds: 5},
		Logging: config.LoggingConfig{Development: true, Level: "error"},
		Naver:   config.NaverConfig{BaseURL: "http://127.0.0.1:1", TimeoutSeconds: 1},
		GoogleBooks: config.GoogleBooksConfig{
			BaseURL:        "http://127.0.0.1:1",
			TimeoutSeconds: 1,
			MaxAttempts:    1,
		},
		Catalog: config.CatalogConfig{CacheTTLSeconds: 60},
		Upload:  config.UploadConfig{Backend: "local", Dir: t.TempDir(), MaxBytes: 1 << 20},
	}
}

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())
	return port
}

func TestBuildWithoutExternalServices(t *testing.T) {
	ctx := context.Background()
	app, err := Build(ctx, testConfig(t))
	require.NoError(t, err)
	t.Cleanup(func() { app.Close(ctx) })

	rec := httptest.NewRecorder()
	app.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	app.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/books", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	// No vision key: uploads are refused.
	rec = httptest.NewRecorder()
	app.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/vision", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestSweepOnEmptyInventory(t *testing.T) {
	ctx := context.Background()
	app, err := Build(ctx, testConfig(t))
	require.NoError(t, err)
	t.Cleanup(func() { app.Close(ctx) })

	res, err := app.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, res.TotalChecked)
	assert.Zero(t, res.UpdatedCount)
}

func TestSweepBypassesLookupCache(t *testing.T) {
	var calls atomic.Int32
	var published atomic.Bool
	google := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		if !published.Load() {
			_, _ = fmt.Fprint(w, `{"totalItems":0}`)
			return
		}
		_, _ = fmt.Fprint(w, `{"totalItems":1,"items":[{"volumeInfo":{"industryIdentifiers":[{"type":"ISBN_13","identifier":"9780441013593"}]}}]}`)
	}))
	t.Cleanup(google.Close)

	cfg := testConfig(t)
	cfg.GoogleBooks.BaseURL = google.URL
	require.Positive(t, cfg.Catalog.CacheTTLSeconds)

	ctx := context.Background()
	app, err := Build(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { app.Close(ctx) })

	tx, err := app.store.Begin(ctx)
	require.NoError(t, err)
	_, err = tx.Insert(ctx, book.NewRecord{
		Candidate: book.Candidate{Title: "Dune", Author: "Frank Herbert"},
		ImageURL:  "uploads/shelf.png",
	})
	require.NoError(t, err)
	require.NoError(t, tx.Commit(ctx))

	res, err := app.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, res.UpdatedCount)
	afterFirst := calls.Load()
	require.Positive(t, afterFirst)

	published.Store(true)
	res, err = app.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.UpdatedCount)
	assert.Greater(t, calls.Load(), afterFirst)

	records, err := app.store.List(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "9780441013593", records[0].ISBN)
}

func TestBuildFailsOnBadLogLevel(t *testing.T) {
	cfg := testConfig(t)
	cfg.Logging.Level = "loud"

	_, err := Build(context.Background(), cfg)
	require.Error(t, err)
}

func TestRunStopsOnCancel(t *testing.T) {
	cfg := testConfig(t)
	app, err := Build(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { app.Close(context.Background()) })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	addr := net.JoinHostPort("127.0.0.1", strconv.Itoa(cfg.Server.Port))
	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/healthz")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(15 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
