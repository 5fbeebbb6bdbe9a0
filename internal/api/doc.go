// Package api hosts the HTTP server, middleware, and REST handlers.
// Notable routes:
//   - GET /healthz and /readyz for probes.
//   - GET /metrics for Prometheus scraping.
//   - POST /api/vision to ingest a shelf photo.
//   - GET /api/books to list the inventory, newest first.
//   - DELETE /api/books/{id}, GET|POST /api/books/reenrich and POST /api/reset
//     for administration, guarded by X-API-Key when auth is enabled.
package api
