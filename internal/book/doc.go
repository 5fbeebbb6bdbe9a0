// Package book holds the domain types shared by the ingestion pipeline:
// vision candidates, catalog metadata, persisted inventory records, and the
// interfaces the pipeline depends on. It must not import drivers or clients.
package book
