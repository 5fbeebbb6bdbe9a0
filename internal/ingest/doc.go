// Package ingest turns the candidates found on one shelf photo into inventory
// records and backfills records that are missing catalog data.
//
// One photo is one batch: a single store transaction in which each candidate
// is enriched, checked for duplicates and inserted in order. A rejected insert
// only skips its own candidate; any other failure rolls the whole batch back
// and removes the stored photo.
package ingest
