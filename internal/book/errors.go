package book

import "errors"

var (
	// ErrUnavailable marks a catalog that could not answer within its retry budget.
	ErrUnavailable = errors.New("catalog unavailable")
	// ErrRecordRejected marks a single insert refused by the store.
	ErrRecordRejected = errors.New("record rejected")
	// ErrBatchAborted marks an ingest batch that was rolled back.
	ErrBatchAborted = errors.New("batch aborted")
	// ErrVisionParse marks vision output that is not a JSON list of candidates.
	ErrVisionParse = errors.New("vision output not parseable")
	// ErrNotFound signals that the requested record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrInvalidUpload marks an upload that failed validation.
	ErrInvalidUpload = errors.New("invalid upload")
)
