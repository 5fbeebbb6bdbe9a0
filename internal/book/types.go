package book

import (
	"strings"
	"time"
)

// UnknownTitle is used when the vision output omits the title key entirely.
const UnknownTitle = "Unknown"

// Candidate is one book guess extracted from a shelf photo.
type Candidate struct {
	Title     string `json:"title"`
	Author    string `json:"author"`
	Publisher string `json:"publisher"`
}

// Trimmed returns the candidate with surrounding whitespace removed from every field.
func (c Candidate) Trimmed() Candidate {
	return Candidate{
		Title:     strings.TrimSpace(c.Title),
		Author:    strings.TrimSpace(c.Author),
		Publisher: strings.TrimSpace(c.Publisher),
	}
}

// Metadata is the normalized answer of one catalog lookup, or the merge of
// several. Empty strings mean "unknown".
type Metadata struct {
	Description   string `json:"description"`
	PublishedDate string `json:"published_date"`
	ISBN          string `json:"isbn"`
	CoverImageURL string `json:"official_cover_url"`
}

// IsEmpty reports whether no field carries data.
func (m Metadata) IsEmpty() bool {
	return m.Description == "" && m.PublishedDate == "" && m.ISBN == "" && m.CoverImageURL == ""
}

// Record is a persisted inventory row.
type Record struct {
	ID               int64     `json:"id"`
	Title            string    `json:"title"`
	Author           string    `json:"author"`
	Publisher        string    `json:"publisher"`
	ImageURL         string    `json:"image_url"`
	Description      string    `json:"description"`
	ISBN             string    `json:"isbn"`
	PublishedDate    string    `json:"published_date"`
	OfficialCoverURL string    `json:"official_cover_url"`
	CreatedAt        time.Time `json:"created_at"`
}

// Metadata projects the enrichment columns of the record.
func (r Record) Metadata() Metadata {
	return Metadata{
		Description:   r.Description,
		PublishedDate: r.PublishedDate,
		ISBN:          r.ISBN,
		CoverImageURL: r.OfficialCoverURL,
	}
}

// NewRecord is the insert payload; the store assigns ID and CreatedAt.
type NewRecord struct {
	Candidate
	ImageURL string
	Metadata
}

// BatchEvent is published after an ingest batch commits.
type BatchEvent struct {
	ImageURL      string    `json:"image_url"`
	TotalFound    int       `json:"total_found"`
	TotalInserted int       `json:"total_inserted"`
	RecordIDs     []int64   `json:"record_ids"`
	ISBNs         []string  `json:"isbns"`
	CommittedAt   time.Time `json:"committed_at"`
}
