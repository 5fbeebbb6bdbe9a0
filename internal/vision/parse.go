// Package vision extracts book candidates from shelf photos with Gemini.
package vision

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/JakeFAU/shelfscan/internal/book"
)

var fence = regexp.MustCompile("^```(?:json)?\\s*|\\s*```$")

type rawCandidate struct {
	Title     *string `json:"title"`
	Author    *string `json:"author"`
	Publisher *string `json:"publisher"`
}

// ParseCandidates decodes the model output. The text must be a JSON array of
// objects, optionally wrapped in a markdown code fence. A missing title
// becomes book.UnknownTitle.
func ParseCandidates(text string) ([]book.Candidate, error) {
	cleaned := fence.ReplaceAllString(strings.TrimSpace(text), "")
	if !strings.HasPrefix(cleaned, "[") {
		return nil, fmt.Errorf("%w: expected a JSON array", book.ErrVisionParse)
	}

	var raw []rawCandidate
	if err := json.Unmarshal([]byte(cleaned), &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", book.ErrVisionParse, err)
	}

	out := make([]book.Candidate, 0, len(raw))
	for _, r := range raw {
		c := book.Candidate{
			Title:     book.UnknownTitle,
			Author:    deref(r.Author),
			Publisher: deref(r.Publisher),
		}
		if r.Title != nil {
			c.Title = *r.Title
		}
		out = append(out, c.Trimmed())
	}
	return out, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
