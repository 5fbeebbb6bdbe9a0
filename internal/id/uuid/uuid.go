// Package uuid provides ID generation helpers.
package uuid

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Generator creates UUID v7 strings.
type Generator struct{}

// New creates a new Generator.
func New() *Generator {
	return &Generator{}
}

// NewID returns a UUID7 string.
func (Generator) NewID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate uuid7: %w", err)
	}
	return id.String(), nil
}

// NewFileName returns a unique upload file name that keeps the lowercased
// extension of original.
func (g Generator) NewFileName(original string) (string, error) {
	id, err := g.NewID()
	if err != nil {
		return "", err
	}
	return id + strings.ToLower(filepath.Ext(original)), nil
}
