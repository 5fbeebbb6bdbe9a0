package uuid

import (
	"strings"
	"testing"

	goUUID "github.com/google/uuid"
)

// TestGeneratorNewID ensures generated IDs are unique and valid UUIDs.
func TestGeneratorNewID(t *testing.T) {
	t.Parallel()

	gen := New()
	id1, err := gen.NewID()
	if err != nil {
		t.Fatalf("NewID() error = %v", err)
	}
	id2, err := gen.NewID()
	if err != nil {
		t.Fatalf("NewID() error = %v", err)
	}
	if id1 == id2 {
		t.Fatalf("expected unique IDs, got %s and %s", id1, id2)
	}
	parsed, err := goUUID.Parse(id1)
	if err != nil {
		t.Fatalf("id1 not valid UUID: %v", err)
	}
	if parsed.Version() != 7 {
		t.Fatalf("expected version 7, got %d", parsed.Version())
	}
}

func TestGeneratorNewFileName(t *testing.T) {
	t.Parallel()

	gen := New()
	name, err := gen.NewFileName("Shelf.JPG")
	if err != nil {
		t.Fatalf("NewFileName() error = %v", err)
	}
	if !strings.HasSuffix(name, ".jpg") {
		t.Fatalf("expected lowercased .jpg suffix, got %s", name)
	}
	if _, err := goUUID.Parse(strings.TrimSuffix(name, ".jpg")); err != nil {
		t.Fatalf("token is not a UUID: %v", err)
	}
}
