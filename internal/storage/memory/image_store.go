package memory

import (
	"context"
	"fmt"
	"path"
	"sync"
)

// ImageStore keeps uploaded images in memory.
type ImageStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewImageStore creates an empty image store.
func NewImageStore() *ImageStore {
	return &ImageStore{data: make(map[string][]byte)}
}

// Save stores a copy of data and returns its relative path.
func (s *ImageStore) Save(_ context.Context, name string, data []byte) (string, error) {
	if name == "" || path.Base(name) != name {
		return "", fmt.Errorf("invalid image name %q", name)
	}
	p := path.Join("uploads", name)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[p] = append([]byte(nil), data...)
	return p, nil
}

// Delete removes a stored image. Missing images are ignored.
func (s *ImageStore) Delete(_ context.Context, p string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, p)
	return nil
}

// Purge removes every image.
func (s *ImageStore) Purge(context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.data)
	s.data = make(map[string][]byte)
	return n, nil
}

// Get returns the bytes stored at p.
func (s *ImageStore) Get(p string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.data[p]
	return data, ok
}

// Len reports how many images are stored.
func (s *ImageStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}
