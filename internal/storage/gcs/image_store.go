// Package gcs provides an image store backed by Google Cloud Storage.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
)

// PathPrefix is both the object prefix and the logical path prefix.
const PathPrefix = "uploads/"

// Config captures the parameters required to connect to GCS.
type Config struct {
	Bucket string
}

// ImageStore writes shelf photos to a configured GCS bucket.
type ImageStore struct {
	client *storage.Client
	bucket string
}

// New creates a GCS-backed image store.
func New(client *storage.Client, cfg Config) (*ImageStore, error) {
	if client == nil {
		return nil, fmt.Errorf("storage client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	return &ImageStore{client: client, bucket: cfg.Bucket}, nil
}

// Save uploads data as uploads/<name> and returns that object name.
func (s *ImageStore) Save(ctx context.Context, name string, data []byte) (string, error) {
	object, err := objectName(name)
	if err != nil {
		return "", err
	}
	writer := s.client.Bucket(s.bucket).Object(object).NewWriter(ctx)
	writer.ContentType = contentType(name)
	if _, err := writer.Write(data); err != nil {
		if closeErr := writer.Close(); closeErr != nil {
			return "", fmt.Errorf("write object: %w (close writer: %v)", err, closeErr)
		}
		return "", fmt.Errorf("write object: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("close writer: %w", err)
	}
	return object, nil
}

// Delete removes an object previously returned by Save.
func (s *ImageStore) Delete(ctx context.Context, p string) error {
	if !strings.HasPrefix(p, PathPrefix) {
		return fmt.Errorf("object %q is outside %s", p, PathPrefix)
	}
	err := s.client.Bucket(s.bucket).Object(p).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}

// Purge deletes every object under the uploads prefix.
func (s *ImageStore) Purge(ctx context.Context) (int, error) {
	bucket := s.client.Bucket(s.bucket)
	it := bucket.Objects(ctx, &storage.Query{Prefix: PathPrefix})
	deleted := 0
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			return deleted, nil
		}
		if err != nil {
			return deleted, fmt.Errorf("list objects: %w", err)
		}
		if err := bucket.Object(attrs.Name).Delete(ctx); err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
			return deleted, fmt.Errorf("delete %s: %w", attrs.Name, err)
		}
		deleted++
	}
}

func objectName(name string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", fmt.Errorf("image name is required")
	}
	if path.Base(name) != name {
		return "", fmt.Errorf("invalid image name %q", name)
	}
	return PathPrefix + name, nil
}

func contentType(name string) string {
	switch strings.ToLower(path.Ext(name)) {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	default:
		return "application/octet-stream"
	}
}

// Open creates a storage client using Application Default Credentials and
// fails fast when the bucket is not reachable.
func Open(ctx context.Context, cfg Config) (*ImageStore, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}
	if _, err := client.Bucket(cfg.Bucket).Attrs(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to get GCS bucket %q attributes: %w", cfg.Bucket, err)
	}
	return New(client, cfg)
}

// Close releases the storage client.
func (s *ImageStore) Close() error {
	if err := s.client.Close(); err != nil {
		return fmt.Errorf("close storage client: %w", err)
	}
	return nil
}
