package object

import (
	"context"
	"errors"
	"io"
	"time"
)

var (
	// ErrNotFound is returned when a key does not exist.
	ErrNotFound = errors.New("object not found")
	// ErrExists is returned by Put when overwrite is false and the key is taken.
	ErrExists = errors.New("object already exists")
)

// Info describes a stored object.
type Info struct {
	Key         string
	Size        int64
	ContentType string
	UpdatedAt   time.Time
}

// Store is a single bucket of binary objects addressed by slash-separated keys.
type Store interface {
	Put(ctx context.Context, key, contentType string, r io.Reader, overwrite bool) (int64, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Stat(ctx context.Context, key string) (Info, error)
	// List returns objects directly under prefix, most recently updated first.
	List(ctx context.Context, prefix string, limit int) ([]Info, error)
	SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
	PublicURL(key string) string
}

// Presigner is implemented by stores that can hand out direct upload URLs.
type Presigner interface {
	PresignPut(ctx context.Context, key, contentType string, ttl time.Duration) (string, error)
}
