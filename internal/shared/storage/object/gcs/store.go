package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"askmydocs-backend/internal/shared/gcp"
	"askmydocs-backend/internal/shared/storage/object"
)

// Options configures a Google Cloud Storage bucket.
type Options struct {
	Bucket        string
	Prefix        string
	PublicBaseURL string
}

// Store implements object.Store on Google Cloud Storage.
type Store struct {
	client  *storage.Client
	bucket  string
	prefix  string
	baseURL string
}

// New creates a GCS-backed object store.
func New(ctx context.Context, opts Options) (*Store, error) {
	if strings.TrimSpace(opts.Bucket) == "" {
		return nil, fmt.Errorf("gcs bucket is required")
	}
	copts := append(gcp.ClientOptions(), option.WithScopes(storage.ScopeReadWrite))
	client, err := storage.NewClient(ctx, copts...)
	if err != nil {
		return nil, fmt.Errorf("storage client: %w", err)
	}
	return &Store{
		client:  client,
		bucket:  opts.Bucket,
		prefix:  strings.Trim(opts.Prefix, "/"),
		baseURL: strings.TrimRight(opts.PublicBaseURL, "/"),
	}, nil
}

// Close releases the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) objectKey(key string) string {
	key = strings.TrimLeft(key, "/")
	if s.prefix == "" {
		return key
	}
	return s.prefix + "/" + key
}

// Put writes r to key. With overwrite false the write only succeeds if the
// object does not exist yet.
func (s *Store) Put(ctx context.Context, key, contentType string, r io.Reader, overwrite bool) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	obj := s.client.Bucket(s.bucket).Object(s.objectKey(key))
	if !overwrite {
		obj = obj.If(storage.Conditions{DoesNotExist: true})
	}
	w := obj.NewWriter(ctx)
	if contentType != "" {
		w.ContentType = contentType
	}
	n, err := io.Copy(w, r)
	if err != nil {
		_ = w.Close()
		return 0, fmt.Errorf("gcs write key=%s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		var gerr *googleapi.Error
		if errors.As(err, &gerr) && gerr.Code == http.StatusPreconditionFailed {
			return 0, object.ErrExists
		}
		return 0, fmt.Errorf("gcs close writer key=%s: %w", key, err)
	}
	return n, nil
}

type readCloserWithCancel struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (r *readCloserWithCancel) Close() error {
	err := r.ReadCloser.Close()
	if r.cancel != nil {
		r.cancel()
	}
	return err
}

// Open returns a reader that stays valid until it is closed.
func (s *Store) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	ctx2, cancel := context.WithTimeout(ctx, 2*time.Minute)
	r, err := s.client.Bucket(s.bucket).Object(s.objectKey(key)).NewReader(ctx2)
	if err != nil {
		cancel()
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, object.ErrNotFound
		}
		return nil, fmt.Errorf("gcs open key=%s: %w", key, err)
	}
	return &readCloserWithCancel{ReadCloser: r, cancel: cancel}, nil
}

// Stat reads object attributes.
func (s *Store) Stat(ctx context.Context, key string) (object.Info, error) {
	attrs, err := s.client.Bucket(s.bucket).Object(s.objectKey(key)).Attrs(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return object.Info{}, object.ErrNotFound
		}
		return object.Info{}, fmt.Errorf("gcs attrs key=%s: %w", key, err)
	}
	return s.info(attrs), nil
}

// List returns the objects directly under prefix, newest first.
func (s *Store) List(ctx context.Context, prefix string, limit int) ([]object.Info, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	it := s.client.Bucket(s.bucket).Objects(ctx, &storage.Query{
		Prefix:    s.objectKey(strings.Trim(prefix, "/")) + "/",
		Delimiter: "/",
	})
	var out []object.Info
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("gcs list prefix=%s: %w", prefix, err)
		}
		if attrs.Name == "" {
			continue
		}
		out = append(out, s.info(attrs))
	}
	return object.SortNewestFirst(out, limit), nil
}

// SignedURL returns a V4 signed GET URL.
func (s *Store) SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	u, err := s.client.Bucket(s.bucket).SignedURL(s.objectKey(key), &storage.SignedURLOptions{
		Scheme:  storage.SigningSchemeV4,
		Method:  http.MethodGet,
		Expires: time.Now().Add(ttl),
	})
	if err != nil {
		return "", fmt.Errorf("gcs signed url key=%s: %w", key, err)
	}
	return u, nil
}

// PresignPut returns a V4 signed PUT URL for direct uploads.
func (s *Store) PresignPut(ctx context.Context, key, contentType string, ttl time.Duration) (string, error) {
	opts := &storage.SignedURLOptions{
		Scheme:  storage.SigningSchemeV4,
		Method:  http.MethodPut,
		Expires: time.Now().Add(ttl),
	}
	if contentType != "" {
		opts.ContentType = contentType
	}
	u, err := s.client.Bucket(s.bucket).SignedURL(s.objectKey(key), opts)
	if err != nil {
		return "", fmt.Errorf("gcs signed put url key=%s: %w", key, err)
	}
	return u, nil
}

// PublicURL returns the object URL on storage.googleapis.com or a CDN base.
func (s *Store) PublicURL(key string) string {
	escaped := (&url.URL{Path: s.objectKey(key)}).EscapedPath()
	if s.baseURL != "" {
		return s.baseURL + "/" + escaped
	}
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", s.bucket, escaped)
}

func (s *Store) info(attrs *storage.ObjectAttrs) object.Info {
	key := attrs.Name
	if s.prefix != "" {
		key = strings.TrimPrefix(key, s.prefix+"/")
	}
	return object.Info{
		Key:         key,
		Size:        attrs.Size,
		ContentType: attrs.ContentType,
		UpdatedAt:   attrs.Updated.UTC(),
	}
}

var (
	_ object.Store     = (*Store)(nil)
	_ object.Presigner = (*Store)(nil)
)
