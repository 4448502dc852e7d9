package local

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"askmydocs-backend/internal/shared/storage/object"
	"askmydocs-backend/internal/shared/util"
)

// Options configures URL generation for a local bucket.
type Options struct {
	// BaseURL is the externally reachable origin of this server.
	BaseURL string
	// Route is the path the bucket is served under, e.g. "/files".
	Route string
	// Secret signs retrieval URLs. Public buckets ignore it.
	Secret string
}

// Store implements object.Store on the local filesystem.
type Store struct {
	baseDir string
	opts    Options
	now     func() time.Time
}

// New creates a local bucket rooted at baseDir.
func New(baseDir string, opts Options) *Store {
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	if opts.Route == "" {
		opts.Route = "/files"
	}
	opts.Route = "/" + strings.Trim(opts.Route, "/")
	return &Store{baseDir: baseDir, opts: opts, now: time.Now}
}

func (s *Store) resolve(key string) (string, error) {
	for _, seg := range strings.Split(key, "/") {
		if seg == ".." {
			return "", fmt.Errorf("invalid storage key %q", key)
		}
	}
	clean := path.Clean("/" + strings.TrimSpace(key))
	if clean == "/" {
		return "", fmt.Errorf("invalid storage key %q", key)
	}
	return filepath.Join(s.baseDir, filepath.FromSlash(strings.TrimPrefix(clean, "/"))), nil
}

// Put writes r at key. With overwrite false an existing key yields object.ErrExists.
// The content type is derived from the key when the object is served.
func (s *Store) Put(ctx context.Context, key, contentType string, r io.Reader, overwrite bool) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	fullPath, err := s.resolve(key)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return 0, fmt.Errorf("mkdir: %w", err)
	}

	flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	if !overwrite {
		flags = os.O_CREATE | os.O_WRONLY | os.O_EXCL
	}
	f, err := os.OpenFile(fullPath, flags, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return 0, object.ErrExists
		}
		return 0, fmt.Errorf("open file: %w", err)
	}

	written, err := io.Copy(f, r)
	if err == nil {
		err = f.Close()
	} else {
		_ = f.Close()
	}
	if err != nil {
		// A partial object must never become listable.
		_ = os.Remove(fullPath)
		return 0, fmt.Errorf("write body: %w", err)
	}
	return written, nil
}

// Open opens a stored object for reading.
func (s *Store) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	fullPath, err := s.resolve(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(fullPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, object.ErrNotFound
		}
		return nil, err
	}
	return f, nil
}

// Stat returns size and modification time for key.
func (s *Store) Stat(ctx context.Context, key string) (object.Info, error) {
	if err := ctx.Err(); err != nil {
		return object.Info{}, err
	}
	fullPath, err := s.resolve(key)
	if err != nil {
		return object.Info{}, err
	}
	fi, err := os.Stat(fullPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return object.Info{}, object.ErrNotFound
		}
		return object.Info{}, err
	}
	if fi.IsDir() {
		return object.Info{}, object.ErrNotFound
	}
	return infoFor(strings.Trim(key, "/"), fi), nil
}

// List returns the files directly under prefix, newest first.
func (s *Store) List(ctx context.Context, prefix string, limit int) ([]object.Info, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dir, err := s.resolve(prefix)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []object.Info{}, nil
		}
		return nil, err
	}
	base := strings.Trim(prefix, "/")
	out := make([]object.Info, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		fi, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, infoFor(base+"/"+e.Name(), fi))
	}
	return object.SortNewestFirst(out, limit), nil
}

// SignedURL returns an HMAC-signed link served by SignedHandler.
func (s *Store) SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if _, err := s.resolve(key); err != nil {
		return "", err
	}
	if s.opts.Secret == "" {
		return "", errors.New("signing secret is not configured")
	}
	key = strings.Trim(key, "/")
	expires := s.now().Add(ttl).Truncate(time.Second)
	q := url.Values{}
	q.Set("expires", strconv.FormatInt(expires.Unix(), 10))
	q.Set("sig", util.SignKey(s.opts.Secret, key, expires))
	return s.PublicURL(key) + "?" + q.Encode(), nil
}

// PublicURL returns the unsigned URL of key under the bucket route.
func (s *Store) PublicURL(key string) string {
	escaped := (&url.URL{Path: strings.Trim(key, "/")}).EscapedPath()
	return s.opts.BaseURL + s.opts.Route + "/" + escaped
}

// SignedHandler serves objects whose expires/sig query verifies. Mount it on
// Route + "/*key".
func (s *Store) SignedHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := strings.Trim(c.Param("key"), "/")
		unix, err := strconv.ParseInt(c.Query("expires"), 10, 64)
		if err != nil || !util.VerifyKey(s.opts.Secret, key, time.Unix(unix, 0), c.Query("sig"), s.now()) {
			c.AbortWithStatus(http.StatusForbidden)
			return
		}
		s.serve(c, key)
	}
}

// PublicHandler serves any object without a signature.
func (s *Store) PublicHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		s.serve(c, strings.Trim(c.Param("key"), "/"))
	}
}

func (s *Store) serve(c *gin.Context, key string) {
	fullPath, err := s.resolve(key)
	if err != nil {
		c.AbortWithStatus(http.StatusNotFound)
		return
	}
	fi, err := os.Stat(fullPath)
	if err != nil || fi.IsDir() {
		c.AbortWithStatus(http.StatusNotFound)
		return
	}
	if ct := contentTypeFor(key); ct != "" {
		c.Header("Content-Type", ct)
	}
	c.File(fullPath)
}

func infoFor(key string, fi fs.FileInfo) object.Info {
	return object.Info{
		Key:         key,
		Size:        fi.Size(),
		ContentType: contentTypeFor(key),
		UpdatedAt:   fi.ModTime().UTC(),
	}
}

func contentTypeFor(key string) string {
	ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(key)))
	if ct == "" {
		return "application/octet-stream"
	}
	return ct
}

var _ object.Store = (*Store)(nil)
