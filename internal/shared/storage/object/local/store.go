package local

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"vendorquery-backend/internal/shared/storage/object"
)

var (
	ErrInvalidKey       = errors.New("invalid storage key")
	ErrExpiredSignature = errors.New("signature expired")
	ErrBadSignature     = errors.New("signature mismatch")
)

// Store implements ObjectStore on the local filesystem. Write destinations are
// HMAC-signed URLs served by Handler; read URIs are plain URLs under baseURL.
// It is meant for development and tests.
type Store struct {
	baseDir    string
	baseURL    string
	signingKey []byte
	now        func() time.Time
}

// New creates a local object store rooted at baseDir whose URLs start with baseURL
// (for example http://localhost:8080/api/v1/blobs). An empty signingKey gets a random
// per-process key.
func New(baseDir, baseURL string, signingKey []byte) *Store {
	if len(signingKey) == 0 {
		signingKey = randomKey()
	}
	return &Store{
		baseDir:    baseDir,
		baseURL:    strings.TrimRight(baseURL, "/"),
		signingKey: signingKey,
		now:        time.Now,
	}
}

// PresignPut returns a signed URL accepting a PUT of the object until expires elapses.
func (s *Store) PresignPut(ctx context.Context, storageKey, _ string, expires time.Duration) (object.Destination, error) {
	if err := ctx.Err(); err != nil {
		return object.Destination{}, err
	}
	key, err := cleanKey(storageKey)
	if err != nil {
		return object.Destination{}, err
	}
	if expires <= 0 {
		expires = 15 * time.Minute
	}
	exp := s.now().Add(expires).Unix()
	q := url.Values{}
	q.Set("expires", strconv.FormatInt(exp, 10))
	q.Set("signature", s.sign(http.MethodPut, key, exp))
	return object.Destination{
		URL:    s.objectURL(key) + "?" + q.Encode(),
		Method: http.MethodPut,
	}, nil
}

// ResolveURI returns the read URL of a stored object.
func (s *Store) ResolveURI(ctx context.Context, storageKey string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	key, err := cleanKey(storageKey)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(filepath.Join(s.baseDir, filepath.FromSlash(key))); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", object.ErrNotFound, key)
		}
		return "", fmt.Errorf("stat object: %w", err)
	}
	return s.objectURL(key), nil
}

// Owns reports whether uri points into this store.
func (s *Store) Owns(uri string) bool {
	return strings.HasPrefix(uri, s.baseURL+"/")
}

// OpenURI opens an object by its read URL without going through HTTP.
func (s *Store) OpenURI(ctx context.Context, uri string) (io.ReadCloser, error) {
	if !s.Owns(uri) {
		return nil, fmt.Errorf("uri %q does not belong to local store", uri)
	}
	raw := strings.TrimPrefix(uri, s.baseURL+"/")
	if i := strings.IndexByte(raw, '?'); i >= 0 {
		raw = raw[:i]
	}
	key, err := url.PathUnescape(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	return s.Open(ctx, key)
}

// Verify checks a signature produced by PresignPut.
func (s *Store) Verify(method, storageKey, expires, signature string) error {
	key, err := cleanKey(storageKey)
	if err != nil {
		return err
	}
	exp, err := strconv.ParseInt(expires, 10, 64)
	if err != nil {
		return ErrBadSignature
	}
	if s.now().Unix() > exp {
		return ErrExpiredSignature
	}
	want := s.sign(method, key, exp)
	if !hmac.Equal([]byte(want), []byte(signature)) {
		return ErrBadSignature
	}
	return nil
}

// Open opens a stored object for reading.
func (s *Store) Open(ctx context.Context, storageKey string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	key, err := cleanKey(storageKey)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(filepath.Join(s.baseDir, filepath.FromSlash(key)))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", object.ErrNotFound, key)
		}
		return nil, err
	}
	return f, nil
}

// SaveWithKey writes the reader to disk at a specific storage key.
func (s *Store) SaveWithKey(ctx context.Context, storageKey string, r io.Reader) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	key, err := cleanKey(storageKey)
	if err != nil {
		return 0, err
	}

	fullPath := filepath.Join(s.baseDir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return 0, fmt.Errorf("mkdir: %w", err)
	}
	tmp := fullPath + ".part"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, fmt.Errorf("open file: %w", err)
	}

	written, err := io.Copy(f, r)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(tmp)
		return 0, fmt.Errorf("write body: %w", err)
	}
	if err := os.Rename(tmp, fullPath); err != nil {
		_ = os.Remove(tmp)
		return 0, fmt.Errorf("commit object: %w", err)
	}
	return written, nil
}

func (s *Store) sign(method, key string, exp int64) string {
	mac := hmac.New(sha256.New, s.signingKey)
	fmt.Fprintf(mac, "%s\n%s\n%d", strings.ToUpper(method), key, exp)
	return hex.EncodeToString(mac.Sum(nil))
}

func (s *Store) objectURL(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return s.baseURL + "/" + strings.Join(parts, "/")
}

func cleanKey(storageKey string) (string, error) {
	key := strings.TrimLeft(strings.TrimSpace(storageKey), "/")
	if key == "" {
		return "", ErrInvalidKey
	}
	clean := filepath.ToSlash(filepath.Clean(filepath.FromSlash(key)))
	if clean == "." || strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return "", ErrInvalidKey
	}
	return clean, nil
}

func randomKey() []byte {
	var b [32]byte
	if _, err := rand.Read(b[:]); err != nil {
		return []byte(strconv.FormatInt(time.Now().UnixNano(), 10))
	}
	return b[:]
}

var _ object.ObjectStore = (*Store)(nil)
