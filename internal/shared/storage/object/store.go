package object

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"
)

// ErrNotFound is returned when a key or URI does not name a stored object.
var ErrNotFound = errors.New("object not found")

// Destination is a presigned write target. Headers must accompany the PUT.
type Destination struct {
	URL     string
	Method  string
	Headers http.Header
}

// ObjectStore hands out write destinations for raw uploads and resolves stable read URIs.
// Bytes are transferred by the caller with a plain HTTP request to the destination.
type ObjectStore interface {
	// PresignPut returns a time-limited destination that accepts an HTTP PUT of the object.
	PresignPut(ctx context.Context, storageKey, contentType string, expires time.Duration) (Destination, error)
	// ResolveURI returns the stable read URI of an object that has already been written.
	ResolveURI(ctx context.Context, storageKey string) (string, error)
	// OpenURI opens an object by a URI previously returned from ResolveURI.
	OpenURI(ctx context.Context, uri string) (io.ReadCloser, error)
	// Owns reports whether uri uses this store's scheme.
	Owns(uri string) bool
}
