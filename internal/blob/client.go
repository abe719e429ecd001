package blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"vendorquery-backend/internal/shared/storage/object"
)

const defaultMaxReadBytes = 32 << 20 // 32MB

var (
	ErrTooLarge          = errors.New("object exceeds read limit")
	ErrUnsupportedScheme = errors.New("unsupported uri scheme")
)

// Client moves bytes between the service and blob storage: it requests presigned write
// destinations, transfers payloads to them, resolves read URIs and fetches artifacts.
type Client struct {
	Store         object.ObjectStore
	HTTP          *http.Client
	PresignExpiry time.Duration
	MaxReadBytes  int64
}

// NewClient constructs a Client with a default HTTP client.
func NewClient(store object.ObjectStore, presignExpiry time.Duration) *Client {
	return &Client{
		Store:         store,
		HTTP:          &http.Client{},
		PresignExpiry: presignExpiry,
		MaxReadBytes:  defaultMaxReadBytes,
	}
}

// WriteDestination asks the store for a presigned destination for storageKey.
func (c *Client) WriteDestination(ctx context.Context, storageKey, contentType string) (object.Destination, error) {
	return c.Store.PresignPut(ctx, storageKey, contentType, c.PresignExpiry)
}

// Transfer PUTs body to dest. Any non-2xx response is an error.
func (c *Client) Transfer(ctx context.Context, dest object.Destination, contentType string, body []byte) error {
	method := dest.Method
	if method == "" {
		method = http.MethodPut
	}
	req, err := http.NewRequestWithContext(ctx, method, dest.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.ContentLength = int64(len(body))
	for name, values := range dest.Headers {
		for _, v := range values {
			req.Header.Add(name, v)
		}
	}
	if req.Header.Get("Content-Type") == "" && contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("destination returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// ResolveReadURI returns the stable read URI for an object written under storageKey.
func (c *Client) ResolveReadURI(ctx context.Context, storageKey string) (string, error) {
	return c.Store.ResolveURI(ctx, storageKey)
}

// Fetch reads the object at uri. URIs owned by the store are read through it; other
// http(s) URIs are fetched with a GET.
func (c *Client) Fetch(ctx context.Context, uri string) ([]byte, error) {
	rc, err := c.open(ctx, uri)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	limit := c.MaxReadBytes
	if limit <= 0 {
		limit = defaultMaxReadBytes
	}
	data, err := io.ReadAll(io.LimitReader(rc, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read object: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, ErrTooLarge
	}
	return data, nil
}

func (c *Client) open(ctx context.Context, uri string) (io.ReadCloser, error) {
	if c.Store != nil && c.Store.Owns(uri) {
		return c.Store.OpenURI(ctx, uri)
	}
	lower := strings.ToLower(uri)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedScheme, uri)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusNotFound {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: %s", object.ErrNotFound, uri)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, fmt.Errorf("fetch returned status %d", resp.StatusCode)
	}
	return resp.Body, nil
}

func (c *Client) httpClient() *http.Client {
	if c.HTTP != nil {
		return c.HTTP
	}
	return http.DefaultClient
}
