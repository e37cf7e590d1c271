package domain

import (
	"context"
	"net/http"
	"time"
)

// Request is an outbound resource request seen by the offline proxy
type Request struct {
	Method   string
	URL      string // Absolute URL
	Header   http.Header
	Navigate bool // Top-level navigation (document load)
}

// Key returns the request identity used for cache lookups
func (r *Request) Key() string {
	return RequestKey(r.Method, r.URL)
}

// RequestKey builds a cache key from method and absolute URL
func RequestKey(method, url string) string {
	if method == "" {
		method = http.MethodGet
	}
	return method + " " + url
}

// CachedResponse is a response body plus metadata, as stored in a cache generation
type CachedResponse struct {
	Status     int         `json:"status"`
	StatusText string      `json:"statusText"`
	Header     http.Header `json:"header"`
	Body       []byte      `json:"body"`
	StoredAt   time.Time   `json:"storedAt"`
}

// OK reports a 2xx status
func (r *CachedResponse) OK() bool {
	return r.Status >= 200 && r.Status < 300
}

// Clone returns a deep copy, so the caller and the cache never share buffers
func (r *CachedResponse) Clone() *CachedResponse {
	if r == nil {
		return nil
	}
	c := *r
	c.Header = r.Header.Clone()
	if r.Body != nil {
		c.Body = make([]byte, len(r.Body))
		copy(c.Body, r.Body)
	}
	return &c
}

// Fetcher performs network requests on behalf of the offline proxy.
// A non-2xx response is returned without error; transport failures and
// timeouts are errors.
type Fetcher interface {
	Fetch(ctx context.Context, req *Request) (*CachedResponse, error)
}

// ClientMessage is sent from the proxy to connected clients
type ClientMessage struct {
	Type    string `json:"type"`
	Version string `json:"version,omitempty"`
}

// Notifier broadcasts messages to every connected client
type Notifier interface {
	Broadcast(msg ClientMessage)
}
