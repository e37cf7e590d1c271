package offline

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/mmcdole/drinks/internal/domain"
	"go.uber.org/ratelimit"
	"resty.dev/v3"
)

// forwardHeaders are copied from the client request to the upstream fetch
var forwardHeaders = []string{
	"Accept",
	"Accept-Language",
	"User-Agent",
	"Cache-Control",
}

// FetcherOptions tunes the network fetcher
type FetcherOptions struct {
	Timeout              time.Duration
	Retries              int
	MaxRequestsPerSecond int // 0 disables limiting
}

// NetworkFetcher performs upstream requests with resty
type NetworkFetcher struct {
	client *resty.Client
	rl     ratelimit.Limiter
	logger *slog.Logger
}

var _ domain.Fetcher = (*NetworkFetcher)(nil)

func NewNetworkFetcher(opts FetcherOptions, logger *slog.Logger) *NetworkFetcher {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}

	client := resty.New().
		SetTimeout(opts.Timeout).
		SetRetryCount(opts.Retries).
		SetRetryWaitTime(200 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second)

	f := &NetworkFetcher{
		client: client,
		logger: logger,
	}
	if opts.MaxRequestsPerSecond > 0 {
		f.rl = ratelimit.New(opts.MaxRequestsPerSecond)
	}
	return f
}

// Fetch performs req. Any HTTP status is returned as a response; only
// transport failures, timeouts and cancellation are errors.
func (f *NetworkFetcher) Fetch(ctx context.Context, req *domain.Request) (*domain.CachedResponse, error) {
	if f.rl != nil {
		f.rl.Take()
	}

	r := f.client.R().SetContext(ctx)
	for _, name := range forwardHeaders {
		if v := req.Header.Get(name); v != "" {
			r.SetHeader(name, v)
		}
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	resp, err := r.Execute(method, req.URL)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("request cancelled: %w", ctx.Err())
		}
		return nil, fmt.Errorf("failed to fetch %s: %w", req.URL, err)
	}

	f.logger.Debug("fetched", "method", method, "url", req.URL, "status", resp.StatusCode())

	return &domain.CachedResponse{
		Status:     resp.StatusCode(),
		StatusText: http.StatusText(resp.StatusCode()),
		Header:     resp.Header().Clone(),
		Body:       resp.Bytes(),
	}, nil
}

func (f *NetworkFetcher) Close() error {
	return f.client.Close()
}
