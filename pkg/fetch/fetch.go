package fetch

import (
	"context"
	"net/http"
)

// PageRequest describes one page to retrieve from a review platform
type PageRequest struct {
	// Source names the platform, used for error context and logs
	Source  string
	Method  string
	URL     string
	Headers map[string]string
	// Page is the 1-based page index this request is for
	Page int
}

// Fetcher retrieves the raw body of a page. Implementations must classify
// failures with pkg/errors so callers can tell transient from permanent
// conditions, and must return context errors unchanged.
type Fetcher interface {
	Fetch(ctx context.Context, req PageRequest) ([]byte, error)
}

// FetcherFunc adapts a function to the Fetcher interface
type FetcherFunc func(ctx context.Context, req PageRequest) ([]byte, error)

// Fetch calls f
func (f FetcherFunc) Fetch(ctx context.Context, req PageRequest) ([]byte, error) {
	return f(ctx, req)
}

func (r PageRequest) method() string {
	if r.Method == "" {
		return http.MethodGet
	}
	return r.Method
}
