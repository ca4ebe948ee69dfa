package httpclient

import (
	"context"
	"net/http"
	"time"
)

// Request describes one GET against the provider base URL.
type Request struct {
	Path   string
	Query  map[string]string
	Header map[string]string
}

// Response keeps the raw reply so callers can report non-2xx bodies.
type Response struct {
	StatusCode int
	Body       []byte
	Headers    http.Header
	Duration   time.Duration
}

func (r *Response) OK() bool {
	return r.StatusCode >= http.StatusOK && r.StatusCode < http.StatusMultipleChoices
}

type Options struct {
	BaseURL    string
	Timeout    time.Duration
	APIKey     string
	RetryCount int
	RetryWait  time.Duration
}

type HTTPClient interface {
	Get(ctx context.Context, req Request, result interface{}) (*Response, error)
}
