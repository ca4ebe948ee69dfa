package httpclient

import (
	"context"
	"net/http"

	"github.com/go-resty/resty/v2"
)

type restyClient struct {
	client *resty.Client
}

// New builds a JSON client. Throttling (429) and 5xx replies are retried
// RetryCount times; anything else is returned to the caller as is.
func New(opts Options) HTTPClient {
	client := resty.New().
		SetBaseURL(opts.BaseURL).
		SetTimeout(opts.Timeout).
		SetHeader("Accept", "application/json").
		SetRetryCount(opts.RetryCount).
		AddRetryCondition(retryable)
	if opts.RetryWait > 0 {
		client.SetRetryWaitTime(opts.RetryWait)
	}
	if opts.APIKey != "" {
		client.SetAuthToken(opts.APIKey)
	}

	return &restyClient{client: client}
}

func retryable(resp *resty.Response, err error) bool {
	if err != nil || resp == nil {
		return false
	}
	code := resp.StatusCode()
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}

func (rc *restyClient) Get(ctx context.Context, req Request, result interface{}) (*Response, error) {
	r := rc.client.R().
		SetContext(ctx).
		SetQueryParams(req.Query).
		SetHeaders(req.Header)
	if result != nil {
		r.SetResult(result)
	}

	resp, err := r.Get(req.Path)
	if resp == nil {
		return &Response{}, err
	}
	return &Response{
		StatusCode: resp.StatusCode(),
		Body:       resp.Body(),
		Headers:    resp.Header(),
		Duration:   resp.Time(),
	}, err
}
