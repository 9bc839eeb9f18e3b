package httpclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

// Options tunes the resty clients built by this package.
type Options struct {
	Timeout time.Duration
	// RetryCount retries transport errors, 429 and 5xx responses.
	RetryCount    int
	RetryWait     time.Duration
	UserAgent     string
	MaxRedirects  int
	DefaultHeader map[string]string
	// MaxBodyBytes caps the response body read by Get. Zero reads it whole.
	MaxBodyBytes int64
}

// ErrBodyTooLarge is returned by Get when a response exceeds MaxBodyBytes.
var ErrBodyTooLarge = errors.New("response body too large")

const (
	defaultMaxRedirects = 10
	defaultRetryWait    = 200 * time.Millisecond
)

// RestyClient adapts resty.Client to the Client interface.
type RestyClient struct {
	client   *resty.Client
	maxBytes int64
}

// NewRestyClient builds a client with a timeout and no retries.
func NewRestyClient(timeout time.Duration) *RestyClient {
	return NewRestyClientWithOptions(Options{Timeout: timeout})
}

// NewRestyClientWithOptions builds a client from opts.
func NewRestyClientWithOptions(opts Options) *RestyClient {
	return &RestyClient{client: NewResty(opts), maxBytes: opts.MaxBodyBytes}
}

// NewResty exposes a configured resty.Client for callers needing other verbs.
func NewResty(opts Options) *resty.Client {
	if opts.MaxRedirects <= 0 {
		opts.MaxRedirects = defaultMaxRedirects
	}
	c := resty.New().
		SetTimeout(opts.Timeout).
		SetRedirectPolicy(resty.FlexibleRedirectPolicy(opts.MaxRedirects))
	if opts.UserAgent != "" {
		c.SetHeader("User-Agent", opts.UserAgent)
	}
	if len(opts.DefaultHeader) > 0 {
		c.SetHeaders(opts.DefaultHeader)
	}
	if opts.RetryCount > 0 {
		wait := opts.RetryWait
		if wait <= 0 {
			wait = defaultRetryWait
		}
		c.SetRetryCount(opts.RetryCount).
			SetRetryWaitTime(wait).
			SetRetryMaxWaitTime(8 * wait).
			AddRetryCondition(retryable)
	}
	return c
}

func retryable(resp *resty.Response, err error) bool {
	if err != nil {
		return true
	}
	code := resp.StatusCode()
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}

// Get performs a GET honouring ctx. Non-2xx responses are returned, not errors.
func (r *RestyClient) Get(ctx context.Context, url string, headers map[string]string) (Response, error) {
	req := r.client.R().SetContext(ctx)
	if len(headers) > 0 {
		req.SetHeaders(headers)
	}
	if r.maxBytes <= 0 {
		resp, err := req.Get(url)
		if err != nil {
			return nil, err
		}
		return restyResponse{resp: resp}, nil
	}

	resp, err := req.SetDoNotParseResponse(true).Get(url)
	if err != nil {
		return nil, err
	}
	body, err := readLimited(resp, r.maxBytes)
	if err != nil {
		return nil, err
	}
	return restyResponse{resp: resp, body: body, read: true}, nil
}

// readLimited reads at most limit bytes of the raw body and always closes it.
func readLimited(resp *resty.Response, limit int64) ([]byte, error) {
	raw := resp.RawBody()
	if raw == nil {
		return nil, nil
	}
	defer raw.Close()

	if resp.RawResponse != nil && resp.RawResponse.ContentLength > limit {
		return nil, fmt.Errorf("%w: declared %d bytes, limit %d", ErrBodyTooLarge, resp.RawResponse.ContentLength, limit)
	}
	body, err := io.ReadAll(io.LimitReader(raw, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(body)) > limit {
		return nil, fmt.Errorf("%w: limit %d", ErrBodyTooLarge, limit)
	}
	return body, nil
}

type restyResponse struct {
	resp *resty.Response
	body []byte
	read bool
}

func (r restyResponse) Body() []byte {
	if r.read {
		return r.body
	}
	return r.resp.Body()
}

func (r restyResponse) StatusCode() int          { return r.resp.StatusCode() }
func (r restyResponse) Header(key string) string { return r.resp.Header().Get(key) }
