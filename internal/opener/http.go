package opener

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

// HTTPOpener streams http and https response bodies.
type HTTPOpener struct {
	client *resty.Client
}

// NewHTTPOpener creates an opener. timeout bounds connecting and waiting for
// response headers; reading the body is bounded only by the caller's ctx.
func NewHTTPOpener(timeout time.Duration, userAgent string) *HTTPOpener {
	client := resty.New().
		SetTransport(headerTimeoutTransport(timeout)).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond)
	if userAgent != "" {
		client.SetHeader("User-Agent", userAgent)
	}
	return &HTTPOpener{client: client}
}

// Open issues a GET and hands back the unread body.
func (o *HTTPOpener) Open(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	resp, err := o.client.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(rawURL)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", rawURL, err)
	}
	body := resp.RawBody()
	if resp.IsError() {
		if body != nil {
			_ = body.Close()
		}
		return nil, fmt.Errorf("get %s: unexpected status %d", rawURL, resp.StatusCode())
	}
	if body == nil {
		return nil, fmt.Errorf("get %s: empty response body", rawURL)
	}
	return body, nil
}

func headerTimeoutTransport(timeout time.Duration) *http.Transport {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if timeout <= 0 {
		return transport
	}
	dialer := &net.Dialer{Timeout: timeout, KeepAlive: 30 * time.Second}
	transport.DialContext = dialer.DialContext
	transport.TLSHandshakeTimeout = timeout
	transport.ResponseHeaderTimeout = timeout
	return transport
}
