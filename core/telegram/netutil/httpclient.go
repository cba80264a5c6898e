package netutil

import (
	"net"
	"net/http"
	"time"
)

const (
	defaultDialTimeout       = 5 * time.Second
	defaultTLSHandshake      = 5 * time.Second
	defaultIdleConnTimeout   = 30 * time.Second
	defaultResponseTimeout   = 10 * time.Second
	defaultClientTimeout     = 30 * time.Second
	defaultKeepAliveInterval = 30 * time.Second
	defaultRetryBackoff      = 2 * time.Second
)

// ClientOptions tunes BuildHTTPClient. Zero values select defaults,
// except RetryAttempts where zero means no retries.
type ClientOptions struct {
	Timeout       time.Duration
	RetryAttempts int
	RetryBackoff  time.Duration
	// ResponseHeaderTimeout must exceed the long-poll timeout when polling.
	ResponseHeaderTimeout time.Duration
}

// BuildHTTPClient returns an HTTP client with bounded dial/TLS/header timeouts
// and optional retries of transient transport errors.
func BuildHTTPClient(opts ClientOptions) *http.Client {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: defaultDialTimeout, KeepAlive: defaultKeepAliveInterval}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       defaultIdleConnTimeout,
		TLSHandshakeTimeout:   defaultTLSHandshake,
		ResponseHeaderTimeout: max(opts.ResponseHeaderTimeout, defaultResponseTimeout),
		ExpectContinueTimeout: 1 * time.Second,
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultClientTimeout
	}

	var rt http.RoundTripper = transport
	if opts.RetryAttempts > 0 {
		backoff := opts.RetryBackoff
		if backoff <= 0 {
			backoff = defaultRetryBackoff
		}
		rt = &retryTransport{base: transport, maxRetries: opts.RetryAttempts, backoff: backoff}
	}

	return &http.Client{Timeout: timeout, Transport: rt}
}

type retryTransport struct {
	base       http.RoundTripper
	maxRetries int
	backoff    time.Duration
}

func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	attempts := t.maxRetries + 1
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		currReq := req
		if attempt > 1 {
			currReq = req.Clone(req.Context())
			if req.GetBody != nil {
				body, err := req.GetBody()
				if err != nil {
					return nil, err
				}
				currReq.Body = body
			} else if req.Body != nil && req.Body != http.NoBody {
				// The body was consumed by the first attempt and cannot be replayed.
				return nil, lastErr
			}
		}

		resp, err := t.base.RoundTrip(currReq)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !ShouldRetry(err) || attempt == attempts {
			break
		}

		timer := time.NewTimer(t.backoff * time.Duration(attempt))
		select {
		case <-req.Context().Done():
			timer.Stop()
			return nil, req.Context().Err()
		case <-timer.C:
		}
	}

	return nil, lastErr
}
