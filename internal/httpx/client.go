// Package httpx holds the HTTP plumbing shared by the LLM providers and the
// Azure DevOps client: a pooled client and retry with backoff.
package httpx

import (
	"net"
	"net/http"
	"time"
)

// DefaultTimeout bounds a single request when the caller does not choose one.
const DefaultTimeout = 120 * time.Second

// SharedClient returns an HTTP client with connection pooling, safe for
// concurrent use by independent runs.
func SharedClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        20,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: timeout,
		ExpectContinueTimeout: 1 * time.Second,
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}
