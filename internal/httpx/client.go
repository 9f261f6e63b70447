// Package httpx holds the shared HTTP client used by the remote service
// clients (classifier, narrator, telegram media fetch).
package httpx

import (
	"net"
	"net/http"
	"time"
)

const DefaultTimeout = 120 * time.Second

// NewClient returns an HTTP client with connection pooling and sane
// handshake timeouts. Both remote services are called through clients built
// here so timeout behavior stays uniform.
func NewClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	transport := &http.Transport{
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
