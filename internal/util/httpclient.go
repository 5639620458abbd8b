// Package util holds the HTTP plumbing shared by the vendor API clients.
package util

import (
	"context"
	"net"
	"net/http"
	"time"
)

// NewHTTPClient builds the client the crawlers and the classifier share.
// A run issues bursts of paginated calls against a handful of vendor hosts,
// so idle connections are kept per host to reuse them across pages. Proxy
// env vars are honored because some vendor endpoints are geo-fenced.
func NewHTTPClient(timeout time.Duration) *http.Client {
	tr := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         (&net.Dialer{Timeout: 5 * time.Second}).DialContext,
		MaxIdleConns:        20,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 5 * time.Second,
	}
	return &http.Client{Timeout: timeout, Transport: tr}
}

// Retry runs fn up to attempts times, doubling the delay between failures
// up to max. The classifier uses it for rate-limited upstream calls.
func Retry(ctx context.Context, attempts int, initial, max time.Duration, fn func() error) error {
	if attempts < 1 {
		attempts = 1
	}
	delay := initial
	var err error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
			delay *= 2
			if delay > max {
				delay = max
			}
		}
		if err = fn(); err == nil {
			return nil
		}
	}
	return err
}
