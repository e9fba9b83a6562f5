package http

import (
	"crypto/tls"
	"net"
	"net/http"
	"time"
)

type transportOptions struct {
	insecure bool
}

// Option configures the shared transport.
type Option func(*transportOptions)

// WithInsecure skips TLS certificate verification.
func WithInsecure(insecure bool) Option {
	return func(o *transportOptions) {
		o.insecure = insecure
	}
}

// GetHTTPTransport returns a transport tuned for long-running registry
// transfers: generous connection pool, no overall response timeout so large
// streamed downloads are never cut off mid-body.
func GetHTTPTransport(opts ...Option) *http.Transport {
	options := &transportOptions{}
	for _, opt := range opts {
		opt(options)
	}

	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   20,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: options.insecure,
		},
	}
}
