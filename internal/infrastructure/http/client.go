package http

import (
	"net/http"
	"time"
)

const (
	defaultClientTimeout   = 30 * time.Second
	defaultMaxConnsPerHost = 50
)

// ClientConfig holds configuration for outbound HTTP clients.
type ClientConfig struct {
	// Timeout bounds a single attempt, headers and body included.
	Timeout         time.Duration
	MaxConnsPerHost int
	Transport       http.RoundTripper
}

// NewClient creates an HTTP client backed by a pooled transport.
// A nil config yields a 30s timeout and 50 connections per host.
func NewClient(config *ClientConfig) *http.Client {
	if config == nil {
		config = &ClientConfig{}
	}

	timeout := config.Timeout
	if timeout <= 0 {
		timeout = defaultClientTimeout
	}

	transport := config.Transport
	if transport == nil {
		transport = NewPooledTransport(config.MaxConnsPerHost, timeout)
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}

// NewPooledTransport returns a keep-alive transport sized for one upstream host.
func NewPooledTransport(maxConnsPerHost int, responseHeaderTimeout time.Duration) *http.Transport {
	if maxConnsPerHost <= 0 {
		maxConnsPerHost = defaultMaxConnsPerHost
	}

	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   maxConnsPerHost,
		MaxConnsPerHost:       maxConnsPerHost,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: responseHeaderTimeout,
		ExpectContinueTimeout: 1 * time.Second,
	}
}
