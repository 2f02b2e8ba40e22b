package http

import (
	"net/http"
	"testing"
	"time"
)

func TestNewClient(t *testing.T) {
	tests := []struct {
		name     string
		config   *ClientConfig
		validate func(t *testing.T, client *http.Client)
	}{
		{
			name:   "nil config uses defaults",
			config: nil,
			validate: func(t *testing.T, client *http.Client) {
				if client.Timeout != 30*time.Second {
					t.Errorf("expected default timeout 30s, got %v", client.Timeout)
				}
				transport, ok := client.Transport.(*http.Transport)
				if !ok {
					t.Fatalf("expected *http.Transport, got %T", client.Transport)
				}
				if transport.MaxConnsPerHost != 50 {
					t.Errorf("expected 50 conns per host, got %d", transport.MaxConnsPerHost)
				}
			},
		},
		{
			name:   "custom timeout and pool size",
			config: &ClientConfig{Timeout: 5 * time.Second, MaxConnsPerHost: 8},
			validate: func(t *testing.T, client *http.Client) {
				if client.Timeout != 5*time.Second {
					t.Errorf("expected timeout 5s, got %v", client.Timeout)
				}
				transport := client.Transport.(*http.Transport)
				if transport.MaxConnsPerHost != 8 || transport.MaxIdleConnsPerHost != 8 {
					t.Errorf("unexpected pool sizing %d/%d", transport.MaxConnsPerHost, transport.MaxIdleConnsPerHost)
				}
				if transport.ResponseHeaderTimeout != 5*time.Second {
					t.Errorf("expected header timeout 5s, got %v", transport.ResponseHeaderTimeout)
				}
			},
		},
		{
			name:   "custom transport",
			config: &ClientConfig{Timeout: 5 * time.Second, Transport: http.DefaultTransport},
			validate: func(t *testing.T, client *http.Client) {
				if client.Transport != http.DefaultTransport {
					t.Error("expected custom transport to be set")
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.validate(t, NewClient(tt.config))
		})
	}
}
