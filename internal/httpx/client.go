// Package httpx builds the HTTP clients shared by beacon dispatch units and
// provides small helpers for request construction and connection reuse.
package httpx

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"time"
)

// Config controls the timeouts of a constructed client.
type Config struct {
	Timeout        time.Duration
	ConnectTimeout time.Duration
}

// DefaultConfig returns the timeouts used for beacon dispatch. The overall
// timeout stays well above the batteries' drain ceiling so a send that is
// still in flight when a drain gives up can finish on its own.
func DefaultConfig() Config {
	return Config{
		Timeout:        30 * time.Second,
		ConnectTimeout: 10 * time.Second,
	}
}

// NewClient creates an HTTP client with the default configuration.
func NewClient() *http.Client {
	return NewClientWithConfig(DefaultConfig())
}

// NewClientWithConfig creates an HTTP client with a tuned transport. The
// client is safe for concurrent use and is shared by every dispatch unit of a
// battery.
func NewClientWithConfig(cfg Config) *http.Client {
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   cfg.ConnectTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
	}

	return &http.Client{
		Timeout:   cfg.Timeout,
		Transport: transport,
	}
}

// NewRequestWithJSON creates a request carrying a JSON body.
func NewRequestWithJSON(ctx context.Context, method, url string, body []byte) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	return req, nil
}

// DrainAndClose drains and closes a response body so the underlying
// connection can be reused.
func DrainAndClose(body io.ReadCloser) {
	if body == nil {
		return
	}
	// Drain up to 64KB; anything larger is not worth keeping the connection for.
	io.CopyN(io.Discard, body, 64*1024)
	body.Close()
}
