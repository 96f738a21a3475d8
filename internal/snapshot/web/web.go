// Package web fetches snapshots from a static HTTP file server.
package web

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"costboard/internal/snapshot"
)

// maxBodyBytes caps a single snapshot download.
const maxBodyBytes = 32 << 20

type Client struct {
	base *url.URL
	http *http.Client
}

var _ snapshot.Source = (*Client)(nil)

// New returns a Client resolving keys against baseURL, e.g.
// "https://reports.example.com/data/".
func New(baseURL string) (*Client, error) {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, errors.New("missing snapshot base url")
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	return &Client{base: u, http: newHTTPClientWithPooling()}, nil
}

// WithHTTPClient swaps the underlying client, used by tests.
func (c *Client) WithHTTPClient(h *http.Client) *Client {
	c.http = h
	return c
}

// Fetch downloads base+key. 404 and 410 map to ErrNotFound.
func (c *Client) Fetch(ctx context.Context, key string) ([]byte, error) {
	ref := &url.URL{Path: key}
	target := c.base.ResolveReference(ref)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, snapshot.Wrap(key, err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, snapshot.Wrap(key, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("%s: %w", key, snapshot.ErrNotFound)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, snapshot.Wrap(key, fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, snapshot.Wrap(key, fmt.Errorf("read body: %w", err))
	}
	return body, nil
}

// newHTTPClientWithPooling keeps connections to the snapshot host warm;
// a dashboard load fetches a dozen or more files from it at once.
func newHTTPClientWithPooling() *http.Client {
	dialer := &net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   24,
		MaxConnsPerHost:       50,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
	}
	return &http.Client{Transport: transport, Timeout: 60 * time.Second}
}
