// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Created: October 2025
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package upstream factors the proxy's "forward this request to the
// backend" logic (proxy.py's forward_to_upstream) into a reusable client:
// header scrubbing on the way out, hop-by-hop header stripping on the way
// back, and a bounded-timeout http.Client whose requests are cancelled when
// the inbound request's context is cancelled (spec.md §5, "Cancellation").
package upstream

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ScrubbedRequestHeaders are stripped before forwarding to the backend
// (spec.md §6, "Headers stripped on forward").
var ScrubbedRequestHeaders = []string{"X-Data-Key", "Content-Length", "Host"}

// hopByHopHeaders are stripped from the backend's response before it is
// relayed to the client, per the standard net/http/httputil reverse-proxy
// convention.
var hopByHopHeaders = []string{
	"Connection", "Proxy-Connection", "Keep-Alive", "Proxy-Authenticate",
	"Proxy-Authorization", "Te", "Trailer", "Transfer-Encoding", "Upgrade",
}

// Client forwards requests to a configured backend.
type Client struct {
	HTTP *http.Client
}

// New returns a Client whose requests are bounded by timeout. A zero
// timeout means no per-request deadline beyond the caller's context.
func New(timeout time.Duration) *Client {
	return &Client{HTTP: &http.Client{Timeout: timeout}}
}

// Error wraps a non-2xx upstream response (spec.md §7, UpstreamError). The
// original status and body are preserved verbatim.
type Error struct {
	StatusCode int
	Body       []byte
}

func (e *Error) Error() string {
	return fmt.Sprintf("upstream: non-2xx response: %d: %s", e.StatusCode, truncate(string(e.Body), 256))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}

// ScrubRequestHeaders returns a copy of h with the headers the proxy must
// never forward removed.
func ScrubRequestHeaders(h http.Header) http.Header {
	out := h.Clone()
	for _, k := range ScrubbedRequestHeaders {
		out.Del(k)
	}
	return out
}

// CopyResponseHeaders copies src into dst, skipping hop-by-hop headers.
func CopyResponseHeaders(dst http.ResponseWriter, src http.Header) {
	header := dst.Header()
	for k, vv := range src {
		if isHopByHop(k) {
			continue
		}
		for _, v := range vv {
			header.Add(k, v)
		}
	}
}

func isHopByHop(k string) bool {
	for _, h := range hopByHopHeaders {
		if strings.EqualFold(h, k) {
			return true
		}
	}
	return false
}

// Forward builds and sends an HTTP request to baseURL+path using the given
// method, headers (already scrubbed by the caller) and body, propagating
// ctx so that an upstream client disconnect cancels the outbound request.
func (c *Client) Forward(ctx context.Context, method, baseURL, path string, header http.Header, body []byte) (*http.Response, error) {
	url := joinURL(baseURL, path)
	var rdr io.Reader
	if body != nil {
		rdr = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, rdr)
	if err != nil {
		return nil, fmt.Errorf("upstream: building request: %w", err)
	}
	req.Header = header.Clone()

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upstream: request failed: %w", err)
	}
	return resp, nil
}

func joinURL(base, path string) string {
	base = strings.TrimSuffix(base, "/")
	path = strings.TrimPrefix(path, "/")
	if path == "" {
		return base
	}
	return base + "/" + path
}
