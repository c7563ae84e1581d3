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

package upstream

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestScrubRequestHeaders(t *testing.T) {
	h := http.Header{}
	h.Set("X-Data-Key", "secret")
	h.Set("Content-Length", "42")
	h.Set("Host", "proxy.internal")
	h.Set("Accept", "application/json")

	out := ScrubRequestHeaders(h)
	for _, k := range ScrubbedRequestHeaders {
		if out.Get(k) != "" {
			t.Fatalf("expected %s to be scrubbed, got %q", k, out.Get(k))
		}
	}
	if out.Get("Accept") != "application/json" {
		t.Fatalf("expected unrelated headers to survive scrubbing")
	}
	// original must be untouched
	if h.Get("X-Data-Key") != "secret" {
		t.Fatalf("ScrubRequestHeaders must not mutate its input")
	}
}

func TestCopyResponseHeadersSkipsHopByHop(t *testing.T) {
	rec := httptest.NewRecorder()
	src := http.Header{}
	src.Set("Connection", "close")
	src.Set("X-Custom", "value")
	CopyResponseHeaders(rec, src)

	if rec.Header().Get("Connection") != "" {
		t.Fatalf("expected Connection header to be stripped")
	}
	if rec.Header().Get("X-Custom") != "value" {
		t.Fatalf("expected X-Custom header to be copied")
	}
}

func TestJoinURL(t *testing.T) {
	cases := []struct{ base, path, want string }{
		{"https://example.com", "query", "https://example.com/query"},
		{"https://example.com/", "/query", "https://example.com/query"},
		{"https://example.com", "", "https://example.com"},
	}
	for _, c := range cases {
		if got := joinURL(c.base, c.path); got != c.want {
			t.Fatalf("joinURL(%q,%q) = %q, want %q", c.base, c.path, got, c.want)
		}
	}
}
