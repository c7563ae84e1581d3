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

// Package sapconfig holds the proxy's one piece of cross-request mutable
// state: the upstream data-plane URL, the control-plane URL, and the
// perturbation magnitude beta. spec.md §5 and §9 require that readers never
// observe a torn (url, beta) combination, so the pair (plus the
// control-plane URL) is published as a single immutable Snapshot behind an
// atomic pointer, generalizing the per-field atomics in
// internal/ratelimiter/core.Store to a single swapped struct.
package sapconfig

import (
	"fmt"
	"net/url"
	"sync/atomic"
)

// Snapshot is an immutable view of the proxy's global configuration. Once
// published, a Snapshot value is never mutated; Store.Set always
// constructs and publishes a new one.
type Snapshot struct {
	UpstreamURL     string
	ControlPlaneURL string
	Beta            float32
}

// Store publishes Snapshot values atomically. The zero value is not usable;
// construct with New.
type Store struct {
	current atomic.Pointer[Snapshot]
}

// New creates a Store with the given initial upstream/control-plane URLs
// and beta. These match the source's module-level defaults
// (UPSTREAM_URL, PINECONE_CONTROLLER_URL, BETA in proxy.py).
func New(upstreamURL, controlPlaneURL string, beta float32) *Store {
	s := &Store{}
	s.current.Store(&Snapshot{
		UpstreamURL:     upstreamURL,
		ControlPlaneURL: controlPlaneURL,
		Beta:            beta,
	})
	return s
}

// Load returns the currently published snapshot. Callers should call this
// once per request and use the returned value throughout, rather than
// calling Load repeatedly, so that a single request always sees one
// consistent (url, beta) pair even if Set runs concurrently.
func (s *Store) Load() *Snapshot {
	return s.current.Load()
}

// Set validates and publishes a new snapshot, replacing the upstream URL
// and beta (the control-plane URL is carried over unchanged — spec.md §6
// only exposes upstream/beta via /blyss/setup). On validation failure the
// previous snapshot is left intact and an error is returned (spec.md §7,
// "Setup validation errors... return 400 and leave previous state intact").
func (s *Store) Set(upstreamURL string, beta float32) error {
	if err := validateUpstream(upstreamURL); err != nil {
		return err
	}
	if beta < 0 {
		return fmt.Errorf("sapconfig: beta must be >= 0, got %v", beta)
	}

	prev := s.current.Load()
	next := &Snapshot{
		UpstreamURL:     upstreamURL,
		ControlPlaneURL: prev.ControlPlaneURL,
		Beta:            beta,
	}
	s.current.Store(next)
	return nil
}

func validateUpstream(raw string) error {
	if raw == "" {
		return fmt.Errorf("sapconfig: upstream URL must not be empty")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("sapconfig: invalid upstream URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("sapconfig: upstream URL must be absolute (scheme and host), got %q", raw)
	}
	return nil
}
