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

// Package query implements the query-side half of the SAP interception
// pipeline (spec.md §4.4): encrypt the plaintext query, overfetch from the
// backend, decrypt and rescore each match in plaintext space, then truncate
// back to the caller's requested topK.
package query

import (
	"crypto/rand"
	"errors"
	"fmt"
	"sort"

	"sapproxy/internal/backend"
	"sapproxy/internal/keystream"
	"sapproxy/internal/record"
	"sapproxy/internal/sap"
)

// DefaultOverfetchFactor is the policy constant from spec.md §4.4/§9: the
// backend is asked for 3x the caller's topK so that local rerank in
// plaintext space can recover the true top-k despite cipher-space ranking
// noise. Implementations may expose this as a knob but must default to 3
// for compatibility with existing clients.
const DefaultOverfetchFactor = 3

// Pipeline executes the SAP query transform. The zero value uses
// DefaultOverfetchFactor.
type Pipeline struct {
	// OverfetchFactor, if 0, defaults to DefaultOverfetchFactor.
	OverfetchFactor int
}

func (p *Pipeline) factor() int {
	if p.OverfetchFactor <= 0 {
		return DefaultOverfetchFactor
	}
	return p.OverfetchFactor
}

// IsPassthrough reports whether q carries an id rather than values, in
// which case spec.md §4.4 step 1 requires no transform and no rerank.
func IsPassthrough(q *backend.QueryRequest) bool {
	return q.ID != ""
}

// GenerateNonce returns a fresh, cryptographically random 16-byte nonce
// (spec.md §5, "Nonce generation... must use a cryptographically strong
// RNG").
func GenerateNonce() ([]byte, error) {
	n := make([]byte, keystream.NonceSize)
	if _, err := rand.Read(n); err != nil {
		return nil, fmt.Errorf("query: generating nonce: %w", err)
	}
	return n, nil
}

// EncryptQuery transforms a plaintext query into the upstream request shape:
// SAP-encrypted vector (renamed "values" -> "vector"), forced
// includeValues/includeMetadata, and topK multiplied by the overfetch
// factor. It returns the nonce used, which the caller does not need to
// persist: query nonces are ephemeral and exist only to derive this
// request's noise, unlike upsert nonces which are stored in upstream
// metadata for later inversion.
func (p *Pipeline) EncryptQuery(key []byte, q *backend.QueryRequest, beta float32) (*backend.UpstreamQueryRequest, []byte, error) {
	nonce, err := GenerateNonce()
	if err != nil {
		return nil, nil, err
	}
	cipher, err := sap.Encrypt(key, q.Values, beta, nonce)
	if err != nil {
		return nil, nil, err
	}
	up := &backend.UpstreamQueryRequest{
		Namespace:       q.Namespace,
		Vector:          cipher,
		TopK:            q.TopK * p.factor(),
		IncludeValues:   true,
		IncludeMetadata: true,
		Filter:          q.Filter,
	}
	return up, nonce, nil
}

// Rerank inverts SAP on each returned match, rescoring against the
// plaintext query and truncating to topK (spec.md §4.4 steps 5-7).
//
// Matches missing nonce_b64/beta are excluded from the returned (truncated)
// slice but are still present, pre-decryption, in the cipherSnapshot return
// value (spec.md §7, MissingParameters: "exclude that match from the
// response... do not fail the whole query"). missingCount lets the caller
// feed telemetry.MissingParametersTotal.
func Rerank(matches []record.Record, key []byte, plainQueryValues []float32, topK int) (truncated, cipherSnapshot []record.Record, missingCount int) {
	cipherSnapshot = make([]record.Record, len(matches))
	copy(cipherSnapshot, matches)

	reference := &record.Record{Values: plainQueryValues}

	candidates := make([]record.Record, 0, len(matches))
	for _, m := range matches {
		if err := m.ApplyDecrypt(key); err != nil {
			if errors.Is(err, sap.ErrMissingParameters) {
				missingCount++
			}
			continue
		}
		if err := m.Rescore(reference); err != nil {
			continue
		}
		candidates = append(candidates, m)
	}

	// Stable sort preserves upstream order among equal-score matches
	// (spec.md §4.4, "Tie-break").
	sort.SliceStable(candidates, func(i, j int) bool {
		return *candidates[i].Score < *candidates[j].Score
	})

	if topK >= 0 && len(candidates) > topK {
		candidates = candidates[:topK]
	}
	return candidates, cipherSnapshot, missingCount
}
