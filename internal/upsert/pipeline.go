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

// Package upsert implements the upsert-side half of the SAP interception
// pipeline (spec.md §4.5): every vector gets a fresh nonce and is encrypted
// with the proxy's current global beta, with both embedded in its metadata
// so a later query can invert it without any server-side state. There is no
// inversion here — upserts are strictly feed-forward.
package upsert

import (
	"fmt"

	"sapproxy/internal/backend"
	"sapproxy/internal/query"
)

// EncryptVectors applies SAP in place to every vector in req.Vectors, using
// a fresh nonce per vector and the supplied beta. spec.md §9's open
// question applies here: beta is read from the caller at call time (the
// proxy-global value at the moment of upsert) and is never inferred later —
// a subsequent /blyss/setup change does not retroactively affect records
// already embedding an older beta in their metadata.
func EncryptVectors(key []byte, req *backend.UpsertRequest, beta float32) error {
	for i := range req.Vectors {
		nonce, err := query.GenerateNonce()
		if err != nil {
			return err
		}
		if err := req.Vectors[i].ApplyEncrypt(key, beta, nonce); err != nil {
			return fmt.Errorf("upsert: vector %d: %w", i, err)
		}
	}
	return nil
}
