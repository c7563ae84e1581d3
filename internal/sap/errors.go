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

package sap

import "errors"

// Sentinel error kinds shared across the transform, record and pipeline
// layers (spec.md §7). internal/proxyapi maps each to its prescribed HTTP
// status code; callers elsewhere should use errors.Is against these.
var (
	// ErrInvalidKey: key header missing, not base64, or not 32 bytes after
	// decoding.
	ErrInvalidKey = errors.New("sap: invalid data key")

	// ErrInvalidRecord: vector values missing on a request that requires
	// them, or a dimension mismatch against the index's fixed D.
	ErrInvalidRecord = errors.New("sap: invalid record")

	// ErrUnsupportedSparse: the record carries sparse_values instead of
	// dense values.
	ErrUnsupportedSparse = errors.New("sap: sparse vectors are not supported")

	// ErrMissingParameters: a record's metadata lacks nonce_b64 or beta and
	// so cannot be decrypted.
	ErrMissingParameters = errors.New("sap: missing nonce_b64 or beta in metadata")

	// ErrTransform: an arithmetic or shape precondition failure inside the
	// transform itself (e.g. dimension mismatch between key-derived
	// permutation and the supplied vector).
	ErrTransform = errors.New("sap: transform precondition failed")
)
