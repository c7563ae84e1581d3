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

// Package backend models the JSON wire schema of the opaque upstream vector
// database, following https://docs.pinecone.io/reference/{query,upsert} as
// the concrete reference. The proxy treats the backend as an external
// collaborator (spec.md §1): this package exists only to parse/produce its
// JSON shapes, never to implement search itself.
package backend

import "sapproxy/internal/record"

// QueryRequest is the client-facing and backend-facing query body. Query
// requests address a record either by id (opaque passthrough) or by dense
// values (subject to SAP transform).
type QueryRequest struct {
	Namespace       string         `json:"namespace,omitempty"`
	ID              string         `json:"id,omitempty"`
	Values          []float32      `json:"values,omitempty"`
	TopK            int            `json:"topK"`
	IncludeValues   bool           `json:"includeValues,omitempty"`
	IncludeMetadata bool           `json:"includeMetadata,omitempty"`
	Filter          map[string]any `json:"filter,omitempty"`
}

// UpstreamQueryRequest is the same query body as sent to the backend, which
// names the vector field "vector" instead of "values" (spec.md §4.4 step 3 —
// an inconsistency in the backend's own schema between upsert and query).
type UpstreamQueryRequest struct {
	Namespace       string         `json:"namespace,omitempty"`
	Vector          []float32      `json:"vector,omitempty"`
	TopK            int            `json:"topK"`
	IncludeValues   bool           `json:"includeValues,omitempty"`
	IncludeMetadata bool           `json:"includeMetadata,omitempty"`
	Filter          map[string]any `json:"filter,omitempty"`
}

// QueryResponse is the shape returned by the backend for a query: a flat
// list of matches, each a record.Record plus score.
type QueryResponse struct {
	Matches   []record.Record `json:"matches"`
	Namespace string          `json:"namespace,omitempty"`
}

// UpsertRequest is the body of POST /vectors/upsert, both client-facing and
// backend-facing (the upsert schema doesn't rename fields).
type UpsertRequest struct {
	Namespace string          `json:"namespace,omitempty"`
	Vectors   []record.Record `json:"vectors"`
}
