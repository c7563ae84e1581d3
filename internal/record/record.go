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

// Package record models a single vector record as it flows through the
// proxy: plaintext at the edges, SAP-transformed in transit. It mirrors the
// Pinecone wire schema's PineconeVector/PineconeResult shape (one struct
// covering upsert vectors, query vectors and returned matches) rather than
// an inheritance hierarchy, since the only difference between those
// contexts is which operations are valid, not the data itself.
package record

import (
	"encoding/base64"
	"math"

	"sapproxy/internal/keystream"
	"sapproxy/internal/sap"
)

// MetadataNonceKey and MetadataBetaKey are the metadata keys written by
// ApplyEncrypt and read by ApplyDecrypt.
const (
	MetadataNonceKey = "nonce_b64"
	MetadataBetaKey  = "beta"
)

// Record is the in-memory representation of a vector record: an optional
// id, optional dense values, optional (unsupported) sparse values, free-form
// metadata, and an optional score. At least one of Values/SparseValues is
// required for any transform operation.
type Record struct {
	ID           string         `json:"id,omitempty"`
	Values       []float32      `json:"values,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	SparseValues map[string]any `json:"sparse_values,omitempty"`
	Score        *float64       `json:"score,omitempty"`
}

// AsVector returns the record's dense representation. It fails with
// sap.ErrUnsupportedSparse if only sparse values are present, and with
// sap.ErrInvalidRecord if neither is present.
func (r *Record) AsVector() ([]float32, error) {
	if r.Values != nil {
		return r.Values, nil
	}
	if r.SparseValues != nil {
		return nil, sap.ErrUnsupportedSparse
	}
	return nil, sap.ErrInvalidRecord
}

// ApplyEncrypt transforms the record's dense values in place using the SAP
// transform, and writes nonce_b64 and beta into metadata, preserving every
// other metadata key already present.
func (r *Record) ApplyEncrypt(key []byte, beta float32, nonce []byte) error {
	plain, err := r.AsVector()
	if err != nil {
		return err
	}
	cipher, err := sap.Encrypt(key, plain, beta, nonce)
	if err != nil {
		return err
	}
	r.Values = cipher

	if r.Metadata == nil {
		r.Metadata = make(map[string]any, 2)
	}
	r.Metadata[MetadataNonceKey] = base64.StdEncoding.EncodeToString(nonce)
	r.Metadata[MetadataBetaKey] = float64(beta)
	return nil
}

// ApplyDecrypt reads nonce_b64 and beta from metadata and inverts the SAP
// transform over the record's dense values. It returns sap.ErrMissingParameters
// if either metadata field is absent or malformed.
func (r *Record) ApplyDecrypt(key []byte) error {
	nonce, beta, err := r.transformParams()
	if err != nil {
		return err
	}
	cipher, err := r.AsVector()
	if err != nil {
		return err
	}
	plain, err := sap.Decrypt(key, cipher, beta, nonce)
	if err != nil {
		return err
	}
	r.Values = plain
	return nil
}

// transformParams extracts and validates nonce_b64/beta from metadata.
func (r *Record) transformParams() (nonce []byte, beta float32, err error) {
	if r.Metadata == nil {
		return nil, 0, sap.ErrMissingParameters
	}
	nonceRaw, ok := r.Metadata[MetadataNonceKey]
	if !ok {
		return nil, 0, sap.ErrMissingParameters
	}
	nonceStr, ok := nonceRaw.(string)
	if !ok {
		return nil, 0, sap.ErrMissingParameters
	}
	nonce, decErr := base64.StdEncoding.DecodeString(nonceStr)
	if decErr != nil || len(nonce) != keystream.NonceSize {
		return nil, 0, sap.ErrMissingParameters
	}

	betaRaw, ok := r.Metadata[MetadataBetaKey]
	if !ok {
		return nil, 0, sap.ErrMissingParameters
	}
	betaF, ok := asFloat(betaRaw)
	if !ok {
		return nil, 0, sap.ErrMissingParameters
	}
	return nonce, float32(betaF), nil
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}

// Rescore sets r.Score to the Euclidean distance between r's dense values
// and reference's dense values.
func (r *Record) Rescore(reference *Record) error {
	a, err := r.AsVector()
	if err != nil {
		return err
	}
	b, err := reference.AsVector()
	if err != nil {
		return err
	}
	if len(a) != len(b) {
		return sap.ErrInvalidRecord
	}
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	score := math.Sqrt(sum)
	r.Score = &score
	return nil
}
