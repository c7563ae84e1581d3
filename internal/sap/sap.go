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

// Package sap implements the Shuffle-And-Perturb transform: a keyed
// dimension permutation plus keystream-derived additive noise, applied to a
// single dense vector. Encrypt and Decrypt are exact inverses up to float32
// rounding when called with the same key, nonce and beta.
package sap

import (
	"fmt"

	"sapproxy/internal/keystream"
)

// Encrypt transforms plainvec into cipher space: it permutes the vector's
// components using the key-derived permutation, then (if beta > 0) adds
// independent uniform noise in [-beta, beta] per component, derived from
// key and nonce. The permute-then-perturb order is part of the wire
// contract: implementations that permute first and add noise second, in
// float32 throughout, produce bit-identical ciphertext.
func Encrypt(key []byte, plainvec []float32, beta float32, nonce []byte) ([]float32, error) {
	if beta < 0 {
		return nil, fmt.Errorf("sap: beta must be >= 0, got %v", beta)
	}
	d := len(plainvec)

	perm, err := keystream.Permutation(key, d)
	if err != nil {
		return nil, fmt.Errorf("sap: %w", err)
	}

	shuffled := make([]float32, d)
	for i, p := range perm {
		shuffled[i] = plainvec[p]
	}

	if beta == 0 {
		return shuffled, nil
	}

	noise, err := noiseVector(key, nonce, d, beta)
	if err != nil {
		return nil, err
	}
	cipher := make([]float32, d)
	for i := range cipher {
		cipher[i] = shuffled[i] + noise[i]
	}
	return cipher, nil
}

// Decrypt inverts Encrypt: it subtracts the same noise (if beta > 0), then
// applies the inverse permutation to recover the original component order.
func Decrypt(key []byte, ciphervec []float32, beta float32, nonce []byte) ([]float32, error) {
	if beta < 0 {
		return nil, fmt.Errorf("sap: beta must be >= 0, got %v", beta)
	}
	d := len(ciphervec)

	shuffled := make([]float32, d)
	if beta == 0 {
		copy(shuffled, ciphervec)
	} else {
		noise, err := noiseVector(key, nonce, d, beta)
		if err != nil {
			return nil, err
		}
		for i := range shuffled {
			shuffled[i] = ciphervec[i] - noise[i]
		}
	}

	perm, err := keystream.Permutation(key, d)
	if err != nil {
		return nil, fmt.Errorf("sap: %w", err)
	}
	inv := keystream.Inverse(perm)

	plainvec := make([]float32, d)
	for i, p := range inv {
		plainvec[i] = shuffled[p]
	}
	return plainvec, nil
}

// noiseVector returns (uniform(key,nonce,d) - 0.5) * 2 * beta, in float32.
func noiseVector(key, nonce []byte, d int, beta float32) ([]float32, error) {
	u, err := keystream.Uniform(key, nonce, d)
	if err != nil {
		return nil, fmt.Errorf("sap: %w", err)
	}
	noise := make([]float32, d)
	for i, v := range u {
		noise[i] = (v - 0.5) * 2 * beta
	}
	return noise, nil
}
