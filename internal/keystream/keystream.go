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

// Package keystream provides the deterministic, keyed pseudo-random
// primitives that the SAP transform builds on: raw AES-CTR keystream bytes,
// a derived uniform float32 generator, and a derived Fisher-Yates
// permutation generator. All three are pure functions of their inputs so
// that encrypt and decrypt agree bit-for-bit regardless of which process (or
// machine) computes them.
package keystream

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/binary"
	"fmt"
	"math"
)

// KeySize is the required secret key length: AES-256 keyed off the proxy's
// 32-byte data key.
const KeySize = 32

// NonceSize is the required nonce length. It doubles as the AES-CTR counter
// block, so it must equal aes.BlockSize.
const NonceSize = 16

// ZeroNonce is the fixed, all-zero counter block used to derive the
// dimension permutation. The permutation depends only on the key and the
// dimension D, never on a per-record nonce.
var ZeroNonce = make([]byte, NonceSize)

func init() {
	if NonceSize != aes.BlockSize {
		panic("keystream: NonceSize must equal aes.BlockSize")
	}
}

// Bytes returns n bytes of deterministic keystream: AES-256-CTR, keyed by
// key and counter-seeded by nonce, encrypting an all-zero plaintext of
// length n. It is a programmer error to call this with a key that is not
// exactly KeySize bytes or a nonce that is not exactly NonceSize bytes; both
// are rejected before any bytes are emitted.
func Bytes(key, nonce []byte, n int) ([]byte, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("keystream: key must be %d bytes, got %d", KeySize, len(key))
	}
	if len(nonce) != NonceSize {
		return nil, fmt.Errorf("keystream: nonce must be %d bytes, got %d", NonceSize, len(nonce))
	}
	if n < 0 {
		return nil, fmt.Errorf("keystream: negative length %d", n)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("keystream: %w", err)
	}

	stream := cipher.NewCTR(block, nonce)
	out := make([]byte, n)
	stream.XORKeyStream(out, out)
	return out, nil
}

// Uniform returns D float32 values drawn from the keystream, each uniform
// in [0, 1]. Every value is built from 4 keystream bytes interpreted as a
// little-endian uint32 and divided by 2**32-1, so 1.0 itself is reachable;
// this slight bias toward 1.0 is accepted (spec.md §4.1 documents the bias rather than
// correcting it, since both sides of the transform must agree bit-for-bit).
func Uniform(key, nonce []byte, d int) ([]float32, error) {
	raw, err := Bytes(key, nonce, d*4)
	if err != nil {
		return nil, err
	}

	out := make([]float32, d)
	for i := 0; i < d; i++ {
		u := binary.LittleEndian.Uint32(raw[i*4 : i*4+4])
		out[i] = float32(float64(u) / float64(math.MaxUint32))
	}
	return out, nil
}

// Permutation returns a deterministic Fisher-Yates permutation of [0, D)
// derived from key alone (the permutation nonce is fixed to ZeroNonce, so
// the same key always yields the same permutation for a given D). Swap
// indices are drawn from the keystream interpreted as 8-byte unsigned
// integers: for i in [0, D), draw r_i, let j = i + (r_i mod (D-i)), and swap
// positions i and j.
//
// The step size is deliberately D-i, not D-i+1: position D-1 is never
// re-swapped after it has been placed. This asymmetry is intentional and
// must be preserved for cross-implementation determinism (spec.md §4.1).
func Permutation(key []byte, d int) ([]int, error) {
	if d < 0 {
		return nil, fmt.Errorf("keystream: negative dimension %d", d)
	}
	perm := make([]int, d)
	for i := range perm {
		perm[i] = i
	}
	if d <= 1 {
		return perm, nil
	}

	raw, err := Bytes(key, ZeroNonce, d*8)
	if err != nil {
		return nil, err
	}

	for i := 0; i < d-1; i++ {
		r := binary.LittleEndian.Uint64(raw[i*8 : i*8+8])
		j := i + int(r%uint64(d-i))
		perm[i], perm[j] = perm[j], perm[i]
	}
	return perm, nil
}

// Inverse returns the inverse of a permutation produced by Permutation,
// i.e. the argsort: inv[perm[i]] == i for all i.
func Inverse(perm []int) []int {
	inv := make([]int, len(perm))
	for i, p := range perm {
		inv[p] = i
	}
	return inv
}
