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

package keystream

import (
	"bytes"
	"crypto/rand"
	"testing"
)

func randKey(t *testing.T) []byte {
	t.Helper()
	k := make([]byte, KeySize)
	if _, err := rand.Read(k); err != nil {
		t.Fatalf("rand.Read: %v", err)
	}
	return k
}

func TestBytesRejectsBadKeySize(t *testing.T) {
	if _, err := Bytes(make([]byte, 16), ZeroNonce, 16); err == nil {
		t.Fatalf("expected error for short key")
	}
}

func TestBytesRejectsBadNonceSize(t *testing.T) {
	key := randKey(t)
	if _, err := Bytes(key, make([]byte, 8), 16); err == nil {
		t.Fatalf("expected error for short nonce")
	}
}

// TestPermutationIsBijection covers testable property 1: for every key and
// D, the permutation is a bijection on [0, D).
func TestPermutationIsBijection(t *testing.T) {
	dims := []int{0, 1, 2, 3, 5, 16, 257, 512, 1024}
	for _, d := range dims {
		key := randKey(t)
		perm, err := Permutation(key, d)
		if err != nil {
			t.Fatalf("Permutation(d=%d): %v", d, err)
		}
		seen := make([]bool, d)
		for _, p := range perm {
			if p < 0 || p >= d {
				t.Fatalf("d=%d: index %d out of range", d, p)
			}
			if seen[p] {
				t.Fatalf("d=%d: index %d appears twice", d, p)
			}
			seen[p] = true
		}
	}
}

// TestPermutationDeterminism covers testable property 3.
func TestPermutationDeterminism(t *testing.T) {
	key := randKey(t)
	const d = 300
	p1, err := Permutation(key, d)
	if err != nil {
		t.Fatalf("Permutation: %v", err)
	}
	p2, err := Permutation(key, d)
	if err != nil {
		t.Fatalf("Permutation: %v", err)
	}
	for i := range p1 {
		if p1[i] != p2[i] {
			t.Fatalf("permutation not deterministic at index %d: %d != %d", i, p1[i], p2[i])
		}
	}
}

// TestPermutationLastIndexNotIteratedAsSource locks in the D-i (not D-i+1)
// step size: position D-1 is only ever moved as a *target* j, never
// iterated over as i.
func TestPermutationLastIndexNotIteratedAsSource(t *testing.T) {
	key := []byte("01234567890123456789012345678901")
	const d = 8
	perm, err := Permutation(key, d)
	if err != nil {
		t.Fatalf("Permutation: %v", err)
	}
	// Recompute by hand using the documented algorithm to confirm the loop
	// bound is exclusive of d-1.
	raw, err := Bytes(key, ZeroNonce, d*8)
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}
	want := make([]int, d)
	for i := range want {
		want[i] = i
	}
	for i := 0; i < d-1; i++ {
		r := beU64(raw[i*8 : i*8+8])
		j := i + int(r%uint64(d-i))
		want[i], want[j] = want[j], want[i]
	}
	for i := range want {
		if perm[i] != want[i] {
			t.Fatalf("index %d: got %d want %d", i, perm[i], want[i])
		}
	}
}

func beU64(b []byte) uint64 {
	var v uint64
	for i := 0; i < 8; i++ {
		v |= uint64(b[i]) << (8 * i)
	}
	return v
}

// TestUniformDeterminism covers testable property 4.
func TestUniformDeterminism(t *testing.T) {
	key := randKey(t)
	nonce := make([]byte, NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		t.Fatalf("rand.Read: %v", err)
	}
	u1, err := Uniform(key, nonce, 128)
	if err != nil {
		t.Fatalf("Uniform: %v", err)
	}
	u2, err := Uniform(key, nonce, 128)
	if err != nil {
		t.Fatalf("Uniform: %v", err)
	}
	for i := range u1 {
		if u1[i] != u2[i] {
			t.Fatalf("uniform not deterministic at index %d", i)
		}
	}
}

func TestUniformRange(t *testing.T) {
	key := randKey(t)
	nonce := make([]byte, NonceSize)
	u, err := Uniform(key, nonce, 4096)
	if err != nil {
		t.Fatalf("Uniform: %v", err)
	}
	for i, v := range u {
		if v < 0 || v >= 1.0+1e-6 {
			t.Fatalf("uniform[%d] = %v out of [0,1) (with rounding slack)", i, v)
		}
	}
}

func TestInverseRoundTrips(t *testing.T) {
	key := randKey(t)
	const d = 64
	perm, err := Permutation(key, d)
	if err != nil {
		t.Fatalf("Permutation: %v", err)
	}
	inv := Inverse(perm)
	for i := 0; i < d; i++ {
		if inv[perm[i]] != i {
			t.Fatalf("inverse mismatch at %d", i)
		}
	}
}

func TestBytesDifferentNoncesDiffer(t *testing.T) {
	key := randKey(t)
	n1 := make([]byte, NonceSize)
	n2 := make([]byte, NonceSize)
	n2[0] = 1
	b1, err := Bytes(key, n1, 64)
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}
	b2, err := Bytes(key, n2, 64)
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}
	if bytes.Equal(b1, b2) {
		t.Fatalf("expected different keystreams for different nonces")
	}
}
