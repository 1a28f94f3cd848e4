// Copyright 2024 The Cockroach Authors
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

package fixedswiss

import (
	"hash/maphash"

	"github.com/cespare/xxhash/v2"
)

const (
	h1Mask uint64 = 0xffff_ffff_ffff_ff80
	h2Mask uint64 = 0x0000_0000_0000_007f
)

// HashFunc computes a 64-bit hash of a key. It must return the same value for
// equal keys for the lifetime of a Map.
type HashFunc[K comparable] func(key K) uint64

// defaultHash uses the runtime's hash for K with a fresh random seed, so
// hashes differ between maps and between processes.
func defaultHash[K comparable]() HashFunc[K] {
	seed := maphash.MakeSeed()
	return func(key K) uint64 {
		return maphash.Comparable(seed, key)
	}
}

// StringHash returns an xxhash64 based HashFunc for string keys. Unlike the
// default hash it is unseeded, so a key hashes identically in every process.
func StringHash[K ~string]() HashFunc[K] {
	return func(key K) uint64 {
		return xxhash.Sum64String(string(key))
	}
}

// Extracts the H1 portion of a hash: the 57 upper bits. It selects the group
// where probing starts.
func h1(h uint64) uint64 {
	return (h & h1Mask) >> 7
}

// Extracts the H2 portion of a hash: the 7 bits not used for h1.
//
// These are stored as the control byte of an occupied slot.
func h2(h uint64) uint8 {
	return uint8(h & h2Mask)
}
