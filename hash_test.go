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
	"testing"

	"github.com/cespare/xxhash/v2"
	"github.com/stretchr/testify/require"
)

func TestHashSplit(t *testing.T) {
	testCases := []struct {
		hash uint64
		h1   uint64
		h2   uint8
	}{
		{0, 0, 0},
		{0x7f, 0, 0x7f},
		{0x80, 1, 0},
		{0x1234_5678_9abc_def0, 0x1234_5678_9abc_def0 >> 7, 0x70},
		{^uint64(0), 0x01ff_ffff_ffff_ffff, 0x7f},
	}
	for _, c := range testCases {
		require.Equal(t, c.h1, h1(c.hash))
		require.Equal(t, c.h2, h2(c.hash))
		// The two halves partition the hash.
		require.Equal(t, c.hash, h1(c.hash)<<7|uint64(h2(c.hash)))
		// H2 never touches the occupancy bit.
		require.True(t, ctrl(h2(c.hash)).isFull())
	}
}

func TestDefaultHash(t *testing.T) {
	hash := defaultHash[string]()
	require.Equal(t, hash("hello"), hash("hello"))
	require.NotEqual(t, hash("hello"), hash("hello2"))

	m := New[string, int](8)
	require.Equal(t, m.hash("key"), m.hash("key"))
}

func TestStringHash(t *testing.T) {
	type name string
	hash := StringHash[name]()
	require.Equal(t, xxhash.Sum64String("hello"), hash("hello"))
	require.Equal(t, hash("hello"), StringHash[name]()("hello"))
	require.NotEqual(t, hash("hello"), hash("world"))
}
