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


//go:build amd64 && !purego

package fixedswiss

import (
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/cpu"
)

// SSE2 is part of the amd64 baseline, so the vector kernels must be linked
// in and selected by default.
func TestSSE2Matcher(t *testing.T) {
	require.True(t, cpu.X86.HasSSE2)
	require.True(t, simdSupported())
	require.Same(t, simdMatcher, defaultMatcher)

	var names []string
	for _, matcher := range availableMatchers() {
		names = append(names, matcher.name)
	}
	require.Equal(t, []string{"scalar", "swar", "sse2"}, names)

	g := ctrlGroup{0x2, ctrlEmpty, 0x3, 0x2, ctrlDeleted, 0x0, 0x2, ctrlEmpty}
	require.Equal(t, []uintptr{0, 3, 6}, bitsetIndexes(bitset(matchTagSSE2(&g, 0x2))))
	require.Equal(t, []uintptr{5}, bitsetIndexes(bitset(matchTagSSE2(&g, 0x0))))
	require.Equal(t, []uintptr{1, 4, 7}, bitsetIndexes(bitset(matchEmptySSE2(&g))))
}
