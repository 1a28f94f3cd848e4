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

import "golang.org/x/sys/cpu"

// matchTagSSE2 and matchEmptySSE2 are implemented in match_amd64.s.

//go:noescape
func matchTagSSE2(ctrls *ctrlGroup, tag uint8) uint8

//go:noescape
func matchEmptySSE2(ctrls *ctrlGroup) uint8

var simdMatcher = &groupMatcher{
	name: "sse2",
	matchTag: func(ctrls *ctrlGroup, tag uint8) bitset {
		return bitset(matchTagSSE2(ctrls, tag))
	},
	matchEmpty: func(ctrls *ctrlGroup) bitset {
		return bitset(matchEmptySSE2(ctrls))
	},
}

func simdSupported() bool {
	return cpu.X86.HasSSE2
}
