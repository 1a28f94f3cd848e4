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
	"math/bits"
	"strings"
)

const (
	bitsetLSB  = 0x0101010101010101
	bitsetMSB  = 0x8080808080808080
	bitsetLow7 = 0x7f7f7f7f7f7f7f7f

	// bitsetGather moves byte i's low bit to bit 56+i when multiplied in.
	bitsetGather = 0x0102040810204080
)

// bitset is the result of matching a group: bit i is set iff lane i
// matched. It is the packed form of a [groupSize]bool vector.
type bitset uint8

// first returns the lowest matching lane. Returns groupSize if the bitset is
// empty.
func (b bitset) first() uintptr {
	return uintptr(bits.TrailingZeros8(uint8(b)))
}

// removeFirst clears the lowest matching lane.
func (b bitset) removeFirst() bitset {
	return b & (b - 1)
}

func (b bitset) lanes() [groupSize]bool {
	var r [groupSize]bool
	for i := range r {
		r[i] = b&(1<<i) != 0
	}
	return r
}

func (b bitset) String() string {
	var buf strings.Builder
	buf.Grow(groupSize)
	for _, set := range b.lanes() {
		if set {
			buf.WriteString("1")
		} else {
			buf.WriteString("0")
		}
	}
	return buf.String()
}

// groupMatcher compares all of a group's control bytes at once. Every
// implementation must return identical results; they differ only in speed.
type groupMatcher struct {
	name string
	// matchTag returns the lanes whose control byte equals tag. This is a
	// plain byte comparison: it does not look at the occupancy bit, so
	// callers must confirm a hit by comparing keys.
	matchTag func(g *ctrlGroup, tag uint8) bitset
	// matchEmpty returns the lanes whose occupancy bit marks them unused.
	matchEmpty func(g *ctrlGroup) bitset
}

var (
	scalarMatcher = &groupMatcher{
		name:       "scalar",
		matchTag:   scalarMatchTag,
		matchEmpty: scalarMatchEmpty,
	}
	swarMatcher = &groupMatcher{
		name:       "swar",
		matchTag:   swarMatchTag,
		matchEmpty: swarMatchEmpty,
	}

	// defaultMatcher is used by every Map. It is the SIMD matcher when the
	// CPU supports it and the SWAR matcher otherwise.
	defaultMatcher = pickMatcher()
)

func pickMatcher() *groupMatcher {
	if simdMatcher != nil && simdSupported() {
		return simdMatcher
	}
	return swarMatcher
}

// availableMatchers returns every matcher usable on this machine.
func availableMatchers() []*groupMatcher {
	m := []*groupMatcher{scalarMatcher, swarMatcher}
	if simdMatcher != nil && simdSupported() {
		m = append(m, simdMatcher)
	}
	return m
}

func scalarMatchTag(g *ctrlGroup, tag uint8) bitset {
	var b bitset
	for i, c := range g {
		if uint8(c) == tag {
			b |= 1 << i
		}
	}
	return b
}

func scalarMatchEmpty(g *ctrlGroup) bitset {
	var b bitset
	for i, c := range g {
		if c&ctrlOccupied == ctrlEmpty {
			b |= 1 << i
		}
	}
	return b
}

// loadGroup reads the control bytes as a little endian word. The compiler
// merges the byte loads into a single 64-bit load.
func loadGroup(g *ctrlGroup) uint64 {
	return uint64(g[0]) | uint64(g[1])<<8 | uint64(g[2])<<16 | uint64(g[3])<<24 |
		uint64(g[4])<<32 | uint64(g[5])<<40 | uint64(g[6])<<48 | uint64(g[7])<<56
}

// gather packs a word holding 0x80 or 0x00 in each byte into a bitset.
func gather(v uint64) bitset {
	return bitset(((v >> 7) * bitsetGather) >> 56)
}

func swarMatchTag(g *ctrlGroup, tag uint8) bitset {
	// XOR zeroes exactly the bytes equal to tag. A byte is zero iff adding
	// 0x7f to its low 7 bits does not reach the high bit and the high bit
	// was not already set. Unlike the classic haszero trick this never
	// reports false positives.
	v := loadGroup(g) ^ (bitsetLSB * uint64(tag))
	return gather(^((v&bitsetLow7 + bitsetLow7) | v) & bitsetMSB)
}

func swarMatchEmpty(g *ctrlGroup) bitset {
	return gather(loadGroup(g) & bitsetMSB)
}
