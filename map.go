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

// package fixedswiss is a fixed capacity hash table in the Swiss Tables
// family described in https://abseil.io/about/design/swisstables. See also:
// https://faultlore.com/blah/hashbrown-tldr/.
//
// # Layout
//
// A Map is created with a capacity and never grows. The capacity is rounded
// up to a whole number of groups of 8 slots (at least one group). Each group
// has 8 control bytes stored in a separate array, index-aligned with the
// array of groups holding the keys and values. A control byte is either
// empty (0b10000000) or full (0b0hhhhhhh) where the 7 h bits are the low bits
// of hash(key). A deleted state (0b11111110) is reserved but never written
// because a Map does not support deletion.
//
// # Probing
//
// hash(key) is split into H1, the upper 57 bits, and H2, the low 7 bits.
// Probing starts at group H1 mod groupCount. The number of groups need not be
// a power of two so this is a real modulo. Groups are then visited linearly,
// wrapping around at the end, and each group is visited at most once. Within
// a group all 8 control bytes are compared against H2 at once (using SSE2 on
// amd64, and 64-bit SWAR arithmetic elsewhere). Every tag match is confirmed
// with a full key comparison since 7 bits collide 1 time in 128.
//
// Put writes a new entry into the first empty slot of the first group in the
// probe sequence that has one. Entries are never moved or removed, so a
// group that has an empty slot ends every probe sequence that reaches it:
// a key stored further along would have been placed here instead.
//
// # Capacity
//
// When every group in a key's probe sequence is full and none holds the key,
// Put returns an error wrapping ErrFull and the Map is unchanged. Size the
// Map for the number of entries it must hold.
package fixedswiss

import (
	"fmt"
	"strings"
	"unsafe"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
)

const debug = false

// ErrFull is returned by Put when no slot is available for a new key.
var ErrFull = errors.New("fixedswiss: table full")

// Group holds the keys and values of one group of slots. A slot's key and
// value are meaningful only while the slot's control byte is full.
type Group[K comparable, V any] struct {
	keys   [groupSize]K
	values [groupSize]V
}

// Map is an unordered map from keys to values with Put and Get operations.
// It is inspired by Google's Swiss Tables design as implemented in Abseil's
// flat_hash_map, but is sized once at construction and never rehashed. By
// default, a Map[K,V] uses the same hash function as Go's builtin map[K]V
// with a per-map seed, though a different hash function can be specified
// using the WithHash option.
//
// A Map is NOT goroutine-safe.
type Map[K comparable, V any] struct {
	hash HashFunc[K]
	// The allocator to use for the ctrls and groups slices.
	allocator Allocator[K, V]
	matcher   *groupMatcher
	// ctrls[g] holds the control bytes for groups[g]. Both slices have one
	// entry per group and their length never changes.
	ctrls  []ctrlGroup
	groups []Group[K, V]
	// The capacity requested in New.
	capacity int
}

// New constructs a new Map that can hold capacity entries. The number of
// slots is capacity rounded up to a multiple of 8, with a minimum of 8.
func New[K comparable, V any](capacity int, options ...option[K, V]) *Map[K, V] {
	m := &Map[K, V]{
		allocator: defaultAllocator[K, V]{},
		matcher:   defaultMatcher,
		capacity:  capacity,
	}

	for _, op := range options {
		op.apply(m)
	}

	if m.hash == nil {
		m.hash = defaultHash[K]()
	}

	n := groupCount(capacity)
	m.groups = m.allocator.AllocGroups(n)
	m.ctrls = ctrlGroupsFromBytes(m.allocator.AllocControls(n * groupSize))
	for i := range m.ctrls {
		m.ctrls[i].setEmpty()
	}

	if debug {
		fmt.Printf("new: capacity=%d groups=%d matcher=%s\n", capacity, n, m.matcher.name)
	}

	m.checkInvariants()
	return m
}

// Close closes the map, releasing any memory back to its configured
// allocator. It is unnecessary to close a map using the default allocator. It
// is invalid to use a Map after it has been closed, though Close itself is
// idempotent.
func (m *Map[K, V]) Close() {
	if m.groups != nil {
		m.allocator.FreeGroups(m.groups)
		m.allocator.FreeControls(ctrlGroupsToBytes(m.ctrls))
	}
	m.groups = nil
	m.ctrls = nil
	m.allocator = nil
}

// Put inserts an entry into the map, overwriting an existing value if an
// entry with the same key already exists. An overwritten entry keeps its
// slot and control byte. If the key is absent and there is no room for it,
// Put returns an error wrapping ErrFull and leaves the map unchanged.
func (m *Map[K, V]) Put(key K, value V) error {
	h := m.hash(key)
	tag := h2(h)
	seq := makeProbeSeq(h1(h), uintptr(len(m.ctrls)))
	if debug {
		fmt.Printf("put(%v): h2=%02x %s\n", key, tag, seq)
	}

	for ; !seq.done(); seq = seq.next() {
		c := &m.ctrls[seq.offset]
		g := &m.groups[seq.offset]
		match := m.matcher.matchTag(c, tag)
		if debug {
			fmt.Printf("put(probing): group=%d match=%s [%s]\n", seq.offset, match, c)
		}

		for match != 0 {
			i := match.first()
			if debug {
				fmt.Printf("put(checking): group=%d slot=%d key=%v\n", seq.offset, i, g.keys[i])
			}
			if key == g.keys[i] {
				if debug {
					fmt.Printf("put(updating): group=%d slot=%d key=%v\n", seq.offset, i, key)
				}
				g.values[i] = value
				m.checkInvariants()
				return nil
			}
			match = match.removeFirst()
		}

		if empty := m.matcher.matchEmpty(c); empty != 0 {
			i := empty.first()
			if debug {
				fmt.Printf("put(inserting): group=%d slot=%d match-empty=%s\n", seq.offset, i, empty)
			}
			c[i] = ctrl(tag)
			g.keys[i] = key
			g.values[i] = value
			m.checkInvariants()
			return nil
		}

		if debug {
			fmt.Printf("put(skipping): group=%d full\n", seq.offset)
		}
	}

	return errors.Wrapf(ErrFull, "put: probed all %d groups", len(m.ctrls))
}

// Get retrieves the value from the map for the specified key, return ok=false
// if the key is not present.
func (m *Map[K, V]) Get(key K) (value V, ok bool) {
	g, i, ok := m.find(key, m.hash(key))
	if !ok {
		return value, false
	}
	return m.groups[g].values[i], true
}

// find returns the group and slot holding key, which hashes to h.
//
// The h2 bits ensure when we compare a key we are likely to have actually
// found the object. Along a probe sequence of k unrelated full slots the
// expected number of h2 matches is k/128, so the number of wasted key
// comparisons stays small even when the map is nearly full.
func (m *Map[K, V]) find(key K, h uint64) (g, i uintptr, ok bool) {
	tag := h2(h)
	seq := makeProbeSeq(h1(h), uintptr(len(m.ctrls)))
	if debug {
		fmt.Printf("get(%v): h2=%02x %s\n", key, tag, seq)
	}

	for ; !seq.done(); seq = seq.next() {
		c := &m.ctrls[seq.offset]
		match := m.matcher.matchTag(c, tag)
		if debug {
			fmt.Printf("get(probing): group=%d match=%s [%s]\n", seq.offset, match, c)
		}

		for match != 0 {
			i := match.first()
			if key == m.groups[seq.offset].keys[i] {
				return seq.offset, i, true
			}
			match = match.removeFirst()
		}

		if empty := m.matcher.matchEmpty(c); empty != 0 {
			if debug {
				fmt.Printf("get(not-found): group=%d match-empty=%s\n", seq.offset, empty)
			}
			return 0, 0, false
		}
	}
	return 0, 0, false
}

// groupCount returns the number of groups needed to hold capacity entries.
// There is always at least one group so that the probe start is defined.
func groupCount(capacity int) int {
	if capacity <= 0 {
		return 1
	}
	n := capacity / groupSize
	if capacity%groupSize != 0 {
		n++
	}
	return n
}

func (m *Map[K, V]) checkInvariants() {
	if invariants {
		if err := m.verify(); err != nil {
			panic(fmt.Sprintf("invariant failed: %v\n%s", err, m.debugString()))
		}
	}
}

// verify checks that the control bytes and the groups agree, and that every
// stored key can be found at the slot it occupies. All violations are
// reported.
func (m *Map[K, V]) verify() error {
	var result *multierror.Error
	if len(m.ctrls) != len(m.groups) {
		result = multierror.Append(result, errors.Errorf(
			"%d control groups but %d slot groups", len(m.ctrls), len(m.groups)))
		return result.ErrorOrNil()
	}
	if n := groupCount(m.capacity); n != len(m.groups) {
		result = multierror.Append(result, errors.Errorf(
			"capacity %d needs %d groups, found %d", m.capacity, n, len(m.groups)))
	}

	var zero K
	for g := range m.ctrls {
		for i, c := range m.ctrls[g] {
			key := m.groups[g].keys[i]
			switch {
			case c == ctrlEmpty:
				if key != zero {
					result = multierror.Append(result, errors.Errorf(
						"slot(%d,%d): empty but holds key %v", g, i, key))
				}
			case c.isFull():
				h := m.hash(key)
				if c.tag() != h2(h) {
					result = multierror.Append(result, errors.Errorf(
						"slot(%d,%d): %v has ctrl=%02x but h2=%02x", g, i, key, uint8(c), h2(h)))
				}
				fg, fi, ok := m.find(key, h)
				if !ok {
					result = multierror.Append(result, errors.Errorf(
						"slot(%d,%d): %v not found [h2=%02x h1=%x]", g, i, key, h2(h), h1(h)))
				} else if fg != uintptr(g) || fi != uintptr(i) {
					result = multierror.Append(result, errors.Errorf(
						"slot(%d,%d): %v found at slot(%d,%d)", g, i, key, fg, fi))
				}
			default:
				result = multierror.Append(result, errors.Errorf(
					"slot(%d,%d): unexpected ctrl %s", g, i, c))
			}
		}
	}
	return result.ErrorOrNil()
}

func (m *Map[K, V]) debugString() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "capacity=%d  groups=%d  matcher=%s\n", m.capacity, len(m.ctrls), m.matcher.name)
	for g := range m.ctrls {
		fmt.Fprintf(&buf, "  group %d: [%s]\n", g, &m.ctrls[g])
		for i, c := range m.ctrls[g] {
			if !c.isFull() {
				continue
			}
			key := m.groups[g].keys[i]
			fmt.Fprintf(&buf, "    %d: %v [ctrl=%02x h2=%02x]\n", i, key, uint8(c), h2(m.hash(key)))
		}
	}
	return buf.String()
}

// probeSeq maintains the state for a probe sequence. The sequence visits
// every group exactly once, starting at the group selected by H1:
//
//	p(i) := (hash + i) mod groups, for 0 <= i < groups
//
// groups does not have to be a power of two, which is why the start is
// computed with a modulo rather than a mask.
type probeSeq struct {
	groups uintptr
	offset uintptr
	index  uintptr
}

func makeProbeSeq(hash uint64, groups uintptr) probeSeq {
	return probeSeq{
		groups: groups,
		offset: uintptr(hash % uint64(groups)),
		index:  0,
	}
}

func (s probeSeq) next() probeSeq {
	s.index++
	s.offset++
	if s.offset == s.groups {
		s.offset = 0
	}
	return s
}

// done reports whether every group has been visited.
func (s probeSeq) done() bool {
	return s.index >= s.groups
}

func (s probeSeq) String() string {
	return fmt.Sprintf("groups=%d offset=%d index=%d", s.groups, s.offset, s.index)
}

// ctrlGroupsFromBytes reinterprets a byte slice whose length is a multiple
// of groupSize as control groups.
func ctrlGroupsFromBytes(b []uint8) []ctrlGroup {
	return unsafe.Slice((*ctrlGroup)(unsafe.Pointer(unsafe.SliceData(b))), len(b)/groupSize)
}

func ctrlGroupsToBytes(c []ctrlGroup) []uint8 {
	return unsafe.Slice((*uint8)(unsafe.Pointer(unsafe.SliceData(c))), len(c)*groupSize)
}
