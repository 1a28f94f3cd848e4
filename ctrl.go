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
	"fmt"
	"strings"
)

const (
	groupSize = 8

	ctrlEmpty   ctrl = 0b10000000
	ctrlDeleted ctrl = 0b11111110

	// ctrlOccupied selects the bit that says whether a slot is in use. A
	// control byte with this bit clear holds a tag.
	ctrlOccupied ctrl = 0b10000000
	ctrlTagMask  ctrl = 0b01111111
)

// Each slot in the table has a control byte which can have one of three
// states: empty, deleted and full. They have the following bit patterns:
//
//	  empty: 1 0 0 0 0 0 0 0
//	deleted: 1 1 1 1 1 1 1 0
//	   full: 0 h h h h h h h  // h represents the H2 hash bits
//
// The deleted state is reserved. Nothing in this package writes it.
type ctrl uint8

// isFull reports whether the slot holds an entry. The high bit is the only
// authority on occupancy.
func (c ctrl) isFull() bool {
	return c&ctrlOccupied == 0
}

func (c ctrl) tag() uint8 {
	return uint8(c & ctrlTagMask)
}

func (c ctrl) String() string {
	switch {
	case c == ctrlEmpty:
		return "empty"
	case c == ctrlDeleted:
		return "deleted"
	case c.isFull():
		return fmt.Sprintf("%02x", uint8(c))
	default:
		return fmt.Sprintf("invalid(%02x)", uint8(c))
	}
}

// ctrlGroup holds the control bytes of a single group. It is exactly 8 bytes
// so that it can be loaded into one register.
type ctrlGroup [groupSize]ctrl

var emptyCtrlGroup = ctrlGroup{
	ctrlEmpty, ctrlEmpty, ctrlEmpty, ctrlEmpty,
	ctrlEmpty, ctrlEmpty, ctrlEmpty, ctrlEmpty,
}

// setEmpty sets all the control bytes to empty.
func (g *ctrlGroup) setEmpty() {
	*g = emptyCtrlGroup
}

func (g *ctrlGroup) String() string {
	var buf strings.Builder
	for i, c := range g {
		if i > 0 {
			buf.WriteByte(' ')
		}
		buf.WriteString(c.String())
	}
	return buf.String()
}
