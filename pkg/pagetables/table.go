// Copyright 2025 The l4v Authors.
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

package pagetables

import "github.com/noneGMJ/l4v/pkg/kheap"

// Table is one page-table object stored in the kernel heap.
//
// A table is either the root variant, indexed by the root level's (possibly
// wider) index, or the normal variant, indexed by the standard per-level
// index. The variant is fixed when the table is created and is carried by
// the stored object itself; every accessor re-derives it from the object
// rather than trusting the caller, because the two variants are otherwise
// indistinguishable by address.
type Table struct {
	root    bool
	entries []PTE
}

// NewTable returns a zeroed table of the given variant.
func NewTable(g Geometry, root bool) *Table {
	return &Table{
		root:    root,
		entries: make([]PTE, g.Entries(root)),
	}
}

// Kind implements kheap.Object.
func (t *Table) Kind() kheap.Kind {
	return kheap.KindPageTable
}

// IsRoot reports whether this is the root variant.
func (t *Table) IsRoot() bool {
	return t.root
}

// Len returns the number of entries.
func (t *Table) Len() uint64 {
	return uint64(len(t.entries))
}

// Entry returns the entry at index i.
func (t *Table) Entry(i uint64) PTE {
	return PTE(t.entries[i])
}

// clone returns a copy sharing nothing with the original, so a mutation can
// be prepared without disturbing readers of the stored value.
func (t *Table) clone() *Table {
	nt := &Table{
		root:    t.root,
		entries: make([]PTE, len(t.entries)),
	}
	copy(nt.entries, t.entries)
	return nt
}
