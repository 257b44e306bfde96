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

// Package pagetables models multi-level radix-tree address translation over
// page-table objects stored in a kernel heap.
//
// The model is authoritative rather than performant: table objects are
// immutable values in the heap, an entry write replaces the whole table with
// an updated copy, and walkers therefore always observe a consistent
// snapshot of every table they read.
package pagetables

import (
	"fmt"

	"github.com/noneGMJ/l4v/pkg/kheap"
)

// PageTables provides translation queries and entry updates for one
// geometry over tables stored in a heap.
type PageTables struct {
	geo  Geometry
	heap *kheap.Heap
}

// New returns a PageTables operating on the given heap.
func New(g Geometry, h *kheap.Heap) (*PageTables, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return &PageTables{geo: g, heap: h}, nil
}

// Geometry returns the translation geometry.
func (p *PageTables) Geometry() Geometry {
	return p.geo
}

// Heap returns the backing object store.
func (p *PageTables) Heap() *kheap.Heap {
	return p.heap
}

// GetTable reads the table object stored at ptr.
func (p *PageTables) GetTable(ptr uint64) (*Table, error) {
	obj, err := p.heap.Get(ptr, kheap.KindPageTable)
	if err != nil {
		return nil, err
	}
	return obj.(*Table), nil
}

// SetTable replaces the table object stored at ptr. A table must already
// exist there; creation is an allocator obligation.
func (p *PageTables) SetTable(ptr uint64, t *Table) error {
	if _, err := p.GetTable(ptr); err != nil {
		return err
	}
	return p.heap.Put(ptr, t)
}

// LevelPTEOf reads the entry at the slot ptr, interpreting ptr as a slot of
// the given table variant.
//
// The containing table's base is derived from ptr by masking the variant's
// in-table offset bits. If the table stored there is of the other variant,
// the interpretation is simply wrong for this ptr and the read fails as
// not-found; a mismatch is not a heap error, because any aligned address is
// interpretable under both variants while at most one holds a matching
// object.
func (p *PageTables) LevelPTEOf(root bool, ptr uint64) (PTE, error) {
	if ptr%p.geo.PTESize != 0 {
		panic(fmt.Sprintf("unaligned pte pointer: %#x", ptr))
	}
	base := p.geo.TableBase(root, ptr)
	t, err := p.GetTable(base)
	if err != nil {
		return 0, err
	}
	if t.IsRoot() != root {
		return 0, fmt.Errorf("no %v slot at %#x: %w", variant(root), ptr, kheap.ErrNotFound)
	}
	return t.Entry((ptr - base) / p.geo.PTESize), nil
}

// GetPTE reads the entry at the slot ptr under whichever variant
// interpretation finds a matching table.
//
// For a well-formed heap at most one interpretation can succeed; both
// succeeding means two tables of different variants overlap in memory,
// which the model treats as a kernel-invariant violation.
func (p *PageTables) GetPTE(ptr uint64) (PTE, error) {
	re, rerr := p.LevelPTEOf(true, ptr)
	ne, nerr := p.LevelPTEOf(false, ptr)
	if rerr == nil && nerr == nil {
		panic(fmt.Sprintf("pte %#x: root and normal interpretations both resolve", ptr))
	}
	if rerr == nil {
		return re, nil
	}
	if nerr == nil {
		return ne, nil
	}
	return 0, rerr
}

// StorePTE writes the entry at the slot ptr, leaving every other entry of
// the containing table unchanged.
//
// The containing table's variant is re-derived from the heap: if a root
// table lives at the root-variant base of ptr, the slot is a root slot,
// otherwise a normal one. The updated table is installed as a single heap
// write. A missing table propagates as not-found.
func (p *PageTables) StorePTE(ptr uint64, e PTE) error {
	if ptr%p.geo.PTESize != 0 {
		panic(fmt.Sprintf("unaligned pte pointer: %#x", ptr))
	}
	root := false
	if t, err := p.GetTable(p.geo.TableBase(true, ptr)); err == nil && t.IsRoot() {
		root = true
	}
	base := p.geo.TableBase(root, ptr)
	t, err := p.GetTable(base)
	if err != nil {
		return err
	}
	if t.IsRoot() != root {
		return fmt.Errorf("no %v slot at %#x: %w", variant(root), ptr, kheap.ErrNotFound)
	}
	nt := t.clone()
	nt.entries[(ptr-base)/p.geo.PTESize] = e
	return p.heap.Put(base, nt)
}

func variant(root bool) string {
	if root {
		return "root table"
	}
	return "page table"
}
