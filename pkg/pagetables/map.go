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

import (
	"errors"
	"fmt"
)

// Mapping construction failure modes.
var (
	// ErrAlreadyMapped indicates a page or table entry already occupies a
	// slot the construction needs.
	ErrAlreadyMapped = errors.New("pagetables: already mapped")

	// ErrNotMapped indicates no leaf mapping exists for the address.
	ErrNotMapped = errors.New("pagetables: not mapped")
)

// Map installs a leaf mapping vaddr -> paddr in the address space rooted at
// rootPtr, allocating intermediate tables as needed.
//
// Precondition: vaddr and paddr must be page-aligned.
func (p *PageTables) Map(alloc Allocator, rootPtr, vaddr, paddr uint64, opts MapOpts) error {
	pageMask := uint64(1)<<p.geo.PageBits - 1
	if vaddr&pageMask != 0 || paddr&pageMask != 0 {
		panic(fmt.Sprintf("unaligned mapping %#x -> %#x", vaddr, paddr))
	}
	tablePtr := rootPtr
	for level := p.geo.MaxLevel(); level > 0; level-- {
		t, err := p.GetTable(tablePtr)
		if err != nil {
			return err
		}
		idx := p.geo.TableIndex(t.IsRoot(), vaddr>>p.geo.BitsLeft(level))
		e := t.Entry(idx)
		switch {
		case e.IsTable():
			tablePtr = e.Address()
		case e.Valid():
			return fmt.Errorf("page entry at level %d for %#x: %w", level, vaddr, ErrAlreadyMapped)
		default:
			child, err := alloc.AllocTable(false)
			if err != nil {
				return err
			}
			var ne PTE
			ne.SetTable(child)
			if err := p.StorePTE(tablePtr+idx*p.geo.PTESize, ne); err != nil {
				// The child was never installed; hand it back.
				_ = alloc.FreeTable(child, false)
				return err
			}
			tablePtr = child
		}
	}
	t, err := p.GetTable(tablePtr)
	if err != nil {
		return err
	}
	idx := p.geo.TableIndex(t.IsRoot(), vaddr>>p.geo.BitsLeft(0))
	if e := t.Entry(idx); e.Valid() {
		return fmt.Errorf("leaf entry for %#x: %w", vaddr, ErrAlreadyMapped)
	}
	var le PTE
	le.Set(paddr, opts)
	return p.StorePTE(tablePtr+idx*p.geo.PTESize, le)
}

// Unmap clears the leaf mapping for vaddr. Intermediate tables are left in
// place; collapsing empty tables is their allocator's business.
func (p *PageTables) Unmap(rootPtr, vaddr uint64) error {
	level, slot, err := p.LookupSlot(rootPtr, vaddr)
	if err != nil {
		return err
	}
	if level != 0 {
		return fmt.Errorf("walk stopped at level %d for %#x: %w", level, vaddr, ErrNotMapped)
	}
	e, err := p.GetPTE(slot)
	if err != nil {
		return err
	}
	if !e.Valid() {
		return fmt.Errorf("invalid leaf entry for %#x: %w", vaddr, ErrNotMapped)
	}
	var inv PTE
	return p.StorePTE(slot, inv)
}

// Lookup translates vaddr to its mapped physical address and attributes, or
// fails with ErrNotMapped.
func (p *PageTables) Lookup(rootPtr, vaddr uint64) (uint64, MapOpts, error) {
	level, slot, err := p.LookupSlot(rootPtr, vaddr)
	if err != nil {
		return 0, MapOpts{}, err
	}
	if level != 0 {
		return 0, MapOpts{}, fmt.Errorf("walk stopped at level %d for %#x: %w", level, vaddr, ErrNotMapped)
	}
	e, err := p.GetPTE(slot)
	if err != nil {
		return 0, MapOpts{}, err
	}
	if !e.Valid() || e.IsTable() {
		return 0, MapOpts{}, fmt.Errorf("no page at %#x: %w", vaddr, ErrNotMapped)
	}
	pageMask := uint64(1)<<p.geo.PageBits - 1
	return e.Address() | vaddr&pageMask, e.Opts(), nil
}
