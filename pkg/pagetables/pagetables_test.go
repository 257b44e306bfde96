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
	"testing"

	"github.com/noneGMJ/l4v/pkg/kheap"
)

// allocBase keeps test tables clear of the low addresses used as page
// frames and hand-placed tables.
const allocBase = 0x100000

func newPT(t *testing.T, g Geometry) (*PageTables, *HeapAllocator) {
	t.Helper()
	pt, err := New(g, kheap.New())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return pt, NewHeapAllocator(g, pt.Heap(), allocBase)
}

func mustAlloc(t *testing.T, a *HeapAllocator, root bool) uint64 {
	t.Helper()
	ptr, err := a.AllocTable(root)
	if err != nil {
		t.Fatalf("AllocTable(root=%v): %v", root, err)
	}
	return ptr
}

func TestStoreThenGet(t *testing.T) {
	pt, alloc := newPT(t, Sv39)
	table := mustAlloc(t, alloc, false)

	var e PTE
	e.Set(0x5000, MapOpts{Read: true, Write: true})
	slot := table + 3*8
	if err := pt.StorePTE(slot, e); err != nil {
		t.Fatalf("StorePTE: %v", err)
	}

	got, err := pt.GetPTE(slot)
	if err != nil {
		t.Fatalf("GetPTE: %v", err)
	}
	if got != e {
		t.Errorf("GetPTE: got %v, want %v", &got, &e)
	}

	// Every other slot of the table is unchanged.
	stored, err := pt.GetTable(table)
	if err != nil {
		t.Fatalf("GetTable: %v", err)
	}
	for i := uint64(0); i < stored.Len(); i++ {
		if i == 3 {
			continue
		}
		if se := stored.Entry(i); se.Valid() {
			t.Errorf("entry %d disturbed by write to entry 3: %v", i, &se)
		}
	}
}

func TestStoreOverwrites(t *testing.T) {
	pt, alloc := newPT(t, Sv39)
	table := mustAlloc(t, alloc, false)
	slot := table + 9*8

	var page, other PTE
	page.Set(0x5000, MapOpts{Read: true})
	other.SetTable(allocBase)
	for _, e := range []PTE{page, other, 0} {
		if err := pt.StorePTE(slot, e); err != nil {
			t.Fatalf("StorePTE: %v", err)
		}
		got, err := pt.GetPTE(slot)
		if err != nil {
			t.Fatalf("GetPTE: %v", err)
		}
		if got != e {
			t.Errorf("GetPTE after store: got %v, want %v", &got, &e)
		}
	}
}

func TestStoreMissingTable(t *testing.T) {
	pt, _ := newPT(t, Sv39)
	var e PTE
	e.Set(0x5000, MapOpts{Read: true})
	if err := pt.StorePTE(0x4000, e); !errors.Is(err, kheap.ErrNotFound) {
		t.Errorf("StorePTE without table: got %v, want ErrNotFound", err)
	}
}

func TestStoreDerivesRootVariant(t *testing.T) {
	// On a layout whose root tables are wider than normal tables, a write
	// through a pointer into the root's body must index the root table, not
	// a hallucinated normal table at the masked base.
	pt, alloc := newPT(t, ARM64Stage2)
	root := mustAlloc(t, alloc, true)

	// Slot 0x1234 of the root lies beyond a normal table's index range.
	slot := root + 0x1234*8
	var e PTE
	e.SetTable(allocBase)
	if err := pt.StorePTE(slot, e); err != nil {
		t.Fatalf("StorePTE into root body: %v", err)
	}

	stored, err := pt.GetTable(root)
	if err != nil {
		t.Fatalf("GetTable: %v", err)
	}
	if se := stored.Entry(0x1234); se != e {
		t.Errorf("root entry 0x1234: got %v, want %v", &se, &e)
	}
}

func TestLevelPTEOfVariantMismatch(t *testing.T) {
	pt, alloc := newPT(t, Sv39)
	normal := mustAlloc(t, alloc, false)

	if _, err := pt.LevelPTEOf(false, normal); err != nil {
		t.Errorf("normal interpretation of a normal slot: %v", err)
	}
	// Sv39 root and normal tables are the same size, so the root
	// interpretation derives the same base but finds the wrong variant.
	if _, err := pt.LevelPTEOf(true, normal); !errors.Is(err, kheap.ErrNotFound) {
		t.Errorf("root interpretation of a normal slot: got %v, want ErrNotFound", err)
	}
}

func TestGetPTEAgreesWithLevelPTEOf(t *testing.T) {
	pt, alloc := newPT(t, ARM64Stage2)
	root := mustAlloc(t, alloc, true)
	normal := mustAlloc(t, alloc, false)

	for _, slot := range []uint64{root, root + 8, normal, normal + 24} {
		re, rerr := pt.LevelPTEOf(true, slot)
		ne, nerr := pt.LevelPTEOf(false, slot)
		got, err := pt.GetPTE(slot)
		switch {
		case rerr == nil:
			if err != nil || got != re {
				t.Errorf("slot %#x: GetPTE disagrees with root interpretation", slot)
			}
		case nerr == nil:
			if err != nil || got != ne {
				t.Errorf("slot %#x: GetPTE disagrees with normal interpretation", slot)
			}
		default:
			if err == nil {
				t.Errorf("slot %#x: GetPTE succeeded where both interpretations fail", slot)
			}
		}
	}
}

func TestGetPTEMissing(t *testing.T) {
	pt, _ := newPT(t, Sv39)
	if _, err := pt.GetPTE(0x4000); !errors.Is(err, kheap.ErrNotFound) {
		t.Errorf("GetPTE on empty heap: got %v, want ErrNotFound", err)
	}
}

func TestUnalignedStorePanics(t *testing.T) {
	pt, alloc := newPT(t, Sv39)
	table := mustAlloc(t, alloc, false)
	defer func() {
		if recover() == nil {
			t.Errorf("StorePTE accepted an unaligned pointer")
		}
	}()
	pt.StorePTE(table+4, 0)
}
