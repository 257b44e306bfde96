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
	"fmt"
	"sync"

	"github.com/noneGMJ/l4v/pkg/kheap"
)

// Allocator provides backing tables for mapping construction. Retyping and
// allocation policy live above the translation core; the core only requires
// that a freshly allocated table be zeroed, naturally aligned to its size,
// and already present in the heap.
type Allocator interface {
	// AllocTable creates a zeroed table of the given variant in the heap
	// and returns its base address.
	AllocTable(root bool) (uint64, error)

	// FreeTable removes the table at ptr from the heap and recycles its
	// backing range.
	FreeTable(ptr uint64, root bool) error
}

// HeapAllocator is a bump allocator handing out naturally aligned table
// bases from a private physical range.
type HeapAllocator struct {
	geo  Geometry
	heap *kheap.Heap

	mu   sync.Mutex
	next uint64
	free map[uint64][]uint64 // table size -> recycled bases
}

var _ Allocator = (*HeapAllocator)(nil)

// NewHeapAllocator returns an allocator placing tables at or above base.
func NewHeapAllocator(g Geometry, h *kheap.Heap, base uint64) *HeapAllocator {
	return &HeapAllocator{
		geo:  g,
		heap: h,
		next: base,
		free: make(map[uint64][]uint64),
	}
}

// AllocTable implements Allocator.AllocTable.
func (a *HeapAllocator) AllocTable(root bool) (uint64, error) {
	size := a.geo.TableSize(root)
	a.mu.Lock()
	var ptr uint64
	if lst := a.free[size]; len(lst) > 0 {
		ptr = lst[len(lst)-1]
		a.free[size] = lst[:len(lst)-1]
	} else {
		ptr = (a.next + size - 1) &^ (size - 1)
		next := ptr + size
		if next < ptr {
			a.mu.Unlock()
			return 0, fmt.Errorf("table allocation wrapped at %#x", a.next)
		}
		a.next = next
	}
	a.mu.Unlock()
	a.heap.Insert(ptr, NewTable(a.geo, root))
	return ptr, nil
}

// FreeTable implements Allocator.FreeTable.
func (a *HeapAllocator) FreeTable(ptr uint64, root bool) error {
	if !a.heap.Remove(ptr) {
		return fmt.Errorf("free of unallocated table %#x: %w", ptr, kheap.ErrNotFound)
	}
	size := a.geo.TableSize(root)
	a.mu.Lock()
	a.free[size] = append(a.free[size], ptr)
	a.mu.Unlock()
	return nil
}
