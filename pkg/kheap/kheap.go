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

// Package kheap implements the typed kernel object store ("kernel heap")
// backing all kernel objects in the model.
//
// The heap is an injective partial mapping from a physical pointer to a
// single typed kernel object. Reads are always typed: a read that finds an
// object of a different kind behaves exactly like a read that finds nothing.
package kheap

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/btree"
)

// Kind identifies the kernel object type stored at a pointer.
type Kind uint8

// Object kinds modeled by the translation core. Other kernel object types
// belong to layers above this core and are not represented here.
const (
	KindPageTable Kind = iota
	KindASIDPool
)

// String implements fmt.Stringer.
func (k Kind) String() string {
	switch k {
	case KindPageTable:
		return "page table"
	case KindASIDPool:
		return "asid pool"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Object is a single kernel object.
type Object interface {
	// Kind returns the kernel object type.
	Kind() Kind
}

// ErrNotFound indicates that nothing, or an object of a different kind, is
// stored at the requested pointer.
var ErrNotFound = errors.New("object not found")

// entry pairs a pointer with the object stored there.
type entry struct {
	ptr uint64
	obj Object
}

// btreeDegree is the branching factor of the underlying B-tree.
const btreeDegree = 16

// Heap maps physical pointers to typed kernel objects.
//
// All methods are safe for concurrent use. A write installs the new object
// as a single indivisible step, so a concurrent reader sees either the old
// or the new object, never a mixture.
type Heap struct {
	mu      sync.RWMutex
	objects *btree.BTreeG[entry]
}

// New returns an empty heap.
func New() *Heap {
	return &Heap{
		objects: btree.NewG(btreeDegree, func(a, b entry) bool {
			return a.ptr < b.ptr
		}),
	}
}

// Get returns the object of the given kind stored at ptr.
//
// It fails with ErrNotFound if no object exists at ptr or if the object
// there is of a different kind.
func (h *Heap) Get(ptr uint64, kind Kind) (Object, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	e, ok := h.objects.Get(entry{ptr: ptr})
	if !ok || e.obj.Kind() != kind {
		return nil, fmt.Errorf("no %v at %#x: %w", kind, ptr, ErrNotFound)
	}
	return e.obj, nil
}

// Put replaces the object stored at ptr.
//
// Put is a replace, not a create: an object of the same kind must already
// exist at ptr, otherwise Put fails with ErrNotFound. Creation is the
// caller's obligation, via Insert, before the first Put.
func (h *Heap) Put(ptr uint64, obj Object) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	cur, ok := h.objects.Get(entry{ptr: ptr})
	if !ok || cur.obj.Kind() != obj.Kind() {
		return fmt.Errorf("put: no %v at %#x: %w", obj.Kind(), ptr, ErrNotFound)
	}
	h.objects.ReplaceOrInsert(entry{ptr: ptr, obj: obj})
	return nil
}

// Insert stores a new object at ptr, replacing whatever was there. It is
// the creation operation used by allocation layers above the translation
// core.
func (h *Heap) Insert(ptr uint64, obj Object) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.objects.ReplaceOrInsert(entry{ptr: ptr, obj: obj})
}

// Remove deletes the object at ptr, reporting whether one existed.
func (h *Heap) Remove(ptr uint64) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.objects.Delete(entry{ptr: ptr})
	return ok
}

// Len returns the number of stored objects.
func (h *Heap) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.objects.Len()
}

// Ascend visits every stored object in increasing pointer order until fn
// returns false.
func (h *Heap) Ascend(fn func(ptr uint64, obj Object) bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	h.objects.Ascend(func(e entry) bool {
		return fn(e.ptr, e.obj)
	})
}
