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

// Package asid maps address-space identifiers to address-space roots.
//
// An ASID splits into a high index selecting a pool slot in the global ASID
// table and a low index selecting a root pointer within that pool. The split
// is a lossless partition of the identifier's bit pattern.
package asid

import (
	"errors"
	"fmt"

	"github.com/noneGMJ/l4v/pkg/kheap"
)

// Index geometry of the two-level ASID structure.
const (
	// HighBits is the index width of the global ASID table.
	HighBits = 7

	// LowBits is the index width of one ASID pool.
	LowBits = 9

	// TableEntries is the number of pool slots in the global table.
	TableEntries = 1 << HighBits

	// PoolEntries is the number of root slots in one pool.
	PoolEntries = 1 << LowBits

	// Max is the largest representable ASID.
	Max = 1<<(HighBits+LowBits) - 1
)

// Failure modes of ASID resolution.
var (
	// ErrNoPool indicates the ASID's high index has no pool assigned.
	ErrNoPool = errors.New("asid: no such pool")

	// ErrNoRoot indicates the ASID's low index has no root assigned.
	ErrNoRoot = errors.New("asid: no such root")
)

// ASID is an address-space identifier.
type ASID uint64

// HighIndex returns the pool slot selected in the global ASID table.
func (a ASID) HighIndex() uint64 {
	return (uint64(a) >> LowBits) & (TableEntries - 1)
}

// LowIndex returns the root slot selected within the pool.
func (a ASID) LowIndex() uint64 {
	return uint64(a) & (PoolEntries - 1)
}

// Pool maps the low index of an ASID to an address-space root pointer.
// A zero slot means no root is assigned.
//
// Pools are kernel heap objects; they are created and destroyed by the
// allocation layers above this core and only resolved here.
type Pool struct {
	roots [PoolEntries]uint64
}

// Kind implements kheap.Object.
func (p *Pool) Kind() kheap.Kind {
	return kheap.KindASIDPool
}

// Root returns the root pointer assigned to the ASID's low index.
func (p *Pool) Root(a ASID) (uint64, bool) {
	root := p.roots[a.LowIndex()]
	return root, root != 0
}

// SetRoot assigns the root pointer for the ASID's low index. A zero root
// clears the slot.
func (p *Pool) SetRoot(a ASID, root uint64) {
	p.roots[a.LowIndex()] = root
}

// ResolveRoot returns the address-space root for the ASID, or ErrNoRoot if
// the pool has no root assigned at its low index.
func (p *Pool) ResolveRoot(a ASID) (uint64, error) {
	root, ok := p.Root(a)
	if !ok {
		return 0, fmt.Errorf("asid %#x: %w", uint64(a), ErrNoRoot)
	}
	return root, nil
}

// Clone returns a copy of the pool. Mutations intended for publication
// through SetPool should be applied to a clone, so concurrent resolvers keep
// a consistent snapshot.
func (p *Pool) Clone() *Pool {
	np := *p
	return &np
}

// Table is the global ASID table, mapping the high index of an ASID to the
// heap pointer of its pool. A zero slot means no pool is assigned.
//
// The table itself is process-global state, mutated only by address-space
// allocation and deallocation; resolution never writes it.
type Table struct {
	pools [TableEntries]uint64
}

// PoolPtr returns the pool pointer assigned to the ASID's high index.
func (t *Table) PoolPtr(a ASID) (uint64, bool) {
	ptr := t.pools[a.HighIndex()]
	return ptr, ptr != 0
}

// SetPoolPtr assigns the pool pointer for the ASID's high index. A zero
// pointer clears the slot.
func (t *Table) SetPoolPtr(a ASID, ptr uint64) {
	t.pools[a.HighIndex()] = ptr
}

// ResolvePool returns the pool owning the ASID, reading it from the heap.
// It fails with ErrNoPool if the table has no pool assigned at the high
// index, and with the heap's not-found error if the assigned pointer does
// not name a pool object.
func (t *Table) ResolvePool(h *kheap.Heap, a ASID) (*Pool, error) {
	ptr, ok := t.PoolPtr(a)
	if !ok {
		return nil, fmt.Errorf("asid %#x: %w", uint64(a), ErrNoPool)
	}
	return GetPool(h, ptr)
}

// ResolveRoot resolves an ASID all the way to its address-space root.
func ResolveRoot(h *kheap.Heap, t *Table, a ASID) (uint64, error) {
	pool, err := t.ResolvePool(h, a)
	if err != nil {
		return 0, err
	}
	return pool.ResolveRoot(a)
}

// GetPool reads the pool object stored at ptr.
func GetPool(h *kheap.Heap, ptr uint64) (*Pool, error) {
	obj, err := h.Get(ptr, kheap.KindASIDPool)
	if err != nil {
		return nil, err
	}
	return obj.(*Pool), nil
}

// SetPool replaces the pool object stored at ptr. A pool must already exist
// there; creation is the allocation layer's obligation.
func SetPool(h *kheap.Heap, ptr uint64, p *Pool) error {
	if _, err := GetPool(h, ptr); err != nil {
		return err
	}
	return h.Put(ptr, p)
}
