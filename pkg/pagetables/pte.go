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
	"sync/atomic"
)

// PTE is a page table entry, packed into a single 64-bit word.
//
// An entry is in one of three states: invalid (no mapping), a page (a
// terminal mapping carrying access attributes), or a page table (a pointer
// to the base of a child table one level down). Only page-table entries are
// followed by a walk.
//
// Accessors load and store the word atomically, so a concurrent reader
// observes one consistent value per slot.
type PTE uint64

const (
	pteValid   PTE = 1 << 0
	pteTable   PTE = 1 << 1
	pteRead    PTE = 1 << 2
	pteWrite   PTE = 1 << 3
	pteExecute PTE = 1 << 4
	pteUser    PTE = 1 << 5

	addrMask = 0x000ffffffffff000
)

// MapOpts are the access attributes of a terminal page mapping.
type MapOpts struct {
	Read    bool
	Write   bool
	Execute bool
	User    bool
}

// Valid reports whether the entry maps anything at all.
func (p *PTE) Valid() bool {
	return atomic.LoadUint64((*uint64)(p))&uint64(pteValid) != 0
}

// IsTable reports whether the entry points at a child table.
func (p *PTE) IsTable() bool {
	v := atomic.LoadUint64((*uint64)(p))
	return v&uint64(pteValid) != 0 && v&uint64(pteTable) != 0
}

// Address returns the physical base carried by the entry: a page frame for a
// page entry, a child table base for a page-table entry.
func (p *PTE) Address() uint64 {
	return atomic.LoadUint64((*uint64)(p)) & addrMask
}

// Opts returns the access attributes of a page entry.
func (p *PTE) Opts() MapOpts {
	v := PTE(atomic.LoadUint64((*uint64)(p)))
	return MapOpts{
		Read:    v&pteRead != 0,
		Write:   v&pteWrite != 0,
		Execute: v&pteExecute != 0,
		User:    v&pteUser != 0,
	}
}

// Set makes the entry a terminal page mapping of addr with the given
// attributes.
//
// Precondition: addr must fit the entry's address field.
func (p *PTE) Set(addr uint64, opts MapOpts) {
	if addr&^uint64(addrMask) != 0 {
		panic(fmt.Sprintf("page address out of range: %#x", addr))
	}
	v := PTE(addr) | pteValid
	if opts.Read {
		v |= pteRead
	}
	if opts.Write {
		v |= pteWrite
	}
	if opts.Execute {
		v |= pteExecute
	}
	if opts.User {
		v |= pteUser
	}
	atomic.StoreUint64((*uint64)(p), uint64(v))
}

// SetTable makes the entry a pointer to the child table at addr.
//
// Precondition: addr must fit the entry's address field.
func (p *PTE) SetTable(addr uint64) {
	if addr&^uint64(addrMask) != 0 {
		panic(fmt.Sprintf("table address out of range: %#x", addr))
	}
	atomic.StoreUint64((*uint64)(p), uint64(PTE(addr)|pteValid|pteTable))
}

// Clear invalidates the entry.
func (p *PTE) Clear() {
	atomic.StoreUint64((*uint64)(p), 0)
}

// String implements fmt.Stringer.
func (p *PTE) String() string {
	switch {
	case p.IsTable():
		return fmt.Sprintf("table -> %#x", p.Address())
	case p.Valid():
		o := p.Opts()
		flag := func(set bool, c string) string {
			if set {
				return c
			}
			return "-"
		}
		return fmt.Sprintf("page %#x %s%s%s%s", p.Address(),
			flag(o.Read, "r"), flag(o.Write, "w"), flag(o.Execute, "x"), flag(o.User, "u"))
	default:
		return "invalid"
	}
}
