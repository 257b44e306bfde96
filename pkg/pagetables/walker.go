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

// ErrInvalidRoot indicates that a reverse lookup ran out of table depth or
// met a non-table entry before finding the slot referencing its target: the
// starting table is not a valid ancestor chain for the target.
var ErrInvalidRoot = errors.New("pagetables: invalid root")

// Walk descends the table hierarchy from tablePtr at the given level,
// following page-table entries toward botLevel.
//
// The walk stops at botLevel, or earlier at the first entry that is not
// page-table typed, and returns the level and table base where it stopped:
// the table containing the terminal entry, not the entry's slot. An
// unreadable table aborts the walk with the heap's not-found error, which is
// distinct from finding an invalid entry.
//
// The loop runs at most level-botLevel+1 steps, decrementing level each
// time it descends.
func (p *PageTables) Walk(level, botLevel, tablePtr, vaddr uint64) (uint64, uint64, error) {
	p.geo.checkLevel(level)
	for botLevel < level {
		t, err := p.GetTable(tablePtr)
		if err != nil {
			return 0, 0, err
		}
		e := t.Entry(p.geo.TableIndex(t.IsRoot(), vaddr>>p.geo.BitsLeft(level)))
		if !e.IsTable() {
			return level, tablePtr, nil
		}
		tablePtr = e.Address()
		level--
	}
	return level, tablePtr, nil
}

// LookupSlotFromLevel walks from tablePtr at the given level toward
// botLevel and returns the stopping level together with the address of the
// slot selected by vaddr within the stopping table.
func (p *PageTables) LookupSlotFromLevel(level, botLevel, tablePtr, vaddr uint64) (uint64, uint64, error) {
	stop, ptr, err := p.Walk(level, botLevel, tablePtr, vaddr)
	if err != nil {
		return 0, 0, err
	}
	return stop, p.geo.SlotOffset(stop, ptr, vaddr), nil
}

// LookupSlot is the standard forward translation-slot query: it walks from
// the address-space root all the way toward the leaf level.
//
// If the returned level is 0, the slot holds a leaf-capable entry in any
// well-formed address space; a stop above 0 means the walk met a page or an
// invalid entry before running out of depth.
func (p *PageTables) LookupSlot(rootPtr, vaddr uint64) (uint64, uint64, error) {
	return p.LookupSlotFromLevel(p.geo.MaxLevel(), 0, rootPtr, vaddr)
}

// LookupFromLevel finds the slot, in the chain starting at tablePtr at the
// given level, whose page-table entry points at target. It is the reverse
// query used to find which parent slot references a child table, e.g. when
// unmapping the child.
//
// Reaching level 0, or meeting an entry that is not page-table typed, fails
// with ErrInvalidRoot. An unreadable table propagates as not-found.
func (p *PageTables) LookupFromLevel(level, tablePtr, vaddr, target uint64) (uint64, error) {
	p.geo.checkLevel(level)
	for {
		if level == 0 {
			return 0, fmt.Errorf("target %#x not referenced: %w", target, ErrInvalidRoot)
		}
		t, err := p.GetTable(tablePtr)
		if err != nil {
			return 0, err
		}
		idx := p.geo.TableIndex(t.IsRoot(), vaddr>>p.geo.BitsLeft(level))
		e := t.Entry(idx)
		if !e.IsTable() {
			return 0, fmt.Errorf("non-table entry at level %d: %w", level, ErrInvalidRoot)
		}
		slot := tablePtr + idx*p.geo.PTESize
		if e.Address() == target {
			return slot, nil
		}
		tablePtr = e.Address()
		level--
	}
}
