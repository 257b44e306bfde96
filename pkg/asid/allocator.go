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

package asid

import (
	"errors"
	"sync"
)

// ErrExhausted indicates that every ASID is in use.
var ErrExhausted = errors.New("asid: space exhausted")

// Allocator hands out unused ASIDs.
//
// ASID 0 is reserved and never allocated; on the modeled architectures it
// names the global address space.
type Allocator struct {
	mu   sync.Mutex
	next ASID
	free []ASID
}

// NewAllocator returns an allocator with the full ASID space available.
func NewAllocator() *Allocator {
	return &Allocator{next: 1}
}

// Allocate returns a currently unused ASID, preferring recently freed ones.
func (a *Allocator) Allocate() (ASID, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if n := len(a.free); n > 0 {
		id := a.free[n-1]
		a.free = a.free[:n-1]
		return id, nil
	}
	if a.next > Max {
		return 0, ErrExhausted
	}
	id := a.next
	a.next++
	return id, nil
}

// Free returns an ASID to the allocator for reuse.
func (a *Allocator) Free(id ASID) {
	if id == 0 {
		panic("asid: free of reserved ASID 0")
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.free = append(a.free, id)
}
