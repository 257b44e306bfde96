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

package main

import (
	"fmt"

	"github.com/BurntSushi/toml"
	"github.com/sirupsen/logrus"

	"github.com/noneGMJ/l4v/pkg/asid"
	"github.com/noneGMJ/l4v/pkg/kheap"
	"github.com/noneGMJ/l4v/pkg/pagetables"
)

// Tables and ASID pools are placed well above the page frames scenario
// files typically use.
const (
	tableBase = 0x10000000
	poolPtr   = 0xf000000
)

// mappingSpec is one [[mappings]] stanza.
type mappingSpec struct {
	Vaddr  uint64 `toml:"vaddr"`
	Paddr  uint64 `toml:"paddr"`
	Access string `toml:"access"`
}

// scenario is a TOML description of one address space: a geometry (either a
// predefined architecture or a custom [geometry] block), the ASID owning
// the space, and the leaf mappings to install.
type scenario struct {
	Arch     string               `toml:"arch"`
	Geometry *pagetables.Geometry `toml:"geometry"`
	ASID     uint64               `toml:"asid"`
	Mappings []mappingSpec        `toml:"mappings"`
}

// world is a built scenario.
type world struct {
	pt    *pagetables.PageTables
	asids *asid.Table
	id    asid.ASID
	root  uint64
}

func loadScenario(path string) (*scenario, error) {
	var s scenario
	if _, err := toml.DecodeFile(path, &s); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	if (s.Arch == "") == (s.Geometry == nil) {
		return nil, fmt.Errorf("%s: exactly one of arch or [geometry] required", path)
	}
	if s.ASID == 0 || s.ASID > asid.Max {
		return nil, fmt.Errorf("%s: asid must be in 1..%#x", path, uint64(asid.Max))
	}
	return &s, nil
}

func (s *scenario) geometry() (pagetables.Geometry, error) {
	if s.Geometry != nil {
		return *s.Geometry, s.Geometry.Validate()
	}
	return pagetables.ByName(s.Arch)
}

// build constructs the heap, the address-space root, the ASID structures,
// and every requested mapping.
func (s *scenario) build() (*world, error) {
	geo, err := s.geometry()
	if err != nil {
		return nil, err
	}
	heap := kheap.New()
	pt, err := pagetables.New(geo, heap)
	if err != nil {
		return nil, err
	}
	alloc := pagetables.NewHeapAllocator(geo, heap, tableBase)
	root, err := alloc.AllocTable(true)
	if err != nil {
		return nil, err
	}
	logrus.Debugf("root table at %#x", root)

	id := asid.ASID(s.ASID)
	pool := &asid.Pool{}
	pool.SetRoot(id, root)
	heap.Insert(poolPtr, pool)
	asids := &asid.Table{}
	asids.SetPoolPtr(id, poolPtr)

	for _, m := range s.Mappings {
		opts, err := parseAccess(m.Access)
		if err != nil {
			return nil, err
		}
		if err := pt.Map(alloc, root, m.Vaddr, m.Paddr, opts); err != nil {
			return nil, fmt.Errorf("mapping %#x -> %#x: %w", m.Vaddr, m.Paddr, err)
		}
		logrus.Debugf("mapped %#x -> %#x (%s)", m.Vaddr, m.Paddr, m.Access)
	}
	return &world{pt: pt, asids: asids, id: id, root: root}, nil
}

// buildWorld loads and builds a scenario file, exiting on failure.
func buildWorld(path string) *world {
	s, err := loadScenario(path)
	if err != nil {
		logrus.Fatalf("loading scenario: %v", err)
	}
	w, err := s.build()
	if err != nil {
		logrus.Fatalf("building scenario: %v", err)
	}
	return w
}

func parseAccess(s string) (pagetables.MapOpts, error) {
	var opts pagetables.MapOpts
	for _, c := range s {
		switch c {
		case 'r':
			opts.Read = true
		case 'w':
			opts.Write = true
		case 'x':
			opts.Execute = true
		case 'u':
			opts.User = true
		default:
			return pagetables.MapOpts{}, fmt.Errorf("unknown access flag %q in %q", c, s)
		}
	}
	return opts, nil
}
