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

import "fmt"

// Geometry describes the translation layout of one architecture: how many
// levels the table hierarchy has, how wide each level's index is, and how
// big entries and pages are.
//
// Levels are counted down from the root: the root table sits at level
// Levels-1, the leaf-level tables at level 0. The root level may carry a
// wider index than the other levels (some layouts flatten the top of the
// hierarchy, e.g. by concatenating top-level tables).
type Geometry struct {
	// PTESize is the size of one entry in bytes.
	PTESize uint64 `toml:"pte_size"`

	// NormalBits is the index width of every non-root level.
	NormalBits uint64 `toml:"normal_bits"`

	// RootBits is the index width of the root level.
	RootBits uint64 `toml:"root_bits"`

	// PageBits is the page offset width.
	PageBits uint64 `toml:"page_bits"`

	// Levels is the number of translation levels.
	Levels uint64 `toml:"levels"`
}

// Predefined geometries.
var (
	// Sv39 is the RISC-V 39-bit, three-level layout.
	Sv39 = Geometry{PTESize: 8, NormalBits: 9, RootBits: 9, PageBits: 12, Levels: 3}

	// AMD64 is the four-level x86-64 layout.
	AMD64 = Geometry{PTESize: 8, NormalBits: 9, RootBits: 9, PageBits: 12, Levels: 4}

	// ARM64Stage2 is a three-level stage-2 layout whose sixteen concatenated
	// top-level tables give the root a wider index than the other levels.
	ARM64Stage2 = Geometry{PTESize: 8, NormalBits: 9, RootBits: 13, PageBits: 12, Levels: 3}
)

// ByName returns a predefined geometry by its conventional name.
func ByName(name string) (Geometry, error) {
	switch name {
	case "sv39":
		return Sv39, nil
	case "amd64":
		return AMD64, nil
	case "arm64-stage2":
		return ARM64Stage2, nil
	default:
		return Geometry{}, fmt.Errorf("unknown geometry %q", name)
	}
}

// Validate checks that the geometry is expressible by this model. The packed
// entry encoding reserves the low 12 bits of a word for flags, so pages and
// tables must be at least 4K in size and alignment.
func (g Geometry) Validate() error {
	switch {
	case g.PTESize != 8:
		return fmt.Errorf("geometry: entry size must be 8 bytes, got %d", g.PTESize)
	case g.PageBits < 12:
		return fmt.Errorf("geometry: page offset must be at least 12 bits, got %d", g.PageBits)
	case g.Levels == 0:
		return fmt.Errorf("geometry: at least one level required")
	case g.NormalBits == 0 || g.RootBits == 0:
		return fmt.Errorf("geometry: index widths must be nonzero")
	case g.TableSize(false) < 1<<12 || g.TableSize(true) < 1<<12:
		return fmt.Errorf("geometry: tables smaller than 4K cannot be addressed by entries, got %d/%d bytes",
			g.TableSize(false), g.TableSize(true))
	case g.PageBits+(g.Levels-1)*g.NormalBits+g.RootBits > 64:
		return fmt.Errorf("geometry: virtual address wider than 64 bits")
	}
	return nil
}

// MaxLevel returns the root level ordinal.
func (g Geometry) MaxLevel() uint64 {
	return g.Levels - 1
}

// indexBits returns the index width of the given table variant.
func (g Geometry) indexBits(root bool) uint64 {
	if root {
		return g.RootBits
	}
	return g.NormalBits
}

// Entries returns the number of entries in a table of the given variant.
func (g Geometry) Entries(root bool) uint64 {
	return 1 << g.indexBits(root)
}

// TableSize returns the size in bytes of a table of the given variant.
// Tables are naturally aligned to their size.
func (g Geometry) TableSize(root bool) uint64 {
	return g.Entries(root) * g.PTESize
}

// BitsLeft returns the number of low-order virtual-address bits still to be
// translated below the given level's index: the page offset plus one normal
// index width per level underneath. A virtual address is shifted right by
// this amount before indexing at the level.
func (g Geometry) BitsLeft(level uint64) uint64 {
	g.checkLevel(level)
	return g.PageBits + level*g.NormalBits
}

// TableIndex extracts the table index from an already-shifted virtual
// address, masked to the width of the given variant.
func (g Geometry) TableIndex(root bool, v uint64) uint64 {
	return v & (g.Entries(root) - 1)
}

// Index returns the table index selected by vaddr at the given level. The
// root index width applies only at the top level.
func (g Geometry) Index(level, vaddr uint64) uint64 {
	return g.TableIndex(level == g.MaxLevel(), vaddr>>g.BitsLeft(level))
}

// SlotOffset returns the address of the slot selected by vaddr within the
// table at tablePtr at the given level.
func (g Geometry) SlotOffset(level, tablePtr, vaddr uint64) uint64 {
	if tablePtr%g.PTESize != 0 {
		panic(fmt.Sprintf("unaligned table pointer: %#x", tablePtr))
	}
	return tablePtr + g.Index(level, vaddr)*g.PTESize
}

// TableBase masks off the in-table offset bits of ptr, returning the base
// address of the containing table under the given variant interpretation.
func (g Geometry) TableBase(root bool, ptr uint64) uint64 {
	if ptr%g.PTESize != 0 {
		panic(fmt.Sprintf("unaligned slot pointer: %#x", ptr))
	}
	return ptr &^ (g.TableSize(root) - 1)
}

func (g Geometry) checkLevel(level uint64) {
	if level > g.MaxLevel() {
		panic(fmt.Sprintf("level %d out of range (max %d)", level, g.MaxLevel()))
	}
}
