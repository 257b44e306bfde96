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

import "testing"

func TestPredefinedGeometries(t *testing.T) {
	for _, tc := range []struct {
		name string
		geo  Geometry
	}{
		{"sv39", Sv39},
		{"amd64", AMD64},
		{"arm64-stage2", ARM64Stage2},
	} {
		if err := tc.geo.Validate(); err != nil {
			t.Errorf("%s: Validate: %v", tc.name, err)
		}
		byName, err := ByName(tc.name)
		if err != nil {
			t.Errorf("ByName(%q): %v", tc.name, err)
		}
		if byName != tc.geo {
			t.Errorf("ByName(%q): got %+v, want %+v", tc.name, byName, tc.geo)
		}
	}
	if _, err := ByName("pdp11"); err == nil {
		t.Errorf("ByName of unknown geometry succeeded")
	}
}

func TestValidateRejects(t *testing.T) {
	for _, tc := range []struct {
		name string
		geo  Geometry
	}{
		{"entry size", Geometry{PTESize: 4, NormalBits: 9, RootBits: 9, PageBits: 12, Levels: 3}},
		{"page bits", Geometry{PTESize: 8, NormalBits: 9, RootBits: 9, PageBits: 8, Levels: 3}},
		{"levels", Geometry{PTESize: 8, NormalBits: 9, RootBits: 9, PageBits: 12, Levels: 0}},
		{"index width", Geometry{PTESize: 8, NormalBits: 0, RootBits: 9, PageBits: 12, Levels: 3}},
		{"overflow", Geometry{PTESize: 8, NormalBits: 16, RootBits: 16, PageBits: 16, Levels: 4}},
		{"normal table size", Geometry{PTESize: 8, NormalBits: 3, RootBits: 9, PageBits: 12, Levels: 3}},
		{"root table size", Geometry{PTESize: 8, NormalBits: 9, RootBits: 3, PageBits: 12, Levels: 3}},
	} {
		if err := tc.geo.Validate(); err == nil {
			t.Errorf("%s: Validate accepted %+v", tc.name, tc.geo)
		}
	}
}

func TestSmallTableGeometryRejectedBeforeMapping(t *testing.T) {
	// Sub-4K tables cannot be referenced by the packed entry encoding, so a
	// geometry producing them must be turned away up front rather than
	// letting mapping construction reach an unencodable table base.
	small := Geometry{PTESize: 8, NormalBits: 3, RootBits: 3, PageBits: 12, Levels: 3}
	if err := small.Validate(); err == nil {
		t.Fatalf("Validate accepted %+v", small)
	}
	if _, err := New(small, nil); err == nil {
		t.Errorf("New accepted a geometry with sub-4K tables")
	}
}

func TestBitsLeft(t *testing.T) {
	for _, tc := range []struct {
		geo   Geometry
		level uint64
		want  uint64
	}{
		{Sv39, 0, 12},
		{Sv39, 1, 21},
		{Sv39, 2, 30},
		{AMD64, 3, 39},
		{ARM64Stage2, 2, 30},
	} {
		if got := tc.geo.BitsLeft(tc.level); got != tc.want {
			t.Errorf("BitsLeft(%d): got %d, want %d", tc.level, got, tc.want)
		}
	}
}

func TestIndex(t *testing.T) {
	for _, tc := range []struct {
		geo   Geometry
		level uint64
		vaddr uint64
		want  uint64
	}{
		{Sv39, 2, 0x40000000, 1},
		{Sv39, 1, 0x40000000, 0},
		{Sv39, 0, 0x40000000, 0},
		{Sv39, 0, 0x40003000, 3},
		{Sv39, 1, 0x7fffffffff, 0x1ff},
		// The root mask is wider than the normal mask on this layout.
		{ARM64Stage2, 2, 0x7fffffffffff, 0x1fff},
	} {
		if got := tc.geo.Index(tc.level, tc.vaddr); got != tc.want {
			t.Errorf("%+v: Index(%d, %#x): got %#x, want %#x",
				tc.geo, tc.level, tc.vaddr, got, tc.want)
		}
	}
}

func TestSlotOffsetIndexOnlyDependence(t *testing.T) {
	// Two addresses agreeing on the bits consumed at the level and above
	// select the same slot.
	g := Sv39
	const table = 0x81000
	v1 := uint64(0x40000000)
	v2 := v1 | 0x1fffff // differs only below level 1's index
	if s1, s2 := g.SlotOffset(1, table, v1), g.SlotOffset(1, table, v2); s1 != s2 {
		t.Errorf("SlotOffset(1): %#x vs %#x for addresses agreeing at level 1+", s1, s2)
	}
	v3 := v1 | 0x3000 // differs at level 0's index
	if s1, s3 := g.SlotOffset(0, table, v1), g.SlotOffset(0, table, v3); s1 == s3 {
		t.Errorf("SlotOffset(0): identical slots for addresses differing at level 0")
	}
}

func TestTableBase(t *testing.T) {
	g := ARM64Stage2
	// Normal tables are 4K, the root spans 64K.
	if got := g.TableBase(false, 0x81238); got != 0x81000 {
		t.Errorf("TableBase(normal): got %#x, want 0x81000", got)
	}
	if got := g.TableBase(true, 0x81238); got != 0x80000 {
		t.Errorf("TableBase(root): got %#x, want 0x80000", got)
	}
}

func TestUnalignedPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Errorf("TableBase accepted an unaligned pointer")
		}
	}()
	Sv39.TableBase(false, 0x81003)
}
