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

package kheap

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

type testObject struct {
	kind Kind
	name string
}

func (o *testObject) Kind() Kind { return o.kind }

func TestGetMissing(t *testing.T) {
	h := New()
	if _, err := h.Get(0x1000, KindPageTable); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get on empty heap: got %v, want ErrNotFound", err)
	}
}

func TestGetWrongKind(t *testing.T) {
	h := New()
	h.Insert(0x1000, &testObject{kind: KindASIDPool})
	if _, err := h.Get(0x1000, KindPageTable); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get with mismatched kind: got %v, want ErrNotFound", err)
	}
	if _, err := h.Get(0x1000, KindASIDPool); err != nil {
		t.Errorf("Get with matching kind: got %v, want nil", err)
	}
}

func TestPutRequiresExisting(t *testing.T) {
	h := New()
	obj := &testObject{kind: KindPageTable}

	if err := h.Put(0x2000, obj); !errors.Is(err, ErrNotFound) {
		t.Errorf("Put without prior Insert: got %v, want ErrNotFound", err)
	}

	h.Insert(0x2000, &testObject{kind: KindASIDPool})
	if err := h.Put(0x2000, obj); !errors.Is(err, ErrNotFound) {
		t.Errorf("Put over different kind: got %v, want ErrNotFound", err)
	}

	h.Insert(0x2000, &testObject{kind: KindPageTable, name: "old"})
	if err := h.Put(0x2000, obj); err != nil {
		t.Fatalf("Put over same kind: got %v, want nil", err)
	}
	got, err := h.Get(0x2000, KindPageTable)
	if err != nil {
		t.Fatalf("Get after Put: %v", err)
	}
	if got != Object(obj) {
		t.Errorf("Get after Put returned the old object")
	}
}

func TestRemove(t *testing.T) {
	h := New()
	h.Insert(0x3000, &testObject{kind: KindPageTable})
	if !h.Remove(0x3000) {
		t.Errorf("Remove of existing object returned false")
	}
	if h.Remove(0x3000) {
		t.Errorf("Remove of removed object returned true")
	}
	if _, err := h.Get(0x3000, KindPageTable); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after Remove: got %v, want ErrNotFound", err)
	}
}

func TestAscendOrder(t *testing.T) {
	h := New()
	for _, ptr := range []uint64{0x5000, 0x1000, 0x9000, 0x3000} {
		h.Insert(ptr, &testObject{kind: KindPageTable})
	}
	var got []uint64
	h.Ascend(func(ptr uint64, _ Object) bool {
		got = append(got, ptr)
		return true
	})
	want := []uint64{0x1000, 0x3000, 0x5000, 0x9000}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Ascend order mismatch (-want +got):\n%s", diff)
	}
	if h.Len() != 4 {
		t.Errorf("Len: got %d, want 4", h.Len())
	}
}
