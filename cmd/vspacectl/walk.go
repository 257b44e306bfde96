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
	"context"
	"flag"
	"fmt"
	"strconv"

	"github.com/google/subcommands"
	"github.com/sirupsen/logrus"

	"github.com/noneGMJ/l4v/pkg/asid"
)

// Walk implements subcommands.Command for the "walk" command.
type Walk struct {
	bot uint64
}

// Name implements subcommands.Command.
func (*Walk) Name() string {
	return "walk"
}

// Synopsis implements subcommands.Command.
func (*Walk) Synopsis() string {
	return "walks a virtual address through the scenario's page tables"
}

// Usage implements subcommands.Command.
func (*Walk) Usage() string {
	return `walk [flags] <scenario.toml> <vaddr>`
}

// SetFlags implements subcommands.Command.
func (w *Walk) SetFlags(f *flag.FlagSet) {
	f.Uint64Var(&w.bot, "bot", 0, "level at which the walk stops descending.")
}

// Execute implements subcommands.Command.Execute.
func (w *Walk) Execute(_ context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	if f.NArg() != 2 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	vaddr, err := strconv.ParseUint(f.Arg(1), 0, 64)
	if err != nil {
		logrus.Fatalf("parsing vaddr: %v", err)
	}
	world := buildWorld(f.Arg(0))
	pt := world.pt
	geo := pt.Geometry()

	root, err := asid.ResolveRoot(pt.Heap(), world.asids, world.id)
	if err != nil {
		logrus.Fatalf("resolving asid %#x: %v", uint64(world.id), err)
	}

	level, table, err := pt.Walk(geo.MaxLevel(), w.bot, root, vaddr)
	if err != nil {
		logrus.Fatalf("walk: %v", err)
	}
	fmt.Printf("walk stopped at level %d, table %#x\n", level, table)

	slotLevel, slot, err := pt.LookupSlotFromLevel(geo.MaxLevel(), w.bot, root, vaddr)
	if err != nil {
		logrus.Fatalf("slot lookup: %v", err)
	}
	e, err := pt.GetPTE(slot)
	if err != nil {
		logrus.Fatalf("reading slot %#x: %v", slot, err)
	}
	fmt.Printf("slot %#x (level %d, index %#x): %v\n",
		slot, slotLevel, geo.Index(slotLevel, vaddr), &e)
	return subcommands.ExitSuccess
}
