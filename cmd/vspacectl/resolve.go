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

	"github.com/google/subcommands"
	"github.com/sirupsen/logrus"
)

// Resolve implements subcommands.Command for the "resolve" command.
type Resolve struct{}

// Name implements subcommands.Command.
func (*Resolve) Name() string {
	return "resolve"
}

// Synopsis implements subcommands.Command.
func (*Resolve) Synopsis() string {
	return "resolves the scenario's ASID to its address-space root"
}

// Usage implements subcommands.Command.
func (*Resolve) Usage() string {
	return `resolve <scenario.toml>`
}

// SetFlags implements subcommands.Command.
func (*Resolve) SetFlags(*flag.FlagSet) {}

// Execute implements subcommands.Command.Execute.
func (*Resolve) Execute(_ context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	if f.NArg() != 1 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	world := buildWorld(f.Arg(0))
	id := world.id

	poolPtr, ok := world.asids.PoolPtr(id)
	if !ok {
		logrus.Fatalf("asid %#x has no pool", uint64(id))
	}
	pool, err := world.asids.ResolvePool(world.pt.Heap(), id)
	if err != nil {
		logrus.Fatalf("resolving pool: %v", err)
	}
	root, err := pool.ResolveRoot(id)
	if err != nil {
		logrus.Fatalf("resolving root: %v", err)
	}
	fmt.Printf("asid %#x: high %#x low %#x\n", uint64(id), id.HighIndex(), id.LowIndex())
	fmt.Printf("pool %#x, root %#x\n", poolPtr, root)
	return subcommands.ExitSuccess
}
