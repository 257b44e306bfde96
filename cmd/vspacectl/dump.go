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

	"github.com/noneGMJ/l4v/pkg/kheap"
	"github.com/noneGMJ/l4v/pkg/pagetables"
)

// Dump implements subcommands.Command for the "dump" command.
type Dump struct {
	all bool
}

// Name implements subcommands.Command.
func (*Dump) Name() string {
	return "dump"
}

// Synopsis implements subcommands.Command.
func (*Dump) Synopsis() string {
	return "prints every kernel object of the built scenario"
}

// Usage implements subcommands.Command.
func (*Dump) Usage() string {
	return `dump [flags] <scenario.toml>`
}

// SetFlags implements subcommands.Command.
func (d *Dump) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&d.all, "all", false, "include invalid table entries.")
}

// Execute implements subcommands.Command.Execute.
func (d *Dump) Execute(_ context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	if f.NArg() != 1 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	world := buildWorld(f.Arg(0))

	world.pt.Heap().Ascend(func(ptr uint64, obj kheap.Object) bool {
		switch o := obj.(type) {
		case *pagetables.Table:
			variant := "table"
			if o.IsRoot() {
				variant = "root table"
			}
			fmt.Printf("%#x: %s, %d entries\n", ptr, variant, o.Len())
			for i := uint64(0); i < o.Len(); i++ {
				e := o.Entry(i)
				if !e.Valid() && !d.all {
					continue
				}
				fmt.Printf("  [%#x] %v\n", i, &e)
			}
		default:
			fmt.Printf("%#x: %v\n", ptr, obj.Kind())
		}
		return true
	})
	return subcommands.ExitSuccess
}
