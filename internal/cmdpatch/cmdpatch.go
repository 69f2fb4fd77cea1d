// Copyright 2026 The kpt Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package cmdpatch contains the patch command
package cmdpatch

import (
	"context"
	"os"

	"github.com/kptdev/srcimport/internal/errors"
	"github.com/kptdev/srcimport/internal/util/cmdutil"
	"github.com/kptdev/srcimport/pkg/printer"
	"github.com/spf13/cobra"
)

const (
	short = "Apply or unapply the patches of packages without fetching sources"
	long  = `
Makes the applied patches of the source directories of the packages declared
in the manifest, or only PKG... if given, match the declared patches. Source
directories that do not exist are skipped.

With --unapply, all applied patches are reverted instead.
`
	examples = `
  # reapply the patches after editing one of them
  $ srcimport patch tools/foo

  # revert the patches of all packages
  $ srcimport patch --unapply
`
)

// NewRunner returns a command runner.
func NewRunner(ctx context.Context, parent string, env *cmdutil.Env) *Runner {
	r := &Runner{
		ctx: ctx,
		env: env,
	}
	c := &cobra.Command{
		Use:     "patch [PKG...] [flags]",
		Short:   short,
		Long:    short + "\n" + long,
		Example: examples,
		RunE:    r.runE,
	}
	c.Flags().BoolVar(&r.unapply, "unapply", false,
		"unapply all applied patches.")
	cmdutil.FixDocs("srcimport", parent, c)
	r.Command = c
	return r
}

func NewCommand(ctx context.Context, parent string, env *cmdutil.Env) *cobra.Command {
	return NewRunner(ctx, parent, env).Command
}

// Runner contains the run function.
type Runner struct {
	ctx     context.Context
	env     *cmdutil.Env
	unapply bool
	Command *cobra.Command
}

func (r *Runner) runE(_ *cobra.Command, args []string) error {
	const op errors.Op = "cmdpatch.runE"
	_, _, entries, err := r.env.Load(args)
	if err != nil {
		return errors.E(op, err)
	}

	pr := printer.FromContextOrDie(r.ctx)
	for _, e := range entries {
		srcDir := e.Package.SrcDir()
		if _, err := os.Stat(srcDir); err != nil {
			if !os.IsNotExist(err) {
				return errors.E(op, e.Package.UniquePath, err)
			}
			pr.OptPrintf(printer.NewOpt().PkgDisplay(e.Package.DisplayPath), "not checked out, skipping\n")
			continue
		}

		desired := e.Importer.Patches
		if r.unapply {
			desired = nil
		}
		changed, err := e.Importer.PatchSet.Reconcile(r.ctx, e.Package, desired)
		if err != nil {
			return errors.E(op, e.Package.UniquePath, err)
		}
		if !changed {
			e.Package.Progress(r.ctx, "patches of %s up to date")
		}
	}
	return nil
}
