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

// Package cmdimport contains the import command
package cmdimport

import (
	"context"
	"fmt"

	"github.com/kptdev/srcimport/internal/config"
	"github.com/kptdev/srcimport/internal/errors"
	"github.com/kptdev/srcimport/internal/manifest"
	"github.com/kptdev/srcimport/internal/util/cmdutil"
	"github.com/kptdev/srcimport/pkg/printer"
	"github.com/spf13/cobra"
)

const (
	short = "Check out or update the sources of packages and apply their patches"
	long  = `
Imports the packages declared in the manifest, or only PKG... if given, one
after the other in manifest order.

Missing source directories are checked out. Existing ones are updated unless
updates are disabled. The declared patches are then applied, unapplying and
reapplying them as needed so the applied patches always match the manifest.
When a source fails, the fallbacks of the manifest are tried.
`
	examples = `
  # import all packages of srcimport.yaml
  $ srcimport import

  # check out missing packages without updating the others
  $ srcimport import --no-update

  # import two packages and keep going when one of them fails
  $ srcimport import --keep-going tools/foo tools/bar
`
)

// NewRunner returns a command runner.
func NewRunner(ctx context.Context, parent string, env *cmdutil.Env) *Runner {
	r := &Runner{
		ctx: ctx,
		env: env,
	}
	c := &cobra.Command{
		Use:     "import [PKG...] [flags]",
		Short:   short,
		Long:    short + "\n" + long,
		Example: examples,
		PreRunE: r.preRunE,
		RunE:    r.runE,
	}

	c.Flags().BoolVar(&r.noUpdate, "no-update", false,
		"do not update source directories that already exist.")
	c.Flags().BoolVar(&r.verbose, "verbose", false,
		"report packages that are not updated.")
	c.Flags().BoolVar(&r.keepGoing, "keep-going", false,
		"import the remaining packages when a package fails, and report the failures at the end.")
	cmdutil.FixDocs("srcimport", parent, c)
	r.Command = c
	return r
}

func NewCommand(ctx context.Context, parent string, env *cmdutil.Env) *cobra.Command {
	return NewRunner(ctx, parent, env).Command
}

// Runner contains the run function.
type Runner struct {
	ctx       context.Context
	env       *cmdutil.Env
	noUpdate  bool
	verbose   bool
	keepGoing bool
	Command   *cobra.Command

	// Entries are the imported packages, available after the command ran.
	Entries []manifest.Entry
}

func (r *Runner) preRunE(c *cobra.Command, _ []string) error {
	const op errors.Op = "cmdimport.preRunE"
	if err := r.env.BindFlag(config.KeyVerbose, c.Flags().Lookup("verbose")); err != nil {
		return errors.E(op, err)
	}
	if err := r.env.BindFlag(config.KeyKeepGoing, c.Flags().Lookup("keep-going")); err != nil {
		return errors.E(op, err)
	}
	if r.noUpdate {
		r.env.Viper.Set(config.KeyUpdate, false)
	}
	return nil
}

func (r *Runner) runE(_ *cobra.Command, args []string) error {
	const op errors.Op = "cmdimport.runE"
	pr := printer.FromContextOrDie(r.ctx)

	cfg, _, entries, err := r.env.Load(args)
	if err != nil {
		return errors.E(op, err)
	}
	r.Entries = entries

	for i, e := range entries {
		e.Package.IgnoreErrors = cfg.KeepGoing
		pr.PrintPackage(e.Package.DisplayPath, i > 0)
		err := e.Package.IsolateErrors(r.ctx, true, func() error {
			return e.Importer.Import(r.ctx, e.Package)
		})
		if err != nil {
			return errors.E(op, e.Package.UniquePath, err)
		}
		if r.ctx.Err() != nil {
			return errors.E(op, r.ctx.Err())
		}
	}
	return summarize(pr, entries)
}

// summarize prints which packages were imported and returns an error if any
// of them failed.
func summarize(pr printer.Printer, entries []manifest.Entry) error {
	const op errors.Op = "cmdimport.summarize"
	var updated, unchanged, failed int
	for _, e := range entries {
		switch {
		case e.Package.Failed() || len(e.Package.Errors()) > 0:
			failed++
		case e.Package.Updated():
			updated++
		default:
			unchanged++
		}
	}
	pr.Printf("\n%d package(s) imported, %d unchanged, %d failed\n", updated, unchanged, failed)
	if failed == 0 {
		return nil
	}
	for _, e := range entries {
		opt := printer.NewOpt().PkgDisplay(e.Package.DisplayPath)
		for _, err := range e.Package.Errors() {
			pr.OptPrintf(opt, "%v\n", err)
		}
	}
	return errors.E(op, fmt.Errorf("%d package(s) failed to import", failed))
}
