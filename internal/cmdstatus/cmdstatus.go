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

// Package cmdstatus contains the status command
package cmdstatus

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/kptdev/srcimport/internal/errors"
	"github.com/kptdev/srcimport/internal/importer"
	"github.com/kptdev/srcimport/internal/manifest"
	"github.com/kptdev/srcimport/internal/util/cmdutil"
	"github.com/kptdev/srcimport/pkg/printer"
	"github.com/spf13/cobra"
)

const (
	short = "Show the state of the source directories of packages"
	long  = `
Shows, for each package declared in the manifest or only PKG... if given,
whether its sources are checked out, how they compare with the upstream
source and how many of its patches are applied.

Comparing with the upstream source is only supported for git sources, and
contacts the upstream repository unless --only-local is set.
`
	examples = `
  # show the state of all packages
  $ srcimport status

  # show the state without contacting upstream repositories
  $ srcimport status --only-local
`
)

// NewRunner returns a command runner.
func NewRunner(ctx context.Context, parent string, env *cmdutil.Env) *Runner {
	r := &Runner{
		ctx: ctx,
		env: env,
	}
	c := &cobra.Command{
		Use:     "status [PKG...] [flags]",
		Short:   short,
		Long:    short + "\n" + long,
		Example: examples,
		RunE:    r.runE,
	}
	c.Flags().BoolVar(&r.onlyLocal, "only-local", false,
		"do not fetch from upstream, compare with the last fetched state only.")
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
	onlyLocal bool
	Command   *cobra.Command
}

// row is the status of one package.
type row struct {
	name     string
	source   string
	state    string
	patches  string
	local    int
	remote   int
	modified bool
}

func (r *Runner) runE(_ *cobra.Command, args []string) error {
	const op errors.Op = "cmdstatus.runE"
	pr := printer.FromContextOrDie(r.ctx)

	_, _, entries, err := r.env.Load(args)
	if err != nil {
		return errors.E(op, err)
	}

	var rows []row
	for _, e := range entries {
		rw, err := r.status(e)
		if err != nil {
			if r.ctx.Err() != nil {
				return errors.E(op, r.ctx.Err())
			}
			pr.Printf("[Warn] %s: %v\n", e.Package.Name(), err)
			rw.state = "unknown"
		}
		rows = append(rows, rw)
	}
	render(pr.OutStream(), rows)
	return nil
}

func (r *Runner) status(e manifest.Entry) (row, error) {
	rw := row{
		name:   e.Package.Name(),
		source: fmt.Sprintf("%s %s", e.Spec.Source.Type, e.Spec.Source.Location()),
	}
	if _, err := os.Stat(e.Package.SrcDir()); err != nil {
		if os.IsNotExist(err) {
			rw.state = "not checked out"
			rw.patches = fmt.Sprintf("0/%d", len(e.Importer.Patches))
			return rw, nil
		}
		return rw, err
	}
	rw.patches = patchState(e.Importer.PatchSet.Applied(e.Package), e.Importer.Patches)

	reporter, ok := e.Importer.Mechanism.(importer.StatusReporter)
	if !ok {
		rw.state = "-"
		return rw, nil
	}
	s, err := reporter.Status(r.ctx, e.Package, r.onlyLocal)
	if err != nil {
		return rw, err
	}
	rw.state = s.State.String()
	rw.local = len(s.LocalCommits)
	rw.remote = len(s.RemoteCommits)
	rw.modified = s.UncommittedCode
	return rw, nil
}

// patchState returns the number of applied patches over the number of
// declared ones, marking a record that differs from the declared patches.
func patchState(applied, declared []string) string {
	s := fmt.Sprintf("%d/%d", len(applied), len(declared))
	if len(applied) != len(declared) {
		return s
	}
	for i := range applied {
		if applied[i] != declared[i] {
			return s + " (outdated)"
		}
	}
	return s
}

func render(w io.Writer, rows []row) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"PACKAGE", "SOURCE", "STATE", "PATCHES", "LOCAL", "REMOTE", "MODIFIED"})
	for _, rw := range rows {
		t.AppendRow(table.Row{
			rw.name,
			rw.source,
			rw.state,
			rw.patches,
			rw.local,
			rw.remote,
			yesNo(rw.modified),
		})
	}
	t.Render()
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
