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

// Package cmdtree contains the tree command
package cmdtree

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/kptdev/srcimport/internal/errors"
	"github.com/kptdev/srcimport/internal/manifest"
	"github.com/kptdev/srcimport/internal/util/cmdutil"
	"github.com/kptdev/srcimport/pkg/printer"
	"github.com/spf13/cobra"
	"github.com/xlab/treeprint"
)

const (
	short = "Display the packages of the manifest as a tree"
	long  = `
Displays the packages declared in the manifest as a tree, grouped by the
components of their names, with their source and the state of each of their
patches.
`
	examples = `
  $ srcimport tree
  srcimport.yaml
  └── tools
      ├── [git https://example.com/foo.git@main]  foo
      │   └── [applied]  foo-build.patch
      └── [dir /src/bar (not checked out)]  bar
`
)

// NewRunner returns a command runner.
func NewRunner(ctx context.Context, parent string, env *cmdutil.Env) *Runner {
	r := &Runner{
		ctx: ctx,
		env: env,
	}
	c := &cobra.Command{
		Use:     "tree [flags]",
		Short:   short,
		Long:    short + "\n" + long,
		Example: examples,
		Args:    cobra.NoArgs,
		RunE:    r.runE,
	}
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
	Command *cobra.Command
}

func (r *Runner) runE(_ *cobra.Command, _ []string) error {
	const op errors.Op = "cmdtree.runE"
	_, m, entries, err := r.env.Load(nil)
	if err != nil {
		return errors.E(op, err)
	}
	if err := write(printer.FromContextOrDie(r.ctx).OutStream(), filepath.Base(m.File), entries); err != nil {
		return errors.E(op, err)
	}
	return nil
}

func write(w io.Writer, root string, entries []manifest.Entry) error {
	tree := treeprint.New()
	tree.SetValue(root)
	treeIndex := map[string]treeprint.Tree{}

	for _, e := range entries {
		parts := strings.Split(e.Package.Name(), "/")
		parent := tree
		for i := range parts[:len(parts)-1] {
			key := strings.Join(parts[:i+1], "/")
			branch, found := treeIndex[key]
			if !found {
				branch = parent.AddBranch(parts[i])
				treeIndex[key] = branch
			}
			parent = branch
		}

		meta := string(e.Spec.Source.Type) + " " + e.Spec.Source.Location()
		if _, err := os.Stat(e.Package.SrcDir()); err != nil {
			meta += " (not checked out)"
			parent.AddMetaNode(meta, parts[len(parts)-1])
			continue
		}
		branch := parent.AddMetaBranch(meta, parts[len(parts)-1])
		treeIndex[e.Package.Name()] = branch

		applied := make(map[string]bool)
		for _, p := range e.Importer.PatchSet.Applied(e.Package) {
			applied[p] = true
		}
		for _, p := range e.Importer.Patches {
			state := "pending"
			if applied[p] {
				state = "applied"
			}
			branch.AddMetaNode(state, filepath.Base(p))
		}
	}

	_, err := io.WriteString(w, tree.String())
	return err
}
