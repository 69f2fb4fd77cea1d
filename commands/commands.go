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

// Package commands assembles the srcimport commands.
package commands

import (
	"context"
	"strings"

	"github.com/kptdev/srcimport/internal/cmdimport"
	"github.com/kptdev/srcimport/internal/cmdpatch"
	"github.com/kptdev/srcimport/internal/cmdstatus"
	"github.com/kptdev/srcimport/internal/cmdtree"
	"github.com/kptdev/srcimport/internal/util/cmdutil"
	"github.com/spf13/cobra"
)

// GetCommands returns the set of srcimport commands to be registered
func GetCommands(ctx context.Context, name string, env *cmdutil.Env) []*cobra.Command {
	c := []*cobra.Command{
		cmdimport.NewCommand(ctx, name, env),
		cmdpatch.NewCommand(ctx, name, env),
		cmdstatus.NewCommand(ctx, name, env),
		cmdtree.NewCommand(ctx, name, env),
	}

	// apply cross-cutting issues to commands
	NormalizeCommand(c...)
	return c
}

// NormalizeCommand will modify commands to be consistent, e.g. silencing errors
func NormalizeCommand(c ...*cobra.Command) {
	for i := range c {
		cmd := c[i]
		cmd.Short = strings.TrimPrefix(cmd.Short, "[Alpha] ")
		cmd.SilenceUsage = true
		NormalizeCommand(cmd.Commands()...)
	}
}
