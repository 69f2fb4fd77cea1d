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

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/kptdev/srcimport/internal/errors/resolver"
	"github.com/kptdev/srcimport/internal/util/cmdutil"
	"github.com/kptdev/srcimport/run"
	"github.com/spf13/cobra"
	"k8s.io/klog/v2"
)

func main() {
	os.Exit(runMain())
}

// runMain does the initial setup in order to run srcimport. The return value
// from this function will be the exit code when srcimport terminates.
func runMain() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	defer klog.Flush()

	cmd := run.GetMain(ctx)

	err := cmd.ExecuteContext(ctx)
	if err != nil {
		return handleErr(cmd, err)
	}
	return 0
}

// handleErr takes care of printing an error message for a given error.
func handleErr(cmd *cobra.Command, err error) int {
	// First attempt to see if we can resolve the error into a specific
	// error message.
	if re, resolved := resolver.ResolveError(err); resolved {
		if re.Message != "" {
			fmt.Fprintf(cmd.ErrOrStderr(), "%s \n", re.Message)
		}
		if cmdutil.PrintErrorStacktrace() {
			cmdutil.WriteStack(cmd.ErrOrStderr(), err)
		}
		return re.ExitCode
	}

	// Then fall back to the default behavior
	fmt.Fprintf(cmd.ErrOrStderr(), "Error: %s \n", err.Error())
	if cmdutil.PrintErrorStacktrace() {
		cmdutil.WriteStack(cmd.ErrOrStderr(), err)
	}
	return 1
}
