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

package patch

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/kptdev/srcimport/internal/errors"
	"k8s.io/klog/v2"
)

// ToolName is the name under which the patch tool is resolved.
const ToolName = "patch"

// ToolResolver returns the command line (executable followed by any fixed
// arguments) of the named external tool.
type ToolResolver func(name string) ([]string, error)

// Applier applies or reverts a single patch file against a source tree.
type Applier interface {
	Apply(ctx context.Context, dir, file string) error
	Unapply(ctx context.Context, dir, file string) error
}

// ExecApplier runs the external patch tool, one process per patch file.
type ExecApplier struct {
	// Tool is the resolved command line of the patch tool.
	Tool []string
}

var _ Applier = &ExecApplier{}

// NewExecApplier resolves the patch tool once and returns an applier that
// uses it for every call.
func NewExecApplier(resolve ToolResolver) (*ExecApplier, error) {
	const op errors.Op = "patch.NewExecApplier"
	tool, err := resolve(ToolName)
	if err != nil {
		return nil, errors.E(op, errors.Config, err)
	}
	if len(tool) == 0 {
		return nil, errors.E(op, errors.Config, fmt.Errorf("empty command line for tool %q", ToolName))
	}
	return &ExecApplier{Tool: tool}, nil
}

// Apply applies file to the tree rooted at dir.
func (a *ExecApplier) Apply(ctx context.Context, dir, file string) error {
	return a.run(ctx, dir, file, false)
}

// Unapply reverts file from the tree rooted at dir.
func (a *ExecApplier) Unapply(ctx context.Context, dir, file string) error {
	return a.run(ctx, dir, file, true)
}

func (a *ExecApplier) run(ctx context.Context, dir, file string, reverse bool) error {
	const op errors.Op = "patch.run"

	args := append([]string{}, a.Tool[1:]...)
	args = append(args, "-p0")
	if reverse {
		args = append(args, "-R")
	}
	args = append(args, "--forward")

	path := file
	if !filepath.IsAbs(path) {
		path = filepath.Join(dir, path)
	}
	in, err := os.Open(path)
	if err != nil {
		return errors.E(op, errors.Patch, &ExecError{
			Tool:       a.Tool[0],
			Args:       args,
			Patch:      file,
			Reverse:    reverse,
			ExitStatus: -1,
			Err:        err,
		})
	}
	defer in.Close()

	cmd := exec.CommandContext(ctx, a.Tool[0], args...)
	cmd.Dir = dir
	cmd.Env = os.Environ()
	cmd.Stdin = in

	cmdStdout := &bytes.Buffer{}
	cmdStderr := &bytes.Buffer{}
	cmd.Stdout = cmdStdout
	cmd.Stderr = cmdStderr

	klog.V(4).Infof("running %s %s in %s < %s", a.Tool[0], strings.Join(args, " "), dir, path)
	if err := cmd.Run(); err != nil {
		exitStatus := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitStatus = exitErr.ExitCode()
		}
		return errors.E(op, errors.Patch, &ExecError{
			Tool:       a.Tool[0],
			Args:       args,
			Patch:      file,
			Reverse:    reverse,
			ExitStatus: exitStatus,
			Err:        err,
			StdOut:     cmdStdout.String(),
			StdErr:     cmdStderr.String(),
		})
	}
	return nil
}

// ExecError is returned when the patch tool could not apply or revert a
// patch file.
type ExecError struct {
	Tool       string
	Args       []string
	Patch      string
	Reverse    bool
	ExitStatus int
	Err        error
	StdOut     string
	StdErr     string
}

func (e *ExecError) Error() string {
	b := new(strings.Builder)
	if e.Reverse {
		b.WriteString("failed to unapply ")
	} else {
		b.WriteString("failed to apply ")
	}
	b.WriteString(e.Patch)
	b.WriteString(": ")
	b.WriteString(e.Err.Error())
	if e.StdErr != "" {
		b.WriteString(": ")
		b.WriteString(strings.TrimSpace(e.StdErr))
	}
	return b.String()
}

func (e *ExecError) Unwrap() error {
	return e.Err
}

// Status returns the exit status of the patch tool, or -1 if it did not run.
func (e *ExecError) Status() int {
	return e.ExitStatus
}
