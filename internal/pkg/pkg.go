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

// Package pkg defines the concept of a package whose sources are imported.
package pkg

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/kptdev/srcimport/internal/errors"
	"github.com/kptdev/srcimport/internal/types"
	"github.com/kptdev/srcimport/pkg/printer"
	"k8s.io/klog/v2"
)

// Package is a named package owning one source directory on the local
// filesystem.
type Package struct {
	// UniquePath is the absolute path of the source directory. It does not
	// need to exist.
	UniquePath types.UniquePath

	// DisplayPath is the name of the package as shown to the user.
	DisplayPath types.DisplayPath

	// IgnoreErrors makes IsolateErrors swallow failures after recording
	// them, so a caller can move on to the next package.
	IgnoreErrors bool

	updated bool
	failed  bool
	errs    []error
}

// New returns a package with the given name whose source directory is
// srcDir. A relative srcDir is made absolute against the working directory.
func New(name, srcDir string) (*Package, error) {
	const op errors.Op = "pkg.New"
	if name == "" {
		return nil, errors.E(op, errors.MissingParam, "package name must not be empty")
	}
	if srcDir == "" {
		return nil, errors.E(op, errors.MissingParam, fmt.Errorf("package %q has no source directory", name))
	}
	abs, err := filepath.Abs(filepath.Clean(srcDir))
	if err != nil {
		return nil, errors.E(op, errors.InvalidParam, err)
	}
	return &Package{
		UniquePath:  types.UniquePath(abs),
		DisplayPath: types.DisplayPath(name),
	}, nil
}

// Name returns the name of the package.
func (p *Package) Name() string {
	return string(p.DisplayPath)
}

// SrcDir returns the absolute path of the source directory.
func (p *Package) SrcDir() string {
	return string(p.UniquePath)
}

// SetUpdated marks the package as (not) updated by the last import.
func (p *Package) SetUpdated(updated bool) {
	p.updated = updated
}

// Updated reports whether the last import changed the source tree.
func (p *Package) Updated() bool {
	return p.updated
}

// Failed reports whether a failure was recorded with IsolateErrors.
func (p *Package) Failed() bool {
	return p.failed
}

// Errors returns the failures swallowed by IsolateErrors.
func (p *Package) Errors() []error {
	return p.errs
}

// Progress prints a progress message. format has a single %s verb that is
// replaced with the package name.
func (p *Package) Progress(ctx context.Context, format string) {
	pr := printer.FromContextOrDie(ctx)
	pr.Printf("  "+format+"\n", p.Name())
}

// IsolateErrors runs fn. If fn fails and markFailed is set, the package is
// marked as failed. If the package ignores errors, the failure is recorded
// and reported instead of returned. Cancellation is always returned.
func (p *Package) IsolateErrors(ctx context.Context, markFailed bool, fn func() error) error {
	err := fn()
	if err == nil {
		return nil
	}
	if markFailed {
		p.failed = true
	}
	if !p.IgnoreErrors || ctx.Err() != nil {
		return err
	}
	klog.V(2).Infof("ignoring failure of %s: %v", p.Name(), err)
	p.errs = append(p.errs, err)
	printer.FromContextOrDie(ctx).Printf("[Warn] %s: %v\n", p.Name(), err)
	return nil
}
