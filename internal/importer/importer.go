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

// Package importer retrieves the source tree of a package with a retrieval
// mechanism and keeps its local patches applied on top of it.
//
// Import checks the package out when its source directory is missing and
// updates it otherwise. Both paths reconcile the applied patches with the
// desired ones around the fetch. When a fetch fails with a declared
// retrieval failure, the fallback handlers of the importer's Registry get a
// chance to substitute another mechanism.
package importer

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/kptdev/srcimport/internal/errors"
	"github.com/kptdev/srcimport/internal/patch"
	"github.com/kptdev/srcimport/internal/types"
	"github.com/kptdev/srcimport/pkg/printer"
	"k8s.io/klog/v2"
)

// Package is the package an Importer works on.
type Package interface {
	patch.Target

	// Name is the name of the package.
	Name() string
	// SetUpdated records whether the import changed the source tree.
	SetUpdated(updated bool)
	// IsolateErrors runs fn in the error scope of the package.
	IsolateErrors(ctx context.Context, markFailed bool, fn func() error) error
}

// Mechanism retrieves source trees. Failures it expects, like an
// unreachable remote, must carry the errors.Retrieval kind; anything else is
// treated as a bug or environment problem.
type Mechanism interface {
	// Checkout creates the source directory of p and fetches the tree into it.
	Checkout(ctx context.Context, p Package) error
	// Update synchronizes the existing source directory of p with its origin.
	Update(ctx context.Context, p Package) error
}

// Policy holds the global settings the importer reads.
type Policy struct {
	// Update enables updates of existing source trees.
	Update bool
	// Verbose reports skipped updates.
	Verbose bool
}

// Importer imports the sources of packages with one Mechanism and applies
// Patches on top of them.
type Importer struct {
	Mechanism Mechanism

	// Patches is the desired patch sequence, in application order.
	Patches []string

	// PatchSet applies and reverts patches.
	PatchSet *patch.Set

	// Fallbacks are consulted when Mechanism fails. May be nil.
	Fallbacks *Registry

	Policy Policy
}

// New returns an Importer.
func New(m Mechanism, patches []string, s *patch.Set, fallbacks *Registry, policy Policy) *Importer {
	return &Importer{
		Mechanism: m,
		Patches:   patches,
		PatchSet:  s,
		Fallbacks: fallbacks,
		Policy:    policy,
	}
}

// Substitute returns an importer using m with the same patches, patch set
// and policy. The substitute has no fallbacks, so a fallback handler
// returning it can't trigger another round of fallbacks.
func (i *Importer) Substitute(m Mechanism) *Importer {
	return &Importer{
		Mechanism: m,
		Patches:   append([]string{}, i.Patches...),
		PatchSet:  i.PatchSet,
		Policy:    i.Policy,
	}
}

// Import checks out or updates the sources of p and applies the patches.
func (i *Importer) Import(ctx context.Context, p Package) error {
	const op errors.Op = "importer.Import"
	srcDir := p.SrcDir()

	fi, err := os.Stat(srcDir)
	switch {
	case err == nil && fi.IsDir():
		return p.IsolateErrors(ctx, false, func() error {
			if !i.Policy.Update {
				if i.Policy.Verbose {
					printer.FromContextOrDie(ctx).Printf("  not updating %s\n", p.Name())
				}
				return nil
			}
			return i.performUpdate(ctx, p)
		})
	case err == nil:
		return errors.E(op, errors.Config, types.UniquePath(srcDir),
			fmt.Errorf("%s exists but is not a directory", srcDir))
	case os.IsNotExist(err):
		return i.performCheckout(ctx, p)
	default:
		return errors.E(op, errors.Internal, types.UniquePath(srcDir), err)
	}
}

// update runs one update attempt: drop the patches that are not desired
// anymore, fetch, then reconcile with the desired patches.
func (i *Importer) update(ctx context.Context, p Package) error {
	if _, err := i.PatchSet.DropExtraneous(ctx, p, i.Patches); err != nil {
		return err
	}
	p.Progress(ctx, "updating %s")
	if err := i.Mechanism.Update(ctx, p); err != nil {
		return err
	}
	if _, err := i.PatchSet.Reconcile(ctx, p, i.Patches); err != nil {
		return err
	}
	p.SetUpdated(true)
	return nil
}

func (i *Importer) performUpdate(ctx context.Context, p Package) error {
	const op errors.Op = "importer.performUpdate"
	srcDir := types.UniquePath(p.SrcDir())

	originalErr := i.update(ctx, p)
	if originalErr == nil {
		return nil
	}
	if Interrupted(ctx, originalErr) {
		return originalErr
	}

	// The update may have failed because of the applied patches. If none is
	// applied, there is nothing to retry.
	if len(i.PatchSet.Applied(p)) == 0 {
		return i.fallback(ctx, errors.E(op, srcDir, originalErr), p, (*Importer).performUpdate)
	}

	p.Progress(ctx, "update of %s failed and some patches are applied, retrying after removing all patches first")
	if _, err := i.PatchSet.Reconcile(ctx, p, nil); err != nil {
		if Interrupted(ctx, err) {
			return err
		}
		// The failed update probably changed the tree so the patches can't
		// be reverted anymore. The update error says why.
		klog.V(2).Infof("unable to unpatch %s after failed update: %v", p.Name(), err)
		return errors.E(op, srcDir, originalErr)
	}

	if err := i.update(ctx, p); err != nil {
		if Interrupted(ctx, err) {
			return err
		}
		return i.fallback(ctx, errors.E(op, srcDir, err), p, (*Importer).performUpdate)
	}
	return nil
}

func (i *Importer) performCheckout(ctx context.Context, p Package) error {
	const op errors.Op = "importer.performCheckout"
	srcDir := p.SrcDir()

	err := func() error {
		p.Progress(ctx, "checking out %s")
		if err := i.Mechanism.Checkout(ctx, p); err != nil {
			return err
		}
		if _, err := i.PatchSet.Reconcile(ctx, p, i.Patches); err != nil {
			return err
		}
		p.SetUpdated(true)
		return nil
	}()
	if err == nil {
		return nil
	}

	if !Interrupted(ctx, err) && IsRetrievalFailure(err) {
		removeSrcDir(srcDir)
		return i.fallback(ctx, errors.E(op, types.UniquePath(srcDir), err), p, (*Importer).performCheckout)
	}

	p.Progress(ctx, "checkout of %s failed, deleting the source directory "+strings.ReplaceAll(srcDir, "%", "%%"))
	removeSrcDir(srcDir)
	return err
}

func (i *Importer) fallback(ctx context.Context, err error, p Package, retry func(*Importer, context.Context, Package) error) error {
	return i.Fallbacks.resolve(ctx, err, p, i, retry)
}

func removeSrcDir(srcDir string) {
	if err := os.RemoveAll(srcDir); err != nil {
		klog.Warningf("unable to delete source directory %s: %v", srcDir, err)
	}
}

// IsRetrievalFailure reports whether err is a failure a retrieval mechanism
// declared as expected, as opposed to a programming or environment error.
// Patch failures count as retrieval failures: a substitute mechanism may
// fetch a tree the patches apply to.
func IsRetrievalFailure(err error) bool {
	return errors.HasKind(err, errors.Retrieval) || errors.HasKind(err, errors.Patch)
}

// Interrupted reports whether err is, or happened because of, the
// cancellation of ctx.
func Interrupted(ctx context.Context, err error) bool {
	return ctx.Err() != nil ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}
