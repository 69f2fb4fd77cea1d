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

// Package patch keeps the local patches of a source tree in sync with the
// patches a package declares.
//
// The patches currently applied to a tree are listed, in application order,
// in a record file inside the tree. Reconciling always reverts every applied
// patch, last first, and then applies every desired patch in order. Patches
// are context sensitive, so keeping a common prefix and only touching the
// tail is not safe in general. The record is rewritten after every single
// apply or revert so it always matches the state of the tree, even when the
// process is interrupted half way.
package patch

import (
	"context"
	"fmt"

	"github.com/kptdev/srcimport/internal/errors"
	"github.com/kptdev/srcimport/internal/types"
	"k8s.io/klog/v2"
)

// Target is the package a patch set operates on.
type Target interface {
	// SrcDir is the absolute path of the source tree.
	SrcDir() string
	// Progress reports a phase change. format contains a single %s verb
	// which is replaced by the package name.
	Progress(ctx context.Context, format string)
}

// Set reconciles the applied patches of a source tree with a desired
// sequence of patches.
type Set struct {
	Applier Applier
}

// NewSet returns a Set using the given Applier.
func NewSet(a Applier) *Set {
	return &Set{Applier: a}
}

// Applied returns the patches currently applied to the tree of t, in
// application order. It never fails: an unreadable record is reported and
// treated as empty.
func (s *Set) Applied(t Target) []string {
	patches, err := ReadRecord(t.SrcDir())
	if err != nil {
		klog.Warningf("ignoring unreadable patch record: %v", err)
		return []string{}
	}
	return patches
}

// Reconcile reverts all applied patches and applies desired in order. It
// returns false without touching the tree when the applied patches already
// equal desired.
func (s *Set) Reconcile(ctx context.Context, t Target, desired []string) (bool, error) {
	const op errors.Op = "patch.Reconcile"
	current := s.Applied(t)
	if Equal(current, desired) {
		return false, nil
	}

	applyCount := len(Difference(desired, current))
	unapplyCount := len(Difference(current, desired))
	switch {
	case applyCount > 0 && unapplyCount > 0:
		t.Progress(ctx, fmt.Sprintf("patching %%s: applying %d and unapplying %d patch(es)", applyCount, unapplyCount))
	case applyCount > 0:
		t.Progress(ctx, fmt.Sprintf("patching %%s: applying %d patch(es)", applyCount))
	case unapplyCount == 0:
		t.Progress(ctx, fmt.Sprintf("patching %%s: reordering %d patch(es)", len(desired)))
	default:
		t.Progress(ctx, fmt.Sprintf("patching %%s: unapplying %d patch(es)", unapplyCount))
	}

	srcDir := t.SrcDir()
	for len(current) > 0 {
		last := current[len(current)-1]
		klog.V(3).Infof("unapplying %s in %s", last, srcDir)
		if err := s.Applier.Unapply(ctx, srcDir, last); err != nil {
			return true, wrap(op, srcDir, err)
		}
		current = current[:len(current)-1]
		if err := WriteRecord(srcDir, current); err != nil {
			return true, errors.E(op, types.UniquePath(srcDir), err)
		}
	}

	for _, p := range desired {
		klog.V(3).Infof("applying %s in %s", p, srcDir)
		if err := s.Applier.Apply(ctx, srcDir, p); err != nil {
			return true, wrap(op, srcDir, err)
		}
		current = append(current, p)
		if err := WriteRecord(srcDir, current); err != nil {
			return true, errors.E(op, types.UniquePath(srcDir), err)
		}
	}
	return true, nil
}

// DropExtraneous reverts the applied patches that are not part of desired,
// without applying the missing ones. Patches present in both are kept in
// their current order.
func (s *Set) DropExtraneous(ctx context.Context, t Target, desired []string) (bool, error) {
	current := s.Applied(t)
	kept := Intersect(current, desired)
	if Equal(kept, current) {
		return false, nil
	}
	return s.Reconcile(ctx, t, kept)
}

// wrap marks err as a patch failure unless it already is one.
func wrap(op errors.Op, srcDir string, err error) error {
	if errors.HasKind(err, errors.Patch) {
		return errors.E(op, types.UniquePath(srcDir), err)
	}
	return errors.E(op, errors.Patch, types.UniquePath(srcDir), err)
}

// Equal reports whether a and b contain the same patches in the same order.
func Equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Intersect returns the elements of a that are also in b, in the order of a.
func Intersect(a, b []string) []string {
	in := make(map[string]bool, len(b))
	for _, p := range b {
		in[p] = true
	}
	res := []string{}
	for _, p := range a {
		if in[p] {
			res = append(res, p)
		}
	}
	return res
}

// Difference returns the elements of a that are not in b, in the order of a.
func Difference(a, b []string) []string {
	in := make(map[string]bool, len(b))
	for _, p := range b {
		in[p] = true
	}
	res := []string{}
	for _, p := range a {
		if !in[p] {
			res = append(res, p)
		}
	}
	return res
}
