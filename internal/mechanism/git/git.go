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

// Package git retrieves source trees with the git executable.
package git

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kptdev/srcimport/internal/errors"
	"github.com/kptdev/srcimport/internal/gitutil"
	"github.com/kptdev/srcimport/internal/importer"
	"github.com/kptdev/srcimport/internal/types"
	"k8s.io/klog/v2"
)

type refKind int

const (
	branchRef refKind = iota
	tagRef
	commitRef
)

// target is a ref of the upstream repo resolved to its kind.
type target struct {
	kind refKind
	name string
}

// trackingRef is the local ref the fetched target is stored in.
func (t target) trackingRef() string {
	switch t.kind {
	case branchRef:
		return "refs/remotes/origin/" + t.name
	case tagRef:
		return "refs/tags/" + t.name
	}
	return t.name
}

// Mechanism checks out and updates a git repository.
type Mechanism struct {
	// Repo is the URL or path of the upstream repository.
	Repo string

	// Ref is a branch, tag, commit or semantic version constraint matched
	// against the tags. An empty ref is the default branch.
	Ref string
}

var _ importer.Mechanism = &Mechanism{}
var _ importer.StatusReporter = &Mechanism{}

// New returns a Mechanism for the given repository and ref.
func New(repo, ref string) (*Mechanism, error) {
	const op errors.Op = "git.New"
	if repo == "" {
		return nil, errors.E(op, errors.MissingParam, fmt.Errorf("git source requires a repository"))
	}
	return &Mechanism{Repo: repo, Ref: ref}, nil
}

func (m *Mechanism) String() string {
	if m.Ref == "" {
		return "git " + m.Repo
	}
	return fmt.Sprintf("git %s@%s", m.Repo, m.Ref)
}

// resolve lists the refs of the upstream repository to find out what Ref
// designates.
func (m *Mechanism) resolve(ctx context.Context) (target, error) {
	gur, err := gitutil.NewGitUpstreamRepo(ctx, m.Repo)
	if err != nil {
		return target{}, err
	}

	ref := m.Ref
	if ref == "" {
		b, err := gur.GetDefaultBranch(ctx)
		if err != nil {
			return target{}, err
		}
		return target{kind: branchRef, name: b}, nil
	}

	ref, _, err = gur.ResolveVersion(ref)
	if err != nil {
		return target{}, err
	}
	if _, found := gur.ResolveBranch(ref); found {
		return target{kind: branchRef, name: strings.TrimPrefix(ref, "refs/heads/")}, nil
	}
	if _, found := gur.ResolveTag(ref); found {
		return target{kind: tagRef, name: strings.TrimPrefix(ref, "refs/tags/")}, nil
	}
	klog.V(3).Infof("ref %q of %s is not a branch or tag, assuming a commit", ref, m.Repo)
	return target{kind: commitRef, name: ref}, nil
}

// Checkout clones the repository into the source directory of p.
func (m *Mechanism) Checkout(ctx context.Context, p importer.Package) error {
	const op errors.Op = "git.Checkout"
	srcDir := p.SrcDir()

	t, err := m.resolve(ctx)
	if err != nil {
		return m.retrievalError(op, srcDir, err)
	}

	parent := filepath.Dir(srcDir)
	if err := os.MkdirAll(parent, 0700); err != nil {
		return errors.E(op, types.UniquePath(srcDir), err)
	}
	gitRunner, err := gitutil.NewLocalGitRunner(parent)
	if err != nil {
		return m.retrievalError(op, srcDir, err)
	}

	args := []string{"clone", "--quiet"}
	if t.kind != commitRef {
		args = append(args, "--branch", t.name)
	}
	args = append(args, m.Repo, srcDir)
	if _, err := gitRunner.Run(ctx, args...); err != nil {
		return m.retrievalError(op, srcDir, err)
	}

	if t.kind == commitRef {
		gitRunner.Dir = srcDir
		if _, err := gitRunner.Run(ctx, "checkout", "--quiet", "--detach", t.name); err != nil {
			gitutil.AmendGitExecError(err, func(e *gitutil.GitExecError) {
				e.Ref = t.name
			})
			return m.retrievalError(op, srcDir, err)
		}
	}
	return nil
}

// fetch downloads the objects of t into the repository of srcDir.
func (m *Mechanism) fetch(ctx context.Context, gitRunner *gitutil.GitLocalRunner, t target) error {
	switch t.kind {
	case branchRef, tagRef:
		refspec := fmt.Sprintf("+%s:%s", strings.Replace(t.trackingRef(), "refs/remotes/origin/", "refs/heads/", 1), t.trackingRef())
		_, err := gitRunner.Run(ctx, "fetch", "--quiet", m.Repo, refspec)
		return err
	default:
		if _, err := gitRunner.Run(ctx, "cat-file", "-e", t.name+"^{commit}"); err == nil {
			return nil
		}
		_, err := gitRunner.Run(ctx, "fetch", "--quiet", "--tags", m.Repo)
		return err
	}
}

// Update fetches the ref from the repository and moves the checkout to it.
// Branches are fast-forwarded; local changes are kept when git can carry
// them over.
func (m *Mechanism) Update(ctx context.Context, p importer.Package) error {
	const op errors.Op = "git.Update"
	srcDir := p.SrcDir()

	t, err := m.resolve(ctx)
	if err != nil {
		return m.retrievalError(op, srcDir, err)
	}
	gitRunner, err := gitutil.NewLocalGitRunner(srcDir)
	if err != nil {
		return m.retrievalError(op, srcDir, err)
	}
	if err := m.fetch(ctx, gitRunner, t); err != nil {
		return m.retrievalError(op, srcDir, err)
	}

	if t.kind != branchRef {
		if _, err := gitRunner.Run(ctx, "checkout", "--quiet", "--detach", t.trackingRef()); err != nil {
			return m.retrievalError(op, srcDir, err)
		}
		return nil
	}

	current, err := currentBranch(ctx, gitRunner)
	if err != nil {
		return m.retrievalError(op, srcDir, err)
	}
	if current != t.name {
		klog.V(2).Infof("switching %s from %q to branch %s", srcDir, current, t.name)
		_, err = gitRunner.Run(ctx, "checkout", "--quiet", "-B", t.name, t.trackingRef())
	} else {
		_, err = gitRunner.Run(ctx, "merge", "--quiet", "--ff-only", t.trackingRef())
	}
	if err != nil {
		return m.retrievalError(op, srcDir, err)
	}
	return nil
}

// Status compares HEAD with the upstream ref. With onlyLocal, the
// repository is not fetched and the tracking ref of the current branch is
// used.
func (m *Mechanism) Status(ctx context.Context, p importer.Package, onlyLocal bool) (*importer.Status, error) {
	const op errors.Op = "git.Status"
	srcDir := p.SrcDir()

	gitRunner, err := gitutil.NewLocalGitRunner(srcDir)
	if err != nil {
		return nil, m.retrievalError(op, srcDir, err)
	}

	var remote string
	if onlyLocal {
		remote, err = localTrackingRef(ctx, gitRunner)
	} else {
		var t target
		if t, err = m.resolve(ctx); err == nil {
			if err = m.fetch(ctx, gitRunner, t); err == nil {
				remote = t.trackingRef()
			}
		}
	}
	if err != nil {
		return nil, m.retrievalError(op, srcDir, err)
	}

	s := &importer.Status{}
	rr, err := gitRunner.Run(ctx, "status", "--porcelain", "--untracked-files=no")
	if err != nil {
		return nil, errors.E(op, types.UniquePath(srcDir), err)
	}
	s.UncommittedCode = strings.TrimSpace(rr.Stdout) != ""

	if s.RemoteCommits, err = revList(ctx, gitRunner, "HEAD.."+remote); err != nil {
		return nil, errors.E(op, types.UniquePath(srcDir), err)
	}
	if s.LocalCommits, err = revList(ctx, gitRunner, remote+"..HEAD"); err != nil {
		return nil, errors.E(op, types.UniquePath(srcDir), err)
	}

	switch {
	case len(s.RemoteCommits) > 0 && len(s.LocalCommits) > 0:
		s.State = importer.NeedsMerge
	case len(s.RemoteCommits) > 0:
		s.State = importer.SimpleUpdate
	case len(s.LocalCommits) > 0:
		s.State = importer.Advanced
	default:
		s.State = importer.UpToDate
	}
	return s, nil
}

// retrievalError marks failures of git as declared retrieval failures so
// fallbacks can take over.
func (m *Mechanism) retrievalError(op errors.Op, srcDir string, err error) error {
	var gitErr *gitutil.GitExecError
	if errors.As(err, &gitErr) {
		if gitErr.Repo == "" {
			gitErr.Repo = m.Repo
		}
		return errors.E(op, errors.Retrieval, types.UniquePath(srcDir), errors.Repo(m.Repo), err)
	}
	return errors.E(op, types.UniquePath(srcDir), errors.Repo(m.Repo), err)
}

func currentBranch(ctx context.Context, gitRunner *gitutil.GitLocalRunner) (string, error) {
	rr, err := gitRunner.Run(ctx, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", err
	}
	b := strings.TrimSpace(rr.Stdout)
	if b == "HEAD" {
		return "", nil
	}
	return b, nil
}

func localTrackingRef(ctx context.Context, gitRunner *gitutil.GitLocalRunner) (string, error) {
	b, err := currentBranch(ctx, gitRunner)
	if err != nil || b == "" {
		return "HEAD", err
	}
	ref := "refs/remotes/origin/" + b
	if _, err := gitRunner.Run(ctx, "rev-parse", "--verify", "--quiet", ref); err != nil {
		return "HEAD", nil
	}
	return ref, nil
}

func revList(ctx context.Context, gitRunner *gitutil.GitLocalRunner, revRange string) ([]string, error) {
	rr, err := gitRunner.Run(ctx, "rev-list", "--oneline", revRange)
	if err != nil {
		return nil, err
	}
	var commits []string
	for _, l := range strings.Split(rr.Stdout, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			commits = append(commits, l)
		}
	}
	return commits, nil
}
