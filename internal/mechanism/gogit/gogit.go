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

// Package gogit retrieves git repositories in process with go-git, without
// the git executable.
package gogit

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/cache"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"
	"github.com/go-git/go-git/v5/storage/filesystem"
	"github.com/go-git/go-git/v5/storage/memory"
	"github.com/kptdev/srcimport/internal/errors"
	"github.com/kptdev/srcimport/internal/gitutil"
	"github.com/kptdev/srcimport/internal/importer"
	"github.com/kptdev/srcimport/internal/types"
	"k8s.io/klog/v2"
)

// Mechanism checks out and updates a git repository with go-git.
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
	const op errors.Op = "gogit.New"
	if repo == "" {
		return nil, errors.E(op, errors.MissingParam, fmt.Errorf("git source requires a repository"))
	}
	return &Mechanism{Repo: repo, Ref: ref}, nil
}

func (m *Mechanism) String() string {
	if m.Ref == "" {
		return "gogit " + m.Repo
	}
	return fmt.Sprintf("gogit %s@%s", m.Repo, m.Ref)
}

// target is the resolved form of Ref. Exactly one of branch, tag and
// revision is set.
type target struct {
	branch   string
	tag      string
	revision string
}

func (t target) refSpec() config.RefSpec {
	switch {
	case t.branch != "":
		return config.RefSpec(fmt.Sprintf("+refs/heads/%s:refs/remotes/origin/%s", t.branch, t.branch))
	case t.tag != "":
		return config.RefSpec(fmt.Sprintf("+refs/tags/%s:refs/tags/%s", t.tag, t.tag))
	}
	return config.RefSpec("+refs/heads/*:refs/remotes/origin/*")
}

func (t target) revisionName() plumbing.Revision {
	switch {
	case t.branch != "":
		return plumbing.Revision(plumbing.NewRemoteReferenceName("origin", t.branch))
	case t.tag != "":
		return plumbing.Revision(plumbing.NewTagReferenceName(t.tag))
	}
	return plumbing.Revision(t.revision)
}

// listRefs lists the refs of the upstream repository without cloning it.
func (m *Mechanism) listRefs(ctx context.Context) (*gitutil.GitUpstreamRepo, string, error) {
	rem := git.NewRemote(memory.NewStorage(), &config.RemoteConfig{
		Name: "origin",
		URLs: []string{m.Repo},
	})
	refs, err := rem.ListContext(ctx, &git.ListOptions{})
	if err != nil {
		return nil, "", err
	}

	gur := &gitutil.GitUpstreamRepo{
		URI:   m.Repo,
		Heads: make(map[string]string),
		Tags:  make(map[string]string),
	}
	var head *plumbing.Reference
	for _, ref := range refs {
		switch {
		case ref.Name() == plumbing.HEAD:
			head = ref
		case ref.Name().IsBranch():
			gur.Heads[ref.Name().Short()] = ref.Hash().String()
		case ref.Name().IsTag():
			gur.Tags[ref.Name().Short()] = ref.Hash().String()
		}
	}
	return gur, defaultBranch(head, gur.Heads), nil
}

// defaultBranch finds the branch HEAD points to. Servers that don't
// advertise the symbolic ref only give the commit, which is matched against
// the branches.
func defaultBranch(head *plumbing.Reference, heads map[string]string) string {
	if head == nil {
		return ""
	}
	if head.Type() == plumbing.SymbolicReference {
		return head.Target().Short()
	}
	var candidates []string
	for name, hash := range heads {
		if hash == head.Hash().String() {
			candidates = append(candidates, name)
		}
	}
	sort.Strings(candidates)
	for _, preferred := range []string{"main", "master"} {
		for _, c := range candidates {
			if c == preferred {
				return c
			}
		}
	}
	if len(candidates) > 0 {
		return candidates[0]
	}
	return ""
}

func (m *Mechanism) resolve(ctx context.Context) (target, error) {
	gur, defaultBranch, err := m.listRefs(ctx)
	if err != nil {
		return target{}, err
	}
	if m.Ref == "" {
		if defaultBranch == "" {
			return target{}, fmt.Errorf("unable to detect default branch in repo")
		}
		return target{branch: defaultBranch}, nil
	}

	ref, _, err := gur.ResolveVersion(m.Ref)
	if err != nil {
		return target{}, err
	}
	if _, found := gur.ResolveBranch(ref); found {
		return target{branch: strings.TrimPrefix(ref, "refs/heads/")}, nil
	}
	if _, found := gur.ResolveTag(ref); found {
		return target{tag: strings.TrimPrefix(ref, "refs/tags/")}, nil
	}
	return target{revision: ref}, nil
}

// Checkout clones the repository into the source directory of p.
func (m *Mechanism) Checkout(ctx context.Context, p importer.Package) error {
	const op errors.Op = "gogit.Checkout"
	srcDir := p.SrcDir()

	t, err := m.resolve(ctx)
	if err != nil {
		return m.retrievalError(ctx, op, srcDir, err)
	}

	fs := osfs.New(srcDir)
	dotGit, err := fs.Chroot(git.GitDirName)
	if err != nil {
		return errors.E(op, types.UniquePath(srcDir), err)
	}
	storage := filesystem.NewStorage(dotGit, cache.NewObjectLRUDefault())

	opts := &git.CloneOptions{
		URL:  m.Repo,
		Tags: git.AllTags,
	}
	switch {
	case t.branch != "":
		opts.ReferenceName = plumbing.NewBranchReferenceName(t.branch)
	case t.tag != "":
		opts.ReferenceName = plumbing.NewTagReferenceName(t.tag)
	}

	repo, err := git.CloneContext(ctx, storage, fs, opts)
	if err != nil {
		return m.retrievalError(ctx, op, srcDir, err)
	}
	if t.revision == "" {
		return nil
	}

	hash, err := repo.ResolveRevision(plumbing.Revision(t.revision))
	if err != nil {
		return m.retrievalError(ctx, op, srcDir, fmt.Errorf("unable to resolve %q: %w", t.revision, err))
	}
	w, err := repo.Worktree()
	if err != nil {
		return errors.E(op, types.UniquePath(srcDir), err)
	}
	if err := w.Checkout(&git.CheckoutOptions{Hash: *hash}); err != nil {
		return m.retrievalError(ctx, op, srcDir, err)
	}
	return nil
}

// fetch downloads t from the repository, whatever the URL of the origin
// remote of the checkout is.
func (m *Mechanism) fetch(ctx context.Context, repo *git.Repository, t target) (*plumbing.Hash, error) {
	err := repo.FetchContext(ctx, &git.FetchOptions{
		RemoteName: "origin",
		RemoteURL:  m.Repo,
		RefSpecs:   []config.RefSpec{t.refSpec()},
		Tags:       git.AllTags,
		Force:      true,
	})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return nil, err
	}
	hash, err := repo.ResolveRevision(t.revisionName())
	if err != nil {
		return nil, fmt.Errorf("unable to resolve %q: %w", t.revisionName(), err)
	}
	return hash, nil
}

// Update fetches the ref and moves the checkout to it. Branches are only
// fast-forwarded. The worktree must not have changes to tracked files.
func (m *Mechanism) Update(ctx context.Context, p importer.Package) error {
	const op errors.Op = "gogit.Update"
	srcDir := p.SrcDir()

	repo, err := git.PlainOpen(srcDir)
	if err != nil {
		return errors.E(op, types.UniquePath(srcDir), err)
	}
	t, err := m.resolve(ctx)
	if err != nil {
		return m.retrievalError(ctx, op, srcDir, err)
	}
	hash, err := m.fetch(ctx, repo, t)
	if err != nil {
		return m.retrievalError(ctx, op, srcDir, err)
	}
	w, err := repo.Worktree()
	if err != nil {
		return errors.E(op, types.UniquePath(srcDir), err)
	}

	if t.branch == "" {
		if err := w.Checkout(&git.CheckoutOptions{Hash: *hash}); err != nil {
			return m.retrievalError(ctx, op, srcDir, err)
		}
		return nil
	}

	branch := plumbing.NewBranchReferenceName(t.branch)
	head, err := repo.Head()
	if err != nil {
		return errors.E(op, types.UniquePath(srcDir), err)
	}
	if head.Name() == branch {
		if head.Hash() == *hash {
			return nil
		}
		ff, err := isAncestor(repo, head.Hash(), *hash)
		if err != nil {
			return errors.E(op, types.UniquePath(srcDir), err)
		}
		if !ff {
			return m.retrievalError(ctx, op, srcDir, git.ErrNonFastForwardUpdate)
		}
	} else {
		klog.V(2).Infof("switching %s from %s to branch %s", srcDir, head.Name().Short(), t.branch)
	}

	// Check the commit out detached first so a failure leaves the branch
	// untouched.
	if err := w.Checkout(&git.CheckoutOptions{Hash: *hash}); err != nil {
		return m.retrievalError(ctx, op, srcDir, err)
	}
	if err := repo.Storer.SetReference(plumbing.NewHashReference(branch, *hash)); err != nil {
		return errors.E(op, types.UniquePath(srcDir), err)
	}
	if err := repo.Storer.SetReference(plumbing.NewSymbolicReference(plumbing.HEAD, branch)); err != nil {
		return errors.E(op, types.UniquePath(srcDir), err)
	}
	return nil
}

// Status compares HEAD with the upstream ref. With onlyLocal, nothing is
// fetched and HEAD is compared with the remote tracking branch of the
// current branch, if any.
func (m *Mechanism) Status(ctx context.Context, p importer.Package, onlyLocal bool) (*importer.Status, error) {
	const op errors.Op = "gogit.Status"
	srcDir := p.SrcDir()

	repo, err := git.PlainOpen(srcDir)
	if err != nil {
		return nil, errors.E(op, types.UniquePath(srcDir), err)
	}
	head, err := repo.Head()
	if err != nil {
		return nil, errors.E(op, types.UniquePath(srcDir), err)
	}

	remote := head.Hash()
	if onlyLocal {
		if head.Name().IsBranch() {
			ref, err := repo.Reference(plumbing.NewRemoteReferenceName("origin", head.Name().Short()), true)
			if err == nil {
				remote = ref.Hash()
			}
		}
	} else {
		t, err := m.resolve(ctx)
		if err != nil {
			return nil, m.retrievalError(ctx, op, srcDir, err)
		}
		hash, err := m.fetch(ctx, repo, t)
		if err != nil {
			return nil, m.retrievalError(ctx, op, srcDir, err)
		}
		remote = *hash
	}

	s := &importer.Status{}
	if s.UncommittedCode, err = hasUncommittedChanges(repo); err != nil {
		return nil, errors.E(op, types.UniquePath(srcDir), err)
	}
	if s.RemoteCommits, err = commitsNotIn(repo, remote, head.Hash()); err != nil {
		return nil, errors.E(op, types.UniquePath(srcDir), err)
	}
	if s.LocalCommits, err = commitsNotIn(repo, head.Hash(), remote); err != nil {
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

func (m *Mechanism) retrievalError(ctx context.Context, op errors.Op, srcDir string, err error) error {
	if ctx.Err() != nil {
		return errors.E(op, types.UniquePath(srcDir), ctx.Err())
	}
	return errors.E(op, errors.Retrieval, types.UniquePath(srcDir), errors.Repo(m.Repo), err)
}

func isAncestor(repo *git.Repository, ancestor, descendant plumbing.Hash) (bool, error) {
	a, err := repo.CommitObject(ancestor)
	if err != nil {
		return false, err
	}
	d, err := repo.CommitObject(descendant)
	if err != nil {
		return false, err
	}
	return a.IsAncestor(d)
}

// commitsNotIn returns the commits reachable from from but not from
// exclude, newest first, in "<short hash> <subject>" form.
func commitsNotIn(repo *git.Repository, from, exclude plumbing.Hash) ([]string, error) {
	if from == exclude {
		return nil, nil
	}
	excluded := map[plumbing.Hash]bool{}
	iter, err := repo.Log(&git.LogOptions{From: exclude})
	if err != nil {
		return nil, err
	}
	if err := iter.ForEach(func(c *object.Commit) error {
		excluded[c.Hash] = true
		return nil
	}); err != nil {
		return nil, err
	}

	iter, err = repo.Log(&git.LogOptions{From: from})
	if err != nil {
		return nil, err
	}
	var commits []string
	err = iter.ForEach(func(c *object.Commit) error {
		if excluded[c.Hash] {
			return storer.ErrStop
		}
		subject, _, _ := strings.Cut(c.Message, "\n")
		commits = append(commits, fmt.Sprintf("%s %s", c.Hash.String()[:7], subject))
		return nil
	})
	return commits, err
}

func hasUncommittedChanges(repo *git.Repository) (bool, error) {
	w, err := repo.Worktree()
	if err != nil {
		return false, err
	}
	status, err := w.Status()
	if err != nil {
		return false, err
	}
	for _, s := range status {
		if s.Worktree == git.Untracked {
			continue
		}
		if s.Worktree != git.Unmodified || s.Staging != git.Unmodified {
			return true, nil
		}
	}
	return false, nil
}
