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

package gogit_test

import (
	"path/filepath"
	"testing"

	"github.com/kptdev/srcimport/internal/errors"
	"github.com/kptdev/srcimport/internal/importer"
	"github.com/kptdev/srcimport/internal/mechanism/gogit"
	"github.com/kptdev/srcimport/internal/pkg"
	"github.com/kptdev/srcimport/internal/testutil"
	"github.com/kptdev/srcimport/pkg/printer/fake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPackage(t *testing.T) *pkg.Package {
	p, err := pkg.New("tools/foo", filepath.Join(t.TempDir(), "foo"))
	require.NoError(t, err)
	return p
}

func setupUpstream(t *testing.T) *testutil.TestGitRepo {
	g := testutil.SetupTestGitRepo(t, map[string]string{"VERSION": "v1"})
	g.Git(t, "tag", "v1.0.0")
	g.WriteFile(t, "VERSION", "v2")
	g.Commit(t, "v2")
	return g
}

func TestNew(t *testing.T) {
	_, err := gogit.New("", "")
	assert.True(t, errors.HasKind(err, errors.MissingParam))

	m, err := gogit.New("https://example.com/foo.git", "v1")
	require.NoError(t, err)
	assert.Equal(t, "gogit https://example.com/foo.git@v1", m.String())
}

func TestCheckout(t *testing.T) {
	testCases := map[string]struct {
		ref             func(t *testing.T, g *testutil.TestGitRepo) string
		expectedContent string
	}{
		"default branch": {
			ref:             func(*testing.T, *testutil.TestGitRepo) string { return "" },
			expectedContent: "v2",
		},
		"branch": {
			ref:             func(*testing.T, *testutil.TestGitRepo) string { return "main" },
			expectedContent: "v2",
		},
		"tag": {
			ref:             func(*testing.T, *testutil.TestGitRepo) string { return "v1.0.0" },
			expectedContent: "v1",
		},
		"version constraint": {
			ref:             func(*testing.T, *testutil.TestGitRepo) string { return "~1.0" },
			expectedContent: "v1",
		},
		"commit": {
			ref: func(t *testing.T, g *testutil.TestGitRepo) string {
				return g.Git(t, "rev-parse", "v1.0.0")
			},
			expectedContent: "v1",
		},
	}

	for tn, tc := range testCases {
		t.Run(tn, func(t *testing.T) {
			g := setupUpstream(t)
			p := newPackage(t)
			m, err := gogit.New(g.RepoDirectory, tc.ref(t, g))
			require.NoError(t, err)

			require.NoError(t, m.Checkout(fake.CtxWithDefaultPrinter(), p))
			assert.Equal(t, tc.expectedContent, testutil.ReadFile(t, filepath.Join(p.SrcDir(), "VERSION")))
		})
	}
}

func TestCheckout_MissingRepository(t *testing.T) {
	p := newPackage(t)
	m, err := gogit.New(filepath.Join(t.TempDir(), "nope"), "")
	require.NoError(t, err)

	err = m.Checkout(fake.CtxWithDefaultPrinter(), p)
	require.Error(t, err)
	assert.True(t, errors.HasKind(err, errors.Retrieval))
}

func TestUpdate(t *testing.T) {
	g := setupUpstream(t)
	p := newPackage(t)
	m, err := gogit.New(g.RepoDirectory, "main")
	require.NoError(t, err)
	ctx := fake.CtxWithDefaultPrinter()
	require.NoError(t, m.Checkout(ctx, p))

	g.WriteFile(t, "VERSION", "v3")
	g.Commit(t, "v3")

	require.NoError(t, m.Update(ctx, p))
	assert.Equal(t, "v3", testutil.ReadFile(t, filepath.Join(p.SrcDir(), "VERSION")))

	// Nothing to fetch.
	require.NoError(t, m.Update(ctx, p))

	m.Ref = "v1.0.0"
	require.NoError(t, m.Update(ctx, p))
	assert.Equal(t, "v1", testutil.ReadFile(t, filepath.Join(p.SrcDir(), "VERSION")))

	m.Ref = "main"
	require.NoError(t, m.Update(ctx, p))
	assert.Equal(t, "v3", testutil.ReadFile(t, filepath.Join(p.SrcDir(), "VERSION")))
}

func TestUpdate_LocalChanges(t *testing.T) {
	g := setupUpstream(t)
	p := newPackage(t)
	m, err := gogit.New(g.RepoDirectory, "main")
	require.NoError(t, err)
	ctx := fake.CtxWithDefaultPrinter()
	require.NoError(t, m.Checkout(ctx, p))

	g.WriteFile(t, "VERSION", "v3")
	g.Commit(t, "v3")
	testutil.WriteFile(t, filepath.Join(p.SrcDir(), "VERSION"), "patched")

	err = m.Update(ctx, p)
	require.Error(t, err)
	assert.True(t, importer.IsRetrievalFailure(err))
	assert.Equal(t, "patched", testutil.ReadFile(t, filepath.Join(p.SrcDir(), "VERSION")))
}

func TestStatus(t *testing.T) {
	g := setupUpstream(t)
	p := newPackage(t)
	m, err := gogit.New(g.RepoDirectory, "main")
	require.NoError(t, err)
	ctx := fake.CtxWithDefaultPrinter()
	require.NoError(t, m.Checkout(ctx, p))

	s, err := m.Status(ctx, p, false)
	require.NoError(t, err)
	assert.Equal(t, importer.UpToDate, s.State)
	assert.False(t, s.UncommittedCode)

	g.WriteFile(t, "VERSION", "v3")
	g.Commit(t, "upstream change")

	s, err = m.Status(ctx, p, true)
	require.NoError(t, err)
	assert.Equal(t, importer.UpToDate, s.State)

	s, err = m.Status(ctx, p, false)
	require.NoError(t, err)
	assert.Equal(t, importer.SimpleUpdate, s.State)
	require.Len(t, s.RemoteCommits, 1)
	assert.Contains(t, s.RemoteCommits[0], "upstream change")

	testutil.WriteFile(t, filepath.Join(p.SrcDir(), "VERSION"), "patched")
	s, err = m.Status(ctx, p, true)
	require.NoError(t, err)
	assert.True(t, s.UncommittedCode)
}
