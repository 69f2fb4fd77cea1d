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

package manifest_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/kptdev/srcimport/internal/errors"
	"github.com/kptdev/srcimport/internal/importer"
	"github.com/kptdev/srcimport/internal/manifest"
	"github.com/kptdev/srcimport/internal/mechanism/archive"
	"github.com/kptdev/srcimport/internal/mechanism/dir"
	"github.com/kptdev/srcimport/internal/mechanism/git"
	"github.com/kptdev/srcimport/internal/mechanism/gogit"
	"github.com/kptdev/srcimport/internal/mechanism/oci"
	"github.com/kptdev/srcimport/internal/pkg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validManifest = `
packages:
- name: tools/foo
  srcdir: src/foo
  source:
    type: git
    git:
      repo: https://example.com/foo.git
      ref: main
  patches: patches/foo.patch
- name: tools/bar
  srcdir: /abs/bar
  source:
    type: archive
    archive:
      url: dist/bar.tar.gz
      stripComponents: 1
  patches:
  - patches/bar-1.patch
  - /abs/bar-2.patch
- name: tools/baz
  srcdir: src/baz
  source:
    type: oci
    oci:
      image: registry.example.com/baz:v1
- name: tools/qux
  srcdir: src/qux
  source:
    type: dir
    dir:
      path: ../vendor/qux
- name: tools/quux
  srcdir: src/quux
  source:
    type: gogit
    git:
      repo: https://example.com/quux.git
fallbacks:
- type: mirror
  prefix: https://example.com/
  replacement: https://mirror.local/
- type: gogit
`

func writeManifest(t *testing.T, content string) (string, string) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, manifest.DefaultFileName)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return dir, path
}

func TestLoad(t *testing.T) {
	dir, path := writeManifest(t, validManifest)

	m, err := manifest.Load(path)
	require.NoError(t, err)

	assert.Equal(t, path, m.File)
	expected := []manifest.PackageSpec{
		{
			Name:   "tools/foo",
			SrcDir: filepath.Join(dir, "src/foo"),
			Source: manifest.Source{
				Type: manifest.Git,
				Git:  &manifest.GitSource{Repo: "https://example.com/foo.git", Ref: "main"},
			},
			Patches: manifest.Patches{filepath.Join(dir, "patches/foo.patch")},
		},
		{
			Name:   "tools/bar",
			SrcDir: "/abs/bar",
			Source: manifest.Source{
				Type:    manifest.Archive,
				Archive: &manifest.ArchiveSource{URL: filepath.Join(dir, "dist/bar.tar.gz"), StripComponents: 1},
			},
			Patches: manifest.Patches{filepath.Join(dir, "patches/bar-1.patch"), "/abs/bar-2.patch"},
		},
		{
			Name:   "tools/baz",
			SrcDir: filepath.Join(dir, "src/baz"),
			Source: manifest.Source{
				Type: manifest.OCI,
				OCI:  &manifest.OCISource{Image: "registry.example.com/baz:v1"},
			},
		},
		{
			Name:   "tools/qux",
			SrcDir: filepath.Join(dir, "src/qux"),
			Source: manifest.Source{
				Type: manifest.Dir,
				Dir:  &manifest.DirSource{Path: filepath.Join(filepath.Dir(dir), "vendor/qux")},
			},
		},
		{
			Name:   "tools/quux",
			SrcDir: filepath.Join(dir, "src/quux"),
			Source: manifest.Source{
				Type: manifest.GoGit,
				Git:  &manifest.GitSource{Repo: "https://example.com/quux.git"},
			},
		},
	}
	if diff := cmp.Diff(expected, m.Packages); diff != "" {
		t.Errorf("packages (-want +got):\n%s", diff)
	}
	assert.Equal(t, []manifest.FallbackSpec{
		{Type: manifest.Mirror, Prefix: "https://example.com/", Replacement: "https://mirror.local/"},
		{Type: manifest.GoGitFallback},
	}, m.Fallbacks)
}

func TestLoad_Errors(t *testing.T) {
	testCases := map[string]struct {
		content            string
		expectedViolations []string
	}{
		"unknown field": {
			content: `
packages:
- name: foo
  srcdir: foo
  source:
    type: dir
    dir: {path: /foo}
  patchez: [a.patch]
`,
		},
		"patches is not a string or list": {
			content: `
packages:
- name: foo
  srcdir: foo
  source: {type: dir, dir: {path: /foo}}
  patches: {a: b}
`,
		},
		"no packages": {
			content:            "packages: []\n",
			expectedViolations: []string{"packages"},
		},
		"invalid packages": {
			content: `
packages:
- srcdir: foo
  source: {type: git}
- name: bar
  srcdir: foo
  source: {type: svn}
- name: bar
  source: {type: archive, archive: {url: a.tar, stripComponents: -1}}
  patches: [""]
`,
			expectedViolations: []string{
				"packages[0].name",
				"packages[0].source.git.repo",
				"packages[1].srcdir",
				"packages[1].source.type",
				"packages[2].name",
				"packages[2].srcdir",
				"packages[2].patches[0]",
				"packages[2].source.archive.stripComponents",
			},
		},
		"invalid fallbacks": {
			content: `
packages:
- name: foo
  srcdir: foo
  source: {type: oci, oci: {image: foo}}
fallbacks:
- type: mirror
  prefix: https://example.com/
- type: proxy
- {}
`,
			expectedViolations: []string{
				"fallbacks[0].replacement",
				"fallbacks[1].type",
				"fallbacks[2].type",
			},
		},
	}

	for tn, tc := range testCases {
		t.Run(tn, func(t *testing.T) {
			_, path := writeManifest(t, tc.content)

			_, err := manifest.Load(path)
			require.Error(t, err)
			assert.True(t, errors.HasKind(err, errors.Config))

			var validationErr *errors.ValidationError
			if tc.expectedViolations == nil {
				assert.False(t, errors.As(err, &validationErr))
				return
			}
			require.True(t, errors.As(err, &validationErr))
			assert.Equal(t, path, validationErr.File)
			assert.Equal(t, tc.expectedViolations, validationErr.Violations.Fields())
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := manifest.Load(filepath.Join(t.TempDir(), manifest.DefaultFileName))
	require.Error(t, err)
	assert.True(t, errors.HasKind(err, errors.Config))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestBuild(t *testing.T) {
	mdir, path := writeManifest(t, validManifest)
	m, err := manifest.Load(path)
	require.NoError(t, err)
	policy := importer.Policy{Update: true}

	entries, err := m.Build(nil, nil, policy)
	require.NoError(t, err)
	require.Len(t, entries, 5)

	assert.IsType(t, &git.Mechanism{}, entries[0].Importer.Mechanism)
	assert.IsType(t, &archive.Mechanism{}, entries[1].Importer.Mechanism)
	assert.IsType(t, &oci.Mechanism{}, entries[2].Importer.Mechanism)
	assert.IsType(t, &dir.Mechanism{}, entries[3].Importer.Mechanism)
	assert.IsType(t, &gogit.Mechanism{}, entries[4].Importer.Mechanism)

	first := entries[0]
	assert.Equal(t, "tools/foo", first.Package.Name())
	assert.Equal(t, filepath.Join(mdir, "src/foo"), first.Package.SrcDir())
	assert.Equal(t, []string{filepath.Join(mdir, "patches/foo.patch")}, first.Importer.Patches)
	assert.Equal(t, policy, first.Importer.Policy)
	assert.Equal(t, 2, first.Importer.Fallbacks.Len())
	for _, e := range entries[1:] {
		assert.Same(t, first.Importer.Fallbacks, e.Importer.Fallbacks)
	}

	entries, err = m.Build([]string{"tools/qux", "tools/foo"}, nil, policy)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Package.Name())
	}
	assert.Equal(t, []string{"tools/foo", "tools/qux"}, names)

	_, err = m.Build([]string{"tools/missing"}, nil, policy)
	require.Error(t, err)
	assert.True(t, errors.HasKind(err, errors.InvalidParam))
}

func TestMirrorHandler(t *testing.T) {
	h := manifest.MirrorHandler("https://example.com/", "https://mirror.local/")
	p, err := pkg.New("foo", t.TempDir())
	require.NoError(t, err)

	testCases := map[string]struct {
		mechanism importer.Mechanism
		expected  importer.Mechanism
	}{
		"git": {
			mechanism: &git.Mechanism{Repo: "https://example.com/foo.git", Ref: "v1"},
			expected:  &git.Mechanism{Repo: "https://mirror.local/foo.git", Ref: "v1"},
		},
		"gogit": {
			mechanism: &gogit.Mechanism{Repo: "https://example.com/foo.git"},
			expected:  &gogit.Mechanism{Repo: "https://mirror.local/foo.git"},
		},
		"archive": {
			mechanism: &archive.Mechanism{URL: "https://example.com/foo.tar.gz", StripComponents: 1},
			expected:  &archive.Mechanism{URL: "https://mirror.local/foo.tar.gz", StripComponents: 1},
		},
		"other location": {
			mechanism: &git.Mechanism{Repo: "https://other.com/foo.git"},
		},
		"unsupported mechanism": {
			mechanism: &oci.Mechanism{Image: "https://example.com/foo"},
		},
	}

	for tn, tc := range testCases {
		t.Run(tn, func(t *testing.T) {
			failing := importer.New(tc.mechanism, []string{"a.patch"}, nil, importer.NewRegistry(h), importer.Policy{Update: true})

			sub := h(p, failing)
			if tc.expected == nil {
				assert.Nil(t, sub)
				return
			}
			require.NotNil(t, sub)
			assert.Equal(t, tc.expected, sub.Mechanism)
			assert.Equal(t, failing.Patches, sub.Patches)
			assert.Equal(t, failing.Policy, sub.Policy)
			assert.Nil(t, sub.Fallbacks)
		})
	}
}

func TestGoGitHandler(t *testing.T) {
	h := manifest.GoGitHandler()
	p, err := pkg.New("foo", t.TempDir())
	require.NoError(t, err)

	sub := h(p, importer.New(&git.Mechanism{Repo: "https://example.com/foo.git", Ref: "main"}, nil, nil, nil, importer.Policy{}))
	require.NotNil(t, sub)
	assert.Equal(t, &gogit.Mechanism{Repo: "https://example.com/foo.git", Ref: "main"}, sub.Mechanism)

	assert.Nil(t, h(p, importer.New(&gogit.Mechanism{Repo: "https://example.com/foo.git"}, nil, nil, nil, importer.Policy{})))
}

func TestSourceTypes(t *testing.T) {
	assert.Equal(t, []string{"archive", "dir", "git", "gogit", "oci"}, manifest.SourceTypes())
}

func TestSource_Location(t *testing.T) {
	assert.Equal(t, "https://example.com/foo.git@v1", manifest.Source{
		Type: manifest.Git,
		Git:  &manifest.GitSource{Repo: "https://example.com/foo.git", Ref: "v1"},
	}.Location())
	assert.Equal(t, "registry.example.com/foo:v1", manifest.Source{
		Type: manifest.OCI,
		OCI:  &manifest.OCISource{Image: "registry.example.com/foo:v1"},
	}.Location())
	assert.Equal(t, "", manifest.Source{Type: manifest.Dir}.Location())
}
