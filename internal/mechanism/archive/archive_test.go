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

package archive_test

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"os"
	"path/filepath"
	"testing"

	"github.com/kptdev/srcimport/internal/errors"
	"github.com/kptdev/srcimport/internal/mechanism/archive"
	"github.com/kptdev/srcimport/internal/patch"
	"github.com/kptdev/srcimport/internal/pkg"
	"github.com/kptdev/srcimport/internal/testutil"
	"github.com/kptdev/srcimport/pkg/printer/fake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeTarball writes a tar.gz with all files under a foo-<version>/
// directory.
func writeTarball(t *testing.T, path, version string, files map[string]string) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	tw := tar.NewWriter(zw)
	for name, content := range files {
		require.NoError(t, tw.WriteHeader(&tar.Header{
			Name:     "foo-" + version + "/" + name,
			Mode:     0644,
			Size:     int64(len(content)),
			Typeflag: tar.TypeReg,
		}))
		_, err := tw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	require.NoError(t, zw.Close())
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0600))
}

func TestNew(t *testing.T) {
	testCases := map[string]struct {
		url             string
		stripComponents int
		expectedKind    errors.Kind
	}{
		"missing url":              {stripComponents: 1, expectedKind: errors.MissingParam},
		"negative stripComponents": {url: "foo.tar.gz", stripComponents: -1, expectedKind: errors.InvalidParam},
		"valid":                    {url: "foo.tar.gz", stripComponents: 1},
	}

	for tn, tc := range testCases {
		t.Run(tn, func(t *testing.T) {
			_, err := archive.New(tc.url, tc.stripComponents)
			if tc.expectedKind == errors.Other {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.HasKind(err, tc.expectedKind))
		})
	}
}

func TestCheckoutAndUpdate(t *testing.T) {
	tarball := filepath.Join(t.TempDir(), "foo.tar.gz")
	writeTarball(t, tarball, "1.0", map[string]string{"VERSION": "1.0", "README": "readme"})

	p, err := pkg.New("tools/foo", filepath.Join(t.TempDir(), "foo"))
	require.NoError(t, err)
	m, err := archive.New(tarball, 1)
	require.NoError(t, err)
	ctx := fake.CtxWithDefaultPrinter()

	require.NoError(t, m.Checkout(ctx, p))
	assert.Equal(t, "1.0", testutil.ReadFile(t, filepath.Join(p.SrcDir(), "VERSION")))

	require.NoError(t, patch.WriteRecord(p.SrcDir(), []string{"a.patch"}))
	require.NoError(t, m.Update(ctx, p))
	applied, err := patch.ReadRecord(p.SrcDir())
	require.NoError(t, err)
	assert.Equal(t, []string{"a.patch"}, applied, "unchanged archive keeps the tree")

	writeTarball(t, tarball, "2.0", map[string]string{"VERSION": "2.0"})
	require.NoError(t, m.Update(ctx, p))
	assert.Equal(t, "2.0", testutil.ReadFile(t, filepath.Join(p.SrcDir(), "VERSION")))
	testutil.AssertNotExist(t, filepath.Join(p.SrcDir(), "README"))
	applied, err = patch.ReadRecord(p.SrcDir())
	require.NoError(t, err)
	assert.Empty(t, applied)
}

func TestCheckout_Failure(t *testing.T) {
	dir := t.TempDir()
	corrupt := filepath.Join(dir, "corrupt.tar.gz")
	require.NoError(t, os.WriteFile(corrupt, []byte{0x1f, 0x8b, 0x00, 0x01}, 0600))

	testCases := map[string]string{
		"missing archive": filepath.Join(dir, "missing.tar.gz"),
		"corrupt archive": corrupt,
	}

	for tn, url := range testCases {
		t.Run(tn, func(t *testing.T) {
			p, err := pkg.New("tools/foo", filepath.Join(t.TempDir(), "foo"))
			require.NoError(t, err)
			m, err := archive.New(url, 0)
			require.NoError(t, err)

			err = m.Checkout(fake.CtxWithDefaultPrinter(), p)
			require.Error(t, err)
			assert.True(t, errors.HasKind(err, errors.Retrieval))
			testutil.AssertNotExist(t, p.SrcDir())
		})
	}
}
