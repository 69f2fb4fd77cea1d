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

package oci_test

import (
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-containerregistry/pkg/crane"
	"github.com/google/go-containerregistry/pkg/name"
	"github.com/google/go-containerregistry/pkg/registry"
	"github.com/google/go-containerregistry/pkg/v1/remote"
	"github.com/kptdev/srcimport/internal/errors"
	"github.com/kptdev/srcimport/internal/mechanism/oci"
	"github.com/kptdev/srcimport/internal/patch"
	"github.com/kptdev/srcimport/internal/pkg"
	"github.com/kptdev/srcimport/internal/testutil"
	"github.com/kptdev/srcimport/internal/util/fetch"
	"github.com/kptdev/srcimport/pkg/printer/fake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pushImage pushes a single layer image with the given files and returns
// its digest.
func pushImage(t *testing.T, image string, files map[string][]byte) string {
	img, err := crane.Image(files)
	require.NoError(t, err)
	ref, err := name.ParseReference(image)
	require.NoError(t, err)
	require.NoError(t, remote.Write(ref, img))
	d, err := img.Digest()
	require.NoError(t, err)
	return d.String()
}

func setupRegistry(t *testing.T) string {
	s := httptest.NewServer(registry.New())
	t.Cleanup(s.Close)
	return strings.TrimPrefix(s.URL, "http://")
}

func TestNew(t *testing.T) {
	_, err := oci.New("")
	assert.True(t, errors.HasKind(err, errors.MissingParam))
}

func TestCheckoutAndUpdate(t *testing.T) {
	image := setupRegistry(t) + "/tools/foo:v1"
	d1 := pushImage(t, image, map[string][]byte{"VERSION": []byte("v1"), "src/main.c": []byte("int main;")})

	p, err := pkg.New("tools/foo", filepath.Join(t.TempDir(), "foo"))
	require.NoError(t, err)
	m, err := oci.New(image)
	require.NoError(t, err)
	ctx := fake.CtxWithDefaultPrinter()

	require.NoError(t, m.Checkout(ctx, p))
	assert.Equal(t, "v1", testutil.ReadFile(t, filepath.Join(p.SrcDir(), "VERSION")))
	assert.Equal(t, "int main;", testutil.ReadFile(t, filepath.Join(p.SrcDir(), "src", "main.c")))
	stamp, err := fetch.ReadStamp(p.SrcDir())
	require.NoError(t, err)
	assert.Equal(t, d1, stamp)

	// Same digest: the tree and its patch record are kept.
	require.NoError(t, patch.WriteRecord(p.SrcDir(), []string{"a.patch"}))
	require.NoError(t, m.Update(ctx, p))
	applied, err := patch.ReadRecord(p.SrcDir())
	require.NoError(t, err)
	assert.Equal(t, []string{"a.patch"}, applied)

	// New digest: the tree is replaced.
	d2 := pushImage(t, image, map[string][]byte{"VERSION": []byte("v2")})
	require.NoError(t, m.Update(ctx, p))
	assert.Equal(t, "v2", testutil.ReadFile(t, filepath.Join(p.SrcDir(), "VERSION")))
	testutil.AssertNotExist(t, filepath.Join(p.SrcDir(), "src"))
	applied, err = patch.ReadRecord(p.SrcDir())
	require.NoError(t, err)
	assert.Empty(t, applied)
	stamp, err = fetch.ReadStamp(p.SrcDir())
	require.NoError(t, err)
	assert.Equal(t, d2, stamp)
}

func TestCheckout_MissingImage(t *testing.T) {
	image := setupRegistry(t) + "/tools/missing:v1"
	p, err := pkg.New("tools/foo", filepath.Join(t.TempDir(), "foo"))
	require.NoError(t, err)
	m, err := oci.New(image)
	require.NoError(t, err)

	err = m.Checkout(fake.CtxWithDefaultPrinter(), p)
	require.Error(t, err)
	assert.True(t, errors.HasKind(err, errors.Retrieval))
	assert.True(t, errors.HasKind(err, errors.OCI))
	testutil.AssertNotExist(t, p.SrcDir())
}
