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

package pkg

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/kptdev/srcimport/pkg/printer/fake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	wd, err := os.Getwd()
	require.NoError(t, err)

	testCases := map[string]struct {
		name        string
		srcDir      string
		expectedDir string
		expectErr   bool
	}{
		"relative source directory": {
			name:        "tools/foo",
			srcDir:      "src/foo",
			expectedDir: filepath.Join(wd, "src", "foo"),
		},
		"absolute source directory": {
			name:        "tools/foo",
			srcDir:      "/tmp/src/../src/foo",
			expectedDir: "/tmp/src/foo",
		},
		"missing name": {
			srcDir:    "src/foo",
			expectErr: true,
		},
		"missing source directory": {
			name:      "tools/foo",
			expectErr: true,
		},
	}

	for tn, tc := range testCases {
		t.Run(tn, func(t *testing.T) {
			p, err := New(tc.name, tc.srcDir)
			if tc.expectErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.name, p.Name())
			assert.Equal(t, tc.expectedDir, p.SrcDir())
			assert.False(t, p.Updated())
		})
	}
}

func TestProgress(t *testing.T) {
	var out bytes.Buffer
	ctx := fake.CtxWithPrinter(&out, &out)
	p, err := New("tools/foo", t.TempDir())
	require.NoError(t, err)

	p.Progress(ctx, "checking out %s")

	assert.Equal(t, "  checking out tools/foo\n", out.String())
}

func TestIsolateErrors(t *testing.T) {
	boom := fmt.Errorf("boom")

	testCases := map[string]struct {
		ignoreErrors   bool
		markFailed     bool
		canceled       bool
		fnErr          error
		expectedErr    error
		expectedFailed bool
		expectedErrs   int
	}{
		"success": {
			ignoreErrors: true,
			markFailed:   true,
		},
		"failure is returned": {
			markFailed:     true,
			fnErr:          boom,
			expectedErr:    boom,
			expectedFailed: true,
		},
		"failure is returned without marking": {
			fnErr:       boom,
			expectedErr: boom,
		},
		"failure is recorded when errors are ignored": {
			ignoreErrors:   true,
			markFailed:     true,
			fnErr:          boom,
			expectedFailed: true,
			expectedErrs:   1,
		},
		"cancellation is never ignored": {
			ignoreErrors: true,
			canceled:     true,
			fnErr:        context.Canceled,
			expectedErr:  context.Canceled,
		},
	}

	for tn, tc := range testCases {
		t.Run(tn, func(t *testing.T) {
			ctx := fake.CtxWithDefaultPrinter()
			if tc.canceled {
				var cancel context.CancelFunc
				ctx, cancel = context.WithCancel(ctx)
				cancel()
			}
			p, err := New("tools/foo", t.TempDir())
			require.NoError(t, err)
			p.IgnoreErrors = tc.ignoreErrors

			err = p.IsolateErrors(ctx, tc.markFailed, func() error { return tc.fnErr })

			assert.Equal(t, tc.expectedErr, err)
			assert.Equal(t, tc.expectedFailed, p.Failed())
			assert.Len(t, p.Errors(), tc.expectedErrs)
		})
	}
}
