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

package cmdstatus_test

import (
	"bytes"
	"fmt"
	"io"
	"testing"

	"github.com/kptdev/srcimport/internal/cmdimport"
	"github.com/kptdev/srcimport/internal/cmdstatus"
	"github.com/kptdev/srcimport/internal/testutil"
	"github.com/kptdev/srcimport/internal/util/cmdutil"
	"github.com/kptdev/srcimport/pkg/printer/fake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEnv(w *testutil.Workspace) *cmdutil.Env {
	env := cmdutil.NewEnv()
	env.ConfigFile = w.Config
	env.ManifestFile = w.Manifest
	return env
}

func TestCmd_execute(t *testing.T) {
	testutil.RequireTool(t, "patch")
	g := testutil.SetupTestGitRepo(t, map[string]string{"README.md": "upstream\n"})
	w := testutil.SetupWorkspace(t,
		testutil.WorkspacePackage{
			Name:    "tools/hello",
			Files:   map[string]string{"hello.txt": "hello\n"},
			Patches: map[string]string{"hello.patch": testutil.HelloPatch},
		},
		testutil.WorkspacePackage{
			Name:   "tools/git",
			Source: fmt.Sprintf("{type: git, git: {repo: %q, ref: main}}", g.RepoDirectory),
		},
		testutil.WorkspacePackage{
			Name:   "tools/later",
			Source: "{type: oci, oci: {image: registry.example.com/later:v1}}",
		},
	)

	imp := cmdimport.NewRunner(fake.CtxWithDefaultPrinter(), "srcimport", newEnv(w))
	imp.Command.SetArgs([]string{"tools/hello", "tools/git"})
	require.NoError(t, imp.Command.Execute())

	out := &bytes.Buffer{}
	r := cmdstatus.NewRunner(fake.CtxWithPrinter(out, io.Discard), "srcimport", newEnv(w))
	r.Command.SetArgs([]string{"--only-local"})
	require.NoError(t, r.Command.Execute())

	assert.Contains(t, out.String(), "PACKAGE")
	assert.Regexp(t, `tools/hello.*dir .*upstream/tools/hello.*-.*1/1`, out.String())
	assert.Regexp(t, `tools/git.*git .*@main.*up-to-date.*0/0.*0.*0.*no`, out.String())
	assert.Regexp(t, `tools/later.*oci registry.example.com/later:v1.*not checked out.*0/0`, out.String())

	g.WriteFile(t, "README.md", "upstream v2\n")
	g.Commit(t, "second commit")

	out.Reset()
	r = cmdstatus.NewRunner(fake.CtxWithPrinter(out, io.Discard), "srcimport", newEnv(w))
	r.Command.SetArgs([]string{"tools/git"})
	require.NoError(t, r.Command.Execute())
	assert.Regexp(t, `tools/git.*simple update.*0/0.*0.*1.*no`, out.String())
	assert.NotContains(t, out.String(), "tools/hello")
}
