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

package testutil

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	assertnow "gotest.tools/assert"
)

const TmpDirPrefix = "test-srcimport"

var AssertNoError = assertnow.NilError

// RequireTool skips the test if the named executable is not on the PATH.
func RequireTool(t *testing.T, name string) string {
	p, err := exec.LookPath(name)
	if err != nil {
		t.Skipf("%s is not installed: %v", name, err)
	}
	return p
}

// TestGitRepo manages a local git repository used as an upstream in tests.
type TestGitRepo struct {
	// RepoDirectory is the temp directory of the git repo
	RepoDirectory string
}

// SetupTestGitRepo initializes a new git repository on branch main with one
// commit containing the given files.
func SetupTestGitRepo(t *testing.T, files map[string]string) *TestGitRepo {
	RequireTool(t, "git")
	g := &TestGitRepo{RepoDirectory: t.TempDir()}
	g.Git(t, "init", "--initial-branch=main")
	for name, content := range files {
		g.WriteFile(t, name, content)
	}
	g.Commit(t, "initial commit")
	return g
}

// Git runs a git command in the repo and returns its trimmed stdout.
func (g *TestGitRepo) Git(t *testing.T, args ...string) string {
	return RunGit(t, g.RepoDirectory, args...)
}

// WriteFile writes a file relative to the repo root.
func (g *TestGitRepo) WriteFile(t *testing.T, name, content string) {
	WriteFile(t, filepath.Join(g.RepoDirectory, name), content)
}

// Commit stages all changes and commits them.
func (g *TestGitRepo) Commit(t *testing.T, message string) {
	g.Git(t, "add", "--all")
	g.Git(t, "commit", "--allow-empty", "-m", message)
}

// CommitTag commits all changes and tags the commit.
func (g *TestGitRepo) CommitTag(t *testing.T, tag string) {
	g.Commit(t, tag)
	g.Git(t, "tag", tag)
}

// GetCommit returns the commit HEAD points to.
func (g *TestGitRepo) GetCommit(t *testing.T) string {
	return g.Git(t, "rev-parse", "--verify", "HEAD")
}

// RunGit runs git in dir with a fixed identity and fails the test on error.
func RunGit(t *testing.T, dir string, args ...string) string {
	args = append([]string{
		"-c", "user.name=srcimport",
		"-c", "user.email=srcimport@example.com",
		"-c", "commit.gpgsign=false",
	}, args...)
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if !assert.NoError(t, err, string(out)) {
		t.FailNow()
	}
	return strings.TrimSpace(string(out))
}

// WriteFile creates the parent directories of path and writes content to it.
func WriteFile(t *testing.T, path, content string) {
	AssertNoError(t, os.MkdirAll(filepath.Dir(path), 0700))
	AssertNoError(t, os.WriteFile(path, []byte(content), 0600))
}

// ReadFile returns the content of path, failing the test if it can't be read.
func ReadFile(t *testing.T, path string) string {
	b, err := os.ReadFile(path)
	AssertNoError(t, err)
	return string(b)
}

// AssertNotExist fails the test if path exists.
func AssertNotExist(t *testing.T, path string) bool {
	_, err := os.Stat(path)
	return assert.True(t, os.IsNotExist(err), "expected %s to not exist, got %v", path, err)
}
