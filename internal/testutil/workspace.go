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
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"testing"
)

// HelloPatch changes the first line of hello.txt from "hello" to
// "hello, patched".
const HelloPatch = `--- hello.txt
+++ hello.txt
@@ -1 +1 @@
-hello
+hello, patched
`

// Workspace is a directory holding a manifest, the upstream directories of
// its packages and their patches.
type Workspace struct {
	Dir      string
	Manifest string
	Config   string
}

// WorkspacePackage declares a package of a Workspace with a dir source.
type WorkspacePackage struct {
	Name string
	// Files are written to the upstream directory. No upstream directory is
	// created when empty.
	Files map[string]string
	// Patches maps patch file names to their content.
	Patches map[string]string
	// Source overrides the dir source with a raw YAML source block.
	Source string
}

// SetupWorkspace writes the manifest declaring packages and an empty config
// file to a temp directory. Package p lives in src/<p.Name>, its upstream in
// upstream/<p.Name> and its patches in patches/.
func SetupWorkspace(t *testing.T, packages ...WorkspacePackage) *Workspace {
	w := &Workspace{Dir: t.TempDir()}
	b := new(strings.Builder)
	b.WriteString("packages:\n")
	for _, p := range packages {
		upstream := filepath.Join("upstream", p.Name)
		for name, content := range p.Files {
			WriteFile(t, filepath.Join(w.Dir, upstream, name), content)
		}
		fmt.Fprintf(b, "- name: %s\n  srcdir: %s\n", p.Name, filepath.Join("src", p.Name))
		if p.Source != "" {
			fmt.Fprintf(b, "  source: %s\n", p.Source)
		} else {
			fmt.Fprintf(b, "  source: {type: dir, dir: {path: %s}}\n", upstream)
		}
		if len(p.Patches) > 0 {
			b.WriteString("  patches:\n")
			for _, name := range SortedKeys(p.Patches) {
				WriteFile(t, filepath.Join(w.Dir, "patches", name), p.Patches[name])
				fmt.Fprintf(b, "  - %s\n", filepath.Join("patches", name))
			}
		}
	}
	w.Manifest = filepath.Join(w.Dir, "srcimport.yaml")
	WriteFile(t, w.Manifest, b.String())
	w.Config = filepath.Join(w.Dir, "config.yaml")
	WriteFile(t, w.Config, "")
	return w
}

// SrcDir returns the source directory of the named package.
func (w *Workspace) SrcDir(name string) string {
	return filepath.Join(w.Dir, "src", name)
}

// Upstream returns the upstream directory of the named package.
func (w *Workspace) Upstream(name string) string {
	return filepath.Join(w.Dir, "upstream", name)
}

// Patch returns the path of the named patch.
func (w *Workspace) Patch(name string) string {
	return filepath.Join(w.Dir, "patches", name)
}

// SortedKeys returns the keys of m in increasing order.
func SortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
