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

package manifest

import (
	"fmt"

	"github.com/kptdev/srcimport/internal/errors"
	"github.com/kptdev/srcimport/internal/importer"
	"github.com/kptdev/srcimport/internal/patch"
	"github.com/kptdev/srcimport/internal/pkg"
)

// Entry is a package ready to be imported.
type Entry struct {
	Spec     PackageSpec
	Package  *pkg.Package
	Importer *importer.Importer
}

// Build returns the entries of the packages named in names, in manifest
// order, or of all packages if names is empty. All importers share s, the
// policy and one fallback registry.
func (m *Manifest) Build(names []string, s *patch.Set, policy importer.Policy) ([]Entry, error) {
	const op errors.Op = "manifest.Build"

	selected := make(map[string]bool)
	for _, n := range names {
		if _, found := m.Package(n); !found {
			return nil, errors.E(op, errors.InvalidParam, fmt.Errorf("package %q is not declared in %s", n, m.File))
		}
		selected[n] = true
	}

	fallbacks := m.NewRegistry()
	var entries []Entry
	for _, spec := range m.Packages {
		if len(selected) > 0 && !selected[spec.Name] {
			continue
		}
		p, err := pkg.New(spec.Name, spec.SrcDir)
		if err != nil {
			return nil, errors.E(op, err)
		}
		mech, err := NewMechanism(spec.Source)
		if err != nil {
			return nil, errors.E(op, err)
		}
		entries = append(entries, Entry{
			Spec:     spec,
			Package:  p,
			Importer: importer.New(mech, append([]string{}, spec.Patches...), s, fallbacks, policy),
		})
	}
	return entries, nil
}
