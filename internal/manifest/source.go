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
	"sort"

	"github.com/kptdev/srcimport/internal/errors"
	"github.com/kptdev/srcimport/internal/importer"
	"github.com/kptdev/srcimport/internal/mechanism/archive"
	"github.com/kptdev/srcimport/internal/mechanism/dir"
	"github.com/kptdev/srcimport/internal/mechanism/git"
	"github.com/kptdev/srcimport/internal/mechanism/gogit"
	"github.com/kptdev/srcimport/internal/mechanism/oci"
)

// MechanismFactory builds the retrieval mechanism of a source.
type MechanismFactory func(s Source) (importer.Mechanism, error)

// mechanismFactories maps each source type to its factory.
var mechanismFactories = map[SourceType]MechanismFactory{
	Git: func(s Source) (importer.Mechanism, error) {
		return git.New(s.Git.Repo, s.Git.Ref)
	},
	GoGit: func(s Source) (importer.Mechanism, error) {
		return gogit.New(s.Git.Repo, s.Git.Ref)
	},
	OCI: func(s Source) (importer.Mechanism, error) {
		return oci.New(s.OCI.Image)
	},
	Archive: func(s Source) (importer.Mechanism, error) {
		return archive.New(s.Archive.URL, s.Archive.StripComponents)
	},
	Dir: func(s Source) (importer.Mechanism, error) {
		return dir.New(s.Dir.Path)
	},
}

// SourceTypes returns the supported source types, sorted.
func SourceTypes() []string {
	var types []string
	for t := range mechanismFactories {
		types = append(types, string(t))
	}
	sort.Strings(types)
	return types
}

// NewMechanism returns the retrieval mechanism of s. The source must have
// been validated.
func NewMechanism(s Source) (importer.Mechanism, error) {
	const op errors.Op = "manifest.NewMechanism"
	f, found := mechanismFactories[s.Type]
	if !found {
		return nil, errors.E(op, errors.Config, fmt.Errorf("unknown source type %q", s.Type))
	}
	m, err := f(s)
	if err != nil {
		return nil, errors.E(op, errors.Config, err)
	}
	return m, nil
}

// Location returns the repository, image, URL or path of s.
func (s Source) Location() string {
	switch {
	case (s.Type == Git || s.Type == GoGit) && s.Git != nil:
		if s.Git.Ref != "" {
			return s.Git.Repo + "@" + s.Git.Ref
		}
		return s.Git.Repo
	case s.Type == OCI && s.OCI != nil:
		return s.OCI.Image
	case s.Type == Archive && s.Archive != nil:
		return s.Archive.URL
	case s.Type == Dir && s.Dir != nil:
		return s.Dir.Path
	}
	return ""
}
