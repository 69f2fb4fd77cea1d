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

// Package manifest loads the srcimport manifest, which declares the
// packages to import, where their sources come from, the patches applied on
// top and the fallbacks tried when a source fails.
package manifest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kptdev/srcimport/internal/errors"
	"github.com/kptdev/srcimport/internal/types"
	"sigs.k8s.io/yaml"
)

// DefaultFileName is the name of the manifest read when no other file is
// given.
const DefaultFileName = "srcimport.yaml"

// Manifest is the top-level object of a manifest file.
type Manifest struct {
	// Packages are imported in the order they are listed.
	Packages []PackageSpec `json:"packages"`

	// Fallbacks are tried when importing a package fails, the last listed
	// first.
	Fallbacks []FallbackSpec `json:"fallbacks,omitempty"`

	// File is the absolute path of the manifest file.
	File string `json:"-"`
}

// PackageSpec declares one package.
type PackageSpec struct {
	// Name identifies the package on the command line and in the output.
	Name string `json:"name"`

	// SrcDir is the source directory, relative to the manifest.
	SrcDir string `json:"srcdir"`

	Source Source `json:"source"`

	// Patches are applied in order on top of the sources.
	Patches Patches `json:"patches,omitempty"`
}

// SourceType selects the retrieval mechanism of a package.
type SourceType string

const (
	Git     SourceType = "git"
	GoGit   SourceType = "gogit"
	OCI     SourceType = "oci"
	Archive SourceType = "archive"
	Dir     SourceType = "dir"
)

// Source is the location of the sources of a package. Only the block
// matching Type is used; the git block serves both git and gogit.
type Source struct {
	Type    SourceType     `json:"type"`
	Git     *GitSource     `json:"git,omitempty"`
	OCI     *OCISource     `json:"oci,omitempty"`
	Archive *ArchiveSource `json:"archive,omitempty"`
	Dir     *DirSource     `json:"dir,omitempty"`
}

// GitSource is a git repository.
type GitSource struct {
	Repo string `json:"repo"`
	// Ref is a branch, a tag, a commit or a semver constraint matching tags.
	// The default branch of the repository is used if empty.
	Ref string `json:"ref,omitempty"`
}

// OCISource is an OCI image whose layers hold the sources.
type OCISource struct {
	Image string `json:"image"`
}

// ArchiveSource is a tarball, optionally gzip compressed.
type ArchiveSource struct {
	URL             string `json:"url"`
	StripComponents int    `json:"stripComponents,omitempty"`
}

// DirSource is a directory on the local filesystem.
type DirSource struct {
	Path string `json:"path"`
}

// Patches is a list of patch files. In the manifest it can be written as a
// single string or as a list.
type Patches []string

func (p *Patches) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*p = nil
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*p = Patches{s}
		return nil
	}
	var l []string
	if err := json.Unmarshal(data, &l); err != nil {
		return fmt.Errorf("patches must be a string or a list of strings: %w", err)
	}
	*p = l
	return nil
}

// FallbackType selects a fallback handler.
type FallbackType string

const (
	// Mirror retries with a repository or archive URL that has Prefix
	// replaced by Replacement.
	Mirror FallbackType = "mirror"
	// GoGitFallback retries a git source with the in-process git client.
	GoGitFallback FallbackType = "gogit"
)

// FallbackSpec declares one fallback handler.
type FallbackSpec struct {
	Type        FallbackType `json:"type"`
	Prefix      string       `json:"prefix,omitempty"`
	Replacement string       `json:"replacement,omitempty"`
}

// Load reads, validates and normalizes the manifest at path. Relative
// source directories, patches and local source paths are made absolute
// against the directory of the manifest.
func Load(path string) (*Manifest, error) {
	const op errors.Op = "manifest.Load"
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.E(op, errors.InvalidParam, err)
	}
	b, err := os.ReadFile(abs)
	if err != nil {
		return nil, errors.E(op, errors.Config, types.UniquePath(abs), err)
	}
	m, err := Parse(b)
	if err != nil {
		return nil, errors.E(op, errors.Config, types.UniquePath(abs), err)
	}
	m.File = abs
	if err := m.Validate(); err != nil {
		return nil, errors.E(op, errors.Config, err)
	}
	m.resolvePaths(filepath.Dir(abs))
	return m, nil
}

// Parse decodes a manifest. Unknown fields are rejected.
func Parse(b []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.UnmarshalStrict(b, &m); err != nil {
		return nil, fmt.Errorf("unable to parse manifest: %w", err)
	}
	return &m, nil
}

// Validate checks the manifest and returns an *errors.ValidationError
// listing every violation found.
func (m *Manifest) Validate() error {
	var v errors.Violations
	if len(m.Packages) == 0 {
		v = append(v, errors.Violation{
			Field:  "packages",
			Type:   errors.Missing,
			Reason: "at least one package must be declared",
		})
	}

	names := make(map[string]bool)
	srcDirs := make(map[string]bool)
	for i, p := range m.Packages {
		field := fmt.Sprintf("packages[%d]", i)
		switch {
		case p.Name == "":
			v = append(v, errors.Violation{Field: field + ".name", Type: errors.Missing})
		case names[p.Name]:
			v = append(v, errors.Violation{Field: field + ".name", Value: p.Name, Type: errors.Duplicate})
		}
		names[p.Name] = true

		switch {
		case p.SrcDir == "":
			v = append(v, errors.Violation{Field: field + ".srcdir", Type: errors.Missing})
		case srcDirs[filepath.Clean(p.SrcDir)]:
			v = append(v, errors.Violation{Field: field + ".srcdir", Value: p.SrcDir, Type: errors.Duplicate})
		}
		srcDirs[filepath.Clean(p.SrcDir)] = true

		for j, patch := range p.Patches {
			if strings.TrimSpace(patch) == "" {
				v = append(v, errors.Violation{Field: fmt.Sprintf("%s.patches[%d]", field, j), Type: errors.Missing})
			}
		}

		v = append(v, validateSource(field+".source", p.Source)...)
	}

	for i, f := range m.Fallbacks {
		field := fmt.Sprintf("fallbacks[%d]", i)
		switch f.Type {
		case Mirror:
			if f.Prefix == "" {
				v = append(v, errors.Violation{Field: field + ".prefix", Type: errors.Missing})
			}
			if f.Replacement == "" {
				v = append(v, errors.Violation{Field: field + ".replacement", Type: errors.Missing})
			}
		case GoGitFallback:
		case "":
			v = append(v, errors.Violation{Field: field + ".type", Type: errors.Missing})
		default:
			v = append(v, errors.Violation{
				Field:  field + ".type",
				Value:  string(f.Type),
				Type:   errors.Invalid,
				Reason: "unknown fallback type",
			})
		}
	}

	if len(v) > 0 {
		return &errors.ValidationError{File: m.File, Violations: v}
	}
	return nil
}

func validateSource(field string, s Source) errors.Violations {
	var v errors.Violations
	missing := func(name string) {
		v = append(v, errors.Violation{Field: field + "." + name, Type: errors.Missing})
	}
	switch s.Type {
	case Git, GoGit:
		if s.Git == nil || s.Git.Repo == "" {
			missing("git.repo")
		}
	case OCI:
		if s.OCI == nil || s.OCI.Image == "" {
			missing("oci.image")
		}
	case Archive:
		switch {
		case s.Archive == nil || s.Archive.URL == "":
			missing("archive.url")
		case s.Archive.StripComponents < 0:
			v = append(v, errors.Violation{
				Field:  field + ".archive.stripComponents",
				Value:  fmt.Sprint(s.Archive.StripComponents),
				Type:   errors.Invalid,
				Reason: "must not be negative",
			})
		}
	case Dir:
		if s.Dir == nil || s.Dir.Path == "" {
			missing("dir.path")
		}
	case "":
		missing("type")
	default:
		v = append(v, errors.Violation{
			Field:  field + ".type",
			Value:  string(s.Type),
			Type:   errors.Invalid,
			Reason: "unknown source type",
		})
	}
	return v
}

func (m *Manifest) resolvePaths(dir string) {
	abs := func(p string) string {
		if filepath.IsAbs(p) {
			return filepath.Clean(p)
		}
		return filepath.Join(dir, p)
	}
	for i := range m.Packages {
		p := &m.Packages[i]
		p.SrcDir = abs(p.SrcDir)
		for j := range p.Patches {
			p.Patches[j] = abs(p.Patches[j])
		}
		switch {
		case p.Source.Dir != nil:
			p.Source.Dir.Path = abs(p.Source.Dir.Path)
		case p.Source.Archive != nil && !strings.Contains(p.Source.Archive.URL, "://"):
			p.Source.Archive.URL = abs(p.Source.Archive.URL)
		}
	}
}

// Package returns the spec of the package with the given name.
func (m *Manifest) Package(name string) (PackageSpec, bool) {
	for _, p := range m.Packages {
		if p.Name == name {
			return p, true
		}
	}
	return PackageSpec{}, false
}
