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

// Package dir retrieves source trees from a local directory.
package dir

import (
	"context"
	"fmt"
	"os"

	"github.com/kptdev/srcimport/internal/errors"
	"github.com/kptdev/srcimport/internal/importer"
	"github.com/kptdev/srcimport/internal/types"
	"github.com/kptdev/srcimport/internal/util/fetch"
)

// Mechanism copies a local directory, without its .git directory. Every
// update copies the tree again in place of the source directory, which
// also drops the patch record.
type Mechanism struct {
	Path string
}

var _ importer.Mechanism = &Mechanism{}

// New returns a Mechanism copying path.
func New(path string) (*Mechanism, error) {
	const op errors.Op = "dir.New"
	if path == "" {
		return nil, errors.E(op, errors.MissingParam, fmt.Errorf("dir source requires a path"))
	}
	return &Mechanism{Path: path}, nil
}

func (m *Mechanism) String() string {
	return "dir " + m.Path
}

func (m *Mechanism) Checkout(ctx context.Context, p importer.Package) error {
	const op errors.Op = "dir.Checkout"
	if err := m.copy(ctx, p.SrcDir()); err != nil {
		return errors.E(op, err)
	}
	return nil
}

func (m *Mechanism) Update(ctx context.Context, p importer.Package) error {
	const op errors.Op = "dir.Update"
	if err := m.copy(ctx, p.SrcDir()); err != nil {
		return errors.E(op, err)
	}
	return nil
}

func (m *Mechanism) copy(ctx context.Context, srcDir string) error {
	const op errors.Op = "dir.copy"
	fi, err := os.Stat(m.Path)
	if err != nil || !fi.IsDir() {
		if err == nil {
			err = fmt.Errorf("%s is not a directory", m.Path)
		}
		return errors.E(op, errors.Retrieval, types.UniquePath(srcDir), errors.Repo(m.Path), err)
	}
	return fetch.ReplaceDir(srcDir, func(dir string) error {
		return fetch.CopyDir(ctx, m.Path, dir)
	})
}
