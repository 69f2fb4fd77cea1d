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

// Package archive retrieves source trees from tarballs.
package archive

import (
	"context"
	"fmt"
	"os"

	"github.com/kptdev/srcimport/internal/errors"
	"github.com/kptdev/srcimport/internal/importer"
	"github.com/kptdev/srcimport/internal/types"
	"github.com/kptdev/srcimport/internal/util/fetch"
	"k8s.io/klog/v2"
)

// Mechanism downloads a tar or tar.gz archive and extracts it into the
// source directory. Updates replace the whole tree, patch record included,
// when the digest of the archive changes.
type Mechanism struct {
	// URL is an http(s) URL, a file:// URL or a local path.
	URL string

	// StripComponents is the number of leading path elements removed from
	// the archive entries.
	StripComponents int
}

var _ importer.Mechanism = &Mechanism{}

// New returns a Mechanism for the archive at url.
func New(url string, stripComponents int) (*Mechanism, error) {
	const op errors.Op = "archive.New"
	if url == "" {
		return nil, errors.E(op, errors.MissingParam, fmt.Errorf("archive source requires a url"))
	}
	if stripComponents < 0 {
		return nil, errors.E(op, errors.InvalidParam, fmt.Errorf("stripComponents must not be negative"))
	}
	return &Mechanism{URL: url, StripComponents: stripComponents}, nil
}

func (m *Mechanism) String() string {
	return "archive " + m.URL
}

func (m *Mechanism) Checkout(ctx context.Context, p importer.Package) error {
	const op errors.Op = "archive.Checkout"
	if _, err := m.fetch(ctx, p.SrcDir(), ""); err != nil {
		return errors.E(op, err)
	}
	return nil
}

func (m *Mechanism) Update(ctx context.Context, p importer.Package) error {
	const op errors.Op = "archive.Update"
	srcDir := p.SrcDir()
	current, err := fetch.ReadStamp(srcDir)
	if err != nil {
		return errors.E(op, types.UniquePath(srcDir), err)
	}
	changed, err := m.fetch(ctx, srcDir, current)
	if err != nil {
		return errors.E(op, err)
	}
	if !changed {
		klog.V(2).Infof("%s is already at %s", srcDir, current)
	}
	return nil
}

// fetch downloads the archive and extracts it in place of srcDir unless
// its digest is current.
func (m *Mechanism) fetch(ctx context.Context, srcDir, current string) (bool, error) {
	const op errors.Op = "archive.fetch"

	tmp, err := os.CreateTemp("", "srcimport-archive-")
	if err != nil {
		return false, errors.E(op, errors.Internal, fmt.Errorf("error creating temp file: %w", err))
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	d, err := fetch.Download(ctx, m.URL, tmp)
	if err != nil {
		if ctx.Err() != nil {
			return false, errors.E(op, types.UniquePath(srcDir), ctx.Err())
		}
		return false, errors.E(op, errors.Retrieval, types.UniquePath(srcDir), errors.Repo(m.URL), err)
	}
	if d == current {
		return false, nil
	}
	if _, err := tmp.Seek(0, 0); err != nil {
		return false, errors.E(op, types.UniquePath(srcDir), err)
	}

	err = fetch.ReplaceDir(srcDir, func(dir string) error {
		if err := fetch.Untar(tmp, dir, m.StripComponents); err != nil {
			// A corrupt archive is the upstream's fault.
			return errors.E(op, errors.Retrieval, types.UniquePath(srcDir), errors.Repo(m.URL), err)
		}
		return fetch.WriteStamp(dir, d)
	})
	return err == nil, err
}
