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

// Package oci retrieves source trees packaged as OCI images.
package oci

import (
	"context"
	"fmt"

	"github.com/google/go-containerregistry/pkg/v1/remote"
	"github.com/kptdev/srcimport/internal/errors"
	"github.com/kptdev/srcimport/internal/importer"
	"github.com/kptdev/srcimport/internal/types"
	"github.com/kptdev/srcimport/internal/util/fetch"
	"k8s.io/klog/v2"
)

// Mechanism extracts the merged layers of an image into the source
// directory. Updates replace the whole tree, patch record included, when
// the image digest changes.
type Mechanism struct {
	Image string

	// Options are passed to the registry client.
	Options []remote.Option
}

var _ importer.Mechanism = &Mechanism{}

// New returns a Mechanism for image.
func New(image string) (*Mechanism, error) {
	const op errors.Op = "oci.New"
	if image == "" {
		return nil, errors.E(op, errors.MissingParam, fmt.Errorf("oci source requires an image"))
	}
	return &Mechanism{Image: image}, nil
}

func (m *Mechanism) String() string {
	return "oci " + m.Image
}

func (m *Mechanism) Checkout(ctx context.Context, p importer.Package) error {
	const op errors.Op = "oci.Checkout"
	if err := m.pull(ctx, p.SrcDir()); err != nil {
		return errors.E(op, err)
	}
	return nil
}

func (m *Mechanism) Update(ctx context.Context, p importer.Package) error {
	const op errors.Op = "oci.Update"
	srcDir := p.SrcDir()

	current, err := fetch.ReadStamp(srcDir)
	if err != nil {
		return errors.E(op, types.UniquePath(srcDir), err)
	}
	latest, err := fetch.OciDigest(ctx, m.Image, m.Options...)
	if err != nil {
		return m.retrievalError(ctx, op, srcDir, err)
	}
	if current == latest {
		klog.V(2).Infof("%s is already at %s", srcDir, latest)
		return nil
	}
	if err := m.pull(ctx, srcDir); err != nil {
		return errors.E(op, err)
	}
	return nil
}

func (m *Mechanism) pull(ctx context.Context, srcDir string) error {
	const op errors.Op = "oci.pull"
	return fetch.ReplaceDir(srcDir, func(dir string) error {
		d, err := fetch.OciPullAndExtract(ctx, m.Image, dir, m.Options...)
		if err != nil {
			return m.retrievalError(ctx, op, srcDir, err)
		}
		return fetch.WriteStamp(dir, d)
	})
}

func (m *Mechanism) retrievalError(ctx context.Context, op errors.Op, srcDir string, err error) error {
	if ctx.Err() != nil {
		return errors.E(op, types.UniquePath(srcDir), ctx.Err())
	}
	return errors.E(op, errors.Retrieval, types.UniquePath(srcDir), errors.Repo(m.Image), errors.E(errors.OCI, err))
}
