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

// Package fetch downloads and unpacks source trees for the mechanisms that
// replace the whole source directory on each change.
package fetch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/go-containerregistry/pkg/authn"
	"github.com/google/go-containerregistry/pkg/name"
	"github.com/google/go-containerregistry/pkg/v1/mutate"
	"github.com/google/go-containerregistry/pkg/v1/remote"
	"github.com/kptdev/srcimport/internal/errors"
	"github.com/kptdev/srcimport/internal/types"
	"github.com/kptdev/srcimport/pkg/printer"
	"github.com/otiai10/copy"
	"k8s.io/klog/v2"
)

// StampFileName is the file in a source directory holding the digest of the
// content it was extracted from.
const StampFileName = ".srcimport-source"

// ReadStamp returns the digest recorded in dir, or "" if there is none.
func ReadStamp(dir string) (string, error) {
	b, err := os.ReadFile(filepath.Join(dir, StampFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}

// WriteStamp records digest in dir.
func WriteStamp(dir, digest string) error {
	return os.WriteFile(filepath.Join(dir, StampFileName), []byte(digest+"\n"), 0600)
}

// ReplaceDir fills a new directory next to dst and swaps it in place of
// dst. dst is left untouched if fill fails.
func ReplaceDir(dst string, fill func(dir string) error) error {
	const op errors.Op = "fetch.ReplaceDir"
	parent := filepath.Dir(dst)
	if err := os.MkdirAll(parent, 0700); err != nil {
		return errors.E(op, types.UniquePath(dst), err)
	}
	tmp, err := os.MkdirTemp(parent, ".srcimport-")
	if err != nil {
		return errors.E(op, errors.Internal, types.UniquePath(dst),
			fmt.Errorf("error creating temp directory: %w", err))
	}
	defer os.RemoveAll(tmp)

	if err := fill(tmp); err != nil {
		return err
	}
	if err := os.RemoveAll(dst); err != nil {
		return errors.E(op, types.UniquePath(dst), err)
	}
	if err := os.Rename(tmp, dst); err != nil {
		return errors.E(op, types.UniquePath(dst), err)
	}
	return nil
}

// CopyDir copies a src directory to a dst directory.
// CopyDir skips copying the .git directory from the src and ignores symlinks.
func CopyDir(ctx context.Context, srcDir string, dstDir string) error {
	pr := printer.FromContextOrDie(ctx)
	opts := copy.Options{
		Skip: func(_ os.FileInfo, src, _ string) (bool, error) {
			return filepath.Base(src) == ".git", nil
		},
		OnSymlink: func(src string) copy.SymlinkAction {
			// try to print relative path of symlink
			// if we can, else absolute path
			displayPath, err := filepath.Rel(srcDir, src)
			if err != nil {
				displayPath = src
			}
			pr.Printf("[Warn] Ignoring symlink %q \n", displayPath)
			return copy.Skip
		},
	}
	return copy.Copy(srcDir, dstDir, opts)
}

// remoteOptions returns the options used to talk to registries: the
// context and the credentials of the default keychain (docker config).
func remoteOptions(ctx context.Context, options []remote.Option) []remote.Option {
	return append([]remote.Option{
		remote.WithContext(ctx),
		remote.WithAuthFromKeychain(authn.DefaultKeychain),
	}, options...)
}

// OciDigest returns the digest of imageName without pulling it.
func OciDigest(ctx context.Context, imageName string, options ...remote.Option) (string, error) {
	ref, err := name.ParseReference(imageName)
	if err != nil {
		return "", fmt.Errorf("parsing reference %q: %w", imageName, err)
	}
	desc, err := remote.Head(ref, remoteOptions(ctx, options)...)
	if err != nil {
		return "", fmt.Errorf("resolving image %s: %w", imageName, err)
	}
	return desc.Digest.String(), nil
}

// OciPullAndExtract pulls imageName and extracts its merged layers into
// dir. It returns the digest of the image that was extracted.
func OciPullAndExtract(ctx context.Context, imageName string, dir string, options ...remote.Option) (string, error) {
	const op errors.Op = "fetch.OciPullAndExtract"

	ref, err := name.ParseReference(imageName)
	if err != nil {
		return "", fmt.Errorf("parsing reference %q: %w", imageName, err)
	}

	// Pull image from source using provided options for auth credentials
	image, err := remote.Image(ref, remoteOptions(ctx, options)...)
	if err != nil {
		return "", fmt.Errorf("pulling image %s: %w", imageName, err)
	}

	// Stream image files as if single tar (merged layers)
	rc := mutate.Extract(image)
	defer rc.Close()
	if err := Untar(rc, dir, 0); err != nil {
		return "", errors.E(op, types.UniquePath(dir), err)
	}

	imageDigest, err := image.Digest()
	if err != nil {
		return "", errors.E(op, fmt.Errorf("error calculating image digest: %w", err))
	}
	klog.V(2).Infof("extracted %s@%s into %s", imageName, imageDigest, dir)
	return imageDigest.String(), nil
}
