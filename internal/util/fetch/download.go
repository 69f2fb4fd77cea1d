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

package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/opencontainers/go-digest"
)

// Download copies the archive at location, an http(s) URL, a file:// URL
// or a local path, to w and returns the digest of its content.
func Download(ctx context.Context, location string, w io.Writer) (string, error) {
	rc, err := open(ctx, location)
	if err != nil {
		return "", err
	}
	defer rc.Close()

	digester := digest.Canonical.Digester()
	if _, err := io.Copy(io.MultiWriter(w, digester.Hash()), rc); err != nil {
		return "", fmt.Errorf("reading %s: %w", location, err)
	}
	return digester.Digest().String(), nil
}

func open(ctx context.Context, location string) (io.ReadCloser, error) {
	u, err := url.Parse(location)
	if err != nil || u.Scheme == "" || len(u.Scheme) == 1 {
		// Not a URL, or a windows drive letter.
		return os.Open(location)
	}

	switch strings.ToLower(u.Scheme) {
	case "file":
		return os.Open(u.Path)
	case "http", "https":
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
		if err != nil {
			return nil, err
		}
		res, err := http.DefaultClient.Do(req)
		if err != nil {
			return nil, err
		}
		if res.StatusCode != http.StatusOK {
			res.Body.Close()
			return nil, fmt.Errorf("downloading %s: %s", location, res.Status)
		}
		return res.Body, nil
	}
	return nil, fmt.Errorf("unsupported archive location %q", location)
}
