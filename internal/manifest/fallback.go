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
	"strings"

	"github.com/kptdev/srcimport/internal/importer"
	"github.com/kptdev/srcimport/internal/mechanism/archive"
	"github.com/kptdev/srcimport/internal/mechanism/git"
	"github.com/kptdev/srcimport/internal/mechanism/gogit"
	"k8s.io/klog/v2"
)

// NewRegistry returns a registry with the handlers of the declared
// fallbacks, registered in manifest order.
func (m *Manifest) NewRegistry() *importer.Registry {
	r := importer.NewRegistry()
	for _, f := range m.Fallbacks {
		r.Register(NewFallbackHandler(f))
	}
	return r
}

// NewFallbackHandler returns the handler of the fallback f, or nil for an
// unknown fallback type.
func NewFallbackHandler(f FallbackSpec) importer.FallbackHandler {
	switch f.Type {
	case Mirror:
		return MirrorHandler(f.Prefix, f.Replacement)
	case GoGitFallback:
		return GoGitHandler()
	}
	return nil
}

// MirrorHandler returns a fallback handler that retries git and archive
// sources whose location starts with prefix from the location with prefix
// replaced by replacement.
func MirrorHandler(prefix, replacement string) importer.FallbackHandler {
	rewrite := func(loc string) (string, bool) {
		if !strings.HasPrefix(loc, prefix) {
			return "", false
		}
		return replacement + strings.TrimPrefix(loc, prefix), true
	}
	return func(p importer.Package, failing *importer.Importer) *importer.Importer {
		var sub importer.Mechanism
		switch m := failing.Mechanism.(type) {
		case *git.Mechanism:
			if repo, ok := rewrite(m.Repo); ok {
				sub = &git.Mechanism{Repo: repo, Ref: m.Ref}
			}
		case *gogit.Mechanism:
			if repo, ok := rewrite(m.Repo); ok {
				sub = &gogit.Mechanism{Repo: repo, Ref: m.Ref}
			}
		case *archive.Mechanism:
			if url, ok := rewrite(m.URL); ok {
				sub = &archive.Mechanism{URL: url, StripComponents: m.StripComponents}
			}
		}
		if sub == nil {
			return nil
		}
		klog.V(2).Infof("mirror fallback for %s: %v", p.Name(), sub)
		return failing.Substitute(sub)
	}
}

// GoGitHandler returns a fallback handler that retries git sources with the
// in-process git client, for hosts where the git executable is missing or
// broken.
func GoGitHandler() importer.FallbackHandler {
	return func(p importer.Package, failing *importer.Importer) *importer.Importer {
		m, ok := failing.Mechanism.(*git.Mechanism)
		if !ok {
			return nil
		}
		klog.V(2).Infof("gogit fallback for %s: %s", p.Name(), m.Repo)
		return failing.Substitute(&gogit.Mechanism{Repo: m.Repo, Ref: m.Ref})
	}
}
