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

package importer

import (
	"context"
	"sync"

	"github.com/kptdev/srcimport/internal/errors"
	"github.com/kptdev/srcimport/pkg/printer"
	"k8s.io/klog/v2"
)

// FallbackHandler inspects a package whose import failed with failing and
// returns a substitute importer, or nil if it does not apply.
type FallbackHandler func(p Package, failing *Importer) *Importer

// Registry is an ordered list of fallback handlers. Handlers registered last
// are tried first. A nil Registry has no handlers.
type Registry struct {
	mu       sync.RWMutex
	handlers []FallbackHandler
}

// NewRegistry returns a Registry with the given handlers, in registration
// order.
func NewRegistry(handlers ...FallbackHandler) *Registry {
	r := &Registry{}
	for _, h := range handlers {
		r.Register(h)
	}
	return r
}

// Register appends h to the registry.
func (r *Registry) Register(h FallbackHandler) {
	if h == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers = append(r.handlers, h)
}

// Len returns the number of registered handlers.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handlers)
}

func (r *Registry) snapshot() []FallbackHandler {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]FallbackHandler(nil), r.handlers...)
}

// exitStatuser is implemented by errors carrying the exit status of an
// external tool.
type exitStatuser interface {
	Status() int
}

// resolve tries the handlers, most recently registered first, on the
// package p whose import with failing failed with err. Each substitute runs
// retry, which is the operation that failed. The first substitute that
// succeeds ends the search. If none does, err is returned.
func (r *Registry) resolve(ctx context.Context, err error, p Package, failing *Importer,
	retry func(*Importer, context.Context, Package) error) error {
	handlers := r.snapshot()
	if len(handlers) == 0 {
		return err
	}

	pr := printer.FromContextOrDie(ctx)
	pr.Printf("[Warn] %s: %v, trying fallback importers\n", p.Name(), err)
	var es exitStatuser
	if errors.As(err, &es) && es.Status() > 0 {
		pr.Printf("[Warn] %s: exit status %d\n", p.Name(), es.Status())
	}

	for i := len(handlers) - 1; i >= 0; i-- {
		substitute := handlers[i](p, failing)
		if substitute == nil || substitute == failing {
			continue
		}
		ferr := retry(substitute, ctx, p)
		if ferr == nil {
			return nil
		}
		if Interrupted(ctx, ferr) {
			return ferr
		}
		klog.V(2).Infof("fallback importer for %s failed: %v", p.Name(), ferr)
	}
	return err
}
