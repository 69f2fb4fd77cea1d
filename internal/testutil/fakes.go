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

package testutil

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/kptdev/srcimport/internal/importer"
)

// CallLog records calls to the fakes in this package in the order they
// happen, so tests can assert on the interleaving of fetches and patches.
type CallLog struct {
	mu    sync.Mutex
	calls []string
}

// Add appends a call.
func (l *CallLog) Add(call string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, call)
}

// Calls returns a copy of the recorded calls.
func (l *CallLog) Calls() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

// Reset forgets all recorded calls.
func (l *CallLog) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = nil
}

// Applier is a patch.Applier that records "apply <file>" and
// "unapply <file>" calls without touching the tree.
type Applier struct {
	Log *CallLog

	// Fail maps a call, e.g. "apply a.patch", to the error it returns.
	// The failing call is recorded too.
	Fail map[string]error

	// Hook, if set, runs before each call and can fail it.
	Hook func(ctx context.Context, call string) error
}

func (a *Applier) Apply(ctx context.Context, _, file string) error {
	return a.call(ctx, "apply "+file)
}

func (a *Applier) Unapply(ctx context.Context, _, file string) error {
	return a.call(ctx, "unapply "+file)
}

func (a *Applier) call(ctx context.Context, call string) error {
	a.Log.Add(call)
	if a.Hook != nil {
		if err := a.Hook(ctx, call); err != nil {
			return err
		}
	}
	if err, found := a.Fail[call]; found {
		return err
	}
	return nil
}

// Mechanism is an importer.Mechanism that records "checkout" and "update"
// calls, prefixed with its Name if set.
type Mechanism struct {
	Name string
	Log  *CallLog

	// CheckoutErr is returned by Checkout, after the source directory has
	// been created.
	CheckoutErr error

	// UpdateErrs are returned by successive Update calls; once exhausted,
	// Update succeeds.
	UpdateErrs []error

	updates int
}

var _ importer.Mechanism = &Mechanism{}

func (m *Mechanism) label(op string) string {
	if m.Name == "" {
		return op
	}
	return m.Name + " " + op
}

// Checkout creates the source directory with a single file in it.
func (m *Mechanism) Checkout(_ context.Context, p importer.Package) error {
	m.Log.Add(m.label("checkout"))
	if err := os.MkdirAll(p.SrcDir(), 0700); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(p.SrcDir(), "README"), []byte(m.Name), 0600); err != nil {
		return err
	}
	return m.CheckoutErr
}

func (m *Mechanism) Update(_ context.Context, _ importer.Package) error {
	m.Log.Add(m.label("update"))
	m.updates++
	if m.updates <= len(m.UpdateErrs) {
		return m.UpdateErrs[m.updates-1]
	}
	return nil
}
