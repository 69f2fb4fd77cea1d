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

// Package printer defines utilities to display srcimport CLI output.
package printer

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/kptdev/srcimport/internal/types"
)

// Printer displays the progress of srcimport commands. Commands and
// importers take it from the context, so tests can capture or silence it.
type Printer interface {
	PrintPackage(p types.DisplayPath, leadingNewline bool)
	Printf(format string, args ...interface{})
	OptPrintf(opt *Options, format string, args ...interface{})
	OutStream() io.Writer
	ErrStream() io.Writer
}

// Options are optional options for printer
type Options struct {
	// PkgDisplayPath is the package the message is about.
	PkgDisplayPath types.DisplayPath
}

// NewOpt returns a pointer to new options
func NewOpt() *Options {
	return &Options{}
}

// PkgDisplay sets the package the message is about.
func (opt *Options) PkgDisplay(p types.DisplayPath) *Options {
	opt.PkgDisplayPath = p
	return opt
}

// New returns a Printer writing to the given streams, or to the process
// streams when they are nil.
func New(outStream, errStream io.Writer) Printer {
	if outStream == nil {
		outStream = os.Stdout
	}
	if errStream == nil {
		errStream = os.Stderr
	}
	return &printer{
		outStream: outStream,
		errStream: errStream,
	}
}

type printer struct {
	outStream io.Writer
	errStream io.Writer
}

type contextKey int

const printerKey contextKey = 0

// OutStream is for command output such as tables and trees.
func (pr *printer) OutStream() io.Writer {
	return pr.outStream
}

// ErrStream is for progress, warnings and errors.
func (pr *printer) ErrStream() io.Writer {
	return pr.errStream
}

// PrintPackage prints the header of a package to the error stream.
func (pr *printer) PrintPackage(p types.DisplayPath, leadingNewline bool) {
	if leadingNewline {
		fmt.Fprint(pr.errStream, "\n")
	}
	fmt.Fprintf(pr.errStream, "Package %q:\n", string(p))
}

// Printf prints a message to the error stream.
func (pr *printer) Printf(format string, args ...interface{}) {
	fmt.Fprintf(pr.errStream, format, args...)
}

// OptPrintf prints a message to the error stream, prefixed with the
// package named by opt.
func (pr *printer) OptPrintf(opt *Options, format string, args ...interface{}) {
	if opt != nil && !opt.PkgDisplayPath.Empty() {
		format = fmt.Sprintf("Package %q: ", string(opt.PkgDisplayPath)) + format
	}
	fmt.Fprintf(pr.errStream, format, args...)
}

// FromContextOrDie returns the printer of the context. It panics when the
// context carries none.
func FromContextOrDie(ctx context.Context) Printer {
	pr, ok := ctx.Value(printerKey).(Printer)
	if ok {
		return pr
	}
	panic("printer missing in context")
}

// WithContext returns a context carrying pr.
func WithContext(ctx context.Context, pr Printer) context.Context {
	return context.WithValue(ctx, printerKey, pr)
}
