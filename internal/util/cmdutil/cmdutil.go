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

// Package cmdutil holds helpers shared by the srcimport commands.
package cmdutil

import (
	"fmt"
	"io"
	"os"
	"strings"

	goerrors "github.com/go-errors/errors"
	"github.com/kptdev/srcimport/internal/config"
	"github.com/kptdev/srcimport/internal/errors"
	"github.com/kptdev/srcimport/internal/manifest"
	"github.com/kptdev/srcimport/internal/patch"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	StackTraceOnErrors = "COBRA_STACK_TRACE_ON_ERRORS"
	trueString         = "true"
)

// FixDocs replaces instances of old with new in the docs for c
func FixDocs(old, new string, c *cobra.Command) {
	c.Use = strings.ReplaceAll(c.Use, old, new)
	c.Short = strings.ReplaceAll(c.Short, old, new)
	c.Long = strings.ReplaceAll(c.Long, old, new)
	c.Example = strings.ReplaceAll(c.Example, old, new)
}

func PrintErrorStacktrace() bool {
	e := os.Getenv(StackTraceOnErrors)
	if StackOnError || e == trueString || e == "1" {
		return true
	}
	return false
}

// StackOnError if true, will print a stack trace on failure.
var StackOnError bool

// WriteStack writes the stack trace of err to w. Errors that did not record
// a stack get the stack of the caller.
func WriteStack(w io.Writer, err error) {
	var stackErr *goerrors.Error
	if !errors.As(err, &stackErr) {
		stackErr = goerrors.Wrap(err, 1)
	}
	fmt.Fprintf(w, "%s", stackErr.Stack())
}

// Env carries the settings shared by the commands: the configuration and
// the location of the manifest.
type Env struct {
	Viper *viper.Viper

	// ConfigFile is the config file to read instead of the default one.
	ConfigFile string

	// ManifestFile is the manifest declaring the packages.
	ManifestFile string
}

// NewEnv returns an Env with a fresh configuration and the default manifest.
func NewEnv() *Env {
	return &Env{
		Viper:        config.New(),
		ManifestFile: manifest.DefaultFileName,
	}
}

// AddFlags adds the flags selecting the config file and the manifest to fs.
func (e *Env) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&e.ConfigFile, "config", "",
		fmt.Sprintf("config file (default %s)", config.DefaultPath()))
	fs.StringVarP(&e.ManifestFile, "manifest", "f", manifest.DefaultFileName,
		"manifest declaring the packages to import")
}

// BindFlag makes the flag f override the config key.
func (e *Env) BindFlag(key string, f *pflag.Flag) error {
	const op errors.Op = "cmdutil.BindFlag"
	if f == nil {
		return errors.E(op, errors.Internal, fmt.Errorf("no flag for config key %q", key))
	}
	if err := e.Viper.BindPFlag(key, f); err != nil {
		return errors.E(op, errors.Internal, err)
	}
	return nil
}

// Config loads the configuration.
func (e *Env) Config() (*config.Config, error) {
	return config.Load(e.Viper, e.ConfigFile)
}

// Load loads the configuration and the manifest, and builds the entries of
// the named packages, or of all packages if names is empty.
func (e *Env) Load(names []string) (*config.Config, *manifest.Manifest, []manifest.Entry, error) {
	const op errors.Op = "cmdutil.Load"
	c, err := e.Config()
	if err != nil {
		return nil, nil, nil, errors.E(op, err)
	}
	m, err := manifest.Load(e.ManifestFile)
	if err != nil {
		return nil, nil, nil, errors.E(op, err)
	}
	applier, err := patch.NewExecApplier(c.Tool)
	if err != nil {
		return nil, nil, nil, errors.E(op, err)
	}
	entries, err := m.Build(names, patch.NewSet(applier), c.Policy())
	if err != nil {
		return nil, nil, nil, errors.E(op, err)
	}
	return c, m, entries, nil
}
