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

// Package config loads the global settings of srcimport from defaults, an
// optional config file, SRCIMPORT_* environment variables and flags.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/google/shlex"
	"github.com/kptdev/srcimport/internal/errors"
	"github.com/kptdev/srcimport/internal/importer"
	"github.com/kptdev/srcimport/internal/types"
	"github.com/spf13/viper"
	"k8s.io/klog/v2"
)

const (
	// AppName is the name of the configuration directory.
	AppName = "srcimport"
	// ConfigFileName is the name of the config file in the configuration
	// directory.
	ConfigFileName = "config.yaml"
	// EnvPrefix prefixes the environment variables overriding config keys.
	EnvPrefix = "SRCIMPORT"
)

// Config keys.
const (
	KeyUpdate    = "update"
	KeyVerbose   = "verbose"
	KeyKeepGoing = "keep_going"
	KeyTools     = "tools"
)

// Config holds the global settings.
type Config struct {
	// Update enables updates of existing source trees.
	Update bool `mapstructure:"update"`
	// Verbose reports skipped updates and other details.
	Verbose bool `mapstructure:"verbose"`
	// KeepGoing isolates package failures instead of stopping at the first.
	KeepGoing bool `mapstructure:"keep_going"`
	// Tools maps tool names, e.g. "patch", to the command line running them.
	Tools map[string]string `mapstructure:"tools"`
}

// DefaultPath returns the path of the config file in the user's
// configuration directory.
func DefaultPath() string {
	return filepath.Join(xdg.ConfigHome, AppName, ConfigFileName)
}

// New returns a viper instance with the defaults and the environment
// bindings set. Flags are bound on it by the commands.
func New() *viper.Viper {
	v := viper.New()
	v.SetDefault(KeyUpdate, true)
	v.SetDefault(KeyVerbose, false)
	v.SetDefault(KeyKeepGoing, false)
	v.SetDefault(KeyTools, map[string]string{})

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the config file at path into v and returns the resulting
// configuration. With an empty path, the default config file is read if it
// exists.
func Load(v *viper.Viper, path string) (*Config, error) {
	const op errors.Op = "config.Load"

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}
	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.E(op, errors.Config, types.UniquePath(path), err)
		}
		klog.V(2).Infof("loaded configuration from %s", path)
	} else if explicit {
		return nil, errors.E(op, errors.Config, types.UniquePath(path),
			fmt.Errorf("config file not found: %w", err))
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, errors.E(op, errors.Config, fmt.Errorf("failed to parse config: %w", err))
	}
	if c.Tools == nil {
		c.Tools = map[string]string{}
	}
	return &c, nil
}

// Tool returns the command line running the named tool, split into its
// arguments. A tool without configuration runs the executable of the same
// name.
func (c *Config) Tool(name string) ([]string, error) {
	const op errors.Op = "config.Tool"
	line, found := c.Tools[name]
	if !found {
		// Environment variables are not part of the tools map when no
		// config file mentions the tool.
		line = os.Getenv(fmt.Sprintf("%s_TOOLS_%s", EnvPrefix, strings.ToUpper(name)))
	}
	if strings.TrimSpace(line) == "" {
		return []string{name}, nil
	}
	args, err := shlex.Split(line)
	if err != nil {
		return nil, errors.E(op, errors.Config, fmt.Errorf("invalid command line for tool %s %q: %w", name, line, err))
	}
	if len(args) == 0 {
		return nil, errors.E(op, errors.Config, fmt.Errorf("empty command line for tool %s", name))
	}
	return args, nil
}

// Policy returns the import policy of the configuration.
func (c *Config) Policy() importer.Policy {
	return importer.Policy{
		Update:  c.Update,
		Verbose: c.Verbose,
	}
}
