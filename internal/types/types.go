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

// Package types defines the basic types used by the srcimport codebase.
package types

// UniquePath represents absolute unique OS-defined path to a package source
// directory on the filesystem.
type UniquePath string

// String returns the absolute path in string format.
func (u UniquePath) String() string {
	return string(u)
}

// DisplayPath is the name of a package as shown to the user. It is not
// guaranteed to be unique and should only be used for display purposes.
type DisplayPath string

// Empty returns true if the DisplayPath is empty
func (u DisplayPath) Empty() bool {
	return len(u) == 0
}
