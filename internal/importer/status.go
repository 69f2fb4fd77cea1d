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

import "context"

// State is the relation between a local source tree and its origin.
type State int

const (
	// UpToDate means local and remote point to the same revision.
	UpToDate State = iota
	// Advanced means the local tree has commits the remote lacks.
	Advanced
	// NeedsMerge means both sides have commits the other lacks.
	NeedsMerge
	// SimpleUpdate means the remote has commits the local tree lacks.
	SimpleUpdate
)

func (s State) String() string {
	switch s {
	case UpToDate:
		return "up-to-date"
	case Advanced:
		return "advanced"
	case NeedsMerge:
		return "needs merge"
	case SimpleUpdate:
		return "simple update"
	}
	return "unknown"
}

// Status is a snapshot of the state of a source tree.
type Status struct {
	State State
	// UncommittedCode is true when the tree has local modifications.
	UncommittedCode bool
	// RemoteCommits are the commits only the remote has.
	RemoteCommits []string
	// LocalCommits are the commits only the local tree has.
	LocalCommits []string
}

// StatusReporter is implemented by mechanisms able to compare a checked out
// tree with its origin. With onlyLocal, the origin is not contacted and the
// last known remote state is used.
type StatusReporter interface {
	Status(ctx context.Context, p Package, onlyLocal bool) (*Status, error)
}
