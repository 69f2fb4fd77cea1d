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

package resolver

import (
	"fmt"
	"strings"

	"github.com/kptdev/srcimport/internal/errors"
)

//nolint:gochecknoinits
func init() {
	AddErrorResolver(&validationErrorResolver{})
	AddErrorResolver(&configErrorResolver{})
}

// validationErrorResolver is an implementation of the ErrorResolver
// interface to resolve manifest validation errors.
type validationErrorResolver struct{}

func (*validationErrorResolver) Resolve(err error) (ResolvedResult, bool) {
	var validationErr *errors.ValidationError
	if !errors.As(err, &validationErr) {
		return ResolvedResult{}, false
	}
	b := new(strings.Builder)
	if validationErr.File != "" {
		fmt.Fprintf(b, "Error: Manifest %q is not valid:", validationErr.File)
	} else {
		b.WriteString("Error: Manifest is not valid:")
	}
	for _, v := range validationErr.Violations {
		fmt.Fprintf(b, "\n  - %s", v)
	}
	return ResolvedResult{
		Message:  b.String(),
		ExitCode: ExitCodeConfig,
	}, true
}

// ExitCodeConfig is the exit code for errors in the local configuration.
const ExitCodeConfig = 2

// configErrorResolver is an implementation of the ErrorResolver interface
// for errors of the errors.Config kind.
type configErrorResolver struct{}

func (*configErrorResolver) Resolve(err error) (ResolvedResult, bool) {
	if !errors.HasKind(err, errors.Config) {
		return ResolvedResult{}, false
	}
	return ResolvedResult{
		Message:  fmt.Sprintf("Error: %s", innermost(err)),
		ExitCode: ExitCodeConfig,
	}, true
}

// innermost returns the first error in the chain of err that is not an
// *errors.Error, or err itself if there is none.
func innermost(err error) error {
	cur := err
	for {
		e, ok := cur.(*errors.Error)
		if !ok {
			return cur
		}
		if e.Err == nil {
			return err
		}
		cur = e.Err
	}
}
