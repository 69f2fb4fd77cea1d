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
	"github.com/kptdev/srcimport/internal/errors"
	"github.com/kptdev/srcimport/internal/patch"
)

//nolint:gochecknoinits
func init() {
	AddErrorResolver(&patchErrorResolver{})
}

const (
	patchApplyMsg = `
Error: Patch {{ printf "%q" .patch }} does not apply to {{ printf "%q" .dir }}
{{- if ge .status 0 }} ({{ .tool }} exited with status {{ .status }}){{ end }}.
Update the patch or remove it from the package patches.
{{- template "ExecOutputDetails" . }}
`

	patchUnapplyMsg = `
Error: Patch {{ printf "%q" .patch }} can not be reverted in {{ printf "%q" .dir }}
{{- if ge .status 0 }} ({{ .tool }} exited with status {{ .status }}){{ end }}.
The source tree may have been modified after the patch was applied; remove the source directory to import it again.
{{- template "ExecOutputDetails" . }}
`
)

// patchErrorResolver is an implementation of the ErrorResolver interface
// that can produce error messages for errors of the patch.ExecError type.
type patchErrorResolver struct{}

func (*patchErrorResolver) Resolve(err error) (ResolvedResult, bool) {
	var execErr *patch.ExecError
	if !errors.As(err, &execErr) {
		return ResolvedResult{}, false
	}

	tmplArgs := map[string]interface{}{
		"patch":  execErr.Patch,
		"dir":    pathOf(err),
		"tool":   execErr.Tool,
		"status": execErr.ExitStatus,
		"stdout": execErr.StdOut,
		"stderr": execErr.StdErr,
	}

	msg := patchApplyMsg
	if execErr.Reverse {
		msg = patchUnapplyMsg
	}
	return ResolvedResult{
		Message: ExecuteTemplate(msg, tmplArgs),
	}, true
}

// pathOf returns the first package path recorded in the chain of err.
func pathOf(err error) string {
	for err != nil {
		var e *errors.Error
		if !errors.As(err, &e) {
			return ""
		}
		if e.Path != "" {
			return string(e.Path)
		}
		err = e.Err
	}
	return ""
}
