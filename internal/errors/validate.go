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

package errors

import (
	"fmt"
	"strings"
)

// ValidationError is an error type used when validation of a manifest fails.
type ValidationError struct {
	// File is the manifest that failed validation.
	File string

	Violations Violations
}

func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("validation failed for fields %s",
		joinStringsWithQuotes(e.Violations.Fields()))
	if e.File != "" {
		msg = fmt.Sprintf("%s: %s", e.File, msg)
	}
	return msg
}

type ViolationType string

const (
	Missing   ViolationType = "missing"
	Invalid   ViolationType = "invalid"
	Duplicate ViolationType = "duplicate"
)

type Violations []Violation

func (v Violations) Fields() []string {
	var fields []string
	for _, v := range v {
		fields = append(fields, v.Field)
	}
	return fields
}

type Violation struct {
	Field  string
	Value  string
	Type   ViolationType
	Reason string
}

func (v Violation) String() string {
	s := fmt.Sprintf("%s %s", v.Type, v.Field)
	if v.Value != "" {
		s += fmt.Sprintf(" %q", v.Value)
	}
	if v.Reason != "" {
		s += ": " + v.Reason
	}
	return s
}

// joinStringsWithQuotes combines the elements in the string slice into
// a string, with each element inside quotes.
func joinStringsWithQuotes(strs []string) string {
	b := new(strings.Builder)
	for i, s := range strs {
		b.WriteString(fmt.Sprintf("%q", s))
		if i < len(strs)-1 {
			b.WriteString(", ")
		}
	}
	return b.String()
}
