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

package patch

import (
	"bufio"
	"bytes"
	"os"
	"path/filepath"
	"strings"

	"github.com/kptdev/srcimport/internal/errors"
	"github.com/kptdev/srcimport/internal/types"
)

// RecordFileName is the name of the file, relative to the source directory,
// listing the currently applied patches in application order.
const RecordFileName = ".srcimport-patches"

// RecordPath returns the path of the record file of the source directory.
func RecordPath(srcDir string) string {
	return filepath.Join(srcDir, RecordFileName)
}

// ReadRecord reads the applied patches of srcDir. A missing record is an
// empty one.
func ReadRecord(srcDir string) ([]string, error) {
	const op errors.Op = "patch.ReadRecord"
	b, err := os.ReadFile(RecordPath(srcDir))
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, errors.E(op, types.UniquePath(srcDir), err)
	}

	patches := []string{}
	scanner := bufio.NewScanner(bytes.NewReader(b))
	for scanner.Scan() {
		p := strings.TrimRight(scanner.Text(), " \t\r")
		if p == "" {
			continue
		}
		patches = append(patches, p)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.E(op, types.UniquePath(srcDir), err)
	}
	return patches, nil
}

// WriteRecord replaces the record of srcDir with patches. The new content
// is written to a temporary file first and renamed over the record so an
// interrupted write never leaves a truncated record behind.
func WriteRecord(srcDir string, patches []string) error {
	const op errors.Op = "patch.WriteRecord"
	f, err := os.CreateTemp(srcDir, RecordFileName+".tmp-*")
	if err != nil {
		return errors.E(op, errors.Internal, types.UniquePath(srcDir), err)
	}
	tmp := f.Name()
	defer os.Remove(tmp)

	if _, err := f.WriteString(strings.Join(patches, "\n")); err != nil {
		f.Close()
		return errors.E(op, errors.Internal, types.UniquePath(srcDir), err)
	}
	if err := f.Close(); err != nil {
		return errors.E(op, errors.Internal, types.UniquePath(srcDir), err)
	}
	if err := os.Rename(tmp, RecordPath(srcDir)); err != nil {
		return errors.E(op, errors.Internal, types.UniquePath(srcDir), err)
	}
	return nil
}
