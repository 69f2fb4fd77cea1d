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

package gitutil

import (
	"fmt"
	"slices"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/kptdev/srcimport/internal/errors"
	"k8s.io/klog/v2"
)

// ResolveVersion resolves a semantic version constraint, e.g. "^1.2" or
// "~1.4.0", to the highest matching tag of the upstream repo. The second
// return value is false if ref is not a constraint, in which case the ref
// should be used as is.
func (gur *GitUpstreamRepo) ResolveVersion(ref string) (string, bool, error) {
	const op errors.Op = "gitutil.ResolveVersion"
	if _, found := gur.ResolveRef(ref); found {
		return ref, false, nil
	}
	if _, err := semver.NewVersion(ref); err == nil {
		// An exact version that is not a tag is not something we can
		// resolve.
		return ref, false, nil
	}
	constraint, err := semver.NewConstraint(ref)
	if err != nil {
		klog.V(3).Infof("ref %q is not a version constraint, using it literally", ref)
		return ref, false, nil
	}

	tags := make([]string, 0, len(gur.Tags))
	for t := range gur.Tags {
		tags = append(tags, t)
	}
	versions := filterParseSortTags(tags)
	for _, v := range versions {
		if constraint.Check(v) {
			klog.V(2).Infof("resolved %q to tag %s in %s", ref, v.Original(), gur.URI)
			return v.Original(), true, nil
		}
	}
	return "", true, errors.E(op, errors.Repo(gur.URI), errors.Git, &GitExecError{
		Type: UnknownReference,
		Ref:  ref,
		Repo: gur.URI,
		Err:  fmt.Errorf("no tag matched the version constraint %q from %s", ref, abbrevSlice(versions)),
	})
}

// filterParseSortTags returns all the tags that are valid semantic versions,
// in descending order.
func filterParseSortTags(tags []string) []*semver.Version {
	var versions []*semver.Version
	for _, tag := range tags {
		version, err := semver.NewVersion(tag)
		if err != nil {
			klog.V(3).Infof("Failed to parse tag %q as semantic version, ignoring", tag)
			continue
		}
		versions = append(versions, version)
	}

	slices.SortFunc(versions, func(a, b *semver.Version) int {
		return b.Compare(a)
	})
	return versions
}

func abbrevSlice(slice []*semver.Version) string {
	switch len(slice) {
	case 0:
		return "[]"
	case 1, 2, 3:
		out := make([]string, len(slice))
		for i, v := range slice {
			out[i] = v.Original()
		}
		return "[" + strings.Join(out, ",") + "]"
	default:
		return fmt.Sprintf("[%s, %s, ..., %s]",
			slice[0].Original(), slice[1].Original(), slice[len(slice)-1].Original())
	}
}
