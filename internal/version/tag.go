// Package version computes release version tags from existing image names.
package version

import (
	"fmt"
	"strconv"
	"strings"
)

// Tag is a release version pinned to a commit.
type Tag struct {
	CommitID string
	Major    uint
	Minor    uint
	Patch    uint
}

// Initial returns the first version for a commit: v0.1.0.
func Initial(commit string) Tag {
	return Tag{CommitID: commit, Minor: 1}
}

// String serializes the tag as "<commit>/v<major>.<minor>.<patch>".
func (t Tag) String() string {
	return fmt.Sprintf("%s/%s", t.CommitID, t.Version())
}

// Version returns the "v<major>.<minor>.<patch>" part of the tag.
func (t Tag) Version() string {
	return fmt.Sprintf("v%d.%d.%d", t.Major, t.Minor, t.Patch)
}

// Compare orders tags by (major, minor, patch). The commit is ignored.
func (t Tag) Compare(o Tag) int {
	switch {
	case t.Major != o.Major:
		return cmpUint(t.Major, o.Major)
	case t.Minor != o.Minor:
		return cmpUint(t.Minor, o.Minor)
	default:
		return cmpUint(t.Patch, o.Patch)
	}
}

func cmpUint(a, b uint) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// Next applies an increment and pins the result to commit.
func (t Tag) Next(inc Increment, commit string) Tag {
	next := Tag{CommitID: commit, Major: t.Major, Minor: t.Minor, Patch: t.Patch}
	switch inc {
	case IncrementMajor:
		next.Major++
		next.Minor = 0
		next.Patch = 0
	case IncrementPatch:
		next.Patch++
	default:
		next.Minor++
		next.Patch = 0
	}
	return next
}

// Parse reads a "<commit>/v<version>" string.
func Parse(s string) (Tag, error) {
	commit, ver, ok := strings.Cut(s, "/")
	if !ok || commit == "" {
		return Tag{}, fmt.Errorf("invalid tag %q: expected <commit>/v<version>", s)
	}
	major, minor, patch, err := ParseVersion(ver)
	if err != nil {
		return Tag{}, fmt.Errorf("invalid tag %q: %w", s, err)
	}
	return Tag{CommitID: commit, Major: major, Minor: minor, Patch: patch}, nil
}

// ParseVersion reads "v<major>[.<minor>[.<patch>]]". Missing trailing
// components are zero.
func ParseVersion(s string) (major, minor, patch uint, err error) {
	rest, ok := strings.CutPrefix(s, "v")
	if !ok {
		return 0, 0, 0, fmt.Errorf("version %q does not start with v", s)
	}

	parts := strings.Split(rest, ".")
	if len(parts) > 3 {
		return 0, 0, 0, fmt.Errorf("version %q has more than three components", s)
	}

	var nums [3]uint
	for i, p := range parts {
		n, err := strconv.ParseUint(p, 10, 0)
		if err != nil {
			return 0, 0, 0, fmt.Errorf("version %q: component %q is not a number", s, p)
		}
		nums[i] = uint(n)
	}
	return nums[0], nums[1], nums[2], nil
}

// Increment selects which component a new release bumps.
type Increment int

const (
	// IncrementMinor is the default: (M, N+1, 0).
	IncrementMinor Increment = iota
	// IncrementMajor yields (M+1, 0, 0).
	IncrementMajor
	// IncrementPatch yields (M, N, P+1).
	IncrementPatch
)

// String returns the increment name.
func (i Increment) String() string {
	switch i {
	case IncrementMajor:
		return "major"
	case IncrementPatch:
		return "patch"
	default:
		return "minor"
	}
}

// IncrementFromFlags maps the major/patch CLI flags to an Increment.
// Major wins when both are set.
func IncrementFromFlags(major, patch bool) Increment {
	switch {
	case major:
		return IncrementMajor
	case patch:
		return IncrementPatch
	default:
		return IncrementMinor
	}
}
