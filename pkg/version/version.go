// Package version holds the tagsched release version and helpers to compare
// versions announced by peers.
package version

import (
	"fmt"
	"strconv"
	"strings"
)

// Current is the release version of this build.
const Current = "0.3.0"

// Version is a parsed "major.minor.patch" version.
type Version struct {
	Major uint16
	Minor uint16
	Patch uint16
}

// Parse parses a "major.minor.patch" version string. A leading "v" is allowed.
func Parse(s string) (Version, error) {
	parts := strings.Split(strings.TrimPrefix(s, "v"), ".")
	if len(parts) != 3 {
		return Version{}, fmt.Errorf("invalid version %q: expected major.minor.patch", s)
	}

	var nums [3]uint16
	for i, p := range parts {
		n, err := strconv.ParseUint(p, 10, 16)
		if err != nil || p == "" {
			return Version{}, fmt.Errorf("invalid version %q: bad component %q", s, p)
		}
		nums[i] = uint16(n)
	}

	return Version{Major: nums[0], Minor: nums[1], Patch: nums[2]}, nil
}

// MustParse is Parse that panics on error.
func MustParse(s string) Version {
	v, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return v
}

// String returns the version as "major.minor.patch".
func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// Compatible reports whether other can interoperate with v. Before 1.0 the
// minor version must match as well.
func (v Version) Compatible(other Version) bool {
	if v.Major != other.Major {
		return false
	}
	return v.Major > 0 || v.Minor == other.Minor
}

// Less reports whether v sorts before other.
func (v Version) Less(other Version) bool {
	if v.Major != other.Major {
		return v.Major < other.Major
	}
	if v.Minor != other.Minor {
		return v.Minor < other.Minor
	}
	return v.Patch < other.Patch
}
