package pfapi

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ipld/go-ipld-prime/schema"
)

func init() {
	TypeSystem.Accumulate(schema.SpawnStruct("Version",
		[]schema.StructField{
			schema.SpawnStructField("major", "Int64", false, false),
			schema.SpawnStructField("minor", "Int64", false, false),
			schema.SpawnStructField("patch", "Int64", false, false),
		},
		schema.SpawnStructRepresentationMap(nil)))
}

// Version is the semver triple an engine advertises at session start.
type Version struct {
	Major int
	Minor int
	Patch int
}

// V is shorthand for a Version literal.
func V(major, minor, patch int) Version { return Version{major, minor, patch} }

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// Compare returns -1, 0 or +1 as v is older than, equal to, or newer than o.
func (v Version) Compare(o Version) int {
	for _, d := range [3]int{v.Major - o.Major, v.Minor - o.Minor, v.Patch - o.Patch} {
		switch {
		case d < 0:
			return -1
		case d > 0:
			return 1
		}
	}
	return 0
}

// AtLeast reports whether v is o or newer.
func (v Version) AtLeast(o Version) bool { return v.Compare(o) >= 0 }

// ParseVersion reads "major[.minor[.patch]]".
//
// Errors:
//
//   - pinflow-error-invalid-argument -- when s is not a version
func ParseVersion(s string) (Version, error) {
	parts := strings.Split(strings.TrimPrefix(strings.TrimSpace(s), "v"), ".")
	if len(parts) == 0 || len(parts) > 3 {
		return Version{}, ErrorInvalidArgument(fmt.Sprintf("invalid version %q", s))
	}
	var nums [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return Version{}, ErrorInvalidArgument(fmt.Sprintf("invalid version %q", s))
		}
		nums[i] = n
	}
	return Version{nums[0], nums[1], nums[2]}, nil
}
