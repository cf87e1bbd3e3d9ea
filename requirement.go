package buildreqcheck

import "strings"

// capabilityPrefix marks requirements that denote the packaging system's own
// internal ABI markers (e.g. "rpmlib(CompressedFileNames) <= 3.0.4-1")
// rather than a real build-time dependency. These are never candidates for
// removal and are filtered out before the set of interest is built.
const capabilityPrefix = "rpmlib("

// Requirement is an opaque, string-valued build requirement as declared by a
// source package: a name plus an optional version constraint (e.g. "gcc" or
// "pkgconfig(zlib) >= 1.2.8"). Requirements are compared by exact string
// equality.
type Requirement string

// IsCapability reports whether r denotes an internal packaging-system
// capability marker rather than a real build requirement.
func (r Requirement) IsCapability() bool {
	return strings.HasPrefix(string(r), capabilityPrefix)
}

// Name returns the dependency name portion of r, stripping any version
// constraint (everything from the first whitespace run onward).
func (r Requirement) Name() string {
	s := string(r)
	if idx := strings.IndexAny(s, " \t"); idx != -1 {
		return s[:idx]
	}
	return s
}

// Constraint returns the version-constraint portion of r (e.g. ">= 1.2.3"),
// or "" if r names a bare dependency with no constraint.
func (r Requirement) Constraint() string {
	s := string(r)
	idx := strings.IndexAny(s, " \t")
	if idx == -1 {
		return ""
	}
	return strings.TrimSpace(s[idx+1:])
}

// FilterCapabilities returns the subset of reqs that are not internal
// packaging-system capability markers, preserving order. This is the "set of
// interest": the requirements that are actually candidates for removal.
func FilterCapabilities(reqs []Requirement) []Requirement {
	out := make([]Requirement, 0, len(reqs))
	for _, r := range reqs {
		if r.IsCapability() {
			continue
		}
		out = append(out, r)
	}
	return out
}

// RequirementSet is a set of Requirements, used as a candidate subset to
// probe for removal. It is kept as a sorted slice rather than a map so that two sets with
// the same members always produce the same Key(), which the antichain and
// search machinery rely on for deduplication and deterministic ordering.
type RequirementSet []Requirement

// NewRequirementSet returns a RequirementSet containing the given
// requirements in canonical (sorted, de-duplicated) order.
func NewRequirementSet(reqs ...Requirement) RequirementSet {
	seen := make(map[Requirement]bool, len(reqs))
	out := make(RequirementSet, 0, len(reqs))
	for _, r := range reqs {
		if seen[r] {
			continue
		}
		seen[r] = true
		out = append(out, r)
	}
	out.sortInPlace()
	return out
}

func (s RequirementSet) sortInPlace() {
	// Tie-breaking among candidate sets of equal size is by the natural
	// order of requirement strings.
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}

// Key returns a canonical string representation suitable for use as a map
// key or for equality comparison between two RequirementSets.
func (s RequirementSet) Key() string {
	strs := make([]string, len(s))
	for i, r := range s {
		strs[i] = string(r)
	}
	return strings.Join(strs, "\x00")
}

// Union returns a new RequirementSet containing every requirement present in
// s or other.
func (s RequirementSet) Union(other RequirementSet) RequirementSet {
	return NewRequirementSet(append(append(RequirementSet{}, s...), other...)...)
}

// Subset reports whether every requirement in s is also present in other.
func (s RequirementSet) Subset(other RequirementSet) bool {
	if len(s) == 0 {
		return true
	}
	idx := make(map[Requirement]bool, len(other))
	for _, r := range other {
		idx[r] = true
	}
	for _, r := range s {
		if !idx[r] {
			return false
		}
	}
	return true
}

// Equal reports whether s and other contain exactly the same requirements.
func (s RequirementSet) Equal(other RequirementSet) bool {
	return s.Key() == other.Key()
}

// Contains reports whether r is a member of s.
func (s RequirementSet) Contains(r Requirement) bool {
	for _, x := range s {
		if x == r {
			return true
		}
	}
	return false
}

// Minus returns a new RequirementSet containing every requirement in s that
// is not present in other.
func (s RequirementSet) Minus(other RequirementSet) RequirementSet {
	out := make(RequirementSet, 0, len(s))
	for _, r := range s {
		if !other.Contains(r) {
			out = append(out, r)
		}
	}
	out.sortInPlace()
	return out
}
