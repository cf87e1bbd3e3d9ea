package pkgcompare

import (
	"regexp"

	"github.com/stapelberg/buildreqcheck"
)

// ignorePatterns excludes paths whose content is inherently
// build-instance-specific even under an otherwise reproducible build: the
// build-id symlink farm (whose target encodes a hash baked in at link time)
// and compiler self-check scratch files some toolchains leave behind under
// /usr/src/debug during -fself-test passes.
var ignorePatterns = []*regexp.Regexp{
	regexp.MustCompile(`/\.build-id/`),
	regexp.MustCompile(`/usr/src/debug/.*\.gcno$`),
}

func ignoredPath(path string) bool {
	for _, re := range ignorePatterns {
		if re.MatchString(path) {
			return true
		}
	}
	return false
}

// FileDiff names one mismatching file, for observability.
type FileDiff struct {
	Path   string
	Reason string
}

// filteredFiles returns files minus ignored paths.
func filteredFiles(files map[string]buildreqcheck.FileMeta) map[string]buildreqcheck.FileMeta {
	out := make(map[string]buildreqcheck.FileMeta, len(files))
	for path, meta := range files {
		if ignoredPath(path) {
			continue
		}
		out[path] = meta
	}
	return out
}

// metaEqualIgnoringDigest reports whether two FileMeta tuples agree on
// everything except Digest: a Digest mismatch alone is not conclusive, since
// the content comparator may still find the underlying content equivalent.
func metaEqualIgnoringDigest(a, b buildreqcheck.FileMeta) bool {
	if a.Size != b.Size || a.Mode != b.Mode || a.User != b.User || a.Group != b.Group ||
		a.LinkTo != b.LinkTo || a.Device != b.Device || a.Rdev != b.Rdev || a.Lang != b.Lang ||
		a.Flags != b.Flags || a.VerifyFlags != b.VerifyFlags || a.Caps != b.Caps ||
		a.Color != b.Color || a.Contexts != b.Contexts || a.State != b.State || a.Nlinks != b.Nlinks {
		return false
	}
	return stringSlicesEqual(a.Provides, b.Provides) && stringSlicesEqual(a.Requires, b.Requires) &&
		stringSlicesEqual(a.Depends, b.Depends)
}

func stringSlicesEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
