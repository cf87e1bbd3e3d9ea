// Package pkgcompare decides whether two binary packages are equivalent,
// tolerating the
// variance an otherwise-reproducible build still introduces (embedded
// timestamps, build-path strings, link order) by falling back to
// content-aware comparison on any file whose digest differs.
package pkgcompare

import (
	"os"
	"path/filepath"

	"github.com/stapelberg/buildreqcheck"
	"github.com/stapelberg/buildreqcheck/internal/content"
	"golang.org/x/xerrors"
)

// MetadataReader is the narrow view of internal/rpmmeta.Reader that the
// Comparator depends on, so tests can substitute a fake without touching a
// real rpm binary.
type MetadataReader interface {
	Header(pkgPath string) (map[string]string, error)
	Files(pkgPath string) (map[string]buildreqcheck.FileMeta, error)
}

// Extractor is the narrow view of internal/rpmmeta.Extractor that the
// Comparator depends on to pull file content out of a package for the
// content comparator.
type Extractor interface {
	Extract(pkgPath string, paths []string, destDir string) error
}

// ContentComparator is the narrow view of internal/content.Comparator that
// the Comparator depends on.
type ContentComparator interface {
	Equal(a, b string) (bool, error)
}

// Comparator implements a two-phase comparison: header equivalence modulo
// the fixed skip set, then per-file metadata equivalence, falling back to
// the content comparator for any file whose digest alone differs.
type Comparator struct {
	Metadata MetadataReader
	Extract  Extractor
	Content  ContentComparator

	headerDiffs []HeaderDiff
	fileDiffs   []FileDiff
}

// New returns a Comparator wired to the real rpm-backed collaborators.
func New(metadata MetadataReader, extract Extractor) *Comparator {
	return &Comparator{
		Metadata: metadata,
		Extract:  extract,
		Content:  content.New(),
	}
}

// HeaderDiffs returns the tags that differed in the most recent Equal call.
func (c *Comparator) HeaderDiffs() []HeaderDiff { return c.headerDiffs }

// FileDiffs returns the files that differed in the most recent Equal call.
func (c *Comparator) FileDiffs() []FileDiff { return c.fileDiffs }

// Equal reports whether a and b are equivalent binary packages. It loads
// Header and Files lazily via Metadata if not already populated.
func (c *Comparator) Equal(a, b *buildreqcheck.BuiltPackage) (bool, error) {
	c.headerDiffs = nil
	c.fileDiffs = nil

	if err := c.load(a); err != nil {
		return false, err
	}
	if err := c.load(b); err != nil {
		return false, err
	}

	c.headerDiffs = CompareHeaders(a.Header, b.Header)

	filesA := filteredFiles(a.Files)
	filesB := filteredFiles(b.Files)

	equal := len(c.headerDiffs) == 0
	if !c.compareFiles(a.Path, filesA, b.Path, filesB) {
		equal = false
	}
	return equal, nil
}

func (c *Comparator) load(p *buildreqcheck.BuiltPackage) error {
	if p.Loaded() {
		return nil
	}
	header, err := c.Metadata.Header(p.Path)
	if err != nil {
		return xerrors.Errorf("loading header for %s: %w", p.Path, err)
	}
	files, err := c.Metadata.Files(p.Path)
	if err != nil {
		return xerrors.Errorf("loading files for %s: %w", p.Path, err)
	}
	p.Header = header
	p.Files = files
	p.MarkLoaded()
	return nil
}

// compareFiles returns whether filesA and filesB are equivalent, recording
// any mismatch into c.fileDiffs as a side effect.
func (c *Comparator) compareFiles(pathA string, filesA map[string]buildreqcheck.FileMeta, pathB string, filesB map[string]buildreqcheck.FileMeta) bool {
	equal := true
	seen := make(map[string]bool, len(filesA)+len(filesB))
	for path := range filesA {
		seen[path] = true
	}
	for path := range filesB {
		seen[path] = true
	}

	for path := range seen {
		ma, okA := filesA[path]
		mb, okB := filesB[path]
		switch {
		case !okA:
			c.fileDiffs = append(c.fileDiffs, FileDiff{Path: path, Reason: "only in " + pathB})
			equal = false
		case !okB:
			c.fileDiffs = append(c.fileDiffs, FileDiff{Path: path, Reason: "only in " + pathA})
			equal = false
		default:
			ok, reason := c.compareFile(pathA, pathB, path, ma, mb)
			if !ok {
				c.fileDiffs = append(c.fileDiffs, FileDiff{Path: path, Reason: reason})
				equal = false
			}
		}
	}
	return equal
}

// compareFile decides whether one file present in both packages is
// equivalent. A metadata mismatch outside Digest is conclusive; a Digest-only
// mismatch is resolved by extracting both copies and asking the content
// comparator.
func (c *Comparator) compareFile(pathA, pathB, path string, ma, mb buildreqcheck.FileMeta) (bool, string) {
	if !metaEqualIgnoringDigest(ma, mb) {
		return false, "file metadata differs"
	}
	if ma.Digest == mb.Digest {
		return true, ""
	}
	if ma.LinkTo != "" {
		// A symlink's "content" is its target, already covered by LinkTo
		// above; a Digest difference on a symlink record is not meaningful.
		return true, ""
	}

	equal, err := c.compareContent(pathA, pathB, path)
	if err != nil {
		return false, "content comparison failed: " + err.Error()
	}
	if !equal {
		return false, "content differs"
	}
	return true, ""
}

func (c *Comparator) compareContent(pathA, pathB, member string) (bool, error) {
	dir, err := os.MkdirTemp("", "pkgcompare-")
	if err != nil {
		return false, xerrors.Errorf("creating scratch dir: %w", err)
	}
	defer os.RemoveAll(dir)

	dirA := filepath.Join(dir, "a")
	dirB := filepath.Join(dir, "b")
	if err := os.MkdirAll(dirA, 0755); err != nil {
		return false, err
	}
	if err := os.MkdirAll(dirB, 0755); err != nil {
		return false, err
	}

	if err := c.Extract.Extract(pathA, []string{member}, dirA); err != nil {
		return false, xerrors.Errorf("extracting %s from %s: %w", member, pathA, err)
	}
	if err := c.Extract.Extract(pathB, []string{member}, dirB); err != nil {
		return false, xerrors.Errorf("extracting %s from %s: %w", member, pathB, err)
	}

	extractedA := filepath.Join(dirA, filepath.Base(member))
	extractedB := filepath.Join(dirB, filepath.Base(member))
	return c.Content.Equal(extractedA, extractedB)
}
