package pkgcompare

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stapelberg/buildreqcheck"
)

// fakeMetadata implements MetadataReader from canned per-path tables, so
// tests exercise Comparator's own logic without a real rpm binary.
type fakeMetadata struct {
	headers map[string]map[string]string
	files   map[string]map[string]buildreqcheck.FileMeta
}

func (f *fakeMetadata) Header(pkgPath string) (map[string]string, error) {
	return f.headers[pkgPath], nil
}

func (f *fakeMetadata) Files(pkgPath string) (map[string]buildreqcheck.FileMeta, error) {
	return f.files[pkgPath], nil
}

// fakeExtractor writes a fixed payload for any requested member, keyed by
// (pkgPath, member).
type fakeExtractor struct {
	contents map[string]map[string]string
}

func (f *fakeExtractor) Extract(pkgPath string, paths []string, destDir string) error {
	for _, p := range paths {
		data := f.contents[pkgPath][p]
		if err := os.WriteFile(filepath.Join(destDir, filepath.Base(p)), []byte(data), 0644); err != nil {
			return err
		}
	}
	return nil
}

// fakeContent compares extracted files byte-for-byte, standing in for CC.
type fakeContent struct{}

func (fakeContent) Equal(a, b string) (bool, error) {
	da, err := os.ReadFile(a)
	if err != nil {
		return false, err
	}
	db, err := os.ReadFile(b)
	if err != nil {
		return false, err
	}
	return string(da) == string(db), nil
}

func TestComparatorEqualIdenticalPackages(t *testing.T) {
	meta := &fakeMetadata{
		headers: map[string]map[string]string{
			"a.rpm": {"NAME": "zlib", "VERSION": "1.2.11"},
			"b.rpm": {"NAME": "zlib", "VERSION": "1.2.11"},
		},
		files: map[string]map[string]buildreqcheck.FileMeta{
			"a.rpm": {"/usr/lib/libz.so.1": {Size: 100, Mode: 0100755, Digest: "aaa"}},
			"b.rpm": {"/usr/lib/libz.so.1": {Size: 100, Mode: 0100755, Digest: "aaa"}},
		},
	}
	c := &Comparator{Metadata: meta, Extract: &fakeExtractor{}, Content: fakeContent{}}
	equal, err := c.Equal(&buildreqcheck.BuiltPackage{Path: "a.rpm"}, &buildreqcheck.BuiltPackage{Path: "b.rpm"})
	if err != nil {
		t.Fatal(err)
	}
	if !equal {
		t.Errorf("Equal() = false, want true; headerDiffs=%v fileDiffs=%v", c.HeaderDiffs(), c.FileDiffs())
	}
}

func TestComparatorEqualFallsBackToContentOnDigestMismatch(t *testing.T) {
	meta := &fakeMetadata{
		headers: map[string]map[string]string{"a.rpm": {"NAME": "zlib"}, "b.rpm": {"NAME": "zlib"}},
		files: map[string]map[string]buildreqcheck.FileMeta{
			"a.rpm": {"/usr/bin/foo": {Size: 10, Mode: 0100755, Digest: "digest-a"}},
			"b.rpm": {"/usr/bin/foo": {Size: 10, Mode: 0100755, Digest: "digest-b"}},
		},
	}
	extract := &fakeExtractor{contents: map[string]map[string]string{
		"a.rpm": {"/usr/bin/foo": "same bytes, different embedded timestamp string stripped by CC"},
		"b.rpm": {"/usr/bin/foo": "same bytes, different embedded timestamp string stripped by CC"},
	}}
	c := &Comparator{Metadata: meta, Extract: extract, Content: fakeContent{}}
	equal, err := c.Equal(&buildreqcheck.BuiltPackage{Path: "a.rpm"}, &buildreqcheck.BuiltPackage{Path: "b.rpm"})
	if err != nil {
		t.Fatal(err)
	}
	if !equal {
		t.Errorf("Equal() = false, want true (content equal despite digest mismatch); fileDiffs=%v", c.FileDiffs())
	}
}

func TestComparatorEqualDetectsRealContentDiff(t *testing.T) {
	meta := &fakeMetadata{
		headers: map[string]map[string]string{"a.rpm": {"NAME": "zlib"}, "b.rpm": {"NAME": "zlib"}},
		files: map[string]map[string]buildreqcheck.FileMeta{
			"a.rpm": {"/usr/bin/foo": {Size: 10, Mode: 0100755, Digest: "digest-a"}},
			"b.rpm": {"/usr/bin/foo": {Size: 10, Mode: 0100755, Digest: "digest-b"}},
		},
	}
	extract := &fakeExtractor{contents: map[string]map[string]string{
		"a.rpm": {"/usr/bin/foo": "version one"},
		"b.rpm": {"/usr/bin/foo": "version two"},
	}}
	c := &Comparator{Metadata: meta, Extract: extract, Content: fakeContent{}}
	equal, err := c.Equal(&buildreqcheck.BuiltPackage{Path: "a.rpm"}, &buildreqcheck.BuiltPackage{Path: "b.rpm"})
	if err != nil {
		t.Fatal(err)
	}
	if equal {
		t.Errorf("Equal() = true, want false (content genuinely differs)")
	}
	if len(c.FileDiffs()) != 1 || c.FileDiffs()[0].Path != "/usr/bin/foo" {
		t.Errorf("FileDiffs() = %v, want single /usr/bin/foo diff", c.FileDiffs())
	}
}

func TestComparatorEqualDetectsAddedFile(t *testing.T) {
	meta := &fakeMetadata{
		headers: map[string]map[string]string{"a.rpm": {"NAME": "zlib"}, "b.rpm": {"NAME": "zlib"}},
		files: map[string]map[string]buildreqcheck.FileMeta{
			"a.rpm": {},
			"b.rpm": {"/usr/bin/new": {Size: 1}},
		},
	}
	c := &Comparator{Metadata: meta, Extract: &fakeExtractor{}, Content: fakeContent{}}
	equal, err := c.Equal(&buildreqcheck.BuiltPackage{Path: "a.rpm"}, &buildreqcheck.BuiltPackage{Path: "b.rpm"})
	if err != nil {
		t.Fatal(err)
	}
	if equal {
		t.Errorf("Equal() = true, want false (b has an extra file)")
	}
}

func TestComparatorEqualIgnoresBuildIDSymlinks(t *testing.T) {
	meta := &fakeMetadata{
		headers: map[string]map[string]string{"a.rpm": {"NAME": "zlib"}, "b.rpm": {"NAME": "zlib"}},
		files: map[string]map[string]buildreqcheck.FileMeta{
			"a.rpm": {"/usr/lib/.build-id/ab/cdef": {LinkTo: "../../../lib/foo-1"}},
			"b.rpm": {"/usr/lib/.build-id/ab/cdef": {LinkTo: "../../../lib/foo-2"}},
		},
	}
	c := &Comparator{Metadata: meta, Extract: &fakeExtractor{}, Content: fakeContent{}}
	equal, err := c.Equal(&buildreqcheck.BuiltPackage{Path: "a.rpm"}, &buildreqcheck.BuiltPackage{Path: "b.rpm"})
	if err != nil {
		t.Fatal(err)
	}
	if !equal {
		t.Errorf("Equal() = false, want true (build-id symlink target ignored); fileDiffs=%v", c.FileDiffs())
	}
}

func TestComparatorReusesAlreadyLoadedPackage(t *testing.T) {
	c := &Comparator{
		Metadata: &fakeMetadata{}, // would return nil maps; must not be consulted
		Extract:  &fakeExtractor{},
		Content:  fakeContent{},
	}
	a := &buildreqcheck.BuiltPackage{Path: "a.rpm", Header: map[string]string{"NAME": "zlib"}, Files: map[string]buildreqcheck.FileMeta{}}
	a.MarkLoaded()
	b := &buildreqcheck.BuiltPackage{Path: "b.rpm", Header: map[string]string{"NAME": "zlib"}, Files: map[string]buildreqcheck.FileMeta{}}
	b.MarkLoaded()
	equal, err := c.Equal(a, b)
	if err != nil {
		t.Fatal(err)
	}
	if !equal {
		t.Errorf("Equal() = false, want true")
	}
}
