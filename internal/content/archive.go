package content

import (
	"archive/zip"
	"bytes"
	"io"
	"sort"

	"golang.org/x/exp/mmap"
	"golang.org/x/xerrors"
)

// equalZip unmarshals a and b as zip (or jar, which is zip with different
// conventional contents) archives, compares the set of member names, then
// compares each member's bytes. Archive-level
// timestamps and member ordering are ignored: only names and content count.
//
// Both archives are opened via mmap rather than read into memory whole: a
// built package's jar can be large, and zip.NewReader only ever touches the
// central directory and the one member being compared at a time.
func (c *Comparator) equalZip(a, b string) (bool, error) {
	ra, err := mmap.Open(a)
	if err != nil {
		return false, xerrors.Errorf("open zip %s: %w", a, err)
	}
	defer ra.Close()
	za, err := zip.NewReader(ra, ra.Len())
	if err != nil {
		return false, xerrors.Errorf("open zip %s: %w", a, err)
	}
	rb, err := mmap.Open(b)
	if err != nil {
		return false, xerrors.Errorf("open zip %s: %w", b, err)
	}
	defer rb.Close()
	zb, err := zip.NewReader(rb, rb.Len())
	if err != nil {
		return false, xerrors.Errorf("open zip %s: %w", b, err)
	}

	ma := zipMembers(za.File)
	mb := zipMembers(zb.File)

	namesA := sortedKeys(ma)
	namesB := sortedKeys(mb)
	if !stringSlicesEqual(namesA, namesB) {
		c.warn(a, "zip member set differs between %s and %s", a, b)
		return false, nil
	}

	for _, name := range namesA {
		ca, err := readZipMember(ma[name])
		if err != nil {
			return false, xerrors.Errorf("read %s from %s: %w", name, a, err)
		}
		cb, err := readZipMember(mb[name])
		if err != nil {
			return false, xerrors.Errorf("read %s from %s: %w", name, b, err)
		}
		if !bytes.Equal(ca, cb) {
			c.warn(a, "zip member %q differs between %s and %s", name, a, b)
			return false, nil
		}
	}
	return true, nil
}

func zipMembers(files []*zip.File) map[string]*zip.File {
	m := make(map[string]*zip.File, len(files))
	for _, f := range files {
		m[f.Name] = f
	}
	return m
}

func readZipMember(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func sortedKeys(m map[string]*zip.File) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
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
