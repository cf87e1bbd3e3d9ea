package content

import (
	"archive/zip"
	"compress/gzip"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	fn := filepath.Join(dir, name)
	if err := os.WriteFile(fn, data, 0644); err != nil {
		t.Fatal(err)
	}
	return fn
}

func TestEqualByteCompiledIgnoresHeader(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.pyc", append([]byte{0x55, 0x0d, 0x0d, 0x0a, 1, 2, 3, 4}, []byte("payload")...))
	b := writeFile(t, dir, "b.pyc", append([]byte{0x55, 0x0d, 0x0d, 0x0a, 9, 9, 9, 9}, []byte("payload")...))
	c := &Comparator{classifier: nil}
	eq, err := c.equalByteCompiled(a, b)
	if err != nil {
		t.Fatal(err)
	}
	if !eq {
		t.Errorf("equalByteCompiled() = false, want true (only the header bytes differ)")
	}
}

func TestEqualByteCompiledDetectsPayloadDiff(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.pyc", append([]byte{0, 0, 0, 0}, []byte("payload one")...))
	b := writeFile(t, dir, "b.pyc", append([]byte{0, 0, 0, 0}, []byte("payload two")...))
	c := &Comparator{}
	eq, err := c.equalByteCompiled(a, b)
	if err != nil {
		t.Fatal(err)
	}
	if eq {
		t.Errorf("equalByteCompiled() = true, want false (payload differs)")
	}
	if len(c.Warnings()) != 1 {
		t.Errorf("expected a warning to be recorded, got %d", len(c.Warnings()))
	}
}

func writeZip(t *testing.T, fn string, members map[string]string, mtime time.Time) {
	t.Helper()
	f, err := os.Create(fn)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	zw := zip.NewWriter(f)
	// Members are written in reversed map-iteration order, which varies
	// between calls, so two archives built from the same map need not list
	// their members in the same order. Every member carries mtime.
	names := make([]string, 0, len(members))
	for name := range members {
		names = append(names, name)
	}
	for i, j := 0, len(names)-1; i < j; i, j = i+1, j-1 {
		names[i], names[j] = names[j], names[i]
	}
	for _, name := range names {
		w, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate, Modified: mtime})
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte(members[name])); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestEqualZipIgnoresOrderingAndTimestamps(t *testing.T) {
	dir := t.TempDir()
	members := map[string]string{
		"a.txt": "hello",
		"b.txt": "world",
	}
	a := filepath.Join(dir, "a.zip")
	b := filepath.Join(dir, "b.zip")
	writeZip(t, a, members, time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC))
	writeZip(t, b, members, time.Date(2021, 6, 1, 12, 0, 0, 0, time.UTC))

	c := &Comparator{}
	eq, err := c.equalZip(a, b)
	if err != nil {
		t.Fatal(err)
	}
	if !eq {
		t.Errorf("equalZip() = false, want true (same members and contents)")
	}
}

func TestEqualZipDetectsMemberDiff(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.zip")
	b := filepath.Join(dir, "b.zip")
	mtime := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	writeZip(t, a, map[string]string{"a.txt": "hello"}, mtime)
	writeZip(t, b, map[string]string{"a.txt": "goodbye"}, mtime)

	c := &Comparator{}
	eq, err := c.equalZip(a, b)
	if err != nil {
		t.Fatal(err)
	}
	if eq {
		t.Errorf("equalZip() = true, want false (contents differ)")
	}
}

func writeGzip(t *testing.T, fn, name, payload string) {
	t.Helper()
	f, err := os.Create(fn)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	zw, err := gzip.NewWriterLevel(f, gzip.BestSpeed)
	if err != nil {
		t.Fatal(err)
	}
	zw.Name = name
	if _, err := zw.Write([]byte(payload)); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestEqualGzipIgnoresEmbeddedName(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.gz")
	b := filepath.Join(dir, "b.gz")
	writeGzip(t, a, "build-20200101.log", "same contents")
	writeGzip(t, b, "build-20380101.log", "same contents")

	c := &Comparator{}
	eq, err := c.equalGzip(a, b)
	if err != nil {
		t.Fatal(err)
	}
	if !eq {
		t.Errorf("equalGzip() = false, want true (only the embedded name/mtime differ)")
	}
}

func TestEqualHTMLIgnoresComments(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.html", []byte(`<html><!-- generated 2020-01-01 --><body><p>hi</p></body></html>`))
	b := writeFile(t, dir, "b.html", []byte(`<html><!-- generated 2038-01-01 --><body><p>hi</p></body></html>`))

	c := &Comparator{}
	eq, err := c.equalHTML(a, b)
	if err != nil {
		t.Fatal(err)
	}
	if !eq {
		t.Errorf("equalHTML() = false, want true (only the comment timestamp differs)")
	}
}

func TestEqualHTMLDetectsStructuralDiff(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.html", []byte(`<html><body><p>hi</p></body></html>`))
	b := writeFile(t, dir, "b.html", []byte(`<html><body><p>bye</p></body></html>`))

	c := &Comparator{}
	eq, err := c.equalHTML(a, b)
	if err != nil {
		t.Fatal(err)
	}
	if eq {
		t.Errorf("equalHTML() = true, want false (text content differs)")
	}
}

func TestMustExist(t *testing.T) {
	dir := t.TempDir()
	if err := mustExist(filepath.Join(dir, "absent")); err == nil {
		t.Errorf("mustExist() = nil, want error for a missing file")
	}
	present := writeFile(t, dir, "present", []byte("x"))
	if err := mustExist(present); err != nil {
		t.Errorf("mustExist() = %v, want nil", err)
	}
}
