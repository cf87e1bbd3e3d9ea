package rpmmeta

import (
	"bytes"
	"compress/gzip"
	"os"
	"path/filepath"
	"testing"

	"github.com/cavaliercoder/go-cpio"
)

// buildCPIO returns a raw cpio archive (newc format) containing the given
// files.
func buildCPIO(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := cpio.NewWriter(&buf)
	for name, contents := range files {
		hdr := &cpio.Header{
			Name: "./" + name,
			Mode: 0100644,
			Size: int64(len(contents)),
		}
		if err := w.WriteHeader(hdr); err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte(contents)); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// fakeRPM2CPIO writes a shell script standing in for rpm2cpio: it ignores
// its argument and emits a fixed, possibly gzip-compressed, cpio stream.
func fakeRPM2CPIO(t *testing.T, raw []byte, gzipIt bool) string {
	t.Helper()
	dir := t.TempDir()
	payload := raw
	if gzipIt {
		var buf bytes.Buffer
		zw := gzip.NewWriter(&buf)
		if _, err := zw.Write(raw); err != nil {
			t.Fatal(err)
		}
		if err := zw.Close(); err != nil {
			t.Fatal(err)
		}
		payload = buf.Bytes()
	}
	payloadFn := filepath.Join(dir, "payload.bin")
	if err := os.WriteFile(payloadFn, payload, 0644); err != nil {
		t.Fatal(err)
	}
	script := filepath.Join(dir, "rpm2cpio")
	contents := "#!/bin/sh\ncat " + payloadFn + "\n"
	if err := os.WriteFile(script, []byte(contents), 0755); err != nil {
		t.Fatal(err)
	}
	return script
}

func TestExtractorExtractPlain(t *testing.T) {
	raw := buildCPIO(t, map[string]string{
		"usr/lib/libfoo.so.1": "elfcontents",
		"usr/bin/foo":         "bincontents",
	})
	e := &Extractor{RPM2CPIOBin: fakeRPM2CPIO(t, raw, false)}
	destDir := t.TempDir()
	if err := e.Extract("unused.rpm", []string{"/usr/lib/libfoo.so.1"}, destDir); err != nil {
		t.Fatal(err)
	}
	got, err := os.ReadFile(filepath.Join(destDir, "libfoo.so.1"))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "elfcontents" {
		t.Errorf("extracted contents = %q, want %q", got, "elfcontents")
	}
}

func TestExtractorExtractGzipped(t *testing.T) {
	raw := buildCPIO(t, map[string]string{"a": "payload"})
	e := &Extractor{RPM2CPIOBin: fakeRPM2CPIO(t, raw, true)}
	destDir := t.TempDir()
	if err := e.Extract("unused.rpm", []string{"/a"}, destDir); err != nil {
		t.Fatal(err)
	}
	got, err := os.ReadFile(filepath.Join(destDir, "a"))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "payload" {
		t.Errorf("extracted contents = %q, want %q", got, "payload")
	}
}

func TestExtractorMissingPathFails(t *testing.T) {
	raw := buildCPIO(t, map[string]string{"a": "payload"})
	e := &Extractor{RPM2CPIOBin: fakeRPM2CPIO(t, raw, false)}
	destDir := t.TempDir()
	err := e.Extract("unused.rpm", []string{"does-not-exist"}, destDir)
	if err == nil {
		t.Fatal("expected error for missing path, got nil")
	}
}

func TestDetectCompression(t *testing.T) {
	if detectCompression([]byte{0x1f, 0x8b, 0, 0}) != compressionGzip {
		t.Errorf("gzip magic not detected")
	}
	if detectCompression([]byte{0x28, 0xb5, 0x2f, 0xfd}) != compressionZstd {
		t.Errorf("zstd magic not detected")
	}
	if detectCompression([]byte("070701")) != compressionNone {
		t.Errorf("raw newc cpio magic misdetected as compressed")
	}
}
