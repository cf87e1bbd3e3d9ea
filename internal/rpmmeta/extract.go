package rpmmeta

import (
	"bytes"
	"io"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/cavaliercoder/go-cpio"
	"github.com/google/renameio"
	"github.com/klauspost/compress/zstd"
	"github.com/klauspost/pgzip"
	"golang.org/x/xerrors"
)

// Extractor extracts selected paths from a binary package into a directory.
// RPM payloads are a compressed cpio stream; rather than parsing the RPM
// lead/signature/header sections ourselves to locate the payload offset, we
// pipe rpm2cpio's output (the standard tool for exactly this) into a
// cavaliercoder/go-cpio reader: shell out for the hard part, parse the easy
// part in Go.
type Extractor struct {
	// RPM2CPIOBin defaults to "rpm2cpio".
	RPM2CPIOBin string
}

// NewExtractor returns an Extractor using the system rpm2cpio binary.
func NewExtractor() *Extractor { return &Extractor{RPM2CPIOBin: "rpm2cpio"} }

func (e *Extractor) bin() string {
	if e.RPM2CPIOBin != "" {
		return e.RPM2CPIOBin
	}
	return "rpm2cpio"
}

// Extract extracts the given member paths from pkgPath's payload into
// destDir, preserving each path's basename directly under destDir (the
// caller compares file contents by format, not by directory layout).
// Member paths are absolute, as in the package's file list (e.g.
// "/usr/bin/foo").
// Extract fails if any requested path is missing from the payload.
func (e *Extractor) Extract(pkgPath string, paths []string, destDir string) error {
	want := make(map[string]bool, len(paths))
	for _, p := range paths {
		want[p] = true
	}

	cpioStream, err := e.rpm2cpio(pkgPath)
	if err != nil {
		return err
	}

	r := cpio.NewReader(bytes.NewReader(cpioStream))
	found := make(map[string]bool, len(paths))
	for {
		hdr, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return xerrors.Errorf("reading cpio payload of %s: %w", pkgPath, err)
		}
		name := normalizeCpioName(hdr.Name)
		if !want[name] {
			continue
		}
		data, err := io.ReadAll(r)
		if err != nil {
			return xerrors.Errorf("reading %s from %s: %w", name, pkgPath, err)
		}
		dest := filepath.Join(destDir, filepath.Base(name))
		if err := renameio.WriteFile(dest, data, os.FileMode(hdr.Mode)&0777); err != nil {
			return xerrors.Errorf("writing %s: %w", dest, err)
		}
		found[name] = true
	}

	var missing []string
	for _, p := range paths {
		if !found[p] {
			missing = append(missing, p)
		}
	}
	if len(missing) > 0 {
		return xerrors.Errorf("unpack %s: requested path(s) not present in payload: %v", pkgPath, missing)
	}
	return nil
}

// normalizeCpioName drops the leading "." of the conventional "./" prefix
// RPM's cpio payload entries carry, so "./usr/bin/foo" becomes the absolute
// path "/usr/bin/foo" that the package's file list uses.
func normalizeCpioName(name string) string {
	if len(name) >= 2 && name[0] == '.' && name[1] == '/' {
		return name[1:]
	}
	return name
}

// rpm2cpio shells out to rpm2cpio and decompresses its output if it is
// itself compressed (older rpm builds emit an already-raw cpio stream;
// newer ones may still be gzip- or zstd-compressed depending on
// %_binary_payload, in which case rpm2cpio passes the compressed bytes
// through and expects the caller to finish the job, mirroring what
// "rpm2cpio | cpio" pipelines do today for zstd payloads before cpio(1)
// gained native zstd support).
func (e *Extractor) rpm2cpio(pkgPath string) ([]byte, error) {
	cmd := exec.Command(e.bin(), pkgPath)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, xerrors.Errorf("%s %s: %w (stderr: %s)", e.bin(), pkgPath, err, stderr.String())
	}
	raw := stdout.Bytes()
	switch detectCompression(raw) {
	case compressionGzip:
		zr, err := pgzip.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, xerrors.Errorf("gzip header in %s payload: %w", pkgPath, err)
		}
		defer zr.Close()
		return io.ReadAll(zr)
	case compressionZstd:
		zr, err := zstd.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, xerrors.Errorf("zstd header in %s payload: %w", pkgPath, err)
		}
		defer zr.Close()
		return io.ReadAll(zr)
	default:
		return raw, nil
	}
}

type compression int

const (
	compressionNone compression = iota
	compressionGzip
	compressionZstd
)

func detectCompression(b []byte) compression {
	switch {
	case len(b) >= 2 && b[0] == 0x1f && b[1] == 0x8b:
		return compressionGzip
	case len(b) >= 4 && b[0] == 0x28 && b[1] == 0xb5 && b[2] == 0x2f && b[3] == 0xfd:
		return compressionZstd
	default:
		return compressionNone
	}
}
