package content

import (
	"bytes"
	"io"
	"os"

	"github.com/klauspost/pgzip"
	"golang.org/x/xerrors"
)

// equalGzip compares the decompressed contents of a and b. The gzip
// container's own original-name/mtime header fields are never part of the
// decompressed stream, so no explicit skipping is needed beyond
// decompressing through the standard reader. Decompression uses
// klauspost/pgzip rather than compress/gzip: payloads embedded in binary
// packages can be large, and pgzip parallelizes the inflate.
func (c *Comparator) equalGzip(a, b string) (bool, error) {
	da, err := decompressGzip(a)
	if err != nil {
		return false, err
	}
	db, err := decompressGzip(b)
	if err != nil {
		return false, err
	}
	if !bytes.Equal(da, db) {
		c.warn(a, "decompressed contents differ between %s and %s", a, b)
		return false, nil
	}
	return true, nil
}

func decompressGzip(fn string) ([]byte, error) {
	f, err := os.Open(fn)
	if err != nil {
		return nil, xerrors.Errorf("open %s: %w", fn, err)
	}
	defer f.Close()
	zr, err := pgzip.NewReader(f)
	if err != nil {
		return nil, xerrors.Errorf("gzip header %s: %w", fn, err)
	}
	defer zr.Close()
	b, err := io.ReadAll(zr)
	if err != nil {
		return nil, xerrors.Errorf("decompress %s: %w", fn, err)
	}
	return b, nil
}
