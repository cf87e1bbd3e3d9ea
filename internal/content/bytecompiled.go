package content

import (
	"bytes"
	"os"

	"golang.org/x/xerrors"
)

// byteCompiledHeaderSize is the number of leading bytes to skip: a 4-byte
// magic number (which already encodes the bytecode format revision) plus
// the 4-byte field after it, which holds the source mtime in the 8-byte
// header layout. In the 16-byte header layout that field is a bit field,
// and the mtime or hash that follows it is compared like the rest of the
// file.
const byteCompiledHeaderSize = 8

// equalByteCompiled reads both files and compares everything after the
// leading header bytes.
func (c *Comparator) equalByteCompiled(a, b string) (bool, error) {
	ba, err := os.ReadFile(a)
	if err != nil {
		return false, xerrors.Errorf("read %s: %w", a, err)
	}
	bb, err := os.ReadFile(b)
	if err != nil {
		return false, xerrors.Errorf("read %s: %w", b, err)
	}
	ra := skipHeader(ba)
	rb := skipHeader(bb)
	if !bytes.Equal(ra, rb) {
		c.warn(a, "byte-compiled contents differ between %s and %s", a, b)
		return false, nil
	}
	return true, nil
}

func skipHeader(b []byte) []byte {
	if len(b) <= byteCompiledHeaderSize {
		return nil
	}
	return b[byteCompiledHeaderSize:]
}
