package content

import (
	"bytes"
	"os/exec"
	"path/filepath"
	"strings"

	"golang.org/x/xerrors"
)

// objdumpBin is the disassembler equalELF runs, resolved via PATH.
var objdumpBin = "objdump"

// equalELF compares the textual disassembly of a and b, with each file's own
// basename stripped from the tool's output first. This deliberately ignores the embedded build-id and any debug-info offsets that
// move around between otherwise-identical builds without the disassembly
// itself changing — exactly the noise that makes ELF outputs look
// non-reproducible when they are not.
func (c *Comparator) equalELF(a, b string) (bool, error) {
	da, err := disassemble(a)
	if err != nil {
		return false, err
	}
	db, err := disassemble(b)
	if err != nil {
		return false, err
	}
	sa := stripFilenamePrefix(da, a)
	sb := stripFilenamePrefix(db, b)
	if sa != sb {
		c.warn(a, "disassembly differs between %s and %s", a, b)
		return false, nil
	}
	return true, nil
}

// disassemble runs the external disassembler (objdump -d) over fn.
func disassemble(fn string) (string, error) {
	cmd := exec.Command(objdumpBin, "-d", "--no-show-raw-insn", fn)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", xerrors.Errorf("disassemble %s: %s: %w (stderr: %s)", fn, objdumpBin, err, stderr.String())
	}
	return stdout.String(), nil
}

// stripFilenamePrefix removes every occurrence of fn's basename (and, for
// robustness across tool versions, its full path) from out, so that two
// disassemblies of files living at different paths/names compare equal.
func stripFilenamePrefix(out, fn string) string {
	base := filepath.Base(fn)
	s := strings.ReplaceAll(out, fn, "")
	s = strings.ReplaceAll(s, base, "")
	return s
}
