package content

import (
	"bytes"
	"os/exec"

	"golang.org/x/xerrors"
)

// typelibDumperBin is the GObject-introspection typelib dumper, resolved
// via PATH.
var typelibDumperBin = "g-ir-inspect"

// equalTypelib emits the type-library dump (all symbols) for a and b and
// compares the text.
func (c *Comparator) equalTypelib(a, b string) (bool, error) {
	da, err := dumpTypelib(a)
	if err != nil {
		return false, err
	}
	db, err := dumpTypelib(b)
	if err != nil {
		return false, err
	}
	if da != db {
		c.warn(a, "typelib dump differs between %s and %s", a, b)
		return false, nil
	}
	return true, nil
}

func dumpTypelib(fn string) (string, error) {
	cmd := exec.Command(typelibDumperBin, "--print-all", fn)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", xerrors.Errorf("dump typelib %s: %s: %w (stderr: %s)", fn, typelibDumperBin, err, stderr.String())
	}
	return stdout.String(), nil
}
