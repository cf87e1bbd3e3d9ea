// Package content implements the content comparator: it decides whether
// two files are semantically equal given their detected format,
// dispatching to a format-specific comparator that strips exactly the kind
// of non-semantic noise (embedded timestamps, build-ids, archive member
// ordering) that would otherwise make every rebuild look different.
package content

import (
	"os"

	"github.com/stapelberg/buildreqcheck"
	"github.com/stapelberg/buildreqcheck/internal/classify"
	"golang.org/x/xerrors"
)

// Warning is recorded by Comparator for non-fatal decisions (format
// mismatches, unrecognized formats) so the caller (internal/pkgcompare) can
// surface them for observability without CC itself doing any logging.
type Warning struct {
	Path    string
	Message string
}

// Comparator decides file-level semantic equality. It is not safe for
// concurrent use by itself, though the driver never calls it concurrently.
type Comparator struct {
	classifier *classify.Classifier
	warnings   []Warning
}

// New returns a Comparator using the default external classifier and
// inspection tools.
func New() *Comparator {
	return &Comparator{classifier: classify.New()}
}

// Warnings returns every warning recorded since the Comparator was created.
func (c *Comparator) Warnings() []Warning { return c.warnings }

func (c *Comparator) warn(path, format string, args ...interface{}) {
	c.warnings = append(c.warnings, Warning{Path: path, Message: xerrors.Errorf(format, args...).Error()})
}

// Equal decides whether a and b are semantically equal:
//   - files are classified independently; if the two classifications
//     disagree, Equal returns false with a warning ("cross-format
//     comparison")
//   - an unrecognized format returns false with a warning
//   - otherwise the format-specific comparator decides
//
// A fatal error is returned only when an external inspector tool itself
// fails (non-zero exit): that aborts the whole run, it does not just mark
// two files unequal.
func (c *Comparator) Equal(a, b string) (bool, error) {
	if err := mustExist(a); err != nil {
		return false, err
	}
	if err := mustExist(b); err != nil {
		return false, err
	}

	fa, descA, err := c.classifier.Classify(a)
	if err != nil {
		return false, xerrors.Errorf("classifying %s: %w", a, err)
	}
	fb, descB, err := c.classifier.Classify(b)
	if err != nil {
		return false, xerrors.Errorf("classifying %s: %w", b, err)
	}

	if fa != fb {
		c.warn(a, "format mismatch: %s is %q, %s is %q", a, descA, b, descB)
		return false, nil
	}

	switch fa {
	case buildreqcheck.FormatELF:
		return c.equalELF(a, b)
	case buildreqcheck.FormatTypelib:
		return c.equalTypelib(a, b)
	case buildreqcheck.FormatHTML:
		return c.equalHTML(a, b)
	case buildreqcheck.FormatByteCompiled:
		return c.equalByteCompiled(a, b)
	case buildreqcheck.FormatZip:
		return c.equalZip(a, b)
	case buildreqcheck.FormatGzip:
		return c.equalGzip(a, b)
	default:
		c.warn(a, "unrecognized format for %s (%q)", a, descA)
		return false, nil
	}
}

func mustExist(path string) error {
	if _, err := os.Stat(path); err != nil {
		return xerrors.Errorf("stat %s: %w", path, err)
	}
	return nil
}
