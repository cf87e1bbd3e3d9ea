// Package classify implements file-type classification: it shells out to
// the system's libmagic-backed `file` command and matches the textual
// description it emits against a fixed set of regexes to produce one of
// the content package's tagged file-format variants, rather than embedding
// a magic-number database in Go.
package classify

import (
	"bytes"
	"os/exec"
	"regexp"
	"strings"

	"github.com/stapelberg/buildreqcheck"
	"golang.org/x/xerrors"
)

// formatPattern pairs a format with the regex that recognizes it in `file
// -b`'s output. Order matters: the first match wins, and byte-compiled (a
// narrower, more specific description) is checked before more general
// patterns could shadow it.
type formatPattern struct {
	format  buildreqcheck.FileFormat
	pattern *regexp.Regexp
}

var patterns = []formatPattern{
	{buildreqcheck.FormatELF, regexp.MustCompile(`^ELF \d`)},
	{buildreqcheck.FormatTypelib, regexp.MustCompile(`GObject introspection binary`)},
	{buildreqcheck.FormatByteCompiled, regexp.MustCompile(`(?i)python.*byte-?compiled|compiled python`)},
	{buildreqcheck.FormatHTML, regexp.MustCompile(`HTML document`)},
	{buildreqcheck.FormatZip, regexp.MustCompile(`^(Zip archive data|Java archive data|JAR archive data)`)},
	{buildreqcheck.FormatGzip, regexp.MustCompile(`^gzip compressed data`)},
}

// Classifier runs the external magic-based classifier tool against a file
// and maps its output to a FileFormat via the regexes in patterns.
type Classifier struct {
	// Bin is the path to the `file` binary. Defaults to "file" (resolved via
	// PATH) when empty.
	Bin string
}

// New returns a Classifier using the system's `file` command.
func New() *Classifier {
	return &Classifier{Bin: "file"}
}

func (c *Classifier) bin() string {
	if c.Bin != "" {
		return c.Bin
	}
	return "file"
}

// Classify determines path's format. It returns FormatUnknown, not an
// error, when the magic tool runs successfully but recognizes no pattern:
// an unrecognized format is a non-fatal "different" outcome, not a
// comparator failure. A non-zero exit from the classifier itself is a
// fatal error naming the tool, matching the content comparator's failure
// policy for external inspectors.
func (c *Classifier) Classify(path string) (buildreqcheck.FileFormat, string, error) {
	cmd := exec.Command(c.bin(), "-b", path)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return buildreqcheck.FormatUnknown, "", xerrors.Errorf("classify %s: %s: %w (stderr: %s)", path, c.bin(), err, stderr.String())
	}
	desc := strings.TrimSpace(stdout.String())
	return matchDescription(desc), desc, nil
}

// matchDescription maps a `file -b`-style description string to a
// FileFormat, returning FormatUnknown if no pattern matches.
func matchDescription(desc string) buildreqcheck.FileFormat {
	for _, fp := range patterns {
		if fp.pattern.MatchString(desc) {
			return fp.format
		}
	}
	return buildreqcheck.FormatUnknown
}

// ClassifyDescription exposes matchDescription for callers that already
// have a description string (e.g. tests, or a future classifier backed by a
// library rather than a subprocess).
func ClassifyDescription(desc string) buildreqcheck.FileFormat {
	return matchDescription(desc)
}
