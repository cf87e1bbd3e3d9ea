// Package rpmmeta reads package metadata and extracts archive members from
// RPM binary packages: given a package path, it yields the tag/value
// header, the per-file metadata arrays, and the requirements; and it
// extracts selected member paths from a binary package's payload into a
// directory. Both shell out to the real RPM toolchain (rpm, rpm2cpio)
// rather than re-implementing RPM's header/lead binary format in Go.
package rpmmeta

import (
	"bytes"
	"os/exec"
	"strconv"
	"strings"

	"github.com/stapelberg/buildreqcheck"
	"golang.org/x/xerrors"
)

// headerTags is the fixed set of non-array RPM tags this tool ever needs,
// covering both the comparison-relevant tags and the denylisted ones
// (which we still read, so callers can log what was skipped).
var headerTags = []string{
	"NAME", "VERSION", "RELEASE", "EPOCH", "ARCH", "SOURCERPM",
	"LICENSE", "GROUP", "SUMMARY", "DESCRIPTION", "URL", "VENDOR",
	"PACKAGER", "DISTRIBUTION",
	"PREIN", "POSTIN", "PREUN", "POSTUN", "PRETRANS", "POSTTRANS",
	"PREINPROG", "POSTINPROG", "PREUNPROG", "POSTUNPROG",
	"PROVIDENAME", "REQUIRENAME", "CONFLICTNAME", "OBSOLETENAME",
	"CHANGELOGTEXT",
	// denylisted in PC's header phase, but still read for observability:
	"SIZE", "ARCHIVESIZE", "BUILDTIME", "PACKAGESIZE", "HEADERIMMUTABLE",
	"HDRID", "PKGID", "SIGSIZE",
}

// Reader reads package metadata via the `rpm` command-line tool.
type Reader struct {
	// Bin is the path to the rpm binary, defaulting to "rpm".
	Bin string
}

// New returns a Reader using the system rpm binary.
func New() *Reader { return &Reader{Bin: "rpm"} }

func (r *Reader) bin() string {
	if r.Bin != "" {
		return r.Bin
	}
	return "rpm"
}

// queryFormat builds an rpm --queryformat string that prints one
// "TAG=value\n" line per tag in tags, using plain %{TAG} references; rpm
// prints the "(none)" sentinel for a tag the package does not carry.
func queryFormat(tags []string) string {
	var b strings.Builder
	for _, t := range tags {
		b.WriteString(t)
		b.WriteString("=%{")
		b.WriteString(t)
		b.WriteString("}\\n")
	}
	return b.String()
}

// notFoundSentinel is what rpm prints for a tag that does not apply to this
// package (e.g. no %post script). internal/pkgcompare treats a tag missing
// from one header as equal to this sentinel.
const notFoundSentinel = "(none)"

// Header runs the metadata reader and returns a tag -> value map. Tags
// rpm reports as notFoundSentinel are still included in the map rather
// than dropped; internal/pkgcompare compares them like any other value.
func (r *Reader) Header(pkgPath string) (map[string]string, error) {
	out, err := r.run("-qp", "--queryformat", queryFormat(headerTags), pkgPath)
	if err != nil {
		return nil, err
	}
	header := make(map[string]string, len(headerTags))
	for _, line := range strings.Split(out, "\n") {
		if line == "" {
			continue
		}
		idx := strings.IndexByte(line, '=')
		if idx == -1 {
			continue
		}
		header[line[:idx]] = line[idx+1:]
	}
	return header, nil
}

// Requires returns the package's declared requirements, with internal
// rpmlib() capability markers already filtered out.
func (r *Reader) Requires(srcPkgPath string) (buildreqcheck.RequirementSet, error) {
	out, err := r.run("-qp", "--requires", srcPkgPath)
	if err != nil {
		return nil, err
	}
	var reqs []buildreqcheck.Requirement
	for _, line := range strings.Split(strings.TrimRight(out, "\n"), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		reqs = append(reqs, buildreqcheck.Requirement(line))
	}
	return buildreqcheck.NewRequirementSet(buildreqcheck.FilterCapabilities(reqs)...), nil
}

// Name returns the package's %{NAME} tag.
func (r *Reader) Name(pkgPath string) (string, error) {
	out, err := r.run("-qp", "--queryformat", "%{NAME}", pkgPath)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

func (r *Reader) run(args ...string) (string, error) {
	cmd := exec.Command(r.bin(), args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", xerrors.Errorf("%s %s: %w (stderr: %s)", r.bin(), strings.Join(args, " "), err, stderr.String())
	}
	return stdout.String(), nil
}

// parseOctal parses the fixed-width octal mode strings rpm's
// %{FILEMODES:octal} formatter prints.
func parseOctal(s string) (uint32, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 8, 32)
	if err != nil {
		return 0, err
	}
	return uint32(v), nil
}
