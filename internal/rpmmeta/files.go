package rpmmeta

import (
	"strconv"
	"strings"

	"github.com/stapelberg/buildreqcheck"
	"golang.org/x/xerrors"
)

// fileFieldSep is chosen to be a byte rpm's own output never contains (file
// digests and mode strings are all printable ASCII), avoiding any need to
// escape fields. Records are separated by newlines.
const (
	fileFieldSep = "\x1f"
)

// fileQueryFormat iterates rpm's array tags with the "[...]" syntax, once
// per file, emitting one line of fileFieldSep-separated fields. It covers
// every per-file field spec.md §4.2 lists for the PC file-comparison tuple,
// including the SELinux context, capability, color, and the per-file
// dependency arrays, so a single rpm invocation populates the whole
// FileMeta tuple; there is no separate query for the dependency fields.
var fileQueryFormat = strings.Join([]string{
	"%{FILENAMES}",
	"%{FILESIZES}",
	"%{FILEMODES:octal}",
	"%{FILEUSERNAME}",
	"%{FILEGROUPNAME}",
	"%{FILEDIGESTS}",
	"%{FILELINKTOS}",
	"%{FILERDEVS}",
	"%{FILEDEVICES}",
	"%{FILELANGS}",
	"%{FILEFLAGS}",
	"%{FILEVERIFYFLAGS}",
	"%{FILESTATES}",
	"%{FILENLINKS}",
	"%{FILECAPS}",
	"%{FILECOLORS}",
	"%{FILECONTEXTS}",
	"%{FILEPROVIDE}",
	"%{FILEREQUIRE}",
	"%{FILEDEPENDSX}",
}, fileFieldSep) + "\n"

// fileRecordFields is the number of fileFieldSep-separated fields
// fileQueryFormat produces per file record.
const fileRecordFields = 20

// Files returns the per-file metadata table for pkgPath, keyed by path.
func (r *Reader) Files(pkgPath string) (map[string]buildreqcheck.FileMeta, error) {
	out, err := r.run("-qp", "--queryformat", "["+fileQueryFormat+"]", pkgPath)
	if err != nil {
		return nil, err
	}
	files := make(map[string]buildreqcheck.FileMeta)
	for _, line := range strings.Split(strings.TrimRight(out, "\n"), "\n") {
		if line == "" {
			continue
		}
		fields := strings.Split(line, fileFieldSep)
		if len(fields) != fileRecordFields {
			return nil, xerrors.Errorf("unexpected file record in %s: got %d fields, want %d (%q)", pkgPath, len(fields), fileRecordFields, line)
		}
		path := fields[0]
		size, _ := strconv.ParseInt(fields[1], 10, 64)
		mode, err := parseOctal(fields[2])
		if err != nil {
			return nil, xerrors.Errorf("parsing mode for %s in %s: %w", path, pkgPath, err)
		}
		rdev, _ := strconv.ParseUint(fields[7], 10, 32)
		device, _ := strconv.ParseUint(fields[8], 10, 32)
		flags, _ := strconv.ParseInt(fields[10], 10, 32)
		verifyFlags, _ := strconv.ParseInt(fields[11], 10, 32)
		state, _ := strconv.ParseInt(fields[12], 10, 32)
		nlinks, _ := strconv.ParseInt(fields[13], 10, 32)
		color, _ := strconv.ParseInt(fields[15], 10, 32)
		files[path] = buildreqcheck.FileMeta{
			Size:        size,
			Mode:        mode,
			User:        fields[3],
			Group:       fields[4],
			Digest:      fields[5],
			LinkTo:      fields[6],
			Rdev:        uint32(rdev),
			Device:      uint32(device),
			Lang:        fields[9],
			Flags:       int32(flags),
			VerifyFlags: int32(verifyFlags),
			State:       int32(state),
			Nlinks:      int32(nlinks),
			Caps:        fields[14],
			Color:       int32(color),
			Contexts:    fields[16],
			Provides:    splitNonEmpty(fields[17]),
			Requires:    splitNonEmpty(fields[18]),
			Depends:     splitNonEmpty(fields[19]),
		}
	}
	return files, nil
}

func splitNonEmpty(s string) []string {
	if s == "" || s == "(none)" {
		return nil
	}
	return strings.Fields(s)
}
