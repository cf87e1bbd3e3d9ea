package sandbox

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/template"

	"github.com/google/renameio"
	"github.com/orcaman/writerseeker"
	"golang.org/x/xerrors"
)

// MarkerSpec describes the relational metadata a synthesized marker
// package carries: a minimal binary package carrying only relational
// metadata (Provides/Conflicts/Obsoletes), no files.
type MarkerSpec struct {
	Name      string
	Version   string
	Release   string
	Provides  []string
	Conflicts []string
	Obsoletes []string
}

var markerSpecTemplate = template.Must(template.New("marker").Parse(`Name: {{.Name}}
Version: {{.Version}}
Release: {{.Release}}
Summary: synthesized marker package
License: none
BuildArch: noarch
{{range .Provides}}Provides: {{.}}
{{end}}{{range .Conflicts}}Conflicts: {{.}}
{{end}}{{range .Obsoletes}}Obsoletes: {{.}}
{{end}}
%description
Marker package synthesized to pin the presence or absence of requirements
during build requirement minimization. Carries no files.

%files
`))

// Rebuilder is the narrow view of the rebuilder external collaborator the
// Orchestrator depends on to turn a MarkerSpec into an installable package.
type Rebuilder interface {
	BuildMarker(ctx context.Context, spec MarkerSpec, destDir string) (string, error)
}

// RPMBuilder renders a marker spec file and invokes rpmbuild to turn it
// into a noarch RPM. Rendering happens into an in-memory writerseeker
// buffer first so the spec's content digest (used to make the marker's
// Release field reproducible-but-unique across a run) can be computed
// without writing the file twice.
type RPMBuilder struct {
	// Bin is the path to the rpmbuild binary, defaulting to "rpmbuild".
	Bin string
}

// NewRPMBuilder returns an RPMBuilder using the system rpmbuild binary.
func NewRPMBuilder() *RPMBuilder { return &RPMBuilder{Bin: "rpmbuild"} }

func (b *RPMBuilder) bin() string {
	if b.Bin != "" {
		return b.Bin
	}
	return "rpmbuild"
}

// BuildMarker renders spec, assigns it a Release derived from the digest of
// the rendered spec (so identical relational metadata always yields the
// same Release), writes the spec into destDir, and runs rpmbuild -bb
// against it, returning the path to the resulting topdir's RPMS tree.
func (b *RPMBuilder) BuildMarker(ctx context.Context, spec MarkerSpec, destDir string) (string, error) {
	ws := &writerseeker.WriterSeeker{}
	if err := markerSpecTemplate.Execute(ws, spec); err != nil {
		return "", xerrors.Errorf("rendering marker spec %s: %w", spec.Name, err)
	}

	h := sha256.New()
	if _, err := io.Copy(h, ws.Reader()); err != nil {
		return "", xerrors.Errorf("digesting marker spec %s: %w", spec.Name, err)
	}
	spec.Release = fmt.Sprintf("%x", h.Sum(nil))[:12]

	var rendered []byte
	{
		ws2 := &writerseeker.WriterSeeker{}
		if err := markerSpecTemplate.Execute(ws2, spec); err != nil {
			return "", xerrors.Errorf("re-rendering marker spec %s with digest release: %w", spec.Name, err)
		}
		var err error
		rendered, err = io.ReadAll(ws2.Reader())
		if err != nil {
			return "", xerrors.Errorf("reading rendered marker spec %s: %w", spec.Name, err)
		}
	}

	if err := os.MkdirAll(destDir, 0755); err != nil {
		return "", xerrors.Errorf("creating marker scratch dir: %w", err)
	}
	specPath := filepath.Join(destDir, spec.Name+".spec")
	if err := renameio.WriteFile(specPath, rendered, 0644); err != nil {
		return "", xerrors.Errorf("writing marker spec %s: %w", specPath, err)
	}

	rpmsDir := filepath.Join(destDir, "RPMS")
	args := []string{
		"--define", "_topdir " + destDir,
		"--define", "_rpmdir " + rpmsDir,
		"-bb", specPath,
	}
	if err := runCommand(ctx, b.bin(), args...); err != nil {
		return "", &BuildFailure{Phase: PhaseInstall, Err: xerrors.Errorf("building marker %s: %w", spec.Name, err)}
	}
	return rpmsDir, nil
}
