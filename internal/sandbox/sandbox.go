// Package sandbox implements the build orchestrator: it prepares an
// isolated root, forces a chosen set of requirements to be absent from it
// via marker packages, drives a rebuild, and categorizes failure.
//
// It shells out to two external collaborators rather than reimplementing
// chroot or spec-file handling: an isolated-build driver (the real `mock`
// tool) and a rebuilder (`rpmbuild`) to turn a generated marker .spec into
// a minimal binary package carrying only relational metadata.
package sandbox

import (
	"bytes"
	"context"
	"os/exec"

	"golang.org/x/xerrors"
)

// FailurePhase categorizes where an external-tool invocation failed, which
// feeds the minimization engine's classification of a probe.
type FailurePhase int

const (
	// PhaseNone means the operation succeeded.
	PhaseNone FailurePhase = iota
	// PhaseInstall means a package installation step failed, interpreted
	// by the search as "subset pulled in indirectly."
	PhaseInstall
	// PhaseRebuild means the rebuild step itself failed after install
	// succeeded: classified as breaking.
	PhaseRebuild
)

// BuildFailure is a categorized external-tool failure.
type BuildFailure struct {
	Phase FailurePhase
	Err   error
}

func (f *BuildFailure) Error() string {
	switch f.Phase {
	case PhaseInstall:
		return "install-phase failure: " + f.Err.Error()
	case PhaseRebuild:
		return "rebuild-phase failure: " + f.Err.Error()
	default:
		return f.Err.Error()
	}
}

func (f *BuildFailure) Unwrap() error { return f.Err }

// runCommand runs name with args under ctx, so a canceled context (e.g. the
// user pressing Ctrl-C) kills a hung mock/rpmbuild invocation rather than
// leaving it running. Errors carry combined output so BuildFailure messages
// are useful in logs without a separate verbose flag.
func runCommand(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		return xerrors.Errorf("%s %v: %w (output: %s)", name, args, err, out.String())
	}
	return nil
}
