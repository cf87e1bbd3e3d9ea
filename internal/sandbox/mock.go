package sandbox

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/xerrors"
)

// IsolatedBuildDriver is the narrow view of the isolated-build driver
// the Orchestrator depends on.
type IsolatedBuildDriver interface {
	Init(ctx context.Context, profile string) error
	Install(ctx context.Context, names []string) error
	Rebuild(ctx context.Context, srcPath, resultDir string, allowCacheOnly bool) error
	Clean(ctx context.Context) error
	OrphanKill(ctx context.Context) error
}

// MockDriver drives the isolated-build root via the `mock` command-line
// tool. mock's own subcommands (--init, --install, --rebuild, --clean,
// --orphanskill) and its --uniqueext/--offline flags are close enough to
// the minimal surface the Orchestrator needs that this is a direct wrapper,
// not a reinterpretation.
type MockDriver struct {
	// Bin is the path to the mock binary, defaulting to "mock".
	Bin string
	// Root is the --root profile name, set by Init.
	Root string
	// UniqueExt isolates concurrent instances sharing a cache.
	UniqueExt string
	// Offline, when true, passes --offline so mock never reaches out to a
	// package repository mid-run.
	Offline bool
}

// NewMockDriver returns a MockDriver using the system mock binary.
func NewMockDriver(uniqueExt string, offline bool) *MockDriver {
	return &MockDriver{Bin: "mock", UniqueExt: uniqueExt, Offline: offline}
}

func (m *MockDriver) bin() string {
	if m.Bin != "" {
		return m.Bin
	}
	return "mock"
}

func (m *MockDriver) baseArgs() []string {
	args := []string{"--root", m.Root}
	if m.UniqueExt != "" {
		args = append(args, "--uniqueext", m.UniqueExt)
	}
	if m.Offline {
		args = append(args, "--offline")
	}
	return args
}

// Init creates a fresh isolated root for the given profile.
func (m *MockDriver) Init(ctx context.Context, profile string) error {
	m.Root = profile
	if err := runCommand(ctx, m.bin(), append(m.baseArgs(), "--init")...); err != nil {
		return &BuildFailure{Phase: PhaseInstall, Err: err}
	}
	return nil
}

// Install installs the named packages into the root, failing if any are
// unresolvable.
func (m *MockDriver) Install(ctx context.Context, names []string) error {
	if len(names) == 0 {
		return nil
	}
	args := append(m.baseArgs(), "--install")
	args = append(args, names...)
	if err := runCommand(ctx, m.bin(), args...); err != nil {
		return &BuildFailure{Phase: PhaseInstall, Err: err}
	}
	return nil
}

// Rebuild drives the external rebuilder to produce binary packages into
// resultDir.
func (m *MockDriver) Rebuild(ctx context.Context, srcPath, resultDir string, allowCacheOnly bool) error {
	args := append(m.baseArgs(), "--rebuild", srcPath, "--resultdir", resultDir)
	if allowCacheOnly {
		args = append(args, "--no-clean", "--no-cleanup-after")
	}
	if err := runCommand(ctx, m.bin(), args...); err != nil {
		return &BuildFailure{Phase: PhaseRebuild, Err: err}
	}
	return nil
}

// Clean removes the root's package cache and chroot contents, part of
// teardown.
func (m *MockDriver) Clean(ctx context.Context) error {
	if err := runCommand(ctx, m.bin(), append(m.baseArgs(), "--clean")...); err != nil {
		return xerrors.Errorf("mock --clean: %w", err)
	}
	return nil
}

// OrphanKill kills any process left running inside the root, the other
// half of teardown.
func (m *MockDriver) OrphanKill(ctx context.Context) error {
	if err := runCommand(ctx, m.bin(), append(m.baseArgs(), "--orphanskill")...); err != nil {
		return xerrors.Errorf("mock --orphanskill: %w", err)
	}
	return nil
}

func instanceSuffix(n int) string {
	return fmt.Sprintf("buildreqcheck-%d-%d", os.Getpid(), n)
}
