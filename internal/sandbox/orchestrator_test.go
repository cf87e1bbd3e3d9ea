package sandbox

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stapelberg/buildreqcheck"
)

// fakeDriver records calls instead of shelling out, so the absence protocol
// can be exercised without mock/rpmbuild installed.
type fakeDriver struct {
	initProfile  string
	installCalls [][]string
	installErr   error
	rebuildErr   error
	cleaned      bool
	orphanKilled bool
}

func (f *fakeDriver) Init(ctx context.Context, profile string) error {
	f.initProfile = profile
	return nil
}

func (f *fakeDriver) Install(ctx context.Context, names []string) error {
	f.installCalls = append(f.installCalls, names)
	return f.installErr
}

func (f *fakeDriver) Rebuild(ctx context.Context, srcPath, resultDir string, allowCacheOnly bool) error {
	return f.rebuildErr
}

func (f *fakeDriver) Clean(ctx context.Context) error {
	f.cleaned = true
	return nil
}

func (f *fakeDriver) OrphanKill(ctx context.Context) error {
	f.orphanKilled = true
	return nil
}

// fakeRebuilder writes a placeholder .rpm file under dir instead of actually
// invoking rpmbuild, so findRPMs has something to discover.
type fakeRebuilder struct {
	dir string
}

func (f *fakeRebuilder) BuildMarker(ctx context.Context, spec MarkerSpec, destDir string) (string, error) {
	if err := os.WriteFile(filepath.Join(f.dir, spec.Name+".noarch.rpm"), []byte("rpm"), 0644); err != nil {
		return "", err
	}
	return f.dir, nil
}

func TestOrchestratorTeardownRunsBothEvenNoErrors(t *testing.T) {
	d := &fakeDriver{}
	o := &Orchestrator{Driver: d}
	if err := o.Teardown(); err != nil {
		t.Fatal(err)
	}
	if !d.cleaned || !d.orphanKilled {
		t.Errorf("Teardown() cleaned=%v orphanKilled=%v, want both true", d.cleaned, d.orphanKilled)
	}
}

func TestOrchestratorInstallPassesRequirementNames(t *testing.T) {
	d := &fakeDriver{}
	o := &Orchestrator{Driver: d}
	reqs := buildreqcheck.NewRequirementSet("gcc", "pkgconfig(zlib) >= 1.2.8")
	if err := o.Install(context.Background(), reqs); err != nil {
		t.Fatal(err)
	}
	if len(d.installCalls) != 1 {
		t.Fatalf("Install() calls = %d, want 1", len(d.installCalls))
	}
	got := d.installCalls[0]
	want := []string{"gcc", "pkgconfig(zlib)"}
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("Install() names = %v, want %v", got, want)
	}
}

func TestRebuildWithoutRequirementsSkipsOnTransitivePullIn(t *testing.T) {
	d := &fakeDriver{}
	calls := 0
	d.installErr = nil
	// Fail the second Install call (the "declared minus candidate" step) to
	// simulate a transitively-required candidate.
	driver := &sequencedFailDriver{fakeDriver: d, failOnCall: 2}
	o := &Orchestrator{Driver: driver, Rebuilder: &fakeRebuilder{dir: t.TempDir()}, scratchDir: t.TempDir()}
	src := &buildreqcheck.SourcePackage{
		Path:     "pkg.src.rpm",
		Name:     "pkg",
		Requires: buildreqcheck.NewRequirementSet("a", "b", "c"),
	}
	candidate := buildreqcheck.NewRequirementSet("a")
	err := o.RebuildWithoutRequirements(context.Background(), src, candidate, t.TempDir())
	if err == nil {
		t.Fatal("expected install-phase failure, got nil")
	}
	var bf *BuildFailure
	if !asBuildFailure(err, &bf) {
		t.Fatalf("error %v is not a *BuildFailure", err)
	}
	if bf.Phase != PhaseInstall {
		t.Errorf("BuildFailure.Phase = %v, want PhaseInstall", bf.Phase)
	}
	_ = calls
}

// sequencedFailDriver fails the Nth Install call only, to simulate the
// absence protocol's "declared minus candidate" step failing while the
// marker installs around it succeed.
type sequencedFailDriver struct {
	*fakeDriver
	failOnCall int
	callCount  int
}

func (s *sequencedFailDriver) Install(ctx context.Context, names []string) error {
	s.callCount++
	s.fakeDriver.installCalls = append(s.fakeDriver.installCalls, names)
	if s.callCount == s.failOnCall {
		return errInstallFailed
	}
	return nil
}

var errInstallFailed = &BuildFailure{Phase: PhaseInstall, Err: errPlaceholder{}}

type errPlaceholder struct{}

func (errPlaceholder) Error() string { return "simulated transitive pull-in" }

func asBuildFailure(err error, target **BuildFailure) bool {
	if bf, ok := err.(*BuildFailure); ok {
		*target = bf
		return true
	}
	return false
}
