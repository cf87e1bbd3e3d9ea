package sandbox

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync/atomic"

	"github.com/stapelberg/buildreqcheck"
	"golang.org/x/sync/errgroup"
	"golang.org/x/xerrors"
)

var instanceCounter int64

// Orchestrator owns one isolated root at a time and drives the absence
// protocol that forces a candidate subset of requirements out of that root
// for a single probe build.
type Orchestrator struct {
	Driver    IsolatedBuildDriver
	Rebuilder Rebuilder

	// scratchDir holds generated marker specs and their built RPMs, one
	// subdirectory per marker.
	scratchDir string
	markerSeq  int
}

// New returns an Orchestrator wired to the real mock/rpmbuild collaborators,
// assigning it a unique per-instance suffix so concurrent buildreqcheck runs
// sharing a mock cache directory do not collide.
func New(scratchDir string, offline bool) *Orchestrator {
	id := atomic.AddInt64(&instanceCounter, 1)
	return &Orchestrator{
		Driver:     NewMockDriver(instanceSuffix(int(id)), offline),
		Rebuilder:  NewRPMBuilder(),
		scratchDir: scratchDir,
	}
}

// Init creates a fresh isolated root for the given profile.
func (o *Orchestrator) Init(ctx context.Context, profile string) error {
	return o.Driver.Init(ctx, profile)
}

// Install installs the named packages.
func (o *Orchestrator) Install(ctx context.Context, reqs buildreqcheck.RequirementSet) error {
	return o.Driver.Install(ctx, requirementNames(reqs))
}

// AddMarker synthesizes and installs a minimal binary package carrying only
// the given relational metadata.
func (o *Orchestrator) AddMarker(ctx context.Context, name string, provides, conflicts, obsoletes []string) error {
	o.markerSeq++
	dir := filepath.Join(o.scratchDir, fmt.Sprintf("marker-%d-%s", o.markerSeq, name))
	rpmsDir, err := o.Rebuilder.BuildMarker(ctx, MarkerSpec{
		Name:      name,
		Version:   "1",
		Provides:  provides,
		Conflicts: conflicts,
		Obsoletes: obsoletes,
	}, dir)
	if err != nil {
		return err
	}
	rpmPaths, err := findRPMs(rpmsDir)
	if err != nil {
		return err
	}
	return o.Driver.Install(ctx, rpmPaths)
}

// Rebuild drives the external rebuilder.
func (o *Orchestrator) Rebuild(ctx context.Context, src *buildreqcheck.SourcePackage, resultDir string, allowCacheOnly bool) error {
	return o.Driver.Rebuild(ctx, src.Path, resultDir, allowCacheOnly)
}

// Teardown runs --clean and an orphan-kill pass, both concurrently since
// neither depends on the other's outcome, and both unconditionally: a
// cleanup failure on one must not skip the other. It ignores ctx
// cancellation deliberately: teardown must run to completion even if the
// user pressed Ctrl-C, so it derives its own background context rather than
// accepting the caller's.
func (o *Orchestrator) Teardown() error {
	ctx := context.Background()
	var g errgroup.Group
	g.Go(func() error { return o.Driver.Clean(ctx) })
	g.Go(func() error { return o.Driver.OrphanKill(ctx) })
	return g.Wait()
}

// RebuildWithoutRequirements implements the absence protocol: it
// guarantees every requirement in candidate is absent from the root for
// this rebuild, even if some other installed requirement would otherwise
// pull it in transitively.
//
// Steps:
//  1. Init chroot (caller's responsibility, already done).
//  2. Install marker M1 Conflicts=candidate, so any subsequent install of a
//     candidate requirement (direct or transitive) fails.
//  3. Install declared minus candidate. Failure here means the candidate is
//     transitively required; reported as a PhaseInstall BuildFailure so the
//     caller skips it rather than recording it as breaking.
//  4. Install marker M2 Obsoletes=M1, Provides=candidate, satisfying the
//     rebuilder's own dependency check without installing the real
//     requirement.
//  5. Rebuild without further cleaning.
func (o *Orchestrator) RebuildWithoutRequirements(ctx context.Context, src *buildreqcheck.SourcePackage, candidate buildreqcheck.CandidateSubset, resultDir string) error {
	candidateNames := requirementNames(candidate)

	m1 := markerName("absent", candidate)
	if err := o.AddMarker(ctx, m1, nil, candidateNames, nil); err != nil {
		return xerrors.Errorf("installing absence marker %s: %w", m1, err)
	}

	remaining := requirementNames(src.Requires.Minus(candidate))
	if err := o.Driver.Install(ctx, remaining); err != nil {
		return &BuildFailure{Phase: PhaseInstall, Err: xerrors.Errorf("%s requires %s transitively: %w", src.Name, candidateNames, err)}
	}

	m2 := markerName("provide", candidate)
	if err := o.AddMarker(ctx, m2, candidateNames, nil, []string{m1}); err != nil {
		return xerrors.Errorf("installing provide marker %s: %w", m2, err)
	}

	if err := o.Driver.Rebuild(ctx, src.Path, resultDir, true); err != nil {
		return err
	}
	return nil
}

func markerName(kind string, candidate buildreqcheck.CandidateSubset) string {
	return fmt.Sprintf("buildreqcheck-marker-%s-%x", kind, candidate.Key())
}

func requirementNames(reqs buildreqcheck.RequirementSet) []string {
	names := make([]string, 0, len(reqs))
	for _, r := range reqs {
		names = append(names, r.Name())
	}
	sort.Strings(names)
	return names
}

func findRPMs(rpmsDir string) ([]string, error) {
	var paths []string
	err := filepath.Walk(rpmsDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".rpm" {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, xerrors.Errorf("listing built marker RPMs under %s: %w", rpmsDir, err)
	}
	if len(paths) == 0 {
		return nil, xerrors.Errorf("no RPM produced under %s", rpmsDir)
	}
	return paths, nil
}
