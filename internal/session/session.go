// Package session implements the driver: it sequences the reference
// build, the reproducibility gate, and the minimization search, then
// renders the result.
package session

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/stapelberg/buildreqcheck"
	"github.com/stapelberg/buildreqcheck/internal/logging"
	"github.com/stapelberg/buildreqcheck/internal/minimize"
	"github.com/stapelberg/buildreqcheck/internal/pkgcompare"
	"github.com/stapelberg/buildreqcheck/internal/sandbox"
	"golang.org/x/xerrors"
)

// NotReproducibleError is returned when the two reference builds disagree;
// the driver's caller translates this into exit code 1.
type NotReproducibleError struct {
	HeaderDiffs []pkgcompare.HeaderDiff
	FileDiffs   []pkgcompare.FileDiff
}

func (e *NotReproducibleError) Error() string {
	return fmt.Sprintf("reference builds are not reproducible: %d header diffs, %d file diffs", len(e.HeaderDiffs), len(e.FileDiffs))
}

// Options configures a Run.
type Options struct {
	Root           string
	NoClean        bool
	ReproduceOnly  bool
	AssumeCompose  bool
	WorkDir        string
	ResultJSONPath string
}

// Result is what a successful Run produces.
type Result struct {
	SourcePackageName string
	Unneeded          buildreqcheck.RequirementSet
}

// Line renders the single stdout line a successful run prints: empty if no
// unneeded requirements were found.
func (r *Result) Line() string {
	if len(r.Unneeded) == 0 {
		return ""
	}
	strs := make([]string, len(r.Unneeded))
	for i, req := range r.Unneeded {
		strs[i] = string(req)
	}
	line := r.SourcePackageName + ":"
	for i, s := range strs {
		if i > 0 {
			line += ","
		}
		line += " " + s
	}
	return line
}

// buildOnce drives one full reference build and returns the resulting
// BuiltPackage; its header and file list are loaded later, on first
// comparison.
func buildOnce(ctx context.Context, orch *sandbox.Orchestrator, src *buildreqcheck.SourcePackage, resultDir string) (*buildreqcheck.BuiltPackage, error) {
	if err := orch.Install(ctx, src.Requires); err != nil {
		return nil, err
	}
	if err := orch.Rebuild(ctx, src, resultDir, false); err != nil {
		return nil, err
	}
	path, err := singleBuiltRPM(resultDir)
	if err != nil {
		return nil, err
	}
	return &buildreqcheck.BuiltPackage{Path: path}, nil
}

func singleBuiltRPM(resultDir string) (string, error) {
	entries, err := os.ReadDir(resultDir)
	if err != nil {
		return "", xerrors.Errorf("reading result dir %s: %w", resultDir, err)
	}
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".rpm" {
			return filepath.Join(resultDir, e.Name()), nil
		}
	}
	return "", xerrors.Errorf("no .rpm produced under %s", resultDir)
}

// Orchestrator bundles the collaborators a Run needs, so Run itself stays a
// pure sequencing function that is easy to unit test against fakes.
type Orchestrator struct {
	Sandbox *sandbox.Orchestrator
	Compare *pkgcompare.Comparator
	Log     *logging.Logger
}

// Run executes the full sequence: reference build, second reference
// build, metadata/content comparison, abort if unequal; otherwise minimize
// and report.
func Run(ctx context.Context, orch *Orchestrator, src *buildreqcheck.SourcePackage, opts Options) (*Result, error) {
	if err := validateRootProfile(opts.Root); err != nil {
		return nil, err
	}

	if err := orch.Sandbox.Init(ctx, opts.Root); err != nil {
		return nil, xerrors.Errorf("initializing chroot: %w", err)
	}
	defer func() {
		if err := orch.Sandbox.Teardown(); err != nil {
			orch.Log.Warningf("teardown: %v", err)
		}
	}()

	refDir := filepath.Join(opts.WorkDir, "ref1")
	ref, err := buildOnce(ctx, orch.Sandbox, src, refDir)
	if err != nil {
		return nil, xerrors.Errorf("reference build: %w", err)
	}

	ref2Dir := filepath.Join(opts.WorkDir, "ref2")
	ref2, err := buildOnce(ctx, orch.Sandbox, src, ref2Dir)
	if err != nil {
		return nil, xerrors.Errorf("second reference build: %w", err)
	}

	equal, err := orch.Compare.Equal(ref, ref2)
	if err != nil {
		return nil, xerrors.Errorf("comparing reference builds: %w", err)
	}
	if !equal {
		orch.Log.Criticalf("reference builds for %s are not reproducible", src.Name)
		return nil, &NotReproducibleError{
			HeaderDiffs: orch.Compare.HeaderDiffs(),
			FileDiffs:   orch.Compare.FileDiffs(),
		}
	}

	if opts.ReproduceOnly {
		return &Result{SourcePackageName: src.Name}, nil
	}

	prober := &buildProber{ctx: ctx, orch: orch, src: src, reference: ref, workDir: opts.WorkDir}
	engine := &minimize.Engine{
		Prober:        prober,
		AssumeCompose: opts.AssumeCompose,
		Debug:         func(msg string) { orch.Log.Debugf("%s", msg) },
	}
	unneeded, err := engine.Minimize(src.Requires)
	if err != nil {
		return nil, xerrors.Errorf("minimization search: %w", err)
	}

	result := &Result{SourcePackageName: src.Name, Unneeded: unneeded}
	if opts.ResultJSONPath != "" {
		if err := writeResultJSON(opts.ResultJSONPath, result); err != nil {
			orch.Log.Warningf("writing result JSON: %v", err)
		}
	}
	return result, nil
}

func validateRootProfile(root string) error {
	if root == "" {
		return xerrors.Errorf("--root profile must be specified")
	}
	if _, err := os.Stat(root); err != nil {
		if !os.IsNotExist(err) {
			return xerrors.Errorf("checking --root profile %s: %w", root, err)
		}
		// Profile names may also resolve through the isolated-build
		// driver's own search path (e.g. /etc/mock/<profile>.cfg) rather
		// than being a literal filesystem path; only reject an argument
		// that looks like a path and plainly does not exist.
		if filepath.IsAbs(root) || filepath.Dir(root) != "." {
			return xerrors.Errorf("--root profile %s does not exist", root)
		}
	}
	return nil
}
