package session

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/stapelberg/buildreqcheck"
	"github.com/stapelberg/buildreqcheck/internal/minimize"
	"github.com/stapelberg/buildreqcheck/internal/sandbox"
	"golang.org/x/xerrors"
)

// buildProber adapts one probe build (the absence protocol plus the
// metadata/content comparison against the reference) to minimize.Prober.
type buildProber struct {
	ctx       context.Context
	orch      *Orchestrator
	src       *buildreqcheck.SourcePackage
	reference *buildreqcheck.BuiltPackage
	workDir   string
	probeSeq  int
}

func (p *buildProber) Probe(candidate buildreqcheck.CandidateSubset) (minimize.ProbeOutcome, error) {
	p.probeSeq++
	resultDir := filepath.Join(p.workDir, fmt.Sprintf("probe-%d", p.probeSeq))

	err := p.orch.Sandbox.RebuildWithoutRequirements(p.ctx, p.src, candidate, resultDir)
	if err != nil {
		var bf *sandbox.BuildFailure
		if errors.As(err, &bf) {
			switch bf.Phase {
			case sandbox.PhaseInstall:
				// Likely transitively required by something still declared;
				// skip without classification.
				p.orch.Log.Infof("%v: skipping (install-phase failure, likely transitively required)", candidate)
				return minimize.OutcomeSkipped, nil
			case sandbox.PhaseRebuild:
				p.orch.Log.Infof("%v: breaking (rebuild-phase failure)", candidate)
				return minimize.OutcomeBreaking, nil
			}
		}
		return 0, xerrors.Errorf("%v: unclassified probe failure: %w", candidate, err)
	}

	path, err := singleBuiltRPM(resultDir)
	if err != nil {
		return 0, xerrors.Errorf("%v: %w", candidate, err)
	}
	built := &buildreqcheck.BuiltPackage{Path: path}

	equal, err := p.orch.Compare.Equal(p.reference, built)
	if err != nil {
		// An inspector tool failing is not a probe verdict, it is a reason
		// to stop trusting every verdict already collected: abort the run.
		return 0, xerrors.Errorf("%v: comparator failure: %w", candidate, err)
	}
	if equal {
		p.orch.Log.Infof("%v: unneeded (content-equal to reference)", candidate)
		return minimize.OutcomeUnneeded, nil
	}
	p.orch.Log.Infof("%v: breaking (output differs from reference)", candidate)
	return minimize.OutcomeBreaking, nil
}
