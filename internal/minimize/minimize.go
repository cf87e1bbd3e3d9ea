// Package minimize searches the power set of a source package's declared
// build requirements for a maximal jointly-unneeded subset, probing
// singletons first and subsets second, pruned by two monotonicity
// assumptions.
package minimize

import (
	"fmt"
	"sort"

	"github.com/stapelberg/buildreqcheck"
)

// ProbeOutcome is what a single rebuild-and-compare attempt decided.
type ProbeOutcome int

const (
	// OutcomeSkipped means the probe was not classified either way: an
	// install-phase failure (the candidate is likely pulled in transitively
	// by something else still declared), or a candidate pruned by the
	// breaking rule without a probe.
	OutcomeSkipped ProbeOutcome = iota
	OutcomeUnneeded
	OutcomeBreaking
)

// Prober drives one rebuild-and-compare attempt for a candidate subset. It
// is the seam between the search logic here and the sandbox/pkgcompare
// packages, so the search can be tested without either.
//
// A non-nil error means a fatal condition was hit — an external inspector
// tool failed rather than simply disagreeing — and stops the search
// immediately rather than being folded into a verdict.
type Prober interface {
	Probe(candidate buildreqcheck.CandidateSubset) (ProbeOutcome, error)
}

// Verdicts holds the two verdict antichains the search accumulates.
type Verdicts struct {
	Unneeded buildreqcheck.Antichain
	Breaking buildreqcheck.Antichain
}

// Engine runs the three-phase search schedule: singletons, then confirmed
// joint removal over the singleton-unneeded union, then demand-driven
// extension with undecided requirements.
type Engine struct {
	Prober Prober

	// AssumeCompose gates an explicit unsoundness trade: if every member of
	// a candidate is individually known unneeded, assume the candidate
	// itself is unneeded without probing it. Off by default.
	AssumeCompose bool

	// Debug, if set, is called after every verdict recorded, and at the end
	// of a run if a verdict set has lost the antichain property. Nil
	// disables both.
	Debug func(msg string)
}

// Minimize runs the full search over declared and returns the union of
// every confirmed-unneeded subset. It stops and returns an error
// immediately if any probe hits a fatal condition.
func (e *Engine) Minimize(declared buildreqcheck.RequirementSet) (buildreqcheck.RequirementSet, error) {
	v := &Verdicts{}
	if len(declared) == 0 {
		return buildreqcheck.RequirementSet{}, nil
	}

	undecided, err := e.singletons(v, declared)
	if err != nil {
		return nil, err
	}
	confirmed, err := e.confirmJointRemoval(v, v.Unneeded.Sets())
	if err != nil {
		return nil, err
	}
	if err := e.extendWithUndecided(v, confirmed, undecided); err != nil {
		return nil, err
	}

	result := v.Unneeded.Union()
	e.selfCheck(v)
	return result, nil
}

// singletons probes {r} for every r in declared. It returns the
// requirements the "indirectly pulled in" rule deferred: declared minus
// every requirement decided by a singleton probe.
func (e *Engine) singletons(v *Verdicts, declared buildreqcheck.RequirementSet) (buildreqcheck.RequirementSet, error) {
	decided := buildreqcheck.NewRequirementSet()
	for _, r := range sortedCopy(declared) {
		c := buildreqcheck.NewRequirementSet(r)
		outcome, err := e.probe(v, c)
		if err != nil {
			return nil, err
		}
		switch outcome {
		case OutcomeUnneeded:
			e.addUnneeded(v, c)
			decided = decided.Union(c)
		case OutcomeBreaking:
			e.addBreaking(v, c)
			decided = decided.Union(c)
		case OutcomeSkipped:
			// Deferred until a later phase confirms or refutes it jointly
			// with others.
		}
	}
	return declared.Minus(decided), nil
}

// confirmJointRemoval enumerates the power set of the singleton-unneeded
// union in descending size and probes each: a superset success subsumes
// every subset probe within it, via the superset pruning rule in probe.
func (e *Engine) confirmJointRemoval(v *Verdicts, singletonUnneeded []buildreqcheck.RequirementSet) ([]buildreqcheck.RequirementSet, error) {
	union := buildreqcheck.Antichain{}
	for _, s := range singletonUnneeded {
		union.Add(s)
	}
	elems := union.Union()
	if len(elems) == 0 {
		return nil, nil
	}

	var confirmed []buildreqcheck.RequirementSet
	var fatalErr error
	buildreqcheck.PowerSetBySize(elems, false, func(c buildreqcheck.RequirementSet) bool {
		if len(c) == 0 {
			return true
		}
		outcome, err := e.probe(v, c)
		if err != nil {
			fatalErr = err
			return false
		}
		switch outcome {
		case OutcomeUnneeded:
			e.addUnneeded(v, c)
			confirmed = append(confirmed, c)
		case OutcomeBreaking:
			e.addBreaking(v, c)
		case OutcomeSkipped:
		}
		return true
	})
	if fatalErr != nil {
		return nil, fatalErr
	}
	if len(confirmed) == 0 {
		confirmed = singletonUnneeded
	}
	return confirmed, nil
}

// extendWithUndecided probes every (u ∪ extra) where u ranges over
// confirmed joint-removal subsets and extra over the power set of
// undecided, demand-driven rather than materializing either power set
// fully up front.
func (e *Engine) extendWithUndecided(v *Verdicts, confirmed []buildreqcheck.RequirementSet, undecided buildreqcheck.RequirementSet) error {
	if len(undecided) == 0 || len(confirmed) == 0 {
		return nil
	}
	for _, u := range confirmed {
		var fatalErr error
		buildreqcheck.PowerSetBySize(undecided, false, func(extra buildreqcheck.RequirementSet) bool {
			if len(extra) == 0 {
				return true
			}
			c := u.Union(extra)
			outcome, err := e.probe(v, c)
			if err != nil {
				fatalErr = err
				return false
			}
			switch outcome {
			case OutcomeUnneeded:
				e.addUnneeded(v, c)
			case OutcomeBreaking, OutcomeSkipped:
				// A failure here is informational only: it never adds to
				// breaking, since the failure may stem from the undecided
				// member's own transitive relationships rather than from u.
			}
			return true
		})
		if fatalErr != nil {
			return fatalErr
		}
	}
	return nil
}

// probe applies the two pruning rules before ever invoking Prober, and the
// assume-compose shortcut when enabled.
func (e *Engine) probe(v *Verdicts, c buildreqcheck.RequirementSet) (ProbeOutcome, error) {
	if e.shouldSkipBySupersetRule(v, c) {
		return OutcomeUnneeded, nil
	}
	if e.shouldSkipByBreakingRule(v, c) {
		return OutcomeSkipped, nil
	}
	if e.AssumeCompose && c.Subset(v.Unneeded.Union()) {
		return OutcomeUnneeded, nil
	}
	return e.Prober.Probe(c)
}

func (e *Engine) shouldSkipBySupersetRule(v *Verdicts, c buildreqcheck.RequirementSet) bool {
	_, ok := v.Unneeded.ContainsSupersetOf(c)
	return ok
}

func (e *Engine) shouldSkipByBreakingRule(v *Verdicts, c buildreqcheck.RequirementSet) bool {
	_, ok := v.Breaking.ContainsSubsetOf(c)
	return ok
}

func (e *Engine) addUnneeded(v *Verdicts, c buildreqcheck.RequirementSet) {
	v.Unneeded.Add(c)
	e.log("unneeded += %v", c)
}

func (e *Engine) addBreaking(v *Verdicts, c buildreqcheck.RequirementSet) {
	v.Breaking.Add(c)
	e.log("breaking += %v", c)
}

func (e *Engine) log(format string, args ...interface{}) {
	if e.Debug == nil {
		return
	}
	e.Debug(fmt.Sprintf(format, args...))
}

// selfCheck verifies both verdict antichains still satisfy the antichain
// invariant, logging rather than panicking: a violation here is a bug
// worth surfacing, not a reason to crash a user's run.
func (e *Engine) selfCheck(v *Verdicts) {
	if e.Debug == nil {
		return
	}
	if !buildreqcheck.IsAntichain(v.Unneeded.Sets()) {
		e.Debug("self-check: unneeded is not an antichain")
	}
	if !buildreqcheck.IsAntichain(v.Breaking.Sets()) {
		e.Debug("self-check: breaking is not an antichain")
	}
}

func sortedCopy(s buildreqcheck.RequirementSet) buildreqcheck.RequirementSet {
	out := make(buildreqcheck.RequirementSet, len(s))
	copy(out, s)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
