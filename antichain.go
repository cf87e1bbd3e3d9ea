package buildreqcheck

// Antichain is a set of RequirementSets in which no member is a subset of
// another. The minimization search maintains `unneeded` and `breaking` as
// Antichains so that the final report is minimal: a confirmed-unneeded
// subset makes every subset of it redundant to record.
type Antichain struct {
	sets []RequirementSet
}

// Sets returns the antichain's members. The returned slice must not be
// mutated by the caller.
func (a *Antichain) Sets() []RequirementSet { return a.sets }

// Len returns the number of members.
func (a *Antichain) Len() int { return len(a.sets) }

// ContainsSupersetOf reports whether some member of a is a superset of (or
// equal to) c. Used by the search's first pruning rule: if C is a subset
// of some already-unneeded U, add C to unneeded without probing.
func (a *Antichain) ContainsSupersetOf(c RequirementSet) (RequirementSet, bool) {
	for _, s := range a.sets {
		if c.Subset(s) {
			return s, true
		}
	}
	return nil, false
}

// ContainsSubsetOf reports whether some member of a is a subset of (or equal
// to) c. Used by the search's second pruning rule: if some already-breaking
// B is a subset of C, skip C (the monotone-breaking assumption).
func (a *Antichain) ContainsSubsetOf(c RequirementSet) (RequirementSet, bool) {
	for _, s := range a.sets {
		if s.Subset(c) {
			return s, true
		}
	}
	return nil, false
}

// Add inserts c into the antichain, keeping the maximal members: any
// existing member that is a subset of c is dropped (c proves everything that
// member proved, plus more), and c itself is rejected if an existing member
// already is a superset of it (that member already proves everything c
// would prove). This direction matters for `unneeded`: a bigger
// confirmed-unneeded set witnesses every one of its own subsets being safe
// to remove too (the same rebuild is the witness), so discarding it in
// favor of a smaller, previously-known member would silently drop
// requirements from the final report's union. Add returns false, leaving
// the antichain unmodified, if c already has a superset member.
func (a *Antichain) Add(c RequirementSet) bool {
	if _, ok := a.ContainsSupersetOf(c); ok {
		return false
	}
	kept := a.sets[:0:0]
	for _, s := range a.sets {
		if s.Subset(c) && !s.Equal(c) {
			continue // s is strictly less informative than c; drop it
		}
		kept = append(kept, s)
	}
	a.sets = append(kept, c)
	return true
}

// Union returns the union of every requirement appearing in any member of a.
// This is the minimization search's final result: the union of `unneeded`.
func (a *Antichain) Union() RequirementSet {
	var all RequirementSet
	for _, s := range a.sets {
		all = all.Union(s)
	}
	return all
}

// IsAntichain reports whether sets, taken pairwise, contains no pair where
// one is a subset of the other. Used only by the debug self-check; production
// code paths never need to call this because Add preserves the invariant by
// construction.
func IsAntichain(sets []RequirementSet) bool {
	for i := range sets {
		for j := range sets {
			if i == j {
				continue
			}
			if sets[i].Subset(sets[j]) {
				return false
			}
		}
	}
	return true
}
