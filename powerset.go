package buildreqcheck

// PowerSetBySize produces the power set of elems as a lazy sequence grouped
// by subset size, descending from len(elems) down to 0 (or ascending, when
// asc is true). Never materializes the full power set: it calls yield once
// per subset in the chosen order and stops early if yield returns false.
//
// Within a given size, subsets are produced in the combinatorial (lexical)
// order induced by elems' own ordering, so callers that pass a
// RequirementSet already sorted by Requirement string get a deterministic
// tie-break order.
func PowerSetBySize(elems RequirementSet, asc bool, yield func(RequirementSet) bool) {
	n := len(elems)
	sizes := make([]int, n+1)
	for i := range sizes {
		sizes[i] = i
	}
	if !asc {
		for i, j := 0, len(sizes)-1; i < j; i, j = i+1, j-1 {
			sizes[i], sizes[j] = sizes[j], sizes[i]
		}
	}
	for _, k := range sizes {
		if !combinationsOfSize(elems, k, yield) {
			return
		}
	}
}

// combinationsOfSize calls yield once for every k-element subset of elems,
// in lexical index order, stopping early (and returning false) if yield
// returns false.
func combinationsOfSize(elems RequirementSet, k int, yield func(RequirementSet) bool) bool {
	n := len(elems)
	if k > n {
		return true
	}
	idx := make([]int, k)
	for i := range idx {
		idx[i] = i
	}
	emit := func() bool {
		set := make(RequirementSet, k)
		for i, pos := range idx {
			set[i] = elems[pos]
		}
		return yield(set)
	}
	if k == 0 {
		return emit()
	}
	for {
		if !emit() {
			return false
		}
		// advance idx to the next combination, odometer-style from the
		// rightmost position
		i := k - 1
		for i >= 0 && idx[i] == n-k+i {
			i--
		}
		if i < 0 {
			return true // exhausted
		}
		idx[i]++
		for j := i + 1; j < k; j++ {
			idx[j] = idx[j-1] + 1
		}
	}
}
