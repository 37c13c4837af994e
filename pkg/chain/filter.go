package chain

import "slices"

func filterChains(idx *index, chains []rawChain, opts Options) []rawChain {
	if opts.RequireCompletedFlag {
		chains = slices.DeleteFunc(chains, func(c rawChain) bool {
			return !chainCompleted(idx, c)
		})
	}

	if !opts.IncludeIncompleteChains {
		chains = slices.DeleteFunc(chains, func(c rawChain) bool {
			return !c.hasValue
		})
	}

	if opts.CheckSuperSet {
		chains = dropCoveredAttributes(chains)
		chains = dropCoveredConsequences(chains)
	}

	if opts.MergeConsequencePath {
		chains = mergeConsequencePaths(chains)
	}

	return chains
}

func chainCompleted(idx *index, c rawChain) bool {
	if !idx.completed(c.stimulus) || !idx.completed(c.attribute) {
		return false
	}
	for _, id := range c.consequences {
		if !idx.completed(id) {
			return false
		}
	}
	return !c.hasValue || idx.completed(c.value)
}

// dropCoveredAttributes removes attribute-only chains whose stimulus and
// attribute also start a deeper chain.
func dropCoveredAttributes(chains []rawChain) []rawChain {
	deeper := make(map[pairKey]struct{})
	for _, c := range chains {
		if !c.attributeOnly() {
			deeper[c.pair()] = struct{}{}
		}
	}
	return slices.DeleteFunc(chains, func(c rawChain) bool {
		_, ok := deeper[c.pair()]
		return ok && c.attributeOnly()
	})
}

// dropCoveredConsequences removes value-less chains when the same consequence
// path also ends in a value.
func dropCoveredConsequences(chains []rawChain) []rawChain {
	type pathOf struct {
		pair pairKey
		path string
	}
	valued := make(map[pathOf]struct{})
	for _, c := range chains {
		if c.hasValue {
			valued[pathOf{pair: c.pair(), path: pathKey(c.consequences)}] = struct{}{}
		}
	}
	return slices.DeleteFunc(chains, func(c rawChain) bool {
		if !c.consequenceOnly() {
			return false
		}
		_, ok := valued[pathOf{pair: c.pair(), path: pathKey(c.consequences)}]
		return ok
	})
}

// mergeConsequencePaths removes every chain whose consequence path is a strict
// prefix of another chain's path for the same stimulus and attribute. An
// empty path is a prefix of any non-empty one.
func mergeConsequencePaths(chains []rawChain) []rawChain {
	byPair := make(map[pairKey][][]int64)
	for _, c := range chains {
		byPair[c.pair()] = append(byPair[c.pair()], c.consequences)
	}

	absorbed := make([]bool, len(chains))
	for i, c := range chains {
		for _, other := range byPair[c.pair()] {
			if isStrictPrefix(c.consequences, other) {
				absorbed[i] = true
				break
			}
		}
	}

	out := chains[:0]
	for i, c := range chains {
		if !absorbed[i] {
			out = append(out, c)
		}
	}
	return out
}

func isStrictPrefix(prefix, path []int64) bool {
	return len(prefix) < len(path) && slices.Equal(prefix, path[:len(prefix)])
}
