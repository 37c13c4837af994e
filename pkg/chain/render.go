package chain

import (
	"cmp"
	"slices"
	"strings"

	"github.com/OFFIS-RIT/laddering/backend/pkg/common"
)

const pathSeparator = " > "

const (
	rankValue = iota
	rankConsequence
	rankAttribute
)

type renderedChain struct {
	rank int
	text common.ACVChainText
}

func rank(c rawChain) int {
	switch {
	case c.hasValue:
		return rankValue
	case len(c.consequences) > 0:
		return rankConsequence
	default:
		return rankAttribute
	}
}

func renderChain(idx *index, c rawChain, merge bool) common.ACVChainText {
	text := common.ACVChainText{
		Attribute: idx.conclusion(c.attribute),
	}

	if len(c.consequences) > 0 {
		if merge {
			parts := make([]string, 0, len(c.consequences))
			for _, id := range c.consequences {
				parts = append(parts, idx.conclusion(id))
			}
			text.Consequence = strings.Join(parts, pathSeparator)
		} else {
			text.Consequence = idx.conclusion(c.consequences[0])
		}
	}

	if c.hasValue {
		text.Value = idx.conclusion(c.value)
	}

	return text
}

func compareRendered(a, b renderedChain) int {
	return cmp.Or(
		cmp.Compare(a.rank, b.rank),
		strings.Compare(a.text.Attribute, b.text.Attribute),
		strings.Compare(a.text.Consequence, b.text.Consequence),
		strings.Compare(a.text.Value, b.text.Value),
	)
}

func groupByStimulus(idx *index, chains []rawChain, opts Options) []common.StimulusGroup {
	grouped := make(map[int64][]renderedChain)
	for _, c := range chains {
		grouped[c.stimulus] = append(grouped[c.stimulus], renderedChain{
			rank: rank(c),
			text: renderChain(idx, c, opts.MergeConsequencePath),
		})
	}

	groups := make([]common.StimulusGroup, 0, len(idx.stimuli))
	for _, stimulus := range idx.stimuli {
		rendered := grouped[stimulus.ID]
		if len(rendered) == 0 && !opts.IncludeEmptyStimuli {
			continue
		}

		slices.SortStableFunc(rendered, compareRendered)
		texts := make([]common.ACVChainText, 0, len(rendered))
		for _, r := range rendered {
			texts = append(texts, r.text)
		}

		groups = append(groups, common.StimulusGroup{
			Stimulus: stimulus.Conclusion,
			Chains:   texts,
		})
	}

	return groups
}
