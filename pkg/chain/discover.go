package chain

import (
	"slices"
	"strconv"
	"strings"

	"github.com/OFFIS-RIT/laddering/backend/pkg/common"
)

// rawChain is a chain before rendering. consequences runs from the node next
// to the attribute (top) to the node next to the value (leaf).
type rawChain struct {
	stimulus     int64
	attribute    int64
	consequences []int64
	value        int64
	hasValue     bool
}

func (c rawChain) key() chainKey {
	return chainKey{
		stimulus:  c.stimulus,
		attribute: c.attribute,
		path:      pathKey(c.consequences),
		value:     c.value,
		hasValue:  c.hasValue,
	}
}

func (c rawChain) pair() pairKey {
	return pairKey{stimulus: c.stimulus, attribute: c.attribute}
}

func (c rawChain) attributeOnly() bool {
	return len(c.consequences) == 0 && !c.hasValue
}

func (c rawChain) consequenceOnly() bool {
	return len(c.consequences) > 0 && !c.hasValue
}

type chainKey struct {
	stimulus  int64
	attribute int64
	path      string
	value     int64
	hasValue  bool
}

type pairKey struct {
	stimulus  int64
	attribute int64
}

func pathKey(ids []int64) string {
	if len(ids) == 0 {
		return ""
	}
	var b strings.Builder
	for i, id := range ids {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatInt(id, 10))
	}
	return b.String()
}

// chainSet keeps the first chain seen for every key, in discovery order.
type chainSet struct {
	seen   map[chainKey]struct{}
	chains []rawChain
}

func (cs *chainSet) add(c rawChain) {
	k := c.key()
	if _, ok := cs.seen[k]; ok {
		return
	}
	cs.seen[k] = struct{}{}
	cs.chains = append(cs.chains, c)
}

func discover(idx *index, s *searcher) []rawChain {
	cs := &chainSet{seen: make(map[chainKey]struct{})}

	emit := func(start int64, value int64, hasValue bool) {
		for _, hit := range s.attributesViaConsequence(start) {
			path := slices.Clone(hit.path)
			slices.Reverse(path)
			for _, stimulus := range s.ancestorsWithLabel(hit.attribute, common.LabelStimulus) {
				cs.add(rawChain{
					stimulus:     stimulus,
					attribute:    hit.attribute,
					consequences: path,
					value:        value,
					hasValue:     hasValue,
				})
			}
		}
	}

	for _, value := range idx.withLabel(common.LabelValue) {
		for _, parent := range value.Parents {
			if !idx.hasLabel(parent, common.LabelConsequence) {
				continue
			}
			emit(parent, value.ID, true)
		}
	}

	for _, consequence := range idx.withLabel(common.LabelConsequence) {
		emit(consequence.ID, 0, false)
	}

	for _, attribute := range idx.withLabel(common.LabelAttribute) {
		for _, stimulus := range s.ancestorsWithLabel(attribute.ID, common.LabelStimulus) {
			cs.add(rawChain{stimulus: stimulus, attribute: attribute.ID})
		}
	}

	return cs.chains
}
