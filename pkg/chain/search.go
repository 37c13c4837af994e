package chain

import (
	"slices"

	"github.com/OFFIS-RIT/laddering/backend/pkg/common"
)

// attributeHit is an ATTRIBUTE reached from a starting CONSEQUENCE together
// with the consequences walked on the way, ordered leaf to top.
type attributeHit struct {
	attribute int64
	path      []int64
}

type pathStep struct {
	id    int64
	depth int
}

type pathState struct {
	id   int64
	path []int64
}

// searcher runs the upward traversals of one extraction call and memoizes
// their results by start node. Returned slices are shared between callers
// and must be treated as read-only.
type searcher struct {
	idx        *index
	ancestors  map[ancestorQuery][]int64
	attributes map[int64][]attributeHit
}

type ancestorQuery struct {
	start int64
	label common.Label
}

func newSearcher(idx *index) *searcher {
	return &searcher{
		idx:        idx,
		ancestors:  make(map[ancestorQuery][]int64),
		attributes: make(map[int64][]attributeHit),
	}
}

// ancestorsWithLabel returns every transitive ancestor of start carrying
// label, in breadth-first order. Climbing continues past matches.
func (s *searcher) ancestorsWithLabel(start int64, label common.Label) []int64 {
	q := ancestorQuery{start: start, label: label}
	if cached, ok := s.ancestors[q]; ok {
		return cached
	}

	var found []int64
	visited := map[int64]struct{}{start: {}}
	queue := []int64{start}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]

		node, ok := s.idx.get(id)
		if !ok {
			continue
		}
		for _, parent := range node.Parents {
			if _, seen := visited[parent]; seen {
				continue
			}
			visited[parent] = struct{}{}

			pnode, ok := s.idx.get(parent)
			if !ok {
				continue
			}
			if pnode.Label == label {
				found = append(found, parent)
			}
			queue = append(queue, parent)
		}
	}

	s.ancestors[q] = found
	return found
}

// attributesViaConsequence climbs from a CONSEQUENCE node through
// CONSEQUENCE parents only and reports every ATTRIBUTE it reaches.
//
// States are deduplicated on (node, path length), so two different paths of
// equal length through the same node collapse into the first one found. A
// node never appears twice on one path, which keeps cyclic input finite.
func (s *searcher) attributesViaConsequence(start int64) []attributeHit {
	if cached, ok := s.attributes[start]; ok {
		return cached
	}

	var hits []attributeHit
	if !s.idx.hasLabel(start, common.LabelConsequence) {
		s.attributes[start] = hits
		return hits
	}

	type hitKey struct {
		attribute int64
		path      string
	}
	seenHits := make(map[hitKey]struct{})
	visited := map[pathStep]struct{}{{id: start, depth: 1}: {}}
	queue := []pathState{{id: start, path: []int64{start}}}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		node, _ := s.idx.get(cur.id)
		for _, parent := range node.Parents {
			pnode, ok := s.idx.get(parent)
			if !ok {
				continue
			}

			switch pnode.Label {
			case common.LabelAttribute:
				k := hitKey{attribute: parent, path: pathKey(cur.path)}
				if _, dup := seenHits[k]; dup {
					continue
				}
				seenHits[k] = struct{}{}
				hits = append(hits, attributeHit{attribute: parent, path: cur.path})
			case common.LabelConsequence:
				if slices.Contains(cur.path, parent) {
					continue
				}
				step := pathStep{id: parent, depth: len(cur.path) + 1}
				if _, seen := visited[step]; seen {
					continue
				}
				visited[step] = struct{}{}

				next := make([]int64, len(cur.path), len(cur.path)+1)
				copy(next, cur.path)
				queue = append(queue, pathState{id: parent, path: append(next, parent)})
			}
		}
	}

	s.attributes[start] = hits
	return hits
}
