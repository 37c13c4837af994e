package chain

import "github.com/OFFIS-RIT/laddering/backend/pkg/common"

// index is the lookup structure every later stage reads from. It holds
// pointers into the caller's node slice and never writes through them.
type index struct {
	byID     map[int64]*common.GraphNode
	nodes    []*common.GraphNode
	children map[int64][]int64
	stimuli  []*common.GraphNode
}

func newIndex(graph *common.Graph) *index {
	idx := &index{
		byID:     make(map[int64]*common.GraphNode),
		children: make(map[int64][]int64),
	}
	if graph == nil {
		return idx
	}

	idx.nodes = make([]*common.GraphNode, 0, len(graph.Nodes))
	for i := range graph.Nodes {
		node := &graph.Nodes[i]
		// first occurrence of an id wins
		if _, ok := idx.byID[node.ID]; ok {
			continue
		}
		idx.byID[node.ID] = node
		idx.nodes = append(idx.nodes, node)
		if node.Label == common.LabelStimulus {
			idx.stimuli = append(idx.stimuli, node)
		}
	}

	for _, node := range idx.nodes {
		for _, parent := range node.Parents {
			idx.children[parent] = append(idx.children[parent], node.ID)
		}
	}

	return idx
}

func (idx *index) get(id int64) (*common.GraphNode, bool) {
	node, ok := idx.byID[id]
	return node, ok
}

func (idx *index) hasLabel(id int64, label common.Label) bool {
	node, ok := idx.byID[id]
	return ok && node.Label == label
}

func (idx *index) conclusion(id int64) string {
	if node, ok := idx.byID[id]; ok {
		return node.Conclusion
	}
	return ""
}

// completed reports whether id may appear in a chain when the completed flag
// is required. Ids that do not resolve never block a chain.
func (idx *index) completed(id int64) bool {
	node, ok := idx.byID[id]
	return !ok || node.IsValuePathCompleted
}

func (idx *index) withLabel(label common.Label) []*common.GraphNode {
	var out []*common.GraphNode
	for _, node := range idx.nodes {
		if node.Label == label {
			out = append(out, node)
		}
	}
	return out
}
