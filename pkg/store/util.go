package store

import (
	"github.com/OFFIS-RIT/laddering/backend/internal/util"
	"github.com/OFFIS-RIT/laddering/backend/pkg/common"
)

// SanitizeGraph returns a copy of graph whose text can be stored in a jsonb
// column. The input is left untouched.
func SanitizeGraph(graph *common.Graph) *common.Graph {
	if graph == nil {
		return &common.Graph{Nodes: []common.GraphNode{}}
	}

	out := &common.Graph{
		Nodes:        make([]common.GraphNode, len(graph.Nodes)),
		ActiveNodeID: graph.ActiveNodeID,
		RootNodeID:   graph.RootNodeID,
	}
	for i, n := range graph.Nodes {
		n.Conclusion = util.SanitizePostgresText(n.Conclusion)
		n.Label = common.Label(util.SanitizePostgresText(string(n.Label)))
		out.Nodes[i] = n
	}
	return out
}
