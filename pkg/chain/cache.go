package chain

import (
	"sync"

	"github.com/OFFIS-RIT/laddering/backend/pkg/common"
)

// Cache memoizes extraction results on the identity of the graph pointer and
// the options. It is only correct for callers that treat a cached graph as
// immutable. Safe for concurrent use.
type Cache struct {
	mu      sync.Mutex
	results map[cacheKey][]common.StimulusGroup
}

type cacheKey struct {
	graph *common.Graph
	opts  Options
}

func NewCache() *Cache {
	return &Cache{results: make(map[cacheKey][]common.StimulusGroup)}
}

// Extract returns a copy of the cached result for graph and opts, computing
// it on first use.
func (c *Cache) Extract(graph *common.Graph, opts Options) []common.StimulusGroup {
	k := cacheKey{graph: graph, opts: opts}

	c.mu.Lock()
	groups, ok := c.results[k]
	c.mu.Unlock()
	if ok {
		return cloneGroups(groups)
	}

	groups = ExtractStimulusChains(graph, opts)

	c.mu.Lock()
	if existing, ok := c.results[k]; ok {
		groups = existing
	} else {
		c.results[k] = groups
	}
	c.mu.Unlock()

	return cloneGroups(groups)
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.results)
}

func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.results)
}

func cloneGroups(groups []common.StimulusGroup) []common.StimulusGroup {
	out := make([]common.StimulusGroup, len(groups))
	for i, g := range groups {
		chains := make([]common.ACVChainText, len(g.Chains))
		copy(chains, g.Chains)
		out[i] = common.StimulusGroup{Stimulus: g.Stimulus, Chains: chains}
	}
	return out
}
