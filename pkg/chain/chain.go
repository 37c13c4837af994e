// Package chain derives the Attribute→Consequence→Value reasoning chains of a
// laddering interview graph and groups them per stimulus for display and
// export.
//
// Extraction is a pure function over one graph snapshot. It performs no I/O,
// never modifies the graph and keeps no state between calls, so it may be
// called concurrently for independent graphs.
package chain

import (
	"context"

	"github.com/OFFIS-RIT/laddering/backend/pkg/common"

	"golang.org/x/sync/errgroup"
)

// ExtractStimulusChains returns the chains of graph grouped by stimulus, in
// the order the stimuli appear in graph.Nodes. Malformed but type-valid input
// (dangling ids, empty conclusions, cyclic parents) degrades to partial or
// empty output.
func ExtractStimulusChains(graph *common.Graph, opts Options) []common.StimulusGroup {
	idx := newIndex(graph)
	s := newSearcher(idx)

	raw := discover(idx, s)
	filtered := filterChains(idx, raw, opts)

	return groupByStimulus(idx, filtered, opts)
}

// ExtractMany runs ExtractStimulusChains over independent graphs with at most
// parallel extractions in flight. Results keep the order of graphs.
func ExtractMany(
	ctx context.Context,
	graphs []*common.Graph,
	opts Options,
	parallel int,
) ([][]common.StimulusGroup, error) {
	if parallel <= 0 {
		parallel = 1
	}

	out := make([][]common.StimulusGroup, len(graphs))
	eg, gCtx := errgroup.WithContext(ctx)
	eg.SetLimit(parallel)

	for i, g := range graphs {
		eg.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			out[i] = ExtractStimulusChains(g, opts)
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// CountChains returns the number of chains across all groups.
func CountChains(groups []common.StimulusGroup) int {
	total := 0
	for _, g := range groups {
		total += len(g.Chains)
	}
	return total
}
