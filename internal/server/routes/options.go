package routes

import (
	"maps"
	"net/url"
	"slices"

	"github.com/OFFIS-RIT/laddering/backend/internal/util"
	"github.com/OFFIS-RIT/laddering/backend/pkg/chain"
)

// optionsFromQuery starts from chain.DefaultOptions and applies every
// recognised boolean query parameter, in snake_case or camelCase.
// Unparsable values keep the default.
func optionsFromQuery(q url.Values) chain.Options {
	opts := chain.DefaultOptions()
	for _, key := range slices.Sorted(maps.Keys(q)) {
		if dst := opts.Lookup(key); dst != nil {
			*dst = util.ParseBool(q.Get(key), *dst)
		}
	}
	return opts
}
