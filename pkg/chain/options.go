package chain

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
)

// Options controls which chains survive filtering and how they are rendered.
type Options struct {
	// RequireCompletedFlag keeps a chain only if every node on it was marked
	// completed by the interview service.
	RequireCompletedFlag bool `json:"require_completed_flag" yaml:"require_completed_flag"`
	// IncludeEmptyStimuli emits a group for stimuli without any chain.
	IncludeEmptyStimuli bool `json:"include_empty_stimuli" yaml:"include_empty_stimuli"`
	// IncludeIncompleteChains keeps chains that do not end in a value.
	IncludeIncompleteChains bool `json:"include_incomplete_chains" yaml:"include_incomplete_chains"`
	// MergeConsequencePath absorbs shorter consequence paths into longer ones
	// and renders the whole path instead of its top-most consequence.
	MergeConsequencePath bool `json:"merge_consequence_path" yaml:"merge_consequence_path"`
	// CheckSuperSet drops chains that a deeper chain for the same stimulus
	// and attribute already covers.
	CheckSuperSet bool `json:"check_super_set" yaml:"check_super_set"`
}

func DefaultOptions() Options {
	return Options{
		RequireCompletedFlag: true,
		CheckSuperSet:        true,
	}
}

// optionNames lists the snake_case and camelCase spelling of every option.
var optionNames = []struct{ snake, camel string }{
	{"require_completed_flag", "requireCompletedFlag"},
	{"include_empty_stimuli", "includeEmptyStimuli"},
	{"include_incomplete_chains", "includeIncompleteChains"},
	{"merge_consequence_path", "mergeConsequencePath"},
	{"check_super_set", "checkSuperSet"},
}

// Lookup returns the field named key, in either snake_case or camelCase, or
// nil when key names no option.
func (o *Options) Lookup(key string) *bool {
	fields := []*bool{
		&o.RequireCompletedFlag,
		&o.IncludeEmptyStimuli,
		&o.IncludeIncompleteChains,
		&o.MergeConsequencePath,
		&o.CheckSuperSet,
	}
	for i, n := range optionNames {
		if key == n.snake || key == n.camel {
			return fields[i]
		}
	}
	return nil
}

// UnmarshalJSON applies the options present in data over the current values,
// so callers prefill o with DefaultOptions. Unknown keys are ignored.
func (o *Options) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for _, key := range slices.Sorted(maps.Keys(raw)) {
		dst := o.Lookup(key)
		if dst == nil {
			continue
		}
		if err := json.Unmarshal(raw[key], dst); err != nil {
			return fmt.Errorf("option %s: %w", key, err)
		}
	}
	return nil
}

// Fingerprint is a short stable representation used in cache keys.
func (o Options) Fingerprint() string {
	bit := func(b bool) int {
		if b {
			return 1
		}
		return 0
	}
	return fmt.Sprintf("%d%d%d%d%d",
		bit(o.RequireCompletedFlag),
		bit(o.IncludeEmptyStimuli),
		bit(o.IncludeIncompleteChains),
		bit(o.MergeConsequencePath),
		bit(o.CheckSuperSet),
	)
}
