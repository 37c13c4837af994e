package common

import "encoding/json"

// Label classifies a node of a laddering interview graph. The set of labels is
// open: values outside the constants below are carried through unchanged.
type Label string

const (
	LabelTopic       Label = "TOPIC"
	LabelStimulus    Label = "STIMULUS"
	LabelIdea        Label = "IDEA"
	LabelAttribute   Label = "ATTRIBUTE"
	LabelConsequence Label = "CONSEQUENCE"
	LabelValue       Label = "VALUE"
)

// Graph is one snapshot of an interview as produced by the interview service.
//
// A graph contains:
//   - Nodes: every answer given so far, linked upwards through their parents
//   - ActiveNodeID: the node the interview is currently asking about
//   - RootNodeID: the entry point of the interview
//
// The two pointers are informational only; chain extraction never reads them.
type Graph struct {
	Nodes        []GraphNode `json:"nodes" jsonschema_description:"All nodes of the interview graph."`
	ActiveNodeID *int64      `json:"active_node_id" jsonschema_description:"Node currently being asked about, if any."`
	RootNodeID   *int64      `json:"root_node_id" jsonschema_description:"Root node of the interview, if any."`
}

// GraphNode is a single answer in the interview graph. Parents point towards
// the stimulus, children towards the value. Only Parents is load-bearing;
// Children is kept for round-tripping and may disagree with Parents.
type GraphNode struct {
	ID                   int64           `json:"id" jsonschema_description:"Unique id of the node within the graph."`
	Label                Label           `json:"label" jsonschema_description:"Level of the answer, e.g. STIMULUS, ATTRIBUTE, CONSEQUENCE or VALUE."`
	Conclusion           string          `json:"conclusion" jsonschema_description:"Display text of the answer."`
	Parents              []int64         `json:"parents" jsonschema_description:"Ids of the nodes this answer was given for."`
	Children             []int64         `json:"children" jsonschema_description:"Ids of answers given for this node."`
	Trace                json.RawMessage `json:"trace,omitempty" jsonschema_description:"Producer specific trace of the conversation."`
	IsValuePathCompleted bool            `json:"is_value_path_completed" jsonschema_description:"Whether the interviewee closed this line of reasoning."`
}

// ACVChainText is one rendered Attribute→Consequence→Value chain.
type ACVChainText struct {
	Attribute   string `json:"attribute"`
	Consequence string `json:"consequence"`
	Value       string `json:"value"`
}

// StimulusGroup collects the rendered chains rooted at one stimulus.
type StimulusGroup struct {
	Stimulus string         `json:"stimulus"`
	Chains   []ACVChainText `json:"chains"`
}
