package common

import (
	"encoding/json"
	"errors"
	"testing"
)

const sampleDocument = `{
  "nodes": [
    {"id": 1, "label": "STIMULUS", "conclusion": "coffee", "parents": [], "children": [2],
     "trace": [{"role": "bot"}], "is_value_path_completed": true},
    {"id": 2, "label": "ATTRIBUTE", "conclusion": "caffeine", "parents": [1], "children": [],
     "is_value_path_completed": false},
    {"id": 3, "label": "SOMETHING_NEW", "conclusion": "", "parents": [2, 99], "children": []}
  ],
  "active_node_id": 2,
  "root_node_id": null
}`

func TestDecodeGraph(t *testing.T) {
	g, err := DecodeGraph([]byte(sampleDocument))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(g.Nodes) != 3 {
		t.Fatalf("expected 3 nodes, got %d", len(g.Nodes))
	}
	if g.Nodes[0].Label != LabelStimulus || !g.Nodes[0].IsValuePathCompleted {
		t.Fatalf("unexpected first node: %+v", g.Nodes[0])
	}
	if g.Nodes[2].Label != Label("SOMETHING_NEW") {
		t.Fatalf("unknown labels must be kept, got %q", g.Nodes[2].Label)
	}
	if g.ActiveNodeID == nil || *g.ActiveNodeID != 2 {
		t.Fatalf("unexpected active node: %v", g.ActiveNodeID)
	}
	if g.RootNodeID != nil {
		t.Fatalf("expected nil root node, got %v", *g.RootNodeID)
	}
	if string(g.Nodes[0].Trace) != `[{"role": "bot"}]` {
		t.Fatalf("trace not preserved: %s", g.Nodes[0].Trace)
	}
}

func TestDecodeGraph_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"array", `[1, 2]`},
		{"wrong_id_type", `{"nodes": [{"id": "one"}]}`},
		{"truncated", `{"nodes": [`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := DecodeGraph([]byte(tc.input)); !errors.Is(err, ErrInvalidGraph) {
				t.Fatalf("expected ErrInvalidGraph, got %v", err)
			}
		})
	}
}

func TestDecodeGraphLenient(t *testing.T) {
	doubleEncoded, err := json.Marshal(sampleDocument)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	tests := []struct {
		name  string
		input string
		nodes int
	}{
		{"strict", sampleDocument, 3},
		{"double_encoded", string(doubleEncoded), 3},
		{"trailing_comma", `{"nodes": [{"id": 1, "label": "STIMULUS", "conclusion": "x",},]}`, 1},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			g, err := DecodeGraphLenient([]byte(tc.input))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(g.Nodes) != tc.nodes {
				t.Fatalf("expected %d nodes, got %d", tc.nodes, len(g.Nodes))
			}
		})
	}
}

func TestGraphSchema(t *testing.T) {
	schema := GraphSchema()
	if schema == nil || schema.Properties == nil {
		t.Fatalf("expected schema with properties")
	}
	if _, ok := schema.Properties.Get("nodes"); !ok {
		t.Fatalf("schema misses nodes property")
	}
}
