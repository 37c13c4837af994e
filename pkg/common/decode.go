package common

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/kaptinlin/jsonrepair"
)

var ErrInvalidGraph = errors.New("invalid interview graph document")

// DecodeGraph parses a graph document strictly. Anything that is not a JSON
// object is rejected with ErrInvalidGraph.
func DecodeGraph(data []byte) (*Graph, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, ErrInvalidGraph
	}

	g := new(Graph)
	if err := json.Unmarshal(trimmed, g); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidGraph, err)
	}
	return g, nil
}

// DecodeGraphLenient accepts documents that went through a lossy transport.
// It tries, in order, a strict decode, a double-encoded JSON string and a
// repaired version of the input.
func DecodeGraphLenient(data []byte) (*Graph, error) {
	if g, err := DecodeGraph(data); err == nil {
		return g, nil
	}

	input := strings.TrimSpace(string(data))
	var asString string
	if err := json.Unmarshal([]byte(input), &asString); err == nil {
		if g, err := DecodeGraph([]byte(asString)); err == nil {
			return g, nil
		}
		input = strings.TrimSpace(asString)
	}

	repaired, err := jsonrepair.JSONRepair(input)
	if err != nil {
		return nil, fmt.Errorf("%w: repair failed: %w", ErrInvalidGraph, err)
	}
	return DecodeGraph([]byte(repaired))
}

// GraphSchema returns the JSON schema of the graph input document.
func GraphSchema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		DoNotReference: true,
	}

	t := reflect.TypeOf(Graph{})
	return reflector.Reflect(reflect.New(t).Interface())
}
