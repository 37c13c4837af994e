// Package export serialises extracted stimulus groups for download.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/OFFIS-RIT/laddering/backend/pkg/common"
)

type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

var csvHeader = []string{"stimulus", "attribute", "consequence", "value"}

// ParseFormat maps a user supplied format name to a Format. Empty input
// selects JSON.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "json":
		return FormatJSON, nil
	case "csv":
		return FormatCSV, nil
	default:
		return "", fmt.Errorf("unsupported export format %q", s)
	}
}

func (f Format) ContentType() string {
	if f == FormatCSV {
		return "text/csv"
	}
	return "application/json"
}

func (f Format) Extension() string {
	if f == FormatCSV {
		return "csv"
	}
	return "json"
}

// Write encodes groups in format f.
func Write(w io.Writer, f Format, groups []common.StimulusGroup) error {
	switch f {
	case FormatCSV:
		return WriteCSV(w, groups)
	case FormatJSON:
		return WriteJSON(w, groups)
	default:
		return fmt.Errorf("unsupported export format %q", f)
	}
}

// WriteCSV writes one row per chain. A group without chains still gets a row
// carrying only its stimulus so that empty stimuli stay visible.
func WriteCSV(w io.Writer, groups []common.StimulusGroup) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}

	for _, g := range groups {
		if len(g.Chains) == 0 {
			if err := cw.Write([]string{g.Stimulus, "", "", ""}); err != nil {
				return err
			}
			continue
		}
		for _, c := range g.Chains {
			if err := cw.Write([]string{g.Stimulus, c.Attribute, c.Consequence, c.Value}); err != nil {
				return err
			}
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteJSON writes groups as an indented JSON array. Nil input is written as
// an empty array.
func WriteJSON(w io.Writer, groups []common.StimulusGroup) error {
	if groups == nil {
		groups = []common.StimulusGroup{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(groups)
}
