package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/OFFIS-RIT/laddering/backend/internal/metrics"
	"github.com/OFFIS-RIT/laddering/backend/pkg/chain"
	"github.com/OFFIS-RIT/laddering/backend/pkg/common"
	"github.com/OFFIS-RIT/laddering/backend/pkg/export"
	"github.com/OFFIS-RIT/laddering/backend/pkg/logger"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

type extractFlags struct {
	format       string
	optionsFile  string
	output       string
	repair       bool
	merge        bool
	incomplete   bool
	includeEmpty bool
	noCompleted  bool
	noSuperset   bool
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "ladder",
		Short:        "Extract attribute, consequence and value chains from laddering interviews",
		SilenceUsage: true,
	}
	root.AddCommand(newExtractCmd(), newSchemaCmd())
	return root
}

func newExtractCmd() *cobra.Command {
	f := &extractFlags{}
	cmd := &cobra.Command{
		Use:   "extract [graph.json]",
		Short: "Print the chains of an interview graph grouped by stimulus",
		Long: `Reads an interview graph document from a file, or from stdin when the
argument is "-" or missing, and prints the extracted chains.

Options are resolved in order: built-in defaults, the YAML profile given
with --options, then individual flags.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExtract(cmd, args, f)
		},
	}

	cmd.Flags().StringVarP(&f.format, "format", "f", "json", "Output format (json, csv)")
	cmd.Flags().StringVar(&f.optionsFile, "options", "", "YAML file with extraction options")
	cmd.Flags().StringVarP(&f.output, "output", "o", "", "Write to this file instead of stdout")
	cmd.Flags().BoolVar(&f.repair, "repair", false, "Try to repair malformed JSON input")
	cmd.Flags().BoolVar(&f.merge, "merge", false, "Render the full consequence path of every chain")
	cmd.Flags().BoolVar(&f.incomplete, "include-incomplete", false, "Keep chains that do not reach a value")
	cmd.Flags().BoolVar(&f.includeEmpty, "include-empty", false, "Print stimuli without chains")
	cmd.Flags().BoolVar(&f.noCompleted, "no-completed-flag", false, "Ignore the completed flag of nodes")
	cmd.Flags().BoolVar(&f.noSuperset, "no-superset", false, "Keep chains covered by a deeper chain")
	return cmd
}

func newSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON schema of the interview graph document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(common.GraphSchema())
		},
	}
}

func runExtract(cmd *cobra.Command, args []string, f *extractFlags) error {
	format, err := export.ParseFormat(f.format)
	if err != nil {
		return err
	}
	opts, err := resolveOptions(cmd, f)
	if err != nil {
		return err
	}

	raw, err := readInput(cmd, args)
	if err != nil {
		return err
	}
	decode := common.DecodeGraph
	if f.repair {
		decode = common.DecodeGraphLenient
	}
	graph, err := decode(raw)
	if err != nil {
		return err
	}

	start := time.Now()
	groups := chain.ExtractStimulusChains(graph, opts)
	count := chain.CountChains(groups)
	metrics.ObserveExtraction(metrics.SourceCLI, start, count)
	logger.Debug("[Chain] Extracted chains", "nodes", len(graph.Nodes), "groups", len(groups), "chains", count, "duration", time.Since(start))

	out := cmd.OutOrStdout()
	if f.output != "" {
		file, err := os.Create(f.output)
		if err != nil {
			return err
		}
		defer file.Close()
		out = file
	}
	return export.Write(out, format, groups)
}

// resolveOptions layers the YAML profile and explicitly set flags over the
// defaults.
func resolveOptions(cmd *cobra.Command, f *extractFlags) (chain.Options, error) {
	opts := chain.DefaultOptions()

	if f.optionsFile != "" {
		data, err := os.ReadFile(f.optionsFile)
		if err != nil {
			return opts, fmt.Errorf("read options profile: %w", err)
		}
		if err := yaml.Unmarshal(data, &opts); err != nil {
			return opts, fmt.Errorf("parse options profile %s: %w", f.optionsFile, err)
		}
	}

	flags := cmd.Flags()
	if flags.Changed("merge") {
		opts.MergeConsequencePath = f.merge
	}
	if flags.Changed("include-incomplete") {
		opts.IncludeIncompleteChains = f.incomplete
	}
	if flags.Changed("include-empty") {
		opts.IncludeEmptyStimuli = f.includeEmpty
	}
	if flags.Changed("no-completed-flag") {
		opts.RequireCompletedFlag = !f.noCompleted
	}
	if flags.Changed("no-superset") {
		opts.CheckSuperSet = !f.noSuperset
	}
	return opts, nil
}

func readInput(cmd *cobra.Command, args []string) ([]byte, error) {
	if len(args) == 0 || args[0] == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(args[0])
}
