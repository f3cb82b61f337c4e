package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/livecoll/internal/live"
)

// DumpOptions holds flags for the dump command.
type DumpOptions struct {
	*RootOptions
	Sort        string
	Descending  bool
	MaxDepth    int
	MaxElements int
}

// DumpResult is the JSON payload of dump.
type DumpResult struct {
	Type        string `json:"type"`
	Count       int    `json:"count"`
	Version     int64  `json:"version"`
	Description string `json:"description"`
}

// NewDumpCommand creates the dump command.
func NewDumpCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DumpOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "dump <type>",
		Short: "Print the bounded description of all objects of a type",
		Long: `Print the debug description of the results collection of a type.

Nesting and element counts are bounded by description.max_depth and
description.max_elements unless --depth or --elements is given.

Example:
  livecoll dump Person --sort age --db people.db --schema people.cue`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDump(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Sort, "sort", "", "sort by keypath")
	cmd.Flags().BoolVar(&opts.Descending, "desc", false, "sort descending")
	cmd.Flags().IntVar(&opts.MaxDepth, "depth", 0, "maximum nesting depth (default from config)")
	cmd.Flags().IntVar(&opts.MaxElements, "elements", 0, "maximum elements per collection (default from config)")

	return cmd
}

func runDump(opts *DumpOptions, objType string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	conn, err := openDatabase(cmd.Context(), opts.RootOptions, f)
	if err != nil {
		return err
	}
	defer conn.Close()

	var qopts []live.QueryOption
	if opts.Sort != "" {
		qopts = append(qopts, live.SortBy(opts.Sort, opts.Descending))
	}
	coll, err := conn.Objects(objType, qopts...)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeInput, "invalid query", err)
	}

	depth, elements := opts.MaxDepth, opts.MaxElements
	desc := conn.Config().Description
	if depth <= 0 {
		depth = desc.MaxDepth
	}
	if elements <= 0 {
		elements = desc.MaxElements
	}
	text, err := coll.Describe(depth, elements)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeDatabase, "describe failed", err)
	}
	n, err := coll.Count()
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeDatabase, "count failed", err)
	}
	return f.Success(text, DumpResult{Type: objType, Count: n, Version: conn.Version(), Description: text})
}
