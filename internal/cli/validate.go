package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/livecoll/internal/ir"
	"github.com/roach88/livecoll/internal/schema"
)

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <schema.cue>",
		Short: "Compile an object schema and list its types",
		Long: `Compile a CUE object schema and print the object types it declares.

Reports CUE syntax errors with their positions, unknown link targets and
invalid property types.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())

	s, err := schema.CompileFile(path)
	if err != nil {
		return f.Fail(ExitFailure, ErrCodeSchema, "schema is invalid", err)
	}
	f.VerboseLog("Compiled %d object type(s) from %s", len(s.Objects), path)
	return f.Success(formatSchema(s), s)
}

// formatSchema renders one line per object type:
//
//	Person (id): id string, name string, dogs list<Dog>
func formatSchema(s *ir.Schema) string {
	var buf strings.Builder
	for i, obj := range s.Objects {
		if i > 0 {
			buf.WriteByte('\n')
		}
		props := make([]string, len(obj.Properties))
		for j, p := range obj.Properties {
			props[j] = p.Name + " " + p.TypeString()
		}
		fmt.Fprintf(&buf, "%s (%s): %s", obj.Name, obj.PrimaryKey, strings.Join(props, ", "))
	}
	return buf.String()
}
