package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/livecoll/internal/harness"
)

// NewScenarioCommand creates the scenario command.
func NewScenarioCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scenario <file>",
		Short: "Run a notification scenario and print its trace",
		Long: `Run a YAML notification scenario against a fresh in-memory database
and print every step and delivered notification.

Exit codes:
  0 - All assertions held
  1 - One or more assertions failed
  2 - Command error (invalid scenario, schema or step)`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarioCommand(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runScenarioCommand(opts *RootOptions, path string, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())

	s, err := harness.LoadScenario(path)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeInput, "failed to load scenario", err)
	}
	f.VerboseLog("Running %s (%d steps)", s.Name, len(s.Steps))

	result, err := harness.Run(cmd.Context(), s)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeInput, "scenario execution failed", err)
	}

	if f.Format == "json" {
		status := "ok"
		var cliErr *CLIError
		if !result.Pass {
			status = "error"
			cliErr = &CLIError{Code: ErrCodeFailed, Message: fmt.Sprintf("%d assertion(s) failed", len(result.Errors))}
		}
		if err := encodeJSON(cmd.OutOrStdout(), CLIResponse{Status: status, Data: result, Error: cliErr}); err != nil {
			return err
		}
	} else {
		fmt.Fprintln(cmd.OutOrStdout(), formatTrace(s.Name, result))
	}

	if !result.Pass {
		return NewExitError(ExitFailure, fmt.Sprintf("%d assertion(s) failed", len(result.Errors)))
	}
	return nil
}

func formatTrace(name string, r *harness.Result) string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Scenario %s\n", name)
	for _, ev := range r.Trace {
		buf.WriteString("  ")
		buf.WriteString(harness.FormatEvent(ev))
		buf.WriteByte('\n')
	}
	for _, e := range r.Errors {
		buf.WriteString(e)
		if !strings.HasSuffix(e, "\n") {
			buf.WriteByte('\n')
		}
	}
	if r.Pass {
		buf.WriteString("✓ passed")
	} else {
		fmt.Fprintf(&buf, "✗ %d assertion(s) failed", len(r.Errors))
	}
	return buf.String()
}
