package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/livecoll/internal/ir"
)

// WriteResult is the JSON payload of put and delete.
type WriteResult struct {
	Type    string `json:"type"`
	Key     string `json:"key"`
	Version int64  `json:"version"`
}

// NewPutCommand creates the put command.
func NewPutCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "put <type> <row-json>",
		Short: "Insert or replace an object",
		Long: `Insert or replace an object in one write transaction.

The row is a JSON object with every required property. Floats are rejected.

Example:
  livecoll put Person '{"id":"p1","name":"Ann","age":30}' --db people.db --schema people.cue`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPut(rootOpts, args[0], args[1], cmd)
		},
	}
	return cmd
}

func runPut(opts *RootOptions, objType, rowJSON string, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())

	v, err := ir.UnmarshalIRValue([]byte(rowJSON))
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeInput, "invalid row JSON", err)
	}
	row, ok := v.(ir.IRObject)
	if !ok {
		return f.Fail(ExitCommandError, ErrCodeInput, "row must be a JSON object", nil)
	}

	conn, err := openDatabase(cmd.Context(), opts, f)
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := conn.Write(cmd.Context(), func() error { return conn.Put(objType, row) }); err != nil {
		return f.Fail(ExitCommandError, ErrCodeInput, "put failed", err)
	}

	key := ""
	if obj, ok := conn.Schema().Object(objType); ok {
		key = ir.String(row[obj.PrimaryKey])
	}
	res := WriteResult{Type: objType, Key: key, Version: conn.Version()}
	return f.Success(fmt.Sprintf("put %s %s (version %d)", objType, key, res.Version), res)
}

// NewDeleteCommand creates the delete command.
func NewDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "delete <type> <key>",
		Short:         "Delete an object by primary key",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDelete(rootOpts, args[0], args[1], cmd)
		},
	}
	return cmd
}

func runDelete(opts *RootOptions, objType, rawKey string, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())

	conn, err := openDatabase(cmd.Context(), opts, f)
	if err != nil {
		return err
	}
	defer conn.Close()

	key, err := parseKey(conn.Schema(), objType, rawKey)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeInput, "invalid key", err)
	}
	if err := conn.Write(cmd.Context(), func() error { return conn.Delete(objType, key) }); err != nil {
		return f.Fail(ExitCommandError, ErrCodeInput, "delete failed", err)
	}
	res := WriteResult{Type: objType, Key: rawKey, Version: conn.Version()}
	return f.Success(fmt.Sprintf("deleted %s %s (version %d)", objType, rawKey, res.Version), res)
}
