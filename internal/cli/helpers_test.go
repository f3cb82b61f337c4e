package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/livecoll/internal/testutil"
)

// testDB writes the people schema next to a fresh database path.
func testDB(t *testing.T) (dbPath, schemaPath string) {
	t.Helper()
	dir := t.TempDir()
	schemaPath = filepath.Join(dir, "people.cue")
	require.NoError(t, os.WriteFile(schemaPath, []byte(testutil.PeopleCUE), 0644))
	return filepath.Join(dir, "people.db"), schemaPath
}

// execute runs the root command with args and returns stdout and stderr.
func execute(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

// dbArgs appends the database flags to args.
func dbArgs(dbPath, schemaPath string, args ...string) []string {
	return append(args, "--db", dbPath, "--schema", schemaPath)
}
