package cli

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatch_PrintsChanges(t *testing.T) {
	dbPath, schemaPath := testDB(t)
	_, _, err := execute(t, "", dbArgs(dbPath, schemaPath, "put", "Person", `{"id":"p0","name":"Zed","age":90}`)...)
	require.NoError(t, err)

	stdin := strings.Join([]string{
		`{"put": "Person", "row": {"id": "p1", "name": "Ann", "age": 30}}`,
		`{"put": "Person", "row": {"id": "p2", "name": "Bob", "age": 20}}`,
		`{"bogus": true}`,
	}, "\n")
	out, errOut, err := execute(t, stdin, dbArgs(dbPath, schemaPath, "watch", "Person", "--sort", "age")...)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.GreaterOrEqual(t, len(lines), 2)
	assert.Equal(t, "initial Person count=1", lines[0])
	assert.True(t, strings.HasPrefix(lines[len(lines)-1], "changes Person count=3 "), lines[len(lines)-1])
	assert.Contains(t, errOut, `skipped "{\"bogus\": true}"`)
}

func TestWatch_JSON(t *testing.T) {
	dbPath, schemaPath := testDB(t)
	stdin := `{"put": "Dog", "row": {"id": "d1", "name": "Rex", "age": 3}}`

	out, _, err := execute(t, stdin, dbArgs(dbPath, schemaPath, "watch", "Dog", "--format", "json")...)
	require.NoError(t, err)

	var events []WatchEvent
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		var ev WatchEvent
		require.NoError(t, json.Unmarshal([]byte(line), &ev), line)
		events = append(events, ev)
	}
	require.Len(t, events, 2)
	assert.Equal(t, WatchEvent{Kind: "initial", Type: "Dog", Count: 0}, events[0])
	assert.Equal(t, WatchEvent{Kind: "changes", Type: "Dog", Count: 1, Insertions: []int{0}}, events[1])
}

func TestWatch_UnknownType(t *testing.T) {
	dbPath, schemaPath := testDB(t)
	out, _, err := execute(t, "", dbArgs(dbPath, schemaPath, "watch", "Cat")...)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "failed to subscribe")
}
