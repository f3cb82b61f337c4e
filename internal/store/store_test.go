package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path, "")
	require.NoError(t, err)
	defer s.Close()

	_, err = os.Stat(path)
	assert.NoError(t, err, "database file was not created")
}

func TestOpen_Pragmas(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	assert.NoError(t, s.verifyPragma(ctx, "journal_mode", "wal"))
	assert.NoError(t, s.verifyPragma(ctx, "foreign_keys", "1"))
	assert.NoError(t, s.verifyPragma(ctx, "user_version", "1"))
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	for i := 0; i < 3; i++ {
		s, err := Open(path, DriverCGO)
		require.NoError(t, err, "iteration %d", i)
		require.NoError(t, s.Close())
	}

	s, err := Open(path, DriverCGO)
	require.NoError(t, err)
	defer s.Close()

	for _, table := range []string{"versions", "mutations"} {
		var name string
		err := s.db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		assert.NoError(t, err, "table %q not found", table)
	}
}

func TestOpen_PureGoDriver(t *testing.T) {
	path := filepath.Join(t.TempDir(), "purego.db")
	s, err := Open(path, DriverPureGo)
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	require.NoError(t, s.WriteCommit(ctx, Commit{Version: 1, Mutations: []Mutation{putPerson("p1", "Ann", 30)}}))

	commits, err := s.ReadCommits(ctx, 0)
	require.NoError(t, err)
	require.Len(t, commits, 1)
	assert.Equal(t, putPerson("p1", "Ann", 30), commits[0].Mutations[0])
}

func TestOpen_SameFileAcrossDrivers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shared.db")
	ctx := context.Background()

	s1, err := Open(path, DriverCGO)
	require.NoError(t, err)
	require.NoError(t, s1.WriteCommit(ctx, Commit{Version: 1, Mutations: []Mutation{putPerson("p1", "Ann", 30)}}))
	require.NoError(t, s1.Close())

	s2, err := Open(path, DriverPureGo)
	require.NoError(t, err)
	defer s2.Close()

	latest, err := s2.LatestVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), latest)
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "x.db"), "postgres")
	assert.ErrorContains(t, err, "unsupported sqlite driver")
}

func TestOpen_RejectsNewerSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "future.db")

	s, err := Open(path, DriverCGO)
	require.NoError(t, err)
	_, err = s.db.Exec("PRAGMA user_version = 99")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = Open(path, DriverCGO)
	assert.ErrorContains(t, err, "newer than supported")
}

func TestClose_NilDB(t *testing.T) {
	var s Store
	assert.NoError(t, s.Close())
}
