package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/livecoll/internal/ir"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "sqlite3", cfg.Database.Driver)
	assert.Equal(t, 5, cfg.Description.MaxDepth)
	assert.Equal(t, 100, cfg.Description.MaxElements)
	assert.Error(t, cfg.Validate(), "no database configured")
}

func TestLoad_YAML(t *testing.T) {
	cfg, err := Load(filepath.Join("testdata", "livecoll.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "people.db", cfg.Database.Path)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, 3, cfg.Description.MaxDepth)
	assert.Equal(t, 100, cfg.Description.MaxElements)
	require.NoError(t, cfg.Validate())

	abs, err := filepath.Abs("people.db")
	require.NoError(t, err)
	assert.Equal(t, "file:"+abs, cfg.Identity())

	require.NoError(t, cfg.LoadSchema())
	_, ok := cfg.Schema.Object("Person")
	assert.True(t, ok)
}

func TestLoad_TOML(t *testing.T) {
	cfg, err := Load(filepath.Join("testdata", "livecoll.toml"))
	require.NoError(t, err)

	assert.True(t, cfg.IsInMemory())
	assert.Equal(t, "mem:scratch", cfg.Identity())
	assert.Equal(t, 10, cfg.Description.MaxElements)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("LIVECOLL_DATABASE_DRIVER", "sqlite")
	t.Setenv("LIVECOLL_DESCRIPTION_MAX_DEPTH", "2")

	cfg, err := Load(filepath.Join("testdata", "livecoll.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, 2, cfg.Description.MaxDepth, "env must win over the config file")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join("testdata", "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	both := InMemory("x", nil)
	both.Database.Path = "x.db"
	assert.ErrorContains(t, both.Validate(), "mutually exclusive")

	badDriver := InMemory("x", nil)
	badDriver.Database.Driver = "pgx"
	assert.ErrorContains(t, badDriver.Validate(), "unsupported database.driver")

	badLimits := InMemory("x", nil)
	badLimits.Description.MaxDepth = 0
	assert.ErrorContains(t, badLimits.Validate(), "must be positive")

	valid := InMemory("x", nil)
	assert.NoError(t, valid.Validate())
}

func TestLoadSchema_KeepsExplicitSchema(t *testing.T) {
	s := &ir.Schema{}
	cfg := InMemory("x", s)
	require.NoError(t, cfg.LoadSchema())
	assert.Same(t, s, cfg.Schema)

	cfg.Schema = nil
	assert.ErrorContains(t, cfg.LoadSchema(), "no object schema")
}
