package cli

import (
	"context"
	"strconv"

	"github.com/cockroachdb/errors"

	"github.com/roach88/livecoll/internal/config"
	"github.com/roach88/livecoll/internal/ir"
	"github.com/roach88/livecoll/internal/live"
)

// loadConfig reads --config and LIVECOLL_* overrides, applies --db and
// --schema, then validates and compiles the schema.
func loadConfig(opts *RootOptions) (config.Config, error) {
	cfg, err := config.Load(opts.ConfigFile)
	if err != nil {
		return config.Config{}, err
	}
	if opts.Database != "" {
		cfg.Database.Path = opts.Database
		cfg.Database.InMemoryIdentifier = ""
	}
	if opts.Schema != "" {
		cfg.Database.SchemaPath = opts.Schema
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	if err := cfg.LoadSchema(); err != nil {
		return config.Config{}, err
	}
	return *cfg, nil
}

// openDatabase loads the configuration and opens a connection bound to the
// calling goroutine.
func openDatabase(ctx context.Context, opts *RootOptions, f *OutputFormatter) (*live.Connection, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, f.Fail(ExitCommandError, ErrCodeConfig, "invalid configuration", err)
	}
	f.VerboseLog("Opening %s", cfg)
	conn, err := live.Open(ctx, cfg)
	if err != nil {
		return nil, f.Fail(ExitCommandError, ErrCodeDatabase, "failed to open database", err)
	}
	return conn, nil
}

// parseKey converts a command-line key to the primary key type of objType.
func parseKey(s *ir.Schema, objType, raw string) (ir.IRValue, error) {
	obj, ok := s.Object(objType)
	if !ok {
		return nil, errors.Newf("unknown object type %q", objType)
	}
	pk, _ := obj.Property(obj.PrimaryKey)
	if pk.Kind == ir.KindInt {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "primary key %s of %s is an int", obj.PrimaryKey, objType)
		}
		return ir.IRInt(n), nil
	}
	return ir.IRString(raw), nil
}
