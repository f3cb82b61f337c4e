package objectstore

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/roach88/livecoll/internal/config"
	"github.com/roach88/livecoll/internal/ir"
	"github.com/roach88/livecoll/internal/logging"
	"github.com/roach88/livecoll/internal/metrics"
	"github.com/roach88/livecoll/internal/store"
)

// open databases by config identity
var cache = struct {
	mu  sync.Mutex
	dbs map[string]*DB
}{dbs: map[string]*DB{}}

// DB is one logical database shared by every Conn opened with the same
// configuration identity.
type DB struct {
	identity string
	cfg      config.Config
	schema   *ir.Schema
	store    *store.Store // nil for in-memory databases

	// writeSem is the single-writer lock; a channel so BeginWrite can
	// honour context cancellation.
	writeSem chan struct{}

	mu           sync.Mutex
	latest       *Version
	refs         int
	listeners    map[uint64]func(*Version)
	nextListener uint64
}

// Open returns the shared DB for cfg, creating it on first use. Every Open
// must be balanced by Close. A file-backed database replays its commit log
// on first open.
func Open(ctx context.Context, cfg config.Config) (*DB, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	id := cfg.Identity()

	cache.mu.Lock()
	defer cache.mu.Unlock()

	if db, ok := cache.dbs[id]; ok {
		db.mu.Lock()
		db.refs++
		db.mu.Unlock()
		return db, nil
	}

	if err := cfg.LoadSchema(); err != nil {
		return nil, err
	}

	db := &DB{
		identity:  id,
		cfg:       cfg,
		schema:    cfg.Schema,
		writeSem:  make(chan struct{}, 1),
		refs:      1,
		listeners: map[uint64]func(*Version){},
	}

	latest := emptyVersion(cfg.Schema)
	if !cfg.IsInMemory() {
		st, err := store.Open(cfg.Database.Path, cfg.Database.Driver)
		if err != nil {
			return nil, err
		}
		if err := replay(ctx, st, latest); err != nil {
			st.Close()
			return nil, errors.Wrapf(err, "replay %s", id)
		}
		db.store = st
	}
	db.latest = latest

	cache.dbs[id] = db
	logging.Logger.Debugw("database opened", "identity", id, "version", latest.number)
	return db, nil
}

// replay rebuilds the latest version from the commit log in place.
func replay(ctx context.Context, st *store.Store, v *Version) error {
	commits, err := st.ReadCommits(ctx, 0)
	if err != nil {
		return err
	}
	for _, c := range commits {
		for _, m := range c.Mutations {
			if err := v.apply(m); err != nil {
				return errors.Wrapf(err, "version %d", c.Version)
			}
		}
		v.number = c.Version
	}
	return nil
}

// Close releases one reference. The last Close drops the DB from the
// process cache and closes its store.
func (db *DB) Close() error {
	cache.mu.Lock()
	defer cache.mu.Unlock()

	db.mu.Lock()
	db.refs--
	last := db.refs == 0
	db.mu.Unlock()
	if !last {
		return nil
	}

	if cache.dbs[db.identity] == db {
		delete(cache.dbs, db.identity)
	}
	logging.Logger.Debugw("database closed", "identity", db.identity)
	if db.store != nil {
		return db.store.Close()
	}
	return nil
}

// Identity returns the configuration identity the DB was opened with.
func (db *DB) Identity() string {
	return db.identity
}

// Config returns the configuration the DB was first opened with.
func (db *DB) Config() config.Config {
	return db.cfg
}

// Schema returns the object schema.
func (db *DB) Schema() *ir.Schema {
	return db.schema
}

// Latest returns the most recently committed version.
func (db *DB) Latest() *Version {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.latest
}

// Listen registers fn to be called after every commit with the new
// version. fn runs on the committing goroutine and must not block.
// The returned func removes the listener.
func (db *DB) Listen(fn func(*Version)) (cancel func()) {
	db.mu.Lock()
	id := db.nextListener
	db.nextListener++
	db.listeners[id] = fn
	db.mu.Unlock()

	return func() {
		db.mu.Lock()
		delete(db.listeners, id)
		db.mu.Unlock()
	}
}

func (db *DB) acquireWrite(ctx context.Context) error {
	select {
	case db.writeSem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "begin write")
	}
}

func (db *DB) releaseWrite() {
	<-db.writeSem
}

// publish durably records d and makes it the latest version. The caller
// holds the write lock.
func (db *DB) publish(ctx context.Context, d *draft) (*Version, error) {
	start := time.Now()
	next := &Version{number: d.base.number + 1, tables: d.view.tables}

	if db.store != nil {
		if err := db.store.WriteCommit(ctx, store.Commit{Version: next.number, Mutations: d.mutations}); err != nil {
			return nil, err
		}
	}

	db.mu.Lock()
	db.latest = next
	fns := make([]func(*Version), 0, len(db.listeners))
	for _, fn := range db.listeners {
		fns = append(fns, fn)
	}
	db.mu.Unlock()

	metrics.CommitsTotal.Inc()
	metrics.CommitDuration.Observe(time.Since(start).Seconds())
	logging.Logger.Debugw("committed", "identity", db.identity, "version", next.number, "mutations", len(d.mutations))

	for _, fn := range fns {
		fn(next)
	}
	return next, nil
}
