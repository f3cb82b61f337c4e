package store

import (
	"context"

	"github.com/cockroachdb/errors"

	"github.com/roach88/livecoll/internal/ir"
)

// ErrVersionConflict is returned when a commit's version is already stored.
var ErrVersionConflict = errors.New("version already committed")

// WriteCommit appends a commit in a single SQLite transaction. Either the
// version row and all of its mutations are stored or nothing is.
func (s *Store) WriteCommit(ctx context.Context, c Commit) error {
	if c.Version <= 0 {
		return errors.Newf("write commit: invalid version %d", c.Version)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "write commit: begin tx")
	}
	defer tx.Rollback() // No-op if committed

	res, err := tx.ExecContext(ctx, `
		INSERT INTO versions (version, mutation_count, format_version)
		VALUES (?, ?, ?)
		ON CONFLICT(version) DO NOTHING
	`, c.Version, len(c.Mutations), ir.FormatVersion)
	if err != nil {
		return errors.Wrapf(err, "write commit %d: insert version", c.Version)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrapf(err, "write commit %d: rows affected", c.Version)
	}
	if n == 0 {
		return errors.Wrapf(ErrVersionConflict, "write commit %d", c.Version)
	}

	for seq, m := range c.Mutations {
		key, err := marshalKey(m.Key)
		if err != nil {
			return errors.Wrapf(err, "write commit %d", c.Version)
		}

		var data any
		switch m.Op {
		case OpPut:
			row, err := marshalRow(m.Data)
			if err != nil {
				return errors.Wrapf(err, "write commit %d", c.Version)
			}
			data = row
		case OpDelete:
			data = nil
		default:
			return errors.Newf("write commit %d: unknown op %q", c.Version, m.Op)
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO mutations (version, seq, op, object_type, object_key, data)
			VALUES (?, ?, ?, ?, ?, ?)
		`, c.Version, seq, string(m.Op), m.Type, key, data); err != nil {
			return errors.Wrapf(err, "write commit %d: insert mutation %d", c.Version, seq)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrapf(err, "write commit %d: commit tx", c.Version)
	}
	return nil
}
