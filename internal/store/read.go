package store

import (
	"context"
	"database/sql"

	"github.com/cockroachdb/errors"
)

// LatestVersion returns the highest committed version, or 0 for an empty log.
func (s *Store) LatestVersion(ctx context.Context) (int64, error) {
	var v sql.NullInt64
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(version) FROM versions`).Scan(&v); err != nil {
		return 0, errors.Wrap(err, "latest version")
	}
	return v.Int64, nil
}

// ReadCommits returns every commit with version > after, ordered by version.
// Mutations keep their commit order. Versions with no mutations are included.
//
// Returns an empty slice (not nil) if nothing was committed after the version.
func (s *Store) ReadCommits(ctx context.Context, after int64) ([]Commit, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT v.version, m.op, m.object_type, m.object_key, m.data
		FROM versions v
		LEFT JOIN mutations m ON m.version = v.version
		WHERE v.version > ?
		ORDER BY v.version ASC, m.seq ASC
	`, after)
	if err != nil {
		return nil, errors.Wrap(err, "query commits")
	}
	defer rows.Close()

	commits := []Commit{}
	for rows.Next() {
		var (
			version int64
			op      sql.NullString
			objType sql.NullString
			key     sql.NullString
			data    sql.NullString
		)
		if err := rows.Scan(&version, &op, &objType, &key, &data); err != nil {
			return nil, errors.Wrap(err, "scan commit")
		}

		if len(commits) == 0 || commits[len(commits)-1].Version != version {
			commits = append(commits, Commit{Version: version})
		}
		if !op.Valid {
			continue
		}

		m, err := scanMutation(Op(op.String), objType.String, key.String, data)
		if err != nil {
			return nil, errors.Wrapf(err, "version %d", version)
		}
		c := &commits[len(commits)-1]
		c.Mutations = append(c.Mutations, m)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate commits")
	}

	return commits, nil
}

func scanMutation(op Op, objType, key string, data sql.NullString) (Mutation, error) {
	m := Mutation{Op: op, Type: objType}

	k, err := unmarshalKey(key)
	if err != nil {
		return Mutation{}, err
	}
	m.Key = k

	switch op {
	case OpPut:
		if !data.Valid {
			return Mutation{}, errors.Newf("put of %s without data", objType)
		}
		row, err := unmarshalRow(data.String)
		if err != nil {
			return Mutation{}, err
		}
		m.Data = row
	case OpDelete:
	default:
		return Mutation{}, errors.Newf("unknown op %q", op)
	}
	return m, nil
}
