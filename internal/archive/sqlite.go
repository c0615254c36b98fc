package archive

import (
	"context"
	"database/sql"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/namratade97/berlin-kultur-intel/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL
// mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteSchema = `
CREATE TABLE historical_events (
	id             INTEGER PRIMARY KEY,
	eventName      TEXT,
	district       TEXT,
	venueName      TEXT,
	collection     TEXT,
	url            TEXT,
	quality_status TEXT
);
`

func (s *SQLiteStore) Rebuild(ctx context.Context, events []model.EventPayload) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin rebuild")
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS historical_events"); err != nil {
		return eris.Wrap(err, "sqlite: drop mirror")
	}
	if _, err := tx.ExecContext(ctx, sqliteSchema); err != nil {
		return eris.Wrap(err, "sqlite: create mirror")
	}

	for _, e := range events {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO historical_events (eventName, district, venueName, collection, url, quality_status)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			e.EventName, e.District, e.VenueName, e.Collection, e.URL, e.QualityStatus,
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: insert %s", e.EventName)
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit rebuild")
}

func (s *SQLiteStore) Query(ctx context.Context, query string) ([]map[string]any, error) {
	q, err := guardReadOnly(query)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query")
	}
	defer rows.Close() //nolint:errcheck

	cols, err := rows.Columns()
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: columns")
	}

	var out []map[string]any
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan")
		}
		row := make(map[string]any, len(cols))
		for i, col := range cols {
			row[col] = values[i]
		}
		out = append(out, row)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: rows")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
