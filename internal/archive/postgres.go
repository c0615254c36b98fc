package archive

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/namratade97/berlin-kultur-intel/internal/model"
)

// Pool is the subset of pgxpool.Pool the mirror needs. pgxmock satisfies
// it in tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	cfg.MaxConns = 5
	cfg.MaxConnLifetime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: connect")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresWithPool wraps an existing pool. Used by tests.
func NewPostgresWithPool(pool Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresSchema = `
CREATE TABLE historical_events (
	id             BIGSERIAL PRIMARY KEY,
	"eventName"    TEXT,
	district       TEXT,
	"venueName"    TEXT,
	collection     TEXT,
	url            TEXT,
	quality_status TEXT
)`

func (s *PostgresStore) Rebuild(ctx context.Context, events []model.EventPayload) error {
	if _, err := s.pool.Exec(ctx, "DROP TABLE IF EXISTS historical_events"); err != nil {
		return eris.Wrap(err, "postgres: drop mirror")
	}
	if _, err := s.pool.Exec(ctx, postgresSchema); err != nil {
		return eris.Wrap(err, "postgres: create mirror")
	}

	for _, e := range events {
		_, err := s.pool.Exec(ctx,
			`INSERT INTO historical_events ("eventName", district, "venueName", collection, url, quality_status)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			e.EventName, e.District, e.VenueName, e.Collection, e.URL, e.QualityStatus,
		)
		if err != nil {
			return eris.Wrapf(err, "postgres: insert %s", e.EventName)
		}
	}
	return nil
}

func (s *PostgresStore) Query(ctx context.Context, query string) ([]map[string]any, error) {
	q, err := guardReadOnly(query)
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, q)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query")
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	var out []map[string]any
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, eris.Wrap(err, "postgres: row values")
		}
		row := make(map[string]any, len(fields))
		for i, f := range fields {
			row[f.Name] = values[i]
		}
		out = append(out, row)
	}
	return out, eris.Wrap(rows.Err(), "postgres: rows")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
