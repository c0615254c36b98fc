// Package archive maintains a denormalized relational mirror of the vault
// so analytical questions can be answered with plain SQL instead of vector
// search. The mirror is disposable: it is dropped and rebuilt from a full
// vault scroll at startup.
package archive

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/namratade97/berlin-kultur-intel/internal/model"
)

// Table is the mirror table name, referenced verbatim in the SQL-generation
// prompt.
const Table = "historical_events"

// Columns lists the mirrored payload fields, in insert order.
var Columns = []string{"eventName", "district", "venueName", "collection", "url", "quality_status"}

// ErrNotReadOnly is returned for queries that are not a single SELECT.
var ErrNotReadOnly = eris.New("archive: only single SELECT statements are allowed")

// Store is the relational mirror interface.
type Store interface {
	// Rebuild drops and recreates the mirror table from the given payloads.
	Rebuild(ctx context.Context, events []model.EventPayload) error
	// Query runs a read-only SELECT and returns rows as column->value maps.
	Query(ctx context.Context, query string) ([]map[string]any, error)
	// Close releases the underlying connection.
	Close() error
}

// guardReadOnly validates that a statement is a single SELECT. The SQL
// arrives from an LLM, so this is the only thing standing between a prompt
// injection and a DROP TABLE.
func guardReadOnly(query string) (string, error) {
	q := strings.TrimSpace(query)
	q = strings.TrimSuffix(q, ";")
	if strings.Contains(q, ";") {
		return "", ErrNotReadOnly
	}
	if !strings.HasPrefix(strings.ToUpper(q), "SELECT") {
		return "", ErrNotReadOnly
	}
	return q, nil
}
