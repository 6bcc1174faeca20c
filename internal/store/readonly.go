package store

import (
	"context"
	"strings"

	"github.com/pkg/errors"
)

const readonlyRowCap = 500

var readonlyAllowedFirstWords = map[string]bool{
	"SELECT":   true,
	"SHOW":     true,
	"DESCRIBE": true,
	"EXPLAIN":  true,
	"WITH":     true,
}

// ErrQueryNotReadonly is returned by ExecuteReadonlyQuery when the
// statement's first token isn't in the read-only allowlist (§4.1, §6.2).
var ErrQueryNotReadonly = errors.New("query is not read-only")

// ExecuteReadonlyQuery is the only SQL surface exposed to tools. It
// rejects anything whose first token isn't SELECT/SHOW/DESCRIBE/
// EXPLAIN/WITH and caps the result at 500 rows, returning each row as
// a column-name -> value map so callers don't need to know the schema
// up front.
func (g *Gateway) ExecuteReadonlyQuery(ctx context.Context, sql string) ([]map[string]interface{}, error) {
	if err := validateReadonly(sql); err != nil {
		return nil, err
	}

	rows, err := g.db.QueryxContext(ctx, sql)
	if err != nil {
		return nil, StoreErrorf(err, "failed to execute read-only query")
	}
	defer rows.Close()

	var results []map[string]interface{}
	for rows.Next() {
		if len(results) >= readonlyRowCap {
			break
		}
		row := make(map[string]interface{})
		if err := rows.MapScan(row); err != nil {
			return nil, StoreErrorf(err, "failed to scan read-only query row")
		}
		results = append(results, row)
	}
	if err := rows.Err(); err != nil {
		return nil, StoreErrorf(err, "failed to iterate read-only query rows")
	}
	return results, nil
}

func validateReadonly(sql string) error {
	trimmed := strings.TrimSpace(sql)
	if trimmed == "" {
		return InvalidArgument("query must not be empty")
	}
	fields := strings.Fields(trimmed)
	first := strings.ToUpper(strings.TrimSuffix(fields[0], ";"))
	if !readonlyAllowedFirstWords[first] {
		return errors.Wrapf(ErrQueryNotReadonly, "statement must start with SELECT/SHOW/DESCRIBE/EXPLAIN/WITH, got %q", first)
	}
	return nil
}
