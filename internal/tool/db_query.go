package tool

import (
	"context"
	"encoding/json"

	"github.com/invopop/jsonschema"
	"github.com/pkg/errors"
)

// DBQueryTool exposes store.ExecuteReadonlyQuery (§4.1, §6.2) to the
// model. Non-filesystem (§4.2): AffectedPaths returns the nil sentinel
// since a SQL query has no path set to conflict on, so the scheduler
// treats every call as a conflict-free read regardless of scope.
type DBQueryTool struct{}

func NewDBQueryTool() *DBQueryTool { return &DBQueryTool{} }

type DBQueryInput struct {
	SQL string `json:"sql" jsonschema:"description=A SELECT/SHOW/DESCRIBE/EXPLAIN/WITH statement"`
}

func (t *DBQueryTool) Name() string                      { return "db_query" }
func (t *DBQueryTool) GenerateSchema() *jsonschema.Schema { return GenerateSchema[DBQueryInput]() }

func (t *DBQueryTool) Description() string {
	return `Runs a read-only SQL query against the conversation store and returns up to 500 rows.

Only SELECT, SHOW, DESCRIBE, EXPLAIN, and WITH statements are accepted.
Use this to inspect conversation history, exchange metrics, or stored summaries.`
}

func (t *DBQueryTool) ValidateInput(state State, parameters string) error {
	in := &DBQueryInput{}
	if err := json.Unmarshal([]byte(parameters), in); err != nil {
		return err
	}
	if in.SQL == "" {
		return errors.New("sql is required")
	}
	return nil
}

func (t *DBQueryTool) Classification() Classification {
	return Classification{OperationType: OpRead, Scope: ScopeUnconfined}
}

func (t *DBQueryTool) AffectedPaths(state State, parameters string) []string {
	return nil
}

func (t *DBQueryTool) Execute(ctx context.Context, state State, parameters string) Result {
	in := &DBQueryInput{}
	if err := json.Unmarshal([]byte(parameters), in); err != nil {
		return ErrorResult("db_query", err)
	}

	rows, err := state.Store().ExecuteReadonlyQuery(ctx, in.SQL)
	if err != nil {
		return ErrorResult("db_query", err)
	}

	return BaseResult{ToolName: "db_query", Result: renderRows(rows), Data: rows}
}

func renderRows(rows []map[string]interface{}) string {
	b, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return err.Error()
	}
	return string(b)
}
