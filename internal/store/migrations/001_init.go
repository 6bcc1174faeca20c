// Package migrations holds the compiled-Go schema migrations for the
// agent execution core's embedded store, applied by
// internal/store.MigrationRunner (see store.NewWithMigrations and
// `nuagent db migrate`). Authoring new migrations means adding a
// new file here, not hand-editing prior ones.
package migrations

import (
	"database/sql"

	"github.com/pkg/errors"

	"github.com/mgreenly/nuagent/internal/store"
)

// All returns every migration known to this build, in the order
// store.MigrationRunner will sort and apply them.
func All() []store.Migration {
	return []store.Migration{
		migration001(),
		migration002(),
	}
}

func migration001() store.Migration {
	return store.Migration{
		Version:     20260101000001,
		Description: "create conversations, exchanges, messages",
		Up: func(tx *sql.Tx) error {
			stmts := []string{
				`CREATE TABLE IF NOT EXISTS conversations (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					created_at DATETIME NOT NULL,
					title TEXT,
					status TEXT NOT NULL DEFAULT 'active',
					summary TEXT,
					summary_model TEXT,
					summary_cost REAL
				)`,
				`CREATE TABLE IF NOT EXISTS exchanges (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					conversation_id INTEGER NOT NULL REFERENCES conversations(id),
					exchange_number INTEGER NOT NULL,
					started_at DATETIME NOT NULL,
					completed_at DATETIME,
					status TEXT NOT NULL DEFAULT 'in_progress',
					user_message TEXT NOT NULL,
					assistant_message TEXT,
					summary TEXT,
					error TEXT,
					tokens_input INTEGER NOT NULL DEFAULT 0,
					tokens_output INTEGER NOT NULL DEFAULT 0,
					spend REAL NOT NULL DEFAULT 0,
					message_count INTEGER NOT NULL DEFAULT 0,
					tool_call_count INTEGER NOT NULL DEFAULT 0,
					UNIQUE(conversation_id, exchange_number)
				)`,
				`CREATE INDEX IF NOT EXISTS idx_exchanges_conversation ON exchanges(conversation_id)`,
				`CREATE TABLE IF NOT EXISTS messages (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					conversation_id INTEGER NOT NULL REFERENCES conversations(id),
					exchange_id INTEGER NOT NULL REFERENCES exchanges(id),
					actor TEXT,
					role TEXT NOT NULL,
					content TEXT NOT NULL DEFAULT '',
					model TEXT,
					tokens_input INTEGER,
					tokens_output INTEGER,
					spend REAL,
					tool_calls TEXT,
					tool_call_id TEXT,
					tool_result TEXT,
					error TEXT,
					redacted BOOLEAN NOT NULL DEFAULT 0,
					include_in_context BOOLEAN NOT NULL DEFAULT 1,
					created_at DATETIME NOT NULL
				)`,
				`CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, id)`,
				`CREATE INDEX IF NOT EXISTS idx_messages_exchange ON messages(exchange_id)`,
			}
			for _, s := range stmts {
				if _, err := tx.Exec(s); err != nil {
					return errors.Wrapf(err, "failed executing: %s", s)
				}
			}
			return nil
		},
	}
}

func migration002() store.Migration {
	return store.Migration{
		Version:     20260101000002,
		Description: "create embeddings, app_config, failed_jobs, worker counters",
		Up: func(tx *sql.Tx) error {
			stmts := []string{
				`CREATE TABLE IF NOT EXISTS text_embeddings (
					kind TEXT NOT NULL,
					source TEXT NOT NULL,
					content TEXT NOT NULL,
					dim INTEGER NOT NULL DEFAULT 1536,
					embedding BLOB NOT NULL,
					indexed_at DATETIME NOT NULL,
					PRIMARY KEY (kind, source)
				)`,
				`CREATE INDEX IF NOT EXISTS idx_text_embeddings_kind ON text_embeddings(kind)`,
				`CREATE TABLE IF NOT EXISTS app_config (
					key TEXT PRIMARY KEY,
					value TEXT NOT NULL,
					updated_at DATETIME NOT NULL
				)`,
				`CREATE TABLE IF NOT EXISTS failed_jobs (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					job_type TEXT NOT NULL,
					ref_id TEXT,
					payload TEXT,
					error TEXT NOT NULL,
					retry_count INTEGER NOT NULL DEFAULT 0,
					failed_at DATETIME NOT NULL
				)`,
				`INSERT OR IGNORE INTO app_config (key, value, updated_at) VALUES ('active_workers', '0', CURRENT_TIMESTAMP)`,
			}
			for _, s := range stmts {
				if _, err := tx.Exec(s); err != nil {
					return errors.Wrapf(err, "failed executing: %s", s)
				}
			}
			return nil
		},
	}
}
