// Database admin commands — grounded on cmd/kodelet/db.go's
// status/rollback ergonomics, extended with the supplemented corruption
// scrubber (SPEC_FULL.md supplemented feature 1).
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/mgreenly/nuagent/internal/store"
	"github.com/mgreenly/nuagent/internal/store/migrations"
)

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Database management commands",
}

var dbMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply any pending schema migrations",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := context.Background()
		dbPath, err := resolvedDBPath()
		if err != nil {
			return err
		}
		db, err := store.Open(ctx, dbPath)
		if err != nil {
			return err
		}
		defer db.Close()
		return store.NewMigrationRunner(db).Run(ctx, migrations.All())
	},
}

var dbScrubCmd = &cobra.Command{
	Use:   "scrub",
	Short: "Delete messages with corrupted tool_calls payloads",
	Long:  `Wraps find_corrupted_messages (§4.1) with a delete — supplemented feature 1, mirroring the teacher's admin-tool ergonomics.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := context.Background()
		a, err := buildApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		corrupted, err := a.gateway.FindCorruptedMessages(ctx)
		if err != nil {
			return err
		}
		if len(corrupted) == 0 {
			a.present.Info("no corrupted messages found")
			return nil
		}

		ids := make([]int64, len(corrupted))
		for i, m := range corrupted {
			ids[i] = m.ID
		}
		deleted, err := a.gateway.DeleteMessages(ctx, ids)
		if err != nil {
			return err
		}
		a.present.Success(fmt.Sprintf("deleted %d corrupted message(s)", deleted))
		return nil
	},
}

var dbBackupCmd = &cobra.Command{
	Use:   "backup <destination>",
	Short: "Copy the database file to destination",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dbPath, err := resolvedDBPath()
		if err != nil {
			return err
		}
		return copyFile(dbPath, args[0])
	},
}

var dbMigrateExchangesCmd = &cobra.Command{
	Use:   "migrate-exchanges",
	Short: "Backfill exchange metrics from their messages",
	Long:  `Recomputes token/spend/tool-call totals of every exchange from its messages and overwrites the stored values — for databases populated before §4.1's metrics columns existed.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := context.Background()
		a, err := buildApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		rows, err := a.gateway.ExecuteReadonlyQuery(ctx, "SELECT id, conversation_id FROM exchanges")
		if err != nil {
			return err
		}

		var fixed int
		for _, row := range rows {
			exchangeID, convID := rowInt64(row["id"]), rowInt64(row["conversation_id"])
			msgs, err := a.gateway.Messages(ctx, convID, store.MessagesQuery{})
			if err != nil {
				return err
			}

			var tokensIn, tokensOut, toolCalls int64
			var spend float64
			var count int64
			for _, m := range msgs {
				if m.ExchangeID != exchangeID {
					continue
				}
				count++
				if m.TokensInput != nil && *m.TokensInput > tokensIn {
					tokensIn = *m.TokensInput
				}
				if m.TokensOutput != nil {
					tokensOut += *m.TokensOutput
				}
				if m.Spend != nil {
					spend += *m.Spend
				}
				if m.ToolCalls != nil {
					var calls []json.RawMessage
					if err := json.Unmarshal([]byte(*m.ToolCalls), &calls); err == nil {
						toolCalls += int64(len(calls))
					}
				}
			}

			if err := a.gateway.UpdateExchange(ctx, exchangeID, store.ExchangeUpdate{
				TokensInput:   &tokensIn,
				TokensOutput:  &tokensOut,
				Spend:         &spend,
				MessageCount:  &count,
				ToolCallCount: &toolCalls,
			}); err != nil {
				return err
			}
			fixed++
		}

		a.present.Success(fmt.Sprintf("backfilled metrics for %d exchange(s)", fixed))
		return nil
	},
}

func init() {
	dbCmd.AddCommand(dbMigrateCmd)
	dbCmd.AddCommand(dbScrubCmd)
	dbCmd.AddCommand(dbBackupCmd)
	dbCmd.AddCommand(dbMigrateExchangesCmd)
}

func resolvedDBPath() (string, error) {
	return store.DefaultDBPath()
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}

// rowInt64 normalizes ExecuteReadonlyQuery's driver-dependent numeric
// representation (int64 for modernc.org/sqlite) into an int64.
func rowInt64(v interface{}) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	default:
		return 0
	}
}
