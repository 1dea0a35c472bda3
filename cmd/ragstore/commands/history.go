package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/recoveryos/ragstore-go/internal/journal"
)

// NewHistoryCmd constructs the `ragstore history` command, which lists
// recorded store mutations from the ingestion journal.
func NewHistoryCmd() *cobra.Command {
	var docID string
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent store mutations from the journal",
		Long: `List ingest, update, and delete events recorded in the journal.

Without flags the most recent events across all documents are shown,
newest first. With --doc the full history of a single document is shown
in chronological order.

Examples:
  ragstore history
  ragstore history --limit 50
  ragstore history --doc welcome-guide`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			dbPath := os.Getenv("RAGSTORE_JOURNAL_DB")
			if dbPath == "disabled" {
				return fmt.Errorf("history: journal is disabled (RAGSTORE_JOURNAL_DB=disabled)")
			}
			if dbPath == "" {
				var err error
				dbPath, err = journal.DefaultDBPath()
				if err != nil {
					return fmt.Errorf("history: resolve journal path: %w", err)
				}
			}

			jnl, err := journal.Open(dbPath)
			if err != nil {
				return fmt.Errorf("history: open journal %s: %w", dbPath, err)
			}
			defer jnl.Close()

			var events []journal.Event
			if docID != "" {
				events, err = jnl.History(ctx, docID)
			} else {
				events, err = jnl.Recent(ctx, limit)
			}
			if err != nil {
				return fmt.Errorf("history: %w", err)
			}

			if len(events) == 0 {
				fmt.Println("no journal events")
				return nil
			}

			for _, e := range events {
				fmt.Printf("%s  %-6s  %-30s  %d chunks\n",
					e.CreatedAt.Format("2006-01-02 15:04:05"), e.Action, e.DocID, e.Chunks)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&docID, "doc", "", "Show the full history of a single document")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of events to show")

	return cmd
}
