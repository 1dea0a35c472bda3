package commands

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
)

// NewDeleteCmd constructs the `ragstore delete` command, which removes all
// chunks of a document from the store.
func NewDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete [doc-id]",
		Short: "Remove a document's chunks from the store",
		Long: `Remove every chunk belonging to the given document ID and rewrite the
store files. Deleting an absent document is a no-op.

Examples:
  ragstore delete welcome-guide`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := slog.Default()

			mgr, cleanup, err := buildManager(log)
			if err != nil {
				return fmt.Errorf("delete: %w", err)
			}
			defer cleanup()

			removed, err := mgr.Delete(ctx, args[0])
			if err != nil {
				return fmt.Errorf("delete: %w", err)
			}

			if removed == 0 {
				fmt.Printf("no chunks found for %q\n", args[0])
				return nil
			}
			fmt.Printf("deleted %q: %d chunks removed (store now holds %d)\n", args[0], removed, mgr.Store().Count())
			return nil
		},
	}

	return cmd
}
