package commands

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
)

// NewClearCmd constructs the `ragstore clear` command, which empties the
// store entirely.
func NewClearCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove every chunk from the store",
		Long: `Empty the embedding store. The store directory and its files remain,
holding zero chunks; the vector dimension resets and is fixed again by the
next ingest. Requires --yes to avoid accidental wipes.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := slog.Default()

			if !yes {
				return fmt.Errorf("clear: refusing to wipe the store without --yes")
			}

			mgr, cleanup, err := buildManager(log)
			if err != nil {
				return fmt.Errorf("clear: %w", err)
			}
			defer cleanup()

			before := mgr.Store().Count()
			if err := mgr.Store().Clear(); err != nil {
				return fmt.Errorf("clear: %w", err)
			}

			fmt.Printf("cleared store: %d chunks removed\n", before)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Confirm wiping the store")

	return cmd
}
