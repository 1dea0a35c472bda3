package commands

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

// NewUpdateCmd constructs the `ragstore update` command, which replaces a
// document's chunks with a freshly chunked and embedded version.
func NewUpdateCmd() *cobra.Command {
	var docID string
	var title string
	var metaPairs []string

	cmd := &cobra.Command{
		Use:   "update [file]",
		Short: "Replace a document's chunks in the store",
		Long: `Remove the document's existing chunks and ingest the new content in
their place. Updating a document that is not in the store behaves like a
plain ingest. Pass "-" to read the new content from stdin.

Examples:
  ragstore update docs/handbook.md
  ragstore update --id welcome-guide revised-guide.txt`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := slog.Default()

			text, err := readDocument(args[0])
			if err != nil {
				return fmt.Errorf("update: %w", err)
			}

			id := docID
			if id == "" {
				if args[0] == "-" {
					return fmt.Errorf("update: --id is required when reading from stdin")
				}
				base := filepath.Base(args[0])
				id = strings.TrimSuffix(base, filepath.Ext(base))
			}

			extra, err := parseMeta(metaPairs)
			if err != nil {
				return fmt.Errorf("update: %w", err)
			}

			mgr, cleanup, err := buildManager(log)
			if err != nil {
				return fmt.Errorf("update: %w", err)
			}
			defer cleanup()

			n, err := mgr.Update(ctx, id, title, text, extra)
			if err != nil {
				return fmt.Errorf("update: %w", err)
			}

			fmt.Printf("updated %q: %d chunks (store now holds %d)\n", id, n, mgr.Store().Count())
			return nil
		},
	}

	cmd.Flags().StringVar(&docID, "id", "", "Document ID (default: file name without extension)")
	cmd.Flags().StringVarP(&title, "title", "t", "", "Document title stored with each chunk")
	cmd.Flags().StringArrayVarP(&metaPairs, "meta", "m", nil, "Extra metadata as key=value (repeatable)")

	return cmd
}
