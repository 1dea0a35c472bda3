package commands

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

// NewIngestCmd constructs the `ragstore ingest` command, which splits a
// document into chunks, embeds them, and appends them to the store.
func NewIngestCmd() *cobra.Command {
	var docID string
	var title string
	var metaPairs []string

	cmd := &cobra.Command{
		Use:   "ingest [file]",
		Short: "Ingest a document into the embedding store",
		Long: `Split a document into overlapping chunks, embed each chunk, and append
the result to the local store. Pass "-" to read the document from stdin.

The document ID defaults to the file name without extension. Re-ingesting
an existing ID is rejected; use 'ragstore update' to replace a document.

Environment variables:
  RAG_STORE_DIR        Store directory (default: rag_store)
  CHUNK_SIZE           Maximum chunk length in runes (default: 700)
  CHUNK_OVERLAP        Overlap between adjacent chunks (default: 120)
  EMBEDDING_PROVIDER   Embedding backend: ollama, openai (default: ollama)
  EMBEDDING_*          Provider-specific overrides (see README)

Examples:
  ragstore ingest docs/handbook.md
  ragstore ingest --id welcome-guide --title "Welcome Guide" guide.txt
  cat notes.txt | ragstore ingest --id notes -`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := slog.Default()

			text, err := readDocument(args[0])
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}

			id := docID
			if id == "" {
				if args[0] == "-" {
					return fmt.Errorf("ingest: --id is required when reading from stdin")
				}
				base := filepath.Base(args[0])
				id = strings.TrimSuffix(base, filepath.Ext(base))
			}

			extra, err := parseMeta(metaPairs)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}

			mgr, cleanup, err := buildManager(log)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			defer cleanup()

			n, err := mgr.Ingest(ctx, id, title, text, extra)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}

			fmt.Printf("ingested %q: %d chunks (store now holds %d)\n", id, n, mgr.Store().Count())
			return nil
		},
	}

	cmd.Flags().StringVar(&docID, "id", "", "Document ID (default: file name without extension)")
	cmd.Flags().StringVarP(&title, "title", "t", "", "Document title stored with each chunk")
	cmd.Flags().StringArrayVarP(&metaPairs, "meta", "m", nil, "Extra metadata as key=value (repeatable)")

	return cmd
}
