package commands

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
)

// NewQueryCmd constructs the `ragstore query` command, which embeds a
// question and prints the most relevant, diversified chunks.
func NewQueryCmd() *cobra.Command {
	var topN int
	var lambda float64
	var poolSize int
	var minScore float64
	var showText bool

	cmd := &cobra.Command{
		Use:   "query [question]",
		Short: "Retrieve the most relevant chunks for a question",
		Long: `Embed the question and rank stored chunks by cosine similarity, then
diversify the top results with maximal marginal relevance so near-duplicate
chunks do not crowd out distinct ones.

Results below the relevance floor (--min-score) are dropped. A lambda of
1.0 disables diversification and returns pure relevance ranking.

Examples:
  ragstore query "how do I rotate the API keys?"
  ragstore query --top 5 --lambda 0.5 "deployment checklist"
  ragstore query --min-score -1 "loose match, keep everything"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := slog.Default()

			mgr, cleanup, err := buildManager(log)
			if err != nil {
				return fmt.Errorf("query: %w", err)
			}
			defer cleanup()

			question := strings.Join(args, " ")
			results, err := mgr.Query(ctx, question, resolveQueryOptions(topN, lambda, poolSize, minScore))
			if err != nil {
				return fmt.Errorf("query: %w", err)
			}

			if len(results) == 0 {
				fmt.Println("no results")
				return nil
			}

			for i, r := range results {
				fmt.Printf("%d. [%s] %s (score %.3f)\n", i+1, r.Chunk.ID, r.Chunk.Title, r.Score)
				if showText {
					fmt.Println(indent(r.Chunk.Text))
				}
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&topN, "top", "n", 0, "Number of results (default: 3)")
	cmd.Flags().Float64VarP(&lambda, "lambda", "l", -1, "Relevance/diversity balance in [0,1]; 1 = pure relevance (default: 0.7)")
	cmd.Flags().IntVar(&poolSize, "pool", 0, "Candidate pool size for diversification (default: 5x top)")
	cmd.Flags().Float64Var(&minScore, "min-score", 0, "Relevance floor; negative disables (default: 0.25)")
	cmd.Flags().BoolVar(&showText, "text", false, "Print full chunk text under each result")

	return cmd
}

// indent prefixes every line of s for readable nested output.
func indent(s string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i, l := range lines {
		lines[i] = "   " + l
	}
	return strings.Join(lines, "\n")
}
