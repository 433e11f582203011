package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats [session]",
	Short: "Show a session's article statistics",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		bundle, err := newBundle()
		if err != nil {
			return err
		}
		defer bundle.Close()

		stats, err := bundle.Ingest.Stats(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		fmt.Printf("session:  %s\n", stats.Scope)
		fmt.Printf("articles: %d\n", stats.TotalArticles)
		if stats.OldestDate != "" {
			fmt.Printf("dates:    %s .. %s\n", stats.OldestDate, stats.NewestDate)
		}
		if len(stats.KeywordCounts) > 0 {
			keywords := make([]string, 0, len(stats.KeywordCounts))
			for kw := range stats.KeywordCounts {
				keywords = append(keywords, kw)
			}
			sort.Slice(keywords, func(i, j int) bool {
				if stats.KeywordCounts[keywords[i]] != stats.KeywordCounts[keywords[j]] {
					return stats.KeywordCounts[keywords[i]] > stats.KeywordCounts[keywords[j]]
				}
				return keywords[i] < keywords[j]
			})
			fmt.Println("keywords:")
			for _, kw := range keywords {
				fmt.Printf("  %-20s %d\n", kw, stats.KeywordCounts[kw])
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
