package cmd

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"newsmosaic/internal/core"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [keywords...]",
	Short: "Search and ingest news for keywords",
	Long: `Run one search-and-ingest pass for the given keywords, then embed
the new articles into the vector index.

Example:
  newsmosaic ingest 人工智能 芯片 --window 1d
  newsmosaic ingest 体育 --session mysession --num 20`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sessionID, _ := cmd.Flags().GetString("session")
		window, _ := cmd.Flags().GetString("window")
		num, _ := cmd.Flags().GetInt("num")
		if sessionID == "" {
			sessionID = uuid.NewString()
		}

		bundle, err := newBundle()
		if err != nil {
			return err
		}
		defer bundle.Close()

		ctx := cmd.Context()
		result := bundle.Ingest.Ingest(ctx, core.SearchRequest{
			Scope:      sessionID,
			Keywords:   args,
			NumResults: num,
			TimeWindow: window,
			Language:   bundle.Config.Search.Language,
			Country:    bundle.Config.Search.Country,
		})
		if result.Status != "success" {
			return fmt.Errorf("ingest failed: %s", result.Message)
		}

		indexed, err := bundle.IndexScope(ctx, sessionID)
		if err != nil {
			return err
		}

		fmt.Printf("session: %s\n", sessionID)
		fmt.Printf("found %d, saved %d, updated %d, skipped %d, indexed %d (%.1fs)\n",
			result.Found, result.Saved, result.Updated, result.Skipped, indexed,
			result.Elapsed.Seconds())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(ingestCmd)
	ingestCmd.Flags().StringP("session", "s", "", "session to ingest into (random when empty)")
	ingestCmd.Flags().StringP("window", "w", "1w", "time window: 1d, 1w, 1m, 1y")
	ingestCmd.Flags().IntP("num", "n", 10, "number of results to request")
}
