package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"newsmosaic/internal/logger"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive news conversation",
	Long: `Open a conversational session with the news agent. The agent
classifies each message, searches and ingests news for search requests,
and answers follow-up questions from the session's articles.

Type "exit" or "quit" to leave.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, _ := cmd.Flags().GetString("user")
		sessionID, _ := cmd.Flags().GetString("session")
		if sessionID == "" {
			sessionID = uuid.NewString()
		}

		bundle, err := newBundle()
		if err != nil {
			return err
		}
		defer bundle.Close()

		ctx := cmd.Context()
		fmt.Printf("会话已开始 (session %s)，输入 exit 退出。\n", sessionID[:8])

		scanner := bufio.NewScanner(os.Stdin)
		for {
			fmt.Print("> ")
			if !scanner.Scan() {
				break
			}
			message := strings.TrimSpace(scanner.Text())
			if message == "" {
				continue
			}
			if message == "exit" || message == "quit" {
				break
			}

			result, err := bundle.Agent.Process(ctx, userID, sessionID, message)
			if err != nil {
				fmt.Printf("出错了: %v\n", err)
				continue
			}
			fmt.Println(result.Response)

			// index freshly ingested articles so follow-ups can retrieve them
			if result.Ingest != nil && result.Ingest.Saved > 0 {
				if _, err := bundle.IndexScope(ctx, sessionID); err != nil {
					logger.Warn("indexing after ingest failed", "error", err.Error())
				}
			}
		}
		return scanner.Err()
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().StringP("user", "u", "default", "user identifier")
	chatCmd.Flags().StringP("session", "s", "", "session identifier (random when empty)")
}
