package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var interestsCmd = &cobra.Command{
	Use:   "interests",
	Short: "Manage a user's interest tags",
}

var interestsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the user's interests",
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, _ := cmd.Flags().GetString("user")

		bundle, err := newBundle()
		if err != nil {
			return err
		}
		defer bundle.Close()

		tags, err := bundle.Interests.Get(cmd.Context(), userID)
		if err != nil {
			return err
		}
		if len(tags) == 0 {
			fmt.Println("no interests recorded")
			return nil
		}
		fmt.Println(strings.Join(tags, ", "))
		return nil
	},
}

var interestsAddCmd = &cobra.Command{
	Use:   "add [tags...]",
	Short: "Add interest tags",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, _ := cmd.Flags().GetString("user")

		bundle, err := newBundle()
		if err != nil {
			return err
		}
		defer bundle.Close()

		tags, err := bundle.Interests.Add(cmd.Context(), userID, args)
		if err != nil {
			return err
		}
		fmt.Println(strings.Join(tags, ", "))
		return nil
	},
}

var interestsRemoveCmd = &cobra.Command{
	Use:   "remove [tags...]",
	Short: "Remove interest tags",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, _ := cmd.Flags().GetString("user")

		bundle, err := newBundle()
		if err != nil {
			return err
		}
		defer bundle.Close()

		tags, err := bundle.Interests.Remove(cmd.Context(), userID, args)
		if err != nil {
			return err
		}
		if len(tags) == 0 {
			fmt.Println("no interests remaining")
			return nil
		}
		fmt.Println(strings.Join(tags, ", "))
		return nil
	},
}

var interestsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove all interest tags",
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, _ := cmd.Flags().GetString("user")

		bundle, err := newBundle()
		if err != nil {
			return err
		}
		defer bundle.Close()

		if err := bundle.Interests.Clear(cmd.Context(), userID); err != nil {
			return err
		}
		fmt.Println("interests cleared")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(interestsCmd)
	interestsCmd.PersistentFlags().StringP("user", "u", "default", "user identifier")
	interestsCmd.AddCommand(interestsListCmd, interestsAddCmd, interestsRemoveCmd, interestsClearCmd)
}
