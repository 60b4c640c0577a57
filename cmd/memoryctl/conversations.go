package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
)

func init() {
	convCmd := &cobra.Command{Use: "conversations", Short: "Conversation operations"}

	var recentLimit int
	recentCmd := &cobra.Command{
		Use:   "recent SESSION_ID",
		Short: "Show the recent context window for a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := doGet("/api/conversations/"+args[0]+"/turns/recent",
				map[string]string{"limit": strconv.Itoa(recentLimit)})
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	recentCmd.Flags().IntVarP(&recentLimit, "limit", "l", 5, "Number of turns")
	convCmd.AddCommand(recentCmd)

	var searchUser, searchQuery string
	var searchThreshold float64
	var searchLimit int
	searchCmd := &cobra.Command{
		Use:   "search",
		Short: "Search turns across a user's conversations",
		RunE: func(cmd *cobra.Command, args []string) error {
			if searchUser == "" {
				return fmt.Errorf("--user required")
			}
			data, err := doPost("/api/conversations/search", map[string]interface{}{
				"userId":    searchUser,
				"query":     searchQuery,
				"threshold": searchThreshold,
				"limit":     searchLimit,
			})
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	searchCmd.Flags().StringVarP(&searchUser, "user", "u", "", "User ID (required)")
	searchCmd.Flags().StringVarP(&searchQuery, "query", "q", "", "Query text (required)")
	searchCmd.Flags().Float64VarP(&searchThreshold, "threshold", "t", 0.7, "Similarity floor")
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "l", 10, "Max results")
	_ = searchCmd.MarkFlagRequired("query")
	convCmd.AddCommand(searchCmd)

	rootCmd.AddCommand(convCmd)
}
