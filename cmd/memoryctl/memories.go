package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
)

func init() {
	memCmd := &cobra.Command{Use: "memories", Short: "Long-term memory operations"}

	var listKind string
	var listLimit int
	listCmd := &cobra.Command{
		Use:   "list USER_ID",
		Short: "List a user's active memories",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := map[string]string{"limit": strconv.Itoa(listLimit)}
			if listKind != "" {
				query["kind"] = listKind
			}
			data, err := doGet("/api/users/"+args[0]+"/memories", query)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	listCmd.Flags().StringVarP(&listKind, "kind", "k", "", "Filter by kind (preference|fact|pattern|relationship)")
	listCmd.Flags().IntVarP(&listLimit, "limit", "l", 50, "Max results")
	memCmd.AddCommand(listCmd)

	var createKind, createContent string
	var createConfidence float64
	createCmd := &cobra.Command{
		Use:   "create USER_ID",
		Short: "Store a distilled memory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := doPost("/api/users/"+args[0]+"/memories", map[string]interface{}{
				"kind":       createKind,
				"content":    createContent,
				"confidence": createConfidence,
			})
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	createCmd.Flags().StringVarP(&createKind, "kind", "k", "fact", "Memory kind")
	createCmd.Flags().StringVarP(&createContent, "content", "c", "", "Memory content (required)")
	createCmd.Flags().Float64Var(&createConfidence, "confidence", 1.0, "Confidence score")
	_ = createCmd.MarkFlagRequired("content")
	memCmd.AddCommand(createCmd)

	var searchUser, searchQuery string
	var searchThreshold float64
	var searchLimit int
	searchCmd := &cobra.Command{
		Use:   "search",
		Short: "Similarity-search a user's memories (bumps access stats)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if searchUser == "" {
				return fmt.Errorf("--user required")
			}
			data, err := doPost("/api/memories/search", map[string]interface{}{
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
	memCmd.AddCommand(searchCmd)

	rootCmd.AddCommand(memCmd)

	patternCmd := &cobra.Command{Use: "patterns", Short: "Behavioral pattern operations"}

	patternsListCmd := &cobra.Command{
		Use:   "list USER_ID",
		Short: "List a user's patterns",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := doGet("/api/users/"+args[0]+"/patterns", nil)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	patternCmd.AddCommand(patternsListCmd)

	var setData string
	var setConfidence float64
	setCmd := &cobra.Command{
		Use:   "set USER_ID PATTERN_TYPE",
		Short: "Upsert one pattern observation",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var dataMap map[string]interface{}
			if err := json.Unmarshal([]byte(setData), &dataMap); err != nil {
				return fmt.Errorf("--data must be a JSON object: %w", err)
			}
			data, err := doPut("/api/users/"+args[0]+"/patterns/"+args[1], map[string]interface{}{
				"data":       dataMap,
				"confidence": setConfidence,
			})
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	setCmd.Flags().StringVarP(&setData, "data", "d", "", "Pattern data as a JSON object (required)")
	setCmd.Flags().Float64Var(&setConfidence, "confidence", 0.5, "Confidence score")
	_ = setCmd.MarkFlagRequired("data")
	patternCmd.AddCommand(setCmd)

	rootCmd.AddCommand(patternCmd)
}
