package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Syndicate every pending post",
	Long:  "Run one batch over all non-draft posts with pending targets and print the summary as JSON.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		summary, err := current.service.SyndicatePending(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(cmd, summary)
	},
}

var postForce bool

var postCmd = &cobra.Command{
	Use:   "post [url]",
	Short: "Syndicate a single post",
	Long: `Syndicate the post with the given URL, re-delivering to its requested
targets even if they already succeeded. Without a URL the most recently
published pending post is syndicated without forcing.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		url, force := "", false
		if len(args) == 1 {
			url, force = args[0], postForce
		}

		outcome, err := current.service.SyndicatePost(cmd.Context(), url, force)
		if err != nil {
			return err
		}
		return printJSON(cmd, outcome)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(postCmd)

	postCmd.Flags().BoolVar(&postForce, "force", true, "Re-deliver to targets that already succeeded")
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}
