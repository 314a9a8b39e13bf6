package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/blackmichael/syndicator/internal/domain"
)

var importCmd = &cobra.Command{
	Use:   "import <file.json>",
	Short: "Load posts into the local store",
	Long:  "Read a JSON array of post property objects and insert or replace them in the post store.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("read posts: %w", err)
		}

		var items []domain.Properties
		if err := json.Unmarshal(data, &items); err != nil {
			return fmt.Errorf("parse posts: %w", err)
		}

		for i, props := range items {
			post, err := domain.NewPost(props)
			if err != nil {
				return fmt.Errorf("post %d: %w", i, err)
			}
			if err := current.repo.SavePost(cmd.Context(), post); err != nil {
				return err
			}
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Imported %d posts\n", len(items))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(importCmd)
}
