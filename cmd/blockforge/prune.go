package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"blockforge/internal/version"
)

var pruneKeep int

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Drop old versions beyond the retention window",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		subject := requireSubject()
		svc, closer, err := openService()
		if err != nil {
			fatal("Error opening version store", err)
		}
		defer closer()

		keep := pruneKeep
		if keep <= 0 {
			keep = version.DefaultKeep
		}
		if err := svc.Prune(context.Background(), subject, keep); err != nil {
			fatal("Error pruning versions", err)
		}
		fmt.Printf("pruned %s to the newest %d versions per file\n", subject, keep)
	},
}

func init() {
	rootCmd.AddCommand(pruneCmd)
	pruneCmd.Flags().IntVar(&pruneKeep, "keep", version.DefaultKeep, "Newest versions retained per file")
}
