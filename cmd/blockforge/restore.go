package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var restoreAuthor string

var restoreCmd = &cobra.Command{
	Use:   "restore <version-id>",
	Short: "Restore a stored version into the working content",
	Long: `Restore writes the chosen version's content back into the subject's
working files and records the restoration as a new version.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		subject := requireSubject()
		svc, closer, err := openService()
		if err != nil {
			fatal("Error opening version store", err)
		}
		defer closer()

		key, newID, err := svc.Restore(context.Background(), subject, args[0], restoreAuthor)
		if err != nil {
			fatal("Error restoring version", err)
		}
		fmt.Printf("restored %s (new version %s)\n", key, newID)
	},
}

func init() {
	rootCmd.AddCommand(restoreCmd)
	restoreCmd.Flags().StringVar(&restoreAuthor, "author", "", "Author recorded on the new version")
}
