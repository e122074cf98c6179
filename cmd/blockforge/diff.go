package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var diffCmd = &cobra.Command{
	Use:   "diff <from-version-id> <to-version-id>",
	Short: "Show a unified diff between two stored versions of the same file",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		svc, closer, err := openService()
		if err != nil {
			fatal("Error opening version store", err)
		}
		defer closer()

		res, err := svc.Diff(context.Background(), args[0], args[1])
		if err != nil {
			fatal("Error computing diff", err)
		}
		if res.Unified == "" {
			fmt.Printf("%s: no textual difference\n", res.FileKey)
			return
		}
		fmt.Print(res.Unified)
	},
}

func init() {
	rootCmd.AddCommand(diffCmd)
}
