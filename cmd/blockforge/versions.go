package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"blockforge/internal/filekey"
	"blockforge/internal/version"
)

var (
	versionsJSON  bool
	versionsKey   string
	versionsLimit int
)

var versionsCmd = &cobra.Command{
	Use:   "versions",
	Short: "List stored file versions for a subject",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		subject := requireSubject()
		svc, closer, err := openService()
		if err != nil {
			fatal("Error opening version store", err)
		}
		defer closer()

		ctx := context.Background()
		var all map[filekey.Key][]version.Record
		if versionsKey != "" {
			key := filekey.Normalize(versionsKey)
			recs, err := svc.ListVersions(ctx, subject, key, versionsLimit)
			if err != nil {
				fatal("Error listing versions", err)
			}
			all = map[filekey.Key][]version.Record{key: recs}
		} else {
			all, err = svc.ListAll(ctx, subject)
			if err != nil {
				fatal("Error listing versions", err)
			}
			if versionsLimit > 0 {
				for key, recs := range all {
					if len(recs) > versionsLimit {
						all[key] = recs[:versionsLimit]
					}
				}
			}
		}

		if versionsJSON {
			encoder := json.NewEncoder(os.Stdout)
			encoder.SetIndent("", "  ")
			if err := encoder.Encode(all); err != nil {
				fatal("Error encoding JSON", err)
			}
			return
		}
		for key, recs := range all {
			fmt.Printf("%s\n", key)
			for _, rec := range recs {
				fmt.Printf("  v%-4d %s  %s  %s\n",
					rec.VersionNumber, rec.ID, rec.ContentHash[:12], rec.CreatedAt.Format("2006-01-02 15:04:05"))
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(versionsCmd)
	versionsCmd.Flags().BoolVar(&versionsJSON, "json", false, "Output in JSON format")
	versionsCmd.Flags().StringVar(&versionsKey, "key", "", "Limit to one file key")
	versionsCmd.Flags().IntVar(&versionsLimit, "limit", 0, "Show at most N versions per file")
}
