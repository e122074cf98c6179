package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"blockforge/internal/contentstore"
	"blockforge/internal/version"
)

var (
	subjectID string
	dataDir   string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "blockforge",
	Short: "Inspect and manage block plugin file versions",
	Long: `Blockforge's version store keeps a content-addressed history per plugin file.
This tool lists, diffs, restores, and prunes that history from the command line.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		_ = godotenv.Load()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&subjectID, "subject", "", "Subject (plugin) identifier")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "data", "Local content/chat data directory")
}

// openService connects to the version store named by DATABASE_URL. The CLI
// has no in-memory fallback; without a database there is no history to act on.
func openService() (*version.Service, func(), error) {
	dsn := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dsn == "" {
		return nil, nil, fmt.Errorf("DATABASE_URL is not set")
	}
	store, err := version.NewPostgresStore(dsn)
	if err != nil {
		return nil, nil, err
	}
	content := contentstore.NewDiskStore(filepath.Join(dataDir, "content"))
	svc := version.NewService(store, content)
	closer := func() { _ = store.Close() }
	return svc, closer, nil
}

func requireSubject() string {
	s := strings.TrimSpace(subjectID)
	if s == "" {
		fmt.Fprintln(os.Stderr, "--subject is required")
		os.Exit(1)
	}
	return s
}
