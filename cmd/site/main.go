package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "site",
		Short: "Storyworlds marketing site and content admin",
		Long: `site serves the public Storyworlds pages and the /admin content panel.

Configuration is read from the environment (DATABASE_URL, SITE_ADDR,
SITE_SESSION_SECRET, REDIS_URL, MEILI_URL, MINIO_*, SMTP_* and friends).
Running site without a subcommand starts the web server.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(adminCmd())
	rootCmd.AddCommand(searchCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, failure(err.Error()))
		os.Exit(1)
	}
}
