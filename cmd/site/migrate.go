package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"storyworlds/site/internal/store"
)

func migrateCmd() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, db, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			if dryRun {
				pending, err := store.PendingMigrations(ctx, db, cfg.MigrationsDir)
				if err != nil {
					return err
				}
				if len(pending) == 0 {
					fmt.Println(skipped("no pending migrations"))
					return nil
				}
				for _, version := range pending {
					fmt.Printf("  pending %s\n", highlight(version))
				}
				return nil
			}

			applied, err := store.ApplyMigrations(ctx, db, cfg.MigrationsDir)
			if err != nil {
				return err
			}
			if len(applied) == 0 {
				fmt.Println(skipped("database already up to date"))
				return nil
			}
			for _, version := range applied {
				fmt.Println(success("applied " + highlight(version)))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "list pending migrations without applying them")
	return cmd
}
