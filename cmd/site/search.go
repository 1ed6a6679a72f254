package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"storyworlds/site/internal/search"
)

func searchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search",
		Short: "Maintain the search index",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "reindex",
		Short: "Rebuild the Meilisearch indexes from the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, db, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			if strings.TrimSpace(cfg.MeiliURL) == "" {
				fmt.Println(skipped("MEILI_URL not set; PostgreSQL full-text search needs no index"))
				return nil
			}
			meiliClient := search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey)
			service := search.NewService(meiliClient, search.NewPgFTS(db))
			defer service.Close()

			count, err := service.ReindexAllFromPG(ctx)
			if err != nil {
				return fmt.Errorf("reindex: %w", err)
			}
			fmt.Println(success(fmt.Sprintf("indexed %s records", highlight(fmt.Sprint(count)))))
			return nil
		},
	})
	return cmd
}
