package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kristinmlloyd/VibeCheck/store"
)

func newIngestCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "ingest FILE...",
		Short: "Load scraped restaurant JSON into the record store",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			records, err := store.Open(ctx, a.cfg.Data.DBPath, false)
			if err != nil {
				return err
			}
			defer records.Close()

			var total store.IngestStats
			for _, path := range args {
				data, err := readScraped(path)
				if err != nil {
					return err
				}
				st, err := records.Ingest(ctx, data)
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				a.logger.Info("ingested", "path", path, "restaurants", st.Restaurants, "skipped", st.Skipped)
				total.Restaurants += st.Restaurants
				total.Skipped += st.Skipped
				total.Reviews += st.Reviews
				total.Photos += st.Photos
				total.Vibes += st.Vibes
			}
			fmt.Fprintf(cmd.OutOrStdout(), "restaurants %d (skipped %d existing), reviews %d, photos %d, vibes %d\n",
				total.Restaurants, total.Skipped, total.Reviews, total.Photos, total.Vibes)
			return nil
		},
	}
}

func readScraped(path string) ([]store.ScrapedRestaurant, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	data, err := store.DecodeScraped(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return data, nil
}
