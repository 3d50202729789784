package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kristinmlloyd/VibeCheck/store"
)

func newVibesCmd(a *app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "vibes",
		Short: "Show record store statistics and the most mentioned vibes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			records, err := store.Open(ctx, a.cfg.Data.DBPath, true)
			if err != nil {
				return err
			}
			defer records.Close()

			st, err := records.Stats(ctx)
			if err != nil {
				return err
			}
			vibes, err := records.TopVibes(ctx, limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "restaurants %d (%d with photos), reviews %d, photos %d, vibe annotations %d\n",
				st.Restaurants, st.WithPhotos, st.Reviews, st.Photos, st.VibeAnnotations)
			for i, v := range vibes {
				fmt.Fprintf(out, "%2d. %-24s %d\n", i+1, v.Name, v.Count)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "number of vibes")
	return cmd
}
