package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kristinmlloyd/VibeCheck/index"
	"github.com/kristinmlloyd/VibeCheck/indexer"
	"github.com/kristinmlloyd/VibeCheck/snapshot"
	"github.com/kristinmlloyd/VibeCheck/store"
)

func newBuildIndexCmd(a *app) *cobra.Command {
	var metric, kind string
	cmd := &cobra.Command{
		Use:   "build-index",
		Short: "Encode every restaurant and save a new snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if metric != "" {
				m, err := index.ParseMetric(metric)
				if err != nil {
					return err
				}
				a.cfg.Index.Metric = m
			}
			if kind != "" {
				k := index.Kind(kind)
				if !k.IsValid() {
					return fmt.Errorf("unknown index kind %q", kind)
				}
				a.cfg.Index.Kind = k
			}
			return a.buildIndex(cmd.Context(), cmd)
		},
	}
	cmd.Flags().StringVar(&metric, "metric", "", "distance metric: l2 or ip (overrides index.metric)")
	cmd.Flags().StringVar(&kind, "kind", "", "index kind: auto, flat or vptree (overrides index.kind)")
	return cmd
}

func (a *app) buildIndex(ctx context.Context, cmd *cobra.Command) error {
	records, err := store.Open(ctx, a.cfg.Data.DBPath, true)
	if err != nil {
		return err
	}
	defer records.Close()
	src, err := a.photoSource(ctx)
	if err != nil {
		return err
	}
	bank, closeBank, err := a.newBank(nil)
	if err != nil {
		return err
	}
	defer closeBank()

	b := indexer.New(records, src, bank,
		indexer.WithName(a.cfg.Data.SnapshotName),
		indexer.WithMetric(a.cfg.Index.Metric),
		indexer.WithKind(a.cfg.Index.Kind),
		indexer.WithMaxPhotos(a.cfg.Index.MaxPhotos),
		indexer.WithWorkers(a.cfg.Index.Workers),
		indexer.WithLogger(a.logger),
	)
	snap, stats, err := b.Build(ctx)
	if err != nil {
		return err
	}

	db, err := snapshot.Open(ctx, a.cfg.Data.SnapshotPath, false)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := snapshot.Save(ctx, db, snap); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "snapshot %q saved to %s\n", snap.Meta.Name, a.cfg.Data.SnapshotPath)
	fmt.Fprintf(out, "  build tag:          %s\n", snap.Meta.BuildTag)
	fmt.Fprintf(out, "  index:              %s/%s, dim %d\n", snap.Meta.Kind, snap.Meta.Metric, stats.Dim)
	fmt.Fprintf(out, "  restaurants:        %d\n", stats.Restaurants)
	fmt.Fprintf(out, "  with images:        %d\n", stats.WithImages)
	fmt.Fprintf(out, "  reviews processed:  %d\n", stats.ReviewsProcessed)
	fmt.Fprintf(out, "  photos encoded:     %d (skipped %d)\n", stats.PhotosEncoded, stats.PhotosSkipped)
	fmt.Fprintf(out, "  elapsed:            %s\n", stats.Elapsed.Round(time.Millisecond))
	return nil
}
