package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/kristinmlloyd/VibeCheck/encoder"
	"github.com/kristinmlloyd/VibeCheck/encoder/openai"
	"github.com/kristinmlloyd/VibeCheck/fusion"
	"github.com/kristinmlloyd/VibeCheck/internal/config"
	"github.com/kristinmlloyd/VibeCheck/internal/observe"
	"github.com/kristinmlloyd/VibeCheck/photos"
	"github.com/kristinmlloyd/VibeCheck/retrieval"
	"github.com/kristinmlloyd/VibeCheck/snapshot"
	"github.com/kristinmlloyd/VibeCheck/store"
)

// app carries the loaded configuration between the root command and its
// subcommands.
type app struct {
	configPath string
	cfg        *config.Config
	logger     *slog.Logger
}

// newLoader returns the encoder loader selected by the model config and a
// function releasing the runtime.
func (a *app) newLoader() (encoder.Loader, func() error, error) {
	m := a.cfg.Models
	if err := m.RequireModelFiles(); err != nil {
		return nil, nil, err
	}
	local, err := newLocalLoader(m, a.logger)
	if err != nil {
		return nil, nil, err
	}
	if !m.OpenAI.Enabled() {
		return local, local.Close, nil
	}
	var opts []openai.Option
	if m.OpenAI.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(m.OpenAI.BaseURL))
	}
	text, err := openai.NewTextEncoder(m.OpenAI.APIKey, m.OpenAI.Model, m.TextDim, opts...)
	if err != nil {
		_ = local.Close()
		return nil, nil, err
	}
	return openai.NewLoader(text, local), local.Close, nil
}

// newBank builds the encoder bank. The returned function closes loaded
// models and the runtime.
func (a *app) newBank(metrics *observe.Metrics) (*encoder.Bank, func(), error) {
	loader, closeLoader, err := a.newLoader()
	if err != nil {
		return nil, nil, err
	}
	bank := encoder.NewBank(loader,
		encoder.WithDevice(a.cfg.Models.Device),
		encoder.WithLogger(a.logger),
		encoder.WithMetrics(metrics),
	)
	return bank, func() {
		_ = bank.Close()
		_ = closeLoader()
	}, nil
}

// photoSource returns the S3 source when a bucket is configured and the
// local directory otherwise.
func (a *app) photoSource(ctx context.Context) (photos.Source, error) {
	if a.cfg.Photos.S3.Bucket != "" {
		return photos.NewS3(ctx, a.cfg.Photos.S3)
	}
	fi, err := os.Stat(a.cfg.Photos.Dir)
	if err != nil {
		return nil, fmt.Errorf("photo directory: %w", err)
	}
	if !fi.IsDir() {
		return nil, fmt.Errorf("photo directory: %s is not a directory", a.cfg.Photos.Dir)
	}
	return photos.NewLocal(a.cfg.Photos.Dir), nil
}

// loadSnapshot reads the configured snapshot. The database must exist.
func (a *app) loadSnapshot(ctx context.Context) (*snapshot.Snapshot, error) {
	db, err := snapshot.Open(ctx, a.cfg.Data.SnapshotPath, true)
	if err != nil {
		return nil, err
	}
	defer db.Close()
	return snapshot.Load(ctx, db, a.cfg.Data.SnapshotName)
}

// services are the long-lived components behind a search.
type services struct {
	records     *store.Store
	bank        *encoder.Bank
	recommender *retrieval.Recommender
	close       func()
}

// openServices opens the record store and snapshot and builds the
// recommender. Any incompatibility is reported before a query is served.
func (a *app) openServices(ctx context.Context, metrics *observe.Metrics) (*services, error) {
	records, err := store.Open(ctx, a.cfg.Data.DBPath, true)
	if err != nil {
		return nil, err
	}
	snap, err := a.loadSnapshot(ctx)
	if err != nil {
		_ = records.Close()
		return nil, err
	}
	bank, closeBank, err := a.newBank(metrics)
	if err != nil {
		_ = records.Close()
		return nil, err
	}
	fail := func(err error) (*services, error) {
		closeBank()
		_ = records.Close()
		return nil, err
	}
	fuser, err := fusion.NewFuser(bank,
		fusion.WithLogger(a.logger),
		fusion.WithMetrics(metrics),
		fusion.WithTextCache(a.cfg.Models.TextCacheSize),
	)
	if err != nil {
		return fail(err)
	}
	rec, err := retrieval.New(fuser, snap, records,
		retrieval.WithLogger(a.logger),
		retrieval.WithMetrics(metrics),
	)
	if err != nil {
		return fail(err)
	}
	if snap.Meta.Metric != a.cfg.Index.Metric {
		a.logger.Info("serving snapshot metric", "metric", snap.Meta.Metric, "configured", a.cfg.Index.Metric)
	}
	return &services{
		records:     records,
		bank:        bank,
		recommender: rec,
		close: func() {
			closeBank()
			_ = records.Close()
		},
	}, nil
}
