package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/theoremus-urban-solutions/gtfsrt-delay-features/cache"
	"github.com/theoremus-urban-solutions/gtfsrt-delay-features/config"
	"github.com/theoremus-urban-solutions/gtfsrt-delay-features/internal/logging"
	"github.com/theoremus-urban-solutions/gtfsrt-delay-features/ledger"
	"github.com/theoremus-urban-solutions/gtfsrt-delay-features/metrics"
	"github.com/theoremus-urban-solutions/gtfsrt-delay-features/pipeline"
	"github.com/theoremus-urban-solutions/gtfsrt-delay-features/publisher"
	"github.com/theoremus-urban-solutions/gtfsrt-delay-features/store"
)

// app owns the long-lived resources behind one pipeline.
type app struct {
	pipeline *pipeline.Pipeline

	metricsSrv *http.Server
	postgres   *store.PostgresSink
	nats       *publisher.NATSPublisher
	ledger     *ledger.Ledger
}

func newApp(ctx context.Context, cfg *config.AppConfig, force bool) (*app, error) {
	a := &app{}
	collector := metrics.NewCollector()
	if cfg.MetricsAddr != "" {
		a.metricsSrv = collector.Serve(cfg.MetricsAddr)
	}

	cm, err := cache.New(cfg.Cache.Dir, cache.Options{
		RemoveArchives: cfg.Cache.RemoveArchives,
		MemoSize:       cfg.Cache.MemoSize,
		Metrics:        collector,
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("cache: %w", err)
	}

	var sink store.Sink = store.NewFileSink(cfg.Store.OutputDir)
	switch {
	case cfg.Store.DryRun:
		logging.Logf("Dry run: writing features to %s", cfg.Store.OutputDir)
	case cfg.Store.PostgresDSN != "":
		pg, err := store.NewPostgresSink(ctx, cfg.Store.PostgresDSN)
		if err != nil {
			logging.Logf("Warning: postgres unavailable, writing features to %s: %v", cfg.Store.OutputDir, err)
			break
		}
		a.postgres = pg
		sink = store.NewFallbackSink(pg, sink, collector)
	}

	opts := pipeline.Options{Cache: cm, Sink: sink, Metrics: collector, Force: force}
	if cfg.Store.NATSURL != "" && !cfg.Store.DryRun {
		pub, err := publisher.NewNATSPublisher(cfg.Store.NATSURL, cfg.Store.NATSSubject, collector)
		if err != nil {
			logging.Logf("Warning: NATS unavailable, feature tables will not be announced: %v", err)
		} else {
			a.nats = pub
			opts.Notifier = pub
		}
	}
	if cfg.Store.LedgerPath != "" {
		l, err := ledger.Open(cfg.Store.LedgerPath)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("ledger: %w", err)
		}
		a.ledger = l
		opts.Ledger = l
	}

	p, err := pipeline.New(cfg, opts)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.pipeline = p
	return a, nil
}

// Close releases every resource; it is safe to call more than once.
func (a *app) Close() {
	if a.nats != nil {
		a.nats.Close()
		a.nats = nil
	}
	if a.postgres != nil {
		a.postgres.Close()
		a.postgres = nil
	}
	if a.ledger != nil {
		if err := a.ledger.Close(); err != nil {
			logging.Logf("Warning: close ledger: %v", err)
		}
		a.ledger = nil
	}
	if a.metricsSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = a.metricsSrv.Shutdown(ctx)
		a.metricsSrv = nil
	}
}
