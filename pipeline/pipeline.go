package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/theoremus-urban-solutions/gtfsrt-delay-features/cache"
	"github.com/theoremus-urban-solutions/gtfsrt-delay-features/config"
	"github.com/theoremus-urban-solutions/gtfsrt-delay-features/features"
	"github.com/theoremus-urban-solutions/gtfsrt-delay-features/fetch"
	"github.com/theoremus-urban-solutions/gtfsrt-delay-features/gtfs"
	"github.com/theoremus-urban-solutions/gtfsrt-delay-features/gtfsrt"
	"github.com/theoremus-urban-solutions/gtfsrt-delay-features/internal/logging"
	"github.com/theoremus-urban-solutions/gtfsrt-delay-features/ledger"
	"github.com/theoremus-urban-solutions/gtfsrt-delay-features/metrics"
	"github.com/theoremus-urban-solutions/gtfsrt-delay-features/publisher"
	"github.com/theoremus-urban-solutions/gtfsrt-delay-features/store"
	"github.com/theoremus-urban-solutions/gtfsrt-delay-features/utils"
)

// Mode selects the upstream and the rolling window of a run.
type Mode string

const (
	// ModeLive reads today's regional snapshot with the short window.
	ModeLive Mode = "live"
	// ModeHistorical reads an archived day from KoDa with the long window.
	ModeHistorical Mode = "historical"
)

// ParseMode accepts "live" and "historical".
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeLive, ModeHistorical:
		return Mode(s), nil
	}
	return "", fmt.Errorf("invalid mode %q", s)
}

// Notifier announces written feature tables.
type Notifier interface {
	PublishFeatures(msg publisher.FeatureTableMessage) error
}

// RunLedger stores day outcomes; *ledger.Ledger implements it.
type RunLedger interface {
	Record(ctx context.Context, rec ledger.RunRecord) (ledger.RunRecord, error)
	Completed(ctx context.Context, mode, operator, date string) (bool, error)
}

// Options carries the collaborators of a Pipeline. Cache and Sink are
// required; the rest may be nil.
type Options struct {
	Cache    *cache.Manager
	Sink     store.Sink
	Notifier Notifier
	Ledger   RunLedger
	Metrics  *metrics.Collector
	// Force rebuilds every artifact and ignores completed ledger entries.
	Force bool
}

type Pipeline struct {
	cfg      *config.AppConfig
	cache    *cache.Manager
	sink     store.Sink
	notifier Notifier
	ledger   RunLedger
	metrics  *metrics.Collector
	force    bool
	now      func() time.Time
}

func New(cfg *config.AppConfig, opts Options) (*Pipeline, error) {
	if cfg == nil {
		return nil, errors.New("pipeline: nil config")
	}
	if opts.Cache == nil || opts.Sink == nil {
		return nil, errors.New("pipeline: cache and sink are required")
	}
	return &Pipeline{
		cfg:      cfg,
		cache:    opts.Cache,
		sink:     opts.Sink,
		notifier: opts.Notifier,
		ledger:   opts.Ledger,
		metrics:  opts.Metrics,
		force:    opts.Force,
		now:      time.Now,
	}, nil
}

// Today returns the current service date in the configured timezone.
func (p *Pipeline) Today() string {
	return p.now().In(p.cfg.Location()).Format(utils.DateLayout)
}

// FeatureOptions returns the aggregation settings of mode.
func (p *Pipeline) FeatureOptions(mode Mode) features.Options {
	f := p.cfg.Features
	window := f.BackfillWindowMinutes
	if mode == ModeLive {
		window = f.LiveWindowMinutes
	}
	return features.Options{
		Window:            time.Duration(window) * time.Minute,
		OnTimeMin:         int64(f.OnTimeMinSeconds),
		OnTimeMax:         int64(f.OnTimeMaxSeconds),
		LagStops:          f.LagStops,
		MinUpdatesPerSlot: f.MinTripUpdatesPerSlot,
	}
}

func (p *Pipeline) upstream(mode Mode) (*fetch.Upstream, error) {
	if mode == ModeLive {
		return fetch.NewUpstream(config.UpstreamRegional, p.cfg)
	}
	return fetch.NewUpstream(config.UpstreamKoDa, p.cfg)
}

func (p *Pipeline) fetchMetrics() fetch.Metrics {
	if p.metrics == nil {
		return nil
	}
	return p.metrics
}

func (p *Pipeline) observe(stage string, start time.Time) {
	if p.metrics != nil {
		p.metrics.ObserveStage(stage, time.Since(start))
	}
}

// RunDay produces, stores and announces the feature table of one
// (operator, date) and records the outcome.
func (p *Pipeline) RunDay(ctx context.Context, mode Mode, operator, date string) Result {
	started := p.now()
	runID := ledger.NewRunID()
	logging.Logf("Run %s: %s %s (%s)", runID, operator, date, mode)

	res := p.runDay(ctx, runID, mode, operator, date)
	res.RunID = runID
	p.finish(ctx, mode, operator, date, started, res)
	return res
}

func (p *Pipeline) runDay(ctx context.Context, runID string, mode Mode, operator, date string) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			res = Fatal(fmt.Errorf("panic: %v", r))
		}
	}()

	if err := fetch.ValidateOperator(operator); err != nil {
		return Fatal(err)
	}
	serviceDate, err := utils.ParseDate(date)
	if err != nil {
		return Fatal(err)
	}
	up, err := p.upstream(mode)
	if err != nil {
		return Fatal(err)
	}
	cm := p.cache.Scoped(up.Name)
	src := &source{cache: cm, upstream: up, client: up.Client(p.fetchMetrics()), workers: p.cfg.Workers, operator: operator, date: date}

	if cm.Fresh(operator, date) {
		logging.Logf("Cache for %s/%s is fresh for %s", operator, cm.Scope(), date)
	} else {
		last, _ := cm.LastUpdated(operator)
		logging.Logf("Cache for %s/%s is stale (last updated %q), rebuilding for %s", operator, cm.Scope(), last, date)
	}

	forceRT := p.force || (mode == ModeLive && p.cfg.ForceRT)
	key := func(k cache.Kind) cache.Key { return cache.Key{Operator: operator, Kind: k} }

	start := time.Now()
	events, err := cache.GetOrBuild(ctx, cm, key(cache.KindRealtime), date, forceRT, cache.GobZstd[*gtfsrt.EventTable]{},
		func(ctx context.Context) (*gtfsrt.EventTable, error) { return src.events(ctx, mode, forceRT) })
	p.observe("realtime", start)
	if err != nil {
		return Classify(fmt.Errorf("realtime events: %w", err))
	}

	start = time.Now()
	routeTypes, err := cache.GetOrBuild(ctx, cm, key(cache.KindRouteTypes), date, p.force, cache.GobZstd[*gtfs.RouteTypeMapping]{},
		func(ctx context.Context) (*gtfs.RouteTypeMapping, error) {
			feed, err := src.schedule(ctx, p.force)
			if err != nil {
				return nil, err
			}
			return gtfs.BuildRouteTypeMap(feed.Trips, feed.Routes)
		})
	if err != nil {
		return Classify(fmt.Errorf("route types: %w", err))
	}

	stops, err := cache.GetOrBuild(ctx, cm, key(cache.KindStopLocations), date, p.force, cache.GobZstd[*gtfs.StopLocationMapping]{},
		func(ctx context.Context) (*gtfs.StopLocationMapping, error) {
			feed, err := src.schedule(ctx, p.force)
			if err != nil {
				return nil, err
			}
			return gtfs.BuildStopLocationMap(feed.Stops)
		})
	if err != nil {
		return Classify(fmt.Errorf("stop locations: %w", err))
	}

	stopCount, err := cache.GetOrBuild(ctx, cm, key(cache.KindStopCount), date, p.force, cache.GobZstd[*gtfs.StopCount]{},
		func(ctx context.Context) (*gtfs.StopCount, error) {
			feed, err := src.schedule(ctx, p.force)
			if err != nil {
				return nil, err
			}
			return gtfs.BuildStopCount(date, p.cfg.Location(), feed.StopTimes, routeTypes)
		})
	p.observe("schedule", start)
	if err != nil {
		return Classify(fmt.Errorf("stop count: %w", err))
	}
	logging.Logf("Schedule for %s %s: %d trips, %d stops, %d stop count buckets",
		operator, date, len(routeTypes.Rows), len(stops.Stops), len(stopCount.Rows))

	start = time.Now()
	rows, err := cache.GetOrBuild(ctx, cm, key(cache.KindFeatures), date, forceRT, cache.GobZstd[[]features.FeatureRow]{},
		func(context.Context) ([]features.FeatureRow, error) {
			opts := p.FeatureOptions(mode)
			day, err := utils.GTFSTimeOn(serviceDate, "00:00:00", p.cfg.Location())
			if err != nil {
				return nil, err
			}
			opts.ServiceDay = day
			rows, err := features.Aggregate(events, routeTypes, stopCount, opts)
			if err != nil {
				return nil, err
			}
			if len(rows) == 0 {
				return nil, ErrNoFeatures
			}
			return rows, nil
		})
	p.observe("aggregate", start)
	if err != nil {
		return Classify(fmt.Errorf("features: %w", err))
	}

	if err := cm.Commit(operator, date); err != nil {
		return Fatal(err)
	}

	start = time.Now()
	where, err := p.sink.Write(ctx, operator, date, rows)
	p.observe("sink", start)
	if err != nil {
		return Fatal(fmt.Errorf("write features: %w", err))
	}

	if p.notifier != nil {
		msg := publisher.FeatureTableMessage{
			RunID:       runID,
			Operator:    operator,
			Date:        date,
			Sink:        where,
			GeneratedAt: p.now().UTC(),
			Rows:        rows,
		}
		if err := p.notifier.PublishFeatures(msg); err != nil {
			logging.Logf("Warning: could not announce features for %s %s: %v", operator, date, err)
		}
	}

	res = OK(rows)
	res.Sink = where
	return res
}

func (p *Pipeline) finish(ctx context.Context, mode Mode, operator, date string, started time.Time, res Result) {
	switch res.Kind {
	case KindOK:
		logging.Logf("Run %s: %s %s ok, %d rows to %s", res.RunID, operator, date, len(res.Rows), res.Sink)
	case KindSkip:
		logging.Logf("Run %s: skipping %s %s: %s", res.RunID, operator, date, res.Reason)
	default:
		logging.Logf("Run %s: %s %s failed: %s", res.RunID, operator, date, res.Reason)
	}
	if p.metrics != nil {
		p.metrics.DayFinished(operator, date, res.Kind.String(), len(res.Rows))
	}
	if p.ledger == nil {
		return
	}
	rec := ledger.RunRecord{
		RunID:      res.RunID,
		Operator:   operator,
		Date:       date,
		Mode:       string(mode),
		Outcome:    res.Kind.String(),
		Reason:     res.Reason,
		Rows:       len(res.Rows),
		Sink:       res.Sink,
		StartedAt:  started,
		FinishedAt: p.now(),
	}
	if _, err := p.ledger.Record(context.WithoutCancel(ctx), rec); err != nil {
		logging.Logf("Warning: %v", err)
	}
}
