package pipeline

import (
	"context"
	"fmt"
	"os"

	"github.com/theoremus-urban-solutions/gtfsrt-delay-features/cache"
	"github.com/theoremus-urban-solutions/gtfsrt-delay-features/fetch"
	"github.com/theoremus-urban-solutions/gtfsrt-delay-features/gtfs"
	"github.com/theoremus-urban-solutions/gtfsrt-delay-features/gtfsrt"
	"github.com/theoremus-urban-solutions/gtfsrt-delay-features/internal/logging"
)

// source downloads and parses the inputs of one (operator, date). The static
// feed is parsed at most once per run.
type source struct {
	cache    *cache.Manager
	upstream *fetch.Upstream
	client   *fetch.Client
	workers  int
	operator string
	date     string

	feed *gtfs.Feed
}

func (s *source) download(ctx context.Context, src cache.Source, ext, url string, force bool) (string, error) {
	return s.cache.Archive(ctx, s.operator, s.date, src, ext, force, func(ctx context.Context) ([]byte, error) {
		logging.Logf("Fetching %s data from %s", src, fetch.Redact(url))
		return s.client.Fetch(ctx, url)
	})
}

// events returns the normalized trip updates of the day. Live mode decodes a
// single snapshot; historical mode unpacks the day archive and reads every
// hourly partition.
func (s *source) events(ctx context.Context, mode Mode, force bool) (*gtfsrt.EventTable, error) {
	url := s.upstream.RealtimeURL(s.operator, fetch.TripUpdates, s.date)

	var records []gtfsrt.RawRecord
	if mode == ModeLive {
		path, err := s.download(ctx, cache.SourceRealtime, ".pb", url, force)
		if err != nil {
			return nil, err
		}
		records, err = gtfsrt.ReadFile(path)
		if err != nil {
			return nil, err
		}
	} else {
		path, err := s.download(ctx, cache.SourceRealtime, ".7z", url, force)
		if err != nil {
			return nil, err
		}
		dir, err := s.cache.Unpack(s.operator, path)
		if err != nil {
			return nil, err
		}
		parts, err := gtfsrt.DiscoverPartitions(dir, string(fetch.TripUpdates))
		if err != nil {
			return nil, err
		}
		if len(parts) == 0 {
			return nil, fmt.Errorf("%w: no snapshots in %s", gtfsrt.ErrEmptyFeed, dir)
		}
		records, err = gtfsrt.ReadPartitions(ctx, parts, s.workers)
		if err != nil {
			return nil, err
		}
	}

	table, stats := gtfsrt.Normalize(records)
	logging.Logf("Normalized %d records into %d events (%d empty, %d duplicates, %d superseded)",
		stats.Records, stats.Events, stats.Empty, stats.Duplicates, stats.Superseded)
	if table.Len() == 0 {
		return nil, fmt.Errorf("%w: %d records, none usable", gtfsrt.ErrEmptyFeed, stats.Records)
	}
	return table, nil
}

// schedule returns the static feed valid on the day.
func (s *source) schedule(ctx context.Context, force bool) (*gtfs.Feed, error) {
	if s.feed != nil {
		return s.feed, nil
	}
	path, err := s.download(ctx, cache.SourceStatic, ".zip", s.upstream.StaticURL(s.operator, s.date), force)
	if err != nil {
		return nil, err
	}
	dir, err := s.cache.Unpack(s.operator, path)
	if err != nil {
		return nil, err
	}
	feed, err := gtfs.LoadFeed(os.DirFS(dir))
	if err != nil {
		return nil, err
	}
	s.feed = feed
	return feed, nil
}
