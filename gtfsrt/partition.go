package gtfsrt

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/theoremus-urban-solutions/gtfsrt-delay-features/internal/logging"
)

// Unpartitioned is the hour of files found outside the hour directory layout.
const Unpartitioned = -1

// Partition is the set of snapshot files of one hour, in discovery order.
type Partition struct {
	Hour  int
	Files []string
}

// DiscoverPartitions finds .pb files under root and groups the ones laid out
// as <feed>/<YYYY>/<MM>/<DD>/<HH>/<file>.pb by hour. An empty feed matches
// any feed directory.
func DiscoverPartitions(root, feed string) ([]Partition, error) {
	byHour := map[int][]string{}
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(path), ".pb") {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		h := hourOf(strings.Split(filepath.ToSlash(rel), "/"), feed)
		byHour[h] = append(byHour[h], path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("discover partitions in %s: %w", root, err)
	}

	hours := make([]int, 0, len(byHour))
	for h := range byHour {
		hours = append(hours, h)
	}
	sort.Ints(hours)
	parts := make([]Partition, 0, len(hours))
	for _, h := range hours {
		parts = append(parts, Partition{Hour: h, Files: byHour[h]})
	}
	return parts, nil
}

func hourOf(segments []string, feed string) int {
	n := len(segments)
	if n < 6 {
		return Unpartitioned
	}
	if feed != "" && !strings.EqualFold(segments[n-6], feed) {
		return Unpartitioned
	}
	for _, s := range segments[n-5 : n-2] {
		if _, err := strconv.Atoi(s); err != nil {
			return Unpartitioned
		}
	}
	h, err := strconv.Atoi(segments[n-2])
	if err != nil || h < 0 || h > 23 {
		return Unpartitioned
	}
	return h
}

// ReadPartitions parses every file with at most workers concurrent decoders
// per hour and concatenates the records in (hour, discovery) order.
func ReadPartitions(ctx context.Context, parts []Partition, workers int) ([]RawRecord, error) {
	if workers < 1 {
		workers = 1
	}
	var out []RawRecord
	for _, p := range parts {
		results := make([][]RawRecord, len(p.Files))
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(workers)
		for i, path := range p.Files {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				recs, err := ReadFile(path)
				if err != nil {
					return err
				}
				results[i] = recs
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
		n := 0
		for _, r := range results {
			n += len(r)
			out = append(out, r...)
		}
		logging.Logf("gtfsrt: hour %d: %d files, %d records", p.Hour, len(p.Files), n)
	}
	return out, nil
}

// ReadFile decodes one snapshot file.
func ReadFile(path string) ([]RawRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	recs, err := DecodeFeed(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return recs, nil
}
