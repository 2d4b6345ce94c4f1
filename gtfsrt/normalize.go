package gtfsrt

import (
	"database/sql"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/theoremus-urban-solutions/gtfsrt-delay-features/internal/logging"
)

// NormalizeStats counts what Normalize dropped along the way.
type NormalizeStats struct {
	Records       int
	Empty         int
	UnmappedPaths int
	BadValues     int
	Duplicates    int
	Superseded    int
	Events        int
}

// Normalize converts flattened records into a cleaned EventTable.
func Normalize(records []RawRecord) (*EventTable, NormalizeStats) {
	stats := NormalizeStats{Records: len(records)}
	events := make([]TripUpdateEvent, 0, len(records))

	for _, rec := range records {
		ev, mapped := toEvent(rec, &stats)
		if mapped == 0 {
			stats.Empty++
			continue
		}
		events = append(events, ev)
	}

	// Order by message time; ties keep ingestion order.
	sort.SliceStable(events, func(i, j int) bool {
		return lessTimestamp(events[i].Timestamp, events[j].Timestamp)
	})

	events = dedupStructural(events, &stats)
	events = keepLatestPerStop(events, &stats)
	stats.Events = len(events)

	if stats.UnmappedPaths > 0 || stats.BadValues > 0 {
		logging.Logf("gtfsrt: normalize ignored %d unmapped fields and %d uncoercible values", stats.UnmappedPaths, stats.BadValues)
	}
	return NewEventTable(events), stats
}

// toEvent renames and coerces one record. mapped counts canonical values set
// besides the entity id.
func toEvent(rec RawRecord, stats *NormalizeStats) (TripUpdateEvent, int) {
	var ev TripUpdateEvent
	mapped := 0
	for path, raw := range rec {
		col, ok := CanonicalColumn(path)
		if !ok {
			stats.UnmappedPaths++
			continue
		}
		if f, ok := intColumns[col]; ok {
			n, ok := coerceInt(raw)
			if !ok {
				stats.BadValues++
				continue
			}
			*f(&ev) = sql.NullInt64{Int64: n, Valid: true}
		} else if f, ok := stringColumns[col]; ok {
			s := coerceString(raw)
			if s == "" {
				continue
			}
			*f(&ev) = s
		}
		if col != ColEntityID {
			mapped++
		}
	}
	return ev, mapped
}

// dedupStructural keeps the last copy of records that only differ in their
// timestamp or arrival/departure predictions.
func dedupStructural(events []TripUpdateEvent, stats *NormalizeStats) []TripUpdateEvent {
	seen := make(map[TripUpdateEvent]struct{}, len(events))
	keep := make([]bool, len(events))
	for i := len(events) - 1; i >= 0; i-- {
		k := events[i].structuralKey()
		if _, dup := seen[k]; dup {
			stats.Duplicates++
			continue
		}
		seen[k] = struct{}{}
		keep[i] = true
	}
	return compact(events, keep)
}

// keepLatestPerStop retains one event per (trip_id, stop_id). Events are
// already ordered by timestamp, so the last occurrence is the latest.
func keepLatestPerStop(events []TripUpdateEvent, stats *NormalizeStats) []TripUpdateEvent {
	type stopKey struct{ trip, stop string }
	seen := make(map[stopKey]struct{}, len(events))
	keep := make([]bool, len(events))
	for i := len(events) - 1; i >= 0; i-- {
		if events[i].TripID == "" {
			keep[i] = true
			continue
		}
		k := stopKey{events[i].TripID, events[i].StopID}
		if _, dup := seen[k]; dup {
			stats.Superseded++
			continue
		}
		seen[k] = struct{}{}
		keep[i] = true
	}
	return compact(events, keep)
}

func compact(events []TripUpdateEvent, keep []bool) []TripUpdateEvent {
	out := events[:0:0]
	for i, k := range keep {
		if k {
			out = append(out, events[i])
		}
	}
	return out
}

// lessTimestamp orders missing timestamps first.
func lessTimestamp(a, b sql.NullInt64) bool {
	if !a.Valid || !b.Valid {
		return !a.Valid && b.Valid
	}
	return a.Int64 < b.Int64
}

func coerceInt(v any) (int64, bool) {
	switch t := v.(type) {
	case int64:
		return t, true
	case uint64:
		if t > math.MaxInt64 {
			return 0, false
		}
		return int64(t), true
	case float64:
		if t != math.Trunc(t) || math.IsInf(t, 0) || math.IsNaN(t) {
			return 0, false
		}
		return int64(t), true
	case bool:
		if t {
			return 1, true
		}
		return 0, true
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64)
		return n, err == nil
	}
	return 0, false
}

func coerceString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case int64:
		return strconv.FormatInt(t, 10)
	case uint64:
		return strconv.FormatUint(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	}
	return ""
}
