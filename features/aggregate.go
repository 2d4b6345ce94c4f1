package features

import (
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/theoremus-urban-solutions/gtfsrt-delay-features/gtfs"
	"github.com/theoremus-urban-solutions/gtfsrt-delay-features/gtfsrt"
	"github.com/theoremus-urban-solutions/gtfsrt-delay-features/internal/logging"
)

// Options controls the aggregation.
type Options struct {
	// Window is the length of the time based rolling window.
	Window time.Duration
	// OnTimeMin and OnTimeMax bound the on-time interval in seconds, inclusive.
	OnTimeMin int64
	OnTimeMax int64
	// LagStops is the number of preceding stops averaged by the lag features.
	LagStops int
	// MinUpdatesPerSlot drops buckets observed fewer times than this.
	MinUpdatesPerSlot int
	// ServiceDay is the local midnight starting the service date. When set,
	// events arriving before the previous day or after the next day are
	// dropped so a stray timestamp cannot stretch the hourly range.
	ServiceDay time.Time
}

// inServiceRange reports whether the unix time at lies within the service
// date plus or minus one day. A zero ServiceDay accepts every time.
func (o Options) inServiceRange(at int64) bool {
	if o.ServiceDay.IsZero() {
		return true
	}
	from := o.ServiceDay.AddDate(0, 0, -1).Unix()
	to := o.ServiceDay.AddDate(0, 0, 2).Unix()
	return at >= from && at < to
}

// DefaultOptions returns the live pipeline settings.
func DefaultOptions() Options {
	return Options{
		Window:            20 * time.Minute,
		OnTimeMin:         -180,
		OnTimeMax:         300,
		LagStops:          5,
		MinUpdatesPerSlot: 1,
	}
}

// onTime reports whether delay lies in the closed on-time interval. A missing
// delay is not on time.
func (o Options) onTime(delay sql.NullFloat64) bool {
	return delay.Valid && delay.Float64 >= float64(o.OnTimeMin) && delay.Float64 <= float64(o.OnTimeMax)
}

// RequiredColumns must be present in an event table for Aggregate to run.
var RequiredColumns = []gtfsrt.Column{
	gtfsrt.ColTripID,
	gtfsrt.ColStopSequence,
	gtfsrt.ColArrivalTime,
	gtfsrt.ColArrivalDelay,
}

// observation is one joined event with its derived columns.
type observation struct {
	routeType    int
	tripID       string
	stopSequence int64
	at           int64

	arrivalDelay   sql.NullFloat64
	departureDelay sql.NullFloat64
	delayChange    sql.NullFloat64
	onTime         bool
	finalStopDelay sql.NullFloat64

	lagArrival   sql.NullFloat64
	lagDeparture sql.NullFloat64
	lagChange    sql.NullFloat64
}

func nullFloat(v sql.NullInt64) sql.NullFloat64 {
	return sql.NullFloat64{Float64: float64(v.Int64), Valid: v.Valid}
}

// Aggregate computes hourly feature rows per route type. It fails with
// gtfsrt.ErrEmptyFeed when the events cannot produce any observation and with
// gtfs.ErrMissingReferenceData when there is no route type mapping. An empty
// result without error means every bucket fell below the sample floor.
func Aggregate(events *gtfsrt.EventTable, routeTypes *gtfs.RouteTypeMapping, stopCount *gtfs.StopCount, opts Options) ([]FeatureRow, error) {
	if events.Len() == 0 {
		return nil, fmt.Errorf("%w: no events to aggregate", gtfsrt.ErrEmptyFeed)
	}
	if !events.HasColumns(RequiredColumns...) {
		return nil, fmt.Errorf("%w: events lack columns %v (have %v)", gtfsrt.ErrEmptyFeed, RequiredColumns, events.Columns)
	}
	if routeTypes == nil || len(routeTypes.Rows) == 0 {
		return nil, fmt.Errorf("%w: route type mapping is empty", gtfs.ErrMissingReferenceData)
	}
	if opts.Window <= 0 {
		return nil, fmt.Errorf("invalid rolling window %s", opts.Window)
	}

	obs, outside := join(events, routeTypes.ByTrip(), opts)
	if outside > 0 {
		logging.Logf("features: warning: dropped %d events arriving outside %s plus or minus one day",
			outside, opts.ServiceDay.Format("2006-01-02"))
	}
	logging.Logf("features: %d of %d events joined the schedule", len(obs), events.Len())
	if len(obs) == 0 {
		return nil, fmt.Errorf("%w: no event matched a scheduled trip", gtfsrt.ErrEmptyFeed)
	}

	for i := range obs {
		obs[i].onTime = opts.onTime(obs[i].arrivalDelay)
	}
	applyTripColumns(obs, opts.LagStops)

	var counts map[gtfs.StopCountKey]int
	if stopCount != nil {
		counts = stopCount.ByKey()
	}

	var rows []FeatureRow
	for _, group := range byRouteType(obs) {
		rows = append(rows, summarize(group, opts, counts)...)
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].RouteType != rows[j].RouteType {
			return rows[i].RouteType < rows[j].RouteType
		}
		return rows[i].ArrivalTimeBin.Before(rows[j].ArrivalTimeBin)
	})
	logging.Logf("features: %d hourly rows from %d observations", len(rows), len(obs))
	return rows, nil
}

// join keeps events whose trip is scheduled and whose arrival time is known
// and within the service range. outside counts joined events dropped for
// their arrival time.
func join(events *gtfsrt.EventTable, byTrip map[string]gtfs.RouteTypeRow, opts Options) (out []observation, outside int) {
	out = make([]observation, 0, events.Len())
	for i := range events.Events {
		e := &events.Events[i]
		rt, ok := byTrip[e.TripID]
		if !ok || !e.ArrivalTime.Valid {
			continue
		}
		if !opts.inServiceRange(e.ArrivalTime.Int64) {
			outside++
			continue
		}
		out = append(out, observation{
			routeType:      rt.RouteType,
			tripID:         e.TripID,
			stopSequence:   e.StopSequence.Int64,
			at:             e.ArrivalTime.Int64,
			arrivalDelay:   nullFloat(e.ArrivalDelay),
			departureDelay: nullFloat(e.DepartureDelay),
		})
	}
	return out, outside
}

// applyTripColumns fills the columns computed within one trip: final stop
// delay, delay change and the lagged means.
func applyTripColumns(obs []observation, lagStops int) {
	trips := map[string][]int{}
	var order []string
	for i := range obs {
		id := obs[i].tripID
		if _, ok := trips[id]; !ok {
			order = append(order, id)
		}
		trips[id] = append(trips[id], i)
	}

	for _, id := range order {
		idx := trips[id]

		last := idx[0]
		for _, i := range idx[1:] {
			if obs[i].at > obs[last].at || (obs[i].at == obs[last].at && obs[i].stopSequence >= obs[last].stopSequence) {
				last = i
			}
		}
		final := obs[last].arrivalDelay
		for _, i := range idx {
			obs[i].finalStopDelay = final
		}

		sort.SliceStable(idx, func(a, b int) bool {
			if obs[idx[a]].stopSequence != obs[idx[b]].stopSequence {
				return obs[idx[a]].stopSequence < obs[idx[b]].stopSequence
			}
			return obs[idx[a]].at < obs[idx[b]].at
		})
		for k := 1; k < len(idx); k++ {
			prev, cur := obs[idx[k-1]].arrivalDelay, obs[idx[k]].arrivalDelay
			if prev.Valid && cur.Valid {
				obs[idx[k]].delayChange = sql.NullFloat64{Float64: cur.Float64 - prev.Float64, Valid: true}
			}
		}

		arrival := make([]sql.NullFloat64, len(idx))
		departure := make([]sql.NullFloat64, len(idx))
		change := make([]sql.NullFloat64, len(idx))
		for k, i := range idx {
			arrival[k] = obs[i].arrivalDelay
			departure[k] = obs[i].departureDelay
			change[k] = obs[i].delayChange
		}
		lagA, lagD, lagC := lagMean(arrival, lagStops), lagMean(departure, lagStops), lagMean(change, lagStops)
		for k, i := range idx {
			obs[i].lagArrival = lagA[k]
			obs[i].lagDeparture = lagD[k]
			obs[i].lagChange = lagC[k]
		}
	}
}

// byRouteType groups observations by route type in ascending code order. Each
// group is sorted by (arrival time, trip, stop sequence).
func byRouteType(obs []observation) [][]observation {
	groups := map[int][]observation{}
	for _, o := range obs {
		groups[o.routeType] = append(groups[o.routeType], o)
	}
	codes := make([]int, 0, len(groups))
	for code := range groups {
		codes = append(codes, code)
	}
	sort.Ints(codes)

	out := make([][]observation, 0, len(codes))
	for _, code := range codes {
		g := groups[code]
		sort.SliceStable(g, func(i, j int) bool {
			if g[i].at != g[j].at {
				return g[i].at < g[j].at
			}
			if g[i].tripID != g[j].tripID {
				return g[i].tripID < g[j].tripID
			}
			return g[i].stopSequence < g[j].stopSequence
		})
		out = append(out, g)
	}
	return out
}
