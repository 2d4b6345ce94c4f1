package features

import (
	"database/sql"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/theoremus-urban-solutions/gtfsrt-delay-features/gtfs"
	"github.com/theoremus-urban-solutions/gtfsrt-delay-features/utils"
)

type reducer int

const (
	reduceMean reducer = iota
	reduceMax
	reduceMin
)

func (r reducer) apply(values []float64) float64 {
	switch r {
	case reduceMax:
		return floats.Max(values)
	case reduceMin:
		return floats.Min(values)
	}
	return stat.Mean(values, nil)
}

// output is one hourly column: how its rolling values are summarized and
// where the result lands.
type output struct {
	reduce reducer
	set    func(*FeatureRow, float64)
}

// outputs follow the order of the values produced by sample.
var outputs = []output{
	{reduceMean, func(r *FeatureRow, v float64) { r.MeanDelayChangeSeconds = v }},
	{reduceMax, func(r *FeatureRow, v float64) { r.MaxDelayChangeSeconds = v }},
	{reduceMin, func(r *FeatureRow, v float64) { r.MinDelayChangeSeconds = v }},
	{reduceMean, func(r *FeatureRow, v float64) { r.VarDelayChangeSeconds = v }},
	{reduceMean, func(r *FeatureRow, v float64) { r.MeanArrivalDelaySeconds = v }},
	{reduceMax, func(r *FeatureRow, v float64) { r.MaxArrivalDelaySeconds = v }},
	{reduceMin, func(r *FeatureRow, v float64) { r.MinArrivalDelaySeconds = v }},
	{reduceMean, func(r *FeatureRow, v float64) { r.VarArrivalDelay = v }},
	{reduceMean, func(r *FeatureRow, v float64) { r.MeanDepartureDelaySeconds = v }},
	{reduceMax, func(r *FeatureRow, v float64) { r.MaxDepartureDelaySeconds = v }},
	{reduceMin, func(r *FeatureRow, v float64) { r.MinDepartureDelaySeconds = v }},
	{reduceMean, func(r *FeatureRow, v float64) { r.VarDepartureDelay = v }},
	{reduceMean, func(r *FeatureRow, v float64) { r.MeanOnTimePercent = v }},
	{reduceMean, func(r *FeatureRow, v float64) { r.MeanFinalStopDelaySeconds = v }},
	{reduceMean, func(r *FeatureRow, v float64) { r.MeanArrivalDelaySecondsLag5Stops = v }},
	{reduceMean, func(r *FeatureRow, v float64) { r.MeanDepartureDelaySecondsLag5Stops = v }},
	{reduceMean, func(r *FeatureRow, v float64) { r.MeanDelayChangeSecondsLag5Stops = v }},
}

// rolled holds the rolling statistics of one route type.
type rolled struct {
	change, arrival, departure []windowStats
	onTime, final              []windowStats
}

// sample returns the rolling values of row i in outputs order.
func (r *rolled) sample(i int, o *observation) []sql.NullFloat64 {
	onTime := r.onTime[i].Mean
	if onTime.Valid {
		onTime.Float64 *= 100
	}
	return []sql.NullFloat64{
		r.change[i].Mean, r.change[i].Max, r.change[i].Min, r.change[i].Var,
		r.arrival[i].Mean, r.arrival[i].Max, r.arrival[i].Min, r.arrival[i].Var,
		r.departure[i].Mean, r.departure[i].Max, r.departure[i].Min, r.departure[i].Var,
		onTime,
		r.final[i].Mean,
		o.lagArrival, o.lagDeparture, o.lagChange,
	}
}

type bucket struct {
	count  int
	values [][]float64
}

// summarize rolls the time window over one route type's observations (sorted
// by arrival time) and resamples the rolling series into hourly rows spanning
// the first to the last observed hour.
func summarize(group []observation, opts Options, counts map[gtfs.StopCountKey]int) []FeatureRow {
	n := len(group)
	if n == 0 {
		return nil
	}
	at := make([]int64, n)
	change := make([]sql.NullFloat64, n)
	arrival := make([]sql.NullFloat64, n)
	departure := make([]sql.NullFloat64, n)
	onTime := make([]sql.NullFloat64, n)
	final := make([]sql.NullFloat64, n)
	for i, o := range group {
		at[i] = o.at
		change[i] = o.delayChange
		arrival[i] = o.arrivalDelay
		departure[i] = o.departureDelay
		onTime[i] = sql.NullFloat64{Valid: true}
		if o.onTime {
			onTime[i].Float64 = 1
		}
		final[i] = o.finalStopDelay
	}

	window := int64(opts.Window / time.Second)
	r := rolled{
		change:    rollTime(at, change, window),
		arrival:   rollTime(at, arrival, window),
		departure: rollTime(at, departure, window),
		onTime:    rollTime(at, onTime, window),
		final:     rollTime(at, final, window),
	}

	first := utils.HourBin(time.Unix(at[0], 0))
	last := utils.HourBin(time.Unix(at[n-1], 0))
	buckets := make([]bucket, int(last.Sub(first)/time.Hour)+1)
	for i := range buckets {
		buckets[i].values = make([][]float64, len(outputs))
	}
	for i := range group {
		b := &buckets[int(utils.HourBin(time.Unix(at[i], 0)).Sub(first)/time.Hour)]
		b.count++
		for k, v := range r.sample(i, &group[i]) {
			if v.Valid {
				b.values[k] = append(b.values[k], v.Float64)
			}
		}
	}

	routeType := group[0].routeType
	var rows []FeatureRow
	for i, b := range buckets {
		if b.count < opts.MinUpdatesPerSlot {
			continue
		}
		bin := first.Add(time.Duration(i) * time.Hour)
		row := FeatureRow{
			RouteType:       routeType,
			ArrivalTimeBin:  bin,
			StopCount:       float64(counts[gtfs.StopCountKey{RouteType: routeType, Bin: bin}]),
			TripUpdateCount: b.count,
		}
		for k, out := range outputs {
			if len(b.values[k]) > 0 {
				out.set(&row, out.reduce.apply(b.values[k]))
			}
		}
		rows = append(rows, row)
	}
	return rows
}
