package features

import (
	"strconv"
	"time"

	"github.com/theoremus-urban-solutions/gtfsrt-delay-features/utils"
)

// Columns is the output column order shared by every sink.
var Columns = []string{
	"route_type",
	"arrival_time_bin",
	"mean_delay_change_seconds",
	"max_delay_change_seconds",
	"min_delay_change_seconds",
	"var_delay_change_seconds",
	"mean_arrival_delay_seconds",
	"max_arrival_delay_seconds",
	"min_arrival_delay_seconds",
	"var_arrival_delay",
	"mean_departure_delay_seconds",
	"max_departure_delay_seconds",
	"min_departure_delay_seconds",
	"var_departure_delay",
	"mean_on_time_percent",
	"mean_final_stop_delay_seconds",
	"mean_arrival_delay_seconds_lag_5stops",
	"mean_departure_delay_seconds_lag_5stops",
	"mean_delay_change_seconds_lag_5stops",
	"stop_count",
}

// FeatureRow summarizes one (route type, hour) bucket. TripUpdateCount is
// kept for the cache and the sample floor but is not part of Columns.
type FeatureRow struct {
	RouteType      int       `json:"route_type"`
	ArrivalTimeBin time.Time `json:"arrival_time_bin"`

	MeanDelayChangeSeconds float64 `json:"mean_delay_change_seconds"`
	MaxDelayChangeSeconds  float64 `json:"max_delay_change_seconds"`
	MinDelayChangeSeconds  float64 `json:"min_delay_change_seconds"`
	VarDelayChangeSeconds  float64 `json:"var_delay_change_seconds"`

	MeanArrivalDelaySeconds float64 `json:"mean_arrival_delay_seconds"`
	MaxArrivalDelaySeconds  float64 `json:"max_arrival_delay_seconds"`
	MinArrivalDelaySeconds  float64 `json:"min_arrival_delay_seconds"`
	VarArrivalDelay         float64 `json:"var_arrival_delay"`

	MeanDepartureDelaySeconds float64 `json:"mean_departure_delay_seconds"`
	MaxDepartureDelaySeconds  float64 `json:"max_departure_delay_seconds"`
	MinDepartureDelaySeconds  float64 `json:"min_departure_delay_seconds"`
	VarDepartureDelay         float64 `json:"var_departure_delay"`

	MeanOnTimePercent         float64 `json:"mean_on_time_percent"`
	MeanFinalStopDelaySeconds float64 `json:"mean_final_stop_delay_seconds"`

	MeanArrivalDelaySecondsLag5Stops   float64 `json:"mean_arrival_delay_seconds_lag_5stops"`
	MeanDepartureDelaySecondsLag5Stops float64 `json:"mean_departure_delay_seconds_lag_5stops"`
	MeanDelayChangeSecondsLag5Stops    float64 `json:"mean_delay_change_seconds_lag_5stops"`

	StopCount       float64 `json:"stop_count"`
	TripUpdateCount int     `json:"trip_update_count"`
}

// Values returns the row in Columns order.
func (r FeatureRow) Values() []interface{} {
	return []interface{}{
		r.RouteType,
		r.ArrivalTimeBin.UTC(),
		r.MeanDelayChangeSeconds,
		r.MaxDelayChangeSeconds,
		r.MinDelayChangeSeconds,
		r.VarDelayChangeSeconds,
		r.MeanArrivalDelaySeconds,
		r.MaxArrivalDelaySeconds,
		r.MinArrivalDelaySeconds,
		r.VarArrivalDelay,
		r.MeanDepartureDelaySeconds,
		r.MaxDepartureDelaySeconds,
		r.MinDepartureDelaySeconds,
		r.VarDepartureDelay,
		r.MeanOnTimePercent,
		r.MeanFinalStopDelaySeconds,
		r.MeanArrivalDelaySecondsLag5Stops,
		r.MeanDepartureDelaySecondsLag5Stops,
		r.MeanDelayChangeSecondsLag5Stops,
		r.StopCount,
	}
}

// Record renders the row as CSV fields in Columns order.
func (r FeatureRow) Record() []string {
	values := r.Values()
	out := make([]string, len(values))
	for i, v := range values {
		switch x := v.(type) {
		case int:
			out[i] = strconv.Itoa(x)
		case time.Time:
			out[i] = utils.Iso8601FromUnixSeconds(x.Unix())
		case float64:
			out[i] = strconv.FormatFloat(x, 'f', -1, 64)
		}
	}
	return out
}
