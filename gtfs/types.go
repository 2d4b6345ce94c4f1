package gtfs

import (
	"errors"
	"time"

	"github.com/golang/geo/s2"
)

// ErrMissingReferenceData is returned when a schedule table needed for a join is empty.
var ErrMissingReferenceData = errors.New("missing reference data")

// Route is a row of routes.txt
type Route struct {
	RouteID   string
	ShortName string
	RouteType int
}

// Trip is a row of trips.txt
type Trip struct {
	TripID    string
	RouteID   string
	ServiceID string
	Headsign  string
}

// Stop is a row of stops.txt
type Stop struct {
	StopID   string
	StopName string
	Lat      float64
	Lon      float64
}

// StopTime is a row of stop_times.txt
type StopTime struct {
	TripID        string
	StopID        string
	StopSequence  int
	ArrivalTime   string
	DepartureTime string
}

// Feed holds the tables of one static schedule
type Feed struct {
	Routes    []Route
	Trips     []Trip
	Stops     []Stop
	StopTimes []StopTime
}

// RouteTypeRow resolves one trip to its route type
type RouteTypeRow struct {
	TripID      string
	RouteID     string
	RouteType   int
	Description string
}

// RouteTypeMapping is the trip_id → route type table, one row per trip.
type RouteTypeMapping struct {
	Rows []RouteTypeRow
}

// ByTrip indexes the mapping by trip_id.
func (m *RouteTypeMapping) ByTrip() map[string]RouteTypeRow {
	out := make(map[string]RouteTypeRow, len(m.Rows))
	for _, r := range m.Rows {
		out[r.TripID] = r
	}
	return out
}

// StopLocation is a named stop position
type StopLocation struct {
	StopID   string
	StopName string
	Lat      float64
	Lon      float64
}

// LatLng returns the stop position as an s2 point.
func (s StopLocation) LatLng() s2.LatLng {
	return s2.LatLngFromDegrees(s.Lat, s.Lon)
}

// StopLocationMapping is the stop_id → location table
type StopLocationMapping struct {
	Stops []StopLocation
}

// ByID indexes the mapping by stop_id.
func (m *StopLocationMapping) ByID() map[string]StopLocation {
	out := make(map[string]StopLocation, len(m.Stops))
	for _, s := range m.Stops {
		out[s.StopID] = s
	}
	return out
}

// StopCountKey addresses one (route type, hour) bucket
type StopCountKey struct {
	RouteType int
	Bin       time.Time
}

// StopCountRow is the number of scheduled stop visits in one bucket
type StopCountRow struct {
	RouteType int
	Bin       time.Time
	Count     int
}

// StopCount holds scheduled stop visits per route type and hour.
type StopCount struct {
	Rows []StopCountRow
}

// ByKey indexes the counts by bucket.
func (s *StopCount) ByKey() map[StopCountKey]int {
	out := make(map[StopCountKey]int, len(s.Rows))
	for _, r := range s.Rows {
		out[StopCountKey{RouteType: r.RouteType, Bin: r.Bin.UTC()}] = r.Count
	}
	return out
}
