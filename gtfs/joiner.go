package gtfs

import (
	"fmt"
	"sort"
	"time"

	"github.com/theoremus-urban-solutions/gtfsrt-delay-features/internal/logging"
	"github.com/theoremus-urban-solutions/gtfsrt-delay-features/utils"
)

// MinRouteTypeRows is the mapping size below which the schedule is reported
// as suspicious. Small mappings are still returned.
const MinRouteTypeRows = 10

const secondsPerDay = 24 * 3600

// BuildRouteTypeMap joins trips to routes on route_id. Trips whose route is
// unknown are dropped and the first row of a repeated trip_id wins.
func BuildRouteTypeMap(trips []Trip, routes []Route) (*RouteTypeMapping, error) {
	if len(trips) == 0 || len(routes) == 0 {
		return nil, fmt.Errorf("%w: route type map needs trips (%d) and routes (%d)", ErrMissingReferenceData, len(trips), len(routes))
	}
	routeByID := make(map[string]Route, len(routes))
	for _, r := range routes {
		if _, ok := routeByID[r.RouteID]; !ok {
			routeByID[r.RouteID] = r
		}
	}

	m := &RouteTypeMapping{Rows: make([]RouteTypeRow, 0, len(trips))}
	seen := make(map[string]bool, len(trips))
	unresolved := map[int]int{}
	for _, t := range trips {
		r, ok := routeByID[t.RouteID]
		if !ok || seen[t.TripID] {
			continue
		}
		seen[t.TripID] = true
		desc, ok := RouteTypeDescription(r.RouteType)
		if !ok {
			unresolved[r.RouteType]++
		}
		m.Rows = append(m.Rows, RouteTypeRow{TripID: t.TripID, RouteID: r.RouteID, RouteType: r.RouteType, Description: desc})
	}

	if len(m.Rows) == 0 {
		return nil, fmt.Errorf("%w: no trip references a known route", ErrMissingReferenceData)
	}
	for code, n := range unresolved {
		logging.Logf("gtfs: route type %d has no description (%d trips)", code, n)
	}
	if len(m.Rows) < MinRouteTypeRows {
		logging.Logf("gtfs: warning: route type map has only %d rows", len(m.Rows))
	}
	return m, nil
}

// BuildStopLocationMap keeps the name and position of every stop. Stops with
// coordinates outside the valid range are kept and reported.
func BuildStopLocationMap(stops []Stop) (*StopLocationMapping, error) {
	if len(stops) == 0 {
		return nil, fmt.Errorf("%w: stops table is empty", ErrMissingReferenceData)
	}
	m := &StopLocationMapping{Stops: make([]StopLocation, 0, len(stops))}
	invalid := 0
	for _, s := range stops {
		loc := StopLocation{StopID: s.StopID, StopName: s.StopName, Lat: s.Lat, Lon: s.Lon}
		if !loc.LatLng().IsValid() {
			invalid++
		}
		m.Stops = append(m.Stops, loc)
	}
	if invalid > 0 {
		logging.Logf("gtfs: warning: %d stops have invalid coordinates", invalid)
	}
	return m, nil
}

// BuildStopCount counts scheduled arrivals per route type and UTC hour on
// date, reading GTFS clock times in loc. Hours between a route type's first
// and last bucket without arrivals get a zero row.
func BuildStopCount(date string, loc *time.Location, stopTimes []StopTime, routeTypes *RouteTypeMapping) (*StopCount, error) {
	if len(stopTimes) == 0 {
		return nil, fmt.Errorf("%w: stop_times table is empty", ErrMissingReferenceData)
	}
	if routeTypes == nil || len(routeTypes.Rows) == 0 {
		return nil, fmt.Errorf("%w: route type map is empty", ErrMissingReferenceData)
	}
	day, err := utils.ParseDate(date)
	if err != nil {
		return nil, err
	}
	byTrip := routeTypes.ByTrip()

	counts := map[StopCountKey]int{}
	bad := 0
	for _, st := range stopTimes {
		if st.ArrivalTime == "" {
			continue
		}
		secs, err := utils.ParseGTFSClock(st.ArrivalTime)
		if err != nil {
			bad++
			continue
		}
		if secs >= secondsPerDay {
			continue
		}
		rt, ok := byTrip[st.TripID]
		if !ok {
			continue
		}
		t, err := utils.GTFSTimeOn(day, st.ArrivalTime, loc)
		if err != nil {
			bad++
			continue
		}
		counts[StopCountKey{RouteType: rt.RouteType, Bin: utils.HourBin(t)}]++
	}
	if bad > 0 {
		logging.Logf("gtfs: ignored %d stop times with malformed arrival_time", bad)
	}

	span := map[int][2]time.Time{}
	for k := range counts {
		s, ok := span[k.RouteType]
		if !ok {
			span[k.RouteType] = [2]time.Time{k.Bin, k.Bin}
			continue
		}
		if k.Bin.Before(s[0]) {
			s[0] = k.Bin
		}
		if k.Bin.After(s[1]) {
			s[1] = k.Bin
		}
		span[k.RouteType] = s
	}
	types := make([]int, 0, len(span))
	for rt := range span {
		types = append(types, rt)
	}
	sort.Ints(types)

	out := &StopCount{}
	for _, rt := range types {
		for bin := span[rt][0]; !bin.After(span[rt][1]); bin = bin.Add(time.Hour) {
			out.Rows = append(out.Rows, StopCountRow{RouteType: rt, Bin: bin, Count: counts[StopCountKey{RouteType: rt, Bin: bin}]})
		}
	}
	return out, nil
}
