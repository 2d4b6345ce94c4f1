package gtfs

import (
	"encoding/csv"
	"fmt"
	"io/fs"
	"path"
	"strconv"
	"strings"

	"github.com/theoremus-urban-solutions/gtfsrt-delay-features/internal/logging"
)

var feedFiles = map[string]bool{
	"routes.txt":     true,
	"trips.txt":      true,
	"stops.txt":      true,
	"stop_times.txt": true,
}

// LoadFeed reads the schedule tables found anywhere in fsys. The first file
// of each name in lexical walk order wins; absent files leave their table empty.
func LoadFeed(fsys fs.FS) (*Feed, error) {
	found := map[string]string{}
	err := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		name := strings.ToLower(path.Base(p))
		if feedFiles[name] {
			if _, dup := found[name]; !dup {
				found[name] = p
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan gtfs feed: %w", err)
	}

	feed := &Feed{}
	for name, p := range found {
		if err := feed.consumeCSV(fsys, p, name); err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
	}
	logging.Logf("gtfs: loaded %d routes, %d trips, %d stops, %d stop times",
		len(feed.Routes), len(feed.Trips), len(feed.Stops), len(feed.StopTimes))
	return feed, nil
}

func (g *Feed) consumeCSV(fsys fs.FS, p, name string) error {
	r, err := fsys.Open(p)
	if err != nil {
		return err
	}
	defer r.Close()
	csvr := csv.NewReader(r)
	csvr.FieldsPerRecord = -1
	csvr.LazyQuotes = true
	rec, err := csvr.ReadAll()
	if err != nil {
		return err
	}
	if len(rec) == 0 {
		return nil
	}
	head := rec[0]
	if len(head) > 0 {
		head[0] = strings.TrimPrefix(head[0], "\ufeff")
	}
	idx := func(col string) int {
		for i, h := range head {
			if strings.EqualFold(strings.TrimSpace(h), col) {
				return i
			}
		}
		return -1
	}
	field := func(row []string, i int) string {
		if i < 0 || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	skipped := 0
	switch name {
	case "routes.txt":
		rID := idx("route_id")
		rSN := idx("route_short_name")
		rType := idx("route_type")
		for _, row := range rec[1:] {
			typeInt, err := strconv.Atoi(field(row, rType))
			if err != nil || field(row, rID) == "" {
				skipped++
				continue
			}
			g.Routes = append(g.Routes, Route{RouteID: field(row, rID), ShortName: field(row, rSN), RouteType: typeInt})
		}
	case "trips.txt":
		rID := idx("route_id")
		tID := idx("trip_id")
		sID := idx("service_id")
		hs := idx("trip_headsign")
		for _, row := range rec[1:] {
			if field(row, tID) == "" {
				skipped++
				continue
			}
			g.Trips = append(g.Trips, Trip{
				TripID:    field(row, tID),
				RouteID:   field(row, rID),
				ServiceID: field(row, sID),
				Headsign:  field(row, hs),
			})
		}
	case "stops.txt":
		sID := idx("stop_id")
		sN := idx("stop_name")
		sLat := idx("stop_lat")
		sLon := idx("stop_lon")
		for _, row := range rec[1:] {
			if field(row, sID) == "" {
				skipped++
				continue
			}
			lat, _ := strconv.ParseFloat(field(row, sLat), 64)
			lon, _ := strconv.ParseFloat(field(row, sLon), 64)
			g.Stops = append(g.Stops, Stop{StopID: field(row, sID), StopName: field(row, sN), Lat: lat, Lon: lon})
		}
	case "stop_times.txt":
		tID := idx("trip_id")
		sID := idx("stop_id")
		sq := idx("stop_sequence")
		arrTime := idx("arrival_time")
		depTime := idx("departure_time")
		if tID < 0 || sID < 0 {
			return fmt.Errorf("missing trip_id or stop_id column")
		}
		for _, row := range rec[1:] {
			seq, _ := strconv.Atoi(field(row, sq))
			g.StopTimes = append(g.StopTimes, StopTime{
				TripID:        field(row, tID),
				StopID:        field(row, sID),
				StopSequence:  seq,
				ArrivalTime:   field(row, arrTime),
				DepartureTime: field(row, depTime),
			})
		}
	}
	if skipped > 0 {
		logging.Logf("gtfs: %s: skipped %d malformed rows", name, skipped)
	}
	return nil
}
