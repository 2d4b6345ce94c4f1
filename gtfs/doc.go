/*
Package gtfs loads GTFS static schedules and derives the reference tables the
delay aggregation joins against.

The loader is data-source agnostic: it reads from any fs.FS, so an extracted
archive directory (os.DirFS) and an in-memory zip (zip.Reader) are handled the
same way. Only trips.txt, routes.txt, stops.txt and stop_times.txt are read;
they may sit at any depth inside the tree.

# Derived tables

	feed, err := gtfs.LoadFeed(os.DirFS(extractedDir))
	if err != nil {
	    return err
	}
	routeTypes, err := gtfs.BuildRouteTypeMap(feed.Trips, feed.Routes)
	stops, err := gtfs.BuildStopLocationMap(feed.Stops)
	counts, err := gtfs.BuildStopCount("2024-01-15", loc, feed.StopTimes, routeTypes)

BuildRouteTypeMap resolves every trip to its route type and a readable
description. Route type codes cover the basic GTFS values and the extended
(Hierarchical Vehicle Type) values used by Swedish operators; unknown codes
are kept with an empty description and logged.

BuildStopCount counts scheduled stop visits per route type and UTC hour.
Times at or after 24:00:00 belong to the next service day and are ignored.

Every builder returns ErrMissingReferenceData when its input is empty.
*/
package gtfs
