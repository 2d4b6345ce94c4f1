package gtfs

// routeTypeDescriptions covers the basic GTFS route types and the extended
// route types published by Swedish operators.
var routeTypeDescriptions = map[int]string{
	0:  "Tram, Streetcar, Light rail",
	1:  "Subway, Metro",
	2:  "Rail",
	3:  "Bus",
	4:  "Ferry",
	5:  "Cable tram",
	6:  "Aerial lift",
	7:  "Funicular",
	11: "Trolleybus",
	12: "Monorail",

	100:  "Railway Service",
	101:  "High Speed Rail Service",
	102:  "Long Distance Rail Service",
	103:  "Inter Regional Rail Service",
	105:  "Sleeper Rail Service",
	106:  "Regional Rail Service",
	401:  "Metro Service",
	700:  "Bus Service",
	714:  "Rail Replacement Bus Service",
	900:  "Tram Service",
	1000: "Water Transport Service",
	1501: "Communal Taxi Service",
}

// RouteTypeDescription resolves a route type code.
func RouteTypeDescription(code int) (string, bool) {
	d, ok := routeTypeDescriptions[code]
	return d, ok
}
