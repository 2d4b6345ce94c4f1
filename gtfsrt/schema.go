package gtfsrt

// renames maps flattened provider paths onto canonical columns. Paths are the
// protobuf JSON field names joined with underscores.
var renames = map[string]Column{
	"id": ColEntityID,

	"tripUpdate_trip_tripId":                          ColTripID,
	"tripUpdate_trip_startDate":                       ColStartDate,
	"tripUpdate_trip_startTime":                       ColStartTime,
	"tripUpdate_trip_directionId":                     ColDirectionID,
	"tripUpdate_trip_routeId":                         ColRouteID,
	"tripUpdate_trip_scheduleRelationship":            ColScheduleRelationship,
	"tripUpdate_timestamp":                            ColTimestamp,
	"tripUpdate_vehicle_id":                           ColVehicleID,
	"tripUpdate_stopTimeUpdate_stopSequence":          ColStopSequence,
	"tripUpdate_stopTimeUpdate_stopId":                ColStopID,
	"tripUpdate_stopTimeUpdate_scheduleRelationship":  ColStopScheduleRelationship,
	"tripUpdate_stopTimeUpdate_arrival_delay":         ColArrivalDelay,
	"tripUpdate_stopTimeUpdate_arrival_time":          ColArrivalTime,
	"tripUpdate_stopTimeUpdate_arrival_uncertainty":   ColArrivalUncertainty,
	"tripUpdate_stopTimeUpdate_departure_delay":       ColDepartureDelay,
	"tripUpdate_stopTimeUpdate_departure_time":        ColDepartureTime,
	"tripUpdate_stopTimeUpdate_departure_uncertainty": ColDepartureUncertainty,

	"vehicle_trip_tripId":               ColTripID,
	"vehicle_trip_startDate":            ColStartDate,
	"vehicle_trip_startTime":            ColStartTime,
	"vehicle_trip_directionId":          ColDirectionID,
	"vehicle_trip_routeId":              ColRouteID,
	"vehicle_trip_scheduleRelationship": ColScheduleRelationship,
	"vehicle_timestamp":                 ColTimestamp,
	"vehicle_vehicle_id":                ColVehicleID,
	"vehicle_currentStopSequence":       ColStopSequence,
	"vehicle_stopId":                    ColStopID,
}

// CanonicalColumn returns the canonical column for a flattened provider path.
func CanonicalColumn(path string) (Column, bool) {
	col, ok := renames[path]
	return col, ok
}
