package gtfsrt

import (
	"database/sql"
	"errors"
)

// ErrEmptyFeed is returned when a payload is not a GTFS-RT FeedMessage or a
// table holds no usable events.
var ErrEmptyFeed = errors.New("empty feed")

// Column is a canonical event column name.
type Column string

const (
	ColEntityID                 Column = "id"
	ColTripID                   Column = "trip_id"
	ColStartDate                Column = "start_date"
	ColStartTime                Column = "start_time"
	ColDirectionID              Column = "direction_id"
	ColRouteID                  Column = "route_id"
	ColScheduleRelationship     Column = "schedule_relationship"
	ColTimestamp                Column = "timestamp"
	ColVehicleID                Column = "vehicle_id"
	ColStopSequence             Column = "stop_sequence"
	ColStopID                   Column = "stop_id"
	ColStopScheduleRelationship Column = "stop_schedule_relationship"
	ColArrivalDelay             Column = "arrival_delay"
	ColArrivalTime              Column = "arrival_time"
	ColArrivalUncertainty       Column = "arrival_uncertainty"
	ColDepartureDelay           Column = "departure_delay"
	ColDepartureTime            Column = "departure_time"
	ColDepartureUncertainty     Column = "departure_uncertainty"

	// ColPlaceholder is the only column of a table without events.
	ColPlaceholder Column = "_"
)

// Columns lists the canonical columns in table order.
var Columns = []Column{
	ColEntityID, ColTripID, ColStartDate, ColStartTime, ColDirectionID, ColRouteID,
	ColScheduleRelationship, ColTimestamp, ColVehicleID, ColStopSequence, ColStopID,
	ColStopScheduleRelationship, ColArrivalDelay, ColArrivalTime, ColArrivalUncertainty,
	ColDepartureDelay, ColDepartureTime, ColDepartureUncertainty,
}

// TripUpdateEvent is one normalized stop-level observation.
type TripUpdateEvent struct {
	EntityID                 sql.NullInt64
	TripID                   string
	StartDate                string
	StartTime                string
	DirectionID              sql.NullInt64
	RouteID                  string
	ScheduleRelationship     string
	Timestamp                sql.NullInt64
	VehicleID                string
	StopSequence             sql.NullInt64
	StopID                   string
	StopScheduleRelationship string
	ArrivalDelay             sql.NullInt64
	ArrivalTime              sql.NullInt64
	ArrivalUncertainty       sql.NullInt64
	DepartureDelay           sql.NullInt64
	DepartureTime            sql.NullInt64
	DepartureUncertainty     sql.NullInt64
}

// stringColumns and intColumns give field access by column; every canonical
// column appears in exactly one of them.
var stringColumns = map[Column]func(*TripUpdateEvent) *string{
	ColTripID:                   func(e *TripUpdateEvent) *string { return &e.TripID },
	ColStartDate:                func(e *TripUpdateEvent) *string { return &e.StartDate },
	ColStartTime:                func(e *TripUpdateEvent) *string { return &e.StartTime },
	ColRouteID:                  func(e *TripUpdateEvent) *string { return &e.RouteID },
	ColScheduleRelationship:     func(e *TripUpdateEvent) *string { return &e.ScheduleRelationship },
	ColVehicleID:                func(e *TripUpdateEvent) *string { return &e.VehicleID },
	ColStopID:                   func(e *TripUpdateEvent) *string { return &e.StopID },
	ColStopScheduleRelationship: func(e *TripUpdateEvent) *string { return &e.StopScheduleRelationship },
}

var intColumns = map[Column]func(*TripUpdateEvent) *sql.NullInt64{
	ColEntityID:             func(e *TripUpdateEvent) *sql.NullInt64 { return &e.EntityID },
	ColDirectionID:          func(e *TripUpdateEvent) *sql.NullInt64 { return &e.DirectionID },
	ColTimestamp:            func(e *TripUpdateEvent) *sql.NullInt64 { return &e.Timestamp },
	ColStopSequence:         func(e *TripUpdateEvent) *sql.NullInt64 { return &e.StopSequence },
	ColArrivalDelay:         func(e *TripUpdateEvent) *sql.NullInt64 { return &e.ArrivalDelay },
	ColArrivalTime:          func(e *TripUpdateEvent) *sql.NullInt64 { return &e.ArrivalTime },
	ColArrivalUncertainty:   func(e *TripUpdateEvent) *sql.NullInt64 { return &e.ArrivalUncertainty },
	ColDepartureDelay:       func(e *TripUpdateEvent) *sql.NullInt64 { return &e.DepartureDelay },
	ColDepartureTime:        func(e *TripUpdateEvent) *sql.NullInt64 { return &e.DepartureTime },
	ColDepartureUncertainty: func(e *TripUpdateEvent) *sql.NullInt64 { return &e.DepartureUncertainty },
}

// Has reports whether the event carries a value for col.
func (e *TripUpdateEvent) Has(col Column) bool {
	if f, ok := stringColumns[col]; ok {
		return *f(e) != ""
	}
	if f, ok := intColumns[col]; ok {
		return f(e).Valid
	}
	return false
}

// structuralKey blanks the columns that legitimately change between
// retransmissions of the same record.
func (e TripUpdateEvent) structuralKey() TripUpdateEvent {
	e.Timestamp = sql.NullInt64{}
	e.ArrivalDelay = sql.NullInt64{}
	e.ArrivalTime = sql.NullInt64{}
	e.ArrivalUncertainty = sql.NullInt64{}
	e.DepartureDelay = sql.NullInt64{}
	e.DepartureTime = sql.NullInt64{}
	e.DepartureUncertainty = sql.NullInt64{}
	return e
}

// EventTable is an ordered, immutable batch of events.
type EventTable struct {
	Columns []Column
	Events  []TripUpdateEvent
}

// NewEventTable wraps events and derives the present columns.
func NewEventTable(events []TripUpdateEvent) *EventTable {
	t := &EventTable{Events: events}
	for _, col := range Columns {
		for i := range events {
			if events[i].Has(col) {
				t.Columns = append(t.Columns, col)
				break
			}
		}
	}
	if len(events) == 0 {
		t.Columns = []Column{ColPlaceholder}
	}
	return t
}

// Len returns the number of events.
func (t *EventTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Events)
}

// HasColumns reports whether every col is present in the table.
func (t *EventTable) HasColumns(cols ...Column) bool {
	if t == nil {
		return false
	}
	for _, want := range cols {
		found := false
		for _, c := range t.Columns {
			if c == want {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
