package gtfsrt

import (
	"bytes"
	"database/sql"
	"encoding/gob"
	"fmt"
)

// eventFrame is the column-oriented wire form of an EventTable.
type eventFrame struct {
	N       int
	Columns []Column
	Strings map[Column][]string
	Ints    map[Column][]int64
	Valid   map[Column][]bool
}

// GobEncode stores the table column by column.
func (t EventTable) GobEncode() ([]byte, error) {
	f := eventFrame{
		N:       len(t.Events),
		Columns: t.Columns,
		Strings: map[Column][]string{},
		Ints:    map[Column][]int64{},
		Valid:   map[Column][]bool{},
	}
	for _, col := range t.Columns {
		if get, ok := stringColumns[col]; ok {
			vals := make([]string, len(t.Events))
			for i := range t.Events {
				vals[i] = *get(&t.Events[i])
			}
			f.Strings[col] = vals
		}
		if get, ok := intColumns[col]; ok {
			vals := make([]int64, len(t.Events))
			valid := make([]bool, len(t.Events))
			for i := range t.Events {
				n := get(&t.Events[i])
				vals[i], valid[i] = n.Int64, n.Valid
			}
			f.Ints[col] = vals
			f.Valid[col] = valid
		}
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(f); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// GobDecode restores a table written by GobEncode.
func (t *EventTable) GobDecode(data []byte) error {
	var f eventFrame
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&f); err != nil {
		return err
	}
	events := make([]TripUpdateEvent, f.N)
	for _, col := range f.Columns {
		if set, ok := stringColumns[col]; ok {
			vals := f.Strings[col]
			if len(vals) != f.N {
				return fmt.Errorf("column %s: %d values for %d rows", col, len(vals), f.N)
			}
			for i := range events {
				*set(&events[i]) = vals[i]
			}
		}
		if set, ok := intColumns[col]; ok {
			vals, valid := f.Ints[col], f.Valid[col]
			if len(vals) != f.N || len(valid) != f.N {
				return fmt.Errorf("column %s: %d values for %d rows", col, len(vals), f.N)
			}
			for i := range events {
				*set(&events[i]) = sql.NullInt64{Int64: vals[i], Valid: valid[i]}
			}
		}
	}
	t.Columns = f.Columns
	t.Events = events
	return nil
}
