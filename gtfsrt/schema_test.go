package gtfsrt

import (
	"bytes"
	"database/sql"
	"encoding/gob"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Every canonical column has exactly one accessor and at least one provider path.
func TestSchema_Exhaustive(t *testing.T) {
	targets := map[Column]bool{}
	for path, col := range renames {
		assert.Contains(t, Columns, col, "rename %s targets unknown column", path)
		targets[col] = true
	}
	for _, col := range Columns {
		_, isString := stringColumns[col]
		_, isInt := intColumns[col]
		assert.True(t, isString != isInt, "column %s must have exactly one accessor", col)
		assert.True(t, targets[col], "column %s has no provider path", col)
	}
	assert.Len(t, stringColumns, len(Columns)-len(intColumns))

	col, ok := CanonicalColumn("tripUpdate_stopTimeUpdate_arrival_delay")
	assert.True(t, ok)
	assert.Equal(t, ColArrivalDelay, col)
	_, ok = CanonicalColumn("alert_headerText_translation_text")
	assert.False(t, ok)
}

func TestEventTable_GobColumnar(t *testing.T) {
	in := NewEventTable([]TripUpdateEvent{
		{TripID: "T1", StopID: "S1", ArrivalDelay: sql.NullInt64{Int64: -12, Valid: true}},
		{TripID: "T2", StopID: "S9", Timestamp: sql.NullInt64{Int64: 1705305600, Valid: true}},
	})
	var buf bytes.Buffer
	require.NoError(t, gob.NewEncoder(&buf).Encode(in))

	var out EventTable
	require.NoError(t, gob.NewDecoder(&buf).Decode(&out))
	if diff := cmp.Diff(*in, out); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}

	empty := NewEventTable(nil)
	buf.Reset()
	require.NoError(t, gob.NewEncoder(&buf).Encode(empty))
	var gotEmpty EventTable
	require.NoError(t, gob.NewDecoder(&buf).Decode(&gotEmpty))
	assert.Equal(t, []Column{ColPlaceholder}, gotEmpty.Columns)
	assert.Zero(t, gotEmpty.Len())
}
