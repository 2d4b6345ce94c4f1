package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDateRange(t *testing.T) {
	tests := []struct {
		name    string
		start   string
		end     string
		stride  int
		want    []string
		wantErr bool
	}{
		{name: "single day", start: "2024-01-01", end: "2024-01-01", stride: 1, want: []string{"2024-01-01"}},
		{name: "daily across month", start: "2024-01-30", end: "2024-02-02", stride: 1,
			want: []string{"2024-01-30", "2024-01-31", "2024-02-01", "2024-02-02"}},
		{name: "weekly stride", start: "2024-03-01", end: "2024-03-20", stride: 7,
			want: []string{"2024-03-01", "2024-03-08", "2024-03-15"}},
		{name: "end before start", start: "2024-01-02", end: "2024-01-01", stride: 1, wantErr: true},
		{name: "zero stride", start: "2024-01-01", end: "2024-01-02", stride: 0, wantErr: true},
		{name: "bad date", start: "2024/01/01", end: "2024-01-02", stride: 1, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DateRange(tt.start, tt.end, tt.stride)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDateToken(t *testing.T) {
	assert.Equal(t, "2024_01_02", DateToken("2024-01-02"))
}

func TestParseGTFSClock(t *testing.T) {
	tests := []struct {
		name      string
		value     string
		want      int
		wantError bool
	}{
		{name: "normal morning time", value: "08:30:45", want: 8*3600 + 30*60 + 45},
		{name: "midnight", value: "00:00:00", want: 0},
		{name: "past midnight", value: "25:30:00", want: 25*3600 + 30*60},
		{name: "empty", value: "", wantError: true},
		{name: "bad minutes", value: "08:75:00", wantError: true},
		{name: "not a number", value: "aa:00:00", wantError: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseGTFSClock(tt.value)
			if tt.wantError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGTFSTimeOn(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Stockholm")
	require.NoError(t, err)
	date, err := ParseDate("2024-01-15")
	require.NoError(t, err)

	got, err := GTFSTimeOn(date, "08:15:00", loc)
	require.NoError(t, err)
	// Stockholm is UTC+1 in January.
	assert.Equal(t, time.Date(2024, 1, 15, 7, 15, 0, 0, time.UTC), got.UTC())

	got, err = GTFSTimeOn(date, "08:15:00", nil)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 15, 8, 15, 0, 0, time.UTC), got)
}

func TestHourBin(t *testing.T) {
	in := time.Date(2024, 1, 15, 8, 59, 59, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 1, 15, 8, 0, 0, 0, time.UTC), HourBin(in))
}

func TestIso8601FromUnixSeconds(t *testing.T) {
	assert.Equal(t, "2024-01-15T08:00:00Z", Iso8601FromUnixSeconds(1705305600))
	assert.Equal(t, "1970-01-01T00:00:00Z", Iso8601FromUnixSeconds(0))
}
