package utils

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the layout of every service date handled by the pipeline.
const DateLayout = "2006-01-02"

// Iso8601FromUnixSeconds renders sec as an RFC 3339 UTC timestamp, the form
// arrival_time_bin takes in every CSV output.
func Iso8601FromUnixSeconds(sec int64) string {
	return time.Unix(sec, 0).UTC().Format(time.RFC3339)
}

// ParseDate parses a YYYY-MM-DD service date.
func ParseDate(date string) (time.Time, error) {
	t, err := time.Parse(DateLayout, date)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", date, err)
	}
	return t, nil
}

// DateToken renders a service date the way upstream archive names carry it,
// 2024-01-02 becomes 2024_01_02.
func DateToken(date string) string {
	return strings.ReplaceAll(date, "-", "_")
}

// DateRange returns every stride-th date from start to end inclusive.
func DateRange(start, end string, strideDays int) ([]string, error) {
	if strideDays <= 0 {
		return nil, fmt.Errorf("invalid stride %d", strideDays)
	}
	s, err := ParseDate(start)
	if err != nil {
		return nil, err
	}
	e, err := ParseDate(end)
	if err != nil {
		return nil, err
	}
	if e.Before(s) {
		return nil, fmt.Errorf("end date %s before start date %s", end, start)
	}
	var out []string
	for d := s; !d.After(e); d = d.AddDate(0, 0, strideDays) {
		out = append(out, d.Format(DateLayout))
	}
	return out, nil
}

// HourBin truncates t to the start of its UTC hour.
func HourBin(t time.Time) time.Time {
	return t.UTC().Truncate(time.Hour)
}

// ParseGTFSClock parses a GTFS HH:MM:SS value into seconds after midnight.
// Hours may exceed 23 for trips running past midnight.
func ParseGTFSClock(value string) (int, error) {
	parts := strings.Split(strings.TrimSpace(value), ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("invalid GTFS time %q", value)
	}
	var secs [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("invalid GTFS time %q", value)
		}
		secs[i] = n
	}
	if secs[1] > 59 || secs[2] > 59 {
		return 0, fmt.Errorf("invalid GTFS time %q", value)
	}
	return secs[0]*3600 + secs[1]*60 + secs[2], nil
}

// GTFSTimeOn resolves a GTFS clock value on a service date in loc.
func GTFSTimeOn(date time.Time, value string, loc *time.Location) (time.Time, error) {
	secs, err := ParseGTFSClock(value)
	if err != nil {
		return time.Time{}, err
	}
	if loc == nil {
		loc = time.UTC
	}
	base := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, loc)
	return base.Add(time.Duration(secs) * time.Second), nil
}
