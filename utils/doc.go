// Package utils provides internal utility functions for the delay feature pipeline.
// This package is not intended to be imported by external code.
//
// It contains:
//   - Service date parsing and date range iteration
//   - GTFS clock time ("25:10:00") conversion
//   - Hour bin arithmetic shared by the schedule joiner and the aggregator
package utils
