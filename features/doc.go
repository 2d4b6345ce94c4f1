// Package features turns normalized trip updates into hourly delay features
// per route type.
//
// Aggregate joins events to the schedule's route types, derives per-event
// columns (on-time flag, final stop delay, delay change between consecutive
// stops, five-stop lagged means), rolls a time window over every route type
// and summarizes the rolling series into hourly bins. Buckets observed fewer
// than MinUpdatesPerSlot times are dropped and the remaining gaps are zero
// filled.
package features
