// Package gtfsrt decodes and normalizes GTFS-Realtime protobuf feeds.
//
// Decoding flattens every FeedEntity into path-keyed records
// ("tripUpdate_stopTimeUpdate_arrival_delay"), exploding repeated messages
// such as stop_time_update into one record per element. Normalize maps those
// provider paths onto the canonical TripUpdateEvent columns and applies the
// cleaning rules:
//   - records with no canonical value are dropped
//   - timestamp and id fields are coerced to int64
//   - retransmitted copies of the same record collapse to the newest one
//   - at most one event per (trip_id, stop_id) survives, the latest by timestamp
//
// Historical archives contain one file per snapshot in hour directories.
// DiscoverPartitions groups them by hour and ReadPartitions parses each hour
// with a bounded worker pool while keeping the merge order deterministic.
package gtfsrt
