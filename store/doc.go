// Package store persists feature tables.
//
// FileSink writes one CSV per (operator, date); PostgresSink upserts rows into
// the delay_features table. FallbackSink pairs them so an unreachable database
// degrades to a local file and a warning instead of a failed day.
package store
