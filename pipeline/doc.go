// Package pipeline runs the per-day sequence: realtime events, schedule
// mappings, stop counts, aggregation, cache commit, sink, notification and
// ledger entry. Every day ends in a Result; no error escapes RunDay.
package pipeline
