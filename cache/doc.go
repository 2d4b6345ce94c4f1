// Package cache owns every file the pipeline keeps on disk.
//
// Layout under the cache root, one directory per operator and scope. The
// pipeline scopes by upstream (regional, koda) so live snapshots and archived
// days never share artifacts:
//
//	<root>/<operator>/<scope>/.last_updated    service date of the last completed run
//	<root>/<operator>/<scope>/<kind>.gob.zst   derived artifacts (rt_events, route_types_map, ...)
//	<root>/<operator>/<scope>/downloads/       raw upstream payloads
//	<root>/<operator>/<scope>/extract/         transient archive extractions
//
// An artifact is fresh only when it exists and its scope's marker names
// exactly the requested date; anything else is stale and rebuilt. The marker
// is written by Commit once a run reaches its final stage, which also removes
// that date's extraction directories. All writes go through a temporary file
// and a rename, so readers never observe a partial artifact.
package cache
