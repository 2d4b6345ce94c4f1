// Package archive unpacks downloaded upstream archives.
//
// The container format is sniffed from the leading magic bytes rather than
// trusted from the file name, since the historical API serves 7z archives and
// the live API serves zip archives under arbitrary names. Unpack is
// idempotent: an existing output directory is treated as a completed
// extraction and left untouched.
package archive
