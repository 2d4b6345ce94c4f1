package archive

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
)

// ErrUnsupportedFormat is returned for archives that cannot be extracted.
var ErrUnsupportedFormat = errors.New("unsupported archive format")

// Format is a container format recognised by its signature.
type Format int

const (
	FormatUnknown Format = iota
	Format7z
	FormatZip
	FormatRar
	FormatGzip
	FormatBzip2
	FormatTar
)

type signature struct {
	format    Format
	name      string
	offset    int
	magic     []byte
	supported bool
}

// signatures is the enumerated magic byte table, checked in order.
var signatures = []signature{
	{Format7z, "7z", 0, []byte{0x37, 0x7A, 0xBC, 0xAF, 0x27, 0x1C}, true},
	{FormatZip, "zip", 0, []byte{0x50, 0x4B, 0x03, 0x04}, true},
	{FormatRar, "rar", 0, []byte("Rar!\x1a\x07"), false},
	{FormatGzip, "gzip", 0, []byte{0x1F, 0x8B}, false},
	{FormatBzip2, "bzip2", 0, []byte("BZh"), false},
	{FormatTar, "tar", 257, []byte("ustar"), false},
}

// sniffLen covers the deepest signature (tar at offset 257).
const sniffLen = 262

func (f Format) String() string {
	for _, s := range signatures {
		if s.format == f {
			return s.name
		}
	}
	return "unknown"
}

// Supported reports whether Unpack can extract f.
func (f Format) Supported() bool {
	for _, s := range signatures {
		if s.format == f {
			return s.supported
		}
	}
	return false
}

// DetectBytes matches the head of a file against the signature table.
func DetectBytes(head []byte) Format {
	for _, s := range signatures {
		end := s.offset + len(s.magic)
		if len(head) >= end && bytes.Equal(head[s.offset:end], s.magic) {
			return s.format
		}
	}
	return FormatUnknown
}

// Detect reads the head of the file at path and identifies its format.
func Detect(path string) (Format, error) {
	f, err := os.Open(path)
	if err != nil {
		return FormatUnknown, err
	}
	defer f.Close()

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return FormatUnknown, fmt.Errorf("read %s: %w", path, err)
	}
	return DetectBytes(head[:n]), nil
}
