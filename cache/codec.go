package cache

import (
	"encoding/gob"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"
)

// Codec persists one artifact type.
type Codec[T any] interface {
	Encode(w io.Writer, v T) error
	Decode(r io.Reader) (T, error)
}

// GobZstd encodes artifacts with encoding/gob inside a zstd frame. Types may
// implement gob.GobEncoder to choose their own layout.
type GobZstd[T any] struct{}

// Encode writes v as a single zstd frame
func (GobZstd[T]) Encode(w io.Writer, v T) error {
	zw, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	if err := gob.NewEncoder(zw).Encode(v); err != nil {
		zw.Close()
		return fmt.Errorf("encode artifact: %w", err)
	}
	return zw.Close()
}

// Decode reads a value written by Encode
func (GobZstd[T]) Decode(r io.Reader) (T, error) {
	var v T
	zr, err := zstd.NewReader(r)
	if err != nil {
		return v, err
	}
	defer zr.Close()
	if err := gob.NewDecoder(zr).Decode(&v); err != nil {
		return v, fmt.Errorf("decode artifact: %w", err)
	}
	return v, nil
}

func loadFile[T any](codec Codec[T], path string) (T, error) {
	f, err := os.Open(path)
	if err != nil {
		var zero T
		return zero, err
	}
	defer f.Close()
	return codec.Decode(f)
}
