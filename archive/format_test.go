package archive

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectBytes(t *testing.T) {
	tarHead := make([]byte, 300)
	copy(tarHead[257:], "ustar")

	tests := []struct {
		name string
		head []byte
		want Format
	}{
		{name: "7z", head: []byte{0x37, 0x7A, 0xBC, 0xAF, 0x27, 0x1C, 0x00, 0x04}, want: Format7z},
		{name: "zip", head: []byte{'P', 'K', 0x03, 0x04, 0x14, 0x00}, want: FormatZip},
		{name: "rar", head: []byte("Rar!\x1a\x07\x00"), want: FormatRar},
		{name: "gzip", head: []byte{0x1F, 0x8B, 0x08}, want: FormatGzip},
		{name: "bzip2", head: []byte("BZh91AY"), want: FormatBzip2},
		{name: "tar", head: tarHead, want: FormatTar},
		{name: "protobuf payload", head: []byte{0x0a, 0x0d, 0x0a, 0x03, '2', '.', '0'}, want: FormatUnknown},
		{name: "empty", head: nil, want: FormatUnknown},
		{name: "truncated 7z", head: []byte{0x37, 0x7A}, want: FormatUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectBytes(tt.head))
		})
	}
}

// Every signature has a name and only 7z and zip are extractable.
func TestSignatureTable(t *testing.T) {
	seen := map[Format]bool{}
	for _, s := range signatures {
		assert.False(t, seen[s.format], "duplicate signature for %s", s.name)
		seen[s.format] = true
		assert.NotEqual(t, "unknown", s.format.String())
	}
	for f := Format7z; f <= FormatTar; f++ {
		assert.True(t, seen[f], "format %d has no signature", f)
	}
	assert.True(t, Format7z.Supported())
	assert.True(t, FormatZip.Supported())
	assert.False(t, FormatGzip.Supported())
	assert.False(t, FormatUnknown.Supported())
	assert.Equal(t, "unknown", FormatUnknown.String())
}

func TestDetect(t *testing.T) {
	p := filepath.Join(t.TempDir(), "short.bin")
	require.NoError(t, os.WriteFile(p, []byte{0x1F, 0x8B}, 0o644))
	f, err := Detect(p)
	require.NoError(t, err)
	assert.Equal(t, FormatGzip, f)

	_, err = Detect(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}
