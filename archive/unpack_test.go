package archive

import (
	"archive/zip"
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeZip(t *testing.T, path string, files map[string]string) {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

func TestUnpack_Zip(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "otraf_static_2024_01_15.7z")
	writeZip(t, src, map[string]string{
		"trips.txt":         "route_id,service_id,trip_id\nR1,S1,T1\n",
		"nested/routes.txt": "route_id,route_type\nR1,700\n",
	})

	out, err := Unpack(src, filepath.Join(dir, "extract"), false)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "extract", "otraf_static_2024_01_15"), out)

	got, err := os.ReadFile(filepath.Join(out, "nested", "routes.txt"))
	require.NoError(t, err)
	assert.Equal(t, "route_id,route_type\nR1,700\n", string(got))
	assert.FileExists(t, src, "archive is kept unless removal is requested")

	entries, err := os.ReadDir(filepath.Join(dir, "extract"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary directory must not survive")
}

// copyFixture places a checked-in archive under dir with the given name.
func copyFixture(t *testing.T, fixture, dir, name string) string {
	t.Helper()
	body, err := os.ReadFile(filepath.Join("testdata", fixture))
	require.NoError(t, err)
	dst := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(dst, body, 0o644))
	return dst
}

// testdata/gtfs_static.7z is an LZMA2 archive holding trips.txt and
// nested/routes.txt.
func TestUnpack_7z(t *testing.T) {
	dir := t.TempDir()
	src := copyFixture(t, "gtfs_static.7z", dir, "otraf_realtime_2024_01_15.7z")

	format, err := Detect(src)
	require.NoError(t, err)
	assert.Equal(t, Format7z, format)

	out, err := Unpack(src, filepath.Join(dir, "extract"), false)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "extract", "otraf_realtime_2024_01_15"), out)

	trips, err := os.ReadFile(filepath.Join(out, "trips.txt"))
	require.NoError(t, err)
	assert.Equal(t, "route_id,service_id,trip_id\nR1,S1,T1\n", string(trips))
	routes, err := os.ReadFile(filepath.Join(out, "nested", "routes.txt"))
	require.NoError(t, err)
	assert.Equal(t, "route_id,route_type\nR1,700\n", string(routes))
	assert.FileExists(t, src)

	entries, err := os.ReadDir(filepath.Join(dir, "extract"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary directory must not survive")

	// A second call finds the output directory and leaves it alone.
	require.NoError(t, os.WriteFile(filepath.Join(out, "trips.txt"), []byte("edited"), 0o644))
	again, err := Unpack(src, filepath.Join(dir, "extract"), false)
	require.NoError(t, err)
	assert.Equal(t, out, again)
	trips, err = os.ReadFile(filepath.Join(again, "trips.txt"))
	require.NoError(t, err)
	assert.Equal(t, "edited", string(trips))
}

func TestUnpack_Idempotent(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "feed.zip")
	writeZip(t, src, map[string]string{"stops.txt": "stop_id\nS1\n"})

	out, err := Unpack(src, dir, false)
	require.NoError(t, err)
	first, err := os.ReadFile(filepath.Join(out, "stops.txt"))
	require.NoError(t, err)

	// A different archive under the same name must not be re-extracted.
	writeZip(t, src, map[string]string{"stops.txt": "stop_id\nS2\n"})
	again, err := Unpack(src, dir, false)
	require.NoError(t, err)
	assert.Equal(t, out, again)
	second, err := os.ReadFile(filepath.Join(again, "stops.txt"))
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestUnpack_RemoveArchive(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "feed.zip")
	writeZip(t, src, map[string]string{"agency.txt": "agency_id\nA\n"})

	_, err := Unpack(src, filepath.Join(dir, "out"), true)
	require.NoError(t, err)
	assert.NoFileExists(t, src)
}

func TestUnpack_Unsupported(t *testing.T) {
	tests := []struct {
		name string
		body []byte
	}{
		{name: "gzip", body: []byte{0x1F, 0x8B, 0x08, 0x00}},
		{name: "unknown", body: []byte("not an archive at all")},
		{name: "empty", body: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			src := filepath.Join(dir, "payload.7z")
			require.NoError(t, os.WriteFile(src, tt.body, 0o644))

			_, err := Unpack(src, filepath.Join(dir, "out"), false)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrUnsupportedFormat))
			assert.NoDirExists(t, filepath.Join(dir, "out", "payload"))
		})
	}
}

func TestUnpack_RejectsEscapingEntries(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "evil.zip")
	writeZip(t, src, map[string]string{"../escaped.txt": "x"})

	_, err := Unpack(src, filepath.Join(dir, "out"), false)
	require.Error(t, err)
	assert.NoFileExists(t, filepath.Join(dir, "escaped.txt"))
	assert.NoDirExists(t, filepath.Join(dir, "out", "evil"))
}
