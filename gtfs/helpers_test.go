package gtfs

import (
	"archive/zip"
	"bytes"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/require"
)

// zipFS builds an in-memory GTFS archive from file name → contents.
func zipFS(t *testing.T, files map[string]string) fs.FS {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, body := range files {
		f, err := w.Create(name)
		require.NoError(t, err)
		_, err = f.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	r, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	return r
}

var sampleFeed = map[string]string{
	"feed/routes.txt": "\ufeffroute_id,route_short_name,route_type\n" +
		"R1,1,700\n" +
		"R2,2,100\n" +
		"R3,3,9999\n" +
		"BAD,4,notanumber\n",
	"feed/trips.txt": "route_id,service_id,trip_id,trip_headsign\n" +
		"R1,S,T1,Centrum\n" +
		"R1,S,T1,Duplicate\n" +
		"R2,S,T2,Norrköping\n" +
		"R3,S,T3,Depot\n" +
		"RX,S,T4,Nowhere\n",
	"feed/stops.txt": "stop_id,stop_name,stop_lat,stop_lon\n" +
		"S1,Resecentrum,58.4164,15.6253\n" +
		"S2,Broken,123.0,15.0\n",
	"feed/stop_times.txt": "trip_id,arrival_time,departure_time,stop_id,stop_sequence\n" +
		"T1,08:05:00,08:05:30,S1,1\n" +
		"T1,08:55:00,08:55:30,S2,2\n" +
		"T1,10:10:00,10:10:30,S1,3\n" +
		"T2,09:00:00,09:00:00,S1,1\n" +
		"T2,24:10:00,24:10:00,S2,2\n" +
		"T2,,,S2,3\n" +
		"T4,08:00:00,08:00:00,S1,1\n",
	"agency.txt": "agency_id,agency_name\nA,Östgötatrafiken\n",
}
