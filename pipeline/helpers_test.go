package pipeline

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	gtfsrtpb "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"

	"github.com/theoremus-urban-solutions/gtfsrt-delay-features/cache"
	"github.com/theoremus-urban-solutions/gtfsrt-delay-features/config"
	"github.com/theoremus-urban-solutions/gtfsrt-delay-features/internal/logging"
	"github.com/theoremus-urban-solutions/gtfsrt-delay-features/ledger"
	"github.com/theoremus-urban-solutions/gtfsrt-delay-features/publisher"
	"github.com/theoremus-urban-solutions/gtfsrt-delay-features/store"
)

// 2024-01-15T08:00:00Z
const base int64 = 1705305600

const apiKey = "secret"

func quiet(t *testing.T) {
	t.Helper()
	prev := logging.Logf
	logging.SetLogger(nil)
	t.Cleanup(func() { logging.Logf = prev })
}

func zipBytes(t *testing.T, files map[string][]byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write(body)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

// staticArchive is a two trip schedule: A is a bus in hour 8, B a train in
// hour 9, five stops each.
func staticArchive(t *testing.T) []byte {
	var stopTimes strings.Builder
	stopTimes.WriteString("trip_id,arrival_time,departure_time,stop_id,stop_sequence\n")
	for i := 0; i < 5; i++ {
		fmt.Fprintf(&stopTimes, "A,08:%02d:00,08:%02d:00,A%d,%d\n", i*5, i*5, i+1, i+1)
		fmt.Fprintf(&stopTimes, "B,09:%02d:00,09:%02d:00,B%d,%d\n", i*5, i*5, i+1, i+1)
	}
	var stops strings.Builder
	stops.WriteString("stop_id,stop_name,stop_lat,stop_lon\n")
	for i := 1; i <= 5; i++ {
		fmt.Fprintf(&stops, "A%d,Bus stop %d,58.41,15.6%d\n", i, i, i)
		fmt.Fprintf(&stops, "B%d,Station %d,58.59,16.1%d\n", i, i, i)
	}
	return zipBytes(t, map[string][]byte{
		"routes.txt":     []byte("route_id,route_short_name,route_type\nR700,12,700\nR100,IC,100\n"),
		"trips.txt":      []byte("route_id,service_id,trip_id\nR700,S,A\nR100,S,B\n"),
		"stops.txt":      []byte(stops.String()),
		"stop_times.txt": []byte(stopTimes.String()),
	})
}

type stop struct {
	seq      uint32
	at       int64
	arrDelay int32
	depDelay int32
}

func tripEntity(id, tripID string, ts uint64, stops ...stop) *gtfsrtpb.FeedEntity {
	tu := &gtfsrtpb.TripUpdate{
		Trip:      &gtfsrtpb.TripDescriptor{TripId: proto.String(tripID), StartDate: proto.String("20240115")},
		Timestamp: proto.Uint64(ts),
	}
	for _, s := range stops {
		tu.StopTimeUpdate = append(tu.StopTimeUpdate, &gtfsrtpb.TripUpdate_StopTimeUpdate{
			StopSequence: proto.Uint32(s.seq),
			StopId:       proto.String(fmt.Sprintf("%s%d", tripID, s.seq)),
			Arrival:      &gtfsrtpb.TripUpdate_StopTimeEvent{Delay: proto.Int32(s.arrDelay), Time: proto.Int64(s.at)},
			Departure:    &gtfsrtpb.TripUpdate_StopTimeEvent{Delay: proto.Int32(s.depDelay), Time: proto.Int64(s.at + 30)},
		})
	}
	return &gtfsrtpb.FeedEntity{Id: proto.String(id), TripUpdate: tu}
}

func feedBytes(t *testing.T, entities ...*gtfsrtpb.FeedEntity) []byte {
	t.Helper()
	b, err := proto.Marshal(&gtfsrtpb.FeedMessage{
		Header: &gtfsrtpb.FeedHeader{GtfsRealtimeVersion: proto.String("2.0"), Timestamp: proto.Uint64(uint64(base))},
		Entity: entities,
	})
	require.NoError(t, err)
	return b
}

func tripA() *gtfsrtpb.FeedEntity {
	return tripEntity("1", "A", uint64(base+1300),
		stop{1, base, 60, 70},
		stop{2, base + 300, 120, 130},
		stop{3, base + 600, 90, 100},
		stop{4, base + 900, 240, 250},
		stop{5, base + 1200, 360, 370},
	)
}

func tripB() *gtfsrtpb.FeedEntity {
	h9 := base + 3600
	return tripEntity("2", "B", uint64(h9+1300),
		stop{1, h9, -200, -190},
		stop{2, h9 + 300, 0, 10},
		stop{3, h9 + 600, 300, 310},
		stop{4, h9 + 900, 301, 311},
		stop{5, h9 + 1200, 30, 40},
	)
}

// historicalArchive lays snapshots out the way day archives do.
func historicalArchive(t *testing.T) []byte {
	return zipBytes(t, map[string][]byte{
		"otraf/TripUpdates/2024/01/15/08/otraf-tu-0800.pb": feedBytes(t, tripA()),
		"otraf/TripUpdates/2024/01/15/09/otraf-tu-0900.pb": feedBytes(t, tripB()),
	})
}

// upstream serves a regional and a KoDa-like API. KoDa realtime archives are
// looked up by the date query parameter; unknown dates are rejected.
type upstream struct {
	srv *httptest.Server

	mu       sync.Mutex
	hits     map[string]int
	static   []byte
	live     []byte
	archives map[string][]byte
}

func newUpstream(t *testing.T) *upstream {
	u := &upstream{
		hits:     map[string]int{},
		static:   staticArchive(t),
		live:     feedBytes(t, tripA(), tripB()),
		archives: map[string][]byte{"2024-01-15": historicalArchive(t)},
	}
	u.srv = httptest.NewServer(http.HandlerFunc(u.serve))
	t.Cleanup(u.srv.Close)
	return u
}

func (u *upstream) serve(w http.ResponseWriter, r *http.Request) {
	u.mu.Lock()
	u.hits[r.URL.Path]++
	archive, ok := u.archives[r.URL.Query().Get("date")]
	u.mu.Unlock()

	if r.URL.Query().Get("key") != apiKey {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	switch {
	case strings.HasPrefix(r.URL.Path, "/static/"), strings.HasPrefix(r.URL.Path, "/koda/static/"):
		_, _ = w.Write(u.static)
	case r.URL.Path == "/rt/otraf/TripUpdates.pb":
		_, _ = w.Write(u.live)
	case strings.HasPrefix(r.URL.Path, "/koda/rt/"):
		if !ok {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		_, _ = w.Write(archive)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (u *upstream) count(path string) int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.hits[path]
}

func (u *upstream) setLive(b []byte) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.live = b
}

func (u *upstream) setArchive(date string, b []byte) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.archives[date] = b
}

func testConfig(t *testing.T, u *upstream) *config.AppConfig {
	cfg := config.Default()
	cfg.Timezone = "UTC"
	cfg.Workers = 2
	cfg.ForceRT = false
	cfg.Regional.StaticURL = u.srv.URL + "/static/{operator}.zip?key={key}"
	cfg.Regional.RealtimeURL = u.srv.URL + "/rt/{operator}/{feed}.pb?key={key}"
	cfg.KoDa.StaticURL = u.srv.URL + "/koda/static/{operator}?date={date}&key={key}"
	cfg.KoDa.RealtimeURL = u.srv.URL + "/koda/rt/{operator}/{feed}?date={date}&key={key}"
	for _, up := range []*config.UpstreamConfig{&cfg.Regional, &cfg.KoDa} {
		up.StaticKey = apiKey
		up.RealtimeKey = apiKey
		up.TimeoutMS = 2000
		up.MaxRetries = 0
		up.PollIntervalMS = 10
		up.MaxPolls = 1
	}
	cfg.Features.LiveWindowMinutes = 20
	cfg.Features.BackfillWindowMinutes = 20
	cfg.Cache.Dir = t.TempDir()
	cfg.Store.OutputDir = t.TempDir()
	return &cfg
}

type fakeNotifier struct {
	err  error
	msgs []publisher.FeatureTableMessage
}

func (n *fakeNotifier) PublishFeatures(msg publisher.FeatureTableMessage) error {
	n.msgs = append(n.msgs, msg)
	return n.err
}

type fakeLedger struct {
	records []ledger.RunRecord
}

func (l *fakeLedger) Record(_ context.Context, rec ledger.RunRecord) (ledger.RunRecord, error) {
	l.records = append(l.records, rec)
	return rec, nil
}

func (l *fakeLedger) Completed(_ context.Context, mode, operator, date string) (bool, error) {
	for _, r := range l.records {
		if r.Mode == mode && r.Operator == operator && r.Date == date && r.Outcome == ledger.OutcomeOK {
			return true, nil
		}
	}
	return false, nil
}

type harness struct {
	cfg      *config.AppConfig
	cache    *cache.Manager
	sink     *store.FileSink
	notifier *fakeNotifier
	ledger   *fakeLedger
}

func newHarness(t *testing.T, cfg *config.AppConfig) *harness {
	t.Helper()
	m, err := cache.New(cfg.Cache.Dir, cache.Options{MemoSize: cfg.Cache.MemoSize})
	require.NoError(t, err)
	return &harness{
		cfg:      cfg,
		cache:    m,
		sink:     store.NewFileSink(cfg.Store.OutputDir),
		notifier: &fakeNotifier{},
		ledger:   &fakeLedger{},
	}
}

func (h *harness) pipeline(t *testing.T, opts Options) *Pipeline {
	t.Helper()
	if opts.Cache == nil {
		opts.Cache = h.cache
	}
	if opts.Sink == nil {
		opts.Sink = h.sink
	}
	if opts.Notifier == nil {
		opts.Notifier = h.notifier
	}
	if opts.Ledger == nil {
		opts.Ledger = h.ledger
	}
	p, err := New(h.cfg, opts)
	require.NoError(t, err)
	return p
}
