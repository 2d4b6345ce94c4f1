package publisher

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theoremus-urban-solutions/gtfsrt-delay-features/features"
	"github.com/theoremus-urban-solutions/gtfsrt-delay-features/internal/logging"
)

type published struct {
	subject string
	data    []byte
}

type fakeConn struct {
	err     error
	msgs    []published
	drained bool
	closed  bool
}

func (c *fakeConn) Publish(subject string, data []byte) error {
	if c.err != nil {
		return c.err
	}
	c.msgs = append(c.msgs, published{subject, data})
	return nil
}

func (c *fakeConn) Drain() error { c.drained = true; return nil }
func (c *fakeConn) Close()       { c.closed = true }

type counts struct{ ok, failed int }

func (c *counts) NATSPublishedInc()     { c.ok++ }
func (c *counts) NATSPublishErrInc()    { c.failed++ }
func (c *counts) NATSSetConnected(bool) {}

func TestSubjectToken(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"otraf", "otraf"},
		{" sl ", "sl"},
		{"a.b", "a_b"},
		{"x>y*z", "x_y_z"},
		{"", "_"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, subjectToken(tt.in), "input %q", tt.in)
	}
}

func TestPublishFeatures(t *testing.T) {
	prev := logging.Logf
	logging.SetLogger(nil)
	t.Cleanup(func() { logging.Logf = prev })

	conn := &fakeConn{}
	var m counts
	p := NewWithConn(conn, "delays.features", &m)

	msg := FeatureTableMessage{
		RunID:       "run-1",
		Operator:    "otraf",
		Date:        "2024-01-15",
		Sink:        "file",
		GeneratedAt: time.Date(2024, 1, 16, 3, 0, 0, 0, time.UTC),
		Rows: []features.FeatureRow{
			{RouteType: 700, ArrivalTimeBin: time.Date(2024, 1, 15, 8, 0, 0, 0, time.UTC), MeanArrivalDelaySeconds: 114},
		},
	}
	require.NoError(t, p.PublishFeatures(msg))
	require.Len(t, conn.msgs, 1)
	assert.Equal(t, "delays.features.otraf", conn.msgs[0].subject)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(conn.msgs[0].data, &decoded))
	assert.Equal(t, "2024-01-15", decoded["date"])
	rows := decoded["rows"].([]interface{})
	require.Len(t, rows, 1)
	assert.Equal(t, 114.0, rows[0].(map[string]interface{})["mean_arrival_delay_seconds"])
	assert.Equal(t, 1, m.ok)

	conn.err = errors.New("nats: connection closed")
	assert.Error(t, p.PublishFeatures(msg))
	assert.Equal(t, 1, m.failed)

	p.Close()
	assert.True(t, conn.drained)
	assert.True(t, conn.closed)
}
