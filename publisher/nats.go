// Package publisher announces finished feature tables on NATS.
package publisher

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/theoremus-urban-solutions/gtfsrt-delay-features/features"
	"github.com/theoremus-urban-solutions/gtfsrt-delay-features/internal/logging"
)

type Metrics interface {
	NATSPublishedInc()
	NATSPublishErrInc()
	NATSSetConnected(connected bool)
}

// Conn is the part of *nats.Conn the publisher uses.
type Conn interface {
	Publish(subject string, data []byte) error
	Drain() error
	Close()
}

type NATSPublisher struct {
	nc      Conn
	prefix  string
	metrics Metrics
}

func NewNATSPublisher(url, subjectPrefix string, m Metrics) (*NATSPublisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("gtfsrt-delay-features"),
		nats.DisconnectHandler(func(_ *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(false)
			}
			logging.Logf("nats disconnected")
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(true)
			}
			logging.Logf("nats reconnected")
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(false)
			}
			logging.Logf("nats closed")
		}),
	)
	if err != nil {
		return nil, err
	}
	if m != nil {
		m.NATSSetConnected(true)
	}
	return NewWithConn(nc, subjectPrefix, m), nil
}

// NewWithConn wraps an existing connection.
func NewWithConn(nc Conn, subjectPrefix string, m Metrics) *NATSPublisher {
	return &NATSPublisher{nc: nc, prefix: subjectPrefix, metrics: m}
}

func (p *NATSPublisher) Close() {
	if p.nc != nil {
		_ = p.nc.Drain()
		p.nc.Close()
	}
}

// FeatureTableMessage announces one written feature table.
type FeatureTableMessage struct {
	RunID       string                `json:"runId"`
	Operator    string                `json:"operator"`
	Date        string                `json:"date"`
	Sink        string                `json:"sink"`
	GeneratedAt time.Time             `json:"generatedAt"`
	Rows        []features.FeatureRow `json:"rows"`
}

// Subject returns the subject used for operator.
func (p *NATSPublisher) Subject(operator string) string {
	return fmt.Sprintf("%s.%s", p.prefix, subjectToken(operator))
}

func (p *NATSPublisher) PublishFeatures(msg FeatureTableMessage) error {
	subject := p.Subject(msg.Operator)
	b, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	err = p.nc.Publish(subject, b)
	if p.metrics != nil {
		if err != nil {
			p.metrics.NATSPublishErrInc()
		} else {
			p.metrics.NATSPublishedInc()
		}
	}
	if err == nil {
		logging.Logf("nats publish subject=%s rows=%d", subject, len(msg.Rows))
	}
	return err
}

func subjectToken(s string) string {
	s = strings.TrimSpace(s)
	// NATS token cannot contain spaces, '>', '*', or trailing '.'
	repl := strings.NewReplacer(" ", "_", ".", "_", ">", "_", "*", "_", "/", "_", "\t", "_")
	s = repl.Replace(s)
	if s == "" {
		s = "_"
	}
	return s
}
