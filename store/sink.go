package store

import (
	"context"
	"fmt"

	"github.com/theoremus-urban-solutions/gtfsrt-delay-features/features"
	"github.com/theoremus-urban-solutions/gtfsrt-delay-features/internal/logging"
)

// Sink receives the feature table of one (operator, date). Write returns a
// description of where the rows landed.
type Sink interface {
	Name() string
	Write(ctx context.Context, operator, date string, rows []features.FeatureRow) (string, error)
}

// FallbackMetrics counts writes diverted to the fallback.
type FallbackMetrics interface {
	SinkFallback()
}

// FallbackSink writes to primary and, when that fails, to fallback.
type FallbackSink struct {
	primary  Sink
	fallback Sink
	metrics  FallbackMetrics
}

func NewFallbackSink(primary, fallback Sink, m FallbackMetrics) *FallbackSink {
	return &FallbackSink{primary: primary, fallback: fallback, metrics: m}
}

func (s *FallbackSink) Name() string {
	return s.primary.Name() + "+" + s.fallback.Name()
}

func (s *FallbackSink) Write(ctx context.Context, operator, date string, rows []features.FeatureRow) (string, error) {
	where, err := s.primary.Write(ctx, operator, date, rows)
	if err == nil {
		return where, nil
	}
	logging.Logf("Warning: %s sink failed for %s %s, writing to %s: %v", s.primary.Name(), operator, date, s.fallback.Name(), err)
	if s.metrics != nil {
		s.metrics.SinkFallback()
	}
	where, ferr := s.fallback.Write(ctx, operator, date, rows)
	if ferr != nil {
		return "", fmt.Errorf("%s sink: %v; %s sink: %w", s.primary.Name(), err, s.fallback.Name(), ferr)
	}
	return where, nil
}
