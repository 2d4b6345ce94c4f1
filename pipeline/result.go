package pipeline

import (
	"errors"

	"github.com/theoremus-urban-solutions/gtfsrt-delay-features/features"
	"github.com/theoremus-urban-solutions/gtfsrt-delay-features/gtfs"
	"github.com/theoremus-urban-solutions/gtfsrt-delay-features/gtfsrt"
)

// Kind tags a Result.
type Kind int

const (
	KindOK Kind = iota
	KindSkip
	KindFatal
)

func (k Kind) String() string {
	switch k {
	case KindOK:
		return "ok"
	case KindSkip:
		return "skip"
	default:
		return "fatal"
	}
}

// ErrNoFeatures means every hourly bucket fell below the sample floor.
var ErrNoFeatures = errors.New("no feature rows above the sample floor")

// Result is the outcome of one (operator, date).
type Result struct {
	Kind   Kind
	Rows   []features.FeatureRow
	Reason string
	Err    error

	RunID string
	Sink  string
}

func OK(rows []features.FeatureRow) Result {
	return Result{Kind: KindOK, Rows: rows}
}

func Skip(err error) Result {
	return Result{Kind: KindSkip, Reason: err.Error(), Err: err}
}

func Fatal(err error) Result {
	return Result{Kind: KindFatal, Reason: err.Error(), Err: err}
}

// Classify maps an error to Skip when the day simply has no usable input and
// to Fatal otherwise.
func Classify(err error) Result {
	switch {
	case errors.Is(err, gtfsrt.ErrEmptyFeed),
		errors.Is(err, gtfs.ErrMissingReferenceData),
		errors.Is(err, ErrNoFeatures):
		return Skip(err)
	default:
		return Fatal(err)
	}
}
