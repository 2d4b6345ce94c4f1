package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/theoremus-urban-solutions/gtfsrt-delay-features/internal/logging"
	"github.com/theoremus-urban-solutions/gtfsrt-delay-features/utils"
)

// DayOutcome is one line of a backfill summary.
type DayOutcome struct {
	Date   string
	Kind   Kind
	Reason string
	Rows   int
}

// Summary aggregates a backfill.
type Summary struct {
	Total   int
	OK      int
	Skipped int
	Fatal   int
	Resumed int
	Rows    int
	Days    []DayOutcome
}

func (s *Summary) add(date string, res Result) {
	s.Days = append(s.Days, DayOutcome{Date: date, Kind: res.Kind, Reason: res.Reason, Rows: len(res.Rows)})
	switch res.Kind {
	case KindOK:
		s.OK++
		s.Rows += len(res.Rows)
	case KindSkip:
		s.Skipped++
	default:
		s.Fatal++
	}
}

// Backfill runs every stride-th day from start to end in historical mode.
// Skipped and failed days are logged and the loop moves on, unless
// abort_on_fatal is set. Days the ledger already holds as ok are not rerun
// unless the pipeline was built with Force.
func (p *Pipeline) Backfill(ctx context.Context, operator, start, end string, stride int) (Summary, error) {
	dates, err := utils.DateRange(start, end, stride)
	if err != nil {
		return Summary{}, err
	}
	summary := Summary{Total: len(dates)}
	began := time.Now()
	logging.Logf("Backfill %s: %d days from %s to %s (stride %d)", operator, len(dates), start, end, stride)

	for i, date := range dates {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		if p.ledger != nil && !p.force {
			done, err := p.ledger.Completed(ctx, string(ModeHistorical), operator, date)
			if err != nil {
				logging.Logf("Warning: %v", err)
			} else if done {
				summary.Resumed++
				logging.Logf("Backfill %s: %s already completed", operator, date)
				continue
			}
		}

		res := p.RunDay(ctx, ModeHistorical, operator, date)
		summary.add(date, res)

		elapsed := time.Since(began)
		remaining := len(dates) - i - 1
		eta := time.Duration(float64(elapsed) / float64(i+1) * float64(remaining))
		logging.Logf("Backfill %s: %d/%d done (%s), elapsed %s, eta %s",
			operator, i+1, len(dates), res.Kind, elapsed.Round(time.Second), eta.Round(time.Second))

		if res.Kind == KindFatal && p.cfg.Backfill.AbortOnFatal {
			return summary, fmt.Errorf("backfill aborted at %s: %w", date, res.Err)
		}
	}
	logging.Logf("Backfill %s finished: %d ok, %d skipped, %d failed, %d already done, %d rows",
		operator, summary.OK, summary.Skipped, summary.Fatal, summary.Resumed, summary.Rows)
	return summary, nil
}
