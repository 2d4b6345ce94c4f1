package features

import (
	"database/sql"
)

// windowStats are the statistics of one metric over the window ending at a row.
type windowStats struct {
	Mean sql.NullFloat64
	Max  sql.NullFloat64
	Min  sql.NullFloat64
	Var  sql.NullFloat64
}

// moments keeps a running mean and sum of squared deviations (Welford).
type moments struct {
	n    int
	mean float64
	m2   float64
}

func (m *moments) add(x float64) {
	m.n++
	delta := x - m.mean
	m.mean += delta / float64(m.n)
	m.m2 += delta * (x - m.mean)
}

func (m *moments) remove(x float64) {
	if m.n <= 1 {
		*m = moments{}
		return
	}
	m.n--
	delta := x - m.mean
	m.mean -= delta / float64(m.n)
	m.m2 -= delta * (x - m.mean)
}

func (m moments) meanValue() sql.NullFloat64 {
	if m.n == 0 {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: m.mean, Valid: true}
}

// variance is the sample variance, undefined below two observations.
func (m moments) variance() sql.NullFloat64 {
	if m.n < 2 {
		return sql.NullFloat64{}
	}
	v := m.m2 / float64(m.n-1)
	if v < 0 {
		v = 0
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}

// extremum is a monotonic deque of row indexes; the front holds the index of
// the window's max (or min).
type extremum struct {
	idx    []int
	head   int
	better func(a, b float64) bool
}

func newExtremum(better func(a, b float64) bool) *extremum {
	return &extremum{better: better}
}

func (e *extremum) push(i int, values []sql.NullFloat64) {
	x := values[i].Float64
	for len(e.idx) > e.head && !e.better(values[e.idx[len(e.idx)-1]].Float64, x) {
		e.idx = e.idx[:len(e.idx)-1]
	}
	e.idx = append(e.idx, i)
}

func (e *extremum) evict(left int) {
	for e.head < len(e.idx) && e.idx[e.head] < left {
		e.head++
	}
}

func (e *extremum) front(values []sql.NullFloat64) sql.NullFloat64 {
	if e.head >= len(e.idx) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: values[e.idx[e.head]].Float64, Valid: true}
}

// rollTime computes windowStats for every row over the rows j <= i whose time
// lies in (at[i]-window, at[i]]. at must be non-decreasing. Null values are
// skipped; a window without values yields null statistics.
func rollTime(at []int64, values []sql.NullFloat64, window int64) []windowStats {
	out := make([]windowStats, len(values))
	var m moments
	maxq := newExtremum(func(a, b float64) bool { return a > b })
	minq := newExtremum(func(a, b float64) bool { return a < b })

	left := 0
	for i, v := range values {
		if v.Valid {
			m.add(v.Float64)
			maxq.push(i, values)
			minq.push(i, values)
		}
		for at[left] <= at[i]-window {
			if values[left].Valid {
				m.remove(values[left].Float64)
			}
			left++
		}
		maxq.evict(left)
		minq.evict(left)
		out[i] = windowStats{
			Mean: m.meanValue(),
			Max:  maxq.front(values),
			Min:  minq.front(values),
			Var:  m.variance(),
		}
	}
	return out
}

// lagMean returns, for every position, the mean of the n values before it.
// All n must be present; otherwise the result is null.
func lagMean(values []sql.NullFloat64, n int) []sql.NullFloat64 {
	out := make([]sql.NullFloat64, len(values))
	if n <= 0 {
		return out
	}
	for i := n; i < len(values); i++ {
		sum := 0.0
		ok := true
		for _, v := range values[i-n : i] {
			if !v.Valid {
				ok = false
				break
			}
			sum += v.Float64
		}
		if ok {
			out[i] = sql.NullFloat64{Float64: sum / float64(n), Valid: true}
		}
	}
	return out
}
