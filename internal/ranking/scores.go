// Package ranking computes the per-sort rank scores of a thing. All formulas
// negate the underlying goodness so that ascending order puts the best entry
// first.
package ranking

import "math"

// Sort names, also the trailing path segment of listing souls.
const (
	SortNew           = "new"
	SortActive        = "active"
	SortTop           = "top"
	SortHot           = "hot"
	SortBest          = "best"
	SortDiscussed     = "discussed"
	SortControversial = "controversial"
)

// SortNames lists every sort computed on each update.
var SortNames = []string{
	SortNew,
	SortActive,
	SortTop,
	SortHot,
	SortBest,
	SortDiscussed,
	SortControversial,
}

// rankEpoch is the fixed reference epoch (seconds) the time-decaying sorts
// offset against.
const rankEpoch = 1134028003

// wilsonZ is the z-value for an 80% confidence interval.
const wilsonZ = 1.281551565545

// Aggregate is the per-thing state the formulas read.
type Aggregate struct {
	Created int64 // creation time, milliseconds
	Updated int64 // last activity time, milliseconds
	Up      int
	Down    int
	Comment int
}

// Scores computes every sort score for the aggregate. Timestamps are capped
// to now so future-dated things cannot outrank honest ones.
func Scores(a Aggregate, now int64) map[string]float64 {
	return map[string]float64{
		SortNew:           -float64(min(a.Created, now)),
		SortActive:        -float64(min(a.Updated, now)),
		SortTop:           -float64(a.Up - a.Down),
		SortHot:           hot(a, now),
		SortBest:          best(a),
		SortDiscussed:     discussed(a, now),
		SortControversial: controversial(a),
	}
}

func discussed(a Aggregate, now int64) float64 {
	ts := min(a.Created, now)
	seconds := float64(ts)/1000 - rankEpoch

	if a.Comment == 0 {
		return 1e9 - seconds
	}

	order := math.Log10(math.Max(math.Abs(float64(a.Comment)), 1))
	return -(order + seconds/45000)
}

func hot(a Aggregate, now int64) float64 {
	ts := min(a.Created, now)
	score := a.Up - a.Down
	seconds := float64(ts)/1000 - rankEpoch
	order := math.Log10(math.Max(math.Abs(float64(score)), 1))

	var sign float64
	switch {
	case score > 0:
		sign = 1
	case score < 0:
		sign = -1
	}

	return -(sign*order + seconds/45000)
}

func best(a Aggregate) float64 {
	ups := float64(a.Up)
	downs := float64(a.Down)
	n := ups + downs
	if n == 0 {
		return 0
	}

	p := ups / n
	left := p + (1/(2*n))*wilsonZ*wilsonZ
	right := wilsonZ * math.Sqrt(p*(1-p)/n+wilsonZ*wilsonZ/(4*n*n))
	under := 1 + (1/n)*wilsonZ*wilsonZ

	return -((left - right) / under)
}

func controversial(a Aggregate) float64 {
	if a.Up <= 0 || a.Down <= 0 {
		return 0
	}

	magnitude := float64(a.Up + a.Down)
	var balance float64
	if a.Up > a.Down {
		balance = float64(a.Down) / float64(a.Up)
	} else {
		balance = float64(a.Up) / float64(a.Down)
	}

	return -math.Pow(magnitude, balance)
}
