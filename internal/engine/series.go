package engine

import (
	"github.com/shopspring/decimal"

	"costboard/internal/core"
)

// displayPeriods returns the available periods, or only those of bound's
// year up to bound when bound is set.
func (e *Engine) displayPeriods(bound core.Period) []core.Period {
	all := e.AvailablePeriods()
	if bound.IsZero() {
		return all
	}
	out := make([]core.Period, 0, len(all))
	for _, p := range all {
		if p.Year() == bound.Year() && p <= bound {
			out = append(out, p)
		}
	}
	return out
}

// MonthlySeries returns one point per display period with the department
// filter applied. Each point breaks the total down by category, listing only
// categories with a positive sum; a selected category narrows the breakdown
// to that category alone.
func (e *Engine) MonthlySeries(f core.Filter, bound core.Period) []MonthlyPoint {
	categories := e.Categories()
	if !f.AllCategories() {
		categories = []string{f.Category}
	}

	periods := e.displayPeriods(bound)
	index := make(map[core.Period]int, len(periods))
	points := make([]MonthlyPoint, len(periods))
	byCategory := make([]map[string]decimal.Decimal, len(periods))
	for i, p := range periods {
		index[p] = i
		points[i] = MonthlyPoint{Period: p, Total: decimal.Zero}
		byCategory[i] = make(map[string]decimal.Decimal)
	}

	for _, r := range e.records {
		i, ok := index[r.Period]
		if !ok || !f.MatchesDepartment(r) {
			continue
		}
		points[i].Total = points[i].Total.Add(r.Amount)
		if cur, ok := byCategory[i][r.Major]; ok {
			byCategory[i][r.Major] = cur.Add(r.Amount)
		} else {
			byCategory[i][r.Major] = r.Amount
		}
	}

	for i := range points {
		points[i].Categories = []core.CategoryAmount{}
		for _, c := range categories {
			if amt, ok := byCategory[i][c]; ok && amt.IsPositive() {
				points[i].Categories = append(points[i].Categories, core.CategoryAmount{Name: c, Amount: amt})
			}
		}
	}
	return points
}

// HeadlineYOY compares the selected (or reference) month with the same month
// one year earlier in ratio form. Only the month filter applies.
func (e *Engine) HeadlineYOY(f core.Filter) Headline {
	cur := e.CurrentMonth(f)
	prior := cur.PriorYear()
	current := e.sum(func(r core.CostRecord) bool { return r.Period == cur })
	previous := e.sum(func(r core.CostRecord) bool { return r.Period == prior })
	return Headline{
		Period:      cur,
		PriorPeriod: prior,
		Current:     current,
		Prior:       previous,
		Ratio:       YOYRatio(current, previous),
	}
}

// YOYSeries compares each display month of the current year with the same
// month a year earlier in ratio form, department filter applied.
func (e *Engine) YOYSeries(f core.Filter, bound core.Period) []YOYPoint {
	year := e.CurrentMonth(f).Year()
	var out []YOYPoint
	for _, p := range e.displayPeriods(bound) {
		if p.Year() != year {
			continue
		}
		prior := p.PriorYear()
		current := e.sum(func(r core.CostRecord) bool { return r.Period == p && f.MatchesDepartment(r) })
		previous := e.sum(func(r core.CostRecord) bool { return r.Period == prior && f.MatchesDepartment(r) })
		out = append(out, YOYPoint{
			Period:      p,
			PriorPeriod: prior,
			Current:     current,
			Prior:       previous,
			Ratio:       YOYRatio(current, previous),
		})
	}
	return out
}
