package engine

import (
	"sort"

	"github.com/shopspring/decimal"

	"costboard/internal/core"
)

// Year comparisons put the months 1..through of year next to the same
// months of the year before. through outside 1..12 means the whole year.

func inYear(p core.Period, year, through int) bool {
	if through < 1 || through > 12 {
		through = 12
	}
	return p.Year() == year && p.Month() <= through
}

// yearRollup groups the records kept by keep into current and prior year
// totals per key.
func (e *Engine) yearRollup(year, through int, key func(core.CostRecord) string, keep func(core.CostRecord) bool) (cur, prior *rollup) {
	cur, prior = newRollup(), newRollup()
	for _, r := range e.records {
		if !keep(r) {
			continue
		}
		k := key(r)
		if core.IsUnset(k) {
			continue
		}
		switch {
		case inYear(r.Period, year, through):
			cur.add(k, r.Amount)
		case inYear(r.Period, year-1, through):
			prior.add(k, r.Amount)
		}
	}
	return cur, prior
}

// union lists the keys of a then the keys only in b, each in first-seen order.
func union(a, b *rollup) []string {
	out := append([]string(nil), a.order...)
	for _, k := range b.order {
		if _, ok := a.totals[k]; !ok {
			out = append(out, k)
		}
	}
	return out
}

func sortByCurrent(rows []core.YearAmounts) {
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Current.GreaterThan(rows[j].Current) })
}

func yearRow(name string, cur, prior decimal.Decimal) core.YearAmounts {
	return core.YearAmounts{Name: name, Current: cur, Prior: prior, ChangePct: PercentChange(cur, prior)}
}

// CategoryYearComparison compares each major category across the two years,
// largest current amount first.
func (e *Engine) CategoryYearComparison(year, through int) []core.YearAmounts {
	cur, prior := e.yearRollup(year, through,
		func(r core.CostRecord) string { return r.Major },
		func(core.CostRecord) bool { return true })
	var out []core.YearAmounts
	for _, k := range union(cur, prior) {
		out = append(out, yearRow(k, cur.get(k), prior.get(k)))
	}
	sortByCurrent(out)
	return out
}

// SubCategoryYearComparison compares the subcategories of one category,
// including those present in only one of the two years.
func (e *Engine) SubCategoryYearComparison(category string, year, through int) []core.YearAmounts {
	cur, prior := e.yearRollup(year, through,
		func(r core.CostRecord) string { return r.Sub },
		func(r core.CostRecord) bool { return r.Major == category })
	var out []core.YearAmounts
	for _, k := range union(cur, prior) {
		out = append(out, yearRow(k, cur.get(k), prior.get(k)))
	}
	sortByCurrent(out)
	return out
}

// DivisionYearComparison compares divisions within category ("" or "all"
// for every category). Net negative totals are shown as zero and divisions
// at zero in both years are dropped.
func (e *Engine) DivisionYearComparison(category string, year, through int) []core.YearAmounts {
	f := core.Filter{Category: category}
	cur, prior := e.yearRollup(year, through,
		func(r core.CostRecord) string { return r.Division },
		func(r core.CostRecord) bool { return f.AllCategories() || r.Major == category })
	var out []core.YearAmounts
	for _, k := range union(cur, prior) {
		c := decimal.Max(cur.get(k), decimal.Zero)
		p := decimal.Max(prior.get(k), decimal.Zero)
		if c.IsZero() && p.IsZero() {
			continue
		}
		out = append(out, yearRow(k, c, p))
	}
	sortByCurrent(out)
	return out
}
