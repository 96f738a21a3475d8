package engine

import (
	"sort"

	"github.com/shopspring/decimal"

	"costboard/internal/core"
)

// rollup sums amounts per key in first-seen key order.
type rollup struct {
	order  []string
	totals map[string]decimal.Decimal
}

func newRollup() *rollup {
	return &rollup{totals: make(map[string]decimal.Decimal)}
}

func (ru *rollup) add(key string, amount decimal.Decimal) {
	cur, ok := ru.totals[key]
	if !ok {
		ru.order = append(ru.order, key)
		ru.totals[key] = amount
		return
	}
	ru.totals[key] = cur.Add(amount)
}

func (ru *rollup) get(key string) decimal.Decimal {
	if v, ok := ru.totals[key]; ok {
		return v
	}
	return decimal.Zero
}

// top returns the rollup sorted by amount descending, ties in first-seen
// order, truncated to n entries when n > 0.
func (ru *rollup) top(n int) []core.CategoryAmount {
	out := make([]core.CategoryAmount, 0, len(ru.order))
	for _, k := range ru.order {
		out = append(out, core.CategoryAmount{Name: k, Amount: ru.totals[k]})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Amount.GreaterThan(out[j].Amount) })
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

func (e *Engine) rank(f core.Filter, key func(core.CostRecord) string, n int) []core.CategoryAmount {
	ru := newRollup()
	for _, r := range e.records {
		if f.MatchesMonth(r) {
			ru.add(key(r), r.Amount)
		}
	}
	return ru.top(n)
}

// DepartmentRanking rolls the selected month up by division, largest first.
func (e *Engine) DepartmentRanking(f core.Filter) []core.CategoryAmount {
	return e.rank(f, func(r core.CostRecord) string { return r.Division }, e.cfg.TopDepartments)
}

// TeamRanking rolls the selected month up by team, largest first.
func (e *Engine) TeamRanking(f core.Filter) []core.CategoryAmount {
	return e.rank(f, func(r core.CostRecord) string { return r.Team }, e.cfg.TopTeams)
}

// AccountRanking rolls the selected month up by account item, largest first.
func (e *Engine) AccountRanking(f core.Filter) []core.CategoryAmount {
	return e.rank(f, func(r core.CostRecord) string { return r.Account }, e.cfg.TopAccounts)
}

// CategoryTotals sums each assigned major category under the month and
// department filters, in display order.
func (e *Engine) CategoryTotals(f core.Filter) []core.CategoryAmount {
	ru := newRollup()
	for _, r := range e.records {
		if f.MatchesMonth(r) && f.MatchesDepartment(r) && !core.IsUnset(r.Major) {
			ru.add(r.Major, r.Amount)
		}
	}
	categories := e.Categories()
	out := make([]core.CategoryAmount, 0, len(categories))
	for _, c := range categories {
		if _, ok := ru.totals[c]; ok {
			out = append(out, core.CategoryAmount{Name: c, Amount: ru.totals[c]})
		}
	}
	return out
}

// GrandTotal sums every record under the month and department filters.
func (e *Engine) GrandTotal(f core.Filter) decimal.Decimal {
	return e.sum(func(r core.CostRecord) bool { return f.MatchesMonth(r) && f.MatchesDepartment(r) })
}

// Reconcile checks that the category totals plus the records without a
// category add up to the independently summed grand total.
func (e *Engine) Reconcile(f core.Filter) Reconciliation {
	categorySum := decimal.Zero
	for _, c := range e.CategoryTotals(f) {
		categorySum = categorySum.Add(c.Amount)
	}
	unassigned := e.sum(func(r core.CostRecord) bool {
		return f.MatchesMonth(r) && f.MatchesDepartment(r) && core.IsUnset(r.Major)
	})
	grand := e.GrandTotal(f)
	diff := grand.Sub(categorySum).Sub(unassigned)
	return Reconciliation{
		GrandTotal:  grand,
		CategorySum: categorySum,
		Unassigned:  unassigned,
		Difference:  diff,
		Balanced:    diff.IsZero(),
	}
}
