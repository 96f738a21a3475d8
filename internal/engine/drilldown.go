package engine

import (
	"slices"

	"github.com/shopspring/decimal"

	"costboard/internal/core"
)

// YTDWindow returns [Y01..m] and the aligned [(Y-1)01..(Y-1)MM].
func YTDWindow(m core.Period) (current, prior []core.Period) {
	year, month := m.Year(), m.Month()
	current = make([]core.Period, 0, month)
	prior = make([]core.Period, 0, month)
	for i := 1; i <= month; i++ {
		current = append(current, core.NewPeriod(year, i))
		prior = append(prior, core.NewPeriod(year-1, i))
	}
	return current, prior
}

// window is a YTD period set for membership checks.
type window map[core.Period]struct{}

func newWindow(periods []core.Period) window {
	w := make(window, len(periods))
	for _, p := range periods {
		w[p] = struct{}{}
	}
	return w
}

func (w window) has(p core.Period) bool {
	_, ok := w[p]
	return ok
}

// YTD sums every record in the current and prior year-to-date windows of the
// selected (or reference) month.
func (e *Engine) YTD(f core.Filter) YTDSummary {
	m := e.CurrentMonth(f)
	curWin, priorWin := YTDWindow(m)
	cw, pw := newWindow(curWin), newWindow(priorWin)
	current := e.sum(func(r core.CostRecord) bool { return cw.has(r.Period) })
	prior := e.sum(func(r core.CostRecord) bool { return pw.has(r.Period) })
	return YTDSummary{
		Month:         m,
		CurrentWindow: curWin,
		PriorWindow:   priorWin,
		Comparison:    compare(current, prior),
	}
}

// bucket accumulates the four drill-down amounts of one row.
type bucket struct {
	monthlyCurrent, monthlyPrior decimal.Decimal
	ytdCurrent, ytdPrior         decimal.Decimal
}

func (b *bucket) add(r core.CostRecord, month, priorMonth core.Period, cw, pw window) {
	if r.Period == month {
		b.monthlyCurrent = b.monthlyCurrent.Add(r.Amount)
	}
	if r.Period == priorMonth {
		b.monthlyPrior = b.monthlyPrior.Add(r.Amount)
	}
	if cw.has(r.Period) {
		b.ytdCurrent = b.ytdCurrent.Add(r.Amount)
	}
	if pw.has(r.Period) {
		b.ytdPrior = b.ytdPrior.Add(r.Amount)
	}
}

func (b *bucket) row(name string) DrillRow {
	return DrillRow{
		Name:    name,
		Monthly: compare(b.monthlyCurrent, b.monthlyPrior),
		YTD:     compare(b.ytdCurrent, b.ytdPrior),
	}
}

// DrillDown builds the category -> subcategory table for the selected (or
// reference) month and its year-to-date window, in percent-change form.
// Subcategory rows are seeded only by subcategories present in the current
// month or the current YTD window, in first-seen order; the amount the
// children do not cover is reported as the category's residual. The
// department and category filters do not apply.
func (e *Engine) DrillDown(f core.Filter) []DrillRow {
	month := e.CurrentMonth(f)
	priorMonth := month.PriorYear()
	curWin, priorWin := YTDWindow(month)
	cw, pw := newWindow(curWin), newWindow(priorWin)

	type group struct {
		total    bucket
		subs     map[string]*bucket
		subOrder []string
	}
	groups := make(map[string]*group)
	for _, r := range e.records {
		if core.IsUnset(r.Major) {
			continue
		}
		g, ok := groups[r.Major]
		if !ok {
			g = &group{subs: make(map[string]*bucket)}
			groups[r.Major] = g
		}
		g.total.add(r, month, priorMonth, cw, pw)
		if core.IsUnset(r.Sub) {
			continue
		}
		sb, ok := g.subs[r.Sub]
		if !ok {
			sb = &bucket{}
			g.subs[r.Sub] = sb
		}
		sb.add(r, month, priorMonth, cw, pw)
	}
	// Seed children from the current month first, then the rest of the
	// current YTD window.
	for _, seed := range []func(core.Period) bool{
		func(p core.Period) bool { return p == month },
		cw.has,
	} {
		for _, r := range e.records {
			if core.IsUnset(r.Major) || core.IsUnset(r.Sub) || !seed(r.Period) {
				continue
			}
			if g := groups[r.Major]; !slices.Contains(g.subOrder, r.Sub) {
				g.subOrder = append(g.subOrder, r.Sub)
			}
		}
	}

	categories := e.Categories()
	rows := make([]DrillRow, 0, len(categories))
	for _, name := range categories {
		g := groups[name]
		row := g.total.row(name)
		residual := Residual{
			MonthlyCurrent: g.total.monthlyCurrent,
			MonthlyPrior:   g.total.monthlyPrior,
			YTDCurrent:     g.total.ytdCurrent,
			YTDPrior:       g.total.ytdPrior,
		}
		for _, sub := range g.subOrder {
			sb := g.subs[sub]
			row.Children = append(row.Children, sb.row(sub))
			residual.MonthlyCurrent = residual.MonthlyCurrent.Sub(sb.monthlyCurrent)
			residual.MonthlyPrior = residual.MonthlyPrior.Sub(sb.monthlyPrior)
			residual.YTDCurrent = residual.YTDCurrent.Sub(sb.ytdCurrent)
			residual.YTDPrior = residual.YTDPrior.Sub(sb.ytdPrior)
		}
		if !residual.isZero() {
			row.Residual = &residual
		}
		rows = append(rows, row)
	}
	return rows
}
