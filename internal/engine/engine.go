// Package engine aggregates a brand's cost records into dashboard views.
//
// An Engine is immutable and every method is a pure function of the records
// and the filter passed in, so one Engine may serve concurrent readers.
package engine

import (
	"slices"

	"github.com/shopspring/decimal"

	"costboard/internal/core"
)

// DefaultReferenceMonth is used when the month filter is open.
const DefaultReferenceMonth core.Period = 202510

type Config struct {
	// ReferenceMonth stands in for the selected month when the month
	// filter is "all".
	ReferenceMonth core.Period
	Order          Order
	TopDepartments int
	TopTeams       int
	TopAccounts    int
}

func DefaultConfig() Config {
	return Config{
		ReferenceMonth: DefaultReferenceMonth,
		Order:          DefaultOrder(),
		TopDepartments: 10,
		TopTeams:       10,
		TopAccounts:    8,
	}
}

type Engine struct {
	records []core.CostRecord
	cfg     Config
}

// New returns an Engine over a private copy of records. Zero-valued config
// fields take their defaults.
func New(records []core.CostRecord, cfg Config) *Engine {
	def := DefaultConfig()
	if cfg.ReferenceMonth.IsZero() {
		cfg.ReferenceMonth = def.ReferenceMonth
	}
	if cfg.Order.rank == nil {
		cfg.Order = def.Order
	}
	if cfg.TopDepartments == 0 {
		cfg.TopDepartments = def.TopDepartments
	}
	if cfg.TopTeams == 0 {
		cfg.TopTeams = def.TopTeams
	}
	if cfg.TopAccounts == 0 {
		cfg.TopAccounts = def.TopAccounts
	}
	return &Engine{records: slices.Clone(records), cfg: cfg}
}

// ForBrand keeps the records whose brand column equals name. The column is
// authoritative over the file the record was loaded from.
func ForBrand(records []core.CostRecord, name string) []core.CostRecord {
	out := make([]core.CostRecord, 0, len(records))
	for _, r := range records {
		if r.Brand == name {
			out = append(out, r)
		}
	}
	return out
}

func (e *Engine) Config() Config { return e.cfg }

// Len returns the number of records.
func (e *Engine) Len() int { return len(e.records) }

// CurrentMonth is the selected month, or the reference month when the
// month filter is open.
func (e *Engine) CurrentMonth(f core.Filter) core.Period {
	if f.AllMonths() {
		return e.cfg.ReferenceMonth
	}
	return f.Month
}

func (e *Engine) sum(keep func(core.CostRecord) bool) decimal.Decimal {
	total := decimal.Zero
	for _, r := range e.records {
		if keep(r) {
			total = total.Add(r.Amount)
		}
	}
	return total
}

// TotalCost sums every record of the selected month. Department and
// category filters do not apply.
func (e *Engine) TotalCost(f core.Filter) decimal.Decimal {
	return e.sum(f.MatchesMonth)
}

// Categories lists the distinct assigned major categories in display order.
func (e *Engine) Categories() []string {
	names := distinct(e.records, func(r core.CostRecord) string { return r.Major })
	e.cfg.Order.Sort(names)
	return names
}

// AvailablePeriods lists the periods present in the records, ascending.
func (e *Engine) AvailablePeriods() []core.Period {
	seen := make(map[core.Period]struct{})
	var out []core.Period
	for _, r := range e.records {
		if _, ok := seen[r.Period]; ok {
			continue
		}
		seen[r.Period] = struct{}{}
		out = append(out, r.Period)
	}
	slices.Sort(out)
	return out
}

// Departments lists assigned divisions in first-seen order.
func (e *Engine) Departments() []string {
	return distinct(e.records, func(r core.CostRecord) string { return r.Division })
}

// Teams lists assigned teams within department ("" or "all" for every
// department) in first-seen order.
func (e *Engine) Teams(department string) []string {
	f := core.Filter{Department: department}
	var scoped []core.CostRecord
	for _, r := range e.records {
		if f.MatchesDepartment(r) {
			scoped = append(scoped, r)
		}
	}
	return distinct(scoped, func(r core.CostRecord) string { return r.Team })
}

// distinct collects key(r) over records in first-seen order, skipping unset
// values.
func distinct(records []core.CostRecord, key func(core.CostRecord) string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, r := range records {
		k := key(r)
		if core.IsUnset(k) {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}

// YOYRatio is current/prior*100, so 100 means flat. It is 0 when prior is
// not positive.
func YOYRatio(current, prior decimal.Decimal) float64 {
	if !prior.IsPositive() {
		return 0
	}
	return current.Div(prior).Mul(hundred).InexactFloat64()
}

// PercentChange is (current-prior)/prior*100, so 0 means flat. It is 0 when
// prior is not positive.
func PercentChange(current, prior decimal.Decimal) float64 {
	if !prior.IsPositive() {
		return 0
	}
	return current.Sub(prior).Div(prior).Mul(hundred).InexactFloat64()
}

var hundred = decimal.NewFromInt(100)
