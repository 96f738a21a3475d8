package engine

import (
	"github.com/shopspring/decimal"

	"costboard/internal/core"
)

// View models returned by the engine. Amounts stay in the snapshot unit.
type (
	MonthlyPoint struct {
		Period     core.Period           `json:"period"`
		Total      decimal.Decimal       `json:"total"`
		Categories []core.CategoryAmount `json:"categories"`
	}

	// Headline is the ratio-form YOY of one month against the same month a
	// year earlier.
	Headline struct {
		Period      core.Period     `json:"period"`
		PriorPeriod core.Period     `json:"priorPeriod"`
		Current     decimal.Decimal `json:"current"`
		Prior       decimal.Decimal `json:"prior"`
		Ratio       float64         `json:"ratio"`
	}

	YOYPoint Headline

	// Comparison is a current/prior pair with its percent change.
	Comparison struct {
		Current   decimal.Decimal `json:"current"`
		Prior     decimal.Decimal `json:"prior"`
		Diff      decimal.Decimal `json:"diff"`
		ChangePct float64         `json:"changePct"`
	}

	YTDSummary struct {
		Month         core.Period   `json:"month"`
		CurrentWindow []core.Period `json:"currentWindow"`
		PriorWindow   []core.Period `json:"priorWindow"`
		Comparison
	}

	// DrillRow is one category or subcategory line of the drill-down table.
	DrillRow struct {
		Name     string     `json:"name"`
		Monthly  Comparison `json:"monthly"`
		YTD      Comparison `json:"ytd"`
		Children []DrillRow `json:"children,omitempty"`
		// Residual is what the category carries beyond its named children:
		// records without a subcategory and prior-year-only subcategories.
		Residual *Residual `json:"residual,omitempty"`
	}

	Residual struct {
		MonthlyCurrent decimal.Decimal `json:"monthlyCurrent"`
		MonthlyPrior   decimal.Decimal `json:"monthlyPrior"`
		YTDCurrent     decimal.Decimal `json:"ytdCurrent"`
		YTDPrior       decimal.Decimal `json:"ytdPrior"`
	}

	// Reconciliation compares the category totals against the grand total.
	Reconciliation struct {
		GrandTotal  decimal.Decimal `json:"grandTotal"`
		CategorySum decimal.Decimal `json:"categorySum"`
		Unassigned  decimal.Decimal `json:"unassigned"`
		Difference  decimal.Decimal `json:"difference"`
		Balanced    bool            `json:"balanced"`
	}
)

func compare(current, prior decimal.Decimal) Comparison {
	return Comparison{
		Current:   current,
		Prior:     prior,
		Diff:      current.Sub(prior),
		ChangePct: PercentChange(current, prior),
	}
}

func (r Residual) isZero() bool {
	return r.MonthlyCurrent.IsZero() && r.MonthlyPrior.IsZero() && r.YTDCurrent.IsZero() && r.YTDPrior.IsZero()
}
