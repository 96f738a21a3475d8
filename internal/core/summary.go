package core

import "github.com/shopspring/decimal"

// CategoryAmount represents an amount aggregated by a name (category,
// department, team or account item).
type CategoryAmount struct {
	Name   string          `json:"name"`
	Amount decimal.Decimal `json:"amount"`
}

// YearAmounts pairs a current-year total with the prior-year total.
type YearAmounts struct {
	Name      string          `json:"name"`
	Current   decimal.Decimal `json:"current"`
	Prior     decimal.Decimal `json:"prior"`
	ChangePct float64         `json:"change_pct"`
}
