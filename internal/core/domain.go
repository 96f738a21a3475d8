package core

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// All is the filter value meaning "no restriction".
const All = "all"

// unsetSentinel is what the spreadsheet export writes for empty cells.
const unsetSentinel = "nan"

type (
	// Period is a calendar year-month encoded as YYYYMM.
	Period int

	// CostRecord is one non-zero expense line item of a snapshot.
	CostRecord struct {
		Brand    string          `json:"brand"`
		Division string          `json:"division"` // cost center
		Team     string          `json:"team"`
		Major    string          `json:"major_category"`
		Mid      string          `json:"mid_category"`
		Sub      string          `json:"sub_category"`
		Account  string          `json:"account_item"`
		Amount   decimal.Decimal `json:"amount"`
		Period   Period          `json:"period"`
		Note     string          `json:"note,omitempty"`
	}

	// Filter is the selection a dashboard query is evaluated under.
	// Zero Month means every month; empty or "all" Department/Category
	// mean no restriction.
	Filter struct {
		Month      Period `json:"month"`
		Department string `json:"department"`
		Category   string `json:"category"`
	}
)

var (
	ErrInvalidPeriod = errors.New("invalid period")
	ErrInvalidAmount = errors.New("invalid amount")
	ErrZeroAmount    = errors.New("zero amount")
)

// NewPeriod builds a Period from year and month (1-12).
func NewPeriod(year, month int) Period {
	return Period(year*100 + month)
}

// ParsePeriod accepts "YYYYMM" or "YYYY-MM".
func ParsePeriod(s string) (Period, error) {
	s = strings.TrimSpace(strings.ReplaceAll(s, "-", ""))
	if len(s) != 6 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidPeriod, s)
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidPeriod, s)
	}
	p := Period(n)
	if err := p.Validate(); err != nil {
		return 0, err
	}
	return p, nil
}

// Year returns the four digit year.
func (p Period) Year() int {
	return int(p) / 100
}

// Month returns the month, 1-12.
func (p Period) Month() int {
	return int(p) % 100
}

// PriorYear returns the same month one year earlier.
func (p Period) PriorYear() Period {
	return p - 100
}

// IsZero reports whether p is the "all months" value.
func (p Period) IsZero() bool {
	return p == 0
}

func (p Period) Validate() error {
	if p.Year() < 1900 || p.Year() > 2999 {
		return fmt.Errorf("%w: year %d", ErrInvalidPeriod, p.Year())
	}
	if p.Month() < 1 || p.Month() > 12 {
		return fmt.Errorf("%w: month %d", ErrInvalidPeriod, p.Month())
	}
	return nil
}

func (p Period) String() string {
	return fmt.Sprintf("%06d", int(p))
}

// IsUnset reports whether a text field carries no value.
func IsUnset(s string) bool {
	s = strings.TrimSpace(s)
	return s == "" || strings.EqualFold(s, unsetSentinel)
}

// Validate checks the invariants every loaded record must satisfy.
func (r CostRecord) Validate() error {
	if r.Amount.IsZero() {
		return ErrZeroAmount
	}
	return r.Period.Validate()
}

// AllMonths reports whether the month filter is open.
func (f Filter) AllMonths() bool {
	return f.Month.IsZero()
}

// AllDepartments reports whether the department filter is open.
func (f Filter) AllDepartments() bool {
	return isOpen(f.Department)
}

// AllCategories reports whether the category filter is open.
func (f Filter) AllCategories() bool {
	return isOpen(f.Category)
}

// MatchesMonth applies the month filter only.
func (f Filter) MatchesMonth(r CostRecord) bool {
	return f.AllMonths() || r.Period == f.Month
}

// MatchesDepartment applies the department filter only.
func (f Filter) MatchesDepartment(r CostRecord) bool {
	return f.AllDepartments() || r.Division == f.Department
}

func isOpen(v string) bool {
	v = strings.TrimSpace(v)
	return v == "" || strings.EqualFold(v, All)
}
