// Package http provides HTTP server and handler implementations.
//
// This file parses and validates dashboard query parameters.

package http

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/go-playground/validator/v10"

	"costboard/internal/core"
	"costboard/internal/services"
)

// ErrInvalidQuery marks a request whose parameters fail validation.
var ErrInvalidQuery = errors.New("invalid query")

// dashboardParams mirrors the dashboard query string.
type dashboardParams struct {
	Brand      string `validate:"required,max=64"`
	Month      string `validate:"omitempty,period"`
	Department string `validate:"max=200"`
	Category   string `validate:"max=200"`
	Bound      string `validate:"omitempty,period"`
}

// newValidator registers the period tag, which accepts YYYYMM and YYYY-MM.
func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("period", func(fl validator.FieldLevel) bool {
		p, err := core.ParsePeriod(fl.Field().String())
		return err == nil && p.Validate() == nil
	})
	return v
}

// ParseDashboardQuery reads brand, month, department, category and bound
// from the query string. An empty month or "all" selects every month.
func ParseDashboardQuery(v *validator.Validate, q url.Values) (services.Query, error) {
	params := dashboardParams{
		Brand:      sanitizeInput(q.Get("brand")),
		Month:      sanitizeInput(q.Get("month")),
		Department: sanitizeInput(q.Get("department")),
		Category:   sanitizeInput(q.Get("category")),
		Bound:      sanitizeInput(q.Get("bound")),
	}
	if strings.EqualFold(params.Month, core.All) {
		params.Month = ""
	}

	if err := v.Struct(params); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			problems := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				problems = append(problems, fmt.Sprintf("%s: failed %s", strings.ToLower(fe.Field()), fe.Tag()))
			}
			return services.Query{}, fmt.Errorf("%w: %s", ErrInvalidQuery, strings.Join(problems, ", "))
		}
		return services.Query{}, fmt.Errorf("%w: %v", ErrInvalidQuery, err)
	}

	query := services.Query{
		BrandID: strings.ToLower(params.Brand),
		Filter: core.Filter{
			Department: params.Department,
			Category:   params.Category,
		},
	}
	if params.Month != "" {
		query.Filter.Month, _ = core.ParsePeriod(params.Month)
	}
	if params.Bound != "" {
		query.Bound, _ = core.ParsePeriod(params.Bound)
	}
	return query, nil
}

// ParsePeriodParam parses an optional period; empty means zero.
func ParsePeriodParam(s string) (core.Period, error) {
	s = sanitizeInput(s)
	if s == "" {
		return 0, nil
	}
	p, err := core.ParsePeriod(s)
	if err != nil {
		return 0, err
	}
	return p, p.Validate()
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
