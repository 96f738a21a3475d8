// Package ancillary looks up per-brand headcount and revenue figures in the
// wide yearly tables that sit next to the cost snapshots, and derives the
// ratios shown beside the cost totals.
package ancillary

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"costboard/internal/core"
	"costboard/internal/log"
	"costboard/internal/profile"
	"costboard/internal/record"
	"costboard/internal/snapshot"
)

var monthAbbrev = [12]string{"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"}

type Loader struct {
	source snapshot.Source
	logger *log.Logger
}

func New(source snapshot.Source, logger *log.Logger) *Loader {
	if logger == nil {
		logger = log.Discard()
	}
	return &Loader{source: source, logger: logger.WithComponent(log.ComponentAncillary)}
}

// table fetches key and splits it into header and data rows. A missing
// resource yields no rows and no error.
func (l *Loader) table(ctx context.Context, key string) (header []string, rows [][]string, err error) {
	body, err := l.source.Fetch(ctx, key)
	if errors.Is(err, snapshot.ErrNotFound) {
		l.logger.DebugContext(ctx, "ancillary table not found", log.FieldKey, key)
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, snapshot.Wrap(key, err)
	}
	lines := record.SplitLines(string(body))
	if len(lines) == 0 {
		return nil, nil, nil
	}
	header = record.Parse(lines[0])
	for _, line := range lines[1:] {
		rows = append(rows, record.Parse(line))
	}
	return header, rows, nil
}

// HeadcountLabel is the row label of month p in the headcount table, e.g.
// "25년3월".
func HeadcountLabel(p core.Period) string {
	return fmt.Sprintf("%02d년%d월", p.Year()%100, p.Month())
}

// Headcount returns the employee count of brand for month p. Missing tables,
// columns, rows or unparsable cells all resolve to 0.
func (l *Loader) Headcount(ctx context.Context, brand profile.Brand, p core.Period) (int, error) {
	if brand.HeadcountAlias == "" {
		return 0, nil
	}
	key := snapshot.HeadcountKey(p.Year())
	header, rows, err := l.table(ctx, key)
	if err != nil || header == nil {
		return 0, err
	}
	col := record.IndexOf(header, brand.HeadcountAlias)
	if col < 0 {
		l.logger.DebugContext(ctx, "headcount column missing", log.FieldKey, key, log.FieldBrand, brand.ID)
		return 0, nil
	}
	label := HeadcountLabel(p)
	for _, row := range rows {
		if !matchesLabel(record.Field(row, 0), label) {
			continue
		}
		cell := strings.TrimSpace(strings.TrimSuffix(record.Field(row, col), "명"))
		n, err := strconv.Atoi(strings.ReplaceAll(cell, ",", ""))
		if err != nil {
			return 0, nil
		}
		return n, nil
	}
	return 0, nil
}

// matchesLabel reports whether a row label starts with label and does not
// continue it with another digit, so "25년3월(정규)" matches "25년3월".
func matchesLabel(cell, label string) bool {
	rest, ok := strings.CutPrefix(strings.TrimSpace(cell), label)
	if !ok {
		return false
	}
	r, _ := utf8.DecodeRuneInString(rest)
	return !unicode.IsDigit(r)
}

// Revenue returns the revenue of brand for month p. Brands without a revenue
// alias have none by definition and resolve to 0, as do lookup misses.
func (l *Loader) Revenue(ctx context.Context, brand profile.Brand, p core.Period) (decimal.Decimal, error) {
	if !brand.HasRevenue() {
		return decimal.Zero, nil
	}
	key := snapshot.RevenueKey(p.Year())
	header, rows, err := l.table(ctx, key)
	if err != nil || header == nil {
		return decimal.Zero, err
	}
	col := record.IndexOf(header, brand.RevenueAlias)
	if col < 0 {
		l.logger.DebugContext(ctx, "revenue column missing", log.FieldKey, key, log.FieldBrand, brand.ID)
		return decimal.Zero, nil
	}
	abbrev := monthAbbrev[p.Month()-1]
	for _, row := range rows {
		if !strings.HasPrefix(record.Field(row, 0), abbrev) {
			continue
		}
		return core.AmountOrZero(record.Field(row, col)), nil
	}
	return decimal.Zero, nil
}

// ExpenseRatio is total as a percentage of revenue, 0 without revenue.
func ExpenseRatio(total, revenue decimal.Decimal) float64 {
	if !revenue.IsPositive() {
		return 0
	}
	return total.Div(revenue).Mul(decimal.NewFromInt(100)).InexactFloat64()
}

// CostPerHead divides total, expressed in thousands, by headcount and rounds
// to a whole number. It is 0 when headcount is not positive.
func CostPerHead(total decimal.Decimal, headcount int) int64 {
	if headcount <= 0 {
		return 0
	}
	return total.Div(decimal.NewFromInt(1000)).Div(decimal.NewFromInt(int64(headcount))).Round(0).IntPart()
}
