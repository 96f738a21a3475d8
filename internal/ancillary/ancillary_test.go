package ancillary

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"costboard/internal/core"
	"costboard/internal/profile"
	"costboard/internal/snapshot"
	"costboard/internal/snapshot/memory"
)

const headcountCSV = "구분,MLB,KIDS,DX,공통\n" +
	"25년1월,120명,40명,35명,80명\n" +
	"25년3월(정규),90명,30명,25명,60명\n" +
	"25년10월,130명,42명,,85명\n" +
	"25년11월,abc,42명,36명,85명\n"

const revenueCSV = "\"구분\",\"MLB\",\"KIDS\",\"DISCOVERY\"\n" +
	"Jan,\"1,234,567\",\"98,765\",\"55,000.5\"\n" +
	"Oct 2025,\"2,000,000\",\"100,000\",\"60,000\"\n"

func newStore() *memory.Store {
	s := memory.New()
	s.Put(snapshot.HeadcountKey(2025), []byte(headcountCSV))
	s.Put(snapshot.RevenueKey(2025), []byte(revenueCSV))
	return s
}

func brand(t *testing.T, id string) profile.Brand {
	t.Helper()
	b, err := profile.Default().Lookup(id)
	if err != nil {
		t.Fatalf("lookup %s: %v", id, err)
	}
	return b
}

func TestHeadcountLabel(t *testing.T) {
	if got := HeadcountLabel(202503); got != "25년3월" {
		t.Fatalf("unexpected label %q", got)
	}
	if got := HeadcountLabel(200911); got != "09년11월" {
		t.Fatalf("unexpected label %q", got)
	}
}

func TestMatchesLabel(t *testing.T) {
	tests := []struct {
		cell, label string
		want        bool
	}{
		{"25년1월", "25년1월", true},
		{" 25년3월(정규)", "25년3월", true},
		{"25년10월", "25년1월", false},
		{"25년1월1", "25년1월", false},
		{"24년1월", "25년1월", false},
	}
	for _, tt := range tests {
		if got := matchesLabel(tt.cell, tt.label); got != tt.want {
			t.Errorf("matchesLabel(%q, %q) = %v, want %v", tt.cell, tt.label, got, tt.want)
		}
	}
}

func TestHeadcount(t *testing.T) {
	l := New(newStore(), nil)
	ctx := context.Background()

	cases := []struct {
		brand  string
		period core.Period
		want   int
	}{
		{"mlb", 202501, 120},
		{"common", 202501, 80},
		{"mlb", 202503, 90},      // label with a suffix
		{"mlb", 202510, 130},     // must not match the 25년1월 row
		{"discovery", 202510, 0}, // empty cell
		{"mlb", 202511, 0},       // unparsable
		{"mlb", 202512, 0},       // missing row
		{"mlb", 202401, 0},       // missing table
	}
	for _, tc := range cases {
		got, err := l.Headcount(ctx, brand(t, tc.brand), tc.period)
		if err != nil {
			t.Fatalf("%s %d: unexpected error %v", tc.brand, tc.period, err)
		}
		if got != tc.want {
			t.Fatalf("%s %d: expected %d, got %d", tc.brand, tc.period, tc.want, got)
		}
	}
}

func TestRevenue(t *testing.T) {
	l := New(newStore(), nil)
	ctx := context.Background()

	cases := []struct {
		brand  string
		period core.Period
		want   string
	}{
		{"mlb", 202501, "1234567"},
		{"discovery", 202501, "55000.5"},
		{"mlb-kids", 202510, "100000"},
		{"common", 202501, "0"}, // no revenue alias
		{"mlb", 202503, "0"},    // missing row
		{"mlb", 202401, "0"},    // missing table
	}
	for _, tc := range cases {
		got, err := l.Revenue(ctx, brand(t, tc.brand), tc.period)
		if err != nil {
			t.Fatalf("%s %d: unexpected error %v", tc.brand, tc.period, err)
		}
		if !got.Equal(decimal.RequireFromString(tc.want)) {
			t.Fatalf("%s %d: expected %s, got %s", tc.brand, tc.period, tc.want, got)
		}
	}
}

type failingSource struct{}

func (failingSource) Fetch(context.Context, string) ([]byte, error) {
	return nil, errors.New("upstream down")
}

func TestUpstreamErrorsAreReturned(t *testing.T) {
	l := New(failingSource{}, nil)
	_, err := l.Headcount(context.Background(), brand(t, "mlb"), 202501)
	var fe *snapshot.FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected FetchError, got %v", err)
	}
	if _, err := l.Revenue(context.Background(), brand(t, "mlb"), 202501); err == nil {
		t.Fatalf("expected revenue error")
	}
	// Common never fetches revenue.
	if _, err := l.Revenue(context.Background(), brand(t, "common"), 202501); err != nil {
		t.Fatalf("expected no error for common, got %v", err)
	}
}

func TestExpenseRatio(t *testing.T) {
	if got := ExpenseRatio(decimal.NewFromInt(250), decimal.NewFromInt(1000)); got != 25 {
		t.Fatalf("expected 25, got %v", got)
	}
	if got := ExpenseRatio(decimal.NewFromInt(250), decimal.Zero); got != 0 {
		t.Fatalf("expected 0 without revenue, got %v", got)
	}
}

func TestCostPerHead(t *testing.T) {
	cases := []struct {
		total     int64
		headcount int
		want      int64
	}{
		{1_500_000, 3, 500},
		{1_000_000, 3, 333},
		{2_000_000, 3, 667},
		{1_000_000, 0, 0},
		{1_000_000, -1, 0},
	}
	for _, tc := range cases {
		if got := CostPerHead(decimal.NewFromInt(tc.total), tc.headcount); got != tc.want {
			t.Fatalf("%d/%d: expected %d, got %d", tc.total, tc.headcount, tc.want, got)
		}
	}
}
