package http

import (
	"errors"
	"net/url"
	"testing"

	"costboard/internal/core"
)

func TestParseDashboardQuery(t *testing.T) {
	v := newValidator()

	tests := []struct {
		name      string
		query     string
		wantErr   bool
		wantBrand string
		wantMonth core.Period
		wantBound core.Period
		wantDept  string
		wantCat   string
	}{
		{
			name:      "brand only",
			query:     "brand=mlb",
			wantBrand: "mlb",
		},
		{
			name:      "all filters",
			query:     "brand=MLB&month=202510&department=%EC%98%81%EC%97%85&category=%EC%9D%B8%EA%B1%B4%EB%B9%84&bound=2025-09",
			wantBrand: "mlb",
			wantMonth: 202510,
			wantBound: 202509,
			wantDept:  "영업",
			wantCat:   "인건비",
		},
		{
			name:      "month all means every month",
			query:     "brand=mlb&month=all",
			wantBrand: "mlb",
		},
		{
			name:      "whitespace and control characters are stripped",
			query:     "brand=%20mlb%01%20&month=%20202510",
			wantBrand: "mlb",
			wantMonth: 202510,
		},
		{name: "missing brand", query: "month=202510", wantErr: true},
		{name: "month out of range", query: "brand=mlb&month=202513", wantErr: true},
		{name: "month not a number", query: "brand=mlb&month=october", wantErr: true},
		{name: "bad bound", query: "brand=mlb&bound=2025", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			values, err := url.ParseQuery(tt.query)
			if err != nil {
				t.Fatalf("bad test query: %v", err)
			}
			q, err := ParseDashboardQuery(v, values)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidQuery) {
					t.Fatalf("expected ErrInvalidQuery, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if q.BrandID != tt.wantBrand {
				t.Errorf("BrandID = %q, want %q", q.BrandID, tt.wantBrand)
			}
			if q.Filter.Month != tt.wantMonth {
				t.Errorf("Month = %v, want %v", q.Filter.Month, tt.wantMonth)
			}
			if q.Bound != tt.wantBound {
				t.Errorf("Bound = %v, want %v", q.Bound, tt.wantBound)
			}
			if q.Filter.Department != tt.wantDept || q.Filter.Category != tt.wantCat {
				t.Errorf("Filter = %+v", q.Filter)
			}
		})
	}
}

func TestParsePeriodParam(t *testing.T) {
	tests := []struct {
		in      string
		want    core.Period
		wantErr bool
	}{
		{"", 0, false},
		{"202510", 202510, false},
		{"2025-01", 202501, false},
		{"202500", 0, true},
		{"abc", 0, true},
	}
	for _, tt := range tests {
		got, err := ParsePeriodParam(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParsePeriodParam(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("ParsePeriodParam(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{ErrInvalidQuery, 400},
		{core.ErrInvalidPeriod, 400},
		{errors.New("boom"), 500},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
