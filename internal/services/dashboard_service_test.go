package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"costboard/internal/ancillary"
	"costboard/internal/cache"
	"costboard/internal/core"
	"costboard/internal/engine"
	"costboard/internal/loader"
	"costboard/internal/log"
	"costboard/internal/profile"
	"costboard/internal/snapshot"
	"costboard/internal/snapshot/memory"
)

const costHeader = "브랜드,본부,팀,대분류,중분류,소분류,계정과목,금액,년월,비고\n"

func newService(t *testing.T, store *memory.Store) *DashboardService {
	t.Helper()
	lru := cache.NewLRUCache[[]core.CostRecord](100, time.Hour)
	l := loader.New(store, lru, loader.Options{}, log.Discard())
	a := ancillary.New(store, log.Discard())
	return NewDashboardService(profile.Default(), l, a, engine.Config{ReferenceMonth: 202501}, log.Discard())
}

func scenarioStore() *memory.Store {
	s := memory.New()
	s.Put(snapshot.CostKey("mlb", 202501), []byte(costHeader+
		"MLB,영업본부,영업1팀,인건비,급여,기본급,급여,\"1,000\",202501,\n"+
		"MLB,영업본부,영업1팀,인건비,급여,기본급,급여,500,202501,\n"+
		"KIDS,영업본부,영업1팀,인건비,급여,기본급,급여,999,202501,\n"))
	s.Put(snapshot.CostKey("mlb", 202401), []byte(costHeader+
		"MLB,영업본부,영업1팀,인건비,급여,기본급,급여,1200,202401,\n"))
	s.Put(snapshot.HeadcountKey(2025), []byte("구분,MLB,KIDS\n25년1월,3명,2명\n"))
	s.Put(snapshot.RevenueKey(2025), []byte("\"구분\",\"MLB\"\nJan,\"6,000\"\n"))
	return s
}

func TestDashboardEndToEnd(t *testing.T) {
	svc := newService(t, scenarioStore())

	d, err := svc.Dashboard(context.Background(), Query{BrandID: "mlb"})
	require.NoError(t, err)

	assert.Equal(t, core.Period(202501), d.Month)
	assert.True(t, d.TotalCost.Equal(decimal.NewFromInt(1500)), "KIDS rows must not leak into MLB")
	assert.Equal(t, 3, d.Headcount)
	assert.True(t, d.Revenue.Equal(decimal.NewFromInt(6000)))
	assert.InDelta(t, 25.0, d.ExpenseRatio, 1e-9)
	assert.Equal(t, int64(1), d.CostPerHead) // round(1.5/3)
	assert.Empty(t, d.Failures)

	require.Len(t, d.DrillDown, 1)
	row := d.DrillDown[0]
	assert.True(t, row.Monthly.Current.Equal(decimal.NewFromInt(1500)))
	assert.True(t, row.Monthly.Prior.Equal(decimal.NewFromInt(1200)))
	assert.True(t, row.Monthly.Diff.Equal(decimal.NewFromInt(300)))
	assert.InDelta(t, 25.0, row.Monthly.ChangePct, 1e-9)
	require.Len(t, row.Children, 1)
	assert.Equal(t, row.Monthly, row.Children[0].Monthly)

	assert.InDelta(t, 125.0, d.Headline.Ratio, 1e-9)
	assert.True(t, d.Reconciliation.Balanced)
	assert.Equal(t, []core.Period{202401, 202501}, d.Options.Periods)
	assert.Equal(t, 2025, d.Comparisons.Year)
	assert.Equal(t, 1, d.Comparisons.Through)
	require.Len(t, d.Comparisons.Categories, 1)
	assert.InDelta(t, 25.0, d.Comparisons.Categories[0].ChangePct, 1e-9)
	assert.Nil(t, d.Comparisons.SubCategories)
}

func TestDashboardCategoryFilter(t *testing.T) {
	svc := newService(t, scenarioStore())
	d, err := svc.Dashboard(context.Background(), Query{
		BrandID: "mlb",
		Filter:  core.Filter{Month: 202501, Category: "인건비"},
	})
	require.NoError(t, err)
	require.Len(t, d.Comparisons.SubCategories, 1)
	assert.Equal(t, "기본급", d.Comparisons.SubCategories[0].Name)
}

func TestDashboardUnknownBrand(t *testing.T) {
	svc := newService(t, memory.New())
	_, err := svc.Dashboard(context.Background(), Query{BrandID: "nope"})
	assert.True(t, errors.Is(err, profile.ErrUnknownBrand))
}

func TestDashboardInvalidMonth(t *testing.T) {
	svc := newService(t, memory.New())
	_, err := svc.Dashboard(context.Background(), Query{BrandID: "mlb", Filter: core.Filter{Month: 202513}})
	assert.True(t, errors.Is(err, core.ErrInvalidPeriod))
}

func TestDashboardEmptyBrand(t *testing.T) {
	svc := newService(t, memory.New())
	d, err := svc.Dashboard(context.Background(), Query{BrandID: "common"})
	require.NoError(t, err)
	assert.True(t, d.TotalCost.IsZero())
	assert.Equal(t, 0, d.Headcount)
	assert.Equal(t, 0.0, d.ExpenseRatio)
	assert.Equal(t, int64(0), d.CostPerHead)
	assert.Empty(t, d.DrillDown)
	assert.True(t, d.Reconciliation.Balanced)
}

type flakySource struct {
	*memory.Store
	fail string
}

func (f flakySource) Fetch(ctx context.Context, key string) ([]byte, error) {
	if key == f.fail {
		return nil, errors.New("connection reset")
	}
	return f.Store.Fetch(ctx, key)
}

func TestDashboardReportsFailures(t *testing.T) {
	src := flakySource{Store: scenarioStore(), fail: snapshot.CostKey("mlb", 202401)}
	l := loader.New(src, nil, loader.Options{}, log.Discard())
	svc := NewDashboardService(profile.Default(), l, ancillary.New(src, nil), engine.Config{ReferenceMonth: 202501}, nil)

	d, err := svc.Dashboard(context.Background(), Query{BrandID: "mlb"})
	require.NoError(t, err)
	require.Len(t, d.Failures, 1)
	assert.Equal(t, core.Period(202401), d.Failures[0].Period)
	assert.True(t, d.TotalCost.Equal(decimal.NewFromInt(1500)))
	assert.True(t, d.Headline.Prior.IsZero())
}

func TestDashboardCancelled(t *testing.T) {
	svc := newService(t, scenarioStore())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := svc.Dashboard(ctx, Query{BrandID: "mlb"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestInvalidate(t *testing.T) {
	svc := newService(t, scenarioStore())
	_, err := svc.Dashboard(context.Background(), Query{BrandID: "mlb"})
	require.NoError(t, err)

	n, err := svc.Invalidate(context.Background(), "mlb", 202501)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = svc.Invalidate(context.Background(), "mlb", 0)
	require.NoError(t, err)
	assert.Equal(t, 23, n)

	_, err = svc.Invalidate(context.Background(), "nope", 0)
	assert.ErrorIs(t, err, profile.ErrUnknownBrand)
}

func TestPeriodsFor(t *testing.T) {
	got := PeriodsFor(202503)
	require.Len(t, got, 24)
	assert.Equal(t, core.Period(202401), got[0])
	assert.Equal(t, core.Period(202512), got[23])
}

func TestBrands(t *testing.T) {
	svc := newService(t, memory.New())
	brands := svc.Brands()
	require.Len(t, brands, 4)
	brands[0].Name = "changed"
	assert.Equal(t, "MLB", svc.Brands()[0].Name)
}
