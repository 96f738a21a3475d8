package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"costboard/internal/ancillary"
	"costboard/internal/core"
	"costboard/internal/engine"
	"costboard/internal/loader"
	"costboard/internal/log"
	"costboard/internal/profile"
	"costboard/internal/snapshot"
)

// Query selects one brand dashboard. Bound, when set, limits the series to
// its year up to and including that month.
type Query struct {
	BrandID string
	Filter  core.Filter
	Bound   core.Period
}

type Rankings struct {
	Departments []core.CategoryAmount `json:"departments"`
	Teams       []core.CategoryAmount `json:"teams"`
	Accounts    []core.CategoryAmount `json:"accounts"`
}

// Comparisons are the annual views: Year against the year before, both
// limited to months 1..Through.
type Comparisons struct {
	Year          int                `json:"year"`
	Through       int                `json:"through"`
	Categories    []core.YearAmounts `json:"categories"`
	SubCategories []core.YearAmounts `json:"subCategories,omitempty"`
	Divisions     []core.YearAmounts `json:"divisions"`
}

// Options lists the values the filters can take.
type Options struct {
	Periods     []core.Period `json:"periods"`
	Departments []string      `json:"departments"`
	Teams       []string      `json:"teams"`
	Categories  []string      `json:"categories"`
}

// Dashboard is the complete view model of one brand query.
type Dashboard struct {
	Brand          profile.Brand         `json:"brand"`
	Month          core.Period           `json:"month"`
	Filter         core.Filter           `json:"filter"`
	TotalCost      decimal.Decimal       `json:"totalCost"`
	Headcount      int                   `json:"headcount"`
	Revenue        decimal.Decimal       `json:"revenue"`
	ExpenseRatio   float64               `json:"expenseRatio"`
	CostPerHead    int64                 `json:"costPerHead"`
	Headline       engine.Headline       `json:"headline"`
	Monthly        []engine.MonthlyPoint `json:"monthly"`
	YOY            []engine.YOYPoint     `json:"yoy"`
	YTD            engine.YTDSummary     `json:"ytd"`
	DrillDown      []engine.DrillRow     `json:"drillDown"`
	Rankings       Rankings              `json:"rankings"`
	Comparisons    Comparisons           `json:"comparisons"`
	Options        Options               `json:"options"`
	Reconciliation engine.Reconciliation `json:"reconciliation"`
	Failures       []loader.Failure      `json:"failures,omitempty"`
}

// DashboardService builds dashboards from the cost snapshots and the
// ancillary tables of a brand.
type DashboardService struct {
	profile   profile.Profile
	loader    *loader.Loader
	ancillary *ancillary.Loader
	cfg       engine.Config
	logger    *log.Logger
}

func NewDashboardService(p profile.Profile, l *loader.Loader, a *ancillary.Loader, cfg engine.Config, logger *log.Logger) *DashboardService {
	if logger == nil {
		logger = log.Discard()
	}
	if len(p.Categories) > 0 {
		cfg.Order = engine.NewOrder(p.Categories)
	}
	return &DashboardService{
		profile:   p,
		loader:    l,
		ancillary: a,
		cfg:       cfg,
		logger:    logger.WithComponent(log.ComponentDashboard),
	}
}

// Brands lists the configured brands in profile order.
func (s *DashboardService) Brands() []profile.Brand {
	return append([]profile.Brand(nil), s.profile.Brands...)
}

// ReferenceMonth is the month shown when no month is selected.
func (s *DashboardService) ReferenceMonth() core.Period {
	if s.cfg.ReferenceMonth.IsZero() {
		return engine.DefaultReferenceMonth
	}
	return s.cfg.ReferenceMonth
}

// PeriodsFor returns every month of the year of m and of the year before.
func PeriodsFor(m core.Period) []core.Period {
	out := make([]core.Period, 0, 24)
	for _, year := range []int{m.Year() - 1, m.Year()} {
		for month := 1; month <= 12; month++ {
			out = append(out, core.NewPeriod(year, month))
		}
	}
	return out
}

// Dashboard loads the brand's snapshots and evaluates every view under the
// query's filter. Snapshot failures are reported in the result; only an
// unknown brand, an invalid filter or a cancelled context return an error.
func (s *DashboardService) Dashboard(ctx context.Context, q Query) (*Dashboard, error) {
	brand, err := s.profile.Lookup(q.BrandID)
	if err != nil {
		return nil, err
	}
	if !q.Filter.AllMonths() {
		if err := q.Filter.Month.Validate(); err != nil {
			return nil, fmt.Errorf("month filter: %w", err)
		}
	}
	if !q.Bound.IsZero() {
		if err := q.Bound.Validate(); err != nil {
			return nil, fmt.Errorf("bound: %w", err)
		}
	}

	month := q.Filter.Month
	if q.Filter.AllMonths() {
		month = s.ReferenceMonth()
	}
	periods := PeriodsFor(month)

	var (
		ds        loader.Dataset
		headcount int
		revenue   decimal.Decimal
		ancErrs   [2]error
	)
	start := time.Now()
	s.logger.InfoContext(ctx, "Loading dashboard",
		log.FieldOperation, log.OpLoad, log.FieldBrand, brand.ID, log.FieldPeriod, month.String())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		ds, err = s.loader.LoadCostRecords(gctx, brand, periods)
		return err
	})
	if s.ancillary != nil {
		g.Go(func() error {
			headcount, ancErrs[0] = s.ancillary.Headcount(gctx, brand, month)
			return nil
		})
		g.Go(func() error {
			revenue, ancErrs[1] = s.ancillary.Revenue(gctx, brand, month)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for _, err := range ancErrs {
		if err == nil {
			continue
		}
		s.logger.WarnContext(ctx, "Ancillary lookup failed", log.FieldBrand, brand.ID, log.FieldError, err)
		ds.Failures = append(ds.Failures, ancillaryFailure(month, err))
	}

	records := engine.ForBrand(ds.Records, brand.Name)
	fields := log.NewFields().
		WithOperation(log.OpLoad).
		WithLoad(brand.ID, lo.Map(periods, func(p core.Period, _ int) string { return p.String() }), len(records), len(ds.Failures)).
		WithDuration(time.Since(start))
	s.logger.InfoContext(ctx, "Dashboard data loaded", fields.ToSlice()...)

	e := engine.New(records, s.cfg)
	d := s.build(e, q, brand, month)
	d.Headcount = headcount
	d.Revenue = revenue
	d.ExpenseRatio = ancillary.ExpenseRatio(d.TotalCost, revenue)
	d.CostPerHead = ancillary.CostPerHead(d.TotalCost, headcount)
	d.Failures = ds.Failures

	s.logReconciliation(ctx, brand, q.Filter, d.Reconciliation)
	return d, nil
}

func (s *DashboardService) build(e *engine.Engine, q Query, brand profile.Brand, month core.Period) *Dashboard {
	f := q.Filter
	year, through := e.CurrentMonth(f).Year(), month.Month()
	if last := lastMonthOf(e.AvailablePeriods(), year); last > 0 {
		through = last
	}

	comparisons := Comparisons{
		Year:       year,
		Through:    through,
		Categories: e.CategoryYearComparison(year, through),
		Divisions:  e.DivisionYearComparison(f.Category, year, through),
	}
	if !f.AllCategories() {
		comparisons.SubCategories = e.SubCategoryYearComparison(f.Category, year, through)
	}

	return &Dashboard{
		Brand:     brand,
		Month:     month,
		Filter:    f,
		TotalCost: e.TotalCost(f),
		Headline:  e.HeadlineYOY(f),
		Monthly:   e.MonthlySeries(f, q.Bound),
		YOY:       e.YOYSeries(f, q.Bound),
		YTD:       e.YTD(f),
		DrillDown: e.DrillDown(f),
		Rankings: Rankings{
			Departments: e.DepartmentRanking(f),
			Teams:       e.TeamRanking(f),
			Accounts:    e.AccountRanking(f),
		},
		Comparisons: comparisons,
		Options: Options{
			Periods:     e.AvailablePeriods(),
			Departments: e.Departments(),
			Teams:       e.Teams(f.Department),
			Categories:  e.Categories(),
		},
		Reconciliation: e.Reconcile(f),
	}
}

func (s *DashboardService) logReconciliation(ctx context.Context, brand profile.Brand, f core.Filter, r engine.Reconciliation) {
	args := []any{
		log.FieldOperation, log.OpReconcile,
		log.FieldBrand, brand.ID,
		log.FieldBalanced, r.Balanced,
		log.FieldDifference, r.Difference.String(),
	}
	if !f.AllMonths() {
		args = append(args, log.FieldPeriod, f.Month.String())
	}
	if r.Balanced {
		s.logger.DebugContext(ctx, "Reconciliation check", args...)
		return
	}
	s.logger.WarnContext(ctx, "Reconciliation mismatch", args...)
}

// Invalidate drops the cached snapshots of brandID for p, or for every
// period when p is zero.
func (s *DashboardService) Invalidate(ctx context.Context, brandID string, p core.Period) (int, error) {
	if _, err := s.profile.Lookup(brandID); err != nil {
		return 0, err
	}
	return s.loader.Invalidate(ctx, brandID, p), nil
}

func lastMonthOf(periods []core.Period, year int) int {
	last := 0
	for _, p := range periods {
		if p.Year() == year && p.Month() > last {
			last = p.Month()
		}
	}
	return last
}

func ancillaryFailure(month core.Period, err error) loader.Failure {
	f := loader.Failure{Period: month, Error: err.Error(), Err: err}
	var fe *snapshot.FetchError
	if errors.As(err, &fe) {
		f.Key = fe.Key
	}
	return f
}
