// Package loader turns (brand, periods) into a dataset of cost records,
// fetching one snapshot per period through a snapshot.Source.
package loader

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"costboard/internal/cache"
	"costboard/internal/core"
	"costboard/internal/log"
	"costboard/internal/profile"
	"costboard/internal/snapshot"
)

const (
	DefaultTimeout     = 10 * time.Second
	DefaultConcurrency = 6
)

type Options struct {
	// Timeout bounds each period's fetch.
	Timeout     time.Duration
	Concurrency int
}

// Failure records a period whose snapshot could not be fetched.
type Failure struct {
	Period core.Period `json:"period"`
	Key    string      `json:"key"`
	Error  string      `json:"error"`
	Err    error       `json:"-"`
}

// Dataset is the result of one load. Records are ordered by requested period
// and then by file order; periods listed in Failures contributed nothing.
type Dataset struct {
	Brand    profile.Brand     `json:"brand"`
	Periods  []core.Period     `json:"periods"`
	Records  []core.CostRecord `json:"-"`
	Failures []Failure         `json:"failures,omitempty"`
}

type Loader struct {
	source      snapshot.Source
	cache       cache.Cache[[]core.CostRecord]
	group       singleflight.Group
	timeout     time.Duration
	concurrency int
	logger      *log.Logger

	// mu orders cache writes of finished fetches against Invalidate.
	// A fetch stores its result only if no invalidation touched its key
	// since it started.
	mu       sync.Mutex
	brandGen map[string]uint64
	keyGen   map[string]uint64
}

// New builds a Loader. c may be nil to disable caching.
func New(source snapshot.Source, c cache.Cache[[]core.CostRecord], opts Options, logger *log.Logger) *Loader {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	return &Loader{
		source:      source,
		cache:       c,
		timeout:     opts.Timeout,
		concurrency: opts.Concurrency,
		logger:      logger.WithComponent(log.ComponentLoader),
		brandGen:    make(map[string]uint64),
		keyGen:      make(map[string]uint64),
	}
}

// CacheKey is the cache key of one brand-period snapshot.
func CacheKey(brandID string, p core.Period) string {
	return brandID + ":" + p.String()
}

// LoadCostRecords fetches every period concurrently and waits for all of
// them. Missing snapshots contribute zero records; upstream failures are
// reported in Dataset.Failures while the other periods still load. The error
// is non-nil only when ctx ends first.
func (l *Loader) LoadCostRecords(ctx context.Context, brand profile.Brand, periods []core.Period) (Dataset, error) {
	periods = lo.Uniq(periods)
	results := make([][]core.CostRecord, len(periods))
	failed := make([]*Failure, len(periods))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.concurrency)
	for i, p := range periods {
		g.Go(func() error {
			recs, err := l.loadPeriod(gctx, brand, p)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				failed[i] = newFailure(brand, p, err)
				l.logger.WarnContext(ctx, "Snapshot fetch failed",
					log.FieldBrand, brand.ID, log.FieldPeriod, p.String(), log.FieldError, err)
				return nil
			}
			results[i] = recs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Dataset{}, fmt.Errorf("load %s: %w", brand.ID, err)
	}

	total := lo.SumBy(results, func(r []core.CostRecord) int { return len(r) })
	ds := Dataset{
		Brand:   brand,
		Periods: periods,
		Records: make([]core.CostRecord, 0, total),
	}
	for i := range periods {
		ds.Records = append(ds.Records, results[i]...)
		if failed[i] != nil {
			ds.Failures = append(ds.Failures, *failed[i])
		}
	}
	return ds, nil
}

// Invalidate drops cached snapshots of a brand: one period, or all of them
// when p is zero. It returns the number of entries removed.
func (l *Loader) Invalidate(ctx context.Context, brandID string, p core.Period) int {
	if l.cache == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if p.IsZero() {
		l.brandGen[brandID]++
		return l.cache.DeletePrefix(ctx, brandID+":")
	}
	key := CacheKey(brandID, p)
	l.group.Forget(l.flightKey(brandID, key))
	l.keyGen[key]++
	if _, ok := l.cache.Get(ctx, key); !ok {
		return 0
	}
	l.cache.Delete(ctx, key)
	return 1
}

// generation changes whenever key is invalidated, alone or with its brand.
// Callers hold l.mu.
func (l *Loader) generation(brandID, key string) uint64 {
	return l.brandGen[brandID] + l.keyGen[key]
}

// flightKey keys shared fetches by generation, so a request made after an
// invalidation never joins a fetch started before it. Callers hold l.mu.
func (l *Loader) flightKey(brandID, key string) string {
	return key + "@" + strconv.FormatUint(l.generation(brandID, key), 10)
}

// store caches recs unless key was invalidated after gen was read.
func (l *Loader) store(ctx context.Context, brandID, key string, gen uint64, recs []core.CostRecord) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.generation(brandID, key) != gen {
		l.logger.DebugContext(ctx, "Dropped fetch result invalidated in flight", log.FieldKey, key)
		return
	}
	l.cache.Set(ctx, key, recs)
}

func (l *Loader) loadPeriod(ctx context.Context, brand profile.Brand, p core.Period) ([]core.CostRecord, error) {
	key := CacheKey(brand.ID, p)
	if l.cache != nil {
		if recs, ok := l.cache.Get(ctx, key); ok {
			return recs, nil
		}
	}

	l.mu.Lock()
	gen := l.generation(brand.ID, key)
	flight := l.flightKey(brand.ID, key)
	l.mu.Unlock()

	// The shared fetch outlives any single caller; each caller still stops
	// waiting when its own ctx ends.
	ch := l.group.DoChan(flight, func() (any, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.timeout)
		defer cancel()
		recs, err := l.fetch(fctx, brand, p)
		if err != nil {
			return nil, err
		}
		if l.cache != nil {
			l.store(fctx, brand.ID, key, gen, recs)
		}
		return recs, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]core.CostRecord), nil
	}
}

// fetch reads the CSV snapshot, falling back to the JSON one. A period with
// neither yields an empty, non-nil slice.
func (l *Loader) fetch(ctx context.Context, brand profile.Brand, p core.Period) ([]core.CostRecord, error) {
	csvKey := snapshot.CostKey(brand.FilePrefix, p)
	body, err := l.source.Fetch(ctx, csvKey)
	switch {
	case err == nil:
		recs, skipped := parseCSV(body, p)
		if skipped > 0 {
			l.logger.DebugContext(ctx, "Skipped short rows",
				log.FieldKey, csvKey, log.FieldSkipped, skipped)
		}
		return recs, nil
	case !errors.Is(err, snapshot.ErrNotFound):
		return nil, snapshot.Wrap(csvKey, err)
	}

	jsonKey := snapshot.CostJSONKey(brand.FilePrefix, p)
	body, err = l.source.Fetch(ctx, jsonKey)
	if errors.Is(err, snapshot.ErrNotFound) {
		return []core.CostRecord{}, nil
	}
	if err != nil {
		return nil, snapshot.Wrap(jsonKey, err)
	}
	recs, err := parseJSON(body, p)
	if err != nil {
		return nil, snapshot.Wrap(jsonKey, err)
	}
	return recs, nil
}

func newFailure(brand profile.Brand, p core.Period, err error) *Failure {
	f := &Failure{Period: p, Key: snapshot.CostKey(brand.FilePrefix, p), Error: err.Error(), Err: err}
	var fe *snapshot.FetchError
	if errors.As(err, &fe) {
		f.Key = fe.Key
	}
	return f
}
