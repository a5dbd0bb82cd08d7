package compare

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"hunter-compare/pkg/models"
	"hunter-compare/pkg/scrapers"
)

// Aggregator fans a query out to the configured sources and merges what comes back.
type Aggregator struct {
	sources       map[string]scrapers.Source
	maxConcurrent int
	logger        *slog.Logger
	now           func() time.Time
}

func NewAggregator(sources map[string]scrapers.Source, maxConcurrent int, logger *slog.Logger) *Aggregator {
	if maxConcurrent <= 0 {
		maxConcurrent = len(sources)
	}
	return &Aggregator{
		sources:       sources,
		maxConcurrent: maxConcurrent,
		logger:        logger.With("component", "aggregator"),
		now:           time.Now,
	}
}

// SourceIDs lists every configured source in sorted order.
func (a *Aggregator) SourceIDs() []string {
	ids := make([]string, 0, len(a.sources))
	for id := range a.sources {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (a *Aggregator) Source(id string) (scrapers.Source, bool) {
	s, ok := a.sources[id]
	return s, ok
}

// Resolve keeps the requested ids that name a configured source, in request order
// and without duplicates. Unknown ids are dropped silently. No ids means all sources.
func (a *Aggregator) Resolve(ids []string) []string {
	if len(ids) == 0 {
		return a.SourceIDs()
	}

	resolved := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := a.sources[id]; !ok {
			a.logger.Debug("ignoring unknown platform", "platform", id)
			continue
		}
		if !slices.Contains(resolved, id) {
			resolved = append(resolved, id)
		}
	}
	return resolved
}

type outcome struct {
	source   string
	products []models.ProductRecord
	err      error
}

// fetchAll runs SearchProducts on every source concurrently and returns once all of
// them have finished. Results keep the order of ids.
func (a *Aggregator) fetchAll(ctx context.Context, query string, ids []string) []outcome {
	results := make([]outcome, len(ids))
	sem := make(chan struct{}, max(a.maxConcurrent, 1))

	var wg sync.WaitGroup
	for i, id := range ids {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			results[i] = outcome{source: id}

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				results[i].err = models.Acquisition(id, "", ctx.Err())
				return
			}

			results[i].products, results[i].err = a.search(ctx, id, query)
		}(i, id)
	}
	wg.Wait()

	for _, r := range results {
		if r.err != nil {
			a.logger.Warn("source failed", "platform", r.source, "query", query, "error", r.err)
		}
	}
	return results
}

func (a *Aggregator) search(ctx context.Context, id, query string) (products []models.ProductRecord, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = models.Acquisition(id, "", fmt.Errorf("panic: %v", r))
		}
	}()

	start := time.Now()
	products, err = a.sources[id].SearchProducts(ctx, query)
	if err != nil {
		return nil, models.Acquisition(id, "", err)
	}
	a.logger.Debug("source finished", "platform", id, "count", len(products), "duration", time.Since(start))
	return products, nil
}

// merge flattens the successful outcomes. It fails only when every source failed.
func merge(results []outcome) ([]models.ProductRecord, error) {
	var (
		records []models.ProductRecord
		lastErr error
		ok      int
	)
	for _, r := range results {
		if r.err != nil {
			lastErr = r.err
			continue
		}
		ok++
		for _, p := range r.products {
			p.SourceID = r.source
			records = append(records, p)
		}
	}
	if len(results) > 0 && ok == 0 {
		return nil, errors.Wrap(lastErr, "no source returned results")
	}
	return records, nil
}

// Compare queries the selected sources and ranks every returned listing by price.
func (a *Aggregator) Compare(ctx context.Context, query string, platforms []string) (*models.ComparisonResult, error) {
	ids := a.Resolve(platforms)
	records, err := merge(a.fetchAll(ctx, query, ids))
	if err != nil {
		return nil, err
	}

	entries, best := Rank(records)
	return &models.ComparisonResult{
		Query:            query,
		BestPrice:        best,
		Comparison:       entries,
		PlatformsChecked: ids,
		TotalOptions:     len(entries),
		Timestamp:        a.now().UTC(),
	}, nil
}

// Search queries the selected sources and groups listings by normalized name.
func (a *Aggregator) Search(ctx context.Context, query string, platforms []string) (*models.SearchResult, error) {
	ids := a.Resolve(platforms)
	records, err := merge(a.fetchAll(ctx, query, ids))
	if err != nil {
		return nil, err
	}

	return &models.SearchResult{
		Query:        query,
		TotalResults: len(records),
		Platforms:    ids,
		Products:     Group(records),
		Timestamp:    a.now().UTC(),
	}, nil
}

// Rank computes the best price and per-entry savings, then orders entries by
// ascending price with unpriced entries last. Equal prices keep input order.
func Rank(records []models.ProductRecord) ([]models.ComparisonEntry, decimal.NullDecimal) {
	best := models.NoPrice
	for _, r := range records {
		if !r.HasPrice() {
			continue
		}
		if !best.Valid || r.Price.Decimal.LessThan(best.Decimal) {
			best = r.Price
		}
	}

	entries := make([]models.ComparisonEntry, len(records))
	for i, r := range records {
		e := models.ComparisonEntry{ProductRecord: r, Savings: decimal.Zero}
		if r.HasPrice() && best.Valid {
			e.IsBestPrice = r.Price.Decimal.Equal(best.Decimal)
			if diff := r.Price.Decimal.Sub(best.Decimal); diff.IsPositive() {
				e.Savings = diff
			}
		}
		entries[i] = e
	}

	sort.SliceStable(entries, func(i, j int) bool {
		pi, pj := entries[i].Price, entries[j].Price
		switch {
		case !pi.Valid:
			return false
		case !pj.Valid:
			return true
		default:
			return pi.Decimal.LessThan(pj.Decimal)
		}
	})
	return entries, best
}

// Group maps normalized names to the listings sharing them.
func Group(records []models.ProductRecord) map[string][]models.ProductRecord {
	groups := make(map[string][]models.ProductRecord)
	for _, r := range records {
		key := scrapers.NormalizeName(r.Name)
		groups[key] = append(groups[key], r)
	}
	return groups
}
