package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/go-faster/errors"

	"hunter-compare/pkg/logger"
	"hunter-compare/pkg/models"
	"hunter-compare/pkg/scrapers"
)

const (
	DefaultCompareTTL = 30 * time.Minute
	DefaultSearchTTL  = time.Hour
	DefaultProductTTL = time.Hour

	publishTimeout = 5 * time.Second
)

type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) bool
}

type Aggregator interface {
	Compare(ctx context.Context, query string, platforms []string) (*models.ComparisonResult, error)
	Search(ctx context.Context, query string, platforms []string) (*models.SearchResult, error)
	Source(id string) (scrapers.Source, bool)
}

// Publisher receives every freshly computed comparison. Cached results are not
// published again.
type Publisher interface {
	PublishComparison(ctx context.Context, result *models.ComparisonResult) error
}

type TTLs struct {
	Compare time.Duration
	Search  time.Duration
	Product time.Duration
}

// QueryService wraps the aggregator with cache-aside lookups. Results are returned
// as the encoded bytes so a cache hit is served exactly as it was stored.
type QueryService struct {
	cache     Cache
	agg       Aggregator
	publisher Publisher
	ttl       TTLs
	logger    *slog.Logger
}

func NewQueryService(cache Cache, agg Aggregator, ttl TTLs, l *slog.Logger) *QueryService {
	if ttl.Compare <= 0 {
		ttl.Compare = DefaultCompareTTL
	}
	if ttl.Search <= 0 {
		ttl.Search = DefaultSearchTTL
	}
	if ttl.Product <= 0 {
		ttl.Product = DefaultProductTTL
	}
	return &QueryService{
		cache:  cache,
		agg:    agg,
		ttl:    ttl,
		logger: l.With("component", "query"),
	}
}

// WithPublisher sets where fresh comparisons are sent. A nil publisher disables it.
func (s *QueryService) WithPublisher(p Publisher) *QueryService {
	s.publisher = p
	return s
}

// ParsePlatforms splits a comma separated platform list, dropping blanks.
func ParsePlatforms(csv string) []string {
	var platforms []string
	for _, p := range strings.Split(csv, ",") {
		if p = strings.TrimSpace(p); p != "" {
			platforms = append(platforms, p)
		}
	}
	return platforms
}

func platformsKey(platforms []string) string {
	if len(platforms) == 0 {
		return "all"
	}
	return strings.Join(platforms, ",")
}

func CompareKey(product string, platforms []string) string {
	return "compare:" + product + ":" + platformsKey(platforms)
}

func SearchKey(query string, platforms []string) string {
	return "search:" + query + ":" + platformsKey(platforms)
}

func ProductKey(id string) string {
	return "product:" + id
}

func (s *QueryService) cached(ctx context.Context, key string) ([]byte, bool) {
	data, ok := s.cache.Get(ctx, key)
	if ok {
		logger.Dedup("cache hit %s", key)
	}
	return data, ok
}

func (s *QueryService) store(ctx context.Context, key string, v any, ttl time.Duration) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, &models.AggregationError{Err: errors.Wrapf(err, "encode %s", key)}
	}
	if !s.cache.Set(ctx, key, data, ttl) {
		s.logger.Debug("result not cached", "key", key)
	}
	return data, nil
}

// Compare returns the encoded ComparisonResult for product across platforms.
func (s *QueryService) Compare(ctx context.Context, product string, platforms []string) ([]byte, error) {
	product = strings.TrimSpace(product)
	if product == "" {
		return nil, &models.ValidationError{Field: "product", Message: "Product query parameter is required"}
	}

	key := CompareKey(product, platforms)
	if data, ok := s.cached(ctx, key); ok {
		return data, nil
	}

	return s.refreshComparison(ctx, key, product, platforms)
}

// RefreshComparison recomputes a comparison and overwrites its cache entry.
func (s *QueryService) RefreshComparison(ctx context.Context, product string, platforms []string) error {
	product = strings.TrimSpace(product)
	if product == "" {
		return &models.ValidationError{Field: "product", Message: "Product query parameter is required"}
	}
	_, err := s.refreshComparison(ctx, CompareKey(product, platforms), product, platforms)
	return err
}

func (s *QueryService) refreshComparison(ctx context.Context, key, product string, platforms []string) ([]byte, error) {
	result, err := s.agg.Compare(ctx, product, platforms)
	if err != nil {
		return nil, err
	}

	data, err := s.store(ctx, key, result, s.ttl.Compare)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, result)
	return data, nil
}

func (s *QueryService) publish(ctx context.Context, result *models.ComparisonResult) {
	if s.publisher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if err := s.publisher.PublishComparison(ctx, result); err != nil {
		s.logger.Warn("publish comparison", "query", result.Query, "error", err)
	}
}

// Search returns the encoded SearchResult for query across platforms.
func (s *QueryService) Search(ctx context.Context, query string, platforms []string) ([]byte, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, &models.ValidationError{Field: "q", Message: "Search query parameter \"q\" is required"}
	}

	key := SearchKey(query, platforms)
	if data, ok := s.cached(ctx, key); ok {
		return data, nil
	}

	result, err := s.agg.Search(ctx, query, platforms)
	if err != nil {
		return nil, err
	}
	return s.store(ctx, key, result, s.ttl.Search)
}

// Product returns the encoded ProductRecord for an id of the form
// <platform>_<name>. Unknown platforms and missing listings are ErrProductNotFound.
func (s *QueryService) Product(ctx context.Context, id string) ([]byte, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, &models.ValidationError{Field: "id", Message: "Product ID is required"}
	}

	key := ProductKey(id)
	if data, ok := s.cached(ctx, key); ok {
		return data, nil
	}

	platform, _, _ := strings.Cut(id, "_")
	src, ok := s.agg.Source(platform)
	if !ok {
		return nil, errors.Wrapf(models.ErrProductNotFound, "unknown platform %q", platform)
	}

	p, err := src.GetProductDetails(ctx, id)
	if err != nil {
		return nil, models.Acquisition(platform, "", err)
	}
	if p == nil {
		return nil, errors.Wrapf(models.ErrProductNotFound, "%s", id)
	}
	return s.store(ctx, key, p, s.ttl.Product)
}

// Scrape runs one uncached search against a single platform.
func (s *QueryService) Scrape(ctx context.Context, platform, query string) (*models.ScrapeResult, error) {
	platform = strings.TrimSpace(platform)
	query = strings.TrimSpace(query)
	if platform == "" || query == "" {
		return nil, &models.ValidationError{Message: "Platform and query are required"}
	}

	src, ok := s.agg.Source(platform)
	if !ok {
		return nil, &models.ValidationError{Field: "platform", Message: "Invalid platform"}
	}

	products, err := src.SearchProducts(ctx, query)
	if err != nil {
		return nil, models.Acquisition(platform, "", err)
	}
	if products == nil {
		products = []models.ProductRecord{}
	}

	return &models.ScrapeResult{
		Success:       true,
		Platform:      platform,
		Query:         query,
		ProductsFound: len(products),
		Products:      products,
	}, nil
}
