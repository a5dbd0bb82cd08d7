package scrapers

import (
	"bytes"
	"context"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-faster/errors"

	"hunter-compare/pkg/config"
	"hunter-compare/pkg/models"
)

//go:generate mockgen -source=scraper.go -destination=mocks/mocks.go -package=mocks

// Source is one storefront the aggregator can query.
type Source interface {
	ID() string
	Name() string
	SearchProducts(ctx context.Context, query string) ([]models.ProductRecord, error)
	// GetProductDetails returns nil without error when the listing does not exist.
	GetProductDetails(ctx context.Context, externalID string) (*models.ProductRecord, error)
}

const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

// Options is the retrieval policy shared by every adapter.
type Options struct {
	BaseDelay      time.Duration
	Jitter         time.Duration
	MaxRetries     int
	RequestTimeout time.Duration
	RenderTimeout  time.Duration
	WaitTimeout    time.Duration
	// UserAgent is sent on every request. Empty picks a random one per request.
	UserAgent string
}

func OptionsFromConfig(cfg config.ScrapingConfig) Options {
	return Options{
		BaseDelay:      cfg.BaseDelay,
		Jitter:         cfg.Jitter,
		MaxRetries:     cfg.MaxRetries,
		RequestTimeout: cfg.RequestTimeout,
		RenderTimeout:  cfg.RenderTimeout,
		WaitTimeout:    cfg.WaitTimeout,
		UserAgent:      cfg.UserAgent,
	}
}

// Listing is what an adapter pulls out of a page before normalization.
type Listing struct {
	ID            string
	Name          string
	Price         string
	OriginalPrice string
	Discount      string
	Image         string
	URL           string
	Weight        string
	Brand         string
	OutOfStock    bool
}

// Base carries the acquisition mechanics adapters embed.
type Base struct {
	Platform string
	Options  Options
	Logger   *slog.Logger
	Renderer Renderer

	now func() time.Time
}

func NewBase(platform string, opts Options, logger *slog.Logger) *Base {
	ua := opts.UserAgent
	if ua == "" {
		ua = DefaultUserAgent
	}
	return &Base{
		Platform: platform,
		Options:  opts,
		Logger:   logger.With("source", platform),
		Renderer: &ChromeRenderer{
			UserAgent:       ua,
			NavigateTimeout: opts.RenderTimeout,
			WaitTimeout:     opts.WaitTimeout,
		},
		now: time.Now,
	}
}

// RandomDelay sleeps for a duration drawn uniformly from
// [BaseDelay, BaseDelay+Jitter] or until ctx is done.
func (b *Base) RandomDelay(ctx context.Context) error {
	d := b.Options.BaseDelay
	if b.Options.Jitter > 0 {
		d += time.Duration(rand.Int64N(int64(b.Options.Jitter) + 1))
	}
	return sleep(ctx, d)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// FetchDocument fetches url with retries and parses the body.
func (b *Base) FetchDocument(ctx context.Context, url string) (*goquery.Document, error) {
	body, err := b.Fetch(ctx, url, nil)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, models.Acquisition(b.Platform, url, errors.Wrap(err, "parse html"))
	}
	return doc, nil
}

// RenderDocument loads url in a fresh headless browser, waits for waitSelector and
// parses the rendered markup.
func (b *Base) RenderDocument(ctx context.Context, url, waitSelector string) (*goquery.Document, error) {
	if err := b.RandomDelay(ctx); err != nil {
		return nil, models.Acquisition(b.Platform, url, err)
	}

	b.Logger.Debug("rendering page", "url", url, "wait_for", waitSelector)
	html, err := b.Renderer.Render(ctx, url, waitSelector)
	if err != nil {
		return nil, models.Acquisition(b.Platform, url, err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, models.Acquisition(b.Platform, url, errors.Wrap(err, "parse rendered html"))
	}
	return doc, nil
}

// GenerateID derives a stable external id from the listing name.
func (b *Base) GenerateID(name string) string {
	return b.Platform + "_" + strings.ReplaceAll(NormalizeName(name), " ", "_")
}

// QueryFromID turns an id built by GenerateID back into a search query. ok is false
// when the id belongs to another platform.
func (b *Base) QueryFromID(externalID string) (string, bool) {
	rest, ok := strings.CutPrefix(externalID, b.Platform+"_")
	if !ok || rest == "" {
		return "", false
	}
	return strings.ReplaceAll(rest, "_", " "), true
}

// FindByID resolves a single listing by searching for its name and matching ids.
func (b *Base) FindByID(ctx context.Context, externalID string, search func(context.Context, string) ([]models.ProductRecord, error)) (*models.ProductRecord, error) {
	query, ok := b.QueryFromID(externalID)
	if !ok {
		return nil, nil
	}

	products, err := search(ctx, query)
	if err != nil {
		return nil, err
	}

	for i := range products {
		if products[i].ExternalID == externalID {
			return &products[i], nil
		}
	}
	return nil, nil
}

func (b *Base) FormatProduct(l Listing) models.ProductRecord {
	id := l.ID
	if id == "" {
		id = b.GenerateID(l.Name)
	}

	p := models.ProductRecord{
		SourceID:      b.Platform,
		ExternalID:    id,
		Name:          strings.TrimSpace(l.Name),
		Price:         ParsePrice(l.Price),
		OriginalPrice: models.NoPrice,
		DiscountLabel: strings.TrimSpace(l.Discount),
		ImageURL:      l.Image,
		DetailURL:     l.URL,
		InStock:       !l.OutOfStock,
		Weight:        strings.TrimSpace(l.Weight),
		Brand:         strings.TrimSpace(l.Brand),
		FetchedAt:     b.now().UTC(),
	}
	if l.OriginalPrice != "" {
		p.OriginalPrice = ParsePrice(l.OriginalPrice)
	}
	return p
}
