package blinkit

import (
	"context"
	"log/slog"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"hunter-compare/pkg/models"
	"hunter-compare/pkg/scrapers"
)

const (
	ID      = "blinkit"
	Name    = "Blinkit"
	BaseURL = "https://blinkit.com"

	productSelector = ".Product__UpdatedC"
)

// Scraper reads Blinkit search results. The listing grid is built client side, so
// pages go through the headless renderer.
type Scraper struct {
	*scrapers.Base
	BaseURL string
}

func NewScraper(baseURL string, opts scrapers.Options, logger *slog.Logger) *Scraper {
	if baseURL == "" {
		baseURL = BaseURL
	}
	return &Scraper{
		Base:    scrapers.NewBase(ID, opts, logger),
		BaseURL: strings.TrimRight(baseURL, "/"),
	}
}

func (s *Scraper) ID() string   { return ID }
func (s *Scraper) Name() string { return Name }

func (s *Scraper) SearchURL(query string) string {
	return s.BaseURL + "/s/?q=" + url.QueryEscape(query)
}

func (s *Scraper) SearchProducts(ctx context.Context, query string) ([]models.ProductRecord, error) {
	doc, err := s.RenderDocument(ctx, s.SearchURL(query), productSelector)
	if err != nil {
		return nil, err
	}

	products := s.parse(doc)
	s.Logger.Info("Found products", "query", query, "count", len(products))
	return products, nil
}

func (s *Scraper) GetProductDetails(ctx context.Context, externalID string) (*models.ProductRecord, error) {
	return s.FindByID(ctx, externalID, s.SearchProducts)
}

func (s *Scraper) parse(doc *goquery.Document) []models.ProductRecord {
	var products []models.ProductRecord

	doc.Find(productSelector).Each(func(i int, tile *goquery.Selection) {
		name := strings.TrimSpace(tile.Find(".Product__UpdatedTitle").First().Text())
		price := strings.TrimSpace(tile.Find(".Product__UpdatedPrice").First().Text())
		if name == "" || price == "" {
			s.Logger.Debug("skipping incomplete tile", "index", i)
			return
		}

		l := scrapers.Listing{
			Name:          name,
			Price:         price,
			OriginalPrice: strings.TrimSpace(tile.Find(".Product__UpdatedOriginalPrice").First().Text()),
			Discount:      tile.Find(".Product__UpdatedDiscount").First().Text(),
			Weight:        tile.Find(".Product__UpdatedWeight").First().Text(),
			OutOfStock:    tile.Find(".Product__UpdatedOutOfStock").Length() > 0,
		}
		if src, ok := tile.Find("img[src]").First().Attr("src"); ok {
			l.Image = s.resolve(src)
		}
		if href, ok := tile.Find("a[href]").First().Attr("href"); ok {
			l.URL = s.resolve(href)
		} else if href, ok := tile.Closest("a[href]").Attr("href"); ok {
			l.URL = s.resolve(href)
		}

		products = append(products, s.FormatProduct(l))
	})

	return products
}

func (s *Scraper) resolve(ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	base, err := url.Parse(s.BaseURL + "/")
	if err != nil {
		return ref
	}
	u, err := base.Parse(ref)
	if err != nil {
		return ref
	}
	return u.String()
}
