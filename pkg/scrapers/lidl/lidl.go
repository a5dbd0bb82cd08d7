package lidl

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/shopspring/decimal"

	"hunter-compare/pkg/models"
	"hunter-compare/pkg/scrapers"
)

const (
	ID      = "lidl"
	Name    = "Lidl"
	BaseURL = "https://www.lidl.at"
)

// Scraper reads Lidl search results. The result page is server rendered and each
// tile carries its data as JSON in a data-grid-data attribute.
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
	return s.BaseURL + "/q/search?q=" + url.QueryEscape(query)
}

type gridData struct {
	FullTitle string `json:"fullTitle"`
	Image     string `json:"image"`
	URL       string `json:"canonicalUrl"`
	Price     struct {
		Price    decimal.NullDecimal `json:"price"`
		OldPrice decimal.NullDecimal `json:"oldPrice"`
		Discount struct {
			Text string `json:"discountText"`
		} `json:"discount"`
	} `json:"price"`
	Brand struct {
		Name string `json:"name"`
	} `json:"brand"`
	Stock *struct {
		Indicator *int `json:"availabilityIndicator"`
	} `json:"stockAvailability"`
}

func (s *Scraper) SearchProducts(ctx context.Context, query string) ([]models.ProductRecord, error) {
	doc, err := s.FetchDocument(ctx, s.SearchURL(query))
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

	tiles := doc.Find("[data-grid-data]")
	if tiles.Length() == 0 {
		return s.parseText(doc)
	}

	tiles.Each(func(i int, tile *goquery.Selection) {
		raw, _ := tile.Attr("data-grid-data")

		var data gridData
		if err := json.Unmarshal([]byte(raw), &data); err != nil {
			s.Logger.Debug("skipping tile with invalid grid data", "index", i, "error", err)
			return
		}
		if strings.TrimSpace(data.FullTitle) == "" {
			return
		}

		l := scrapers.Listing{
			Name:     data.FullTitle,
			Discount: data.Price.Discount.Text,
			Image:    s.resolve(data.Image),
			URL:      s.resolve(data.URL),
			Brand:    data.Brand.Name,
		}
		if data.Price.Price.Valid {
			l.Price = data.Price.Price.Decimal.String()
		}
		if data.Price.OldPrice.Valid {
			l.OriginalPrice = data.Price.OldPrice.Decimal.String()
		}
		// An explicit zero indicator means sold out; a missing one is not evidence.
		if data.Stock != nil && data.Stock.Indicator != nil && *data.Stock.Indicator == 0 {
			l.OutOfStock = true
		}

		products = append(products, s.FormatProduct(l))
	})

	return products
}

// parseText handles result pages without grid data.
func (s *Scraper) parseText(doc *goquery.Document) []models.ProductRecord {
	var products []models.ProductRecord

	doc.Find(".product-grid-box").Each(func(i int, tile *goquery.Selection) {
		name := strings.TrimSpace(tile.Find(".product-grid-box__title").First().Text())
		price := strings.TrimSpace(tile.Find(".m-price__price").First().Text())
		if name == "" || price == "" {
			s.Logger.Debug("skipping incomplete tile", "index", i)
			return
		}

		l := scrapers.Listing{
			Name:          name,
			Price:         scrapers.CommaDecimal(price),
			OriginalPrice: scrapers.CommaDecimal(tile.Find(".m-price__rrp, .ods-price__stroke-price").First().Text()),
			Discount:      tile.Find(".m-price__label").First().Text(),
			Brand:         tile.Find(".product-grid-box__brand").First().Text(),
		}
		if src, ok := tile.Find("img[src]").First().Attr("src"); ok {
			l.Image = s.resolve(src)
		}
		if href, ok := tile.Find("a[href]").First().Attr("href"); ok {
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
