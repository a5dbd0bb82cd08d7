package hofer

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"hunter-compare/pkg/models"
	"hunter-compare/pkg/scrapers"
)

const (
	ID      = "hofer"
	Name    = "Hofer"
	BaseURL = "https://www.hofer.at"
)

// Scraper reads Hofer search results from the schema.org JSON-LD the shop embeds
// once its scripts have run.
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
	return s.BaseURL + "/de/suche.html?q=" + url.QueryEscape(query)
}

func (s *Scraper) SearchProducts(ctx context.Context, query string) ([]models.ProductRecord, error) {
	// JSON-LD scripts are never visible, so only the network-idle wait applies.
	doc, err := s.RenderDocument(ctx, s.SearchURL(query), "")
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

type jsonLD struct {
	Type            string          `json:"@type"`
	Name            string          `json:"name"`
	Image           json.RawMessage `json:"image"`
	URL             string          `json:"url"`
	Brand           json.RawMessage `json:"brand"`
	Offers          json.RawMessage `json:"offers"`
	ItemListElement []listElement   `json:"itemListElement"`
	Graph           []jsonLD        `json:"@graph"`
}

type listElement struct {
	jsonLD
	Item *jsonLD `json:"item"`
}

type offer struct {
	Price        json.RawMessage `json:"price"`
	LowPrice     json.RawMessage `json:"lowPrice"`
	Availability string          `json:"availability"`
	URL          string          `json:"url"`
}

func (s *Scraper) parse(doc *goquery.Document) []models.ProductRecord {
	var products []models.ProductRecord

	doc.Find(`script[type="application/ld+json"]`).Each(func(i int, script *goquery.Selection) {
		var node jsonLD
		if err := json.Unmarshal([]byte(script.Text()), &node); err != nil {
			s.Logger.Debug("skipping unreadable JSON-LD", "index", i, "error", err)
			return
		}
		for _, p := range collectProducts(node) {
			if strings.TrimSpace(p.Name) == "" {
				continue
			}
			products = append(products, s.FormatProduct(s.listing(p)))
		}
	})

	return products
}

func collectProducts(n jsonLD) []jsonLD {
	var out []jsonLD
	switch n.Type {
	case "Product":
		out = append(out, n)
	case "ItemList":
		for _, el := range n.ItemListElement {
			if el.Item != nil {
				out = append(out, collectProducts(*el.Item)...)
			} else {
				out = append(out, collectProducts(el.jsonLD)...)
			}
		}
	}
	for _, g := range n.Graph {
		out = append(out, collectProducts(g)...)
	}
	return out
}

func (s *Scraper) listing(p jsonLD) scrapers.Listing {
	l := scrapers.Listing{
		Name:  p.Name,
		Image: s.resolve(firstString(p.Image)),
		URL:   s.resolve(p.URL),
		Brand: brandName(p.Brand),
	}

	o, ok := firstOffer(p.Offers)
	if !ok {
		return l
	}
	price := o.Price
	if len(price) == 0 {
		price = o.LowPrice
	}
	l.Price = scrapers.CommaDecimal(strings.Trim(string(price), `"'`))
	if l.URL == "" {
		l.URL = s.resolve(o.URL)
	}

	avail := strings.ToLower(o.Availability)
	if strings.Contains(avail, "outofstock") || strings.Contains(avail, "soldout") {
		l.OutOfStock = true
	}
	return l
}

// firstOffer accepts a single Offer or an array of them.
func firstOffer(raw json.RawMessage) (offer, bool) {
	if len(raw) == 0 {
		return offer{}, false
	}
	var o offer
	if err := json.Unmarshal(raw, &o); err == nil {
		return o, true
	}
	var list []offer
	if err := json.Unmarshal(raw, &list); err == nil && len(list) > 0 {
		return list[0], true
	}
	return offer{}, false
}

func firstString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil && len(list) > 0 {
		return list[0]
	}
	return ""
}

func brandName(raw json.RawMessage) string {
	if name := firstString(raw); name != "" {
		return name
	}
	var b struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(raw, &b); err == nil {
		return b.Name
	}
	return ""
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
