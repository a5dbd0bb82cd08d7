package lidl

import (
	"context"
	"fmt"
	"html"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hunter-compare/pkg/models"
	"hunter-compare/pkg/scrapers"
)

func gridTile(data string) string {
	return fmt.Sprintf(`<div class="product-grid-box" data-grid-data="%s"></div>`, html.EscapeString(data))
}

func newTestScraper(baseURL string) *Scraper {
	opts := scrapers.Options{MaxRetries: 1, RequestTimeout: 2 * time.Second, UserAgent: "hunter-test"}
	return NewScraper(baseURL, opts, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestScraper_SearchProducts(t *testing.T) {
	var gotQuery string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/q/search", r.URL.Path)
		gotQuery = r.URL.Query().Get("q")

		fmt.Fprintf(w, "<html><body>%s%s%s%s</body></html>",
			gridTile(`{"fullTitle":"Vitasia Nori Lachs","price":{"price":4.99,"oldPrice":6.99,"discount":{"discountText":"-28%"}},"image":"https://imgproxy.lidl.at/nori.jpg","canonicalUrl":"/p/vitasia-nori-lachs/p10045033","brand":{"name":"Vitasia"},"stockAvailability":{"availabilityIndicator":2}}`),
			gridTile(`{"fullTitle":"Milbona Frische Vollmilch","price":{"price":1.19},"canonicalUrl":"/p/milbona/p1","stockAvailability":{"availabilityIndicator":0}}`),
			gridTile(`{not json`),
			gridTile(`{"fullTitle":"Parkside Akku","price":{}}`),
		)
	}))
	defer ts.Close()

	s := newTestScraper(ts.URL)
	products, err := s.SearchProducts(context.Background(), "nori lachs")
	require.NoError(t, err)
	assert.Equal(t, "nori lachs", gotQuery)
	require.Len(t, products, 3, "invalid tiles are skipped, not fatal")

	nori := products[0]
	assert.Equal(t, "lidl", nori.SourceID)
	assert.Equal(t, "lidl_vitasia_nori_lachs", nori.ExternalID)
	assert.Equal(t, "4.99", nori.Price.Decimal.String())
	assert.Equal(t, "6.99", nori.OriginalPrice.Decimal.String())
	assert.Equal(t, "-28%", nori.DiscountLabel)
	assert.Equal(t, "Vitasia", nori.Brand)
	assert.Equal(t, ts.URL+"/p/vitasia-nori-lachs/p10045033", nori.DetailURL)
	assert.Equal(t, "https://imgproxy.lidl.at/nori.jpg", nori.ImageURL)
	assert.True(t, nori.InStock)

	milk := products[1]
	assert.Equal(t, "1.19", milk.Price.Decimal.String())
	assert.False(t, milk.OriginalPrice.Valid)
	assert.False(t, milk.InStock)

	drill := products[2]
	assert.False(t, drill.HasPrice())
	assert.True(t, drill.InStock)
}

func TestScraper_TextFallback(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body>
<div class="product-grid-box">
  <a href="/p/milbona-butter/p55"><img src="/img/butter.jpg"></a>
  <div class="product-grid-box__title">Milbona Butter</div>
  <div class="product-grid-box__brand">Milbona</div>
  <div class="m-price__label">AKTION</div>
  <div class="m-price__rrp">3,49 €</div>
  <div class="m-price__price">2,79 €</div>
</div>
<div class="product-grid-box">
  <div class="product-grid-box__title">Grillkohle</div>
  <div class="m-price__price">1.299,00</div>
</div>
<div class="product-grid-box">
  <div class="product-grid-box__title">Bald verfügbar</div>
</div>
</body></html>`)
	}))
	defer ts.Close()

	products, err := newTestScraper(ts.URL).SearchProducts(context.Background(), "butter")
	require.NoError(t, err)
	require.Len(t, products, 2, "tile without price text is skipped")

	butter := products[0]
	assert.Equal(t, "Milbona Butter", butter.Name)
	assert.Equal(t, "2.79", butter.Price.Decimal.String())
	assert.Equal(t, "3.49", butter.OriginalPrice.Decimal.String())
	assert.Equal(t, "AKTION", butter.DiscountLabel)
	assert.Equal(t, "Milbona", butter.Brand)
	assert.Equal(t, ts.URL+"/p/milbona-butter/p55", butter.DetailURL)
	assert.Equal(t, ts.URL+"/img/butter.jpg", butter.ImageURL)

	assert.Equal(t, "1299", products[1].Price.Decimal.String())
}

func TestScraper_UpstreamFailure(t *testing.T) {
	var hits atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer ts.Close()

	_, err := newTestScraper(ts.URL).SearchProducts(context.Background(), "milch")
	require.Error(t, err)

	var acqErr *models.AcquisitionError
	require.True(t, errors.As(err, &acqErr))
	assert.Equal(t, ID, acqErr.Source)
	assert.Equal(t, int32(2), hits.Load())
}

func TestScraper_GetProductDetails(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "<html><body>%s</body></html>",
			gridTile(`{"fullTitle":"Vitasia Nori Lachs","price":{"price":4.99}}`))
	}))
	defer ts.Close()

	s := newTestScraper(ts.URL)

	p, err := s.GetProductDetails(context.Background(), "lidl_vitasia_nori_lachs")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "4.99", p.Price.Decimal.String())

	p, err = s.GetProductDetails(context.Background(), "lidl_sushi_reis")
	require.NoError(t, err)
	assert.Nil(t, p)
}
