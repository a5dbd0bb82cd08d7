package scrapers

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/gocolly/colly/v2"
	"github.com/gocolly/colly/v2/extensions"

	"hunter-compare/pkg/models"
)

var browserHeaders = map[string]string{
	"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
	"Accept-Language": "en-US,en;q=0.5",
	"Cache-Control":   "no-cache",
}

// Fetch issues a GET with browser-like headers. Each attempt is preceded by the
// randomized delay; failed attempts are retried up to MaxRetries times with a
// backoff of BaseDelay*attempt.
func (b *Base) Fetch(ctx context.Context, url string, headers map[string]string) ([]byte, error) {
	var err error

	for attempt := 0; attempt <= b.Options.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := b.Options.BaseDelay * time.Duration(attempt)
			b.Logger.Warn("request failed, retrying",
				"url", url,
				"attempt", attempt,
				"backoff", backoff,
				"error", err,
			)
			if serr := sleep(ctx, backoff); serr != nil {
				return nil, models.Acquisition(b.Platform, url, serr)
			}
		}

		if serr := b.RandomDelay(ctx); serr != nil {
			return nil, models.Acquisition(b.Platform, url, serr)
		}

		var body []byte
		body, err = b.fetchOnce(ctx, url, headers)
		if err == nil {
			return body, nil
		}
	}

	return nil, models.Acquisition(b.Platform, url,
		errors.Wrapf(err, "after %d attempts", b.Options.MaxRetries+1))
}

func (b *Base) fetchOnce(ctx context.Context, url string, headers map[string]string) ([]byte, error) {
	c := colly.NewCollector(
		colly.StdlibContext(ctx),
		colly.AllowURLRevisit(),
	)
	if b.Options.UserAgent != "" {
		c.UserAgent = b.Options.UserAgent
	} else {
		extensions.RandomUserAgent(c)
	}
	if b.Options.RequestTimeout > 0 {
		c.SetRequestTimeout(b.Options.RequestTimeout)
	}

	c.OnRequest(func(r *colly.Request) {
		for k, v := range browserHeaders {
			r.Headers.Set(k, v)
		}
		for k, v := range headers {
			r.Headers.Set(k, v)
		}
	})

	var body []byte
	c.OnResponse(func(r *colly.Response) {
		body = r.Body
	})

	b.Logger.Debug("fetching", "url", url)
	if err := c.Visit(url); err != nil {
		return nil, err
	}
	return body, nil
}
