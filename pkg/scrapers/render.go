package scrapers

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/go-faster/errors"
)

// Renderer returns the markup of a page after its scripts have run.
type Renderer interface {
	Render(ctx context.Context, url, waitSelector string) (string, error)
}

// ChromeRenderer starts a dedicated headless Chrome for every call and shuts it
// down before returning, on success and on every failure path.
type ChromeRenderer struct {
	UserAgent       string
	NavigateTimeout time.Duration
	WaitTimeout     time.Duration
	// ExecPath overrides Chrome discovery.
	ExecPath string
}

func (r *ChromeRenderer) Render(ctx context.Context, url, waitSelector string) (string, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.UserAgent(r.UserAgent),
		chromedp.WindowSize(1920, 1080),
		chromedp.NoSandbox,
		chromedp.Flag("disable-setuid-sandbox", true),
	)
	if r.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(r.ExecPath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	browserCtx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	navTimeout := r.NavigateTimeout
	if navTimeout <= 0 {
		navTimeout = 30 * time.Second
	}
	scrapeCtx, cancelScrape := context.WithTimeout(browserCtx, navTimeout)
	defer cancelScrape()

	if err := chromedp.Run(scrapeCtx, navigateAndWaitIdle(url)); err != nil {
		return "", errors.Wrap(err, "navigate")
	}

	if waitSelector != "" {
		waitTimeout := r.WaitTimeout
		if waitTimeout <= 0 {
			waitTimeout = 10 * time.Second
		}
		waitCtx, cancelWait := context.WithTimeout(scrapeCtx, waitTimeout)
		defer cancelWait()

		if err := chromedp.Run(waitCtx, chromedp.WaitVisible(waitSelector, chromedp.ByQuery)); err != nil {
			return "", errors.Wrapf(err, "wait for %q", waitSelector)
		}
	}

	var html string
	if err := chromedp.Run(scrapeCtx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", errors.Wrap(err, "extract html")
	}
	return html, nil
}

// navigateAndWaitIdle navigates and blocks until Chrome reports the networkIdle
// lifecycle event for the new document.
func navigateAndWaitIdle(url string) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		idle := make(chan struct{})
		var once sync.Once
		var navigating atomic.Bool

		listenCtx, cancel := context.WithCancel(ctx)
		defer cancel()

		chromedp.ListenTarget(listenCtx, func(ev any) {
			e, ok := ev.(*page.EventLifecycleEvent)
			if !ok || e.Name != "networkIdle" || !navigating.Load() {
				return
			}
			once.Do(func() { close(idle) })
		})

		if err := page.SetLifecycleEventsEnabled(true).Do(ctx); err != nil {
			return errors.Wrap(err, "enable lifecycle events")
		}

		navigating.Store(true)
		if err := chromedp.Navigate(url).Do(ctx); err != nil {
			return err
		}

		select {
		case <-idle:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
}
