package cmd

import (
	"log/slog"
	"sort"

	"hunter-compare/pkg/config"
	"hunter-compare/pkg/scrapers"
	"hunter-compare/pkg/scrapers/blinkit"
	"hunter-compare/pkg/scrapers/hofer"
	"hunter-compare/pkg/scrapers/lidl"
)

type sourceFactory func(baseURL string, opts scrapers.Options, l *slog.Logger) scrapers.Source

var registry = map[string]sourceFactory{
	blinkit.ID: func(baseURL string, opts scrapers.Options, l *slog.Logger) scrapers.Source {
		return blinkit.NewScraper(baseURL, opts, l)
	},
	lidl.ID: func(baseURL string, opts scrapers.Options, l *slog.Logger) scrapers.Source {
		return lidl.NewScraper(baseURL, opts, l)
	},
	hofer.ID: func(baseURL string, opts scrapers.Options, l *slog.Logger) scrapers.Source {
		return hofer.NewScraper(baseURL, opts, l)
	},
}

// buildSources instantiates every enabled source named in the config. Unknown names
// are logged and skipped.
func buildSources(c *config.Config, l *slog.Logger) map[string]scrapers.Source {
	opts := scrapers.OptionsFromConfig(c.Scraping)
	sources := make(map[string]scrapers.Source)

	names := make([]string, 0, len(c.Sources))
	for name := range c.Sources {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		sc := c.Sources[name]
		if !sc.Enabled {
			continue
		}
		factory, ok := registry[name]
		if !ok {
			l.Warn("unknown source in config", "source", name)
			continue
		}
		sources[name] = factory(sc.BaseURL, opts, l)
	}
	return sources
}
