package cmd

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"hunter-compare/pkg/cache"
	"hunter-compare/pkg/compare"
	"hunter-compare/pkg/service"
)

var (
	scrapePlatform string
	scrapeQuery    string
)

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Scrape one platform once and print the result as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		agg := compare.NewAggregator(buildSources(cfg, log), cfg.Scraping.MaxConcurrent, log)
		// Scrapes bypass the cache; a local map satisfies the service.
		svc := service.NewQueryService(cache.NewWithBackend(nil, "", 0, log), agg, service.TTLs{}, log)

		result, err := svc.Scrape(cmd.Context(), scrapePlatform, scrapeQuery)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func init() {
	scrapeCmd.Flags().StringVarP(&scrapePlatform, "platform", "p", "", "Platform id, e.g. blinkit")
	scrapeCmd.Flags().StringVarP(&scrapeQuery, "query", "q", "", "Search query")
	scrapeCmd.MarkFlagRequired("platform")
	scrapeCmd.MarkFlagRequired("query")
	rootCmd.AddCommand(scrapeCmd)
}
