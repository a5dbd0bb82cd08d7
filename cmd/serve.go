package cmd

import (
	"context"
	"net"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/go-faster/errors"
	"github.com/spf13/cobra"

	"hunter-compare/pkg/api"
	"hunter-compare/pkg/cache"
	"hunter-compare/pkg/compare"
	"hunter-compare/pkg/publisher"
	"hunter-compare/pkg/service"
	"hunter-compare/pkg/warmer"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	productCache := cache.New(ctx, cache.Config{
		RedisURL:         cfg.Cache.RedisURL,
		DBPath:           cfg.Cache.DBPath,
		MaxLocalEntries:  cfg.Cache.MaxLocalEntries,
		ConnectTimeout:   cfg.Cache.ConnectTimeout,
		RecoveryInterval: cfg.Cache.RecoveryInterval,
	}, log)
	defer productCache.Close()

	sources := buildSources(cfg, log)
	if len(sources) == 0 {
		return errors.New("no sources enabled")
	}
	agg := compare.NewAggregator(sources, cfg.Scraping.MaxConcurrent, log)

	svc := service.NewQueryService(productCache, agg, service.TTLs{
		Compare: cfg.Cache.CompareTTL,
		Search:  cfg.Cache.SearchTTL,
		Product: cfg.Cache.ProductTTL,
	}, log)

	if cfg.Publisher.URL != "" {
		pub, err := publisher.NewRabbitMQ(publisher.Config{
			URL:        cfg.Publisher.URL,
			Exchange:   cfg.Publisher.Exchange,
			RoutingKey: cfg.Publisher.RoutingKey,
			QueueName:  cfg.Publisher.QueueName,
		}, log)
		if err != nil {
			log.Warn("publisher disabled", "error", err)
		} else {
			defer pub.Close()
			svc.WithPublisher(pub)
		}
	}

	if len(cfg.Warmer.Queries) > 0 {
		w := warmer.New(warmer.Config{
			Schedule:  cfg.Warmer.Schedule,
			Queries:   cfg.Warmer.Queries,
			Platforms: service.ParsePlatforms(cfg.Warmer.Platforms),
			Timeout:   cfg.Warmer.Timeout,
		}, svc, log)
		if err := w.Start(); err != nil {
			return err
		}
		defer w.Stop()
	}

	handler := api.NewHandler(svc, productCache, cfg.Server.SpecDir, log)
	server := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           handler.Routes(),
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	if ip := outboundIP(); ip != nil {
		log.Info("local network URL", "url", "http://"+ip.String()+":"+cfg.Server.Port)
	}
	log.Info("server listening",
		"addr", server.Addr,
		"cache", productCache.Mode(),
		"sources", agg.SourceIDs(),
	)

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func outboundIP() net.IP {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		addrs, _ := net.InterfaceAddrs()
		for _, addr := range addrs {
			if ipnet, ok := addr.(*net.IPNet); ok && !ipnet.IP.IsLoopback() {
				if ipnet.IP.To4() != nil {
					return ipnet.IP
				}
			}
		}
		return nil
	}
	defer conn.Close()

	return conn.LocalAddr().(*net.UDPAddr).IP
}
