package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"mangalib/internal/catalog"
	"mangalib/internal/livefeed"
	"mangalib/internal/metrics"
	"mangalib/internal/monitor"
	"mangalib/pkg/database"
	"mangalib/pkg/logger"
	"mangalib/pkg/utils"
)

func main() {
	configPath := flag.String("config", "", "config file (yaml)")
	flag.Parse()

	cfg := utils.MustLoad(*configPath)
	logger.Init(cfg.LogLevel, false)
	log := logger.Component("api-server")

	db := database.MustOpen(database.Config{Path: cfg.DBPath})
	defer db.Close()

	mon := monitor.New(cfg.Monitor.Capacity)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics.NewCallCollector(reg, "mangalib", "api-server", mon)

	hub := livefeed.NewHub(mon, logger.Component("livefeed"))

	if !cfg.Debug.ConsoleLogs {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	_ = router.SetTrustedProxies([]string{"127.0.0.1"})

	router.GET("/health", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		feed := hub.Stats()
		body := gin.H{
			"status":      "ok",
			"db":          "ok",
			"upstream":    mon.Health(cfg.Monitor.HealthWindow),
			"tcp_clients": feed.TCPClients,
			"ws_clients":  feed.WSClients,
		}
		if err := db.PingContext(ctx); err != nil {
			body["status"] = "degraded"
			body["db"] = err.Error()
			c.JSON(http.StatusServiceUnavailable, body)
			return
		}
		c.JSON(http.StatusOK, body)
	})

	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})))
	router.GET("/ws", livefeed.WSHandler(hub))

	agg := catalog.NewFromConfig(cfg, mon, logger.Component("catalog"))
	catalog.NewHandler(agg, catalog.NewRepo(db), logger.Component("catalog")).
		RegisterRoutes(router.Group("/catalog"))

	monHandler := &monitor.Handler{
		Mon:        mon,
		Window:     cfg.Monitor.HealthWindow,
		AllowClear: cfg.Debug.APIMonitor,
		OnClear:    hub.Cleared,
	}
	monHandler.RegisterRoutes(router.Group("/monitor"))

	httpSrv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 2)
	var wg sync.WaitGroup

	if cfg.Server.FeedAddr != "" {
		tcpSrv := livefeed.NewServer(cfg.Server.FeedAddr, hub)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := tcpSrv.Run(ctx); err != nil {
				errCh <- err
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info().Str("addr", cfg.Server.Addr).Str("env", string(cfg.Env)).Msg("HTTP gateway listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("shutdown signal received")
	case err := <-errCh:
		log.Error().Err(err).Msg("server error")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	cancel()

	wg.Wait()
	log.Info().Msg("servers stopped")
}
