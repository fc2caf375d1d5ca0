package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"mangalib/internal/catalog"
	"mangalib/internal/monitor"
	"mangalib/internal/scraper"
	"mangalib/pkg/database"
	"mangalib/pkg/logger"
	"mangalib/pkg/utils"
)

func main() {
	configPath := flag.String("config", "", "config file (yaml)")
	query := flag.String("q", "", "title query; empty lists the newest entries")
	limit := flag.Int("limit", 20, "page size per provider")
	pages := flag.Int("pages", 1, "pages to walk")
	details := flag.Int("details", 0, "documents to enrich with their chapter list")
	timeout := flag.Duration("timeout", 2*time.Minute, "overall deadline")
	flag.Parse()

	cfg := utils.MustLoad(*configPath)
	logger.Init(cfg.LogLevel, true)
	log := logger.Component("scraper")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	db := database.MustOpen(database.Config{Path: cfg.DBPath})
	defer db.Close()

	mon := monitor.New(cfg.Monitor.Capacity)
	agg := catalog.NewFromConfig(cfg, mon, logger.Component("catalog"))

	rep, err := scraper.New(agg, catalog.NewRepo(db), log).Run(ctx, scraper.Options{
		Query:   *query,
		Limit:   *limit,
		Pages:   *pages,
		Details: *details,
	})
	if err != nil {
		log.Error().Err(err).Msg("scrape failed")
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(map[string]any{"report": rep, "calls": mon.Stats()})
	if err != nil {
		os.Exit(1)
	}
	log.Info().Str("db", cfg.DBPath).Msg("document cache updated")
}
