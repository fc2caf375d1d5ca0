package main

import (
	"context"
	"flag"
	"os"
	"path/filepath"
	"time"

	"mangalib/internal/catalog"
	"mangalib/pkg/database"
	"mangalib/pkg/logger"
	"mangalib/pkg/utils"
)

// export-csv dumps the document cache filled by the scraper and gateway.
func main() {
	configPath := flag.String("config", "", "config file (yaml)")
	out := flag.String("out", "data/documents.csv", "output CSV path")
	source := flag.String("source", "", "only this provider")
	category := flag.String("category", "", "only this category id")
	flag.Parse()

	cfg := utils.MustLoad(*configPath)
	logger.Init(cfg.LogLevel, true)
	log := logger.Component("export-csv")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db := database.MustOpen(database.Config{Path: cfg.DBPath})
	defer db.Close()

	if err := os.MkdirAll(filepath.Dir(*out), 0o755); err != nil {
		log.Fatal().Err(err).Msg("create output dir")
	}
	f, err := os.Create(*out)
	if err != nil {
		log.Fatal().Err(err).Msg("create output file")
	}
	defer f.Close()

	n, err := catalog.NewRepo(db).ExportCSV(ctx, f, catalog.ListQuery{Source: *source, CategoryID: *category})
	if err != nil {
		log.Fatal().Err(err).Msg("export failed")
	}
	log.Info().Int("documents", n).Str("out", *out).Msg("exported")
}
