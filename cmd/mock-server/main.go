package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"mangalib/internal/mockapi"
	"mangalib/pkg/database"
	"mangalib/pkg/logger"
	"mangalib/pkg/utils"
)

// mock-server answers the "mock" API profile on localhost:9000/api.
func main() {
	configPath := flag.String("config", "", "config file (yaml)")
	dbPath := flag.String("db", "", "sqlite file (default: mock.db next to the main database)")
	adminPassword := flag.String("admin-password", "admin123", "password of the seeded admin account")
	flag.Parse()

	cfg := utils.MustLoad(*configPath)
	logger.Init(cfg.LogLevel, false)
	log := logger.Component("mock-server")

	path := *dbPath
	if path == "" {
		path = cfg.DBPath + ".mock"
	}
	db := database.MustOpen(database.Config{Path: path})
	defer db.Close()

	repo := mockapi.NewRepo(db)
	if err := mockapi.Seed(context.Background(), repo, *adminPassword, log); err != nil {
		log.Fatal().Err(err).Msg("seed failed")
	}

	tokens := mockapi.TokenService{
		Secret:   []byte(cfg.Auth.JWTSecret),
		Issuer:   cfg.Auth.JWTIssuer,
		Duration: cfg.Auth.JWTDuration,
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "db": path})
	})
	mockapi.NewHandler(repo, tokens, log).RegisterRoutes(router.Group("/api"))

	srv := &http.Server{Addr: cfg.Server.MockAddr, Handler: router, ReadHeaderTimeout: 10 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Server.MockAddr).Str("db", path).Msg("mock backend listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
	case err := <-errCh:
		log.Error().Err(err).Msg("server error")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("shutdown")
	}
}
