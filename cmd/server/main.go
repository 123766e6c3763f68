package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/autoguard/cloak/internal/api"
	cacheredis "github.com/autoguard/cloak/internal/cache/redis"
	"github.com/autoguard/cloak/internal/config"
	"github.com/autoguard/cloak/internal/decision"
	"github.com/autoguard/cloak/internal/intelligence"
	"github.com/autoguard/cloak/internal/materializer"
	"github.com/autoguard/cloak/internal/pkg/logger"
	"github.com/autoguard/cloak/internal/queue"
	"github.com/autoguard/cloak/internal/store/postgres"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.LoadFromEnv(*configPath)
	if err != nil {
		logger.Error("server: load config failed", "error", err.Error())
		os.Exit(1)
	}
	logger.SetLevel(logger.ParseLevel(cfg.Logging.Level))

	store, err := postgres.Open(cfg.Postgres)
	if err != nil {
		logger.Error("server: connect postgres failed", "error", err.Error())
		os.Exit(1)
	}
	defer store.DB.Close()

	bootCtx, bootCancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := store.EnsureDefaultSettings(bootCtx); err != nil {
		logger.Error("server: seed default settings failed", "error", err.Error())
		bootCancel()
		os.Exit(1)
	}
	bootCancel()

	rdb, err := cacheredis.NewClient(cfg.Redis)
	if err != nil {
		logger.Error("server: connect redis failed", "error", err.Error())
		os.Exit(1)
	}
	defer rdb.Close()

	var intel decision.IPIntel
	if cfg.GeoIP.CityDBPath != "" {
		mm, err := intelligence.Open(cfg.GeoIP.CityDBPath, cfg.GeoIP.ASNDBPath)
		if err != nil {
			logger.Error("server: open maxmind databases failed", "error", err.Error())
			os.Exit(1)
		}
		defer mm.Close()
		intel = mm
	} else {
		logger.Warn("server: GEOIP_CITY_DB not set, IP intelligence disabled")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	settings, err := decision.NewSettings(ctx, store, cfg.Decision.SettingsCacheTTL())
	if err != nil {
		logger.Error("server: build settings cache failed", "error", err.Error())
		os.Exit(1)
	}
	go settings.StartRefreshLoop(ctx)

	engine := decision.NewEngine(rdb, settings, intel)
	mat := materializer.New(store, rdb)

	pageQueue := queue.New(rdb, cacheredis.QueuePageGeneration)
	domainQueue := queue.New(rdb, cacheredis.QueueDomainVerify)
	syncQueue := queue.New(rdb, cacheredis.QueueBlacklistSync)

	handlers := api.NewHandlers(store, rdb, engine, mat, pageQueue, domainQueue, syncQueue)
	healthChecker := api.NewHealthChecker(store, rdb, mat.LastRun)
	server := api.NewServer(cfg.Server, handlers, healthChecker)

	go func() {
		logger.Info("server: listening", "host", cfg.Server.GetHost(), "port", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server: listen failed", "error", err.Error())
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("server: shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server: graceful shutdown failed", "error", err.Error())
	}

	logger.Info("server: stopped")
}
