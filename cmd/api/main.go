package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	server "storefinder/internal/adapters/http_server"
	"storefinder/internal/adapters/observability"
	"storefinder/internal/app"
	"storefinder/internal/domain"
	"storefinder/internal/shared"
	mysqlrepo "storefinder/internal/storage/mysql"
)

func main() {
	cfg, err := shared.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}

	// set global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv, cfg.LogLevel)

	observability.Serve(cfg.MetricsAddr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cat, err := cfg.Catalog()
	if err != nil {
		log.Fatal().Err(err).Msg("catalog load failed")
	}

	cache, closeCache := cfg.StoreCache(ctx)
	defer closeCache()
	go cache.RunJanitor(ctx, cfg.JanitorInterval)

	provider, err := cfg.Provider(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("place provider init failed")
	}
	if provider == nil {
		log.Warn().Str("provider", cfg.PlacesProvider).Msg("no place provider; searches report degraded")
	}

	// analytics are optional
	h := &server.Handlers{}
	var rec domain.SearchRecorder
	var db *sql.DB
	if cfg.MySQLDSN != "" {
		db, err = mysqlrepo.Open(ctx, cfg.MySQLDSN)
		if err != nil {
			log.Error().Err(err).Msg("mysql unavailable; search analytics disabled")
		} else {
			repo := mysqlrepo.New(db)
			rec = repo
			h.Recorder = repo
			h.DB = repo
			log.Info().Msg("database connection ok")
		}
	}

	h.Search = app.NewSearchService(cat, cache, cfg.SearchOptions(provider, rec))

	// http
	srv := server.New(cfg.HTTPTimeout)
	reg := observability.InitRegistry()
	srv.Mount("/metrics", observability.MetricsHandler(reg))
	srv.MountHandlers(h)

	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.Mux(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("http shutdown failed")
		}
	}()

	log.Info().Str("addr", cfg.HTTPAddr).Int("catalog", cat.Len()).Msg("API listening")
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("http server failed")
	}
	if db != nil {
		_ = db.Close()
	}
	log.Info().Msg("API stopped")
}
