package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	appcfg "github.com/park285/dama-table/internal/config"
	"github.com/park285/dama-table/internal/identity"
	"github.com/park285/dama-table/internal/metrics"
	"github.com/park285/dama-table/internal/msgcat"
	"github.com/park285/dama-table/internal/obslog"
	"github.com/park285/dama-table/internal/preview"
	"github.com/park285/dama-table/internal/server"
	"github.com/park285/dama-table/internal/store"
	"github.com/park285/dama-table/internal/table"
	"go.uber.org/zap"
)

func main() {
	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer func() { _ = obslog.L().Sync() }()
	logger := obslog.L()

	catalog, err := msgcat.New(cfg.MessagesFile)
	if err != nil {
		logger.Fatal("message catalog error", zap.Error(err))
	}

	verifier, err := identity.New(identity.Options{
		Mode:    cfg.IdentityMode,
		Secret:  cfg.JWTSecret,
		URL:     cfg.IdentityURL,
		Timeout: cfg.IdentityTimeout,
	})
	if err != nil {
		logger.Fatal("identity init error", zap.Error(err))
	}

	octx, ocancel := context.WithTimeout(context.Background(), 10*time.Second)
	st, err := store.Open(octx, store.Options{
		Backend:     cfg.StoreBackend,
		RedisURL:    cfg.RedisURL,
		DatabaseURL: cfg.DatabaseURL,
	})
	ocancel()
	if err != nil {
		logger.Fatal("store init error", zap.String("backend", cfg.StoreBackend), zap.Error(err))
	}
	defer func() { _ = st.Close() }()

	var m *metrics.Metrics
	if cfg.MetricsEnabled {
		m = metrics.New()
	}

	registry := table.NewRegistry(st, table.WithCatalog(catalog), table.WithMetrics(m))
	srv := server.New(server.Config{
		Registry:       registry,
		Store:          st,
		Verifier:       verifier,
		Catalog:        catalog,
		Metrics:        m,
		Preview:        preview.NewRenderer(56),
		SendQueueSize:  cfg.SendQueueSize,
		RatePerSec:     cfg.RelayRatePerSec,
		RateBurst:      cfg.RelayRateBurst,
		AllowedOrigins: cfg.AllowedOrigins,
	})

	httpSrv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("table_server_listening",
			zap.String("addr", cfg.ListenAddr),
			zap.String("store", cfg.StoreBackend),
			zap.String("identity", cfg.IdentityMode))
		errCh <- httpSrv.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		logger.Info("shutdown_signal", zap.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http_server_error", zap.Error(err))
		}
	}

	sctx, scancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer scancel()
	if err := httpSrv.Shutdown(sctx); err != nil {
		logger.Warn("http_shutdown_error", zap.Error(err))
	}
	logger.Info("table_server_stopped", zap.Int("rooms", registry.Len()))
}
