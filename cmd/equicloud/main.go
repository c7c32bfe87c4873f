package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/equicloud/equicloud/internal/codec"
	"github.com/equicloud/equicloud/internal/config"
	"github.com/equicloud/equicloud/internal/data"
	"github.com/equicloud/equicloud/internal/health"
	"github.com/equicloud/equicloud/internal/httpapi"
	"github.com/equicloud/equicloud/internal/log"
	"github.com/equicloud/equicloud/internal/metrics"
	"github.com/equicloud/equicloud/internal/oauth"
	"github.com/equicloud/equicloud/internal/settings"
	"github.com/equicloud/equicloud/internal/storage"
	"github.com/equicloud/equicloud/internal/sync"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "equicloud: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: true})
	log.Logger.Info().Msg("equicloud: starting")

	store, err := storage.NewScyllaStore(storage.ScyllaConfig{
		Hosts:          strings.Split(cfg.ScyllaURI, ","),
		Keyspace:       "equicloud",
		Username:       cfg.ScyllaUsername,
		Password:       cfg.ScyllaPassword,
		ConnectTimeout: cfg.ScyllaConnTimeoutMS,
		PoolSize:       cfg.ScyllaPoolSize,
	})
	if err != nil {
		return fmt.Errorf("connect to scylla: %w", err)
	}
	defer store.Close()

	c := codec.New(cfg.CompressionEnabled, cfg.CompressionLevel)

	settingsSvc := settings.New(store)
	dataSvc := data.New(store, c)
	syncEngine := sync.New(store, dataSvc, sync.Limits{
		MaxPerKeyBytes:   cfg.MaxKeySizeBytes,
		MaxBackupBytes:   cfg.MaxBackupSizeBytes,
		DatastoreEnabled: cfg.DatastoreEnabled,
	})
	exchanger := oauth.NewDiscordExchanger(
		cfg.DiscordClientID, cfg.DiscordClientSecret, cfg.RedirectURI(), cfg.DiscordAllowedUserIDs,
	)

	router := httpapi.NewRouter(httpapi.Deps{
		Config:    cfg,
		Settings:  settingsSvc,
		Data:      dataSvc,
		Sync:      syncEngine,
		Exchanger: exchanger,
	})

	if cfg.MetricsEnabled {
		collector := metrics.NewCollector(store)
		collector.Start()
		defer collector.Stop()
	}

	probeCtx, stopProbe := context.WithCancel(context.Background())
	defer stopProbe()
	probe := health.NewProbe(store, func(code int) {
		log.Logger.Fatal().Int("code", code).Msg("equicloud: health probe exhausted retries, exiting")
		os.Exit(code)
	})
	go probe.Run(probeCtx)

	addr := cfg.ServerHost + ":" + strconv.Itoa(cfg.ServerPort)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Logger.Info().Str("addr", addr).Msg("equicloud: listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		log.Logger.Info().Msg("equicloud: shutting down")
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}

	stopProbe()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	log.Logger.Info().Msg("equicloud: shutdown complete")
	return nil
}
