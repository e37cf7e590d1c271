package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mmcdole/drinks/internal/config"
	"github.com/mmcdole/drinks/internal/domain"
	"github.com/mmcdole/drinks/internal/log"
	"github.com/mmcdole/drinks/internal/offline"
	"github.com/mmcdole/drinks/internal/store"
)

// Version is set at build time via -ldflags
var Version = "dev"

const shutdownTimeout = 5 * time.Second

func main() {
	var (
		showVersion bool
		configPath  string
		toStderr    bool
	)
	flag.BoolVar(&showVersion, "v", false, "print version")
	flag.BoolVar(&showVersion, "version", false, "print version")
	flag.StringVar(&configPath, "config", "", "path to config file")
	flag.BoolVar(&toStderr, "stderr", false, "log to stderr instead of the log file")
	flag.Parse()

	if showVersion {
		fmt.Printf("drinks-proxy %s\n", Version)
		return
	}

	if err := run(configPath, toStderr); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string, toStderr bool) error {
	changes := make(chan *config.Config, 8)
	reloadErrs := make(chan error, 8)
	cfg, err := config.WatchFrom(configPath,
		func(c *config.Config) { offer(changes, c) },
		func(err error) { offer(reloadErrs, err) })
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Proxy.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger, closer, err := setupLogger(cfg, toStderr)
	if err != nil {
		return err
	}
	defer closer.Close()
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pc := cfg.Proxy
	logger.Info("starting drinks-proxy", "version", Version, "origin", pc.Origin, "cache_version", pc.Version)

	storage, err := openStorage(ctx, pc.Storage)
	if err != nil {
		return err
	}
	defer storage.Close()

	fetcher := offline.NewNetworkFetcher(offline.FetcherOptions{
		Timeout:              pc.Network.Timeout,
		Retries:              pc.Network.Retries,
		MaxRequestsPerSecond: pc.Network.MaxRequestsPerSecond,
	}, logger)
	defer fetcher.Close()

	hub := offline.NewHub(logger)

	proxy, err := offline.New(offline.Options{
		Origin:              pc.Origin,
		CachePrefix:         pc.CachePrefix,
		Version:             pc.Version,
		EntryPage:           pc.EntryPage,
		StaticAssets:        pc.StaticAssets,
		AllowedOrigins:      pc.AllowedOrigins,
		DiscoverAssets:      pc.DiscoverAssets,
		AutoActivateUpdates: pc.AutoActivateUpdates,
		OfflineMessage:      pc.OfflineMessage,
	}, storage, fetcher, hub, logger)
	if err != nil {
		return fmt.Errorf("failed to create proxy: %w", err)
	}

	// Requests pass through until the install succeeds, so serve right away
	go func() {
		if err := proxy.InstallWithRetry(ctx, offline.DefaultBackoff); err != nil {
			logger.Info("install abandoned", "error", err)
		}
	}()
	go watchReleases(ctx, proxy, pc, changes, reloadErrs, logger)

	gin.SetMode(gin.ReleaseMode)
	srv := &http.Server{
		Addr:              pc.Listen,
		Handler:           offline.NewServer(proxy, hub, logger).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", pc.Listen)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// watchReleases installs a new release whenever the config file changes
// the cache version or asset list. Changes are applied one at a time.
func watchReleases(ctx context.Context, proxy *offline.Proxy, current config.ProxyConfig,
	changes <-chan *config.Config, reloadErrs <-chan error, logger *slog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case err := <-reloadErrs:
			logger.Warn("ignoring config change", "error", err)
		case cfg := <-changes:
			next := cfg.Proxy
			if !next.ReleaseChanged(&current) {
				continue
			}
			logger.Info("release changed", "version", next.Version, "previous", current.Version)
			if err := proxy.SetRelease(ctx, next.Version, next.StaticAssets); err != nil {
				// Saving the file again retries
				logger.Error("failed to install release", "version", next.Version, "error", err)
				continue
			}
			current = next
		}
	}
}

// offer sends v without blocking the config watcher; a full queue drops it
func offer[T any](ch chan<- T, v T) {
	select {
	case ch <- v:
	default:
	}
}

func setupLogger(cfg *config.Config, toStderr bool) (*slog.Logger, io.Closer, error) {
	if toStderr {
		return log.New(os.Stderr, cfg.Logging.Level), io.NopCloser(nil), nil
	}
	logger, closer, err := log.SetupLogger(&cfg.Logging)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to set up logging: %w", err)
	}
	return logger, closer, nil
}

func openStorage(ctx context.Context, sc config.StorageConfig) (domain.CacheStorage, error) {
	switch sc.Backend {
	case config.StorageRedis:
		s, err := store.NewRedisCacheStore(ctx, store.RedisOptions{
			Addr:     sc.Redis.Addr,
			Password: sc.Redis.Password,
			DB:       sc.Redis.DB,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		return s, nil
	default:
		s, err := store.NewCacheStore(sc.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open cache store: %w", err)
		}
		return s, nil
	}
}
