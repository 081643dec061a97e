package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"chat-relay/internal/cache"
	"chat-relay/internal/config"
	"chat-relay/internal/handlers"
	"chat-relay/internal/httpserver"
	"chat-relay/internal/metrics"
	"chat-relay/internal/relay"
	"chat-relay/internal/target"
	"chat-relay/pkg/logging/logging"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cfg, cfgErr := config.Load()

	cmd := &cobra.Command{
		Use:           "relay",
		Short:         "Relay chat-completion requests to an OpenAI-compatible provider",
		Long:          "Serves POST " + httpserver.RelayPath + " and forwards each request upstream with the configured API key, streaming or not as the caller asked.",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cfgErr != nil {
				return cfgErr
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&cfg.Port, "port", "p", cfg.Port, "port to listen on (PORT)")
	flags.StringVar(&cfg.BaseURL, "base-url", cfg.BaseURL, "upstream base URL (API_BASE_URL)")
	flags.StringVar(&cfg.CacheBackend, "cache-backend", cfg.CacheBackend, "replay cache backend: none, memory or redis (CACHE_BACKEND)")
	flags.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (LOG_LEVEL)")
	flags.DurationVar(&cfg.UpstreamReadTimeout, "read-timeout", cfg.UpstreamReadTimeout, "max wait for each upstream stream read, 0 disables (UPSTREAM_READ_TIMEOUT)")
	flags.SortFlags = false

	return cmd
}

func run(ctx context.Context, cfg config.Config) error {
	// ----- Logger -----
	logger, err := logging.New(logging.Options{Env: cfg.Env, Level: cfg.LogLevel})
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	// ----- Metrics -----
	metrics.Register()

	logger.Info("loaded config",
		zap.String("port", cfg.Port),
		zap.String("base_url", cfg.BaseURL),
		zap.Bool("credential_set", cfg.Credential != ""),
		zap.String("cache_backend", cfg.CacheBackend),
		zap.Duration("upstream_read_timeout", cfg.UpstreamReadTimeout),
	)

	// ----- Target resolver -----
	resolver := target.NewResolver(cfg.Target())
	if _, err := resolver.Resolve(); err != nil {
		// keep serving; every request reports the configuration error
		logger.Warn("API_KEY is not set, all relay requests will fail", zap.Error(err))
	}

	// ----- Redis client (only if needed) -----
	var redisClient *redis.Client
	if cfg.CacheBackend == cache.BackendRedis {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer func() { _ = redisClient.Close() }()

		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Error("redis connection failed", zap.Error(err))
			return err
		}
		logger.Info("redis connection established", zap.String("addr", cfg.RedisAddr))
	}

	// ----- Replay cache -----
	replayCache := cache.NewReplayCache(cfg.Cache(), redisClient)
	if closer, ok := replayCache.(interface{ Close() error }); ok {
		defer func() { _ = closer.Close() }()
	}

	// ----- Relay -----
	rl := relay.New(cfg.Relay(), logger)
	defer func() { _ = rl.Close() }()

	relayHandler := handlers.NewRelayHandler(resolver, rl, replayCache, cfg.CacheTTL)

	// ----- Router + middleware -----
	r := chi.NewRouter()
	httpserver.SetupRouter(r, logger, relayHandler, httpserver.Options{
		MaxBodyBytes: cfg.MaxBodyBytes,
	})

	// ----- HTTP server -----
	srv := newServer(":"+cfg.Port, r)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting relay", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown error", zap.Error(err))
			return err
		}
		logger.Info("server shutdown complete")
		return nil
	})

	return g.Wait()
}

// newServer builds the HTTP server. Request contexts derive from a base
// context that is canceled when Shutdown starts, so open streams stop
// reading upstream and return instead of holding Shutdown until its
// deadline.
//
// No ReadTimeout or WriteTimeout: once expired they cancel or cut
// long-running streams.
func newServer(addr string, h http.Handler) *http.Server {
	baseCtx, cancel := context.WithCancel(context.Background())

	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext: func(net.Listener) context.Context {
			return baseCtx
		},
	}
	srv.RegisterOnShutdown(cancel)

	return srv
}
