// Command zoo-dashboard serves the model-zoo dashboard, resource grid and
// detail pages backed by the artifact API.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Sternrassler/modelzoo-client/internal/config"
	"github.com/Sternrassler/modelzoo-client/internal/server"
	"github.com/Sternrassler/modelzoo-client/pkg/browse"
	"github.com/Sternrassler/modelzoo-client/pkg/client"
	"github.com/Sternrassler/modelzoo-client/pkg/dashboard"
	"github.com/Sternrassler/modelzoo-client/pkg/detail"
	"github.com/Sternrassler/modelzoo-client/pkg/logging"
	"github.com/Sternrassler/modelzoo-client/pkg/pagination"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/afero"
)

func main() {
	cfg, err := config.Load(".env")
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(2)
	}

	logging.Setup(logging.Config{Level: cfg.LogLevel, Pretty: cfg.LogPretty})
	logger := logging.NewLogger("main")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Startup failed")
	}
	defer a.Close()

	logger.Info().
		Str("base_url", cfg.BaseURL).
		Str("workspace", cfg.Workspace).
		Str("collection", cfg.Collection).
		Bool("redis", a.redis != nil).
		Str("user_agent", cfg.UserAgent).
		Msg("Starting zoo dashboard")

	// first reload runs in the background; the API reports "loading" meanwhile
	go func() {
		if _, err := a.server.Reload(ctx); err != nil {
			logger.Warn().Err(err).Msg("Initial dashboard reload failed")
		}
	}()

	if err := a.server.Run(ctx); err != nil {
		logger.Fatal().Err(err).Msg("Server failed")
	}
	logger.Info().Msg("Stopped")
}

type app struct {
	redis  *redis.Client
	client *client.Client
	server *server.Server
}

func newApp(ctx context.Context, cfg config.Config) (*app, error) {
	redisClient, err := connectRedis(ctx, cfg.RedisURL)
	if err != nil {
		return nil, err
	}

	apiClient, err := client.New(clientConfig(cfg, redisClient))
	if err != nil {
		if redisClient != nil {
			redisClient.Close()
		}
		return nil, fmt.Errorf("create artifact client: %w", err)
	}

	paginator := pagination.New(apiClient, pagination.Config{
		PageSize:       cfg.PageSize,
		MaxPages:       cfg.MaxPages,
		RequestTimeout: cfg.RequestTimeout,
	})
	loader := dashboard.NewLoader(paginator, nil, dashboard.Config{
		PageSize: cfg.PageSize,
		Scope:    cfg.TopScope,
		TopLimit: cfg.TopLimit,
	})

	srvCfg := server.Config{Addr: cfg.Addr()}
	if cfg.SnapshotPath != "" {
		srvCfg.ExportFS = afero.NewOsFs()
		srvCfg.ExportPath = cfg.SnapshotPath
	}

	return &app{
		redis:  redisClient,
		client: apiClient,
		server: server.New(srvCfg,
			loader,
			browse.New(apiClient, paginator, cfg.PageSize),
			detail.NewService(apiClient, cfg.Workspace),
		),
	}, nil
}

func (a *app) Close() {
	a.client.Close()
	if a.redis != nil {
		a.redis.Close()
	}
}

func clientConfig(cfg config.Config, redisClient *redis.Client) client.Config {
	c := client.DefaultConfig(redisClient, cfg.UserAgent)
	c.BaseURL = cfg.BaseURL
	c.Workspace = cfg.Workspace
	c.Collection = cfg.Collection
	c.Timeout = cfg.RequestTimeout
	c.RateLimit = cfg.RateLimit
	c.RateBurst = cfg.RateBurst
	return c
}

// connectRedis accepts "host:port" or a redis:// URL. An empty address
// disables Redis.
func connectRedis(ctx context.Context, addr string) (*redis.Client, error) {
	if addr == "" {
		return nil, nil
	}

	opts := &redis.Options{Addr: addr}
	if strings.Contains(addr, "://") {
		parsed, err := redis.ParseURL(addr)
		if err != nil {
			return nil, fmt.Errorf("parse REDIS_URL: %w", err)
		}
		opts = parsed
	}

	redisClient := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		redisClient.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", opts.Addr, err)
	}
	return redisClient, nil
}
