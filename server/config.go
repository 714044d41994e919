package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meikuraledutech/flowgraph"
	"github.com/meikuraledutech/flowgraph/log"
	"github.com/meikuraledutech/flowgraph/memory"
	"github.com/meikuraledutech/flowgraph/postgres"
	"github.com/meikuraledutech/flowgraph/redis"
)

// config is read from the environment at startup.
type config struct {
	ListenAddr  string
	DatabaseURL string
	RedisURL    string
	RedisPrefix string
	LogLevel    string
}

func loadConfig(getenv func(string) string) (config, error) {
	cfg := config{
		ListenAddr:  getenv("LISTEN_ADDR"),
		DatabaseURL: getenv("DATABASE_URL"),
		RedisURL:    getenv("REDIS_URL"),
		RedisPrefix: getenv("REDIS_PREFIX"),
		LogLevel:    strings.ToLower(getenv("LOG_LEVEL")),
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":3000"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = log.LevelInfo
	}
	switch cfg.LogLevel {
	case log.LevelDebug, log.LevelInfo, log.LevelWarn, log.LevelError:
	default:
		return cfg, fmt.Errorf("config: LOG_LEVEL %q is not one of debug, info, warn, error", cfg.LogLevel)
	}
	return cfg, nil
}

func loadConfigFromEnv() (config, error) {
	return loadConfig(os.Getenv)
}

// openStore picks postgres, then redis, then memory. The returned func
// releases the backing connection.
func openStore(ctx context.Context, cfg config) (flowgraph.Store, func(), error) {
	switch {
	case cfg.DatabaseURL != "":
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		log.Infof("using postgres store")
		return postgres.New(pool), pool.Close, nil
	case cfg.RedisURL != "":
		s, err := redis.NewFromURL(cfg.RedisURL, cfg.RedisPrefix)
		if err != nil {
			return nil, nil, err
		}
		log.Infof("using redis store")
		return s, func() { s.Close() }, nil
	default:
		log.Warnf("DATABASE_URL and REDIS_URL are not set, workflows are kept in memory")
		return memory.New(), func() {}, nil
	}
}
