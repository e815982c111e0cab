// Package main is the entry point for the seqgen API server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"

	"seqgen/internal/core/variable"
	"seqgen/internal/domain/sequence"
	"seqgen/internal/infrastructure/cache"
	v1 "seqgen/internal/infrastructure/http/v1"
	"seqgen/internal/infrastructure/metrics"
	"seqgen/internal/infrastructure/storage/memory"
	"seqgen/internal/infrastructure/storage/postgres"
	redisstore "seqgen/internal/infrastructure/storage/redis"
	"seqgen/pkg/logger"
)

// expressionVarPrefix marks environment variables defining expression-backed
// pattern variables, e.g. SEQVAR_REGION='ctx["region"] == "EU" ? "E" : "W"'.
const expressionVarPrefix = "SEQVAR_"

func main() {
	log, err := logger.New(logger.Config{
		Level:       getEnv("LOG_LEVEL", "info"),
		Development: getEnv("APP_ENV", "development") == "development",
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	log.Info("starting seqgen server")

	// --- Variable registry ---
	registry := variable.NewRegistry()
	registry.MustRegister(variable.NewDepartmentCode())
	registry.MustRegister(variable.NewCustomerTier())
	registerExpressionVars(registry, log)

	// --- Counter store ---
	backend := getEnv("COUNTER_BACKEND", "postgres")

	var (
		store       sequence.CounterStore
		configRepo  sequence.ConfigRepository
		storePinger interface{ Ping(context.Context) error }
		publisher   sequence.EventPublisher
	)

	switch backend {
	case "postgres":
		poolCfg := postgres.DefaultPoolConfig(mustEnv("DATABASE_URL"))
		pool, err := postgres.NewPool(ctx, poolCfg)
		if err != nil {
			log.Fatalw("failed to connect to database", "error", err)
		}
		defer pool.Close()
		log.Info("database connection established")

		txm := postgres.NewTxManager(pool)
		pgStore := postgres.NewStore(txm, getEnvDuration("LOCK_TIMEOUT", 5*time.Second))
		store = pgStore
		configRepo = pgStore
		storePinger = pool
		publisher = postgres.NewOutboxPublisher(txm)

	case "redis":
		// Hot counters live in Redis; configurations stay in PostgreSQL.
		client := goredis.NewClient(&goredis.Options{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
		})
		defer client.Close()
		if err := client.Ping(ctx).Err(); err != nil {
			log.Fatalw("failed to ping redis", "error", err)
		}
		log.Info("redis connection established")

		store = redisstore.NewStore(client, getEnv("REDIS_PREFIX", "seqgen"))
		storePinger = redisPinger{client}

		poolCfg := postgres.DefaultPoolConfig(mustEnv("DATABASE_URL"))
		pool, err := postgres.NewPool(ctx, poolCfg)
		if err != nil {
			log.Fatalw("failed to connect to database", "error", err)
		}
		defer pool.Close()
		configRepo = postgres.NewStore(postgres.NewTxManager(pool), 0)

	case "memory":
		memStore := memory.NewStore()
		store = memStore
		configRepo = memStore
		log.Warn("using in-memory counter store, state is lost on restart")

	default:
		log.Fatalw("unknown counter backend", "backend", backend)
	}

	// --- Generation service ---
	recorder := metrics.NewRecorder(prometheus.DefaultRegisterer)

	opts := []sequence.Option{
		sequence.WithHooks(recorder),
		sequence.WithLogger(log),
	}
	if publisher != nil {
		opts = append(opts, sequence.WithPublisher(publisher))
	}
	if getEnv("AUTO_PROVISION", "false") == "true" {
		opts = append(opts, sequence.WithAutoProvision())
	}
	svc := sequence.NewService(store, registry, opts...)

	// --- Router ---
	routerCfg := v1.RouterConfig{
		Service:        svc,
		ConfigRepo:     configRepo,
		StorePinger:    storePinger,
		Logger:         log,
		MetricsEnabled: true,
	}
	if configRepo != nil {
		configCache := cache.NewConfigCache(configRepo, getEnvDuration("CONFIG_CACHE_TTL", 30*time.Second))
		routerCfg.ConfigReader = configCache
		routerCfg.Invalidator = configCache
	}
	router := v1.NewRouter(routerCfg)

	// --- HTTP Server ---
	port := getEnv("APP_PORT", "8080")
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infow("server starting", "port", port, "backend", backend)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("server failed", "error", err)
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalw("server forced to shutdown", "error", err)
	}

	log.Info("server stopped")
}

// registerExpressionVars compiles SEQVAR_* environment variables into
// expression-backed pattern variables. A bad expression aborts startup.
func registerExpressionVars(registry *variable.Registry, log *logger.Logger) {
	for _, kv := range os.Environ() {
		name, src, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(name, expressionVarPrefix) {
			continue
		}
		varName := strings.TrimPrefix(name, expressionVarPrefix)

		expr, err := variable.NewExpression(varName, src)
		if err != nil {
			log.Fatalw("failed to compile expression variable", "name", varName, "error", err)
		}
		registry.MustRegister(expr)
		log.Infow("expression variable registered", "name", expr.Name())
	}
}

// redisPinger adapts the redis client to the readiness probe.
type redisPinger struct {
	client goredis.UniversalClient
}

func (p redisPinger) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func mustEnv(key string) string {
	value := os.Getenv(key)
	if value == "" {
		fmt.Printf("required environment variable %s not set\n", key)
		os.Exit(1)
	}
	return value
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
