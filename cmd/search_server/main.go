// Command search_server serves keyword recommendation and web-page
// search over the framed TCP protocol.
//
// Usage:
//
//	search_server [-config file] [ip] [port]
//
// Positional arguments override the configured listen address. The
// process exits 1 when the artifacts cannot be loaded or the address
// cannot be bound.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/qianzhou/goso/internal/analytics"
	"github.com/qianzhou/goso/internal/artifact"
	"github.com/qianzhou/goso/internal/recommend"
	"github.com/qianzhou/goso/internal/search"
	"github.com/qianzhou/goso/internal/server"
	"github.com/qianzhou/goso/internal/tokenizer"
	"github.com/qianzhou/goso/pkg/config"
	"github.com/qianzhou/goso/pkg/health"
	"github.com/qianzhou/goso/pkg/kafka"
	"github.com/qianzhou/goso/pkg/logger"
	"github.com/qianzhou/goso/pkg/metrics"
	"github.com/qianzhou/goso/pkg/postgres"
	pkgredis "github.com/qianzhou/goso/pkg/redis"
	"github.com/qianzhou/goso/pkg/resilience"
)

func main() {
	configPath := flag.String("config", "", "path to config file (key=value or YAML)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if flag.NArg() >= 1 {
		cfg.Server.IP = flag.Arg(0)
	}
	if flag.NArg() >= 2 {
		port, err := strconv.Atoi(flag.Arg(1))
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid port %q\n", flag.Arg(1))
			os.Exit(1)
		}
		cfg.Server.Port = port
	}

	logger.Setup(cfg.Logging)
	slog.Info("starting search server", "addr", cfg.Server.Addr(), "data_dir", cfg.Data.DataDir)

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
	}

	cnStop, err := tokenizer.LoadStopWords(cfg.Data.CnStopwordsFile)
	if err != nil {
		slog.Error("failed to load chinese stop-words", "error", err)
		os.Exit(1)
	}
	enStop, err := tokenizer.LoadStopWords(cfg.Data.EnStopwordsFile)
	if err != nil {
		slog.Error("failed to load english stop-words", "error", err)
		os.Exit(1)
	}
	tok, err := tokenizer.New(cfg.Data.SegmenterDict, cnStop, enStop)
	if err != nil {
		slog.Error("failed to load segmenter", "error", err)
		os.Exit(1)
	}

	readers, err := artifact.Load(cfg.Data.DataDir)
	if err != nil {
		slog.Error("failed to load artifacts", "error", err)
		os.Exit(1)
	}
	slog.Info("artifacts loaded",
		"cn_lexicon", readers.LexiconSize(artifact.Chinese),
		"en_lexicon", readers.LexiconSize(artifact.English),
		"pages", readers.DocCount(),
		"terms", readers.TermCount(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var redisClient *pkgredis.Client
	if cfg.Redis.Enabled {
		err := resilience.Do(ctx, "redis", resilience.Backoff{}, func(context.Context) error {
			var dialErr error
			redisClient, dialErr = pkgredis.NewClient(cfg.Redis)
			return dialErr
		})
		if err != nil {
			slog.Warn("redis unavailable, second-level cache disabled", "error", err)
			redisClient = nil
		} else {
			defer redisClient.Close()
			slog.Info("second-level search cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}

	recommender, err := recommend.New(readers, cfg.Recommend)
	if err != nil {
		slog.Error("failed to create recommender", "error", err)
		os.Exit(1)
	}
	engine, err := search.New(readers, tok, cfg.Search, redisClient, cfg.Redis)
	if err != nil {
		slog.Error("failed to create search engine", "error", err)
		os.Exit(1)
	}

	var producer *kafka.Producer
	if cfg.Kafka.Enabled {
		producer = kafka.NewProducer(cfg.Kafka)
		defer producer.Close()
	}
	var store *analytics.Store
	var pgClient *postgres.Client
	if cfg.Postgres.Enabled {
		err := resilience.Do(ctx, "postgres", resilience.Backoff{}, func(context.Context) error {
			var dialErr error
			pgClient, dialErr = postgres.New(cfg.Postgres)
			return dialErr
		})
		if err != nil {
			slog.Warn("postgres unavailable, analytics store disabled", "error", err)
		} else {
			defer pgClient.Close()
			store = analytics.NewStore(pgClient)
		}
	}
	var collector *analytics.Collector
	if producer != nil || store != nil {
		collector = analytics.NewCollector(producer, store, 10000)
		collector.Start(ctx)
		defer collector.Close()
	}

	pool := server.NewPool(cfg.Server.ThreadNum, cfg.Server.QueueSize, m)
	dispatcher := server.NewDispatcher(recommender, engine, m, collector)
	reactor := server.NewReactor(cfg.Server.Addr(), pool, dispatcher, m)
	if err := reactor.Listen(); err != nil {
		slog.Error("failed to bind", "addr", cfg.Server.Addr(), "error", err)
		os.Exit(1)
	}

	if cfg.Metrics.Enabled {
		checker := health.NewChecker()
		checker.Register("artifacts", true, func(context.Context) error {
			if readers.DocCount() == 0 {
				return fmt.Errorf("no pages loaded")
			}
			return nil
		})
		if redisClient != nil {
			checker.Register("redis", false, func(ctx context.Context) error {
				return redisClient.Ping(ctx)
			})
		}
		if pgClient != nil {
			checker.Register("postgres", false, func(ctx context.Context) error {
				return pgClient.Ping(ctx)
			})
		}
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port, map[string]http.Handler{
			"/health/live":  checker.LiveHandler(),
			"/health/ready": checker.ReadyHandler(),
		})
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			shutdownMetrics(shutdownCtx)
		}()
	}

	go func() {
		<-ctx.Done()
		slog.Info("termination signal received, shutting down")
		reactor.Stop()
	}()

	if err := reactor.Run(); err != nil {
		slog.Error("reactor failed", "error", err)
		os.Exit(1)
	}
	reactor.Stop()
	for name, stats := range dispatcher.CacheStatsSummary() {
		slog.Info("cache stats",
			"cache", name,
			"hits", stats.Hits,
			"misses", stats.Misses,
			"hit_rate", fmt.Sprintf("%.3f", stats.HitRate()),
		)
	}
	slog.Info("server exited cleanly")
}
