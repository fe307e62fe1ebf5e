package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"basegraph.app/triage/common/cache"
	"basegraph.app/triage/common/id"
	"basegraph.app/triage/common/llm"
	"basegraph.app/triage/common/logger"
	"basegraph.app/triage/common/otel"
	"basegraph.app/triage/common/typesense"
	"basegraph.app/triage/core/config"
	"basegraph.app/triage/core/db"
	"basegraph.app/triage/internal/centroid"
	"basegraph.app/triage/internal/index"
	"basegraph.app/triage/internal/issues"
	"basegraph.app/triage/internal/model"
	"basegraph.app/triage/internal/queue"
	"basegraph.app/triage/internal/store"
	"basegraph.app/triage/internal/worker"
	"github.com/redis/go-redis/v9"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load(config.ServiceTypeWorker)
	if err != nil {
		slog.ErrorContext(ctx, "failed to load config", "error", err)
		os.Exit(1)
	}

	fmt.Printf("%s\n", banner)

	telemetry, err := otel.Setup(ctx, cfg.OTel, cfg.Env)
	if err != nil {
		slog.ErrorContext(ctx, "failed to setup telemetry", "error", err)
		os.Exit(1)
	}
	logger.Setup(cfg)

	slog.InfoContext(ctx, "triage worker starting",
		"env", cfg.Env,
		"consumer_group", cfg.Pipeline.RedisGroup,
		"consumer_name", cfg.Pipeline.RedisConsumer)

	if err := id.Init(cfg.NodeID); err != nil {
		slog.ErrorContext(ctx, "failed to initialize id generator", "error", err)
		os.Exit(1)
	}

	database, err := db.New(ctx, cfg.DB)
	if err != nil {
		slog.ErrorContext(ctx, "failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer database.Close()

	if cfg.AutoMigrate {
		if err := database.Migrate(); err != nil {
			slog.ErrorContext(ctx, "failed to migrate database", "error", err)
			os.Exit(1)
		}
	}
	slog.InfoContext(ctx, "database connected", "auto_migrate", cfg.AutoMigrate)

	redisOpts, err := redis.ParseURL(cfg.Pipeline.RedisURL)
	if err != nil {
		slog.ErrorContext(ctx, "failed to parse redis url", "error", err)
		os.Exit(1)
	}
	redisClient := redis.NewClient(redisOpts)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		slog.ErrorContext(ctx, "failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()
	slog.InfoContext(ctx, "redis connected", "stream", cfg.Pipeline.RedisStream)

	resultCache := cache.NewRedis(redisClient, "triage:cache:")

	embedder, err := llm.NewEmbedder(llm.EmbedderConfig{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to create embedder", "error", err)
		os.Exit(1)
	}
	embedder = llm.NewCachedEmbedder(embedder, resultCache, llm.CachedEmbedderConfig{
		Model:     cfg.Embedding.Model,
		TTL:       cfg.Embedding.CacheTTL,
		RateLimit: cfg.Embedding.RateLimit,
	})

	summarizer, err := llm.New(llm.Config{
		Provider: cfg.SummarizerLLM.Provider,
		APIKey:   cfg.SummarizerLLM.APIKey,
		BaseURL:  cfg.SummarizerLLM.BaseURL,
		Model:    cfg.SummarizerLLM.Model,
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to create summarizer llm client", "error", err)
		os.Exit(1)
	}

	rerankClient, err := llm.New(llm.Config{
		Provider: cfg.RerankLLM.Provider,
		APIKey:   cfg.RerankLLM.APIKey,
		BaseURL:  cfg.RerankLLM.BaseURL,
		Model:    cfg.RerankLLM.Model,
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to create rerank llm client", "error", err)
		os.Exit(1)
	}

	tsClient, err := typesense.New(typesense.Config{
		URL:     cfg.Typesense.URL,
		APIKey:  cfg.Typesense.APIKey,
		Timeout: cfg.Typesense.Timeout,
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to create typesense client", "error", err)
		os.Exit(1)
	}
	issueIndex := index.NewTypesense(tsClient, index.Config{
		Collection: cfg.Typesense.Collection,
		Dimensions: cfg.Embedding.Dimensions,
	})
	if err := issueIndex.EnsureCollection(ctx); err != nil {
		slog.ErrorContext(ctx, "failed to ensure issue collection", "error", err)
		os.Exit(1)
	}

	producer := queue.NewRedisProducer(redisClient, queue.ProducerConfig{
		Stream:     cfg.Pipeline.RedisStream,
		DelayedSet: cfg.Pipeline.DelayedSet,
		PendingTTL: cfg.Pipeline.DedupePendingTTL,
	}, slog.Default())

	svc := issues.NewService(issues.Deps{
		Stores:     store.NewStores(database.Queries()),
		Tx:         issues.NewTxRunner(database),
		Embedder:   embedder,
		Reranker:   llm.NewChatReranker(rerankClient, cfg.RerankLLM.MaxTokens),
		Summarizer: summarizer,
		Index:      issueIndex,
		Cache:      resultCache,
		Jobs:       producer,
		Publisher:  queue.NewRedisPublisher(redisClient, cfg.Pipeline.MergeChannel),
	}, clusteringConfig(cfg.Clustering))

	consumer, err := queue.NewRedisConsumer(redisClient, queue.ConsumerConfig{
		Stream:       cfg.Pipeline.RedisStream,
		Group:        cfg.Pipeline.RedisGroup,
		Consumer:     cfg.Pipeline.RedisConsumer,
		DLQStream:    cfg.Pipeline.RedisDLQStream,
		BatchSize:    10,
		Block:        5 * time.Second,
		MaxAttempts:  cfg.Pipeline.MaxAttempts,
		RequeueDelay: time.Second,
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to create consumer", "error", err)
		os.Exit(1)
	}

	handler := worker.NewTaskHandler(store.NewStores(database.Queries()), svc)
	w := worker.New(consumer, handler, worker.Config{
		MaxAttempts: cfg.Pipeline.MaxAttempts,
	})

	reclaimer := worker.NewRedisReclaimer(redisClient, worker.RedisReclaimerConfig{
		Stream:    cfg.Pipeline.RedisStream,
		Group:     cfg.Pipeline.RedisGroup,
		Consumer:  cfg.Pipeline.RedisConsumer + "-reclaimer",
		MinIdle:   5 * time.Minute,
		Interval:  time.Minute,
		BatchSize: 10,
	}, consumer, w.ProcessMessage)

	promoter := queue.NewPromoter(redisClient, queue.PromoterConfig{
		DelayedSet: cfg.Pipeline.DelayedSet,
		Stream:     cfg.Pipeline.RedisStream,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- w.Run(ctx)
	}()
	go reclaimer.Run(ctx)
	go promoter.Run(ctx)

	slog.InfoContext(ctx, "worker initialized and running")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.InfoContext(ctx, "shutting down worker...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	// Quick loops first; the worker may be mid-task.
	promoter.Stop()
	reclaimer.Stop()

	stopped := make(chan struct{})
	go func() {
		w.Stop()
		close(stopped)
	}()

	select {
	case <-shutdownCtx.Done():
		slog.WarnContext(ctx, "shutdown timeout exceeded")
	case <-stopped:
		if err := <-errCh; err != nil {
			slog.ErrorContext(ctx, "worker error during shutdown", "error", err)
		}
	}

	if err := telemetry.Shutdown(shutdownCtx); err != nil {
		slog.ErrorContext(ctx, "telemetry shutdown failed", "error", err)
	}

	slog.InfoContext(ctx, "worker shutdown complete")
}

func clusteringConfig(c config.ClusteringConfig) issues.Config {
	return issues.Config{
		Centroid: centroid.Aggregator{
			HalfLife: c.HalfLife,
			BaseWeights: map[string]float64{
				string(model.EvaluationTypeHuman): c.HumanWeight,
				string(model.EvaluationTypeRule):  c.RuleWeight,
				string(model.EvaluationTypeLLM):   c.LLMWeight,
			},
		},
		HybridAlpha:        c.HybridAlpha,
		MaxVectorDistance:  c.MaxVectorDistance,
		MinKeywordMatches:  c.MinKeywordMatches,
		CandidateLimit:     c.CandidateLimit,
		MinRerankRelevance: c.MinRerankRelevance,
		MergeSimilarity:    c.MergeSimilarity,
		MergeLimit:         c.MergeLimit,
		CreationLookback:   c.CreationLookback,
		DetailsThrottle:    c.DetailsThrottle,
		DetailsSampleSize:  c.DetailsSampleSize,
		MergeThrottle:      c.MergeThrottle,
		MergeDelay:         c.MergeDelay,
		GenerationCacheTTL: c.GenerationCacheTTL,
		Escalation: issues.Escalation{
			Window:       c.EscalationWindow,
			BaselineDays: c.EscalationBaseline,
			Factor:       c.EscalationFactor,
			MinCount:     c.EscalationMinCount,
		},
	}
}

const banner = `
████████╗██████╗ ██╗ █████╗  ██████╗ ███████╗
╚══██╔══╝██╔══██╗██║██╔══██╗██╔════╝ ██╔════╝
   ██║   ██████╔╝██║███████║██║  ███╗█████╗
   ██║   ██╔══██╗██║██╔══██║██║   ██║██╔══╝
   ██║   ██║  ██║██║██║  ██║╚██████╔╝███████╗
   ╚═╝   ╚═╝  ╚═╝╚═╝╚═╝  ╚═╝ ╚═════╝ ╚══════╝
`
