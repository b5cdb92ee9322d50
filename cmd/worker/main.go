package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/supportflow/backend/internal/cache"
	"github.com/supportflow/backend/internal/channels"
	"github.com/supportflow/backend/internal/config"
	"github.com/supportflow/backend/internal/conversation"
	"github.com/supportflow/backend/internal/database"
	"github.com/supportflow/backend/internal/document"
	"github.com/supportflow/backend/internal/embedding"
	"github.com/supportflow/backend/internal/llm"
	"github.com/supportflow/backend/internal/queue"
	"github.com/supportflow/backend/internal/queue/workers"
	"github.com/supportflow/backend/internal/rag"
	"github.com/supportflow/backend/internal/tenant"
	"github.com/supportflow/backend/internal/vectorstore"
	"github.com/supportflow/backend/pkg/chunker"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	db, err := database.NewPool(ctx, cfg.Database)
	if err != nil {
		slog.Error("database unavailable", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	gateway := llm.NewGateway(cfg.LLM)
	embedder := embedding.NewService(gateway, cfg.LLM.EmbeddingModel, cfg.RAG.Dimensions)
	vs := vectorstore.NewPgVectorStore(db, cfg.RAG.Dimensions)
	docs := document.NewPostgresRepo(db)
	convSvc := conversation.NewService(conversation.NewPostgresRepo(db))
	tenants := tenant.NewService(db, cache.NewCache(rdb))
	engine := rag.NewEngine(embedder, vs, gateway, rag.Options{
		Model:       cfg.LLM.DefaultModel,
		TopK:        cfg.RAG.TopK,
		MaxTokens:   cfg.RAG.MaxTokens,
		Temperature: cfg.RAG.Temperature,
	})

	ch, err := chunker.New(cfg.RAG.ChunkSize, cfg.RAG.ChunkOverlap)
	if err != nil {
		slog.Error("invalid chunker config", "error", err)
		os.Exit(1)
	}

	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
			},
			RetryDelayFunc: queue.RetryDelay,
		},
	)

	registry := queue.NewHandlersRegistry()

	ingestWorker := workers.NewIngestWorker(docs, vs, embedder, ch)
	registry.Register(queue.TypeDocumentIngest, asynq.HandlerFunc(ingestWorker.ProcessTask))

	whatsappWorker := workers.NewReplyWorker(tenants, convSvc, engine, channels.NewTwilioSender(cfg.Channels))
	registry.Register(queue.TypeWhatsAppReply, asynq.HandlerFunc(whatsappWorker.ProcessTask))

	emailWorker := workers.NewReplyWorker(tenants, convSvc, engine, channels.NewSMTPSender(cfg.Channels))
	registry.Register(queue.TypeEmailReply, asynq.HandlerFunc(emailWorker.ProcessTask))

	slog.Info("starting worker", "concurrency", 10)
	if err := srv.Run(registry.Mux()); err != nil {
		slog.Error("worker error", "error", err)
		os.Exit(1)
	}
}
