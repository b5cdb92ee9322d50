package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/supportflow/backend/internal/api/handlers"
	"github.com/supportflow/backend/internal/api/middleware"
	"github.com/supportflow/backend/internal/auth"
	"github.com/supportflow/backend/internal/cache"
	"github.com/supportflow/backend/internal/config"
	"github.com/supportflow/backend/internal/conversation"
	"github.com/supportflow/backend/internal/document"
	"github.com/supportflow/backend/internal/embedding"
	"github.com/supportflow/backend/internal/llm"
	"github.com/supportflow/backend/internal/queue"
	"github.com/supportflow/backend/internal/rag"
	"github.com/supportflow/backend/internal/tenant"
	"github.com/supportflow/backend/internal/vectorstore"
)

type Router struct {
	mux   *chi.Mux
	db    *pgxpool.Pool
	redis *redis.Client
	cfg   *config.Config
	ts    *tenant.Service
	authn *auth.Authenticator
	llmGW llm.Gateway
}

func NewRouter(db *pgxpool.Pool, rdb *redis.Client, cfg *config.Config) *Router {
	var c *cache.Cache
	if rdb != nil {
		c = cache.NewCache(rdb)
	}
	ts := tenant.NewService(db, c)

	return &Router{
		mux:   chi.NewRouter(),
		db:    db,
		redis: rdb,
		cfg:   cfg,
		ts:    ts,
		authn: auth.NewAuthenticator(
			auth.NewAPIKeyMiddleware(cfg.Auth.APIKeyHeader, ts),
			auth.NewJWTMiddleware(cfg.Auth.JWTSecret, ts),
		),
		llmGW: llm.NewGateway(cfg.LLM),
	}
}

func (rt *Router) Setup() http.Handler {
	r := rt.mux

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS([]string{"*"}))

	rl := middleware.NewRateLimiter(100, 200)
	r.Use(rl.Limit)

	// Health endpoints (no auth)
	health := handlers.NewHealthHandler(rt.db, rt.redis)
	r.Get("/healthz", health.Healthz)
	r.Get("/readyz", health.Readyz)

	// Services
	queueClient := queue.NewClient(rt.cfg.Redis)
	vs := vectorstore.NewPgVectorStore(rt.db, rt.cfg.RAG.Dimensions)
	embedder := embedding.NewService(rt.llmGW, rt.cfg.LLM.EmbeddingModel, rt.cfg.RAG.Dimensions)
	engine := rag.NewEngine(embedder, vs, rt.llmGW, rag.Options{
		Model:       rt.cfg.LLM.DefaultModel,
		TopK:        rt.cfg.RAG.TopK,
		MaxTokens:   rt.cfg.RAG.MaxTokens,
		Temperature: rt.cfg.RAG.Temperature,
	})
	docSvc := document.NewService(document.NewPostgresRepo(rt.db), vs, queueClient)
	convSvc := conversation.NewService(conversation.NewPostgresRepo(rt.db))

	// Channel webhooks authenticate by provider callback, not API key.
	webhookH := handlers.NewWebhookHandler(rt.ts, queueClient)
	r.Route("/webhooks", func(r chi.Router) {
		r.Post("/whatsapp", webhookH.WhatsApp)
		r.Post("/email", webhookH.Email)
	})

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(rt.authn.Authenticate)

		docH := handlers.NewDocumentHandler(docSvc, rt.cfg.RAG.MaxUploadSize)
		r.Route("/documents", func(r chi.Router) {
			r.Post("/", docH.Upload)
			r.Get("/", docH.List)
			r.Get("/{id}", docH.Get)
			r.Delete("/{id}", docH.Delete)
			r.Get("/{id}/status", docH.Status)
			r.Post("/{id}/reingest", docH.Reingest)
		})

		chatH := handlers.NewChatHandler(convSvc, engine)
		r.Route("/chat", func(r chi.Router) {
			r.Post("/message", chatH.Message)
		})

		convH := handlers.NewConversationHandler(convSvc)
		r.Route("/conversations", func(r chi.Router) {
			r.Get("/", convH.List)
			r.Get("/{id}", convH.Get)
			r.Get("/{id}/messages", convH.Messages)
			r.Post("/{id}/status", convH.SetStatus)
		})
	})

	return r
}
