// Command ragmuxd is ragmux's single entrypoint: it wires storage, the LLM
// client, the agent registry, and the orchestration pipeline together, then
// serves the REST and WebSocket surfaces on one listener. Startup order is
// .env load, then config load, then logger init (from the loaded log
// settings), with OTel init treated as fail-soft before the single
// http.ListenAndServe call.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"ragmux/internal/agents"
	"ragmux/internal/auth"
	"ragmux/internal/classifier"
	"ragmux/internal/config"
	"ragmux/internal/debugtrace"
	"ragmux/internal/embedding"
	"ragmux/internal/eventbus"
	"ragmux/internal/httpapi"
	"ragmux/internal/llmclient"
	"ragmux/internal/manager"
	"ragmux/internal/memory"
	"ragmux/internal/memory/entity"
	"ragmux/internal/memory/episodic"
	"ragmux/internal/memory/preferences"
	"ragmux/internal/metacognition"
	"ragmux/internal/observability"
	"ragmux/internal/quality"
	"ragmux/internal/react"
	"ragmux/internal/store"
	"ragmux/internal/vectorstore"
	"ragmux/internal/wsapi"
)

func main() {
	if err := godotenv.Load(".env"); err != nil {
		_ = godotenv.Load("example.env")
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	observability.InitLogger(cfg.Obs.LogPath, cfg.Obs.LogLevel, cfg.Obs.OTLP != "")

	ctx := context.Background()

	shutdown, err := observability.InitOTel(ctx, cfg.Obs)
	if err != nil {
		log.Warn().Err(err).Msg("otel init failed, continuing without observability")
		shutdown = nil
	}
	if shutdown != nil {
		defer func() { _ = shutdown(context.Background()) }()
	}

	pool, err := pgxpool.New(ctx, cfg.Postgres.DSN)
	if err != nil {
		log.Fatal().Err(err).Msg("connect to postgres")
	}
	defer pool.Close()

	sessionStore := store.NewPostgresStore(pool)
	if err := sessionStore.Init(ctx); err != nil {
		log.Fatal().Err(err).Msg("init session store schema")
	}

	entityStore := entity.NewPostgresStore(pool)
	if err := entityStore.Init(ctx); err != nil {
		log.Fatal().Err(err).Msg("init entity memory schema")
	}

	prefsStore := preferences.NewPostgresStore(pool)
	if err := prefsStore.Init(ctx); err != nil {
		log.Fatal().Err(err).Msg("init preferences schema")
	}

	var redisClient *redis.Client
	if cfg.Redis.DSN != "" {
		opts, err := redis.ParseURL(cfg.Redis.DSN)
		if err != nil {
			log.Fatal().Err(err).Msg("parse REDIS_URL")
		}
		redisClient = redis.NewClient(opts)
	}

	episodicStore := episodic.NewPostgresStore(pool, redisClient, cfg.Memory.PatternCacheTTLSecs)
	if err := episodicStore.Init(ctx); err != nil {
		log.Fatal().Err(err).Msg("init episodic memory schema")
	}

	vectors, err := vectorstore.New(cfg.Qdrant.DSN)
	if err != nil {
		log.Fatal().Err(err).Msg("connect to qdrant")
	}
	defer vectors.Close()

	llm, err := llmclient.Build(ctx, cfg.LLM)
	if err != nil {
		log.Fatal().Err(err).Msg("build llm client")
	}

	var embedder agents.Embedder
	if cfg.Embedding.APIKey != "" {
		embedder = embedding.New(cfg.Embedding)
	} else {
		log.Warn().Msg("no EMBEDDING_API_KEY configured, rag_agent will use a deterministic hash embedder")
		embedder = embedding.NewDeterministic(cfg.Embedding.Dimensions, true, 0xda7a)
	}

	cl := classifier.New(llm)

	registry := agents.NewRegistry(cfg.Agents.Concurrency)
	registry.Register(agents.NewCasualChatAgent(llm))
	registry.Register(agents.NewThinkingAgent(llm))
	registry.Register(agents.NewTranslateAgent(llm))
	registry.Register(agents.NewSummarizeAgent(llm))
	registry.Register(agents.NewValidationAgent(llm))
	registry.Register(agents.NewCalculationAgent(llm))
	registry.Register(agents.NewPlanningAgent(llm))
	registry.Register(agents.NewToolAgent(llm, cl, vectors))
	registry.Register(agents.NewRAGAgent(llm, vectors, embedder, cl))

	bus := eventbus.New(cfg.Debug.EventBusSubscriberCap)
	trace := debugtrace.New(cfg.Debug.RingCapacity, cfg.Debug.ContentTruncateBytes)
	engine := react.New(registry, bus, trace, llm, sessionStore)
	mem := memory.New(sessionStore, episodicStore, entityStore, prefsStore, cfg.Memory.WorkingMemoryCapacity)

	mgr := manager.New(manager.Deps{
		Store:      sessionStore,
		Memory:     mem,
		Classifier: cl,
		Engine:     engine,
		Quality:    quality.New(llm),
		Evaluator:  metacognition.NewAdaptiveEvaluator(metacognition.NewSelfEvaluator(llm)),
		Learner:    metacognition.NewExperienceLearner(episodicStore),
		Bus:        bus,
		Trace:      trace,
		Registry:   registry,
		QueueDepth: cfg.Agents.QueueDepth,
	})

	tokens := auth.New(cfg.Auth.AdminUser, cfg.Auth.AdminPassHash, cfg.Auth.SessionTokenTTL)

	api := httpapi.NewServer(httpapi.Deps{
		Manager:     mgr,
		Store:       sessionStore,
		Trace:       trace,
		Bus:         bus,
		Vectors:     vectors,
		Preferences: prefsStore,
		Auth:        tokens,
	})
	ws := wsapi.New(bus, mgr)

	mux := http.NewServeMux()
	mux.Handle("/", api)
	mux.HandleFunc("GET /ws/sessions/{sessionID}", ws.ServeSession)

	authed := auth.Middleware(tokens, cfg.Auth.AdminUser != "")(mux)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	log.Info().Str("addr", addr).Msg("ragmuxd listening")

	srv := &http.Server{
		Addr:         addr,
		Handler:      authed,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute,
	}
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("server failed")
	}
}
