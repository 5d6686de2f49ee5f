package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/largeweb/skapp-sub000/internal/api/handlers"
	mw "github.com/largeweb/skapp-sub000/internal/api/middleware"
	"github.com/largeweb/skapp-sub000/internal/buildconfig"
	"github.com/largeweb/skapp-sub000/internal/config"
	"github.com/largeweb/skapp-sub000/internal/domain"
	"github.com/largeweb/skapp-sub000/internal/llm"
	"github.com/largeweb/skapp-sub000/internal/retry"
	"github.com/largeweb/skapp-sub000/internal/service"
	"github.com/largeweb/skapp-sub000/internal/store"
	"go.uber.org/zap"
)

// App holds the router and wired services.
type App struct {
	Router       *chi.Mux
	Orchestrator *service.Orchestrator
	startTime    time.Time
	requestCount atomic.Int64
	errorCount   atomic.Int64
}

func NewApp(kv domain.KVStore, logger *zap.Logger) *App {
	repo := store.NewAgentRepository(kv)

	llmProvider := config.LLMProvider()
	llmClient, err := llm.NewClient(llmProvider, config.LLMAPIKey())
	if err != nil {
		logger.Warn("LLM client initialization failed", zap.String("provider", llmProvider), zap.Error(err))
		llmClient = llm.NewMockClient()
	} else {
		logger.Info("LLM client initialized", zap.String("provider", llmProvider))
	}

	// Services
	executor := service.NewToolExecutor(repo, logger)
	turnSvc := service.NewTurnService(repo, llmClient, executor, logger)
	orchestrator := service.NewOrchestrator(repo, turnSvc, logger)

	policy := retry.DefaultPolicy()
	policy.AttemptTimeout = config.OrchestrateTimeout()
	orchestrator.SetRetryPolicy(policy)

	// Handlers
	orchestrateHandler := handlers.NewOrchestrateHandler(orchestrator)
	generateHandler := handlers.NewGenerateHandler(repo, llmClient, logger)
	toolHandler := handlers.NewToolHandler(repo, executor)

	r := chi.NewRouter()

	app := &App{
		Router:       r,
		Orchestrator: orchestrator,
		startTime:    time.Now(),
	}

	metricsCollector := mw.NewMetricsCollector(&app.requestCount, &app.errorCount)

	// Global middleware (order matters)
	r.Use(mw.RequestID)
	r.Use(middleware.RealIP)
	r.Use(metricsCollector.Middleware)
	r.Use(mw.Logging(logger))
	r.Use(middleware.Recoverer)
	r.Use(mw.RateLimit(config.RateLimitRPS(), config.RateLimitBurst()))

	r.Get("/health", healthHandler(kv))
	r.Get("/metrics", app.metricsHandler())

	// Orchestration trigger (cron or manual)
	r.Post("/orchestrate", orchestrateHandler.Run)

	// Internal engine endpoints
	r.Post("/agents/{id}/generate", generateHandler.Generate)
	r.Post("/process-tool", toolHandler.Process)

	return app
}

// NewRouter returns just the chi.Mux.
func NewRouter(kv domain.KVStore, logger *zap.Logger) *chi.Mux {
	return NewApp(kv, logger).Router
}

func healthHandler(kv domain.KVStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// A read through the store proves connectivity; a missing probe
		// key is fine.
		_, err := kv.Get(r.Context(), "health:ping")
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "error", "error": err.Error()})
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}
}

func (app *App) metricsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var memStats runtime.MemStats
		runtime.ReadMemStats(&memStats)

		uptime := time.Since(app.startTime)

		response := map[string]any{
			"version":        buildconfig.Version(),
			"commit":         buildconfig.Commit(),
			"uptime_seconds": uptime.Seconds(),
			"uptime_human":   uptime.Round(time.Second).String(),
			"request_count":  app.requestCount.Load(),
			"error_count":    app.errorCount.Load(),
			"goroutines":     runtime.NumGoroutine(),
			"memory": map[string]any{
				"alloc_mb":       float64(memStats.Alloc) / 1024 / 1024,
				"total_alloc_mb": float64(memStats.TotalAlloc) / 1024 / 1024,
				"sys_mb":         float64(memStats.Sys) / 1024 / 1024,
				"num_gc":         memStats.NumGC,
			},
			"go_version": runtime.Version(),
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(response)
	}
}

// Ensure stores and clients satisfy interfaces at compile time.
var (
	_ domain.KVStore          = (*store.PostgresKV)(nil)
	_ domain.KVStore          = (*store.MemoryKV)(nil)
	_ domain.AgentRepository  = (*store.AgentRepository)(nil)
	_ domain.GenerationClient = (*llm.OpenAIClient)(nil)
	_ domain.GenerationClient = (*llm.AnthropicClient)(nil)
	_ domain.GenerationClient = (*llm.CerebrasClient)(nil)
	_ domain.GenerationClient = (*llm.MockClient)(nil)
)
