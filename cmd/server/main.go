package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	taskflow "github.com/dagtask/planrunner"
	"github.com/dagtask/planrunner/internal/infrastructure/websocket"
)

func main() {
	cfg := taskflow.LoadConfig()
	log := taskflow.NewLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := openArchive(ctx, cfg.DatabaseDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open run archive")
	}

	tools, catalog := openToolRegistry(ctx, log)

	hub := websocket.NewHub(log)
	go hub.Run()
	metrics := taskflow.NewMetricsCollector()
	metricsSink, _ := taskflow.NewMetricsSink(metrics)
	trace := taskflow.CombineSinks(metricsSink, taskflow.NewTraceBroadcastSink(hub))

	svc, err := taskflow.NewServiceFromConfig(ctx, cfg, taskflow.ServiceConfig{
		Catalog:         catalog,
		Tools:           tools,
		Store:           store,
		Logger:          log,
		CachePath:       os.Getenv("SEMANTIC_CACHE_PATH"),
		ExecutorOptions: []taskflow.ExecutorOption{taskflow.WithTraceSink(trace)},
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to wire service")
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealthz)
	mux.HandleFunc("POST /runs", handleCreateRun(svc, log))
	mux.HandleFunc("GET /runs", handleListRuns(store, log))
	mux.HandleFunc("GET /runs/{id}", handleGetRun(store, log))
	mux.Handle("GET /ws", websocket.NewHandler(hub, websocket.NewNoAuth(), log))

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("address", httpServer.Addr).Msg("server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}
}

func openArchive(ctx context.Context, dsn string) (taskflow.ArchiveStore, error) {
	if dsn == "" {
		return taskflow.NewMemoryArchive(), nil
	}
	return taskflow.NewPostgresArchive(ctx, dsn)
}

// openToolRegistry connects to the MCP servers named in MCP_SERVERS_FILE, if set,
// or falls back to an empty in-memory registry when no tool source is configured.
func openToolRegistry(ctx context.Context, log taskflow.Logger) (taskflow.ToolRegistry, []taskflow.ToolDescriptor) {
	path := os.Getenv("MCP_SERVERS_FILE")
	if path == "" {
		reg := taskflow.NewInMemoryToolRegistry()
		return reg, reg.Descriptors()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		log.Fatal().Err(err).Str("path", path).Msg("failed to read mcp servers file")
	}
	var servers []taskflow.MCPServerConfig
	if err := json.Unmarshal(data, &servers); err != nil {
		log.Fatal().Err(err).Str("path", path).Msg("failed to parse mcp servers file")
	}

	reg := taskflow.NewMCPToolRegistry(servers, log)
	if err := reg.Connect(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to connect to mcp servers")
	}
	return reg, reg.Descriptors()
}

type createRunRequest struct {
	Task string `json:"task"`
}

func handleCreateRun(svc *taskflow.Service, log taskflow.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createRunRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Task == "" {
			http.Error(w, "task is required", http.StatusBadRequest)
			return
		}

		result, err := svc.Run(r.Context(), req.Task)
		if err != nil {
			log.Error().Str("run_id", result.RunID).Err(err).Msg("run failed")
		}
		writeJSON(w, http.StatusCreated, result)
	}
}

func handleListRuns(store taskflow.ArchiveStore, log taskflow.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		runs, err := store.List(r.Context())
		if err != nil {
			log.Error().Err(err).Msg("failed to list runs")
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, runs)
	}
}

func handleGetRun(store taskflow.ArchiveStore, log taskflow.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		rec, err := store.Get(r.Context(), id)
		if errors.Is(err, taskflow.ErrRunNotFound) {
			http.Error(w, "run not found", http.StatusNotFound)
			return
		}
		if err != nil {
			log.Error().Err(err).Str("run_id", id).Msg("failed to load run")
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, rec)
	}
}

func handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
