package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	a2aadapter "github.com/Strob0t/CodeForge/internal/adapter/a2a"
	"github.com/Strob0t/CodeForge/internal/adapter/cfdeploy"
	"github.com/Strob0t/CodeForge/internal/adapter/gitexport"
	cfhttp "github.com/Strob0t/CodeForge/internal/adapter/http"
	"github.com/Strob0t/CodeForge/internal/adapter/llmclient"
	"github.com/Strob0t/CodeForge/internal/adapter/mcp"
	cfnats "github.com/Strob0t/CodeForge/internal/adapter/nats"
	"github.com/Strob0t/CodeForge/internal/adapter/otel"
	"github.com/Strob0t/CodeForge/internal/adapter/postgres"
	"github.com/Strob0t/CodeForge/internal/adapter/ristretto"
	"github.com/Strob0t/CodeForge/internal/adapter/sandboxhttp"
	"github.com/Strob0t/CodeForge/internal/adapter/scaffoldstatic"
	"github.com/Strob0t/CodeForge/internal/adapter/secretsvault"
	"github.com/Strob0t/CodeForge/internal/adapter/ws"
	"github.com/Strob0t/CodeForge/internal/config"
	"github.com/Strob0t/CodeForge/internal/middleware"
	"github.com/Strob0t/CodeForge/internal/port/broadcast"
	"github.com/Strob0t/CodeForge/internal/port/messagequeue"
	"github.com/Strob0t/CodeForge/internal/resilience"
	"github.com/Strob0t/CodeForge/internal/service"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	slog.Info("config loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Logging.Level,
		"pg_max_conns", cfg.Postgres.MaxConns,
	)

	ctx := context.Background()

	// --- Tracing ---

	var shutdownTracer otel.ShutdownFunc = func(context.Context) error { return nil }
	if cfg.Otel.Endpoint != "" {
		shutdownTracer, err = otel.InitTracer(ctx, cfg.Otel.ServiceName, cfg.Otel.Endpoint)
		if err != nil {
			return fmt.Errorf("otel: %w", err)
		}
	}
	defer func() { _ = shutdownTracer(context.Background()) }()

	// --- Infrastructure ---

	pool, err := postgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer pool.Close()
	slog.Info("postgres connected")

	if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	slog.Info("migrations applied")

	store := postgres.NewStore(pool)

	var queue messagequeue.Queue
	if cfg.NATS.URL != "" {
		q, err := cfnats.Connect(ctx, cfg.NATS.URL)
		if err != nil {
			return fmt.Errorf("nats: %w", err)
		}
		defer func() { _ = q.Close() }()
		queue = q
		slog.Info("nats connected", "url", cfg.NATS.URL)
	}

	previews, err := ristretto.New(cfg.Cache.MaxCostBytes)
	if err != nil {
		return fmt.Errorf("ristretto: %w", err)
	}
	defer previews.Close()

	// --- External API clients ---

	llmC := llmclient.NewClient(cfg.LLM.URL, cfg.LLM.APIKey, cfg.LLM.Model)
	llmC.SetBreaker(resilience.NewBreaker(cfg.Breaker.MaxFailures, cfg.Breaker.Timeout))

	sandboxC := sandboxhttp.NewClient(cfg.Sandbox.URL, cfg.Sandbox.APIKey)
	sandboxC.SetBreaker(resilience.NewBreaker(cfg.Breaker.MaxFailures, cfg.Breaker.Timeout))

	deployC := cfdeploy.NewClient(cfg.Deploy.APIBaseURL)
	deployC.SetBreaker(resilience.NewBreaker(cfg.Breaker.MaxFailures, cfg.Breaker.Timeout))

	exportC := gitexport.NewClient(cfg.Export.URL, cfg.Export.APIToken)
	exportC.SetBreaker(resilience.NewBreaker(cfg.Breaker.MaxFailures, cfg.Breaker.Timeout))

	vault, err := secretsvault.NewVault(secretsvault.EnvLoader("CLOUDFLARE_CREDENTIALS"))
	if err != nil {
		return fmt.Errorf("secretsvault: %w", err)
	}

	scaffoldProvider := scaffoldstatic.NewProvider()

	// --- Session runtime ---

	hub := ws.NewHub()
	registry := service.NewSessionRegistry()

	eventsFactory := func(sessionID string) broadcast.Broadcaster {
		return ws.NewRelayBroadcaster(hub, sessionID, queue)
	}

	if queue != nil {
		cancelRelay, err := ws.SubscribeRelay(ctx, hub, queue)
		if err != nil {
			return fmt.Errorf("relay subscribe: %w", err)
		}
		defer cancelRelay()
	}

	lifecycle := service.NewLifecycle(service.Collaborators{
		DB:       store,
		Sandbox:  sandboxC,
		Previews: previews,
		Deployer: deployC,
		Secrets:  vault,
		LLM:      llmC,
		Scaffold: scaffoldProvider,
		Events:   eventsFactory,

		PreviewWaitTimeout: cfg.Session.PreviewWaitTimeout,
	}, logger)

	// --- HTTP ---

	sessionsHandler := cfhttp.NewSessionsHandler(lifecycle, registry)
	exportHandler := cfhttp.NewExportHandler(registry, exportC)
	controlHandler := ws.NewControlHandler(registry)

	mcpServer := mcp.NewServer(mcp.ServerConfig{
		Addr:    ":" + cfg.Server.Port,
		Name:    cfg.MCP.Name,
		Version: cfg.MCP.Version,
		APIKey:  cfg.MCP.APIKey,
	}, mcp.ServerDeps{Sessions: registry})

	a2aHandler := a2aadapter.NewHandler(baseURL(cfg), lifecycle, registry, logger)

	r := chi.NewRouter()

	r.Use(cfhttp.CORS(cfg.Server.CORSOrigin))
	r.Use(cfhttp.SecurityHeaders)
	r.Use(middleware.RequestID)
	r.Use(cfhttp.Logger)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(60 * time.Second))

	r.Get("/health", healthHandler(cfg))

	r.Post("/sessions", sessionsHandler.HandleCreate)
	r.Get("/sessions/{id}/state", sessionsHandler.HandleGetState)
	r.Post("/sessions/{id}/export", exportHandler.HandlePush)

	r.Get("/ws/{sessionID}", func(w http.ResponseWriter, req *http.Request) {
		sessionID := chi.URLParam(req, "sessionID")
		hub.HandleWS(w, req, sessionID, controlHandler)
	})

	a2aHandler.MountRoutes(r)

	r.Mount("/mcp", mcpServer.Handler())

	addr := ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		slog.Info("starting server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
		}
	}()

	<-done
	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}

// baseURL is the externally reachable address the A2A agent card
// advertises. AGENTRT_BASE_URL overrides the localhost default this
// derives from cfg.Server.Port for local development.
func baseURL(cfg *config.Config) string {
	if v := os.Getenv("AGENTRT_BASE_URL"); v != "" {
		return v
	}
	return "http://localhost:" + cfg.Server.Port
}

// healthHandler returns an http.HandlerFunc that reports service health.
func healthHandler(cfg *config.Config) http.HandlerFunc {
	type healthStatus struct {
		Status  string `json:"status"`
		Sandbox string `json:"sandbox"`
		LLM     string `json:"llm"`
	}

	return func(w http.ResponseWriter, _ *http.Request) {
		status := healthStatus{
			Status:  "ok",
			Sandbox: cfg.Sandbox.URL,
			LLM:     cfg.LLM.URL,
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(status)
	}
}
