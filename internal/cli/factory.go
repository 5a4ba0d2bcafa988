// Package cli assembles the engine from configuration for the command
// line entry points.
package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	backend "github.com/redis/go-redis/v9"

	"github.com/aretw0/canopy"
	"github.com/aretw0/canopy/internal/adapters/file"
	"github.com/aretw0/canopy/internal/config"
	"github.com/aretw0/canopy/internal/logging"
	mcpadapter "github.com/aretw0/canopy/pkg/adapters/mcp"
	"github.com/aretw0/canopy/pkg/adapters/memory"
	redisadapter "github.com/aretw0/canopy/pkg/adapters/redis"
	"github.com/aretw0/canopy/pkg/llm"
	"github.com/aretw0/canopy/pkg/observability"
	"github.com/aretw0/canopy/pkg/ports"
	"github.com/aretw0/canopy/pkg/sandbox"
	"github.com/aretw0/canopy/pkg/selector"
	"github.com/aretw0/canopy/pkg/session"
)

// App holds one fully wired engine and its collaborators.
type App struct {
	Agent    *canopy.Agent
	Sessions *session.Manager
	MCP      *mcpadapter.Client
	Sandbox  *sandbox.Pyodide
	Registry *prometheus.Registry
	Config   config.Config
	Logger   *slog.Logger

	redisClient *backend.Client
}

// Close releases external connections.
func (a *App) Close() error {
	var first error
	if a.MCP != nil {
		if err := a.MCP.Close(); err != nil {
			first = err
		}
	}
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Build assembles the engine from configuration with standard CLI
// conventions.
func Build(ctx context.Context, cfg config.Config, debug bool) (*App, error) {
	logger := newLogger(debug)

	registry := prometheus.NewRegistry()
	metrics := observability.New(registry)

	actModel, err := llm.New(cfg.Act)
	if err != nil {
		return nil, fmt.Errorf("act model: %w", err)
	}
	reflectModel, err := llm.New(cfg.Reflect)
	if err != nil {
		return nil, fmt.Errorf("reflect model: %w", err)
	}

	mcpClient, err := newMCPClient(ctx, cfg.MCP)
	if err != nil {
		return nil, fmt.Errorf("mcp client: %w", err)
	}

	interp, err := sandbox.NewPyodide(sandbox.Config{
		Command:     cfg.Sandbox.Command,
		Module:      cfg.Sandbox.Module,
		SessionsDir: cfg.Sandbox.SessionsDir,
		AllowNet:    cfg.Sandbox.AllowNet,
	}, sandbox.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("sandbox: %w", err)
	}

	app := &App{
		MCP:      mcpClient,
		Sandbox:  interp,
		Registry: registry,
		Config:   cfg,
		Logger:   logger,
	}

	var store ports.BindingStore
	managerOpts := []session.ManagerOption{session.WithManagerLogger(logger)}
	if cfg.Redis.Addr != "" {
		client := backend.NewClient(&backend.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		app.redisClient = client
		store = redisadapter.NewStore(client, cfg.Redis.Prefix)
		managerOpts = append(managerOpts, session.WithLocker(redisadapter.NewLocker(client, cfg.Redis.Prefix)))
	} else {
		store = memory.NewStore()
	}
	app.Sessions = session.NewManager(store, managerOpts...)

	execOpts := []session.ExecutorOption{
		session.WithExecutorLogger(logger),
		session.WithExecutorMetrics(metrics),
	}
	if cfg.AuditDir != "" {
		execOpts = append(execOpts, session.WithAuditLog(file.NewAuditLog(cfg.AuditDir)))
	}
	executor := session.NewExecutor(interp, mcpClient.URL(), execOpts...)

	sel := selector.New(reflectModel,
		selector.WithMaxTools(cfg.Limits.MaxSelectedTools),
		selector.WithLogger(logger),
		selector.WithMetrics(metrics),
	)
	gate := canopy.NewGate(reflectModel,
		canopy.WithMaxRounds(cfg.Limits.MaxReflectionRounds),
		canopy.WithGateLogger(logger),
	)

	agent, err := canopy.New(actModel, mcpClient, executor, app.Sessions,
		canopy.WithSelector(sel),
		canopy.WithGate(gate),
		canopy.WithBasePrompt(cfg.BasePrompt),
		canopy.WithMaxTurns(cfg.Limits.MaxTurns),
		canopy.WithLogger(logger),
		canopy.WithMetrics(metrics),
	)
	if err != nil {
		return nil, err
	}
	app.Agent = agent

	return app, nil
}

// NewSessionManager wires only the binding store side, for session
// inspection commands that never run the agent.
func NewSessionManager(cfg config.Config, debug bool) (*session.Manager, func() error) {
	logger := newLogger(debug)
	if cfg.Redis.Addr != "" {
		client := backend.NewClient(&backend.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		store := redisadapter.NewStore(client, cfg.Redis.Prefix)
		return session.NewManager(store, session.WithManagerLogger(logger)), client.Close
	}
	return session.NewManager(memory.NewStore(), session.WithManagerLogger(logger)), func() error { return nil }
}

func newMCPClient(ctx context.Context, cfg config.MCPConfig) (*mcpadapter.Client, error) {
	switch cfg.Transport {
	case "", "sse":
		return mcpadapter.NewSSE(ctx, cfg.URL)
	case "http":
		return mcpadapter.NewStreamableHTTP(ctx, cfg.URL)
	default:
		return nil, fmt.Errorf("unknown mcp transport %q", cfg.Transport)
	}
}

func newLogger(debug bool) *slog.Logger {
	if debug {
		return logging.New(slog.LevelDebug)
	}
	return logging.New(slog.LevelInfo)
}
