package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"time"

	"github.com/vk/stagecue/internal/ctxlog"
	"github.com/vk/stagecue/internal/effect"
	"github.com/vk/stagecue/internal/effect/remote"
	"github.com/vk/stagecue/internal/effect/sim"
	"github.com/vk/stagecue/internal/sched"
	"github.com/vk/stagecue/internal/script"
)

// App encapsulates the engine's dependencies, configuration, and lifecycle.
type App struct {
	outW   io.Writer
	logger *slog.Logger
	config *Config
	doc    *script.Document
	stage  *sim.Stage
	bridge *remote.Bridge
	sched  *sched.Scheduler
}

// NewApp is the constructor for the main application. It returns a fully
// initialized App instance, including its own isolated logger, simulated
// stage, and scheduler with every list registered.
func NewApp(ctx context.Context, outW io.Writer, cfg *Config) (*App, error) {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, outW)
	ctx = ctxlog.WithLogger(ctx, logger)
	logger.Debug("Logger configured successfully.")

	doc, err := script.Load(ctx, cfg.ScriptPath)
	if err != nil {
		return nil, fmt.Errorf("loading scripts: %w", err)
	}
	logger.Debug("Scripts loaded.", "lists", len(doc.Order))

	stage := sim.New()
	if cfg.WorldPath != "" {
		world, err := sim.LoadWorld(cfg.WorldPath)
		if err != nil {
			return nil, fmt.Errorf("loading world: %w", err)
		}
		if err := world.Apply(stage); err != nil {
			return nil, fmt.Errorf("applying world: %w", err)
		}
		logger.Debug("World applied.", "path", cfg.WorldPath)
	}

	port := stage.Port()
	var bridge *remote.Bridge
	if cfg.RemoteURL != "" {
		bridge, err = remote.Dial(ctx, remote.Options{
			URL:            cfg.RemoteURL,
			Namespace:      cfg.RemoteNamespace,
			ConnectTimeout: 10 * time.Second,
		})
		if err != nil {
			return nil, fmt.Errorf("connecting presentation bridge: %w", err)
		}
		// Presentation concerns go over the wire; variables and inventory
		// stay authoritative in the local simulation.
		port.Actors = bridge
		port.Speech = bridge
		port.Scene = bridge
		logger.Info("Presentation bridge connected.", "url", cfg.RemoteURL)
	}

	scheduler := sched.New(port, rand.New(rand.NewSource(cfg.Seed)))
	for _, id := range doc.Order {
		if err := scheduler.Register(doc.Lists[id]); err != nil {
			return nil, fmt.Errorf("registering list %q: %w", id, err)
		}
	}
	logger.Debug("All lists registered.", "count", len(doc.Order))

	return &App{
		outW:   outW,
		logger: logger,
		config: cfg,
		doc:    doc,
		stage:  stage,
		bridge: bridge,
		sched:  scheduler,
	}, nil
}

// Scheduler returns the application's scheduler. This is primarily for testing.
func (a *App) Scheduler() *sched.Scheduler {
	return a.sched
}

// Stage returns the simulated stage backing the scheduler's effect port.
func (a *App) Stage() *sim.Stage {
	return a.stage
}

// Port returns the effect port the scheduler runs against.
func (a *App) Port() *effect.Stage {
	return a.sched.Stage()
}

// Close releases any external connections held by the app.
func (a *App) Close() {
	if a.bridge != nil {
		a.bridge.Close()
	}
}
