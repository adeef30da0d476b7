package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/specialistvlad/rtprop/internal/ctxlog"
	"github.com/specialistvlad/rtprop/internal/entitystore"
	"github.com/specialistvlad/rtprop/internal/notify"
	"github.com/specialistvlad/rtprop/internal/recompute"
	"github.com/specialistvlad/rtprop/internal/rtti"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW      io.Writer
	logger    *slog.Logger
	config    *Config
	registry  *rtti.Registry
	store     *entitystore.Store
	scheduler *recompute.Scheduler
	dirty     *notify.DirtySet

	// sinks receive every property change event. Run may append to it
	// before the first edit.
	sinks notify.Fanout
}

// NewApp is the constructor for the main application. It returns a fully
// initialized App instance, including its own isolated logger and registry.
// Results go to outW and logs to logW.
func NewApp(outW, logW io.Writer, cfg *Config, modules ...rtti.Module) *App {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, logW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	a := &App{
		outW:     outW,
		logger:   logger,
		config:   cfg,
		registry: rtti.New(),
		store:    entitystore.New(),
		dirty:    &notify.DirtySet{},
	}
	a.scheduler = recompute.New(a.reevaluate, cfg.WorkerCount)
	a.sinks = notify.Fanout{
		notify.Log{},
		notify.Filter{Tags: notify.Recompute, Next: a.scheduler},
		a.dirty,
	}

	if len(modules) == 0 {
		modules = coreModules(notify.SinkFunc(a.notify))
	}
	if err := a.registry.Install(ctx, modules...); err != nil {
		// A schema that does not register is a programmer error, so we panic.
		panic(fmt.Errorf("failed to register modules: %w", err))
	}
	logger.Debug("All schema modules registered.", "modules", len(modules), "structs", a.registry.Len())

	return a
}

func (a *App) notify(ctx context.Context, ev notify.Event) {
	a.sinks.Notify(ctx, ev)
}

// Registry returns the application's registry. This is primarily for testing.
func (a *App) Registry() *rtti.Registry {
	return a.registry
}

// Store returns the entity store holding the live scene.
func (a *App) Store() *entitystore.Store {
	return a.store
}
