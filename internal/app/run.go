package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/specialistvlad/rtprop/internal/ctxlog"
	"github.com/specialistvlad/rtprop/internal/notify"
	"github.com/specialistvlad/rtprop/internal/override"
	"github.com/specialistvlad/rtprop/internal/path"
	"github.com/specialistvlad/rtprop/internal/report"
	"github.com/specialistvlad/rtprop/internal/rtti"
	"github.com/specialistvlad/rtprop/modules/scene"
)

// Run builds the demo scene, applies the configured overrides and edits,
// and prints the requested values.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")
	defer a.registry.Close(ctx)

	a.scheduler.Start(ctx)
	defer a.scheduler.Close()

	if a.config.NotifyURL != "" {
		client, err := notify.DialSocketIO(ctx, a.config.NotifyURL, a.config.NotifyNamespace, a.config.NotifyInsecure)
		if err != nil {
			return fmt.Errorf("failed to connect notification channel: %w", err)
		}
		defer client.Disconnect()
		sio := notify.NewSocketIO(ctx, client, 256)
		defer sio.Close()
		a.sinks = append(a.sinks, sio)
		a.logger.Info("Streaming property changes.", "url", a.config.NotifyURL)
	}

	// Reports are collected on the main goroutine only; the recompute
	// workers run with the plain context.
	reports := &report.List{}
	rctx := report.WithList(ctx, reports)
	defer a.logReports(ctx, reports)

	root, err := scene.NewDemo(rctx, a.registry, a.store)
	if err != nil {
		return fmt.Errorf("failed to build scene: %w", err)
	}
	lib, err := scene.Library(a.registry, scene.DemoData())
	if err != nil {
		return fmt.Errorf("failed to build library scene: %w", err)
	}
	a.logger.Debug("Scene built.", "owner", root.Owner.ID)

	if a.config.OverridesPath != "" {
		ops, err := loadOverrides(rctx, a.config.OverridesPath)
		if err != nil {
			return fmt.Errorf("failed to load overrides: %w", err)
		}
		err = a.edit(func() error {
			return override.ApplyAll(rctx, a.registry, root, lib, ops)
		})
		if err != nil {
			a.logger.Warn("Some overrides were skipped.", "error", err)
		}
		a.logger.Info("Overrides applied.", "count", len(ops), "dirty", a.dirty.Dirty(root.Owner.ID))
	}

	var errs []error
	for _, set := range a.config.Sets {
		if err := a.edit(func() error { return a.set(rctx, root, set) }); err != nil {
			errs = append(errs, err)
		}
	}

	for _, p := range a.config.Gets {
		v, err := path.Get(rctx, a.registry, root, p)
		if err != nil {
			errs = append(errs, fmt.Errorf("get %s: %w", p, err))
			continue
		}
		fmt.Fprintf(a.outW, "%s = %s\n", p, formatValue(v))
	}

	if a.config.DumpSchema {
		if err := a.printSchema(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.config.DumpDiff {
		if err := a.printDiff(rctx, root, lib); err != nil {
			errs = append(errs, err)
		}
	}

	a.logger.Debug("App.Run method finished.")
	return errors.Join(errs...)
}

// edit runs fn with recompute held back, then lets the workers catch up.
// Workers read scene data, so none may run while fn writes it.
func (a *App) edit(fn func() error) error {
	a.scheduler.Flush()
	a.scheduler.Pause()
	err := fn()
	a.scheduler.Resume()
	a.scheduler.Flush()
	return err
}

func (a *App) set(ctx context.Context, root rtti.Ptr, set Assignment) error {
	v, err := parseValue(set.Value)
	if err != nil {
		return fmt.Errorf("set %s: %w", set.Path, err)
	}
	if err := path.Set(ctx, a.registry, root, set.Path, v); err != nil {
		return fmt.Errorf("set %s: %w", set.Path, err)
	}
	a.logger.Debug("Property set.", "path", set.Path, "value", set.Value)
	return nil
}

func (a *App) printSchema() error {
	infos, err := a.registry.Schema()
	if err != nil {
		return fmt.Errorf("failed to build schema: %w", err)
	}
	out, err := json.MarshalIndent(infos, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode schema: %w", err)
	}
	fmt.Fprintln(a.outW, string(out))
	return nil
}

func (a *App) printDiff(ctx context.Context, root, lib rtti.Ptr) error {
	ops, err := override.Diff(ctx, a.registry, root, lib)
	if err != nil {
		return fmt.Errorf("failed to record overrides: %w", err)
	}
	out, err := override.Marshal(ops)
	if err != nil {
		return fmt.Errorf("failed to encode overrides: %w", err)
	}
	fmt.Fprintln(a.outW, string(out))
	return nil
}

func (a *App) logReports(ctx context.Context, reports *report.List) {
	for _, r := range reports.Items() {
		level := slog.LevelInfo
		switch r.Severity {
		case report.Warning:
			level = slog.LevelWarn
		case report.Error:
			level = slog.LevelError
		}
		a.logger.Log(ctx, level, r.Message, "kind", string(r.Kind))
	}
}
