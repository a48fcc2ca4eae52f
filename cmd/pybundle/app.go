// # cmd/pybundle/app.go
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"pybundle/internal/bundle"
	"pybundle/internal/config"
	"pybundle/internal/history"
	"pybundle/internal/output"
	"pybundle/internal/shared/observability"
	"pybundle/internal/shared/util"
	"pybundle/internal/watcher"
)

type App struct {
	Config    *config.Config
	CheckOnly bool

	store      *history.Store
	metrics    *observability.Server
	teaProgram *tea.Program
	throttle   *util.RebuildThrottle

	runMu      sync.Mutex
	lastResult *bundle.Result
	lastErr    error
}

func NewApp(cfg *config.Config, checkOnly bool) (*App, error) {
	app := &App{
		Config:    cfg,
		CheckOnly: checkOnly,
		// Capped so a branch checkout does not trigger hundreds of
		// passes.
		throttle: util.NewRebuildThrottle(),
	}

	if cfg.History.Path != "" {
		store, err := history.Open(cfg.History.Path)
		if err != nil {
			return nil, err
		}
		app.store = store
	}

	return app, nil
}

func (a *App) Close() {
	if a.store != nil {
		_ = a.store.Close()
	}
	if a.metrics != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = a.metrics.Stop(ctx)
	}
}

func (a *App) StartMetrics() error {
	a.metrics = observability.NewServer(a.Config.Metrics.Addr)
	return a.metrics.Start()
}

// RunOnce executes one bundling pass, persists outputs and history and
// reports the result. Returns false when the pass failed or check mode
// found errors.
func (a *App) RunOnce() bool {
	a.runMu.Lock()
	defer a.runMu.Unlock()

	started := time.Now()
	result, err := bundle.Run(context.Background(), bundle.Request{
		ProjectRoot:  a.Config.ProjectRoot,
		Entry:        a.Config.Entry,
		ExcludeDirs:  a.Config.Exclude.Dirs,
		ExcludeFiles: a.Config.Exclude.Files,
	})

	observability.BundleDuration.Observe(time.Since(started).Seconds())
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	observability.BundlesTotal.WithLabelValues(outcome).Inc()
	if err == nil {
		observability.ModulesBundled.Set(float64(result.Stats.Modules))
		observability.ItemsEmitted.Set(float64(result.Stats.IncludedItems))
		observability.SymbolRenames.Set(float64(result.Stats.Renames))
		observability.CycleGroups.Set(float64(result.Stats.CycleGroups))
		observability.OutputBytes.Set(float64(result.Stats.OutputBytes))
	}

	a.recordRun(result, err)

	if err == nil && a.Config.Report.DOT != "" {
		if dot, genErr := output.NewDOTGenerator(result.Graph).Generate(result.Groups); genErr == nil {
			if writeErr := os.WriteFile(a.Config.Report.DOT, []byte(dot), 0o644); writeErr != nil {
				slog.Warn("failed to write DOT report", "path", a.Config.Report.DOT, "error", writeErr)
			}
		}
	}

	if err != nil {
		a.printDiagnostics(result)
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		a.notifyUI(result, err)
		return false
	}

	if !a.CheckOnly {
		if writeErr := a.writeBundle(result.Output); writeErr != nil {
			slog.Error("failed to write bundle", "error", writeErr)
			return false
		}
	}

	a.printDiagnostics(result)
	a.printSummary(result)
	a.notifyUI(result, nil)
	return true
}

func (a *App) writeBundle(data []byte) error {
	if a.Config.Output == "" {
		_, err := os.Stdout.Write(data)
		return err
	}
	return os.WriteFile(a.Config.Output, data, 0o644)
}

func (a *App) recordRun(result *bundle.Result, runErr error) {
	if a.store == nil {
		return
	}
	warnings := 0
	for _, d := range result.Diagnostics {
		if d.Severity == bundle.Warning {
			warnings++
		}
	}
	run := history.Run{
		Entry:         a.Config.Entry,
		Succeeded:     runErr == nil,
		Modules:       result.Stats.Modules,
		Items:         result.Stats.Items,
		IncludedItems: result.Stats.IncludedItems,
		Renames:       result.Stats.Renames,
		CycleGroups:   result.Stats.CycleGroups,
		ElidedImports: result.Stats.ElidedImports,
		OutputBytes:   result.Stats.OutputBytes,
		Warnings:      warnings,
		DurationMS:    result.Stats.Duration.Milliseconds(),
	}
	if _, err := a.store.RecordRun(run); err != nil {
		slog.Warn("failed to record run history", "error", err)
	}
}

func (a *App) printDiagnostics(result *bundle.Result) {
	for _, d := range result.Diagnostics {
		where := ""
		if d.Location.File != "" {
			where = fmt.Sprintf(" (%s:%d)", d.Location.File, d.Location.Line)
		} else if len(d.Modules) > 0 {
			where = fmt.Sprintf(" [%s]", strings.Join(d.Modules, ", "))
		}
		fmt.Fprintf(os.Stderr, "%s: %s%s\n", d.Severity, d.Message, where)
	}
}

func (a *App) printSummary(result *bundle.Result) {
	verb := "bundled"
	if a.CheckOnly {
		verb = "checked"
	}
	fmt.Fprintf(os.Stderr, "%s %d modules (%d of %d statements, %d renames, %d cycle groups) in %v\n",
		verb, result.Stats.Modules, result.Stats.IncludedItems, result.Stats.Items,
		result.Stats.Renames, result.Stats.CycleGroups, result.Stats.Duration.Round(time.Millisecond))
}

// HandleChanges is the debounced watcher callback.
func (a *App) HandleChanges(paths []string) {
	observability.WatcherEventsTotal.Inc()
	if !a.throttle.Allow() {
		slog.Debug("rebuild throttled", "changes", len(paths))
		return
	}
	slog.Info("rebuilding", "changes", len(paths))
	a.RunOnce()
}

func (a *App) StartWatcher() error {
	w, err := watcher.New(
		a.Config.Watch.Debounce,
		a.Config.Exclude.Dirs,
		a.Config.Exclude.Files,
		a.HandleChanges,
	)
	if err != nil {
		return err
	}
	// Runs until process exit; no Close needed here.
	return w.Watch(a.Config.ProjectRoot)
}

func (a *App) RunUI() error {
	m := initialModel(a.Config.Entry)
	p := tea.NewProgram(m, tea.WithAltScreen())
	a.teaProgram = p

	// Show the result of the pass that ran before the UI came up.
	go func() {
		a.runMu.Lock()
		result, err := a.lastResult, a.lastErr
		a.runMu.Unlock()
		if result != nil {
			p.Send(updateMsg{result: result, err: err})
		}
	}()

	_, err := p.Run()
	return err
}

func (a *App) notifyUI(result *bundle.Result, err error) {
	a.lastResult, a.lastErr = result, err
	if a.teaProgram == nil {
		return
	}
	a.teaProgram.Send(updateMsg{result: result, err: err})
}
