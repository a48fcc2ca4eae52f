// # cmd/pybundle/main.go
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"pybundle/internal/config"
)

var (
	configPath  = flag.String("config", "./pybundle.toml", "Path to config file")
	entry       = flag.String("entry", "", "Entry module file (overrides config)")
	out         = flag.String("out", "", "Output file; empty writes to stdout")
	root        = flag.String("root", "", "Project root (overrides config)")
	check       = flag.Bool("check", false, "Analyze only; report conflicts and cycles without writing a bundle")
	watch       = flag.Bool("watch", false, "Rebuild on file changes")
	ui          = flag.Bool("ui", false, "Enable terminal UI mode (implies -watch)")
	dotPath     = flag.String("dot", "", "Write the module graph as DOT to this path")
	historyPath = flag.String("history", "", "SQLite file for run history")
	metricsAddr = flag.String("metrics", "", "Listen address for /metrics and /health")
	verbose     = flag.Bool("verbose", false, "Enable verbose logging")
	version     = flag.Bool("version", false, "Print version and exit")
)

const VERSION = "1.0.0"

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("pybundle v%s\n", VERSION)
		os.Exit(0)
	}

	logLevel := slog.LevelInfo
	if *verbose {
		logLevel = slog.LevelDebug
	}

	output := os.Stderr
	if *ui {
		// In UI mode, avoid stderr logs corrupting the TUI.
		logPath := resolveLogPath()
		if err := os.MkdirAll(filepath.Dir(logPath), 0o700); err == nil {
			if f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600); err == nil {
				output = f
			}
		}
	}

	logger := slog.New(slog.NewTextHandler(output, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Error("failed to load config", "error", err)
			os.Exit(1)
		}
		cfg = config.Default()
	}

	// Flags win over the config file.
	if *root != "" {
		cfg.ProjectRoot = *root
	}
	if *entry != "" {
		cfg.Entry = *entry
	}
	if *out != "" {
		cfg.Output = *out
	}
	if *dotPath != "" {
		cfg.Report.DOT = *dotPath
	}
	if *historyPath != "" {
		cfg.History.Path = *historyPath
	}
	if *metricsAddr != "" {
		cfg.Metrics.Addr = *metricsAddr
	}
	if flag.NArg() > 0 && cfg.Entry == "" {
		cfg.Entry = flag.Arg(0)
	}
	if cfg.Entry == "" {
		fmt.Fprintln(os.Stderr, "no entry module: pass -entry, a positional argument or set entry in the config")
		os.Exit(2)
	}

	app, err := NewApp(cfg, *check)
	if err != nil {
		slog.Error("failed to initialize", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	if cfg.Metrics.Addr != "" {
		if err := app.StartMetrics(); err != nil {
			slog.Error("failed to start metrics server", "error", err)
			os.Exit(1)
		}
	}

	ok := app.RunOnce()
	if !*watch && !*ui {
		if !ok {
			os.Exit(1)
		}
		return
	}

	if err := app.StartWatcher(); err != nil {
		slog.Error("failed to start watcher", "error", err)
		os.Exit(1)
	}

	if *ui {
		if err := app.RunUI(); err != nil {
			slog.Error("failed to run UI", "error", err)
			os.Exit(1)
		}
		return
	}

	// Block forever; the watcher drives rebuilds.
	select {}
}

func resolveLogPath() string {
	if xdg := os.Getenv("XDG_STATE_HOME"); xdg != "" {
		return filepath.Join(xdg, "pybundle", "pybundle.log")
	}

	home, err := os.UserHomeDir()
	if err == nil && home != "" {
		return filepath.Join(home, ".local", "state", "pybundle", "pybundle.log")
	}

	return "pybundle.log"
}
