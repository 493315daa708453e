// Command sentryops launches a two-agent inspection operation: an explorer
// that sweeps a mission area for points of interest, and an inspector that
// visits each point the explorer found. By default both agents are driven
// by deterministic simulators (agentsim); real agents report telemetry over
// UDP via telemetryingest instead.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/sentryops/operation/agent"
	"github.com/sentryops/operation/agentsim"
	"github.com/sentryops/operation/config"
	"github.com/sentryops/operation/operation"
	"github.com/sentryops/operation/planner"
)

func main() {
	var (
		configPath     string
		basePositions  string
		metricsAddr    string
		healthAddr     string
		pattern        string
		showVersion    bool
	)
	flag.StringVar(&configPath, "config", "", "Path to a YAML operation config (overrides Default())")
	flag.StringVar(&basePositions, "base-positions", "", "Path to a base positions JSON file (overrides config's base_positions_path)")
	flag.StringVar(&metricsAddr, "metrics", "", "Expose Prometheus metrics on address (e.g. :9090)")
	flag.StringVar(&healthAddr, "health", "", "Expose /healthz and /status on address (e.g. :9091)")
	flag.StringVar(&pattern, "pattern", "spiral", "Explorer movement pattern: spiral|zigzag")
	flag.BoolVar(&showVersion, "version", false, "Show version and exit")
	flag.Parse()

	if showVersion {
		fmt.Println("sentryops – inspection operation orchestrator")
		return
	}

	logger := slog.Default()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if basePositions != "" {
		cfg.BasePositionsPath = basePositions
	}

	bases, err := config.LoadBasePositions(cfg.BasePositionsPath)
	if err != nil {
		log.Fatalf("load base positions: %v", err)
	}

	p, err := planner.New(cfg.Planner.Strategy)
	if err != nil {
		log.Fatalf("build planner: %v", err)
	}

	explorer := buildExplorer(pattern, logger)
	inspector := agentsim.NewInspectorSimulator(agentsim.InspectorConfig{
		Speed:             cfg.Inspector.Speed,
		ReachedTolerance:  cfg.Inspector.ReachedTolerance,
		StepInterval:      cfg.Inspector.StepInterval,
		MeanTemperature:   cfg.Inspector.MeanTemperature,
		TemperatureStdDev: cfg.Inspector.TemperatureStdDev,
	}, logger)

	op, err := operation.New(cfg, explorer, inspector, p, bases, logger)
	if err != nil {
		log.Fatalf("build operation: %v", err)
	}
	defer func() { _ = op.Close() }()

	watcher := config.NewPolicyWatcher(configPath, cfg.Telemetry, logger)
	watcher.OnChange(op.UpdatePolicy)
	if configPath != "" {
		if err := watcher.Watch(context.Background()); err != nil {
			logger.Warn("policy hot-reload disabled", "error", err)
		} else {
			defer watcher.Stop()
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt)
	go func() {
		<-sigCh
		logger.Info("signal received; initiating graceful shutdown")
		cancel()
		<-sigCh
		logger.Info("second signal received; forcing exit")
		os.Exit(1)
	}()

	done := make(chan struct{})
	op.OnFinished(func() {
		if path, err := op.SaveMetrics(cfg.MetricsOutputDir); err != nil {
			logger.Error("save metrics", "error", err)
		} else {
			logger.Info("metrics saved", "path", path)
		}
		close(done)
	})

	if metricsAddr != "" {
		serveMetrics(ctx, metricsAddr, op, logger)
	}
	if healthAddr != "" {
		serveHealth(ctx, healthAddr, op, logger)
	}

	if err := op.Start(ctx); err != nil {
		log.Fatalf("start operation: %v", err)
	}

	go runOperatorConsole(op, done)

	select {
	case <-done:
	case <-ctx.Done():
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			if path, err := op.SaveMetrics(cfg.MetricsOutputDir); err != nil {
				logger.Error("save metrics on shutdown", "error", err)
			} else {
				logger.Info("metrics saved on shutdown", "path", path)
			}
		}
	}

	snap := op.Snapshot()
	b, _ := json.MarshalIndent(snap, "", "  ")
	fmt.Fprintf(os.Stderr, "\n=== FINAL SNAPSHOT %s ===\n%s\n", time.Now().Format(time.RFC3339), string(b))
}

func buildExplorer(pattern string, logger *slog.Logger) agent.Agent {
	var mv agentsim.Pattern
	switch pattern {
	case "zigzag":
		mv = agentsim.NewZigzagPattern(5.0, 0.5, 0.5)
	default:
		mv = agentsim.NewSpiralPattern(0.3, 0.4)
	}
	return agentsim.NewExplorerSimulator(mv, 200*time.Millisecond, logger)
}

// serveMetrics mounts the Prometheus handler behind a type assertion since
// operation.MetricsProvider returns the narrower metrics.Provider interface,
// which has no HTTP concerns of its own.
func serveMetrics(ctx context.Context, addr string, op *operation.Operation, logger *slog.Logger) {
	mp, ok := op.MetricsProvider().(interface{ MetricsHandler() http.Handler })
	if !ok {
		logger.Warn("metrics provider does not expose an HTTP handler; -metrics ignored")
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", mp.MetricsHandler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		<-ctx.Done()
		_ = srv.Shutdown(context.Background())
	}()
	go func() {
		logger.Info("metrics listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server", "error", err)
		}
	}()
}

func serveHealth(ctx context.Context, addr string, op *operation.Operation, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"status": op.Health()})
	})
	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(op.Snapshot())
	})
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		<-ctx.Done()
		_ = srv.Shutdown(context.Background())
	}()
	go func() {
		logger.Info("health endpoint listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("health server", "error", err)
		}
	}()
}

// runOperatorConsole reads line commands from stdin: next (start the next
// mission), stop (end the current exploration early), status (print a
// snapshot), quit (exit the console loop). It stops reading once done
// closes so it never blocks process exit on a missing stdin.
func runOperatorConsole(op *operation.Operation, done <-chan struct{}) {
	scanner := bufio.NewScanner(os.Stdin)
	lines := make(chan string)
	go func() {
		defer close(lines)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-done:
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			switch strings.TrimSpace(strings.ToLower(line)) {
			case "next":
				op.NextMission()
			case "stop":
				op.StopInspection()
			case "status":
				b, _ := json.MarshalIndent(op.Snapshot(), "", "  ")
				fmt.Println(string(b))
			case "quit":
				return
			case "":
			default:
				fmt.Println("commands: next | stop | status | quit")
			}
		}
	}
}
