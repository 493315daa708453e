package config

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"

	"github.com/sentryops/operation/internal/telemetry/policy"
)

// PolicyWatcher re-reads a config file's telemetry section whenever it
// changes on disk and atomically swaps the pointer callers read the active
// TelemetryPolicy through, so operators can retune health thresholds or
// tracing sample rate without restarting the operation.
type PolicyWatcher struct {
	path     string
	current  atomic.Pointer[policy.TelemetryPolicy]
	watcher  *fsnotify.Watcher
	logger   *slog.Logger
	onChange func(policy.TelemetryPolicy)
}

// OnChange registers a callback invoked with the newly loaded policy after
// each successful reload, letting a caller propagate it to a running
// operation.
func (w *PolicyWatcher) OnChange(cb func(policy.TelemetryPolicy)) {
	w.onChange = cb
}

// NewPolicyWatcher creates a watcher seeded with initial, watching path for
// writes. Callers that don't want hot-reload can simply never call Watch.
func NewPolicyWatcher(path string, initial policy.TelemetryPolicy, logger *slog.Logger) *PolicyWatcher {
	if logger == nil {
		logger = slog.Default()
	}
	w := &PolicyWatcher{path: path, logger: logger}
	normalized := initial.Normalize()
	w.current.Store(&normalized)
	return w
}

// Current returns the active TelemetryPolicy. Safe for concurrent use.
func (w *PolicyWatcher) Current() policy.TelemetryPolicy {
	return *w.current.Load()
}

// Watch begins watching the config file's directory for writes until ctx is
// cancelled. It is a no-op if path is empty.
func (w *PolicyWatcher) Watch(ctx context.Context) error {
	if w.path == "" {
		return nil
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	w.watcher = fw
	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		_ = fw.Close()
		return err
	}

	go func() {
		defer fw.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-fw.Events:
				if !ok {
					return
				}
				if ev.Name != w.path || ev.Op&fsnotify.Write == 0 {
					continue
				}
				w.reload()
			case err, ok := <-fw.Errors:
				if !ok {
					return
				}
				w.logger.Error("config watcher error", "error", err)
			}
		}
	}()
	return nil
}

func (w *PolicyWatcher) reload() {
	cfg, err := Load(w.path)
	if err != nil {
		w.logger.Error("reloading config", "error", err)
		return
	}
	normalized := cfg.Telemetry.Normalize()
	w.current.Store(&normalized)
	w.logger.Info("telemetry policy reloaded", "path", w.path)
	if w.onChange != nil {
		w.onChange(normalized)
	}
}

// Stop closes the underlying file watcher, if one was started.
func (w *PolicyWatcher) Stop() {
	if w.watcher != nil {
		_ = w.watcher.Close()
	}
}
