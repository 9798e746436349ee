package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"inkwell/internal/api"
	"inkwell/internal/config"
	"inkwell/internal/daemon"
	"inkwell/internal/events"
	"inkwell/internal/ipc"
	"inkwell/internal/logging"
	"inkwell/internal/preflight"
	"inkwell/internal/runs"
	"inkwell/internal/services"
	"inkwell/internal/stage"
	"inkwell/internal/template"
	"inkwell/internal/tool"
	"inkwell/internal/workflow"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
	Diagnostic  bool
}

// Run starts the inkwell daemon runtime loop and blocks until the context is
// cancelled or a termination signal arrives.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	if failed := preflight.Failed(preflight.RunAll(cfg)); len(failed) > 0 {
		details := make([]string, 0, len(failed))
		for _, result := range failed {
			details = append(details, fmt.Sprintf("%s: %s", result.Name, result.Detail))
		}
		return services.Wrap(services.ErrConfiguration, "daemon", "preflight",
			strings.Join(details, "; "), nil)
	}

	sessionID := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("inkwell-%s.log", sessionID))
	eventsPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("inkwell-%s.events", sessionID))

	level := strings.TrimSpace(opts.LogLevel)
	if level == "" {
		level = cfg.Logging.Level
	}
	logger, err := logging.New(logging.Options{
		Level:            level,
		Format:           cfg.Logging.Format,
		OutputPaths:      []string{"stdout", logPath},
		ErrorOutputPaths: []string{"stderr", logPath},
		Development:      opts.Development,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	if opts.Diagnostic {
		debugDir := filepath.Join(cfg.Paths.LogDir, "debug")
		if err := os.MkdirAll(debugDir, 0o755); err != nil {
			return fmt.Errorf("create debug log directory: %w", err)
		}
		debugLogPath := filepath.Join(debugDir, fmt.Sprintf("inkwell-%s.log", sessionID))
		debugLogger, debugErr := logging.New(logging.Options{
			Level:            "debug",
			Format:           "json",
			OutputPaths:      []string{debugLogPath},
			ErrorOutputPaths: []string{debugLogPath},
			Development:      true,
		})
		if debugErr != nil {
			fmt.Fprintf(os.Stderr, "warn: unable to initialize debug logger: %v\n", debugErr)
		} else {
			logger = logging.TeeLogger(logger, debugLogger.Handler())
			if err := ensureCurrentLogPointer(debugDir, debugLogPath); err != nil {
				fmt.Fprintf(os.Stderr, "warn: unable to update debug/inkwell.log link: %v\n", err)
			}
		}
		logger.Info("diagnostic mode enabled",
			logging.String(logging.FieldEventType, "diagnostic_mode_enabled"),
			logging.String("debug_log_path", debugLogPath),
		)
	}

	logToolSnapshot(logger, cfg)
	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update inkwell.log link: %v\n", err)
	}
	logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays,
		logging.RetentionTarget{Dir: cfg.Paths.LogDir, Pattern: "inkwell-*.log", Exclude: []string{logPath}},
		logging.RetentionTarget{Dir: cfg.Paths.LogDir, Pattern: "inkwell-*.events", Exclude: []string{eventsPath}},
	)

	pidPath := filepath.Join(cfg.Paths.LogDir, "inkwell.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	store, err := runs.Open(cfg)
	if err != nil {
		logger.Error("open run store", logging.Error(err))
		return err
	}
	defer store.Close()

	bus := events.NewBus(cfg.Events.BufferSize)
	if cfg.Events.Archive {
		archive, archiveErr := events.NewArchive(eventsPath)
		if archiveErr != nil {
			logger.Warn("event archive unavailable; events remain in memory only",
				logging.Error(archiveErr),
				logging.String(logging.FieldEventType, "event_archive_failed"),
				logging.String(logging.FieldImpact, "event history will not survive buffer rollover"),
			)
		} else if archive != nil {
			bus.AddSink(archive)
			defer archive.Close()
		}
	}

	// Workers that died mid-run in a previous session left rows stuck in
	// running; fail them before the manager starts claiming work.
	interrupted, err := store.FailInterrupted(signalCtx)
	if err != nil {
		logger.Warn("interrupted run sweep failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "interrupted_sweep_failed"),
			logging.String(logging.FieldErrorHint, "check run database access"),
		)
	} else if len(interrupted) > 0 {
		workflow.AnnounceTerminals(signalCtx, store, bus, interrupted, runs.StatusFailed, runs.InterruptedReason)
		logger.Info("failed interrupted runs",
			logging.Int("count", len(interrupted)),
			logging.String(logging.FieldEventType, "interrupted_runs_failed"),
		)
	}

	registry := stage.NewRegistry()
	if err := tool.RegisterFromConfig(registry, cfg, logger); err != nil {
		return fmt.Errorf("register stage tools: %w", err)
	}
	templates, err := template.FromConfig(cfg)
	if err != nil {
		return fmt.Errorf("build template registry: %w", err)
	}

	manager := workflow.NewManager(cfg, store, registry, templates, bus, logger)
	service := api.NewRunService(store, templates, manager, logger)

	d, err := daemon.New(cfg, store, logger, manager, service, bus)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	ipcServer, err := ipc.NewServer(signalCtx, cfg.SocketPath(), d, logger)
	if err != nil {
		return fmt.Errorf("start IPC server: %w", err)
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	if err := d.Start(signalCtx); err != nil {
		logger.Warn("daemon start failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "daemon_start_failed"),
			logging.String(logging.FieldErrorHint, "check configuration and run database access"),
			logging.String(logging.FieldImpact, "daemon will not process submitted runs"),
		)
	}

	<-signalCtx.Done()
	logger.Info("inkwell daemon shutting down")
	return nil
}

// ensureCurrentLogPointer keeps a stable inkwell.log name pointing at the
// newest session log so tailing does not chase timestamps. Falls back to a
// hard link on filesystems without symlink support.
func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, "inkwell.log")
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

// logToolSnapshot records stage tool availability at startup. Missing tools
// are a warning, not a failure; only runs routed through those stages break.
func logToolSnapshot(logger *slog.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		return
	}
	statuses := preflight.CheckStageTools(cfg)
	available := 0
	var missing []string
	for _, status := range statuses {
		if status.Available {
			available++
			continue
		}
		if !status.Optional {
			missing = append(missing, status.Name)
		}
	}
	logger.Info("stage tool snapshot",
		logging.String(logging.FieldEventType, "stage_tool_snapshot"),
		logging.Int("tools_total", len(statuses)),
		logging.Int("tools_available", available),
	)
	if len(missing) > 0 {
		logger.Warn("stage tools missing",
			logging.String(logging.FieldEventType, "stage_tools_missing"),
			logging.String("stages", strings.Join(missing, ", ")),
			logging.String(logging.FieldErrorHint, "configure [stages.<id>] command entries or install the binaries"),
			logging.String(logging.FieldImpact, "runs routed through these stages will fail"),
		)
	}
}
