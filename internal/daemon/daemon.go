package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/gofrs/flock"

	"inkwell/internal/api"
	"inkwell/internal/config"
	"inkwell/internal/events"
	"inkwell/internal/logging"
	"inkwell/internal/runs"
	"inkwell/internal/workflow"
)

// Daemon coordinates the background workflow services and enforces
// single-instance execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *runs.Store
	workflow *workflow.Manager
	service  *api.RunService
	bus      *events.Bus
	logPath  string

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	Workflow     workflow.StatusSummary
	RunDBPath    string
	LockFilePath string
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *runs.Store, logger *slog.Logger, wf *workflow.Manager, service *api.RunService, bus *events.Bus) (*Daemon, error) {
	if cfg == nil || store == nil || logger == nil || wf == nil || service == nil || bus == nil {
		return nil, errors.New("daemon requires config, store, logger, workflow manager, run service, and event bus")
	}

	lockPath := filepath.Join(cfg.Paths.LogDir, "inkwell.lock")
	return &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    store,
		workflow: wf,
		service:  service,
		bus:      bus,
		logPath:  filepath.Join(cfg.Paths.LogDir, "inkwell.log"),
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// Start launches the workflow manager and acquires the daemon lock.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another inkwell daemon instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	if err := d.workflow.Start(d.ctx); err != nil {
		_ = d.lock.Unlock()
		d.cancel()
		d.ctx = nil
		d.cancel = nil
		return fmt.Errorf("start workflow: %w", err)
	}

	d.running.Store(true)
	d.logger.Info("inkwell daemon started", logging.String("lock", d.lockPath))
	return nil
}

// Stop stops background processing and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.workflow.Stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("inkwell daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// SubmitRun validates the template and creates a pending run.
func (d *Daemon) SubmitRun(ctx context.Context, templateName string, input map[string]any) (api.Run, error) {
	if d.service == nil {
		return api.Run{}, errors.New("run service unavailable")
	}
	return d.service.Submit(ctx, templateName, input)
}

// ListRuns returns runs filtered by optional statuses.
func (d *Daemon) ListRuns(ctx context.Context, statuses []runs.Status) ([]api.Run, error) {
	if d.service == nil {
		return nil, errors.New("run service unavailable")
	}
	return d.service.List(ctx, statuses...)
}

// DescribeRun returns a run together with its recorded stage results.
func (d *Daemon) DescribeRun(ctx context.Context, runID string) (*api.RunDetail, error) {
	if d.service == nil {
		return nil, errors.New("run service unavailable")
	}
	return d.service.Describe(ctx, runID)
}

// CancelRun requests cancellation of a pending or running run.
func (d *Daemon) CancelRun(ctx context.Context, runID string) error {
	if d.service == nil {
		return errors.New("run service unavailable")
	}
	return d.service.Cancel(ctx, runID)
}

// RunStats returns a count of runs grouped by status.
func (d *Daemon) RunStats(ctx context.Context) (map[string]int, error) {
	if d.service == nil {
		return nil, errors.New("run service unavailable")
	}
	return d.service.Stats(ctx)
}

// Templates describes the registered workflow templates.
func (d *Daemon) Templates() []api.TemplateInfo {
	if d.service == nil {
		return nil
	}
	return d.service.Templates()
}

// Events returns events after the given sequence number. With wait set the
// call blocks until new events arrive or ctx is done.
func (d *Daemon) Events(ctx context.Context, since uint64, limit int, wait bool) ([]events.Event, uint64, error) {
	if d.bus == nil {
		return nil, 0, errors.New("event bus unavailable")
	}
	return d.bus.Fetch(ctx, since, limit, wait)
}

// TailEvents returns up to limit of the most recent events together with the
// cursor for subsequent Events calls.
func (d *Daemon) TailEvents(limit int) ([]events.Event, uint64) {
	if d.bus == nil {
		return nil, 0
	}
	return d.bus.Tail(limit)
}

// ClearRuns removes every run row regardless of status.
func (d *Daemon) ClearRuns(ctx context.Context) (int64, error) {
	if d.store == nil {
		return 0, errors.New("run store unavailable")
	}
	return d.store.Clear(ctx)
}

// ClearCompleted removes only completed runs.
func (d *Daemon) ClearCompleted(ctx context.Context) (int64, error) {
	if d.store == nil {
		return 0, errors.New("run store unavailable")
	}
	return d.store.ClearCompleted(ctx)
}

// ClearFailed removes only failed runs.
func (d *Daemon) ClearFailed(ctx context.Context) (int64, error) {
	if d.store == nil {
		return 0, errors.New("run store unavailable")
	}
	return d.store.ClearFailed(ctx)
}

// RunHealth returns aggregate run diagnostics.
func (d *Daemon) RunHealth(ctx context.Context) (runs.HealthSummary, error) {
	if d.store == nil {
		return runs.HealthSummary{}, errors.New("run store unavailable")
	}
	return d.store.Health(ctx)
}

// DatabaseHealth returns detailed database diagnostics.
func (d *Daemon) DatabaseHealth(ctx context.Context) (runs.DatabaseHealth, error) {
	if d.store == nil {
		return runs.DatabaseHealth{}, errors.New("run store unavailable")
	}
	return d.store.CheckHealth(ctx)
}

// LogPath returns the path to the daemon log file.
func (d *Daemon) LogPath() string {
	return d.logPath
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	summary := d.workflow.Status(ctx)
	return Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		Workflow:     summary,
		RunDBPath:    d.store.Path(),
		LockFilePath: d.lockPath,
	}
}
