package workflow

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"inkwell/internal/config"
	"inkwell/internal/events"
	"inkwell/internal/logging"
	"inkwell/internal/runs"
	"inkwell/internal/stage"
	"inkwell/internal/template"
)

// Manager runs the worker pool that claims pending runs and drives each one
// through the Coordinator.
type Manager struct {
	cfg          *config.Config
	store        *runs.Store
	stages       *stage.Registry
	templates    *template.Registry
	bus          *events.Bus
	logger       *slog.Logger
	coordinator  *Coordinator
	heartbeat    *HeartbeatMonitor
	pollInterval time.Duration

	mu      sync.RWMutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	lastErr error
	lastRun *runs.Run
	active  map[string]context.CancelCauseFunc
}

// NewManager constructs a workflow manager.
func NewManager(cfg *config.Config, store *runs.Store, stages *stage.Registry, templates *template.Registry, bus *events.Bus, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logging.NewComponentLogger(logger, "workflow")
	return &Manager{
		cfg:         cfg,
		store:       store,
		stages:      stages,
		templates:   templates,
		bus:         bus,
		logger:      logger,
		coordinator: NewCoordinator(cfg, store, stages, templates, bus, logger),
		heartbeat: NewHeartbeatMonitor(
			store,
			logger,
			time.Duration(cfg.Workflow.HeartbeatInterval)*time.Second,
			time.Duration(cfg.Workflow.HeartbeatTimeout)*time.Second,
		),
		pollInterval: time.Duration(cfg.Workflow.PollInterval) * time.Second,
		active:       make(map[string]context.CancelCauseFunc),
	}
}

// Coordinator exposes the run executor, shared with callers that need to
// drive a run outside the worker pool.
func (m *Manager) Coordinator() *Coordinator {
	return m.coordinator
}

func (m *Manager) workerCount() int {
	workers := m.cfg.Workflow.Workers
	if workers < 1 {
		workers = 1
	}
	return workers
}

func (m *Manager) registerActive(runID string, cancel context.CancelCauseFunc) {
	m.mu.Lock()
	m.active[runID] = cancel
	m.mu.Unlock()
}

func (m *Manager) unregisterActive(runID string) {
	m.mu.Lock()
	delete(m.active, runID)
	m.mu.Unlock()
}

func (m *Manager) activeCancel(runID string) context.CancelCauseFunc {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.active[runID]
}
