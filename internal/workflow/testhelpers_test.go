package workflow_test

import (
	"context"
	"sync"
	"testing"

	"inkwell/internal/config"
	"inkwell/internal/events"
	"inkwell/internal/logging"
	"inkwell/internal/runs"
	"inkwell/internal/stage"
	"inkwell/internal/template"
	"inkwell/internal/testsupport"
	"inkwell/internal/workflow"
)

// stubCapability is a deterministic in-process stage capability. Execute
// records every received input and delegates to the scripted function.
type stubCapability struct {
	id      string
	execute func(ctx context.Context, call int, input stage.Input) (*stage.Result, error)

	mu     sync.Mutex
	inputs []stage.Input
}

func (s *stubCapability) ID() string { return s.id }

func (s *stubCapability) Execute(ctx context.Context, input stage.Input) (*stage.Result, error) {
	s.mu.Lock()
	call := len(s.inputs)
	s.inputs = append(s.inputs, input)
	fn := s.execute
	s.mu.Unlock()
	if fn == nil {
		return okResult(90, "content"), nil
	}
	return fn(ctx, call, input)
}

func (s *stubCapability) HealthCheck(ctx context.Context) stage.Health {
	return stage.Healthy(s.id)
}

func (s *stubCapability) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.inputs)
}

func (s *stubCapability) input(i int) stage.Input {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inputs[i]
}

// okResult builds a success result whose output carries one placeholder value
// per key.
func okResult(quality float64, keys ...string) *stage.Result {
	output := make(map[string]any, len(keys))
	for _, key := range keys {
		output[key] = key + " value"
	}
	return &stage.Result{Output: output, Quality: quality, Status: stage.StatusSuccess}
}

// qualitySequence returns an execute function that yields success results
// with the scripted quality per call, repeating the last entry once the
// script runs out.
func qualitySequence(keys []string, qualities ...float64) func(context.Context, int, stage.Input) (*stage.Result, error) {
	return func(_ context.Context, call int, _ stage.Input) (*stage.Result, error) {
		idx := call
		if idx >= len(qualities) {
			idx = len(qualities) - 1
		}
		return okResult(qualities[idx], keys...), nil
	}
}

func newStageRegistry(t *testing.T, capabilities ...stage.Capability) *stage.Registry {
	t.Helper()
	registry := stage.NewRegistry()
	for _, capability := range capabilities {
		if err := registry.Register(capability); err != nil {
			t.Fatalf("register %s: %v", capability.ID(), err)
		}
	}
	return registry
}

func newTemplateRegistry(t *testing.T, cfg *config.Config) *template.Registry {
	t.Helper()
	registry, err := template.FromConfig(cfg)
	if err != nil {
		t.Fatalf("template.FromConfig: %v", err)
	}
	return registry
}

// quickPostStubs returns research/write/humanize stubs where humanize yields
// the scripted quality sequence.
func quickPostStubs(humanizeQualities ...float64) (research, write, humanize *stubCapability) {
	research = &stubCapability{
		id:      "research",
		execute: qualitySequence([]string{"research_data"}, 90),
	}
	write = &stubCapability{
		id:      "write",
		execute: qualitySequence([]string{"title", "content"}, 85),
	}
	humanize = &stubCapability{
		id:      "humanize",
		execute: qualitySequence([]string{"title", "content"}, humanizeQualities...),
	}
	return research, write, humanize
}

func newTestConfig(t *testing.T) *config.Config {
	t.Helper()
	return testsupport.NewConfig(t)
}

func openStore(t *testing.T, cfg *config.Config) *runs.Store {
	t.Helper()
	return testsupport.MustOpenStore(t, cfg)
}

func newCoordinator(t *testing.T, cfg *config.Config, store *runs.Store, bus *events.Bus, capabilities ...stage.Capability) *workflow.Coordinator {
	t.Helper()
	return workflow.NewCoordinator(
		cfg,
		store,
		newStageRegistry(t, capabilities...),
		newTemplateRegistry(t, cfg),
		bus,
		logging.NewNop(),
	)
}

type coordinatorFixture struct {
	cfg         *config.Config
	store       *runs.Store
	bus         *events.Bus
	coordinator *workflow.Coordinator
}

func newCoordinatorFixture(t *testing.T, capabilities ...stage.Capability) *coordinatorFixture {
	t.Helper()
	cfg := newTestConfig(t)
	store := openStore(t, cfg)
	bus := events.NewBus(cfg.Events.BufferSize)
	return &coordinatorFixture{
		cfg:         cfg,
		store:       store,
		bus:         bus,
		coordinator: newCoordinator(t, cfg, store, bus, capabilities...),
	}
}

// claimRun inserts a pending run and claims it the way a worker would.
func claimRun(t *testing.T, store *runs.Store, id, templateName, inputJSON string) *runs.Run {
	t.Helper()
	testsupport.NewRun(t, store, id, templateName, inputJSON)
	claimed, err := store.ClaimNextPending(context.Background())
	if err != nil {
		t.Fatalf("ClaimNextPending: %v", err)
	}
	if claimed == nil || claimed.ID != id {
		t.Fatalf("expected to claim %s, got %#v", id, claimed)
	}
	return claimed
}

func mustGetRun(t *testing.T, store *runs.Store, id string) *runs.Run {
	t.Helper()
	run, err := store.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if run == nil {
		t.Fatalf("run %s not found", id)
	}
	return run
}

func resultsByStage(t *testing.T, store *runs.Store, runID string) map[string][]*runs.StageResult {
	t.Helper()
	rows, err := store.ResultsForRun(context.Background(), runID)
	if err != nil {
		t.Fatalf("ResultsForRun: %v", err)
	}
	grouped := make(map[string][]*runs.StageResult)
	for _, row := range rows {
		grouped[row.Stage] = append(grouped[row.Stage], row)
	}
	return grouped
}

func eventTypes(t *testing.T, bus *events.Bus) []events.Type {
	t.Helper()
	recorded, _ := bus.Tail(0)
	types := make([]events.Type, len(recorded))
	for i, evt := range recorded {
		types[i] = evt.Type
	}
	return types
}

func gateVerdicts(t *testing.T, bus *events.Bus) []string {
	t.Helper()
	recorded, _ := bus.Tail(0)
	var verdicts []string
	for _, evt := range recorded {
		if evt.Type == events.TypeGateDecision {
			verdicts = append(verdicts, evt.Verdict)
		}
	}
	return verdicts
}

func lastEvent(t *testing.T, bus *events.Bus) events.Event {
	t.Helper()
	recorded, _ := bus.Tail(0)
	if len(recorded) == 0 {
		t.Fatal("no events recorded")
	}
	return recorded[len(recorded)-1]
}
