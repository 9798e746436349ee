package ipc_test

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"inkwell/internal/api"
	"inkwell/internal/daemon"
	"inkwell/internal/events"
	"inkwell/internal/ipc"
	"inkwell/internal/logging"
	"inkwell/internal/runs"
	"inkwell/internal/stage"
	"inkwell/internal/template"
	"inkwell/internal/testsupport"
	"inkwell/internal/workflow"
)

type fixedStage struct {
	id      string
	keys    []string
	quality float64
}

func (s fixedStage) ID() string { return s.id }

func (s fixedStage) Execute(context.Context, stage.Input) (*stage.Result, error) {
	output := make(map[string]any, len(s.keys))
	for _, key := range s.keys {
		output[key] = key + " value"
	}
	return &stage.Result{Output: output, Quality: s.quality, Status: stage.StatusSuccess}, nil
}

func (s fixedStage) HealthCheck(context.Context) stage.Health {
	return stage.Healthy(s.id)
}

func TestIPCServerClient(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	bus := events.NewBus(cfg.Events.BufferSize)
	logger := logging.NewNop()

	registry := stage.NewRegistry()
	for _, capability := range []stage.Capability{
		fixedStage{id: "research", keys: []string{"research_data"}, quality: 90},
		fixedStage{id: "write", keys: []string{"title", "content"}, quality: 85},
		fixedStage{id: "humanize", keys: []string{"title", "content"}, quality: 90},
	} {
		if err := registry.Register(capability); err != nil {
			t.Fatalf("register %s: %v", capability.ID(), err)
		}
	}
	templates, err := template.FromConfig(cfg)
	if err != nil {
		t.Fatalf("template.FromConfig: %v", err)
	}
	mgr := workflow.NewManager(cfg, store, registry, templates, bus, logger)
	service := api.NewRunService(store, templates, mgr, logger)
	d, err := daemon.New(cfg, store, logger, mgr, service, bus)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() {
		d.Close()
	})

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	socket := cfg.SocketPath()
	srv, err := ipc.NewServer(ctx, socket, d, logger)
	if err != nil {
		if strings.Contains(err.Error(), "operation not permitted") {
			t.Skipf("skipping IPC server test: %v", err)
		}
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()
	t.Cleanup(func() {
		srv.Close()
	})

	time.Sleep(50 * time.Millisecond)

	client, err := ipc.Dial(socket)
	if err != nil {
		t.Fatalf("ipc.Dial: %v", err)
	}
	t.Cleanup(func() {
		client.Close()
	})

	startResp, err := client.Start()
	if err != nil {
		t.Fatalf("Start RPC failed: %v", err)
	}
	if !startResp.Started {
		t.Fatalf("expected Started=true, message=%s", startResp.Message)
	}

	status, err := client.Status()
	if err != nil {
		t.Fatalf("Status RPC failed: %v", err)
	}
	if !status.Running {
		t.Fatal("expected daemon to be running")
	}
	if status.PID != os.Getpid() {
		t.Fatalf("expected pid %d, got %d", os.Getpid(), status.PID)
	}
	if len(status.Workflow.StageHealth) != 3 {
		t.Fatalf("expected three stage health entries, got %#v", status.Workflow.StageHealth)
	}

	tmplResp, err := client.Templates()
	if err != nil {
		t.Fatalf("Templates RPC failed: %v", err)
	}
	names := make(map[string]bool, len(tmplResp.Templates))
	for _, tmpl := range tmplResp.Templates {
		names[tmpl.Name] = true
	}
	if !names["quick_post"] || !names["full_content_creation"] {
		t.Fatalf("expected built-in templates, got %#v", names)
	}

	submitResp, err := client.RunSubmit("quick_post", map[string]any{"topic": "ipc integration"})
	if err != nil {
		t.Fatalf("RunSubmit failed: %v", err)
	}
	if submitResp.Run.ID == "" {
		t.Fatal("expected a run id")
	}

	deadline := time.Now().Add(5 * time.Second)
	var detail ipc.RunDetail
	for {
		descResp, err := client.RunDescribe(submitResp.Run.ID)
		if err != nil {
			t.Fatalf("RunDescribe failed: %v", err)
		}
		detail = descResp.Detail
		if detail.Run.Status == string(runs.StatusCompleted) {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("run never completed, last status %s (%s)", detail.Run.Status, detail.Run.ErrorMessage)
		}
		time.Sleep(20 * time.Millisecond)
	}
	if len(detail.Results) == 0 {
		t.Fatal("expected stage results in run detail")
	}

	// Unknown templates are rejected before any run row exists.
	if _, err := client.RunSubmit("no_such_template", nil); err == nil {
		t.Fatal("expected unknown template submit to fail")
	}
	listResp, err := client.RunList(nil)
	if err != nil {
		t.Fatalf("RunList failed: %v", err)
	}
	if len(listResp.Runs) != 1 {
		t.Fatalf("expected exactly one run, got %d", len(listResp.Runs))
	}

	tailResp, err := client.Events(ipc.EventsRequest{Since: -1, Limit: 2})
	if err != nil {
		t.Fatalf("Events tail failed: %v", err)
	}
	if len(tailResp.Events) != 2 {
		t.Fatalf("expected two tail events, got %d", len(tailResp.Events))
	}
	if tailResp.Events[len(tailResp.Events)-1].Type != events.TypeRunTerminal {
		t.Fatalf("expected run-terminal as newest event, got %s", tailResp.Events[len(tailResp.Events)-1].Type)
	}

	allResp, err := client.Events(ipc.EventsRequest{Since: 0, Limit: 100})
	if err != nil {
		t.Fatalf("Events fetch failed: %v", err)
	}
	if len(allResp.Events) == 0 || allResp.Events[0].Type != events.TypeStageStarted {
		t.Fatalf("expected full stream starting with stage-started, got %#v", allResp.Events)
	}

	followDone := make(chan struct{})
	go func(since uint64) {
		resp, err := client.Events(ipc.EventsRequest{Since: int64(since), Follow: true, WaitMillis: 3000})
		if err != nil {
			t.Errorf("Events follow error: %v", err)
			return
		}
		if len(resp.Events) == 0 {
			t.Error("expected events from follow call")
		}
		close(followDone)
	}(allResp.Next)

	time.Sleep(100 * time.Millisecond)
	secondRun, err := client.RunSubmit("quick_post", map[string]any{"topic": "follow me"})
	if err != nil {
		t.Fatalf("RunSubmit second failed: %v", err)
	}

	select {
	case <-followDone:
	case <-time.After(10 * time.Second):
		t.Fatal("events follow timed out")
	}

	deadline = time.Now().Add(5 * time.Second)
	for {
		descResp, err := client.RunDescribe(secondRun.Run.ID)
		if err != nil {
			t.Fatalf("RunDescribe second failed: %v", err)
		}
		if descResp.Detail.Run.Status == string(runs.StatusCompleted) {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("second run never completed, last status %s", descResp.Detail.Run.Status)
		}
		time.Sleep(20 * time.Millisecond)
	}

	if err := os.WriteFile(d.LogPath(), []byte("first\nsecond\nthird\n"), 0o644); err != nil {
		t.Fatalf("write log file: %v", err)
	}
	logResp, err := client.LogTail(ipc.LogTailRequest{Offset: -1, Limit: 2})
	if err != nil {
		t.Fatalf("LogTail initial failed: %v", err)
	}
	if len(logResp.Lines) != 2 || logResp.Lines[0] != "second" || logResp.Lines[1] != "third" {
		t.Fatalf("unexpected log tail response: %#v", logResp.Lines)
	}

	logFollowDone := make(chan struct{})
	go func(offset int64) {
		resp, err := client.LogTail(ipc.LogTailRequest{Offset: offset, Follow: true, WaitMillis: 3000})
		if err != nil {
			t.Errorf("LogTail follow error: %v", err)
			return
		}
		if len(resp.Lines) != 1 || resp.Lines[0] != "fourth" {
			t.Errorf("unexpected follow lines: %#v", resp.Lines)
		}
		close(logFollowDone)
	}(logResp.Offset)

	time.Sleep(100 * time.Millisecond)
	if f, err := os.OpenFile(d.LogPath(), os.O_APPEND|os.O_WRONLY, 0o644); err == nil {
		_, _ = f.WriteString("fourth\n")
		_ = f.Close()
	} else {
		t.Fatalf("append log: %v", err)
	}

	select {
	case <-logFollowDone:
	case <-time.After(10 * time.Second):
		t.Fatal("log tail follow timed out")
	}

	stopResp, err := client.Stop()
	if err != nil {
		t.Fatalf("Stop RPC failed: %v", err)
	}
	if !stopResp.Stopped {
		t.Fatal("expected stop response to be true")
	}

	// With workers stopped a fresh submission stays pending until cancelled.
	pendingRun, err := client.RunSubmit("quick_post", map[string]any{"topic": "left pending"})
	if err != nil {
		t.Fatalf("RunSubmit pending failed: %v", err)
	}
	cancelResp, err := client.RunCancel(pendingRun.Run.ID)
	if err != nil {
		t.Fatalf("RunCancel failed: %v", err)
	}
	if !cancelResp.Cancelled {
		t.Fatal("expected cancellation to be accepted")
	}

	healthResp, err := client.RunHealth()
	if err != nil {
		t.Fatalf("RunHealth failed: %v", err)
	}
	if healthResp.Total != 3 || healthResp.Completed != 2 || healthResp.Cancelled != 1 {
		t.Fatalf("unexpected health response: %#v", healthResp)
	}

	dbHealth, err := client.DatabaseHealth()
	if err != nil {
		t.Fatalf("DatabaseHealth failed: %v", err)
	}
	if !strings.HasSuffix(dbHealth.DBPath, "runs.db") {
		t.Fatalf("unexpected db path: %s", dbHealth.DBPath)
	}
	if !dbHealth.IntegrityCheck {
		t.Fatalf("expected integrity check to pass: %#v", dbHealth)
	}

	clearCompletedResp, err := client.RunClearCompleted()
	if err != nil {
		t.Fatalf("RunClearCompleted failed: %v", err)
	}
	if clearCompletedResp.Removed != 2 {
		t.Fatalf("expected 2 completed runs removed, got %d", clearCompletedResp.Removed)
	}

	clearResp, err := client.RunClear()
	if err != nil {
		t.Fatalf("RunClear failed: %v", err)
	}
	if clearResp.Removed != 1 {
		t.Fatalf("expected 1 remaining run cleared, got %d", clearResp.Removed)
	}

	status2, err := client.Status()
	if err != nil {
		t.Fatalf("Status RPC failed: %v", err)
	}
	if status2.Running {
		t.Fatal("expected daemon to be stopped")
	}
}
