package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"inkwell/internal/api"
	"inkwell/internal/config"
	"inkwell/internal/daemon"
	"inkwell/internal/events"
	"inkwell/internal/ipc"
	"inkwell/internal/logging"
	"inkwell/internal/runs"
	"inkwell/internal/stage"
	"inkwell/internal/template"
	"inkwell/internal/testsupport"
	"inkwell/internal/tool"
	"inkwell/internal/workflow"
)

type cliTestEnv struct {
	cfg        *config.Config
	store      *runs.Store
	daemon     *daemon.Daemon
	server     *ipc.Server
	bus        *events.Bus
	socketPath string
	configPath string
	baseDir    string
	logPath    string
	cancel     context.CancelFunc
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	homeDir := filepath.Join(base, "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)
	cfg := testsupport.NewConfig(t)
	logPath := filepath.Join(cfg.Paths.LogDir, "inkwell.log")
	if err := os.MkdirAll(cfg.Paths.LogDir, 0o755); err != nil {
		t.Fatalf("mkdir log dir: %v", err)
	}
	if _, err := os.Stat(logPath); errors.Is(err, os.ErrNotExist) {
		if err := os.WriteFile(logPath, nil, 0o644); err != nil {
			t.Fatalf("create log file: %v", err)
		}
	}

	configPath := filepath.Join(homeDir, ".config", "inkwell", "config.toml")
	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	writeTestConfig(t, configPath, cfg)

	store := testsupport.MustOpenStore(t, cfg)

	logger := logging.NewNop()
	registry := stage.NewRegistry()
	if err := tool.RegisterFromConfig(registry, cfg, logger); err != nil {
		t.Fatalf("tool.RegisterFromConfig: %v", err)
	}
	templates, err := template.FromConfig(cfg)
	if err != nil {
		t.Fatalf("template.FromConfig: %v", err)
	}
	bus := events.NewBus(cfg.Events.BufferSize)
	mgr := workflow.NewManager(cfg, store, registry, templates, bus, logger)
	service := api.NewRunService(store, templates, mgr, logger)

	d, err := daemon.New(cfg, store, logger, mgr, service, bus)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	socketPath := filepath.Join(cfg.Paths.LogDir, "cli.sock")
	srv, err := ipc.NewServer(ctx, socketPath, d, logger)
	if err != nil {
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()

	env := &cliTestEnv{
		cfg:        cfg,
		store:      store,
		daemon:     d,
		server:     srv,
		bus:        bus,
		socketPath: socketPath,
		configPath: configPath,
		baseDir:    base,
		logPath:    logPath,
		cancel:     cancel,
	}

	t.Cleanup(func() {
		cancel()
		srv.Close()
		d.Close()
	})

	return env
}

func runCLI(t *testing.T, args []string, socket, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	flags := []string{"--socket", socket}
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func appendLine(path, line string) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.WriteString(line + "\n")
	return err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	content := fmt.Sprintf(
		"[paths]\nstate_dir = %q\nlog_dir = %q\n\n[workflow]\npoll_interval = 1\nheartbeat_interval = 1\nheartbeat_timeout = 30\n",
		cfg.Paths.StateDir,
		cfg.Paths.LogDir,
	)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

// seedTerminalRun inserts a run already in a terminal status so the workflow
// manager never claims it and test assertions stay stable.
func seedTerminalRun(t *testing.T, store *runs.Store, id, templateName string, status runs.Status) *runs.Run {
	t.Helper()
	run := testsupport.NewRun(t, store, id, templateName, `{"topic":"test"}`)
	run.Status = status
	if err := store.Update(context.Background(), run); err != nil {
		t.Fatalf("update run status: %v", err)
	}
	return run
}

func waitFor(t *testing.T, duration time.Duration, fn func() bool) {
	t.Helper()
	deadline := time.Now().Add(duration)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", duration)
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
