package main

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"contentfactory/internal/channel"
	"contentfactory/internal/config"
	"contentfactory/internal/notifications"
	"contentfactory/internal/pipeline"
	"contentfactory/internal/stage"
	"contentfactory/internal/store"
	"contentfactory/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	configPath := filepath.Join(testsupport.BaseDir(cfg), "contentfactory.toml")
	writeTestConfig(t, configPath, cfg)
	return &cliTestEnv{cfg: cfg, configPath: configPath}
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}

// withStore opens the env's seeded store for fixture setup and closes it
// before the CLI runs.
func (e *cliTestEnv) withStore(t *testing.T, fn func(*store.Store)) {
	t.Helper()
	st, err := store.Open(e.cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	defer st.Close()
	if _, err := channel.EnsureSeeded(context.Background(), st); err != nil {
		t.Fatalf("channel.EnsureSeeded: %v", err)
	}
	fn(st)
}

type statusHandler struct {
	name   string
	status store.Status
}

func (h statusHandler) Prepare(context.Context, *stage.Unit) error { return nil }

func (h statusHandler) Execute(context.Context, *stage.Unit) (store.StageResult, error) {
	return store.StageResult{Status: h.status}, nil
}

func (h statusHandler) HealthCheck(context.Context) stage.Health { return stage.Healthy(h.name) }

func stubRunners(t *testing.T) {
	t.Helper()
	original := newRunner
	newRunner = func(cfg *config.Config, st *store.Store, logger *slog.Logger) *pipeline.Runner {
		return pipeline.NewRunner(cfg, st, logger, notifications.NewService(nil), pipeline.Handlers{
			Script: statusHandler{name: "script", status: store.StatusScriptGen},
			Assets: statusHandler{name: "assets", status: store.StatusAudioGen},
			Render: statusHandler{name: "render", status: store.StatusRenderComplete},
		})
	}
	t.Cleanup(func() { newRunner = original })
}

func TestConfigInitWritesSample(t *testing.T) {
	target := filepath.Join(t.TempDir(), "nested", "config.toml")
	stdout, _, err := runCLI(t, []string{"config", "init", "--path", target}, "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, stdout, target)
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected sample config: %v", err)
	}

	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, ""); err == nil {
		t.Fatal("expected second init without --overwrite to fail")
	}
}

func TestConfigShowRedactsAPIKey(t *testing.T) {
	env := setupCLITestEnv(t)
	stdout, _, err := runCLI(t, []string{"config", "show"}, env.configPath)
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	requireContains(t, stdout, "********")
	requireContains(t, stdout, env.cfg.Paths.DataDir)
}

func TestChannelListSeedsCatalogue(t *testing.T) {
	env := setupCLITestEnv(t)
	stdout, _, err := runCLI(t, []string{"channel", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("channel list: %v", err)
	}
	requireContains(t, stdout, "Slug\tName")
	requireContains(t, stdout, "it_history")
	requireContains(t, stdout, "stock_replay")
}

func TestEventListAndJobLifecycle(t *testing.T) {
	env := setupCLITestEnv(t)

	stdout, _, err := runCLI(t, []string{"event", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("event list: %v", err)
	}
	requireContains(t, stdout, "No events found")

	var eventID int64
	env.withStore(t, func(st *store.Store) {
		ev := testsupport.NewEvent(t, st, store.Event{
			ChannelSlug:     "it_history",
			Year:            testsupport.IntPtr(1969),
			Title:           "ARPANET sends its first message",
			Summary:         "LO",
			ImportanceScore: 9,
		})
		eventID = ev.ID
	})
	id := strconv.FormatInt(eventID, 10)

	stdout, _, err = runCLI(t, []string{"event", "list", "--channel", "it_history"}, env.configPath)
	if err != nil {
		t.Fatalf("event list: %v", err)
	}
	requireContains(t, stdout, "ARPANET")

	stdout, _, err = runCLI(t, []string{"job", "create", id}, env.configPath)
	if err != nil {
		t.Fatalf("job create: %v", err)
	}
	requireContains(t, stdout, "Created job")

	stdout, _, err = runCLI(t, []string{"job", "create", id}, env.configPath)
	if err == nil {
		t.Fatal("expected duplicate job create to fail")
	}
	requireContains(t, stdout, "already has a job")

	stdout, _, err = runCLI(t, []string{"job", "list", "--status", "pending"}, env.configPath)
	if err != nil {
		t.Fatalf("job list: %v", err)
	}
	requireContains(t, stdout, "Pending")
}

func TestStageAndRunCommands(t *testing.T) {
	env := setupCLITestEnv(t)
	stubRunners(t)

	var jobID int64
	env.withStore(t, func(st *store.Store) {
		jobID = testsupport.NewJob(t, st, "it_history", "Moon landing").ID
	})
	id := strconv.FormatInt(jobID, 10)

	stdout, _, err := runCLI(t, []string{"stage", "script", id}, env.configPath)
	if err != nil {
		t.Fatalf("stage script: %v", err)
	}
	requireContains(t, stdout, "SCRIPT_GEN")

	stdout, _, err = runCLI(t, []string{"run", id}, env.configPath)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	requireContains(t, stdout, "RENDER_COMPLETE")

	stdout, _, err = runCLI(t, []string{"job", "show", id, "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("job show: %v", err)
	}
	var detail jobDetail
	if err := json.Unmarshal([]byte(stdout), &detail); err != nil {
		t.Fatalf("decode job show: %v\n%s", err, stdout)
	}
	if detail.Status != string(store.StatusRenderComplete) || detail.Channel != "it_history" {
		t.Fatalf("unexpected job detail %+v", detail)
	}
}

func TestStageRejectsBadJobID(t *testing.T) {
	env := setupCLITestEnv(t)
	if _, _, err := runCLI(t, []string{"stage", "render", "abc"}, env.configPath); err == nil {
		t.Fatal("expected invalid id to fail")
	}
}

func TestEventContextStoresRichText(t *testing.T) {
	env := setupCLITestEnv(t)
	var eventID int64
	env.withStore(t, func(st *store.Store) {
		eventID = testsupport.NewEvent(t, st, store.Event{
			ChannelSlug: "stock_replay", Year: testsupport.IntPtr(1929), Title: "Black Tuesday", Summary: "Crash", ImportanceScore: 8,
		}).ID
	})
	contextFile := filepath.Join(t.TempDir(), "crash.html")
	if err := os.WriteFile(contextFile, []byte("<html><body><p>Panic selling began.</p><script>x()</script></body></html>"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, _, err := runCLI(t, []string{"event", "context", strconv.FormatInt(eventID, 10), contextFile}, env.configPath); err != nil {
		t.Fatalf("event context: %v", err)
	}
	env.withStore(t, func(st *store.Store) {
		ev, err := st.GetEvent(context.Background(), eventID)
		if err != nil {
			t.Fatalf("GetEvent: %v", err)
		}
		if ev.RichContext != "Panic selling began." {
			t.Fatalf("unexpected rich context %q", ev.RichContext)
		}
	})
}

func TestNotifyTestRequiresTopic(t *testing.T) {
	t.Setenv("NTFY_TOPIC", "")
	env := setupCLITestEnv(t)
	if _, _, err := runCLI(t, []string{"notify", "test"}, env.configPath); err == nil {
		t.Fatal("expected notify test without topic to fail")
	}
}
