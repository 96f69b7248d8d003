package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"contentfactory/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.LLM.APIKey = "test"
	cfgVal.LLM.RetryAttempts = 1
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.AssetDir = filepath.Join(base, "assets")
	cfgVal.Paths.OutputDir = filepath.Join(base, "out")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.LockDir = filepath.Join(base, "locks")
	cfgVal.Paths.APIBind = "127.0.0.1:0"
	cfgVal.Render.ProjectDir = filepath.Join(base, "video-generator")
	cfgVal.Images.RetryAttempts = 1
	cfgVal.TTS.RetryAttempts = 1
	cfgVal.Notifications.NtfyTopic = ""

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	if err := builder.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	if err := os.MkdirAll(builder.cfg.Render.ProjectDir, 0o755); err != nil {
		t.Fatalf("mkdir render project: %v", err)
	}
	return builder.cfg
}

// WithLLMEndpoint points the Generation Service at a test server.
func WithLLMEndpoint(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.LLM.BaseURL = url
	}
}

// WithImageEndpoints points the primary and fallback image sources at test servers.
func WithImageEndpoints(primary, fallback string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Images.PrimaryURL = primary
		b.cfg.Images.FallbackURL = fallback
	}
}

// WithRenderCommand replaces the renderer invocation.
func WithRenderCommand(args ...string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Render.Command = append([]string(nil), args...)
	}
}

// WithStubbedBinaries writes stub executables for the provided names and
// prepends them to PATH. If names is empty, the default external binaries
// are stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"edge-tts", "ffprobe", "npx"}
		}
		scripts := make(map[string]string, len(names))
		for _, name := range names {
			scripts[name] = "#!/bin/sh\nexit 0\n"
		}
		installScripts(b.t, filepath.Join(b.baseDir, "bin"), scripts)
	}
}

// WithScriptedBinary installs an executable shell script under name and
// prepends its directory to PATH.
func WithScriptedBinary(name, body string) ConfigOption {
	return func(b *configBuilder) {
		installScripts(b.t, filepath.Join(b.baseDir, "bin"), map[string]string{name: "#!/bin/sh\n" + body + "\n"})
	}
}

func installScripts(t testing.TB, binDir string, scripts map[string]string) {
	t.Helper()
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		t.Fatalf("mkdir bin dir: %v", err)
	}
	for name, script := range scripts {
		target := filepath.Join(binDir, name)
		if err := os.WriteFile(target, []byte(script), 0o755); err != nil {
			t.Fatalf("write stub %s: %v", name, err)
		}
	}

	oldPath := os.Getenv("PATH")
	if err := os.Setenv("PATH", binDir+string(os.PathListSeparator)+oldPath); err != nil {
		t.Fatalf("set PATH: %v", err)
	}
	t.Cleanup(func() {
		_ = os.Setenv("PATH", oldPath)
	})
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
