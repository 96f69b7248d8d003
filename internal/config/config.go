package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	DataDir   string `toml:"data_dir"`
	AssetDir  string `toml:"asset_dir"`
	OutputDir string `toml:"output_dir"`
	LogDir    string `toml:"log_dir"`
	LockDir   string `toml:"lock_dir"`
	APIBind   string `toml:"api_bind"`
}

// LLM contains the Generation Service connection settings.
type LLM struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	Referer        string `toml:"referer"`
	Title          string `toml:"title"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	RetryAttempts  int    `toml:"retry_attempts"`
}

// Script contains the script generation and review-loop settings.
type Script struct {
	SceneCount          int      `toml:"scene_count"`
	MaxRevisions        int      `toml:"max_revisions"`
	QualityThreshold    int      `toml:"quality_threshold"`
	LongFormChannels    []string `toml:"long_form_channels"`
	ChunkChars          int      `toml:"chunk_chars"`
	PlaceholderFrames   int      `toml:"placeholder_frames"`
	GenerateTemperature float64  `toml:"generate_temperature"`
	ReviewTemperature   float64  `toml:"review_temperature"`
	ReviseTemperature   float64  `toml:"revise_temperature"`
	MapTemperature      float64  `toml:"map_temperature"`
}

// TTS contains the narration synthesis settings.
type TTS struct {
	Binary         string `toml:"binary"`
	DefaultVoice   string `toml:"default_voice"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	RetryAttempts  int    `toml:"retry_attempts"`
}

// Images contains the per-scene image generation settings.
type Images struct {
	PrimaryURL     string `toml:"primary_url"`
	FallbackURL    string `toml:"fallback_url"`
	FallbackTags   string `toml:"fallback_tags"`
	Width          int    `toml:"width"`
	Height         int    `toml:"height"`
	Concurrency    int    `toml:"concurrency"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	RetryAttempts  int    `toml:"retry_attempts"`
	MinBytes       int    `toml:"min_bytes"`
}

// Render contains the external renderer settings.
type Render struct {
	Command        []string `toml:"command"`
	ProjectDir     string   `toml:"project_dir"`
	Composition    string   `toml:"composition"`
	FPS            int      `toml:"fps"`
	PadSeconds     float64  `toml:"pad_seconds"`
	TimeoutSeconds int      `toml:"timeout_seconds"`
}

// Ingest contains the event extraction settings.
type Ingest struct {
	ChunkChars  int     `toml:"chunk_chars"`
	Temperature float64 `toml:"temperature"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Completed      bool   `toml:"completed"`
	Errors         bool   `toml:"errors"`
}

// API contains the HTTP control surface and background worker settings.
type API struct {
	EnableWorker      bool `toml:"enable_worker"`
	PollInterval      int  `toml:"poll_interval"`
	WorkerConcurrency int  `toml:"worker_concurrency"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for the content factory.
//
// Configuration sections by subsystem:
//   - Paths: database, asset, output and log directories plus the API bind address
//   - LLM: Generation Service connection settings
//   - Script: scene contract and review/revise loop bounds
//   - TTS, Images, Render: external asset producers
//   - Ingest: event extraction chunking
//   - Notifications: ntfy push notification settings
//   - API: HTTP server and background worker
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	LLM           LLM           `toml:"llm"`
	Script        Script        `toml:"script"`
	TTS           TTS           `toml:"tts"`
	Images        Images        `toml:"images"`
	Render        Render        `toml:"render"`
	Ingest        Ingest        `toml:"ingest"`
	Notifications Notifications `toml:"notifications"`
	API           API           `toml:"api"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		if err := toml.NewDecoder(file).Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}
	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		if _, err := os.Stat(expanded); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}
	projectPath, err := filepath.Abs("contentfactory.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}
	return defaultPath, false, nil
}

// EnsureDirectories creates the directories the pipeline writes into.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.AssetDir, c.Paths.OutputDir, c.Paths.LogDir, c.Paths.LockDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath returns the SQLite database location.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "contentfactory.db")
}

// FFprobeBinary returns the ffprobe executable name used for audio probing.
func (c *Config) FFprobeBinary() string {
	return "ffprobe"
}

// IsLongForm reports whether slug is configured for the visual-mapping branch.
func (c *Config) IsLongForm(slug string) bool {
	slug = strings.TrimSpace(slug)
	for _, candidate := range c.Script.LongFormChannels {
		if candidate == slug {
			return true
		}
	}
	return false
}

// RequireLLM reports a configuration error when the Generation Service cannot be used.
func (c *Config) RequireLLM() error {
	if strings.TrimSpace(c.LLM.APIKey) == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = defaultConfigPath
		}
		return fmt.Errorf("llm.api_key is required. Set OPENROUTER_API_KEY env var or edit %s (create with 'contentfactory config init')", defaultPath)
	}
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
