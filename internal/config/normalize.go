package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeLLM()
	c.normalizeScript()
	c.normalizeTTS()
	c.normalizeImages()
	if err := c.normalizeRender(); err != nil {
		return err
	}
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	fields := []struct {
		key      string
		value    *string
		fallback string
	}{
		{"paths.data_dir", &c.Paths.DataDir, defaultDataDir},
		{"paths.asset_dir", &c.Paths.AssetDir, defaultAssetDir},
		{"paths.output_dir", &c.Paths.OutputDir, defaultOutputDir},
		{"paths.log_dir", &c.Paths.LogDir, defaultLogDir},
		{"paths.lock_dir", &c.Paths.LockDir, defaultLockDir},
	}
	for _, field := range fields {
		if strings.TrimSpace(*field.value) == "" {
			*field.value = field.fallback
		}
		expanded, err := expandPath(strings.TrimSpace(*field.value))
		if err != nil {
			return fmt.Errorf("%s: %w", field.key, err)
		}
		*field.value = expanded
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	return nil
}

func (c *Config) normalizeLLM() {
	c.LLM.APIKey = strings.TrimSpace(c.LLM.APIKey)
	if c.LLM.APIKey == "" {
		if value, ok := os.LookupEnv("CONTENTFACTORY_LLM_API_KEY"); ok {
			c.LLM.APIKey = strings.TrimSpace(value)
		} else if value, ok := os.LookupEnv("OPENROUTER_API_KEY"); ok {
			c.LLM.APIKey = strings.TrimSpace(value)
		}
	}
	c.LLM.BaseURL = strings.TrimSpace(c.LLM.BaseURL)
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = defaultLLMBaseURL
	}
	c.LLM.Model = strings.TrimSpace(c.LLM.Model)
	if c.LLM.Model == "" {
		c.LLM.Model = defaultLLMModel
	}
	c.LLM.Referer = strings.TrimSpace(c.LLM.Referer)
	c.LLM.Title = strings.TrimSpace(c.LLM.Title)
	if c.LLM.TimeoutSeconds <= 0 {
		c.LLM.TimeoutSeconds = defaultLLMTimeoutSeconds
	}
	if c.LLM.RetryAttempts <= 0 {
		c.LLM.RetryAttempts = defaultLLMRetryAttempts
	}
}

func (c *Config) normalizeScript() {
	slugs := make([]string, 0, len(c.Script.LongFormChannels))
	seen := make(map[string]struct{}, len(c.Script.LongFormChannels))
	for _, slug := range c.Script.LongFormChannels {
		slug = strings.TrimSpace(slug)
		if slug == "" {
			continue
		}
		if _, ok := seen[slug]; ok {
			continue
		}
		seen[slug] = struct{}{}
		slugs = append(slugs, slug)
	}
	c.Script.LongFormChannels = slugs
	if c.Script.PlaceholderFrames <= 0 {
		c.Script.PlaceholderFrames = defaultPlaceholderFrames
	}
}

func (c *Config) normalizeTTS() {
	c.TTS.Binary = strings.TrimSpace(c.TTS.Binary)
	if c.TTS.Binary == "" {
		c.TTS.Binary = defaultTTSBinary
	}
	c.TTS.DefaultVoice = strings.TrimSpace(c.TTS.DefaultVoice)
	if c.TTS.DefaultVoice == "" {
		c.TTS.DefaultVoice = defaultTTSVoice
	}
	if c.TTS.RetryAttempts <= 0 {
		c.TTS.RetryAttempts = defaultRetryAttempts
	}
}

func (c *Config) normalizeImages() {
	c.Images.PrimaryURL = strings.TrimSpace(c.Images.PrimaryURL)
	c.Images.FallbackURL = strings.TrimRight(strings.TrimSpace(c.Images.FallbackURL), "/")
	c.Images.FallbackTags = strings.TrimSpace(c.Images.FallbackTags)
	if c.Images.FallbackTags == "" {
		c.Images.FallbackTags = defaultImageFallbackTags
	}
	if c.Images.RetryAttempts <= 0 {
		c.Images.RetryAttempts = defaultRetryAttempts
	}
	if c.Images.MinBytes < 0 {
		c.Images.MinBytes = 0
	}
}

func (c *Config) normalizeRender() error {
	command := make([]string, 0, len(c.Render.Command))
	for _, arg := range c.Render.Command {
		if arg = strings.TrimSpace(arg); arg != "" {
			command = append(command, arg)
		}
	}
	c.Render.Command = command
	if strings.TrimSpace(c.Render.ProjectDir) == "" {
		c.Render.ProjectDir = defaultRenderProjectDir
	}
	var err error
	if c.Render.ProjectDir, err = expandPath(strings.TrimSpace(c.Render.ProjectDir)); err != nil {
		return fmt.Errorf("render.project_dir: %w", err)
	}
	c.Render.Composition = strings.TrimSpace(c.Render.Composition)
	if c.Render.Composition == "" {
		c.Render.Composition = defaultRenderComposition
	}
	return nil
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.NtfyTopic == "" {
		if value, ok := os.LookupEnv("NTFY_TOPIC"); ok {
			c.Notifications.NtfyTopic = strings.TrimSpace(value)
		}
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "json":
	default:
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
