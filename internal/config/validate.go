package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateScript(); err != nil {
		return err
	}
	if err := c.validateTimeouts(); err != nil {
		return err
	}
	if err := c.validateImages(); err != nil {
		return err
	}
	if err := c.validateRender(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateScript() error {
	if err := ensurePositiveMap(map[string]int{
		"script.scene_count":        c.Script.SceneCount,
		"script.quality_threshold":  c.Script.QualityThreshold,
		"script.chunk_chars":        c.Script.ChunkChars,
		"script.placeholder_frames": c.Script.PlaceholderFrames,
		"ingest.chunk_chars":        c.Ingest.ChunkChars,
	}); err != nil {
		return err
	}
	if c.Script.MaxRevisions < 0 {
		return errors.New("script.max_revisions must be >= 0")
	}
	if c.Script.QualityThreshold > 10 {
		return errors.New("script.quality_threshold must be between 1 and 10")
	}
	for key, value := range map[string]float64{
		"script.generate_temperature": c.Script.GenerateTemperature,
		"script.review_temperature":   c.Script.ReviewTemperature,
		"script.revise_temperature":   c.Script.ReviseTemperature,
		"script.map_temperature":      c.Script.MapTemperature,
		"ingest.temperature":          c.Ingest.Temperature,
	} {
		if value < 0 || value > 2 {
			return fmt.Errorf("%s must be between 0 and 2", key)
		}
	}
	return nil
}

func (c *Config) validateTimeouts() error {
	return ensurePositiveMap(map[string]int{
		"llm.timeout_seconds":           c.LLM.TimeoutSeconds,
		"tts.timeout_seconds":           c.TTS.TimeoutSeconds,
		"images.timeout_seconds":        c.Images.TimeoutSeconds,
		"render.timeout_seconds":        c.Render.TimeoutSeconds,
		"notifications.request_timeout": c.Notifications.RequestTimeout,
		"api.poll_interval":             c.API.PollInterval,
		"api.worker_concurrency":        c.API.WorkerConcurrency,
	})
}

func (c *Config) validateImages() error {
	if strings.TrimSpace(c.Images.PrimaryURL) == "" && strings.TrimSpace(c.Images.FallbackURL) == "" {
		return errors.New("images.primary_url or images.fallback_url must be set")
	}
	return ensurePositiveMap(map[string]int{
		"images.width":       c.Images.Width,
		"images.height":      c.Images.Height,
		"images.concurrency": c.Images.Concurrency,
	})
}

func (c *Config) validateRender() error {
	if c.Render.FPS <= 0 {
		return errors.New("render.fps must be positive")
	}
	if c.Render.PadSeconds < 0 {
		return errors.New("render.pad_seconds must be >= 0")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
