// Package tts synthesizes narration through the edge-tts command line tool.
package tts

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"contentfactory/internal/config"
	"contentfactory/internal/logging"
	"contentfactory/internal/services"
)

// Synthesizer renders text to an mp3 file.
type Synthesizer struct {
	binary  string
	timeout time.Duration
	policy  services.RetryPolicy
	logger  *slog.Logger
}

// New builds a Synthesizer from the tts config section.
func New(cfg config.TTS, logger *slog.Logger) *Synthesizer {
	policy := services.DefaultRetryPolicy()
	if cfg.RetryAttempts > 0 {
		policy.Attempts = cfg.RetryAttempts
	}
	binary := strings.TrimSpace(cfg.Binary)
	if binary == "" {
		binary = "edge-tts"
	}
	return &Synthesizer{
		binary:  binary,
		timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		policy:  policy,
		logger:  logging.NewComponentLogger(logger, "tts"),
	}
}

// WithRetryPolicy overrides the retry policy, mainly for tests.
func (s *Synthesizer) WithRetryPolicy(policy services.RetryPolicy) *Synthesizer {
	s.policy = policy
	return s
}

// Synthesize writes the spoken text to outPath using voice. The file only
// appears at outPath once the tool has produced a non-empty result.
func (s *Synthesizer) Synthesize(ctx context.Context, text, voice, outPath string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return fmt.Errorf("tts: empty narration: %w", services.ErrValidation)
	}
	if _, err := exec.LookPath(s.binary); err != nil {
		return fmt.Errorf("tts: %s not found on PATH: %w", s.binary, services.ErrConfiguration)
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("tts: create output dir: %w", err)
	}

	partial := outPath + ".partial.mp3"
	attempt := 0
	err := services.Retry(ctx, s.policy, func(ctx context.Context) error {
		attempt++
		if err := s.run(ctx, text, voice, partial); err != nil {
			s.logger.Warn("tts attempt failed",
				logging.Int("attempt", attempt),
				logging.Error(err),
				logging.String(logging.FieldEventType, "tts_retry"),
			)
			return err
		}
		return nil
	})
	if err != nil {
		_ = os.Remove(partial)
		return fmt.Errorf("tts: synthesize with voice %s: %w: %w", voice, services.ErrExternalTool, err)
	}
	if err := os.Rename(partial, outPath); err != nil {
		_ = os.Remove(partial)
		return fmt.Errorf("tts: finalize output: %w", err)
	}
	s.logger.Info("narration synthesized", logging.String("path", outPath), logging.String("voice", voice), logging.Int("attempts", attempt))
	return nil
}

func (s *Synthesizer) run(ctx context.Context, text, voice, outPath string) error {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	args := []string{"--text", text, "--write-media", outPath}
	if voice = strings.TrimSpace(voice); voice != "" {
		args = append([]string{"--voice", voice}, args...)
	}
	cmd := exec.CommandContext(ctx, s.binary, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("timed out after %s: %w", s.timeout, services.ErrTimeout)
		}
		return fmt.Errorf("%w: %s", err, strings.TrimSpace(stderr.String()))
	}
	info, err := os.Stat(outPath)
	if err != nil {
		return fmt.Errorf("no audio written: %w", err)
	}
	if info.Size() == 0 {
		return errors.New("empty audio written")
	}
	return nil
}
