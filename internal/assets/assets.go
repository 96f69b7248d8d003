// Package assets synthesizes narration audio and scene images for a scripted
// job, then stretches the scene timeline to the measured narration length.
package assets

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"contentfactory/internal/config"
	"contentfactory/internal/logging"
	"contentfactory/internal/media/ffprobe"
	"contentfactory/internal/script"
	"contentfactory/internal/services"
	"contentfactory/internal/services/imagegen"
	"contentfactory/internal/stage"
	"contentfactory/internal/store"
)

const (
	stageName = "assets"
	// urlPrefix is how the renderer sees files under the asset directory.
	urlPrefix = "assets/"
)

// Narrator renders narration text to an audio file.
type Narrator interface {
	Synthesize(ctx context.Context, text, voice, outPath string) error
}

// ImageFetcher writes one image per prompt.
type ImageFetcher interface {
	Fetch(ctx context.Context, prompt, outPath string) (imagegen.Source, error)
}

// DurationProbe measures an audio file in seconds.
type DurationProbe func(ctx context.Context, path string) (float64, error)

// Settings are the knobs the stage reads from configuration.
type Settings struct {
	AssetDir    string
	FPS         int
	PadSeconds  float64
	Concurrency int
}

// SettingsFromConfig extracts Settings from the full config.
func SettingsFromConfig(cfg *config.Config) Settings {
	return Settings{
		AssetDir:    cfg.Paths.AssetDir,
		FPS:         cfg.Render.FPS,
		PadSeconds:  cfg.Render.PadSeconds,
		Concurrency: cfg.Images.Concurrency,
	}
}

// FFprobeDuration adapts ffprobe.AudioDuration to a DurationProbe.
func FFprobeDuration(binary string) DurationProbe {
	return func(ctx context.Context, path string) (float64, error) {
		return ffprobe.AudioDuration(ctx, binary, path)
	}
}

// Synthesizer is the asset stage handler.
type Synthesizer struct {
	deps     Collaborators
	settings Settings
	logger   *slog.Logger
}

// Collaborators bundles the external services the stage drives.
type Collaborators struct {
	Narrator Narrator
	Images   ImageFetcher
	Probe    DurationProbe
	// Binaries are checked by HealthCheck.
	Binaries []string
}

// NewSynthesizer builds the stage handler.
func NewSynthesizer(deps Collaborators, settings Settings, logger *slog.Logger) *Synthesizer {
	if settings.FPS <= 0 {
		settings.FPS = 30
	}
	if settings.Concurrency <= 0 {
		settings.Concurrency = 1
	}
	return &Synthesizer{
		deps:     deps,
		settings: settings,
		logger:   logging.NewComponentLogger(logger, stageName),
	}
}

// SetLogger swaps the logger, typically for a job-scoped one.
func (s *Synthesizer) SetLogger(logger *slog.Logger) {
	s.logger = logging.NewComponentLogger(logger, stageName)
}

// Prepare requires a stored script with at least one scene.
func (s *Synthesizer) Prepare(_ context.Context, unit *stage.Unit) error {
	_, err := stage.ParseScript(stageName, unit.Job)
	return err
}

// Execute produces narration, timing and images, returning the updated
// script for commit.
func (s *Synthesizer) Execute(ctx context.Context, unit *stage.Unit) (store.StageResult, error) {
	doc, err := stage.ParseScript(stageName, unit.Job)
	if err != nil {
		return store.StageResult{}, err
	}
	jobID := unit.JobID()
	if err := os.MkdirAll(s.settings.AssetDir, 0o755); err != nil {
		return store.StageResult{}, services.Wrap(services.ErrConfiguration, stageName, "create asset dir", s.settings.AssetDir, err)
	}

	audioName := fmt.Sprintf("job_%d_narration.mp3", jobID)
	audioPath := filepath.Join(s.settings.AssetDir, audioName)
	if err := s.deps.Narrator.Synthesize(ctx, doc.Narration(), unit.Profile.Voice, audioPath); err != nil {
		return store.StageResult{}, services.Wrap(services.ErrExternalTool, stageName, "synthesize narration",
			fmt.Sprintf("Narration failed with voice %s", unit.Profile.Voice), err)
	}
	doc.AudioURL = urlPrefix + audioName

	duration, err := s.deps.Probe(ctx, audioPath)
	if err != nil {
		return store.StageResult{}, services.Wrap(services.ErrExternalTool, stageName, "probe narration", audioPath, err)
	}
	if math.IsNaN(duration) || duration <= 0 {
		return store.StageResult{}, services.Wrap(services.ErrValidation, stageName, "probe narration",
			fmt.Sprintf("Narration duration %v is not positive", duration), nil)
	}
	target := script.TargetFrames(duration, s.settings.PadSeconds, s.settings.FPS)
	if err := doc.Rebalance(target); err != nil {
		return store.StageResult{}, services.Wrap(services.ErrValidation, stageName, "rebalance", "Scene timing could not be fitted", err)
	}
	s.logger.Info("scene timing rebalanced",
		logging.String(logging.FieldEventType, "frames_rebalanced"),
		logging.Float64("audio_seconds", duration),
		logging.Int("target_frames", target),
		logging.Int("scenes", len(doc.Scenes)),
	)

	if err := s.fetchImages(ctx, jobID, unit.Event.Title, doc); err != nil {
		return store.StageResult{}, err
	}
	doc.FilterStyle = unit.Profile.FilterStyle

	raw, err := doc.Marshal()
	if err != nil {
		return store.StageResult{}, services.Wrap(services.ErrValidation, stageName, "encode script", "", err)
	}
	return store.StageResult{
		Status:     store.StatusAudioGen,
		ScriptJSON: stage.StringPtr(raw),
		AudioPath:  stage.StringPtr(audioPath),
	}, nil
}

// fetchImages downloads every scene image with bounded concurrency. The
// first failure cancels the rest and fails the stage.
func (s *Synthesizer) fetchImages(ctx context.Context, jobID int64, title string, doc *script.Script) error {
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(s.settings.Concurrency)

	urls := make([]string, len(doc.Scenes))
	for idx, scene := range doc.Scenes {
		prompt := strings.TrimSpace(scene.ImagePrompt)
		if prompt == "" {
			prompt = fmt.Sprintf("%s, scene %d", title, idx+1)
		}
		name := fmt.Sprintf("job_%d_scene_%d.png", jobID, idx)
		group.Go(func() error {
			source, err := s.deps.Images.Fetch(groupCtx, prompt, filepath.Join(s.settings.AssetDir, name))
			if err != nil {
				return services.Wrap(services.ErrExternalTool, stageName, "fetch image",
					fmt.Sprintf("Scene %d image unavailable from every source", idx+1), err)
			}
			s.logger.Debug("scene image saved",
				logging.Int("scene", idx+1),
				logging.String("source", string(source)),
			)
			urls[idx] = urlPrefix + name
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return err
	}
	for idx := range doc.Scenes {
		doc.Scenes[idx].ImageURL = urls[idx]
	}
	return nil
}

// HealthCheck verifies the external binaries the stage shells out to.
func (s *Synthesizer) HealthCheck(context.Context) stage.Health {
	for _, binary := range s.deps.Binaries {
		if _, err := exec.LookPath(binary); err != nil {
			return stage.Unhealthy(stageName, fmt.Sprintf("%s not found on PATH", binary))
		}
	}
	return stage.Healthy(stageName)
}
