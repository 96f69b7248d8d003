package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"contentfactory/internal/assets"
	"contentfactory/internal/channel"
	"contentfactory/internal/config"
	"contentfactory/internal/logging"
	"contentfactory/internal/notifications"
	"contentfactory/internal/render"
	"contentfactory/internal/scriptgen"
	"contentfactory/internal/services/imagegen"
	"contentfactory/internal/services/llm"
	"contentfactory/internal/services/tts"
	"contentfactory/internal/stage"
	"contentfactory/internal/stageexec"
	"contentfactory/internal/store"
)

// Stage names accepted by RunStage.
const (
	StageScript = "script"
	StageAssets = "assets"
	StageRender = "render"
)

// StageNames lists the stages in execution order.
func StageNames() []string {
	return []string{StageScript, StageAssets, StageRender}
}

// Handlers are the stage implementations a Runner drives.
type Handlers struct {
	Script stage.Handler
	Assets stage.Handler
	Render stage.Handler
}

// Runner runs stages against jobs.
type Runner struct {
	cfg      *config.Config
	store    *store.Store
	logger   *slog.Logger
	notifier notifications.Service
	handlers Handlers
}

// New wires the production stage handlers from configuration.
func New(cfg *config.Config, st *store.Store, logger *slog.Logger) *Runner {
	return NewRunner(cfg, st, logger, notifications.NewService(cfg), DefaultHandlers(cfg, logger))
}

// NewRunner builds a Runner around explicit handlers and notifier.
func NewRunner(cfg *config.Config, st *store.Store, logger *slog.Logger, notifier notifications.Service, handlers Handlers) *Runner {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Runner{
		cfg:      cfg,
		store:    st,
		logger:   logger,
		notifier: notifier,
		handlers: handlers,
	}
}

// NewLLMClient builds the Generation Service client from the llm section.
func NewLLMClient(cfg *config.Config) *llm.Client {
	opts := []llm.Option{}
	if cfg.LLM.RetryAttempts > 0 {
		opts = append(opts, llm.WithRetryMaxAttempts(cfg.LLM.RetryAttempts))
	}
	return llm.NewClient(llm.Config{
		APIKey:         cfg.LLM.APIKey,
		BaseURL:        cfg.LLM.BaseURL,
		Model:          cfg.LLM.Model,
		Referer:        cfg.LLM.Referer,
		Title:          cfg.LLM.Title,
		TimeoutSeconds: cfg.LLM.TimeoutSeconds,
	}, opts...)
}

// DefaultHandlers builds the real script, assets and render handlers.
func DefaultHandlers(cfg *config.Config, logger *slog.Logger) Handlers {
	return Handlers{
		Script: scriptgen.NewStage(NewLLMClient(cfg), scriptgen.SettingsFromConfig(cfg), logger),
		Assets: assets.NewSynthesizer(assets.Collaborators{
			Narrator: tts.New(cfg.TTS, logger),
			Images:   imagegen.New(cfg.Images, logger),
			Probe:    assets.FFprobeDuration(cfg.FFprobeBinary()),
			Binaries: []string{cfg.TTS.Binary, cfg.FFprobeBinary()},
		}, assets.SettingsFromConfig(cfg), logger),
		Render: render.New(cfg.Render, cfg.Paths.OutputDir, logger),
	}
}

// GenerateScript runs the script stage for jobID.
func (r *Runner) GenerateScript(ctx context.Context, jobID int64) error {
	return r.run(ctx, StageScript, r.handlers.Script, jobID)
}

// SynthesizeAssets runs the asset stage for jobID.
func (r *Runner) SynthesizeAssets(ctx context.Context, jobID int64) error {
	return r.run(ctx, StageAssets, r.handlers.Assets, jobID)
}

// Render runs the render stage for jobID.
func (r *Runner) Render(ctx context.Context, jobID int64) error {
	return r.run(ctx, StageRender, r.handlers.Render, jobID)
}

// RunStage runs a single stage by name.
func (r *Runner) RunStage(ctx context.Context, name string, jobID int64) error {
	switch name {
	case StageScript:
		return r.GenerateScript(ctx, jobID)
	case StageAssets:
		return r.SynthesizeAssets(ctx, jobID)
	case StageRender:
		return r.Render(ctx, jobID)
	default:
		return fmt.Errorf("unknown stage %q", name)
	}
}

// RunPipeline drives jobID through every stage and stops at the first
// failure. The script branch is resolved from the channel before anything
// runs.
func (r *Runner) RunPipeline(ctx context.Context, jobID int64) error {
	work, err := r.store.LoadWork(ctx, jobID)
	if err != nil {
		return fmt.Errorf("load job %d: %w", jobID, err)
	}
	profile := channel.Resolve(work.Channel, r.cfg)
	branch := "short_form"
	if profile.LongForm {
		branch = "long_form"
	}
	logger := logging.WithContext(logging.WithJob(ctx, jobID), r.logger)
	logger.Info("pipeline started",
		logging.String(logging.FieldEventType, "pipeline_start"),
		logging.String(logging.FieldChannel, profile.Slug),
		logging.String("branch", branch),
	)

	for _, step := range []func(context.Context, int64) error{r.GenerateScript, r.SynthesizeAssets, r.Render} {
		if err := step(ctx, jobID); err != nil {
			return err
		}
	}
	logger.Info("pipeline completed", logging.String(logging.FieldEventType, "pipeline_complete"))
	return nil
}

// Health reports every stage's readiness.
func (r *Runner) Health(ctx context.Context) []stage.Health {
	out := make([]stage.Health, 0, 3)
	for _, entry := range []struct {
		name    string
		handler stage.Handler
	}{
		{StageScript, r.handlers.Script},
		{StageAssets, r.handlers.Assets},
		{StageRender, r.handlers.Render},
	} {
		if entry.handler == nil {
			out = append(out, stage.Unhealthy(entry.name, "not configured"))
			continue
		}
		out = append(out, entry.handler.HealthCheck(ctx))
	}
	return out
}

func (r *Runner) run(ctx context.Context, name string, handler stage.Handler, jobID int64) error {
	_, err := stageexec.Run(ctx, stageexec.Options{
		Logger:    r.logger,
		Store:     r.store,
		Config:    r.cfg,
		Notifier:  r.notifier,
		Handler:   handler,
		StageName: name,
		JobID:     jobID,
	})
	return err
}
