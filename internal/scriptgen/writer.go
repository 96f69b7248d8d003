package scriptgen

import (
	"context"
	"fmt"
	"log/slog"

	"contentfactory/internal/channel"
	"contentfactory/internal/logging"
	"contentfactory/internal/review"
	"contentfactory/internal/script"
	"contentfactory/internal/services/llm"
	"contentfactory/internal/store"
)

// Draft is the outcome of script generation for one job.
type Draft struct {
	Prompt  string
	Script  *script.Script
	JSON    string
	Reviews []review.Result
	// Approved is true when a review reached the quality threshold.
	Approved bool
}

// Writer drafts short-form scripts and refines them through review.
type Writer struct {
	gen      Generator
	reviewer *review.Reviewer
	settings Settings
	logger   *slog.Logger
}

// NewWriter builds a Writer.
func NewWriter(gen Generator, settings Settings, logger *slog.Logger) *Writer {
	return &Writer{
		gen:      gen,
		reviewer: review.NewReviewer(gen, settings.ReviewTemperature),
		settings: settings,
		logger:   logging.NewComponentLogger(logger, "script-writer"),
	}
}

// SetLogger swaps the logger used for loop progress.
func (w *Writer) SetLogger(logger *slog.Logger) {
	w.logger = logging.NewComponentLogger(logger, "script-writer")
}

// Write produces a reviewed script for ev using the channel profile.
func (w *Writer) Write(ctx context.Context, ev *store.Event, profile channel.Profile) (*Draft, error) {
	prompt := BuildPrompt(ev, profile.SceneCount)
	current, err := w.generate(ctx, profile, prompt, w.settings.GenerateTemperature)
	if err != nil {
		return nil, fmt.Errorf("draft script: %w", err)
	}
	w.logger.Info("draft generated", logging.Int("bytes", len(current.raw)), logging.Int("scenes", len(current.script.Scenes)))

	draft := &Draft{Prompt: prompt}
	for round := 0; round <= w.settings.MaxRevisions; round++ {
		result, err := w.reviewer.Review(ctx, profile.ReviewPrompt, ev.Title, current.raw)
		if err != nil {
			return nil, err
		}
		draft.Reviews = append(draft.Reviews, result)
		w.logger.Info("script reviewed",
			logging.Int("round", round+1),
			logging.Int("overall", result.OverallScore),
			logging.String("scores", result.Summary()),
		)

		if result.Passes(w.settings.QualityThreshold) {
			draft.Approved = true
			break
		}
		if round == w.settings.MaxRevisions {
			logging.WarnWithContext(w.logger, "revision budget exhausted; keeping latest script", "quality_gate",
				logging.Int("overall", result.OverallScore),
				logging.Int("threshold", w.settings.QualityThreshold),
				logging.String(logging.FieldImpact, "script below quality threshold"),
				logging.String(logging.FieldErrorHint, "review the channel prompt or raise max_revisions"),
			)
			break
		}

		revised, err := w.generate(ctx, profile,
			revisionPrompt(current.raw, result.Suggestions, prompt, profile.SceneCount),
			w.settings.ReviseTemperature)
		if err != nil {
			return nil, fmt.Errorf("revise script (round %d): %w", round+1, err)
		}
		current = revised
		w.logger.Info("script revised", logging.Int("round", round+1), logging.Int("bytes", len(current.raw)))
	}

	draft.Script = current.script
	draft.JSON, err = current.script.Marshal()
	if err != nil {
		return nil, err
	}
	return draft, nil
}

type generated struct {
	raw    string
	script *script.Script
}

func (w *Writer) generate(ctx context.Context, profile channel.Profile, user string, temperature float64) (generated, error) {
	var s script.Script
	raw, err := w.gen.GenerateInto(ctx, llm.Prompt{
		System:      profile.SystemPrompt,
		User:        user,
		Temperature: temperature,
		SchemaName:  "video_script",
		Schema:      script.Schema(profile.SceneCount),
	}, &s)
	if err != nil {
		return generated{}, err
	}
	if len(s.Scenes) == 0 {
		return generated{}, script.ErrNoScenes
	}
	if len(s.Scenes) != profile.SceneCount {
		logging.WarnWithContext(w.logger, "scene count differs from channel profile", "scene_count_mismatch",
			logging.Int("expected", profile.SceneCount),
			logging.Int("actual", len(s.Scenes)),
			logging.String(logging.FieldImpact, "video length may differ from channel format"),
		)
	}
	return generated{raw: raw, script: &s}, nil
}
