package scriptgen

import (
	"context"
	"fmt"
	"log/slog"

	"contentfactory/internal/logging"
	"contentfactory/internal/stage"
	"contentfactory/internal/store"
)

const stageName = "script"

type healthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Stage is the script-generation handler. The channel profile picks the
// branch: long-form channels are mapped, everything else is written and
// reviewed.
type Stage struct {
	gen    Generator
	writer *Writer
	mapper *Mapper
	logger *slog.Logger
}

// NewStage builds the script stage around one Generation Service.
func NewStage(gen Generator, settings Settings, logger *slog.Logger) *Stage {
	return &Stage{
		gen:    gen,
		writer: NewWriter(gen, settings, logger),
		mapper: NewMapper(gen, settings, logger),
		logger: logging.NewComponentLogger(logger, stageName),
	}
}

// SetLogger forwards the job-scoped logger to both branches.
func (s *Stage) SetLogger(logger *slog.Logger) {
	s.writer.SetLogger(logger)
	s.mapper.SetLogger(logger)
	s.logger = logging.NewComponentLogger(logger, stageName)
}

// Prepare only needs the event; script generation may be rerun from any
// status.
func (s *Stage) Prepare(_ context.Context, unit *stage.Unit) error {
	if unit.Event == nil {
		return fmt.Errorf("job %d has no event: %w", unit.JobID(), store.ErrNotFound)
	}
	return nil
}

// Execute drafts or maps the script and returns it for commit.
func (s *Stage) Execute(ctx context.Context, unit *stage.Unit) (store.StageResult, error) {
	status := store.StatusScriptGen
	var (
		draft *Draft
		err   error
	)
	if unit.Profile.LongForm {
		status = store.StatusScriptMapped
		draft, err = s.mapper.Map(ctx, unit.Event, unit.Profile)
	} else {
		draft, err = s.writer.Write(ctx, unit.Event, unit.Profile)
	}
	if err != nil {
		return store.StageResult{}, fmt.Errorf("%s: %w", stageName, err)
	}
	s.logOutcome(unit.Profile.LongForm, draft)
	return store.StageResult{
		Status:       status,
		ScriptPrompt: stage.StringPtr(draft.Prompt),
		ScriptJSON:   stage.StringPtr(draft.JSON),
	}, nil
}

func (s *Stage) logOutcome(longForm bool, draft *Draft) {
	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "script_ready"),
		logging.Bool("long_form", longForm),
		logging.Int("scenes", len(draft.Script.Scenes)),
	}
	if !longForm {
		attrs = append(attrs,
			logging.Bool("approved", draft.Approved),
			logging.Int("review_rounds", len(draft.Reviews)),
		)
		if n := len(draft.Reviews); n > 0 {
			attrs = append(attrs, logging.Int("final_score", draft.Reviews[n-1].OverallScore))
		}
	}
	s.logger.Info("script ready", logging.Args(attrs...)...)
}

// HealthCheck pings the Generation Service when it supports it.
func (s *Stage) HealthCheck(ctx context.Context) stage.Health {
	checker, ok := s.gen.(healthChecker)
	if !ok {
		return stage.Healthy(stageName)
	}
	if err := checker.HealthCheck(ctx); err != nil {
		return stage.Unhealthy(stageName, err.Error())
	}
	return stage.Healthy(stageName)
}
