// Package stageexec is the single writer of stage transitions: it locks the
// job, runs a stage handler and commits or fails the job.
package stageexec

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"

	"github.com/gofrs/flock"

	"contentfactory/internal/channel"
	"contentfactory/internal/config"
	"contentfactory/internal/logging"
	"contentfactory/internal/notifications"
	"contentfactory/internal/services"
	"contentfactory/internal/stage"
	"contentfactory/internal/store"
)

var (
	// ErrJobBusy is returned when another process holds the job's lock.
	ErrJobBusy = errors.New("job is locked by another run")
	// ErrStagePanic marks a handler panic recovered at the stage boundary.
	ErrStagePanic = errors.New("stage panicked")
)

// Options controls stage execution and persistence.
type Options struct {
	Logger    *slog.Logger
	Store     *store.Store
	Config    *config.Config
	Notifier  notifications.Service
	Handler   stage.Handler
	StageName string
	JobID     int64
}

// Run executes one stage against one job. The job row is only written here:
// CommitStage on success, MarkFailed on failure. A missing job or a held lock
// returns an error without touching the row.
func Run(ctx context.Context, opts Options) (*store.Job, error) {
	if opts.Handler == nil {
		return nil, fmt.Errorf("stage handler unavailable: %s", opts.StageName)
	}
	if opts.Store == nil {
		return nil, fmt.Errorf("job store is required")
	}
	if opts.Config == nil {
		return nil, fmt.Errorf("config is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}

	lock, err := acquire(opts.Config.Paths.LockDir, opts.JobID)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			logger.Warn("release job lock", logging.JobID(opts.JobID), logging.Error(err))
		}
	}()

	stageCtx := logging.WithStage(logging.WithJob(ctx, opts.JobID), opts.StageName)
	stageLogger := logging.WithContext(stageCtx, logger)

	work, err := opts.Store.LoadWork(stageCtx, opts.JobID)
	if err != nil {
		return nil, fmt.Errorf("load job %d: %w", opts.JobID, err)
	}
	unit := &stage.Unit{Work: work, Profile: channel.Resolve(work.Channel, opts.Config)}
	stageCtx = logging.WithChannel(stageCtx, unit.Profile.Slug)
	stageLogger = logging.WithContext(stageCtx, logger)

	if aware, ok := opts.Handler.(stage.LoggerAware); ok {
		aware.SetLogger(stageLogger)
	}

	stageLogger.Info(
		"stage started",
		logging.String(logging.FieldEventType, "stage_start"),
		logging.String("current_status", string(work.Job.Status)),
		logging.String("event_title", strings.TrimSpace(work.Event.Title)),
	)

	result, err := runHandler(stageCtx, stageLogger, opts.Handler, unit)
	if err != nil {
		return nil, handleFailure(stageCtx, stageLogger, opts, err)
	}

	job, err := opts.Store.CommitStage(stageCtx, opts.JobID, result)
	if err != nil {
		return nil, handleFailure(stageCtx, stageLogger, opts, fmt.Errorf("persist stage result: %w", err))
	}

	stageLogger.Info(
		"stage completed",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.String("next_status", string(job.Status)),
	)

	if job.Status == store.StatusRenderComplete && opts.Notifier != nil {
		if err := opts.Notifier.Publish(stageCtx, notifications.EventJobCompleted, notifications.Payload{
			"title":   work.Event.Title,
			"channel": unit.Profile.Slug,
			"video":   job.VideoPath,
		}); err != nil {
			stageLogger.Debug("completion notification failed", logging.Error(err))
		}
	}
	return job, nil
}

// runHandler calls Prepare then Execute and turns a panic in either into an
// ErrStagePanic error. errgroup re-panics goroutine panics in Wait, so image
// workers land here too.
func runHandler(ctx context.Context, logger *slog.Logger, handler stage.Handler, unit *stage.Unit) (result store.StageResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("stage handler panicked",
				logging.String(logging.FieldEventType, "stage_panic"),
				logging.String("panic", fmt.Sprint(r)),
				logging.String("stack", string(debug.Stack())),
			)
			result, err = store.StageResult{}, fmt.Errorf("%w: %v", ErrStagePanic, r)
		}
	}()
	if err := handler.Prepare(ctx, unit); err != nil {
		return store.StageResult{}, err
	}
	return handler.Execute(ctx, unit)
}

func acquire(lockDir string, jobID int64) (*flock.Flock, error) {
	if err := os.MkdirAll(lockDir, 0o755); err != nil {
		return nil, fmt.Errorf("create lock dir: %w", err)
	}
	lock := flock.New(filepath.Join(lockDir, fmt.Sprintf("job_%d.lock", jobID)))
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock job %d: %w", jobID, err)
	}
	if !ok {
		return nil, fmt.Errorf("job %d: %w", jobID, ErrJobBusy)
	}
	return lock, nil
}

func handleFailure(ctx context.Context, logger *slog.Logger, opts Options, stageErr error) error {
	details := services.Details(stageErr)
	message := strings.TrimSpace(details.Message)
	if message == "" {
		message = "stage failed"
	}

	logger.Error(
		"stage failed",
		logging.String(logging.FieldEventType, "stage_failure"),
		logging.String("resolved_status", string(store.StatusError)),
		logging.String("error_kind", details.Kind),
		logging.String("error_message", message),
		logging.Error(stageErr),
	)
	// The caller's context may already be cancelled; the failure still has
	// to reach the row.
	if err := opts.Store.MarkFailed(context.WithoutCancel(ctx), opts.JobID, message); err != nil {
		logger.Error("failed to persist stage failure", logging.Error(err))
	}

	if opts.Notifier != nil {
		contextLabel := fmt.Sprintf("%s (job #%d)", opts.StageName, opts.JobID)
		if err := opts.Notifier.Publish(ctx, notifications.EventError, notifications.Payload{
			"error":   stageErr,
			"context": contextLabel,
		}); err != nil {
			logger.Debug("stage error notification failed", logging.Error(err))
		}
	}
	return stageErr
}
