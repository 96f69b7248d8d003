package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"contentfactory/internal/logging"
	"contentfactory/internal/services"
	"contentfactory/internal/stageexec"
	"contentfactory/internal/store"
)

// JobRunner is the slice of Runner the worker needs.
type JobRunner interface {
	RunPipeline(ctx context.Context, jobID int64) error
}

// Worker polls for PENDING jobs and runs each through the pipeline.
type Worker struct {
	store        *store.Store
	runner       JobRunner
	logger       *slog.Logger
	pollInterval time.Duration
	concurrency  int

	mu       sync.Mutex
	running  bool
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	inFlight map[int64]string
	busy     map[int64]time.Time
	lastErr  error
	done     int
	failed   int
}

// WorkerStatus is a snapshot of the worker's state.
type WorkerStatus struct {
	Running   bool
	InFlight  []int64
	Completed int
	Failed    int
	LastError string
}

// NewWorker builds a worker. Non-positive values fall back to one job every
// five seconds.
func NewWorker(st *store.Store, runner JobRunner, logger *slog.Logger, pollInterval time.Duration, concurrency int) *Worker {
	if pollInterval <= 0 {
		pollInterval = 5 * time.Second
	}
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Worker{
		store:        st,
		runner:       runner,
		logger:       logging.NewComponentLogger(logger, "worker"),
		pollInterval: pollInterval,
		concurrency:  concurrency,
		inFlight:     make(map[int64]string),
		busy:         make(map[int64]time.Time),
	}
}

// Start begins background polling.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return errors.New("worker already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.running = true
	w.wg.Add(1)
	go w.loop(runCtx)
	w.logger.Info("worker started",
		logging.Duration("poll_interval", w.pollInterval),
		logging.Int("concurrency", w.concurrency),
	)
	return nil
}

// Stop cancels polling and waits for in-flight jobs to return.
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	cancel := w.cancel
	w.running = false
	w.cancel = nil
	w.mu.Unlock()

	cancel()
	w.wg.Wait()
	w.logger.Info("worker stopped")
}

// Status returns the current worker snapshot.
func (w *Worker) Status() WorkerStatus {
	w.mu.Lock()
	defer w.mu.Unlock()
	status := WorkerStatus{Running: w.running, Completed: w.done, Failed: w.failed}
	for id := range w.inFlight {
		status.InFlight = append(status.InFlight, id)
	}
	slices.Sort(status.InFlight)
	if w.lastErr != nil {
		status.LastError = w.lastErr.Error()
	}
	return status
}

func (w *Worker) loop(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		dispatched, err := w.dispatch(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			w.setLastError(err)
			w.logger.Error("failed to fetch next job",
				logging.Error(err),
				logging.String(logging.FieldEventType, "job_fetch_failed"),
				logging.String(logging.FieldErrorHint, "check database access"),
			)
		}
		if dispatched {
			continue
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(w.pollInterval):
		}
	}
}

// dispatch starts at most one job when a slot is free and reports whether
// it did.
func (w *Worker) dispatch(ctx context.Context) (bool, error) {
	w.mu.Lock()
	if len(w.inFlight) >= w.concurrency {
		w.mu.Unlock()
		return false, nil
	}
	exclude := make([]int64, 0, len(w.inFlight)+len(w.busy))
	for id := range w.inFlight {
		exclude = append(exclude, id)
	}
	now := time.Now()
	for id, until := range w.busy {
		if now.After(until) {
			delete(w.busy, id)
			continue
		}
		exclude = append(exclude, id)
	}
	w.mu.Unlock()

	job, err := w.store.NextPending(ctx, exclude)
	if err != nil || job == nil {
		return false, err
	}

	correlationID := uuid.NewString()
	w.mu.Lock()
	w.inFlight[job.ID] = correlationID
	w.mu.Unlock()

	w.wg.Add(1)
	go w.process(ctx, job.ID, correlationID)
	return true, nil
}

func (w *Worker) process(ctx context.Context, jobID int64, correlationID string) {
	defer w.wg.Done()
	jobCtx := services.WithRequestID(logging.WithJob(ctx, jobID), correlationID)
	logger := logging.WithContext(jobCtx, w.logger)
	logger.Info("job dispatched", logging.String(logging.FieldEventType, "job_dispatched"))

	err := w.runner.RunPipeline(jobCtx, jobID)

	w.mu.Lock()
	delete(w.inFlight, jobID)
	switch {
	case err == nil:
		w.done++
	case errors.Is(err, stageexec.ErrJobBusy):
		w.busy[jobID] = time.Now().Add(w.pollInterval)
	case errors.Is(err, context.Canceled):
	default:
		w.failed++
		w.lastErr = err
	}
	w.mu.Unlock()

	switch {
	case err == nil:
		logger.Info("job finished", logging.String(logging.FieldEventType, "job_finished"))
	case errors.Is(err, stageexec.ErrJobBusy):
		logger.Info("job busy elsewhere; skipped", logging.String(logging.FieldEventType, "job_busy"))
	case errors.Is(err, context.Canceled):
		logger.Info("job interrupted by shutdown")
	default:
		logging.WarnWithContext(logger, "job failed", "job_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "job left in ERROR"),
			logging.String(logging.FieldErrorHint, "inspect error_log and rerun the failing stage"),
		)
	}
}

func (w *Worker) setLastError(err error) {
	w.mu.Lock()
	w.lastErr = err
	w.mu.Unlock()
}
