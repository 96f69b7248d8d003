package pipeline_test

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"contentfactory/internal/logging"
	"contentfactory/internal/pipeline"
	"contentfactory/internal/services"
	"contentfactory/internal/testsupport"
)

type recordingRunner struct {
	mu            sync.Mutex
	ran           []int64
	correlationID map[int64]string
	active        int
	peak          int
	fail          map[int64]bool
	hold          time.Duration
}

func (r *recordingRunner) RunPipeline(ctx context.Context, jobID int64) error {
	r.mu.Lock()
	r.active++
	if r.active > r.peak {
		r.peak = r.active
	}
	if rid, ok := services.RequestIDFromContext(ctx); ok {
		r.correlationID[jobID] = rid
	}
	r.mu.Unlock()

	time.Sleep(r.hold)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.active--
	r.ran = append(r.ran, jobID)
	if r.fail[jobID] {
		return errors.New("boom")
	}
	return nil
}

func (r *recordingRunner) snapshot() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.ran)
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestWorkerRunsPendingJobsOnce(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	first := testsupport.NewJob(t, st, "it_history", "Apollo 11")
	second := testsupport.NewJob(t, st, "it_history", "Sputnik")

	runner := &recordingRunner{
		correlationID: map[int64]string{},
		fail:          map[int64]bool{second.ID: true},
		hold:          50 * time.Millisecond,
	}
	worker := pipeline.NewWorker(st, runner, logging.NewNop(), 20*time.Millisecond, 2)
	if err := worker.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := worker.Start(context.Background()); err == nil {
		t.Fatal("expected second Start to fail")
	}

	// The recording runner never moves jobs out of PENDING, so the worker
	// keeps picking them up; wait for both to have run at least once.
	waitFor(t, 2*time.Second, func() bool {
		ran := runner.snapshot()
		return slices.Contains(ran, first.ID) && slices.Contains(ran, second.ID)
	})
	worker.Stop()

	runner.mu.Lock()
	defer runner.mu.Unlock()
	if runner.peak > 2 {
		t.Fatalf("expected at most 2 concurrent jobs, saw %d", runner.peak)
	}
	if runner.correlationID[first.ID] == "" || runner.correlationID[first.ID] == runner.correlationID[second.ID] {
		t.Fatalf("expected distinct correlation ids, got %v", runner.correlationID)
	}
	status := worker.Status()
	if status.Running || len(status.InFlight) != 0 {
		t.Fatalf("expected stopped idle worker, got %+v", status)
	}
	if status.Failed == 0 || status.LastError == "" {
		t.Fatalf("expected failure to be recorded, got %+v", status)
	}
}

func TestWorkerNeverRunsSameJobConcurrently(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	testsupport.NewJob(t, st, "it_history", "Apollo 11")

	runner := &recordingRunner{correlationID: map[int64]string{}, hold: 100 * time.Millisecond}
	worker := pipeline.NewWorker(st, runner, logging.NewNop(), 5*time.Millisecond, 4)
	if err := worker.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitFor(t, 2*time.Second, func() bool { return len(runner.snapshot()) >= 1 })
	worker.Stop()

	runner.mu.Lock()
	defer runner.mu.Unlock()
	if runner.peak != 1 {
		t.Fatalf("single job must never run twice at once, peak %d", runner.peak)
	}
}
