package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"contentfactory/internal/logging"
	"contentfactory/internal/pipeline"
	"contentfactory/internal/store"
)

const maxListLimit = 500

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	payload := Health{Status: "ok", Jobs: map[string]int{}}

	payload.Stages = fromStageHealth(s.runner.Health(ctx))
	for _, h := range payload.Stages {
		if !h.Ready {
			payload.Status = "degraded"
		}
	}

	stats, err := s.store.Stats(ctx)
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	for status, count := range stats {
		payload.Jobs[string(status)] = count
	}

	if s.worker != nil {
		payload.Worker = fromWorkerStatus(s.worker.Status())
	} else {
		payload.Worker = WorkerStatus{InFlight: []int64{}}
	}
	writeData(w, http.StatusOK, payload)
}

func (s *Server) handleListChannels(w http.ResponseWriter, r *http.Request) {
	channels, err := s.store.ListChannels(r.Context())
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	out := make([]Channel, 0, len(channels))
	for _, ch := range channels {
		out = append(out, fromChannel(ch))
	}
	writeData(w, http.StatusOK, out)
}

func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	limit, ok := parseLimit(query.Get("limit"))
	if !ok {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "limit must be a positive integer")
		return
	}
	filter := store.EventFilter{
		ChannelSlug: query.Get("channel"),
		WithoutJob:  query.Get("without_job") == "true",
		Limit:       limit,
	}
	events, err := s.store.ListEvents(r.Context(), filter)
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	out := make([]Event, 0, len(events))
	for _, ev := range events {
		out = append(out, fromEvent(ev))
	}
	writeData(w, http.StatusOK, out)
}

func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	var req CreateJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.EventID <= 0 {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "body must be {\"event_id\": <positive integer>}")
		return
	}
	job, err := s.store.CreateJob(r.Context(), req.EventID)
	switch {
	case errors.Is(err, store.ErrJobExists):
		writeError(w, http.StatusConflict, CodeConflict, err.Error())
		return
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, CodeNotFound, fmt.Sprintf("event %d not found", req.EventID))
		return
	case err != nil:
		s.internalError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, fromJob(*job))
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	var filter store.JobFilter
	for _, raw := range r.URL.Query()["status"] {
		for _, part := range strings.Split(raw, ",") {
			part = strings.ToUpper(strings.TrimSpace(part))
			if part == "" {
				continue
			}
			status, ok := store.ParseStatus(part)
			if !ok {
				writeError(w, http.StatusBadRequest, CodeBadRequest, fmt.Sprintf("unknown status %q", part))
				return
			}
			filter.Statuses = append(filter.Statuses, status)
		}
	}
	limit, ok := parseLimit(r.URL.Query().Get("limit"))
	if !ok {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "limit must be a positive integer")
		return
	}
	filter.Limit = limit

	jobs, err := s.store.ListJobs(r.Context(), filter)
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	out := make([]Job, 0, len(jobs))
	for _, job := range jobs {
		out = append(out, fromJob(job))
	}
	writeData(w, http.StatusOK, out)
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, ok := s.lookupJob(w, r)
	if !ok {
		return
	}
	writeData(w, http.StatusOK, fromJob(*job))
}

func (s *Server) handleRunJob(w http.ResponseWriter, r *http.Request) {
	job, ok := s.lookupJob(w, r)
	if !ok {
		return
	}
	jobID := job.ID
	started := s.launch(r.Context(), jobID, "pipeline", func(ctx context.Context) error {
		return s.runner.RunPipeline(ctx, jobID)
	})
	if !started {
		writeError(w, http.StatusConflict, CodeConflict, fmt.Sprintf("job %d is already running", jobID))
		return
	}
	writeData(w, http.StatusAccepted, Accepted{JobID: jobID, Stage: "pipeline"})
}

func (s *Server) handleRunStage(w http.ResponseWriter, r *http.Request) {
	name := strings.ToLower(chi.URLParam(r, "stage"))
	if !validStage(name) {
		writeError(w, http.StatusBadRequest, CodeBadRequest,
			fmt.Sprintf("unknown stage %q (expected one of %s)", name, strings.Join(pipeline.StageNames(), ", ")))
		return
	}
	job, ok := s.lookupJob(w, r)
	if !ok {
		return
	}
	jobID := job.ID
	started := s.launch(r.Context(), jobID, name, func(ctx context.Context) error {
		return s.runner.RunStage(ctx, name, jobID)
	})
	if !started {
		writeError(w, http.StatusConflict, CodeConflict, fmt.Sprintf("job %d is already running", jobID))
		return
	}
	writeData(w, http.StatusAccepted, Accepted{JobID: jobID, Stage: name})
}

func (s *Server) lookupJob(w http.ResponseWriter, r *http.Request) (*store.Job, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "jobID"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "invalid job id")
		return nil, false
	}
	job, err := s.store.GetJob(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, CodeNotFound, fmt.Sprintf("job %d not found", id))
		return nil, false
	}
	if err != nil {
		s.internalError(w, r, err)
		return nil, false
	}
	return job, true
}

func (s *Server) internalError(w http.ResponseWriter, r *http.Request, err error) {
	logging.ErrorWithContext(logging.WithContext(r.Context(), s.logger), "api request failed", "api_error",
		logging.String("path", r.URL.Path),
		logging.Error(err),
	)
	writeError(w, http.StatusInternalServerError, CodeInternal, "internal error")
}

func validStage(name string) bool {
	for _, candidate := range pipeline.StageNames() {
		if candidate == name {
			return true
		}
	}
	return false
}

// parseLimit accepts an empty value (no limit) or a positive integer, capped
// at maxListLimit.
func parseLimit(raw string) (int, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, false
	}
	return min(n, maxListLimit), true
}
