package httpapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contentfactory/internal/httpapi"
	"contentfactory/internal/pipeline"
	"contentfactory/internal/services"
	"contentfactory/internal/stage"
	"contentfactory/internal/store"
	"contentfactory/internal/testsupport"
)

type call struct {
	stage     string
	jobID     int64
	requestID string
}

type stubRunner struct {
	mu     sync.Mutex
	calls  []call
	done   chan struct{}
	block  chan struct{}
	health []stage.Health
}

func newStubRunner() *stubRunner {
	return &stubRunner{done: make(chan struct{}, 8)}
}

func (r *stubRunner) record(ctx context.Context, name string, jobID int64) error {
	if r.block != nil {
		<-r.block
	}
	rid, _ := services.RequestIDFromContext(ctx)
	r.mu.Lock()
	r.calls = append(r.calls, call{stage: name, jobID: jobID, requestID: rid})
	r.mu.Unlock()
	r.done <- struct{}{}
	return nil
}

func (r *stubRunner) RunPipeline(ctx context.Context, jobID int64) error {
	return r.record(ctx, "pipeline", jobID)
}

func (r *stubRunner) RunStage(ctx context.Context, name string, jobID int64) error {
	return r.record(ctx, name, jobID)
}

func (r *stubRunner) Health(context.Context) []stage.Health {
	if r.health != nil {
		return r.health
	}
	return []stage.Health{stage.Healthy("script"), stage.Healthy("assets"), stage.Healthy("render")}
}

func (r *stubRunner) waitCall(t *testing.T) call {
	t.Helper()
	select {
	case <-r.done:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for background run")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[len(r.calls)-1]
}

type fixedWorker struct{ status pipeline.WorkerStatus }

func (w fixedWorker) Status() pipeline.WorkerStatus { return w.status }

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func newTestServer(t *testing.T, worker httpapi.WorkerReporter) (*httpapi.Server, *store.Store, *stubRunner) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	runner := newStubRunner()
	srv := httpapi.NewServer(cfg.Paths.APIBind, st, runner, worker, nil)
	t.Cleanup(srv.Stop)
	return srv, st, runner
}

func do(t *testing.T, srv *httpapi.Server, method, path string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), "body: %s", rec.Body.String())
	return rec, env
}

func TestHealthReportsStagesJobsAndWorker(t *testing.T) {
	srv, st, _ := newTestServer(t, fixedWorker{status: pipeline.WorkerStatus{Running: true, Completed: 3}})
	testsupport.NewJob(t, st, "history", "Moon landing")

	rec, env := do(t, srv, http.MethodGet, "/api/v1/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(httpapi.HeaderRequestID))

	var health httpapi.Health
	require.NoError(t, json.Unmarshal(env.Data, &health))
	assert.Equal(t, "ok", health.Status)
	assert.Len(t, health.Stages, 3)
	assert.Equal(t, 1, health.Jobs["PENDING"])
	assert.True(t, health.Worker.Enabled)
	assert.True(t, health.Worker.Running)
	assert.Equal(t, 3, health.Worker.Completed)
}

func TestHealthDegradedWhenStageUnready(t *testing.T) {
	srv, _, runner := newTestServer(t, nil)
	runner.health = []stage.Health{stage.Healthy("script"), stage.Unhealthy("render", "npx missing")}

	_, env := do(t, srv, http.MethodGet, "/api/v1/health", nil)
	var health httpapi.Health
	require.NoError(t, json.Unmarshal(env.Data, &health))
	assert.Equal(t, "degraded", health.Status)
	assert.False(t, health.Worker.Enabled)
}

func TestListChannelsAndEvents(t *testing.T) {
	srv, st, _ := newTestServer(t, nil)
	testsupport.SeedChannel(t, st, store.Channel{Slug: "history", DisplayName: "History"})
	testsupport.SeedChannel(t, st, store.Channel{Slug: "science", DisplayName: "Science"})
	testsupport.NewEvent(t, st, store.Event{ChannelSlug: "history", Year: testsupport.IntPtr(1815), Title: "Waterloo", Summary: "Battle", ImportanceScore: 9})
	testsupport.NewEvent(t, st, store.Event{ChannelSlug: "science", Year: testsupport.IntPtr(1905), Title: "Relativity", Summary: "Paper", ImportanceScore: 8})

	rec, env := do(t, srv, http.MethodGet, "/api/v1/channels", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var channels []httpapi.Channel
	require.NoError(t, json.Unmarshal(env.Data, &channels))
	assert.Len(t, channels, 2)

	rec, env = do(t, srv, http.MethodGet, "/api/v1/events?channel=history&limit=10", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var events []httpapi.Event
	require.NoError(t, json.Unmarshal(env.Data, &events))
	require.Len(t, events, 1)
	assert.Equal(t, "Waterloo", events[0].Title)
	assert.Equal(t, "1815", events[0].Date)

	rec, env = do(t, srv, http.MethodGet, "/api/v1/events?limit=abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, httpapi.CodeBadRequest, env.Error.Code)
}

func TestCreateJob(t *testing.T) {
	srv, st, _ := newTestServer(t, nil)
	testsupport.SeedChannel(t, st, store.Channel{Slug: "history", DisplayName: "History"})
	ev := testsupport.NewEvent(t, st, store.Event{ChannelSlug: "history", Year: testsupport.IntPtr(1969), Title: "Moon", Summary: "Landing", ImportanceScore: 10})

	rec, env := do(t, srv, http.MethodPost, "/api/v1/jobs", httpapi.CreateJobRequest{EventID: ev.ID})
	require.Equal(t, http.StatusCreated, rec.Code)
	var job httpapi.Job
	require.NoError(t, json.Unmarshal(env.Data, &job))
	assert.Equal(t, ev.ID, job.EventID)
	assert.Equal(t, "PENDING", job.Status)

	rec, env = do(t, srv, http.MethodPost, "/api/v1/jobs", httpapi.CreateJobRequest{EventID: ev.ID})
	assert.Equal(t, http.StatusConflict, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, httpapi.CodeConflict, env.Error.Code)

	rec, env = do(t, srv, http.MethodPost, "/api/v1/jobs", httpapi.CreateJobRequest{EventID: 9999})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, httpapi.CodeNotFound, env.Error.Code)

	rec, _ = do(t, srv, http.MethodPost, "/api/v1/jobs", map[string]string{"event_id": "nope"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListAndGetJobs(t *testing.T) {
	srv, st, _ := newTestServer(t, nil)
	job := testsupport.NewJob(t, st, "history", "Moon landing")
	script := `{"title":"Moon","scenes":[]}`
	_, err := st.CommitStage(context.Background(), job.ID, store.StageResult{Status: store.StatusScriptGen, ScriptJSON: &script})
	require.NoError(t, err)

	rec, env := do(t, srv, http.MethodGet, "/api/v1/jobs?status=script_gen", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var jobs []httpapi.Job
	require.NoError(t, json.Unmarshal(env.Data, &jobs))
	require.Len(t, jobs, 1)
	assert.Equal(t, "SCRIPT_GEN", jobs[0].Status)

	rec, _ = do(t, srv, http.MethodGet, "/api/v1/jobs?status=BOGUS", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, env = do(t, srv, http.MethodGet, "/api/v1/jobs/"+strconv.FormatInt(job.ID, 10), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var got httpapi.Job
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.JSONEq(t, script, string(got.Script))

	rec, _ = do(t, srv, http.MethodGet, "/api/v1/jobs/404404", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = do(t, srv, http.MethodGet, "/api/v1/jobs/abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRunJobAcceptedAndRunsInBackground(t *testing.T) {
	srv, st, runner := newTestServer(t, nil)
	job := testsupport.NewJob(t, st, "history", "Moon landing")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/jobs/"+strconv.FormatInt(job.ID, 10)+"/run", nil)
	req.Header.Set(httpapi.HeaderRequestID, "req-123")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "req-123", rec.Header().Get(httpapi.HeaderRequestID))

	got := runner.waitCall(t)
	assert.Equal(t, "pipeline", got.stage)
	assert.Equal(t, job.ID, got.jobID)
	assert.Equal(t, "req-123", got.requestID)
}

func TestRunStageValidatesName(t *testing.T) {
	srv, st, runner := newTestServer(t, nil)
	job := testsupport.NewJob(t, st, "history", "Moon landing")
	base := "/api/v1/jobs/" + strconv.FormatInt(job.ID, 10) + "/stages/"

	rec, env := do(t, srv, http.MethodPost, base+"upload", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, env.Error)
	assert.Contains(t, env.Error.Message, "script, assets, render")

	rec, _ = do(t, srv, http.MethodPost, base+"assets", nil)
	require.Equal(t, http.StatusAccepted, rec.Code)
	got := runner.waitCall(t)
	assert.Equal(t, "assets", got.stage)

	rec, _ = do(t, srv, http.MethodPost, "/api/v1/jobs/777/stages/script", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRunRejectsConcurrentRunForSameJob(t *testing.T) {
	srv, st, runner := newTestServer(t, nil)
	runner.block = make(chan struct{})
	job := testsupport.NewJob(t, st, "history", "Moon landing")
	path := "/api/v1/jobs/" + strconv.FormatInt(job.ID, 10) + "/run"

	rec, _ := do(t, srv, http.MethodPost, path, nil)
	require.Equal(t, http.StatusAccepted, rec.Code)

	rec, env := do(t, srv, http.MethodPost, path, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	require.NotNil(t, env.Error)

	close(runner.block)
	runner.waitCall(t)
}

func TestUnknownRouteUsesErrorEnvelope(t *testing.T) {
	srv, _, _ := newTestServer(t, nil)
	rec, env := do(t, srv, http.MethodGet, "/api/v1/nothing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, httpapi.CodeNotFound, env.Error.Code)
}

func TestStartServesOverTCP(t *testing.T) {
	srv, _, _ := newTestServer(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, srv.Start(ctx))

	resp, err := http.Get("http://" + srv.Addr() + "/api/v1/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
