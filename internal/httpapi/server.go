package httpapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"contentfactory/internal/logging"
	"contentfactory/internal/pipeline"
	"contentfactory/internal/stage"
	"contentfactory/internal/store"
)

// Runner executes pipeline work on behalf of API requests.
type Runner interface {
	RunPipeline(ctx context.Context, jobID int64) error
	RunStage(ctx context.Context, name string, jobID int64) error
	Health(ctx context.Context) []stage.Health
}

// WorkerReporter exposes the background worker state. A nil reporter means
// the worker is disabled.
type WorkerReporter interface {
	Status() pipeline.WorkerStatus
}

// Server serves the JSON API.
type Server struct {
	bind   string
	store  *store.Store
	runner Runner
	worker WorkerReporter
	logger *slog.Logger
	router chi.Router

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	mu      sync.Mutex
	running map[int64]string

	listener net.Listener
	server   *http.Server
}

// NewServer builds the API server. worker may be nil.
func NewServer(bind string, st *store.Store, runner Runner, worker WorkerReporter, logger *slog.Logger) *Server {
	if logger == nil {
		logger = logging.NewNop()
	}
	baseCtx, cancel := context.WithCancel(context.Background())
	s := &Server{
		bind:    strings.TrimSpace(bind),
		store:   st,
		runner:  runner,
		worker:  worker,
		logger:  logging.NewComponentLogger(logger, "api"),
		baseCtx: baseCtx,
		cancel:  cancel,
		running: make(map[int64]string),
	}
	s.router = s.routes()
	return s
}

// Handler returns the routed handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(requestID, requestLogger(s.logger), recovery(s.logger))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/channels", s.handleListChannels)
		r.Get("/events", s.handleListEvents)
		r.Route("/jobs", func(r chi.Router) {
			r.Post("/", s.handleCreateJob)
			r.Get("/", s.handleListJobs)
			r.Get("/{jobID}", s.handleGetJob)
			r.Post("/{jobID}/run", s.handleRunJob)
			r.Post("/{jobID}/stages/{stage}", s.handleRunStage)
		})
	})
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, CodeNotFound, "route not found")
	})
	return r
}

// Start listens on the configured bind address and serves until ctx is
// cancelled.
func (s *Server) Start(ctx context.Context) error {
	if s.bind == "" {
		return errors.New("api bind address is empty")
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener
	s.server = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

// Addr returns the bound address once Start has succeeded.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop shuts the listener down, cancels background runs and waits for them
// to record their outcome.
func (s *Server) Stop() {
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	s.cancel()
	s.wg.Wait()
}

// launch runs fn in the background unless the job already has a run in this
// process.
func (s *Server) launch(reqCtx context.Context, jobID int64, label string, fn func(context.Context) error) bool {
	s.mu.Lock()
	if _, busy := s.running[jobID]; busy {
		s.mu.Unlock()
		return false
	}
	s.running[jobID] = label
	s.mu.Unlock()

	// Carry request-scoped values (correlation id) but not the request's
	// cancellation.
	ctx, cancel := context.WithCancel(context.WithoutCancel(reqCtx))
	stop := context.AfterFunc(s.baseCtx, cancel)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			stop()
			cancel()
			s.mu.Lock()
			delete(s.running, jobID)
			s.mu.Unlock()
		}()
		logger := logging.WithContext(logging.WithJob(ctx, jobID), s.logger)
		if err := fn(ctx); err != nil {
			logger.Warn("background run failed",
				logging.String(logging.FieldEventType, "api_run_failed"),
				logging.String("run", label),
				logging.Error(err),
			)
			return
		}
		logger.Info("background run finished",
			logging.String(logging.FieldEventType, "api_run_complete"),
			logging.String("run", label),
		)
	}()
	return true
}
