package stage

import (
	"context"
	"log/slog"

	"contentfactory/internal/channel"
	"contentfactory/internal/store"
)

// Unit is everything a stage sees for one job: the persisted work plus the
// resolved channel profile.
type Unit struct {
	*store.Work
	Profile channel.Profile
}

// JobID returns the id of the job being processed.
func (u *Unit) JobID() int64 {
	if u == nil || u.Work == nil || u.Job == nil {
		return 0
	}
	return u.Job.ID
}

// Handler describes the contract the execution helper needs from each stage.
// Execute never writes to the store; it returns the outputs to commit.
type Handler interface {
	Prepare(context.Context, *Unit) error
	Execute(context.Context, *Unit) (store.StageResult, error)
	HealthCheck(context.Context) Health
}

// LoggerAware handlers receive the job-scoped logger before Prepare runs.
type LoggerAware interface {
	SetLogger(*slog.Logger)
}

// Health is a stage's readiness as shown by doctor and the API.
type Health struct {
	Name   string
	Ready  bool
	Detail string
}

// Healthy reports name as ready.
func Healthy(name string) Health { return Health{Name: name, Ready: true} }

// Unhealthy reports name as unusable, with detail naming the missing piece.
func Unhealthy(name, detail string) Health {
	return Health{Name: name, Detail: detail}
}
