package stage

import (
	"fmt"
	"slices"

	"contentfactory/internal/script"
	"contentfactory/internal/services"
	"contentfactory/internal/store"
)

// RequireStatus fails with a validation error unless the job is in one of
// the allowed statuses.
func RequireStatus(name string, job *store.Job, allowed ...store.Status) error {
	if job == nil {
		return services.Wrap(services.ErrNotFound, name, "check status", "Job not loaded", nil)
	}
	if slices.Contains(allowed, job.Status) {
		return nil
	}
	return services.Wrap(
		services.ErrValidation, name, "check status",
		fmt.Sprintf("Job #%d is %s; expected one of %v", job.ID, job.Status, allowed), nil)
}

// ParseScript loads the stored script for a job. A missing or sceneless
// script is a validation error suitable for Prepare.
func ParseScript(name string, job *store.Job) (*script.Script, error) {
	raw := ""
	if job != nil {
		raw = job.ScriptJSON
	}
	s, err := script.Parse(raw)
	if err != nil {
		return nil, services.Wrap(
			services.ErrValidation, name, "parse script",
			"Script missing or invalid; rerun script generation", err)
	}
	return s, nil
}

// StringPtr returns a pointer to value for StageResult fields.
func StringPtr(value string) *string {
	return &value
}
