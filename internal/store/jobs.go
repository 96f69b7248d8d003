package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
)

var jobColumns = []string{
	"id", "event_id", "channel_id", "status", "script_prompt", "script_json",
	"audio_path", "video_path", "error_log", "created_at", "updated_at",
}

func scanJob(scanner rowScanner) (*Job, error) {
	var (
		job                      Job
		status                   string
		scriptPrompt, scriptJSON sql.NullString
		audioPath, videoPath     sql.NullString
		errorLog                 sql.NullString
		createdRaw, updatedRaw   string
	)
	if err := scanner.Scan(
		&job.ID, &job.EventID, &job.ChannelID, &status, &scriptPrompt, &scriptJSON,
		&audioPath, &videoPath, &errorLog, &createdRaw, &updatedRaw,
	); err != nil {
		return nil, err
	}
	job.Status = Status(status)
	job.ScriptPrompt = scriptPrompt.String
	job.ScriptJSON = scriptJSON.String
	job.AudioPath = audioPath.String
	job.VideoPath = videoPath.String
	job.ErrorLog = errorLog.String
	job.CreatedAt = parseTimeOrZero(createdRaw)
	job.UpdatedAt = parseTimeOrZero(updatedRaw)
	return &job, nil
}

// CreateJob queues the event for the pipeline in PENDING status. Each event
// may own at most one job.
func (s *Store) CreateJob(ctx context.Context, eventID int64) (*Job, error) {
	ctx = ensureContext(ctx)
	var id int64
	err := s.withTx(ctx, func(tx txExecer) error {
		var channelID int64
		switch err := tx.QueryRowContext(ctx, `SELECT channel_id FROM events WHERE id = ?`, eventID).Scan(&channelID); {
		case errors.Is(err, sql.ErrNoRows):
			return fmt.Errorf("event %d: %w", eventID, ErrNotFound)
		case err != nil:
			return fmt.Errorf("lookup event: %w", err)
		}

		var existing int64
		switch err := tx.QueryRowContext(ctx, `SELECT id FROM jobs WHERE event_id = ?`, eventID).Scan(&existing); {
		case err == nil:
			return fmt.Errorf("event %d (job #%d): %w", eventID, existing, ErrJobExists)
		case !errors.Is(err, sql.ErrNoRows):
			return fmt.Errorf("lookup job: %w", err)
		}

		now := nowString()
		res, err := tx.ExecContext(ctx,
			`INSERT INTO jobs (event_id, channel_id, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
			eventID, channelID, StatusPending, now, now)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("event %d: %w", eventID, ErrJobExists)
			}
			return fmt.Errorf("insert job: %w", err)
		}
		id, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return nil, err
	}
	return s.GetJob(ctx, id)
}

// GetJob fetches a job by identifier.
func (s *Store) GetJob(ctx context.Context, id int64) (*Job, error) {
	return getJob(ensureContext(ctx), s.db, id)
}

func getJob(ctx context.Context, q interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}, id int64) (*Job, error) {
	query, args, err := sq.Select(jobColumns...).From("jobs").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build job query: %w", err)
	}
	job, err := scanJob(q.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("job %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// ListJobs returns jobs ordered by creation, optionally filtered by status.
func (s *Store) ListJobs(ctx context.Context, filter JobFilter) ([]Job, error) {
	builder := sq.Select(jobColumns...).From("jobs").OrderBy("created_at", "id")
	if len(filter.Statuses) > 0 {
		values := make([]string, 0, len(filter.Statuses))
		for _, status := range filter.Statuses {
			values = append(values, string(status))
		}
		builder = builder.Where(sq.Eq{"status": values})
	}
	if filter.Limit > 0 {
		builder = builder.Limit(uint64(filter.Limit))
	}
	return s.queryJobs(ctx, builder)
}

// NextPending returns the oldest PENDING job whose id is not in exclude, or
// nil when none is waiting.
func (s *Store) NextPending(ctx context.Context, exclude []int64) (*Job, error) {
	builder := sq.Select(jobColumns...).From("jobs").
		Where(sq.Eq{"status": string(StatusPending)}).
		OrderBy("created_at", "id").
		Limit(1)
	if len(exclude) > 0 {
		builder = builder.Where(sq.NotEq{"id": exclude})
	}
	jobs, err := s.queryJobs(ctx, builder)
	if err != nil || len(jobs) == 0 {
		return nil, err
	}
	return &jobs[0], nil
}

func (s *Store) queryJobs(ctx context.Context, builder sq.SelectBuilder) ([]Job, error) {
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build job query: %w", err)
	}
	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

// Stats returns job counts keyed by status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), `SELECT status, COUNT(*) FROM jobs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("job stats: %w", err)
	}
	defer rows.Close()

	counts := make(map[Status]int)
	for rows.Next() {
		var (
			status string
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[Status(status)] = count
	}
	return counts, rows.Err()
}
