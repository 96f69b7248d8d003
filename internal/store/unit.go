package store

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
)

// Work is the unit a stage operates on: the job plus the event and channel it
// belongs to, loaded together.
type Work struct {
	Job     *Job
	Event   *Event
	Channel *Channel
}

// LoadWork loads a job with its event and channel.
func (s *Store) LoadWork(ctx context.Context, jobID int64) (*Work, error) {
	job, err := s.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	event, err := s.GetEvent(ctx, job.EventID)
	if err != nil {
		return nil, fmt.Errorf("job %d: %w", jobID, err)
	}
	channel, err := s.ChannelByID(ctx, job.ChannelID)
	if err != nil {
		return nil, fmt.Errorf("job %d: %w", jobID, err)
	}
	return &Work{Job: job, Event: event, Channel: channel}, nil
}

// StageResult carries everything a successful stage writes back. Nil fields
// are left untouched.
type StageResult struct {
	Status       Status
	ScriptPrompt *string
	ScriptJSON   *string
	AudioPath    *string
	VideoPath    *string
}

// CommitStage writes a stage's outputs and the new status in one
// transaction. error_log keeps the last failure as an audit trail.
func (s *Store) CommitStage(ctx context.Context, jobID int64, result StageResult) (*Job, error) {
	if _, ok := ParseStatus(string(result.Status)); !ok || result.Status == StatusError {
		return nil, fmt.Errorf("commit stage: invalid status %q", result.Status)
	}
	ctx = ensureContext(ctx)

	update := sq.Update("jobs").
		Set("status", string(result.Status)).
		Set("updated_at", nowString()).
		Where(sq.Eq{"id": jobID})
	if result.ScriptPrompt != nil {
		update = update.Set("script_prompt", *result.ScriptPrompt)
	}
	if result.ScriptJSON != nil {
		update = update.Set("script_json", *result.ScriptJSON)
	}
	if result.AudioPath != nil {
		update = update.Set("audio_path", *result.AudioPath)
	}
	if result.VideoPath != nil {
		update = update.Set("video_path", *result.VideoPath)
	}
	query, args, err := update.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build commit: %w", err)
	}

	var committed *Job
	err = s.withTx(ctx, func(tx txExecer) error {
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("commit stage: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return fmt.Errorf("job %d: %w", jobID, ErrNotFound)
		}
		committed, err = getJob(ctx, tx, jobID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return committed, nil
}

// MarkFailed records a failure message and moves the job to ERROR. Stage
// outputs from earlier successful stages are kept.
func (s *Store) MarkFailed(ctx context.Context, jobID int64, message string) error {
	res, err := s.execWithRetry(ctx,
		`UPDATE jobs SET status = ?, error_log = ?, updated_at = ? WHERE id = ?`,
		string(StatusError), message, nowString(), jobID)
	if err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("job %d: %w", jobID, ErrNotFound)
	}
	return nil
}
