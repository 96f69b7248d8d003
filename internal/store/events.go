package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"contentfactory/internal/textutil"
)

var eventColumns = []string{
	"e.id", "e.channel_id", "c.slug", "e.month", "e.day", "e.year", "e.title", "e.summary",
	"e.category", "e.importance_score", "e.rich_context", "e.source", "e.created_at",
}

func eventSelect() sq.SelectBuilder {
	return sq.Select(eventColumns...).From("events e").Join("channels c ON c.id = e.channel_id")
}

func scanEvent(scanner rowScanner) (*Event, error) {
	var (
		ev                  Event
		month, day, year    sql.NullInt64
		summary, category   sql.NullString
		richContext, source sql.NullString
		createdRaw          string
	)
	if err := scanner.Scan(
		&ev.ID, &ev.ChannelID, &ev.ChannelSlug, &month, &day, &year, &ev.Title, &summary,
		&category, &ev.ImportanceScore, &richContext, &source, &createdRaw,
	); err != nil {
		return nil, err
	}
	ev.Month = intPointer(month)
	ev.Day = intPointer(day)
	ev.Year = intPointer(year)
	ev.Summary = summary.String
	ev.Category = category.String
	ev.RichContext = richContext.String
	ev.Source = source.String
	ev.CreatedAt = parseTimeOrZero(createdRaw)
	return &ev, nil
}

func validateEvent(ev *Event) error {
	ev.Title = textutil.NormalizeTitle(ev.Title)
	if ev.Title == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidEvent)
	}
	if ev.Month != nil && (*ev.Month < 1 || *ev.Month > 12) {
		return fmt.Errorf("%w: month %d out of range", ErrInvalidEvent, *ev.Month)
	}
	if ev.Day != nil && (*ev.Day < 1 || *ev.Day > 31) {
		return fmt.Errorf("%w: day %d out of range", ErrInvalidEvent, *ev.Day)
	}
	ev.Summary = strings.TrimSpace(ev.Summary)
	ev.Category = strings.TrimSpace(ev.Category)
	ev.Source = strings.TrimSpace(ev.Source)
	return nil
}

// identityPredicate matches the (channel, month, day, year, title) tuple with
// NULL date parts compared as IS NULL.
func identityPredicate(ev *Event) sq.And {
	return sq.And{
		sq.Eq{"channel_id": ev.ChannelID},
		sq.Eq{"month": nullableInt(ev.Month)},
		sq.Eq{"day": nullableInt(ev.Day)},
		sq.Eq{"year": nullableInt(ev.Year)},
		sq.Eq{"title": ev.Title},
	}
}

// InsertEvent stores ev under the channel named by ev.ChannelSlug (or
// ev.ChannelID when the slug is empty). A candidate matching an existing
// event's identity is not inserted; the existing row is returned with
// OutcomeDuplicate.
func (s *Store) InsertEvent(ctx context.Context, ev Event) (*Event, InsertOutcome, error) {
	ctx = ensureContext(ctx)
	if err := validateEvent(&ev); err != nil {
		return nil, 0, err
	}
	if slug := strings.TrimSpace(ev.ChannelSlug); slug != "" {
		ch, err := s.ChannelBySlug(ctx, slug)
		if err != nil {
			return nil, 0, err
		}
		ev.ChannelID = ch.ID
	} else if _, err := s.ChannelByID(ctx, ev.ChannelID); err != nil {
		return nil, 0, err
	}

	var (
		id      int64
		outcome InsertOutcome
	)
	err := s.withTx(ctx, func(tx txExecer) error {
		existsQuery, existsArgs, err := sq.Select("id").From("events").Where(identityPredicate(&ev)).Limit(1).ToSql()
		if err != nil {
			return fmt.Errorf("build duplicate check: %w", err)
		}
		switch err := tx.QueryRowContext(ctx, existsQuery, existsArgs...).Scan(&id); {
		case err == nil:
			outcome = OutcomeDuplicate
			return nil
		case !errors.Is(err, sql.ErrNoRows):
			return fmt.Errorf("duplicate check: %w", err)
		}

		res, err := tx.ExecContext(ctx,
			`INSERT INTO events (
                channel_id, month, day, year, title, summary, category,
                importance_score, rich_context, source, created_at
            ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			ev.ChannelID,
			nullableInt(ev.Month),
			nullableInt(ev.Day),
			nullableInt(ev.Year),
			ev.Title,
			nullableString(ev.Summary),
			nullableString(ev.Category),
			ev.ImportanceScore,
			nullableString(strings.TrimSpace(ev.RichContext)),
			nullableString(ev.Source),
			nowString(),
		)
		if err != nil {
			return fmt.Errorf("insert event: %w", err)
		}
		if id, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("last insert id: %w", err)
		}
		outcome = OutcomeInserted
		return nil
	})
	if err != nil {
		if isUniqueViolation(err) {
			// Lost a race with a concurrent writer between the check and the insert.
			existing, findErr := s.findEventByIdentity(ctx, &ev)
			if findErr != nil {
				return nil, 0, findErr
			}
			return existing, OutcomeDuplicate, nil
		}
		return nil, 0, err
	}

	stored, err := s.GetEvent(ctx, id)
	if err != nil {
		return nil, 0, err
	}
	return stored, outcome, nil
}

func (s *Store) findEventByIdentity(ctx context.Context, ev *Event) (*Event, error) {
	pred := sq.And{
		sq.Eq{"e.channel_id": ev.ChannelID},
		sq.Eq{"e.month": nullableInt(ev.Month)},
		sq.Eq{"e.day": nullableInt(ev.Day)},
		sq.Eq{"e.year": nullableInt(ev.Year)},
		sq.Eq{"e.title": ev.Title},
	}
	query, args, err := eventSelect().Where(pred).Limit(1).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build event query: %w", err)
	}
	found, err := scanEvent(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("event %q: %w", ev.Title, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find event: %w", err)
	}
	return found, nil
}

// GetEvent fetches an event by identifier.
func (s *Store) GetEvent(ctx context.Context, id int64) (*Event, error) {
	query, args, err := eventSelect().Where(sq.Eq{"e.id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build event query: %w", err)
	}
	ev, err := scanEvent(s.db.QueryRowContext(ensureContext(ctx), query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("event %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get event: %w", err)
	}
	return ev, nil
}

// ListEvents returns events ordered by importance (highest first) then id.
func (s *Store) ListEvents(ctx context.Context, filter EventFilter) ([]Event, error) {
	builder := eventSelect().OrderBy("e.importance_score DESC", "e.id")
	if slug := strings.TrimSpace(filter.ChannelSlug); slug != "" {
		builder = builder.Where(sq.Eq{"c.slug": slug})
	}
	if filter.WithoutJob {
		builder = builder.Where("NOT EXISTS (SELECT 1 FROM jobs j WHERE j.event_id = e.id)")
	}
	if filter.Limit > 0 {
		builder = builder.Limit(uint64(filter.Limit))
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build event query: %w", err)
	}
	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, *ev)
	}
	return events, rows.Err()
}

// SetRichContext replaces the long-form context of an event. It is the only
// field that may change after creation.
func (s *Store) SetRichContext(ctx context.Context, eventID int64, richContext string) error {
	res, err := s.execWithRetry(ctx,
		`UPDATE events SET rich_context = ? WHERE id = ?`,
		nullableString(strings.TrimSpace(richContext)), eventID)
	if err != nil {
		return fmt.Errorf("set rich context: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("event %d: %w", eventID, ErrNotFound)
	}
	return nil
}
