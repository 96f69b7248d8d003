package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
)

var channelColumns = []string{
	"id", "slug", "display_name", "description", "system_prompt", "review_prompt",
	"tts_voice", "filter_style", "color_accent", "audio_bgm", "scene_count", "created_at",
}

func scanChannel(scanner rowScanner) (*Channel, error) {
	var (
		ch                                        Channel
		description, systemPrompt, reviewPrompt   sql.NullString
		ttsVoice, filterStyle, colorAccent, audio sql.NullString
		sceneCount                                sql.NullInt64
		createdRaw                                string
	)
	if err := scanner.Scan(
		&ch.ID, &ch.Slug, &ch.DisplayName, &description, &systemPrompt, &reviewPrompt,
		&ttsVoice, &filterStyle, &colorAccent, &audio, &sceneCount, &createdRaw,
	); err != nil {
		return nil, err
	}
	ch.Description = description.String
	ch.SystemPrompt = systemPrompt.String
	ch.ReviewPrompt = reviewPrompt.String
	ch.TTSVoice = ttsVoice.String
	ch.FilterStyle = filterStyle.String
	ch.ColorAccent = colorAccent.String
	ch.AudioBGM = audio.String
	ch.SceneCount = int(sceneCount.Int64)
	ch.CreatedAt = parseTimeOrZero(createdRaw)
	return &ch, nil
}

// SeedChannels inserts every channel whose slug is not present yet. Existing
// rows are left untouched. Returns the number of channels inserted.
func (s *Store) SeedChannels(ctx context.Context, channels []Channel) (int, error) {
	inserted := 0
	err := s.withTx(ctx, func(tx txExecer) error {
		inserted = 0
		for _, ch := range channels {
			slug := strings.TrimSpace(ch.Slug)
			if slug == "" {
				return errors.New("seed channel: slug is required")
			}
			displayName := strings.TrimSpace(ch.DisplayName)
			if displayName == "" {
				displayName = slug
			}
			res, err := tx.ExecContext(ctx,
				`INSERT INTO channels (
                    slug, display_name, description, system_prompt, review_prompt,
                    tts_voice, filter_style, color_accent, audio_bgm, scene_count, created_at
                ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
                ON CONFLICT(slug) DO NOTHING`,
				slug,
				displayName,
				nullableString(ch.Description),
				nullableString(ch.SystemPrompt),
				nullableString(ch.ReviewPrompt),
				nullableString(ch.TTSVoice),
				nullableString(ch.FilterStyle),
				nullableString(ch.ColorAccent),
				nullableString(ch.AudioBGM),
				nullableSceneCount(ch.SceneCount),
				nowString(),
			)
			if err != nil {
				return fmt.Errorf("seed channel %q: %w", slug, err)
			}
			if n, err := res.RowsAffected(); err == nil {
				inserted += int(n)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

func nullableSceneCount(count int) any {
	if count <= 0 {
		return nil
	}
	return count
}

// ListChannels returns all channels ordered by slug.
func (s *Store) ListChannels(ctx context.Context) ([]Channel, error) {
	query, args, err := sq.Select(channelColumns...).From("channels").OrderBy("slug").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build channel query: %w", err)
	}
	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("list channels: %w", err)
	}
	defer rows.Close()

	var channels []Channel
	for rows.Next() {
		ch, err := scanChannel(rows)
		if err != nil {
			return nil, err
		}
		channels = append(channels, *ch)
	}
	return channels, rows.Err()
}

// ChannelBySlug returns the channel with the given slug or ErrNotFound.
func (s *Store) ChannelBySlug(ctx context.Context, slug string) (*Channel, error) {
	return s.channelWhere(ctx, sq.Eq{"slug": strings.TrimSpace(slug)}, "slug "+slug)
}

// ChannelByID returns the channel with the given id or ErrNotFound.
func (s *Store) ChannelByID(ctx context.Context, id int64) (*Channel, error) {
	return s.channelWhere(ctx, sq.Eq{"id": id}, fmt.Sprintf("id %d", id))
}

func (s *Store) channelWhere(ctx context.Context, pred sq.Eq, label string) (*Channel, error) {
	query, args, err := sq.Select(channelColumns...).From("channels").Where(pred).Limit(1).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build channel query: %w", err)
	}
	ch, err := scanChannel(s.db.QueryRowContext(ensureContext(ctx), query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("channel %s: %w", label, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get channel: %w", err)
	}
	return ch, nil
}
