package scriptgen

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"contentfactory/internal/channel"
	"contentfactory/internal/logging"
	"contentfactory/internal/script"
	"contentfactory/internal/services"
	"contentfactory/internal/services/llm"
	"contentfactory/internal/store"
)

// ChunkParagraphs splits text into paragraph-aligned chunks whose rune count
// stays within limit. A paragraph longer than limit forms its own chunk.
func ChunkParagraphs(text string, limit int) []string {
	var (
		chunks  []string
		current strings.Builder
	)
	for _, line := range strings.Split(text, "\n") {
		paragraph := strings.TrimSpace(line)
		if paragraph == "" {
			continue
		}
		if current.Len() > 0 && utf8.RuneCountInString(current.String())+utf8.RuneCountInString(paragraph) > limit {
			chunks = append(chunks, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteByte('\n')
		}
		current.WriteString(paragraph)
	}
	if current.Len() > 0 {
		chunks = append(chunks, current.String())
	}
	return chunks
}

// Mapper annotates long-form text with image prompts.
type Mapper struct {
	gen      Generator
	settings Settings
	logger   *slog.Logger
}

// NewMapper builds a Mapper.
func NewMapper(gen Generator, settings Settings, logger *slog.Logger) *Mapper {
	return &Mapper{gen: gen, settings: settings, logger: logging.NewComponentLogger(logger, "visual-mapper")}
}

// SetLogger swaps the logger.
func (m *Mapper) SetLogger(logger *slog.Logger) {
	m.logger = logging.NewComponentLogger(logger, "visual-mapper")
}

type mappedScene struct {
	ImagePrompt string `json:"imagePrompt"`
}

type mappedScript struct {
	Scenes []mappedScene `json:"scenes"`
}

// Map builds a script with one scene per chunk of the event's long text.
func (m *Mapper) Map(ctx context.Context, ev *store.Event, profile channel.Profile) (*Draft, error) {
	text := eventContext(ev)
	if text == "" {
		return nil, fmt.Errorf("event %d has no text to map: %w", ev.ID, services.ErrValidation)
	}
	chunks := ChunkParagraphs(text, m.settings.ChunkChars)
	m.logger.Info("long-form text chunked", logging.Int("chunks", len(chunks)), logging.Int("chunk_chars", m.settings.ChunkChars))

	user := mappingPrompt(chunks)
	var mapped mappedScript
	if _, err := m.gen.GenerateInto(ctx, llm.Prompt{
		System:      mappingSystemPrompt(profile, len(chunks)),
		User:        user,
		Temperature: m.settings.MapTemperature,
		SchemaName:  "visual_script",
		Schema:      mappingSchema(len(chunks)),
	}, &mapped); err != nil {
		return nil, fmt.Errorf("map visuals: %w", err)
	}
	if len(mapped.Scenes) != len(chunks) {
		return nil, fmt.Errorf("map visuals: got %d image prompts for %d chunks: %w",
			len(mapped.Scenes), len(chunks), services.ErrValidation)
	}

	frames := m.settings.PlaceholderFrames
	if frames <= 0 {
		frames = script.DefaultSceneFrames
	}
	s := &script.Script{Scenes: make([]script.Scene, len(chunks))}
	for i, chunk := range chunks {
		s.Scenes[i] = script.Scene{
			DurationInFrames: frames,
			Text:             chunk,
			ImagePrompt:      strings.TrimSpace(mapped.Scenes[i].ImagePrompt),
		}
	}
	encoded, err := s.Marshal()
	if err != nil {
		return nil, err
	}
	return &Draft{Prompt: user, Script: s, JSON: encoded}, nil
}

func mappingSystemPrompt(profile channel.Profile, chunks int) string {
	return fmt.Sprintf(`You are the art director of a long-form documentary for the channel %q.
The narration has been divided into %d scenes. For each scene you receive the narrator's text.
Return exactly one highly evocative, cinematic English image prompt per scene, in the same order.`,
		profile.DisplayName, chunks)
}

func mappingPrompt(chunks []string) string {
	var b strings.Builder
	b.WriteString("Here are the text chunks to map:\n")
	for i, chunk := range chunks {
		fmt.Fprintf(&b, "--- CHUNK %d ---\n%s\n\n", i+1, chunk)
	}
	return b.String()
}

func mappingSchema(chunks int) map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"scenes": map[string]any{
				"type":     "array",
				"minItems": chunks,
				"maxItems": chunks,
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"imagePrompt": map[string]any{"type": "string"},
					},
					"required":             []string{"imagePrompt"},
					"additionalProperties": false,
				},
			},
		},
		"required":             []string{"scenes"},
		"additionalProperties": false,
	}
}
