package script

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"contentfactory/internal/services"
)

// ErrNoScenes marks a script that carries no scenes.
var ErrNoScenes = fmt.Errorf("script has no scenes: %w", services.ErrValidation)

// Scene is one visual beat of the video.
type Scene struct {
	DurationInFrames int    `json:"durationInFrames"`
	Text             string `json:"text"`
	ImagePrompt      string `json:"imagePrompt"`
	ImageURL         string `json:"imageUrl,omitempty"`
	AnimationURL     string `json:"animationUrl,omitempty"`
}

// Script is the renderer's input document.
type Script struct {
	AudioURL    string  `json:"audioUrl"`
	FilterStyle string  `json:"filterStyle,omitempty"`
	Scenes      []Scene `json:"scenes"`
}

// Parse decodes a stored script and rejects scriptless documents.
func Parse(raw string) (*Script, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrNoScenes
	}
	var s Script
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return nil, fmt.Errorf("decode script: %w: %w", services.ErrValidation, err)
	}
	if len(s.Scenes) == 0 {
		return nil, ErrNoScenes
	}
	return &s, nil
}

// Marshal encodes the script without HTML escaping so narration text stays
// readable in the database.
func (s *Script) Marshal() (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return "", fmt.Errorf("encode script: %w", err)
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}

// Narration joins every scene's text with a single space.
func (s *Script) Narration() string {
	parts := make([]string, len(s.Scenes))
	for i, scene := range s.Scenes {
		parts[i] = scene.Text
	}
	return strings.Join(parts, " ")
}

// TotalFrames sums the scene durations.
func (s *Script) TotalFrames() int {
	total := 0
	for _, scene := range s.Scenes {
		total += scene.DurationInFrames
	}
	return total
}

// Schema is the JSON schema handed to the Generation Service when asking for
// a script.
func Schema(sceneCount int) map[string]any {
	sceneSchema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"durationInFrames": map[string]any{
				"type":        "integer",
				"description": "Scene length in frames at 30 FPS, usually 120-240.",
			},
			"text": map[string]any{
				"type":        "string",
				"description": "Narration for this scene.",
			},
			"imagePrompt": map[string]any{
				"type":        "string",
				"description": "Detailed English prompt for an image generator: camera angle, lighting, subject, era style.",
			},
			"animationUrl": map[string]any{
				"type":        "string",
				"description": "Optional Lottie animation URL, empty when unused.",
			},
		},
		"required":             []string{"durationInFrames", "text", "imagePrompt"},
		"additionalProperties": false,
	}
	scenes := map[string]any{
		"type":  "array",
		"items": sceneSchema,
	}
	if sceneCount > 0 {
		scenes["minItems"] = sceneCount
		scenes["maxItems"] = sceneCount
	}
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"audioUrl": map[string]any{"type": "string", "description": "Leave empty."},
			"scenes":   scenes,
		},
		"required":             []string{"audioUrl", "scenes"},
		"additionalProperties": false,
	}
}
