package channel

import (
	"context"
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"

	"contentfactory/internal/store"
)

//go:embed seeds.yaml
var seedDocument []byte

type seedFile struct {
	Channels []seedChannel `yaml:"channels"`
}

type seedChannel struct {
	Slug         string `yaml:"slug"`
	DisplayName  string `yaml:"display_name"`
	Description  string `yaml:"description"`
	SystemPrompt string `yaml:"system_prompt"`
	ReviewPrompt string `yaml:"review_prompt"`
	TTSVoice     string `yaml:"tts_voice"`
	FilterStyle  string `yaml:"filter_style"`
	ColorAccent  string `yaml:"color_accent"`
	AudioBGM     string `yaml:"audio_bgm"`
	SceneCount   int    `yaml:"scene_count"`
}

// Seeds returns the built-in channel catalogue.
func Seeds() ([]store.Channel, error) {
	return parseSeeds(seedDocument)
}

func parseSeeds(data []byte) ([]store.Channel, error) {
	var doc seedFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse channel seeds: %w", err)
	}
	channels := make([]store.Channel, 0, len(doc.Channels))
	seen := make(map[string]struct{}, len(doc.Channels))
	for _, sc := range doc.Channels {
		if sc.Slug == "" {
			return nil, fmt.Errorf("parse channel seeds: channel without slug")
		}
		if _, dup := seen[sc.Slug]; dup {
			return nil, fmt.Errorf("parse channel seeds: duplicate slug %q", sc.Slug)
		}
		seen[sc.Slug] = struct{}{}
		channels = append(channels, store.Channel{
			Slug:         sc.Slug,
			DisplayName:  sc.DisplayName,
			Description:  sc.Description,
			SystemPrompt: sc.SystemPrompt,
			ReviewPrompt: sc.ReviewPrompt,
			TTSVoice:     sc.TTSVoice,
			FilterStyle:  sc.FilterStyle,
			ColorAccent:  sc.ColorAccent,
			AudioBGM:     sc.AudioBGM,
			SceneCount:   sc.SceneCount,
		})
	}
	return channels, nil
}

// EnsureSeeded inserts the built-in catalogue when the channel table is
// empty. It returns the number of channels inserted.
func EnsureSeeded(ctx context.Context, st *store.Store) (int, error) {
	existing, err := st.ListChannels(ctx)
	if err != nil {
		return 0, err
	}
	if len(existing) > 0 {
		return 0, nil
	}
	seeds, err := Seeds()
	if err != nil {
		return 0, err
	}
	return st.SeedChannels(ctx, seeds)
}
