package scriptgen

import (
	"context"

	"contentfactory/internal/config"
	"contentfactory/internal/services/llm"
)

// Generator is the slice of the Generation Service this package needs.
type Generator interface {
	Generate(ctx context.Context, prompt llm.Prompt) (string, error)
	GenerateInto(ctx context.Context, prompt llm.Prompt, target any) (string, error)
}

// Settings are the loop bounds and sampling temperatures of script generation.
type Settings struct {
	MaxRevisions        int
	QualityThreshold    int
	GenerateTemperature float64
	ReviewTemperature   float64
	ReviseTemperature   float64
	MapTemperature      float64
	ChunkChars          int
	PlaceholderFrames   int
}

// SettingsFromConfig reads Settings from the script section.
func SettingsFromConfig(cfg *config.Config) Settings {
	return Settings{
		MaxRevisions:        cfg.Script.MaxRevisions,
		QualityThreshold:    cfg.Script.QualityThreshold,
		GenerateTemperature: cfg.Script.GenerateTemperature,
		ReviewTemperature:   cfg.Script.ReviewTemperature,
		ReviseTemperature:   cfg.Script.ReviseTemperature,
		MapTemperature:      cfg.Script.MapTemperature,
		ChunkChars:          cfg.Script.ChunkChars,
		PlaceholderFrames:   cfg.Script.PlaceholderFrames,
	}
}
