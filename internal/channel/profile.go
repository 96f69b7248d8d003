package channel

import (
	"fmt"
	"strings"

	"contentfactory/internal/config"
	"contentfactory/internal/store"
)

// DefaultSystemPrompt is used when a channel does not define its own writer prompt.
const DefaultSystemPrompt = "You are a short-video scriptwriter. Create an engaging 1-minute script with exactly %d scenes. Narration in Chinese. Detailed English image prompts."

// DefaultReviewPrompt is used when a channel does not define its own reviewer prompt.
const DefaultReviewPrompt = `You are a ruthless senior content director reviewing a short video script.
Score the script from 1 to 10 on each criterion:
1. Hook strength (scene 1): would a viewer stop scrolling?
2. Dramatic arc: is there rising tension and a satisfying payoff?
3. Visual richness: are the image prompts specific enough to generate compelling visuals?
4. Pacing: does each scene flow into the next without overloading the narration?
5. Ending impact: does the final scene make the viewer think or want to share?

Approve when the overall score is 7 or above. Otherwise give specific, actionable improvement suggestions.`

// DefaultFilterStyle is the CSS filter applied when a channel has none.
const DefaultFilterStyle = "sepia(0.3) contrast(1.1) brightness(0.9) grayscale(0.2)"

// Profile is the effective configuration of a channel for one job: the
// channel row merged with defaults. Stages read it and never fall back on
// their own.
type Profile struct {
	ChannelID    int64
	Slug         string
	DisplayName  string
	SystemPrompt string
	ReviewPrompt string
	Voice        string
	FilterStyle  string
	ColorAccent  string
	AudioBGM     string
	SceneCount   int
	LongForm     bool
}

// Resolve merges ch with the configured defaults.
func Resolve(ch *store.Channel, cfg *config.Config) Profile {
	sceneCount := cfg.Script.SceneCount
	if ch.SceneCount > 0 {
		sceneCount = ch.SceneCount
	}
	p := Profile{
		ChannelID:    ch.ID,
		Slug:         ch.Slug,
		DisplayName:  firstNonEmpty(ch.DisplayName, ch.Slug),
		SystemPrompt: strings.TrimSpace(ch.SystemPrompt),
		ReviewPrompt: firstNonEmpty(ch.ReviewPrompt, DefaultReviewPrompt),
		Voice:        firstNonEmpty(ch.TTSVoice, cfg.TTS.DefaultVoice),
		FilterStyle:  firstNonEmpty(ch.FilterStyle, DefaultFilterStyle),
		ColorAccent:  strings.TrimSpace(ch.ColorAccent),
		AudioBGM:     strings.TrimSpace(ch.AudioBGM),
		SceneCount:   sceneCount,
		LongForm:     cfg.IsLongForm(ch.Slug),
	}
	if p.SystemPrompt == "" {
		p.SystemPrompt = fmt.Sprintf(DefaultSystemPrompt, sceneCount)
	}
	return p
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
