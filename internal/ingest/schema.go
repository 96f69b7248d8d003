package ingest

import (
	"fmt"
	"strings"

	"contentfactory/internal/store"
)

type extractedEvent struct {
	Month           *int   `json:"month"`
	Day             *int   `json:"day"`
	Year            *int   `json:"year"`
	Title           string `json:"title"`
	Summary         string `json:"summary"`
	Category        string `json:"category"`
	ImportanceScore int    `json:"importance_score"`
}

type eventList struct {
	Events []extractedEvent `json:"events"`
}

func (x extractedEvent) toEvent(channelSlug, source string) store.Event {
	score := x.ImportanceScore
	if score < 1 {
		score = 1
	}
	if score > 10 {
		score = 10
	}
	return store.Event{
		ChannelSlug:     channelSlug,
		Month:           x.Month,
		Day:             x.Day,
		Year:            x.Year,
		Title:           strings.TrimSpace(x.Title),
		Summary:         strings.TrimSpace(x.Summary),
		Category:        strings.TrimSpace(x.Category),
		ImportanceScore: score,
		Source:          source,
	}
}

func extractionSystemPrompt(ch *store.Channel) string {
	name := ch.DisplayName
	if strings.TrimSpace(name) == "" {
		name = ch.Slug
	}
	return fmt.Sprintf(`You are an archivist collecting material for the video channel %q.
Extract factual, self-contained events from the text you are given.
Ignore navigation noise, references and items unrelated to the channel's theme.
For each event give the month, day and year when the text states them (use null when unknown),
a catchy title suitable for a short video, a detailed factual summary, a short category,
and an importance_score from 1 to 10 for how compelling it would be as a video.
Return JSON only.`, name)
}

func eventListSchema() map[string]any {
	nullableInt := func(description string) map[string]any {
		return map[string]any{"type": []string{"integer", "null"}, "description": description}
	}
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"events": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"month":            nullableInt("Month 1-12"),
						"day":              nullableInt("Day 1-31"),
						"year":             nullableInt("Year, e.g. 1995"),
						"title":            map[string]any{"type": "string"},
						"summary":          map[string]any{"type": "string"},
						"category":         map[string]any{"type": "string"},
						"importance_score": map[string]any{"type": "integer", "minimum": 1, "maximum": 10},
					},
					"required":             []string{"month", "day", "year", "title", "summary", "category", "importance_score"},
					"additionalProperties": false,
				},
			},
		},
		"required":             []string{"events"},
		"additionalProperties": false,
	}
}
