// Package review scores generated scripts with the Generation Service.
package review

import (
	"context"
	"fmt"
	"strings"

	"contentfactory/internal/services/llm"
)

// Generator is the slice of the Generation Service the reviewer needs.
type Generator interface {
	GenerateInto(ctx context.Context, prompt llm.Prompt, target any) (string, error)
}

// Result is one structured critique of a script.
type Result struct {
	OverallScore int    `json:"overall_score"`
	HookScore    int    `json:"hook_score"`
	ArcScore     int    `json:"arc_score"`
	VisualScore  int    `json:"visual_score"`
	PacingScore  int    `json:"pacing_score"`
	EndingScore  int    `json:"ending_score"`
	Approved     bool   `json:"approved"`
	Suggestions  string `json:"improvement_suggestions"`
}

// Passes reports whether the overall score reaches threshold.
func (r Result) Passes(threshold int) bool {
	return r.OverallScore >= threshold
}

// Summary renders the sub-scores on one line for logs.
func (r Result) Summary() string {
	return fmt.Sprintf("hook=%d arc=%d visual=%d pacing=%d ending=%d overall=%d",
		r.HookScore, r.ArcScore, r.VisualScore, r.PacingScore, r.EndingScore, r.OverallScore)
}

func (r *Result) clamp() {
	for _, score := range []*int{&r.OverallScore, &r.HookScore, &r.ArcScore, &r.VisualScore, &r.PacingScore, &r.EndingScore} {
		*score = min(max(*score, 1), 10)
	}
	r.Suggestions = strings.TrimSpace(r.Suggestions)
}

// Reviewer asks the model to critique a script against a channel's review prompt.
type Reviewer struct {
	gen         Generator
	temperature float64
}

// NewReviewer builds a Reviewer that samples at temperature.
func NewReviewer(gen Generator, temperature float64) *Reviewer {
	return &Reviewer{gen: gen, temperature: temperature}
}

// Review scores scriptJSON for the event titled title.
func (r *Reviewer) Review(ctx context.Context, reviewPrompt, title, scriptJSON string) (Result, error) {
	var result Result
	_, err := r.gen.GenerateInto(ctx, llm.Prompt{
		System:      reviewPrompt,
		User:        fmt.Sprintf("Event: %s\n\nScript to review:\n%s", title, scriptJSON),
		Temperature: r.temperature,
		SchemaName:  "review_result",
		Schema:      Schema(),
	}, &result)
	if err != nil {
		return Result{}, fmt.Errorf("review script: %w", err)
	}
	result.clamp()
	return result, nil
}

// Schema is the JSON schema of a review result.
func Schema() map[string]any {
	score := func(desc string) map[string]any {
		return map[string]any{"type": "integer", "minimum": 1, "maximum": 10, "description": desc}
	}
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"overall_score":           score("Overall quality."),
			"hook_score":              score("Hook strength of the first scene."),
			"arc_score":               score("Dramatic arc."),
			"visual_score":            score("Visual richness of the image prompts."),
			"pacing_score":            score("Pacing between scenes."),
			"ending_score":            score("Impact of the final scene."),
			"approved":                map[string]any{"type": "boolean"},
			"improvement_suggestions": map[string]any{"type": "string", "description": "Actionable suggestions; empty when approved."},
		},
		"required": []string{
			"overall_score", "hook_score", "arc_score", "visual_score",
			"pacing_score", "ending_score", "approved", "improvement_suggestions",
		},
		"additionalProperties": false,
	}
}
