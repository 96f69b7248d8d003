package review

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"contentfactory/internal/services/llm"
)

type stubGenerator struct {
	payload string
	err     error
	prompts []llm.Prompt
}

func (s *stubGenerator) GenerateInto(_ context.Context, prompt llm.Prompt, target any) (string, error) {
	s.prompts = append(s.prompts, prompt)
	if s.err != nil {
		return "", s.err
	}
	return s.payload, json.Unmarshal([]byte(s.payload), target)
}

func TestReviewClampsScores(t *testing.T) {
	gen := &stubGenerator{payload: `{"overall_score":14,"hook_score":0,"arc_score":-3,"visual_score":5,"pacing_score":10,"ending_score":11,"approved":true,"improvement_suggestions":"  tighten  "}`}
	reviewer := NewReviewer(gen, 0.3)

	result, err := reviewer.Review(context.Background(), "review prompt", "Moon landing", `{"scenes":[]}`)
	if err != nil {
		t.Fatalf("Review returned error: %v", err)
	}
	if result.OverallScore != 10 || result.HookScore != 1 || result.ArcScore != 1 || result.EndingScore != 10 {
		t.Fatalf("expected clamped scores, got %+v", result)
	}
	if result.VisualScore != 5 || result.PacingScore != 10 {
		t.Fatalf("expected in-range scores untouched, got %+v", result)
	}
	if result.Suggestions != "tighten" {
		t.Fatalf("expected trimmed suggestions, got %q", result.Suggestions)
	}

	prompt := gen.prompts[0]
	if prompt.Temperature != 0.3 || prompt.System != "review prompt" {
		t.Fatalf("unexpected prompt %+v", prompt)
	}
	if !strings.HasPrefix(prompt.User, "Event: Moon landing\n\nScript to review:\n") {
		t.Fatalf("unexpected review input %q", prompt.User)
	}
}

func TestReviewPropagatesErrors(t *testing.T) {
	boom := errors.New("boom")
	reviewer := NewReviewer(&stubGenerator{err: boom}, 0.3)
	if _, err := reviewer.Review(context.Background(), "p", "t", "{}"); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}

func TestPasses(t *testing.T) {
	if !(Result{OverallScore: 7}).Passes(7) {
		t.Fatal("expected 7 to pass threshold 7")
	}
	if (Result{OverallScore: 6, Approved: true}).Passes(7) {
		t.Fatal("expected score, not the approved flag, to decide")
	}
}
