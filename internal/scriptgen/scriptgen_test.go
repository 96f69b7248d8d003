package scriptgen

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"contentfactory/internal/channel"
	"contentfactory/internal/logging"
	"contentfactory/internal/services"
	"contentfactory/internal/services/llm"
	"contentfactory/internal/store"
)

// fakeGenerator answers review prompts from scores and every other prompt
// from scripts, in call order.
type fakeGenerator struct {
	scripts []string
	scores  []int
	calls   []llm.Prompt
}

func (f *fakeGenerator) Generate(ctx context.Context, prompt llm.Prompt) (string, error) {
	f.calls = append(f.calls, prompt)
	if prompt.SchemaName == "review_result" {
		if len(f.scores) == 0 {
			return "", errors.New("unexpected review call")
		}
		score := f.scores[0]
		f.scores = f.scores[1:]
		return fmt.Sprintf(`{"overall_score":%d,"hook_score":%d,"arc_score":5,"visual_score":5,"pacing_score":5,"ending_score":5,"approved":%t,"improvement_suggestions":"more drama"}`,
			score, score, score >= 7), nil
	}
	if len(f.scripts) == 0 {
		return "", errors.New("unexpected generation call")
	}
	out := f.scripts[0]
	f.scripts = f.scripts[1:]
	return out, nil
}

func (f *fakeGenerator) GenerateInto(ctx context.Context, prompt llm.Prompt, target any) (string, error) {
	raw, err := f.Generate(ctx, prompt)
	if err != nil {
		return "", err
	}
	return raw, llm.DecodeLLMJSON(raw, target)
}

func (f *fakeGenerator) countBySchema(name string) int {
	n := 0
	for _, call := range f.calls {
		if call.SchemaName == name {
			n++
		}
	}
	return n
}

func scriptWithLabel(label string, scenes int) string {
	var parts []string
	for i := 0; i < scenes; i++ {
		parts = append(parts, fmt.Sprintf(`{"durationInFrames":150,"text":"%s %d","imagePrompt":"prompt %d"}`, label, i, i))
	}
	return `{"audioUrl":"","scenes":[` + strings.Join(parts, ",") + `]}`
}

func testSettings() Settings {
	return Settings{
		MaxRevisions:        2,
		QualityThreshold:    7,
		GenerateTemperature: 0.7,
		ReviewTemperature:   0.3,
		ReviseTemperature:   0.8,
		MapTemperature:      0.4,
		ChunkChars:          400,
		PlaceholderFrames:   150,
	}
}

func testProfile() channel.Profile {
	return channel.Profile{
		Slug:         "history",
		DisplayName:  "History",
		SystemPrompt: "write",
		ReviewPrompt: "review",
		SceneCount:   3,
	}
}

func testEvent() *store.Event {
	year, month, day := 1969, 7, 20
	return &store.Event{ID: 1, Title: "Apollo 11", Summary: "Landing", Year: &year, Month: &month, Day: &day}
}

func TestWriteAcceptsFirstPassingReview(t *testing.T) {
	gen := &fakeGenerator{scripts: []string{scriptWithLabel("draft", 3)}, scores: []int{8}}
	writer := NewWriter(gen, testSettings(), logging.NewNop())

	draft, err := writer.Write(context.Background(), testEvent(), testProfile())
	if err != nil {
		t.Fatalf("Write returned error: %v", err)
	}
	if !draft.Approved || len(draft.Reviews) != 1 {
		t.Fatalf("expected single approving review, got %+v", draft.Reviews)
	}
	if len(gen.calls) != 2 {
		t.Fatalf("expected draft + review calls, got %d", len(gen.calls))
	}
	if gen.calls[0].Temperature != 0.7 || gen.calls[1].Temperature != 0.3 {
		t.Fatalf("unexpected temperatures: %v %v", gen.calls[0].Temperature, gen.calls[1].Temperature)
	}
	if draft.Script.Scenes[0].Text != "draft 0" {
		t.Fatalf("expected draft script, got %+v", draft.Script.Scenes[0])
	}
}

func TestWriteStopsAfterRevisionBudget(t *testing.T) {
	gen := &fakeGenerator{
		scripts: []string{scriptWithLabel("draft", 3), scriptWithLabel("rev1", 3), scriptWithLabel("rev2", 3)},
		scores:  []int{3, 4, 5},
	}
	writer := NewWriter(gen, testSettings(), logging.NewNop())

	draft, err := writer.Write(context.Background(), testEvent(), testProfile())
	if err != nil {
		t.Fatalf("Write returned error: %v", err)
	}
	if draft.Approved {
		t.Fatal("expected best-effort script to be unapproved")
	}
	if got := gen.countBySchema("review_result"); got != 3 {
		t.Fatalf("expected 3 reviews, got %d", got)
	}
	if got := gen.countBySchema("video_script"); got != 3 {
		t.Fatalf("expected draft + 2 revisions, got %d", got)
	}
	if draft.Script.Scenes[0].Text != "rev2 0" {
		t.Fatalf("expected latest revision to be kept, got %+v", draft.Script.Scenes[0])
	}
	for _, call := range gen.calls[2:] {
		if call.SchemaName == "video_script" && call.Temperature != 0.8 {
			t.Fatalf("expected revision temperature 0.8, got %v", call.Temperature)
		}
	}
}

func TestWriteRevisionCarriesFeedbackAndPrompt(t *testing.T) {
	gen := &fakeGenerator{
		scripts: []string{scriptWithLabel("draft", 3), scriptWithLabel("rev1", 3)},
		scores:  []int{5, 9},
	}
	writer := NewWriter(gen, testSettings(), logging.NewNop())

	draft, err := writer.Write(context.Background(), testEvent(), testProfile())
	if err != nil {
		t.Fatalf("Write returned error: %v", err)
	}
	if !draft.Approved || len(draft.Reviews) != 2 {
		t.Fatalf("expected approval on second review, got %+v", draft.Reviews)
	}
	revision := gen.calls[2]
	if !strings.Contains(revision.User, "more drama") || !strings.Contains(revision.User, "draft 0") || !strings.Contains(revision.User, "Event Title: Apollo 11") {
		t.Fatalf("revision prompt missing context: %s", revision.User)
	}
}

func TestWriteNeverExceedsBudgetForAnyScores(t *testing.T) {
	for first := 1; first <= 10; first++ {
		gen := &fakeGenerator{
			scripts: []string{scriptWithLabel("a", 3), scriptWithLabel("b", 3), scriptWithLabel("c", 3)},
			scores:  []int{first, 1, 1},
		}
		writer := NewWriter(gen, testSettings(), logging.NewNop())
		if _, err := writer.Write(context.Background(), testEvent(), testProfile()); err != nil {
			t.Fatalf("score %d: Write returned error: %v", first, err)
		}
		if gen.countBySchema("review_result") > 3 || gen.countBySchema("video_script") > 3 {
			t.Fatalf("score %d: budget exceeded: %d calls", first, len(gen.calls))
		}
	}
}

func TestWriteUsesSummaryWithoutRichContext(t *testing.T) {
	gen := &fakeGenerator{scripts: []string{scriptWithLabel("draft", 3)}, scores: []int{9}}
	writer := NewWriter(gen, testSettings(), logging.NewNop())

	ev := testEvent()
	ev.RichContext = ""
	if _, err := writer.Write(context.Background(), ev, testProfile()); err != nil {
		t.Fatalf("Write returned error: %v", err)
	}
	if len(gen.calls) == 0 || gen.calls[0].SchemaName == "review_result" {
		t.Fatalf("expected the first call to be the draft, got %+v", gen.calls)
	}
	if !strings.Contains(gen.calls[0].User, "Context Details:\nLanding") {
		t.Fatalf("expected summary as context in draft prompt, got %q", gen.calls[0].User)
	}
}

func TestWriteFailsOnEmptyScript(t *testing.T) {
	gen := &fakeGenerator{scripts: []string{`{"audioUrl":"","scenes":[]}`}}
	writer := NewWriter(gen, testSettings(), logging.NewNop())
	if _, err := writer.Write(context.Background(), testEvent(), testProfile()); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestBuildPromptDateVariants(t *testing.T) {
	ev := testEvent()
	ev.RichContext = "Long body"
	prompt := BuildPrompt(ev, 8)
	if !strings.Contains(prompt, "Date: 1969-07-20\n") {
		t.Fatalf("expected full date line, got %q", prompt)
	}
	if !strings.Contains(prompt, "Context Details:\nLong body") || strings.Contains(prompt, "Landing") {
		t.Fatalf("expected rich context to win over summary, got %q", prompt)
	}
	if !strings.HasSuffix(prompt, "Create the 8-scene script based on this.") {
		t.Fatalf("unexpected instruction: %q", prompt)
	}

	ev.Month, ev.Day = nil, nil
	if prompt := BuildPrompt(ev, 8); !strings.Contains(prompt, "Time period: 1969\n") {
		t.Fatalf("expected time period line, got %q", prompt)
	}
	ev.Year = nil
	if prompt := BuildPrompt(ev, 8); strings.Contains(prompt, "Date:") || strings.Contains(prompt, "Time period:") {
		t.Fatalf("expected no date line, got %q", prompt)
	}
}

func TestChunkParagraphs(t *testing.T) {
	text := "aaaa\n\nbbbb\ncccc\n" + strings.Repeat("d", 12) + "\neeee"
	chunks := ChunkParagraphs(text, 10)
	want := []string{"aaaa\nbbbb", "cccc", strings.Repeat("d", 12), "eeee"}
	if len(chunks) != len(want) {
		t.Fatalf("expected %d chunks, got %d: %q", len(want), len(chunks), chunks)
	}
	for i := range want {
		if chunks[i] != want[i] {
			t.Fatalf("chunk %d: got %q, want %q", i, chunks[i], want[i])
		}
	}
	if got := ChunkParagraphs("  \n\n ", 10); len(got) != 0 {
		t.Fatalf("expected no chunks for blank text, got %q", got)
	}
}

func TestMapperBuildsPlaceholderScenes(t *testing.T) {
	gen := &fakeGenerator{scripts: []string{`{"scenes":[{"imagePrompt":"one"},{"imagePrompt":"two"}]}`}}
	settings := testSettings()
	settings.ChunkChars = 10
	mapper := NewMapper(gen, settings, logging.NewNop())

	ev := testEvent()
	ev.RichContext = "first para\nsecond one"
	draft, err := mapper.Map(context.Background(), ev, testProfile())
	if err != nil {
		t.Fatalf("Map returned error: %v", err)
	}
	if len(draft.Script.Scenes) != 2 {
		t.Fatalf("expected 2 scenes, got %d", len(draft.Script.Scenes))
	}
	for i, scene := range draft.Script.Scenes {
		if scene.DurationInFrames != 150 {
			t.Fatalf("scene %d: expected placeholder 150, got %d", i, scene.DurationInFrames)
		}
	}
	if draft.Script.Scenes[0].Text != "first para" || draft.Script.Scenes[1].ImagePrompt != "two" {
		t.Fatalf("unexpected scenes %+v", draft.Script.Scenes)
	}
	if len(gen.calls) != 1 || gen.calls[0].Temperature != 0.4 {
		t.Fatalf("expected one mapping call at 0.4, got %+v", gen.calls)
	}
	var decoded map[string]any
	if err := json.Unmarshal([]byte(draft.JSON), &decoded); err != nil {
		t.Fatalf("draft JSON invalid: %v", err)
	}
}

func TestMapperRejectsPromptCountMismatch(t *testing.T) {
	gen := &fakeGenerator{scripts: []string{`{"scenes":[{"imagePrompt":"only"}]}`}}
	settings := testSettings()
	settings.ChunkChars = 10
	mapper := NewMapper(gen, settings, logging.NewNop())

	ev := testEvent()
	ev.RichContext = "first para\nsecond one"
	if _, err := mapper.Map(context.Background(), ev, testProfile()); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
