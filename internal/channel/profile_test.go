package channel

import (
	"context"
	"strings"
	"testing"

	"contentfactory/internal/store"
	"contentfactory/internal/testsupport"
)

func TestResolveAppliesDefaults(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	profile := Resolve(&store.Channel{ID: 3, Slug: "plain"}, cfg)

	if profile.DisplayName != "plain" {
		t.Fatalf("expected slug as display name, got %q", profile.DisplayName)
	}
	if profile.SceneCount != cfg.Script.SceneCount {
		t.Fatalf("expected default scene count %d, got %d", cfg.Script.SceneCount, profile.SceneCount)
	}
	if !strings.Contains(profile.SystemPrompt, "exactly 8 scenes") {
		t.Fatalf("expected default system prompt with scene count, got %q", profile.SystemPrompt)
	}
	if profile.ReviewPrompt != DefaultReviewPrompt {
		t.Fatal("expected default review prompt")
	}
	if profile.Voice != cfg.TTS.DefaultVoice {
		t.Fatalf("expected default voice, got %q", profile.Voice)
	}
	if profile.FilterStyle != DefaultFilterStyle {
		t.Fatalf("expected default filter style, got %q", profile.FilterStyle)
	}
	if profile.LongForm {
		t.Fatal("expected short-form profile")
	}
}

func TestResolveKeepsChannelValues(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	profile := Resolve(&store.Channel{
		Slug:         "stock_replay",
		SystemPrompt: "custom",
		ReviewPrompt: "review",
		TTSVoice:     "voice",
		FilterStyle:  "none",
		SceneCount:   5,
	}, cfg)

	if profile.SystemPrompt != "custom" || profile.ReviewPrompt != "review" || profile.Voice != "voice" || profile.FilterStyle != "none" {
		t.Fatalf("unexpected profile: %#v", profile)
	}
	if profile.SceneCount != 5 {
		t.Fatalf("expected scene count 5, got %d", profile.SceneCount)
	}
	if !profile.LongForm {
		t.Fatal("expected stock_replay to be long-form")
	}
}

func TestSeedsParse(t *testing.T) {
	seeds, err := Seeds()
	if err != nil {
		t.Fatalf("Seeds returned error: %v", err)
	}
	if len(seeds) != 6 {
		t.Fatalf("expected 6 seed channels, got %d", len(seeds))
	}
	for _, ch := range seeds {
		if ch.SystemPrompt == "" || ch.TTSVoice == "" || ch.FilterStyle == "" {
			t.Fatalf("seed %q missing fields: %#v", ch.Slug, ch)
		}
	}
}

func TestParseSeedsRejectsDuplicates(t *testing.T) {
	doc := []byte("channels:\n  - slug: a\n  - slug: a\n")
	if _, err := parseSeeds(doc); err == nil {
		t.Fatal("expected duplicate slug error")
	}
}

func TestEnsureSeededOnlyWhenEmpty(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	inserted, err := EnsureSeeded(ctx, st)
	if err != nil {
		t.Fatalf("EnsureSeeded failed: %v", err)
	}
	if inserted != 6 {
		t.Fatalf("expected 6 inserted, got %d", inserted)
	}
	inserted, err = EnsureSeeded(ctx, st)
	if err != nil {
		t.Fatalf("second EnsureSeeded failed: %v", err)
	}
	if inserted != 0 {
		t.Fatalf("expected no inserts on populated table, got %d", inserted)
	}
}
