package stage

import (
	"errors"
	"testing"

	"contentfactory/internal/services"
	"contentfactory/internal/store"
)

func TestRequireStatus(t *testing.T) {
	job := &store.Job{ID: 4, Status: store.StatusAudioGen}
	if err := RequireStatus("render", job, store.StatusAudioGen, store.StatusRenderComplete); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	job.Status = store.StatusPending
	err := RequireStatus("render", job, store.StatusAudioGen, store.StatusRenderComplete)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestParseScript(t *testing.T) {
	job := &store.Job{ScriptJSON: `{"audioUrl":"","scenes":[{"durationInFrames":150,"text":"a","imagePrompt":"b"}]}`}
	s, err := ParseScript("assets", job)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(s.Scenes) != 1 {
		t.Fatalf("expected one scene, got %d", len(s.Scenes))
	}
}

func TestParseScriptMissing(t *testing.T) {
	for _, raw := range []string{"", "{invalid json", `{"scenes":[]}`} {
		if _, err := ParseScript("assets", &store.Job{ScriptJSON: raw}); !errors.Is(err, services.ErrValidation) {
			t.Fatalf("%q: expected validation error, got %v", raw, err)
		}
	}
}
