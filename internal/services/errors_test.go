package services_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"contentfactory/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrExternalTool, "assets", "tts", "failed", base)
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"assets", "tts", "failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapNilMarkerDefaultsToTransient(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "service failure") {
		t.Fatalf("expected fallback detail, got %q", err.Error())
	}
}

func TestDetailsClassifiesMarkers(t *testing.T) {
	cases := map[error]string{
		services.Wrap(services.ErrValidation, "script", "parse", "bad", nil): "validation",
		services.Wrap(services.ErrNotFound, "render", "load", "missing", nil): "not_found",
		errors.New("plain"): "unexpected",
	}
	for err, want := range cases {
		details := services.Details(err)
		if details.Kind != want {
			t.Fatalf("Details(%v).Kind = %q, want %q", err, details.Kind, want)
		}
		if details.Message != err.Error() {
			t.Fatalf("unexpected message %q", details.Message)
		}
	}
	if got := services.Details(nil); got.Message != "" || got.Kind != "" {
		t.Fatalf("expected empty details for nil, got %+v", got)
	}
}

func TestRetryStopsAfterAttempts(t *testing.T) {
	calls := 0
	policy := services.RetryPolicy{Attempts: 3, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond}
	err := services.Retry(context.Background(), policy, func(context.Context) error {
		calls++
		return errors.New("flaky")
	})
	if err == nil {
		t.Fatal("expected error after exhausting attempts")
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestRetryPermanentErrorStopsImmediately(t *testing.T) {
	calls := 0
	base := errors.New("fatal")
	policy := services.RetryPolicy{Attempts: 5, InitialDelay: time.Millisecond}
	err := services.Retry(context.Background(), policy, func(context.Context) error {
		calls++
		return services.Permanent(base)
	})
	if !errors.Is(err, base) {
		t.Fatalf("expected permanent error to surface, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected single call, got %d", calls)
	}
}

func TestRetrySucceedsAfterTransientFailure(t *testing.T) {
	calls := 0
	policy := services.RetryPolicy{Attempts: 4, InitialDelay: time.Millisecond}
	err := services.Retry(context.Background(), policy, func(context.Context) error {
		calls++
		if calls < 2 {
			return errors.New("flaky")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Retry returned error: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 calls, got %d", calls)
	}
}
