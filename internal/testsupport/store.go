package testsupport

import (
	"context"
	"testing"

	"contentfactory/internal/config"
	"contentfactory/internal/store"
)

// MustOpenStore opens a store.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
	})
	return st
}

// SeedChannel inserts a channel with the given slug and returns the stored row.
func SeedChannel(t testing.TB, st *store.Store, ch store.Channel) *store.Channel {
	t.Helper()

	ctx := context.Background()
	if _, err := st.SeedChannels(ctx, []store.Channel{ch}); err != nil {
		t.Fatalf("store.SeedChannels: %v", err)
	}
	stored, err := st.ChannelBySlug(ctx, ch.Slug)
	if err != nil {
		t.Fatalf("store.ChannelBySlug: %v", err)
	}
	return stored
}

// NewEvent inserts an event and fails the test unless it was newly stored.
func NewEvent(t testing.TB, st *store.Store, ev store.Event) *store.Event {
	t.Helper()

	stored, outcome, err := st.InsertEvent(context.Background(), ev)
	if err != nil {
		t.Fatalf("store.InsertEvent: %v", err)
	}
	if outcome != store.OutcomeInserted {
		t.Fatalf("expected event to be inserted, got %s", outcome)
	}
	return stored
}

// NewJob seeds a channel (if needed), an event and a PENDING job for it.
func NewJob(t testing.TB, st *store.Store, channelSlug, title string) *store.Job {
	t.Helper()

	SeedChannel(t, st, store.Channel{Slug: channelSlug, DisplayName: channelSlug})
	year := 1969
	ev := NewEvent(t, st, store.Event{
		ChannelSlug:     channelSlug,
		Year:            &year,
		Title:           title,
		Summary:         "Summary of " + title,
		ImportanceScore: 5,
	})
	job, err := st.CreateJob(context.Background(), ev.ID)
	if err != nil {
		t.Fatalf("store.CreateJob: %v", err)
	}
	return job
}

// IntPtr returns a pointer to v.
func IntPtr(v int) *int {
	return &v
}
