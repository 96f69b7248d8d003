package scriptgen

import (
	"fmt"
	"strings"

	"contentfactory/internal/store"
)

// BuildPrompt renders the user prompt for a first draft. Long-form context
// wins over the summary when both exist.
func BuildPrompt(ev *store.Event, sceneCount int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Event Title: %s\n", ev.Title)
	switch {
	case ev.Month != nil && ev.Day != nil:
		fmt.Fprintf(&b, "Date: %s\n", ev.DateLabel())
	case ev.Year != nil:
		fmt.Fprintf(&b, "Time period: %d\n", *ev.Year)
	}
	fmt.Fprintf(&b, "\nContext Details:\n%s\n\n", eventContext(ev))
	fmt.Fprintf(&b, "Create the %d-scene script based on this.", sceneCount)
	return b.String()
}

func eventContext(ev *store.Event) string {
	if text := strings.TrimSpace(ev.RichContext); text != "" {
		return text
	}
	return strings.TrimSpace(ev.Summary)
}

func revisionPrompt(previous, suggestions, original string, sceneCount int) string {
	return fmt.Sprintf(`The following video script was reviewed and needs improvement.

Original Script:
%s

Review Feedback:
%s

Original Event Context:
%s

Rewrite the script addressing all of the feedback. Keep the same JSON structure with exactly %d scenes.
Make the hook more attention-grabbing, the narrative more dramatic and the image prompts more visually specific.`,
		previous, suggestions, original, sceneCount)
}
