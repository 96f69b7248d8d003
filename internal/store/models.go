package store

import (
	"strconv"
	"time"
)

// Status is the persisted state-machine tag of a job. Values are case-sensitive.
type Status string

const (
	StatusPending        Status = "PENDING"
	StatusScriptGen      Status = "SCRIPT_GEN"
	StatusScriptMapped   Status = "SCRIPT_MAPPED"
	StatusAudioGen       Status = "AUDIO_GEN"
	StatusRenderComplete Status = "RENDER_COMPLETE"
	StatusError          Status = "ERROR"
)

var allStatuses = []Status{
	StatusPending,
	StatusScriptGen,
	StatusScriptMapped,
	StatusAudioGen,
	StatusRenderComplete,
	StatusError,
}

// AllStatuses returns every status in pipeline order.
func AllStatuses() []Status {
	return append([]Status(nil), allStatuses...)
}

// ParseStatus validates a raw status string.
func ParseStatus(raw string) (Status, bool) {
	for _, status := range allStatuses {
		if string(status) == raw {
			return status, true
		}
	}
	return "", false
}

// HasScript reports whether a job in this status carries a script ready for assets.
func (s Status) HasScript() bool {
	return s == StatusScriptGen || s == StatusScriptMapped
}

// Renderable reports whether the render stage may start from this status.
func (s Status) Renderable() bool {
	return s == StatusAudioGen || s == StatusRenderComplete
}

// Channel is a content vertical's configuration bundle.
type Channel struct {
	ID           int64
	Slug         string
	DisplayName  string
	Description  string
	SystemPrompt string
	ReviewPrompt string
	TTSVoice     string
	FilterStyle  string
	ColorAccent  string
	AudioBGM     string
	SceneCount   int
	CreatedAt    time.Time
}

// Event is one historical or narrative unit that may become a video.
type Event struct {
	ID              int64
	ChannelID       int64
	ChannelSlug     string
	Month           *int
	Day             *int
	Year            *int
	Title           string
	Summary         string
	Category        string
	ImportanceScore int
	RichContext     string
	Source          string
	CreatedAt       time.Time
}

// DateLabel renders the known date parts as Y-M-D, Y, or "".
func (e Event) DateLabel() string {
	switch {
	case e.Year != nil && e.Month != nil && e.Day != nil:
		return strconv.Itoa(*e.Year) + "-" + pad2(*e.Month) + "-" + pad2(*e.Day)
	case e.Year != nil:
		return strconv.Itoa(*e.Year)
	case e.Month != nil && e.Day != nil:
		return pad2(*e.Month) + "-" + pad2(*e.Day)
	default:
		return ""
	}
}

func pad2(v int) string {
	if v >= 0 && v < 10 {
		return "0" + strconv.Itoa(v)
	}
	return strconv.Itoa(v)
}

// Job is one event's pass through the pipeline.
type Job struct {
	ID           int64
	EventID      int64
	ChannelID    int64
	Status       Status
	ScriptPrompt string
	ScriptJSON   string
	AudioPath    string
	VideoPath    string
	ErrorLog     string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// InsertOutcome reports what InsertEvent did with a candidate event.
type InsertOutcome int

const (
	OutcomeInserted InsertOutcome = iota + 1
	OutcomeDuplicate
)

func (o InsertOutcome) String() string {
	switch o {
	case OutcomeInserted:
		return "inserted"
	case OutcomeDuplicate:
		return "duplicate"
	default:
		return "unknown"
	}
}

// EventFilter narrows ListEvents.
type EventFilter struct {
	ChannelSlug string
	// WithoutJob limits results to events that have not been queued yet.
	WithoutJob bool
	Limit      int
}

// JobFilter narrows ListJobs.
type JobFilter struct {
	Statuses []Status
	Limit    int
}
