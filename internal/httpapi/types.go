package httpapi

import (
	"encoding/json"
	"time"

	"contentfactory/internal/pipeline"
	"contentfactory/internal/stage"
	"contentfactory/internal/store"
)

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Channel describes a content vertical in a transport-friendly format.
type Channel struct {
	ID          int64  `json:"id"`
	Slug        string `json:"slug"`
	DisplayName string `json:"displayName"`
	Description string `json:"description,omitempty"`
	TTSVoice    string `json:"ttsVoice,omitempty"`
	FilterStyle string `json:"filterStyle,omitempty"`
	SceneCount  int    `json:"sceneCount"`
}

// Event describes a stored event.
type Event struct {
	ID              int64  `json:"id"`
	Channel         string `json:"channel"`
	Date            string `json:"date,omitempty"`
	Title           string `json:"title"`
	Summary         string `json:"summary"`
	Category        string `json:"category,omitempty"`
	ImportanceScore int    `json:"importanceScore"`
	HasRichContext  bool   `json:"hasRichContext"`
	Source          string `json:"source,omitempty"`
	CreatedAt       string `json:"createdAt,omitempty"`
}

// Job describes a pipeline job. Script is the stored script document, passed
// through verbatim when it is valid JSON.
type Job struct {
	ID        int64           `json:"id"`
	EventID   int64           `json:"eventId"`
	ChannelID int64           `json:"channelId"`
	Status    string          `json:"status"`
	Script    json.RawMessage `json:"script,omitempty"`
	AudioPath string          `json:"audioPath,omitempty"`
	VideoPath string          `json:"videoPath,omitempty"`
	ErrorLog  string          `json:"errorLog,omitempty"`
	CreatedAt string          `json:"createdAt,omitempty"`
	UpdatedAt string          `json:"updatedAt,omitempty"`
}

// StageHealth mirrors readiness reporting for pipeline stages.
type StageHealth struct {
	Name   string `json:"name"`
	Ready  bool   `json:"ready"`
	Detail string `json:"detail,omitempty"`
}

// WorkerStatus summarizes the background worker.
type WorkerStatus struct {
	Enabled   bool    `json:"enabled"`
	Running   bool    `json:"running"`
	InFlight  []int64 `json:"inFlight"`
	Completed int     `json:"completed"`
	Failed    int     `json:"failed"`
	LastError string  `json:"lastError,omitempty"`
}

// Health aggregates readiness for the health endpoint.
type Health struct {
	Status string         `json:"status"`
	Stages []StageHealth  `json:"stages"`
	Jobs   map[string]int `json:"jobs"`
	Worker WorkerStatus   `json:"worker"`
}

// CreateJobRequest is the body of POST /jobs.
type CreateJobRequest struct {
	EventID int64 `json:"event_id"`
}

// Accepted acknowledges a background run.
type Accepted struct {
	JobID int64  `json:"jobId"`
	Stage string `json:"stage"`
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}

func fromChannel(ch store.Channel) Channel {
	return Channel{
		ID:          ch.ID,
		Slug:        ch.Slug,
		DisplayName: ch.DisplayName,
		Description: ch.Description,
		TTSVoice:    ch.TTSVoice,
		FilterStyle: ch.FilterStyle,
		SceneCount:  ch.SceneCount,
	}
}

func fromEvent(ev store.Event) Event {
	return Event{
		ID:              ev.ID,
		Channel:         ev.ChannelSlug,
		Date:            ev.DateLabel(),
		Title:           ev.Title,
		Summary:         ev.Summary,
		Category:        ev.Category,
		ImportanceScore: ev.ImportanceScore,
		HasRichContext:  ev.RichContext != "",
		Source:          ev.Source,
		CreatedAt:       formatTime(ev.CreatedAt),
	}
}

func fromJob(job store.Job) Job {
	out := Job{
		ID:        job.ID,
		EventID:   job.EventID,
		ChannelID: job.ChannelID,
		Status:    string(job.Status),
		AudioPath: job.AudioPath,
		VideoPath: job.VideoPath,
		ErrorLog:  job.ErrorLog,
		CreatedAt: formatTime(job.CreatedAt),
		UpdatedAt: formatTime(job.UpdatedAt),
	}
	if job.ScriptJSON != "" && json.Valid([]byte(job.ScriptJSON)) {
		out.Script = json.RawMessage(job.ScriptJSON)
	}
	return out
}

func fromStageHealth(items []stage.Health) []StageHealth {
	out := make([]StageHealth, 0, len(items))
	for _, h := range items {
		out = append(out, StageHealth{Name: h.Name, Ready: h.Ready, Detail: h.Detail})
	}
	return out
}

func fromWorkerStatus(status pipeline.WorkerStatus) WorkerStatus {
	inFlight := status.InFlight
	if inFlight == nil {
		inFlight = []int64{}
	}
	return WorkerStatus{
		Enabled:   true,
		Running:   status.Running,
		InFlight:  inFlight,
		Completed: status.Completed,
		Failed:    status.Failed,
		LastError: status.LastError,
	}
}
