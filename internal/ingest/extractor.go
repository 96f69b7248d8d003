package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"contentfactory/internal/config"
	"contentfactory/internal/logging"
	"contentfactory/internal/services"
	"contentfactory/internal/services/llm"
	"contentfactory/internal/store"
)

// Generator is the slice of the Generation Service extraction needs.
type Generator interface {
	GenerateInto(ctx context.Context, prompt llm.Prompt, target any) (string, error)
}

// Report summarises one import.
type Report struct {
	Source       string
	Chunks       int
	FailedChunks int
	Extracted    int
	Inserted     int
	Duplicates   int
	Rejected     int
}

// Extractor turns documents into stored events.
type Extractor struct {
	gen         Generator
	store       *store.Store
	chunkChars  int
	temperature float64
	logger      *slog.Logger
}

// NewExtractor builds an Extractor using the ingest config section.
func NewExtractor(gen Generator, st *store.Store, cfg config.Ingest, logger *slog.Logger) *Extractor {
	chunkChars := cfg.ChunkChars
	if chunkChars <= 0 {
		chunkChars = 100000
	}
	return &Extractor{
		gen:         gen,
		store:       st,
		chunkChars:  chunkChars,
		temperature: cfg.Temperature,
		logger:      logging.NewComponentLogger(logger, "ingest"),
	}
}

// ImportFile reads path, flattening HTML when needed, and imports it for the
// channel. An empty source defaults to "file/<basename>".
func (e *Extractor) ImportFile(ctx context.Context, path, channelSlug, source string) (Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Report{}, fmt.Errorf("read %s: %w", path, err)
	}
	if strings.TrimSpace(source) == "" {
		source = "file/" + filepath.Base(path)
	}
	text := string(data)
	head := data
	if len(head) > 512 {
		head = head[:512]
	}
	if isHTML(path, head) {
		if text, err = HTMLToText(strings.NewReader(text)); err != nil {
			return Report{}, services.Wrap(services.ErrValidation, "ingest", "parse html", path, err)
		}
	}
	return e.ImportText(ctx, text, channelSlug, source)
}

// ImportText extracts and stores events from plain text. Chunk-level
// generation failures are logged and counted; the import only fails when no
// chunk succeeds.
func (e *Extractor) ImportText(ctx context.Context, text, channelSlug, source string) (Report, error) {
	report := Report{Source: source}
	ch, err := e.store.ChannelBySlug(ctx, channelSlug)
	if err != nil {
		return report, fmt.Errorf("channel %q: %w", channelSlug, err)
	}
	chunks := ChunkLines(strings.TrimSpace(text), e.chunkChars)
	if len(chunks) == 0 {
		return report, fmt.Errorf("no text to import from %s: %w", source, services.ErrValidation)
	}
	report.Chunks = len(chunks)

	var lastErr error
	for i, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		events, err := e.extract(ctx, ch, chunk)
		if err != nil {
			report.FailedChunks++
			lastErr = err
			logging.WarnWithContext(e.logger, "event extraction failed for chunk", "ingest_chunk_failed",
				logging.Int("chunk", i+1),
				logging.Int("chunks", len(chunks)),
				logging.Error(err),
				logging.String(logging.FieldImpact, "events in this chunk were skipped"),
			)
			continue
		}
		report.Extracted += len(events)
		for _, candidate := range events {
			e.insert(ctx, ch, source, candidate, &report)
		}
		e.logger.Info("chunk imported",
			logging.Int("chunk", i+1),
			logging.Int("chunks", len(chunks)),
			logging.Int("events", len(events)),
		)
	}

	if report.FailedChunks == report.Chunks {
		return report, fmt.Errorf("every chunk failed: %w", lastErr)
	}
	e.logger.Info("import complete",
		logging.String(logging.FieldEventType, "ingest_complete"),
		logging.String("source", source),
		logging.Int("inserted", report.Inserted),
		logging.Int("duplicates", report.Duplicates),
		logging.Int("rejected", report.Rejected),
	)
	return report, nil
}

func (e *Extractor) insert(ctx context.Context, ch *store.Channel, source string, candidate extractedEvent, report *Report) {
	_, outcome, err := e.store.InsertEvent(ctx, candidate.toEvent(ch.Slug, source))
	switch {
	case errors.Is(err, store.ErrInvalidEvent):
		report.Rejected++
		e.logger.Debug("event rejected", logging.String("title", candidate.Title), logging.Error(err))
	case err != nil:
		report.Rejected++
		logging.WarnWithContext(e.logger, "event insert failed", "ingest_insert_failed",
			logging.String("title", candidate.Title),
			logging.Error(err),
		)
	case outcome == store.OutcomeDuplicate:
		report.Duplicates++
	default:
		report.Inserted++
	}
}

func (e *Extractor) extract(ctx context.Context, ch *store.Channel, chunk string) ([]extractedEvent, error) {
	var list eventList
	if _, err := e.gen.GenerateInto(ctx, llm.Prompt{
		System:      extractionSystemPrompt(ch),
		User:        "Text:\n" + chunk,
		Temperature: e.temperature,
		SchemaName:  "event_list",
		Schema:      eventListSchema(),
	}, &list); err != nil {
		return nil, err
	}
	return list.Events, nil
}
