package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"contentfactory/internal/config"
	"contentfactory/internal/ingest"
	"contentfactory/internal/logging"
	"contentfactory/internal/notifications"
	"contentfactory/internal/pipeline"
	"contentfactory/internal/store"
	"contentfactory/internal/textutil"
)

func newEventCommand(ctx *commandContext) *cobra.Command {
	eventCmd := &cobra.Command{
		Use:   "event",
		Short: "List, import and annotate events",
	}
	eventCmd.AddCommand(newEventListCommand(ctx))
	eventCmd.AddCommand(newEventImportCommand(ctx))
	eventCmd.AddCommand(newEventContextCommand(ctx))
	return eventCmd
}

func newEventListCommand(ctx *commandContext) *cobra.Command {
	var channelSlug string
	var limit int
	var withoutJob bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List events by importance",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(cmd, func(c context.Context, _ *config.Config, st *store.Store) error {
				events, err := st.ListEvents(c, store.EventFilter{
					ChannelSlug: channelSlug,
					WithoutJob:  withoutJob,
					Limit:       limit,
				})
				if err != nil {
					return err
				}
				if len(events) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No events found")
					return nil
				}
				rows := make([][]string, 0, len(events))
				for _, ev := range events {
					rows = append(rows, []string{
						strconv.FormatInt(ev.ID, 10),
						ev.ChannelSlug,
						ev.DateLabel(),
						strconv.Itoa(ev.ImportanceScore),
						textutil.Truncate(textutil.CollapseWhitespace(ev.Title), 60),
					})
				}
				writeTable(cmd.OutOrStdout(),
					[]string{"ID", "Channel", "Date", "Score", "Title"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignLeft},
				)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&channelSlug, "channel", "", "Only events for this channel slug")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum events to list (0 for all)")
	cmd.Flags().BoolVar(&withoutJob, "without-job", false, "Only events that have no job yet")
	return cmd
}

func newEventImportCommand(ctx *commandContext) *cobra.Command {
	var channelSlug string
	var source string

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Extract events from a text or HTML document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(channelSlug) == "" {
				return fmt.Errorf("--channel is required")
			}
			return ctx.withStore(cmd, func(c context.Context, cfg *config.Config, st *store.Store) error {
				if err := cfg.RequireLLM(); err != nil {
					return err
				}
				logger := ctx.cliLogger()
				extractor := ingest.NewExtractor(pipeline.NewLLMClient(cfg), st, cfg.Ingest, logger)
				report, err := extractor.ImportFile(c, args[0], channelSlug, source)
				if err != nil {
					return fmt.Errorf("import %s: %w", args[0], err)
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Source:     %s\n", report.Source)
				fmt.Fprintf(out, "Chunks:     %d (%d failed)\n", report.Chunks, report.FailedChunks)
				fmt.Fprintf(out, "Extracted:  %d\n", report.Extracted)
				fmt.Fprintf(out, "Inserted:   %d\n", report.Inserted)
				fmt.Fprintf(out, "Duplicates: %d\n", report.Duplicates)
				fmt.Fprintf(out, "Rejected:   %d\n", report.Rejected)

				notifier := notifications.NewService(cfg)
				if err := notifier.Publish(c, notifications.EventImportCompleted, notifications.Payload{
					"source":     report.Source,
					"inserted":   report.Inserted,
					"duplicates": report.Duplicates,
				}); err != nil {
					logging.WarnWithContext(logger, "import notification failed", "notification_failed",
						logging.Error(err),
						logging.String(logging.FieldImpact, "no push notification was sent"),
					)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&channelSlug, "channel", "", "Channel slug the events belong to")
	cmd.Flags().StringVar(&source, "source", "", "Source label stored with each event (default file/<name>)")
	return cmd
}

func newEventContextCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "context <event-id> <file>",
		Short: "Attach long-form context to an event",
		Long:  "Replaces the event's rich context with the contents of file. HTML files are flattened to text. Long-form channels narrate this text.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "event")
			if err != nil {
				return err
			}
			data, err := os.ReadFile(args[1])
			if err != nil {
				return err
			}
			text := string(data)
			if lower := strings.ToLower(args[1]); strings.HasSuffix(lower, ".html") || strings.HasSuffix(lower, ".htm") {
				if text, err = ingest.HTMLToText(strings.NewReader(text)); err != nil {
					return fmt.Errorf("parse %s: %w", args[1], err)
				}
			}

			return ctx.withStore(cmd, func(c context.Context, _ *config.Config, st *store.Store) error {
				if err := st.SetRichContext(c, id, strings.TrimSpace(text)); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Stored %d characters of context for event %d\n", len([]rune(text)), id)
				return nil
			})
		},
	}
}
