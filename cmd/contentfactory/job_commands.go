package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"contentfactory/internal/config"
	"contentfactory/internal/store"
	"contentfactory/internal/textutil"
)

func newJobCommand(ctx *commandContext) *cobra.Command {
	jobCmd := &cobra.Command{
		Use:   "job",
		Short: "Create and inspect pipeline jobs",
	}
	jobCmd.AddCommand(newJobCreateCommand(ctx))
	jobCmd.AddCommand(newJobListCommand(ctx))
	jobCmd.AddCommand(newJobShowCommand(ctx))
	return jobCmd
}

func newJobCreateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "create <event-id>...",
		Short: "Queue events for the pipeline",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]int64, 0, len(args))
			for _, arg := range args {
				id, err := parseID(arg, "event")
				if err != nil {
					return err
				}
				ids = append(ids, id)
			}
			return ctx.withStore(cmd, func(c context.Context, _ *config.Config, st *store.Store) error {
				out := cmd.OutOrStdout()
				var failed int
				for _, id := range ids {
					job, err := st.CreateJob(c, id)
					switch {
					case errors.Is(err, store.ErrJobExists):
						fmt.Fprintf(out, "Event %d already has a job\n", id)
						failed++
					case errors.Is(err, store.ErrNotFound):
						fmt.Fprintf(out, "Event %d not found\n", id)
						failed++
					case err != nil:
						return err
					default:
						fmt.Fprintf(out, "Created job %d for event %d\n", job.ID, id)
					}
				}
				if failed > 0 {
					return fmt.Errorf("%d of %d events could not be queued", failed, len(ids))
				}
				return nil
			})
		},
	}
}

func newJobListCommand(ctx *commandContext) *cobra.Command {
	var statuses []string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			var filter store.JobFilter
			for _, raw := range statuses {
				status, ok := store.ParseStatus(strings.ToUpper(strings.TrimSpace(raw)))
				if !ok {
					return fmt.Errorf("unknown status %q", raw)
				}
				filter.Statuses = append(filter.Statuses, status)
			}
			filter.Limit = limit

			return ctx.withStore(cmd, func(c context.Context, _ *config.Config, st *store.Store) error {
				jobs, err := st.ListJobs(c, filter)
				if err != nil {
					return err
				}
				if len(jobs) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No jobs found")
					return nil
				}
				rows := make([][]string, 0, len(jobs))
				for _, job := range jobs {
					rows = append(rows, []string{
						strconv.FormatInt(job.ID, 10),
						strconv.FormatInt(job.EventID, 10),
						textutil.Label(string(job.Status)),
						job.UpdatedAt.Local().Format("2006-01-02 15:04"),
						textutil.Truncate(textutil.CollapseWhitespace(job.ErrorLog), 50),
					})
				}
				writeTable(cmd.OutOrStdout(),
					[]string{"ID", "Event", "Status", "Updated", "Last Error"},
					rows,
					[]columnAlignment{alignRight, alignRight, alignLeft, alignLeft, alignLeft},
				)
				return nil
			})
		},
	}
	cmd.Flags().StringSliceVar(&statuses, "status", nil, "Filter by status (repeatable or comma separated)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum jobs to list (0 for all)")
	return cmd
}

type jobDetail struct {
	ID          int64           `json:"id"`
	Status      string          `json:"status"`
	EventID     int64           `json:"eventId"`
	EventTitle  string          `json:"eventTitle"`
	Channel     string          `json:"channel"`
	AudioPath   string          `json:"audioPath,omitempty"`
	VideoPath   string          `json:"videoPath,omitempty"`
	ErrorLog    string          `json:"errorLog,omitempty"`
	Script      json.RawMessage `json:"script,omitempty"`
	CreatedAt   string          `json:"createdAt"`
	UpdatedAt   string          `json:"updatedAt"`
	HasPrompt   bool            `json:"hasPrompt"`
	HasRichText bool            `json:"hasRichContext"`
}

func newJobShowCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show <job-id>",
		Short: "Show one job in detail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "job")
			if err != nil {
				return err
			}
			return ctx.withStore(cmd, func(c context.Context, _ *config.Config, st *store.Store) error {
				work, err := st.LoadWork(c, id)
				if err != nil {
					return err
				}
				detail := jobDetail{
					ID:          work.Job.ID,
					Status:      string(work.Job.Status),
					EventID:     work.Event.ID,
					EventTitle:  work.Event.Title,
					Channel:     work.Channel.Slug,
					AudioPath:   work.Job.AudioPath,
					VideoPath:   work.Job.VideoPath,
					ErrorLog:    work.Job.ErrorLog,
					CreatedAt:   work.Job.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
					UpdatedAt:   work.Job.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
					HasPrompt:   work.Job.ScriptPrompt != "",
					HasRichText: work.Event.RichContext != "",
				}
				if work.Job.ScriptJSON != "" && json.Valid([]byte(work.Job.ScriptJSON)) {
					detail.Script = json.RawMessage(work.Job.ScriptJSON)
				}
				if asJSON {
					return writeJSON(cmd, detail)
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Job %d  [%s]\n", detail.ID, textutil.Label(detail.Status))
				fmt.Fprintf(out, "Event:    #%d %s\n", detail.EventID, detail.EventTitle)
				fmt.Fprintf(out, "Channel:  %s\n", detail.Channel)
				fmt.Fprintf(out, "Script:   %s\n", yesNo(detail.Script != nil))
				if detail.AudioPath != "" {
					fmt.Fprintf(out, "Audio:    %s\n", detail.AudioPath)
				}
				if detail.VideoPath != "" {
					fmt.Fprintf(out, "Video:    %s\n", detail.VideoPath)
				}
				if detail.ErrorLog != "" {
					fmt.Fprintf(out, "Last error: %s\n", detail.ErrorLog)
				}
				fmt.Fprintf(out, "Updated:  %s\n", detail.UpdatedAt)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the job, including its script, as JSON")
	return cmd
}

// writeJSON encodes v as indented JSON to the command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
