package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"contentfactory/internal/config"
	"contentfactory/internal/pipeline"
	"contentfactory/internal/store"
)

// newRunner is swapped by tests to inject stub stage handlers.
var newRunner = func(cfg *config.Config, st *store.Store, logger *slog.Logger) *pipeline.Runner {
	return pipeline.New(cfg, st, logger)
}

func newStageCommand(ctx *commandContext) *cobra.Command {
	stageCmd := &cobra.Command{
		Use:   "stage",
		Short: "Run a single pipeline stage for a job",
	}
	for _, entry := range []struct {
		name  string
		short string
	}{
		{pipeline.StageScript, "Generate (or map) the script"},
		{pipeline.StageAssets, "Synthesize narration and scene images"},
		{pipeline.StageRender, "Render the final video"},
	} {
		name := entry.name
		stageCmd.AddCommand(&cobra.Command{
			Use:   name + " <job-id>",
			Short: entry.short,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := parseID(args[0], "job")
				if err != nil {
					return err
				}
				return ctx.withStore(cmd, func(c context.Context, cfg *config.Config, st *store.Store) error {
					if name == pipeline.StageScript {
						if err := cfg.RequireLLM(); err != nil {
							return err
						}
					}
					runErr := newRunner(cfg, st, ctx.cliLogger()).RunStage(c, name, id)
					return reportJob(c, cmd, st, id, runErr)
				})
			},
		})
	}
	return stageCmd
}

func newRunCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "run <job-id>",
		Short: "Run every stage for a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "job")
			if err != nil {
				return err
			}
			return ctx.withStore(cmd, func(c context.Context, cfg *config.Config, st *store.Store) error {
				if err := cfg.RequireLLM(); err != nil {
					return err
				}
				runErr := newRunner(cfg, st, ctx.cliLogger()).RunPipeline(c, id)
				return reportJob(c, cmd, st, id, runErr)
			})
		},
	}
}

// reportJob prints the job's state after a run and passes runErr through.
func reportJob(ctx context.Context, cmd *cobra.Command, st *store.Store, id int64, runErr error) error {
	job, err := st.GetJob(context.WithoutCancel(ctx), id)
	if err != nil {
		if runErr != nil {
			return runErr
		}
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Job %d: %s\n", job.ID, job.Status)
	if job.VideoPath != "" && job.Status == store.StatusRenderComplete {
		fmt.Fprintf(out, "Video: %s\n", job.VideoPath)
	}
	return runErr
}
