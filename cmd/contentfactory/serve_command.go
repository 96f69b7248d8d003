package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"contentfactory/internal/config"
	"contentfactory/internal/httpapi"
	"contentfactory/internal/logging"
	"contentfactory/internal/pipeline"
	"contentfactory/internal/preflight"
	"contentfactory/internal/store"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var bind string
	var worker bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API and, optionally, the background worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(cmd, func(c context.Context, cfg *config.Config, st *store.Store) error {
				logger, err := logging.NewFromConfig(cfg)
				if err != nil {
					return fmt.Errorf("configure logging: %w", err)
				}

				for _, result := range preflight.Failed(preflight.RunAll(c, cfg)) {
					logging.WarnWithContext(logger, "preflight check failed", "preflight_failed",
						logging.String("check", result.Name),
						logging.String("detail", result.Detail),
						logging.String(logging.FieldImpact, "jobs that need this will fail"),
					)
				}

				runner := newRunner(cfg, st, logger)
				var reporter httpapi.WorkerReporter
				if worker || (cfg.API.EnableWorker && !cmd.Flags().Changed("worker")) {
					w := pipeline.NewWorker(st, runner, logger,
						time.Duration(cfg.API.PollInterval)*time.Second, cfg.API.WorkerConcurrency)
					if err := w.Start(c); err != nil {
						return err
					}
					defer w.Stop()
					reporter = w
				}

				address := cfg.Paths.APIBind
				if bind != "" {
					address = bind
				}
				srv := httpapi.NewServer(address, st, runner, reporter, logger)
				if err := srv.Start(c); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Listening on http://%s\n", srv.Addr())

				<-c.Done()
				srv.Stop()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&bind, "bind", "", "Override paths.api_bind")
	cmd.Flags().BoolVar(&worker, "worker", false, "Run the background worker (default from api.enable_worker)")
	return cmd
}
