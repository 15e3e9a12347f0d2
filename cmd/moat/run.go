package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorhill/cronexpr"
	"github.com/spf13/cobra"

	"github.com/srinivasgumdelli/moat/internal/server"
)

func runCMD() *cobra.Command {
	var cfgPath string
	var schedule string

	var run = &cobra.Command{
		Use:   "run",
		Short: "Execute the aggregation pipeline",
		Long:  "Fetch, deduplicate, cluster, summarize, and deliver a digest. With --schedule the process stays up and runs on the given cron expression.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if schedule == "" {
				a, err := buildApp(cfgPath, false)
				if err != nil {
					return err
				}
				defer a.Close()
				return a.pipeline.Run(ctx)
			}

			expr, err := cronexpr.Parse(schedule)
			if err != nil {
				return fmt.Errorf("parsing schedule %q: %w", schedule, err)
			}

			a, err := buildApp(cfgPath, true)
			if err != nil {
				return err
			}
			defer a.Close()
			return runScheduled(ctx, a, expr)
		},
	}
	run.Flags().StringVar(&schedule, "schedule", "", "cron expression, e.g. \"0 7,19 * * *\" (empty = run once)")
	run.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is .)")

	return run
}

func runScheduled(ctx context.Context, a *app, expr *cronexpr.Expression) error {
	if a.cfg.Telemetry.Enabled {
		admin := server.NewAdmin(a.cfg.Telemetry.Address, a.metrics, a.logger)
		go func() {
			if err := admin.Start(); err != nil {
				a.logger.Printf("admin server: %v", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = admin.Shutdown(shutdownCtx)
		}()
	}

	for {
		next := expr.Next(time.Now())
		if next.IsZero() {
			return fmt.Errorf("schedule has no future run times")
		}
		a.logger.Printf("next run at %s", next.Format(time.RFC3339))

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			a.logger.Printf("shutting down")
			return nil
		case <-timer.C:
		}

		if err := a.pipeline.Run(ctx); err != nil {
			a.logger.Printf("run failed: %v", err)
		}
	}
}
