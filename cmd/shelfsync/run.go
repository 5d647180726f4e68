package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"shelfsync/internal/logging"
	"shelfsync/internal/runlock"
	"shelfsync/internal/syncer"
)

// runRequest executes req under the per-target run lock and renders the
// report. Per-record failures are listed in the report and summarised on
// stderr; only run-level errors are returned.
func (c *commandContext) runRequest(cmd *cobra.Command, req syncer.Request, jsonOut bool) error {
	app, err := c.buildApp()
	if err != nil {
		return err
	}
	defer app.Close()
	cfg := app.Config

	if req.Workers == 0 {
		req.Workers = cfg.Sync.Workers
	}

	lock, err := runlock.Acquire(cfg.Paths.StateDir, string(req.Target))
	if err != nil {
		return fmt.Errorf("%s sync: %w", req.Target, err)
	}
	defer lock.Release()

	runCtx, cancel := context.WithTimeout(cmd.Context(), time.Duration(cfg.Sync.RunTimeoutSeconds)*time.Second)
	defer cancel()

	report, runErr := app.Syncer.Run(runCtx, req)
	if err := app.Metrics.WriteTextfile(cfg.Metrics.Textfile); err != nil {
		if logger, lerr := c.ensureLogger(); lerr == nil {
			logging.WarnWithContext(logger, "metrics export failed", "metrics_export",
				logging.String("path", cfg.Metrics.Textfile),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check metrics.textfile permissions"),
			)
		}
	}
	if report != nil {
		if jsonOut {
			if err := writeJSON(cmd, report); err != nil {
				return err
			}
		} else {
			renderReport(cmd.OutOrStdout(), report)
		}
	}
	if runErr != nil {
		return runErr
	}
	if n := report.Counters.Failed; n > 0 {
		fmt.Fprintf(cmd.ErrOrStderr(), "%s sync: %d record(s) failed\n", req.Target, n)
	}
	return nil
}
