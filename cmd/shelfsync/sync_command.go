package main

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"shelfsync/internal/catalog"
	"shelfsync/internal/services"
	"shelfsync/internal/syncer"
)

type syncOptions struct {
	pageID       string
	lastPage     bool
	database     string
	createdAfter string
	trigger      string
	workers      int
	jsonOut      bool
	flags        syncer.Flags
}

func newSyncCommand(ctx *commandContext) *cobra.Command {
	var opts syncOptions

	cmd := &cobra.Command{
		Use:   "sync <games|movies|books|music>",
		Short: "Refresh destination records from their catalogs",
		Long: "Sync scans every record of the target's databases, or a single page with --page-id,\n" +
			"or only the most recently edited page with --last-page. Records edited less than the\n" +
			"grace window after their last sync are skipped unless a --force flag is set.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := opts.request(args[0], ctx.now())
			if err != nil {
				return err
			}
			return ctx.runRequest(cmd, req, opts.jsonOut)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.pageID, "page-id", "", "Sync one page by id or URL")
	f.BoolVar(&opts.lastPage, "last-page", false, "Sync only the most recently edited page")
	f.StringVar(&opts.database, "database", "", "Restrict to one database (music: artists, albums, songs, labels, or all)")
	f.StringVar(&opts.createdAfter, "created-after", "", "Only pages created after this date (YYYY-MM-DD or today)")
	f.StringVar(&opts.trigger, "trigger", "cli", "Trigger recorded in logs (cli, webhook, scheduled, dispatch)")
	f.IntVar(&opts.workers, "workers", 0, "Concurrent records (1-4, default from config)")
	f.BoolVar(&opts.jsonOut, "json", false, "Print the run report as JSON")
	f.BoolVar(&opts.flags.ForceIcons, "force-icons", false, "Reapply the target icon to every synced page")
	f.BoolVar(&opts.flags.ForceUpdate, "force-update", false, "Write every mapped property even when unchanged")
	f.BoolVar(&opts.flags.ForceAll, "force-all", false, "Ignore the last-synced grace window")
	f.BoolVar(&opts.flags.ForceResearch, "force-research", false, "Ignore stored ids and search by title")
	f.BoolVar(&opts.flags.ForceScraping, "force-scraping", false, "Scrape provider pages even when the API is complete")
	f.BoolVar(&opts.flags.DryRun, "dry-run", false, "Report changes without writing")
	return cmd
}

func (o syncOptions) request(targetArg string, now time.Time) (syncer.Request, error) {
	target, err := catalog.ParseTarget(targetArg)
	if err != nil {
		return syncer.Request{}, services.Wrap(services.ErrValidation, "cli", "sync", "", err)
	}
	trigger, err := syncer.ParseTrigger(o.trigger)
	if err != nil {
		return syncer.Request{}, err
	}
	req := syncer.Request{
		Target:   target,
		Scope:    syncer.AllRecords(),
		Flags:    o.flags,
		Trigger:  trigger,
		Workers:  o.workers,
		Database: strings.TrimSpace(o.database),
	}
	if strings.EqualFold(req.Database, "all") {
		req.Database = ""
	}
	pageID := strings.TrimSpace(o.pageID)
	switch {
	case pageID != "" && o.lastPage:
		return syncer.Request{}, services.Wrap(services.ErrValidation, "cli", "sync", "", errors.New("--page-id and --last-page are mutually exclusive"))
	case pageID != "":
		req.Scope = syncer.SingleRecord(pageID)
	case o.lastPage:
		req.Scope = syncer.LastEdited()
	}
	if o.createdAfter != "" {
		if req.Scope.Kind != syncer.ScopeAll {
			return syncer.Request{}, services.Wrap(services.ErrValidation, "cli", "sync", "", errors.New("--created-after only applies to full scans"))
		}
		if req.CreatedAfter, err = syncer.ParseCreatedAfter(o.createdAfter, now); err != nil {
			return syncer.Request{}, err
		}
	}
	return req, nil
}

func (c *commandContext) now() time.Time {
	if c.clock != nil {
		return c.clock()
	}
	return time.Now()
}
