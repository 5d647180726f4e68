package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"shelfsync/internal/syncer"
)

func renderReport(w io.Writer, report *syncer.Report) {
	mode := ""
	if report.DryRun {
		mode = " (dry run)"
	}
	fmt.Fprintf(w, "Run %s · %s · %s · %s%s · %s\n",
		shortRunID(report.RunID), report.Target, report.Trigger, report.Scope, mode,
		report.Duration.Round(time.Millisecond))

	c := report.Counters
	fmt.Fprintln(w, renderTable(
		[]string{"Scanned", "Skipped", "Updated", "Created", "Unchanged", "Failed"},
		[][]string{{
			strconv.Itoa(c.Scanned), strconv.Itoa(c.Skipped), strconv.Itoa(c.Updated),
			strconv.Itoa(c.Created), strconv.Itoa(c.Unchanged), strconv.Itoa(c.Failed),
		}},
		[]columnAlignment{alignRight, alignRight, alignRight, alignRight, alignRight, alignRight},
	))

	var rows [][]string
	for _, o := range report.Outcomes {
		if o.Status == syncer.StatusSkipped || o.Status == syncer.StatusUnchanged {
			continue
		}
		rows = append(rows, []string{o.Database, o.RecordID, o.Title, string(o.Status), changedProperties(o), o.Error})
	}
	if len(rows) > 0 {
		fmt.Fprintln(w, renderTable([]string{"Database", "Record", "Title", "Status", "Changes", "Error"}, rows, nil))
	}

	if len(report.Created) > 0 {
		fmt.Fprintln(w, "Created:")
		fmt.Fprintln(w, renderTable([]string{"Database", "Kind", "Title", "Record", "External ID"}, creationRows(report.Created), nil))
	}
	if len(report.Planned) > 0 {
		fmt.Fprintln(w, "Would create:")
		fmt.Fprintln(w, renderTable([]string{"Database", "Kind", "Title", "Record", "External ID"}, creationRows(report.Planned), nil))
	}
}

func creationRows(list []syncer.Creation) [][]string {
	rows := make([][]string, 0, len(list))
	for _, c := range list {
		rows = append(rows, []string{c.Database, string(c.Kind), c.Title, c.RecordID, c.ExternalID})
	}
	return rows
}

func changedProperties(o syncer.Outcome) string {
	names := make([]string, 0, len(o.Changes))
	for _, ch := range o.Changes {
		names = append(names, ch.Property)
	}
	return strings.Join(names, ", ")
}

func shortRunID(id string) string {
	id = strings.ReplaceAll(id, "-", "")
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
