package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"shelfsync/internal/syncer"
)

func newRouteCommand(ctx *commandContext) *cobra.Command {
	var run, jsonOut bool

	cmd := &cobra.Command{
		Use:   "route <page-id|url|payload.json|->",
		Short: "Resolve a webhook payload, page id, or Spotify or TMDb link into a sync request",
		Long: "Route prints the request a webhook would trigger. The argument may be a page id or URL,\n" +
			"a Spotify or TMDb link, a JSON payload file, or - to read the payload from stdin. With --run the\n" +
			"request is executed.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := ctx.buildApp()
			if err != nil {
				return err
			}
			req, err := routeArgument(cmd, app.Router, args[0])
			app.Close()
			if err != nil {
				return err
			}
			if !run {
				if jsonOut {
					return writeJSON(cmd, req)
				}
				describeRequest(cmd.OutOrStdout(), req)
				return nil
			}
			return ctx.runRequest(cmd, req, jsonOut)
		},
	}
	cmd.Flags().BoolVar(&run, "run", false, "Execute the routed request")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print JSON")
	return cmd
}

func routeArgument(cmd *cobra.Command, router *syncer.Router, arg string) (syncer.Request, error) {
	arg = strings.TrimSpace(arg)
	if arg == "-" {
		body, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return syncer.Request{}, fmt.Errorf("read payload: %w", err)
		}
		return router.RoutePayload(cmd.Context(), body)
	}
	if strings.HasSuffix(strings.ToLower(arg), ".json") {
		body, err := os.ReadFile(arg)
		if err == nil {
			return router.RoutePayload(cmd.Context(), body)
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return syncer.Request{}, fmt.Errorf("read payload: %w", err)
		}
	}
	if strings.Contains(arg, "spotify") || strings.Contains(arg, "themoviedb.org") {
		return router.RouteURL(arg)
	}
	return router.Route(cmd.Context(), arg)
}

func describeRequest(w io.Writer, req syncer.Request) {
	fmt.Fprintf(w, "Target:   %s\n", req.Target)
	fmt.Fprintf(w, "Scope:    %s\n", req.Scope.Kind)
	if req.Scope.RecordID != "" {
		fmt.Fprintf(w, "Record:   %s\n", req.Scope.RecordID)
	}
	if req.Scope.URL != "" {
		fmt.Fprintf(w, "URL:      %s\n", req.Scope.URL)
	}
	if req.Database != "" {
		fmt.Fprintf(w, "Database: %s\n", req.Database)
	}
	fmt.Fprintf(w, "Trigger:  %s\n", req.Trigger)
}
