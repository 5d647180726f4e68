package main

import (
	"github.com/spf13/cobra"

	"shelfsync/internal/catalog"
	"shelfsync/internal/identity"
	"shelfsync/internal/services"
	"shelfsync/internal/syncer"
)

var targetByKind = map[catalog.Kind]catalog.Target{
	catalog.KindGame:   catalog.TargetGames,
	catalog.KindMovie:  catalog.TargetMovies,
	catalog.KindTV:     catalog.TargetMovies,
	catalog.KindBook:   catalog.TargetBooks,
	catalog.KindTrack:  catalog.TargetMusic,
	catalog.KindAlbum:  catalog.TargetMusic,
	catalog.KindArtist: catalog.TargetMusic,
	catalog.KindLabel:  catalog.TargetMusic,
}

func newCreateCommand(ctx *commandContext) *cobra.Command {
	var dryRun, jsonOut bool

	cmd := &cobra.Command{
		Use:   "create <url>",
		Short: "Create a page (and its album, artist, and label) from a catalog link",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			link, err := identity.ParseURL(args[0])
			if err != nil {
				return services.Wrap(services.ErrValidation, "cli", "create", "", err)
			}
			req := syncer.Request{
				Target:  targetByKind[link.Kind],
				Scope:   syncer.CreateFromURL(args[0]),
				Flags:   syncer.Flags{DryRun: dryRun},
				Trigger: syncer.TriggerCLI,
				Workers: 1,
			}
			return ctx.runRequest(cmd, req, jsonOut)
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "List the pages that would be created")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print the run report as JSON")
	return cmd
}
