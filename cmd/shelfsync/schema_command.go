package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"shelfsync/internal/catalog"
	"shelfsync/internal/schema"
	"shelfsync/internal/services"
	"shelfsync/internal/wiring"
)

func newSchemaCommand(ctx *commandContext) *cobra.Command {
	schemaCmd := &cobra.Command{
		Use:   "schema",
		Short: "Inspect and prepare destination databases",
	}
	schemaCmd.AddCommand(newSchemaCheckCommand(ctx))
	schemaCmd.AddCommand(newSchemaInitCommand(ctx))
	return schemaCmd
}

func newSchemaCheckCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "check <target>",
		Short: "Check configured property ids against the live databases",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, target, err := openTarget(ctx, args[0])
			if err != nil {
				return err
			}
			defer app.Close()

			var rows [][]string
			var failed []error
			for _, db := range target.Databases {
				live, err := schema.Validate(cmd.Context(), app.Store, db)
				if err != nil {
					rows = append(rows, []string{db.Name, db.ID, string(db.Kind), "-", err.Error()})
					failed = append(failed, err)
					continue
				}
				rows = append(rows, []string{db.Name, db.ID, string(db.Kind), fmt.Sprint(len(live.Properties)), "ok"})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Database", "ID", "Kind", "Properties", "Status"}, rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
			))
			return errors.Join(failed...)
		},
	}
}

func newSchemaInitCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "init <target>",
		Short: "Create the target's databases in the sqlite mirror",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, target, err := openTarget(ctx, args[0])
			if err != nil {
				return err
			}
			defer app.Close()
			if app.Mirror == nil {
				return services.Wrap(services.ErrConfiguration, "cli", "schema init", "schema init needs destination.driver = \"sqlite\"", nil)
			}
			out := cmd.OutOrStdout()
			for _, db := range target.Databases {
				scaffold := schema.Scaffold(db)
				if err := app.Mirror.DefineDatabase(cmd.Context(), scaffold); err != nil {
					return err
				}
				fmt.Fprintf(out, "Defined %s (%s) with %d properties\n", db.Name, scaffold.DatabaseID, len(scaffold.Properties))
			}
			return nil
		},
	}
}

func openTarget(ctx *commandContext, arg string) (*wiring.App, schema.Target, error) {
	name, err := catalog.ParseTarget(arg)
	if err != nil {
		return nil, schema.Target{}, services.Wrap(services.ErrValidation, "cli", "schema", "", err)
	}
	app, err := ctx.buildApp()
	if err != nil {
		return nil, schema.Target{}, err
	}
	target, ok := app.Target(name)
	if !ok {
		app.Close()
		return nil, schema.Target{}, services.Wrap(services.ErrConfiguration, "cli", "schema",
			fmt.Sprintf("target %s is not configured", name), nil)
	}
	return app, target, nil
}
