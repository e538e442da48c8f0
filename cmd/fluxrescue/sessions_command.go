package main

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"fluxrescue/internal/config"
	"fluxrescue/internal/resultdb"
)

func newSessionsCommand(cctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Inspect recorded recovery sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return listSessions(cmd, cctx)
		},
	}

	var jsonOut bool
	showCmd := &cobra.Command{
		Use:   "show <session-id>",
		Short: "Show per-sector outcomes for one session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return showSession(cmd, cctx, args[0], jsonOut)
		},
	}
	showCmd.Flags().BoolVar(&jsonOut, "json", false, "Print machine-readable JSON")
	cmd.AddCommand(showCmd)

	return cmd
}

func openResults(cctx *commandContext) (*resultdb.Store, *config.Config, error) {
	cfg, err := cctx.ensureConfig()
	if err != nil {
		return nil, nil, err
	}
	if !cfg.Results.Enabled {
		return nil, nil, fmt.Errorf("results database is disabled; set results.enabled in the configuration")
	}
	store, err := resultdb.Open(cfg.Results.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("open results database: %w", err)
	}
	return store, cfg, nil
}

func listSessions(cmd *cobra.Command, cctx *commandContext) error {
	store, _, err := openResults(cctx)
	if err != nil {
		return err
	}
	defer store.Close()

	sessions, err := store.ListSessions(cmd.Context())
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No sessions recorded")
		return nil
	}

	tw := table.NewWriter()
	tw.SetOutputMirror(cmd.OutOrStdout())
	tw.SetStyle(table.StyleLight)
	tw.AppendHeader(table.Row{"Session", "Started", "Stage", "Geometry", "Good", "Repaired", "Failed"})
	for _, s := range sessions {
		tw.AppendRow(table.Row{
			s.ID,
			s.StartedAt.Format("2006-01-02 15:04:05"),
			s.Stage,
			fmt.Sprintf("%dc %dh", s.Cylinders, s.Heads),
			s.SectorsGood,
			s.SectorsRepaired,
			s.SectorsFailed,
		})
	}
	tw.Render()
	return nil
}

func showSession(cmd *cobra.Command, cctx *commandContext, sessionID string, jsonOut bool) error {
	store, _, err := openResults(cctx)
	if err != nil {
		return err
	}
	defer store.Close()

	outcomes, err := store.SessionOutcomes(cmd.Context(), sessionID)
	if err != nil {
		return err
	}
	if jsonOut {
		return writeJSON(cmd, outcomes)
	}
	if len(outcomes) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "No outcomes recorded for session %s\n", sessionID)
		return nil
	}

	tw := table.NewWriter()
	tw.SetOutputMirror(cmd.OutOrStdout())
	tw.SetStyle(table.StyleLight)
	tw.AppendHeader(table.Row{"Cyl", "Head", "Sector", "Status", "Kind", "Method", "Conf", "Fixes"})
	for _, o := range outcomes {
		tw.AppendRow(table.Row{o.Cylinder, o.Head, o.Sector, o.Status, o.Kind, o.Method, o.Confidence, o.Corrections})
	}
	tw.Render()
	return nil
}
