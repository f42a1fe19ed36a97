package main

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/ethanmclark1/conav-suite/internal/engine"
	"github.com/ethanmclark1/conav-suite/internal/persistence"
	"github.com/ethanmclark1/conav-suite/internal/placement"
	"github.com/ethanmclark1/conav-suite/internal/scenario"
	"github.com/ethanmclark1/conav-suite/internal/world"
)

func newScenariosCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "scenarios [name]",
		Short: "List registered scenarios, or print one in full",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := loadConfig(); err != nil {
				return err
			}
			if len(args) == 1 {
				sc, err := scenario.Resolve(args[0])
				if err != nil {
					return err
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(sc)
			}

			var all []scenario.Scenario
			for _, name := range scenario.Names() {
				sc, err := scenario.Resolve(name)
				if err != nil {
					return err
				}
				all = append(all, sc)
			}
			if asJSON {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(all)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tCLASS\tSHAPES\tDYNAMIC")
			for _, sc := range all {
				shapes := fmt.Sprintf("%d rects", len(sc.Regions))
				if sc.Polygonal() {
					shapes = fmt.Sprintf("%d triangles", len(sc.Triangles))
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", sc.Name, sc.Class, shapes, len(sc.Dynamic))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the listing as JSON")
	return cmd
}

func newEpisodesCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "episodes",
		Short: "Show recently stored episodes",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.Storage.DBPath == "" {
				return fmt.Errorf("no database configured (set storage.db_path or NAVSIM_DB_PATH)")
			}
			if _, err := os.Stat(cfg.Storage.DBPath); err != nil {
				return fmt.Errorf("database %s: %w", cfg.Storage.DBPath, err)
			}
			db, err := persistence.Open(cfg.Storage.DBPath)
			if err != nil {
				return err
			}
			defer db.Close()

			eps, err := db.RecentEpisodes(limit)
			if err != nil {
				return err
			}
			counts, err := db.OutcomeCounts()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tSCENARIO\tSEED\tROUNDS\tOUTCOME\tFINISHED")
			for _, e := range eps {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\t%s\n",
					shortID(e.ID), e.Scenario, e.Seed,
					humanize.Comma(int64(e.Rounds)), e.Outcome,
					humanize.Time(e.FinishedAt),
				)
			}
			if err := tw.Flush(); err != nil {
				return err
			}

			total := 0
			for _, n := range counts {
				total += n
			}
			fmt.Fprintf(out, "\n%s episodes stored", humanize.Comma(int64(total)))
			for _, o := range []string{engine.OutcomeTerminated, engine.OutcomeTruncated, engine.OutcomeMixed, engine.OutcomeAborted} {
				if n := counts[o]; n > 0 {
					fmt.Fprintf(out, ", %d %s", n, o)
				}
			}
			fmt.Fprintln(out)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "episodes to show")
	return cmd
}

func newValidateCmd() *cobra.Command {
	var layouts int
	cmd := &cobra.Command{
		Use:   "validate [scenario...]",
		Short: "Check the config and generate layouts for every scenario",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			names := args
			if len(names) == 0 {
				names = scenario.Names()
			}

			w, err := world.New(cfg.WorldConfig())
			if err != nil {
				return err
			}
			gen := placement.NewGenerator(cfg.Placement.MaxAttempts, cfg.Placement.MaxRestarts)

			out := cmd.OutOrStdout()
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "SCENARIO\tLAYOUTS\tRESTARTS\tRESULT")
			failed := 0
			for _, name := range names {
				restarts := 0
				var verr error
				for i := 0; i < layouts && verr == nil; i++ {
					rng := rand.New(rand.NewSource(int64(i)))
					if verr = gen.Reset(w, rng, name); verr == nil {
						restarts += gen.LastRestarts
						verr = placement.Verify(w)
					}
				}
				result := "ok"
				if verr != nil {
					failed++
					result = verr.Error()
				}
				fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", name, layouts, humanize.Comma(int64(restarts)), result)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d scenarios failed", failed, len(names))
			}
			fmt.Fprintf(out, "config ok: %d agents, %d custom scenarios, %d registered\n",
				cfg.Env.Agents, len(cfg.Scenarios), len(scenario.Names()))
			return nil
		},
	}
	cmd.Flags().IntVarP(&layouts, "layouts", "k", 10, "layouts to generate per scenario")
	return cmd
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
