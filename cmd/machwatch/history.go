package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/crimson-sun/machwatch/internal/history"
	"github.com/crimson-sun/machwatch/internal/output"
	"github.com/crimson-sun/machwatch/internal/report"
)

var historyFlags struct {
	db    string
	limit int
	run   string
}

func newHistoryCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded replays",
		Long: `Lists replays recorded with --history-db, newest first. With --run, prints
the log lines of one run instead.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("db") {
				a.cfg.Output.HistoryDB = historyFlags.db
			}
			if a.cfg.Output.HistoryDB == "" {
				return errors.New("no history database: pass --db or set MACHWATCH_HISTORY_DB")
			}
			store, err := history.NewStore(a.cfg.Output.HistoryDB)
			if err != nil {
				return err
			}
			defer store.Close()

			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			if historyFlags.run != "" {
				outcomes, err := store.Outcomes(ctx, historyFlags.run)
				if err != nil {
					return err
				}
				lines := make([]string, len(outcomes))
				for i, o := range outcomes {
					lines[i] = output.LogLine(o)
				}
				fmt.Fprintln(out, report.Logs(lines, report.ASCII))
				return nil
			}

			runs, err := store.Runs(ctx, historyFlags.limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(out, "No recorded runs")
				return nil
			}
			fmt.Fprintln(out, report.Runs(runs, report.ASCII))
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&historyFlags.db, "db", "", "history database (default from config)")
	f.IntVar(&historyFlags.limit, "limit", 20, "maximum number of runs to list")
	f.StringVar(&historyFlags.run, "run", "", "show the outcomes of one run id")
	return cmd
}
