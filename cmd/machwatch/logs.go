package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/crimson-sun/machwatch/internal/output/file"
	"github.com/crimson-sun/machwatch/internal/report"
)

var logsFlags struct {
	tail    int
	logFile string
	raw     bool
}

func newLogsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show the most recent prediction log lines",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f := cmd.Flags()
			if f.Changed("tail") {
				a.cfg.Output.Tail = logsFlags.tail
			}
			if f.Changed("log-file") {
				a.cfg.Output.LogFile = logsFlags.logFile
			}
			if err := a.cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration:\n%w", err)
			}

			lines, err := file.Tail(a.cfg.Output.LogFile, a.cfg.Output.Tail)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(lines) == 0 {
				fmt.Fprintf(out, "No log entries in '%s'\n", a.cfg.Output.LogFile)
				return nil
			}
			if logsFlags.raw {
				for _, l := range lines {
					fmt.Fprintln(out, l)
				}
				return nil
			}
			fmt.Fprintln(out, report.Logs(lines, report.ASCII))
			return nil
		},
	}
	f := cmd.Flags()
	f.IntVarP(&logsFlags.tail, "tail", "n", 20, "number of lines to show")
	f.StringVar(&logsFlags.logFile, "log-file", "", "prediction log (default from config)")
	f.BoolVar(&logsFlags.raw, "raw", false, "print lines as stored")
	return cmd
}
