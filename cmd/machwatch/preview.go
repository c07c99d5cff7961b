package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/crimson-sun/machwatch/internal/dataset"
	"github.com/crimson-sun/machwatch/internal/report"
)

var previewFlags struct {
	rows     int
	markdown bool
}

func newPreviewCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "preview <csv|s3://bucket/key>",
		Short: "Print the first rows of a dataset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ds, err := dataset.Load(cmd.Context(), a.sourceConfig(), args[0], a.datasetOptions())
			if err != nil {
				return err
			}
			mode := report.ASCII
			if previewFlags.markdown {
				mode = report.Markdown
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, report.Preview(ds, previewFlags.rows, mode))
			if missing := ds.Missing(); len(missing) > 0 {
				fmt.Fprintf(out, "missing columns (bound minimum used): %v\n", missing)
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.IntVarP(&previewFlags.rows, "rows", "n", report.PreviewRows, "number of rows to show")
	f.BoolVar(&previewFlags.markdown, "markdown", false, "render as a Markdown table")
	return cmd
}
