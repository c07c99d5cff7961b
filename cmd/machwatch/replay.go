package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/crimson-sun/machwatch/internal/dataset"
	"github.com/crimson-sun/machwatch/internal/engine"
	"github.com/crimson-sun/machwatch/internal/engine/normalize"
	"github.com/crimson-sun/machwatch/internal/engine/predictor"
	"github.com/crimson-sun/machwatch/internal/history"
	"github.com/crimson-sun/machwatch/internal/logging"
	"github.com/crimson-sun/machwatch/internal/output"
	"github.com/crimson-sun/machwatch/internal/output/async"
	"github.com/crimson-sun/machwatch/internal/output/chart"
	"github.com/crimson-sun/machwatch/internal/output/file"
	"github.com/crimson-sun/machwatch/internal/output/multi"
	"github.com/crimson-sun/machwatch/internal/output/stdout"
	"github.com/crimson-sun/machwatch/internal/output/webhook"
	"github.com/crimson-sun/machwatch/internal/pipeline"
	"github.com/crimson-sun/machwatch/internal/report"
)

var replayFlags struct {
	delay         time.Duration
	logFile       string
	model         string
	modelKind     string
	chartsDir     string
	historyDB     string
	webhook       string
	json          bool
	pretty        bool
	strictColumns bool
	preview       bool
	showLogs      bool
}

func newReplayCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replay <csv|s3://bucket/key>",
		Short: "Replay a sensor dataset through the failure classifier",
		Long: `Reads the dataset, then for each row in file order: fills missing readings
with the training minimum, normalizes, classifies, prints the row status and
appends one line to the log file. Use "-" to read the dataset from stdin.

Ctrl-C stops after the current row; rows already processed stay logged.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runReplay(cmd, args[0])
		},
	}

	f := cmd.Flags()
	f.DurationVar(&replayFlags.delay, "delay", 0, "pause before each row (default 500ms)")
	f.StringVar(&replayFlags.logFile, "log-file", "", "append-only prediction log")
	f.StringVar(&replayFlags.model, "model", "", "classifier artifact (.onnx, .yaml, .json)")
	f.StringVar(&replayFlags.modelKind, "model-kind", "", "force artifact kind: onnx or logistic")
	f.StringVar(&replayFlags.chartsDir, "charts-dir", "", "render prediction and sensor charts into this directory")
	f.StringVar(&replayFlags.historyDB, "history-db", "", "record the run in this SQLite database")
	f.StringVar(&replayFlags.webhook, "webhook", "", "POST failure alerts to this URL")
	f.BoolVar(&replayFlags.json, "json", false, "print NDJSON status events instead of text")
	f.BoolVar(&replayFlags.pretty, "pretty", false, "indent JSON status events")
	f.BoolVar(&replayFlags.strictColumns, "strict-columns", false, "fail when no sensor column is recognized")
	f.BoolVar(&replayFlags.preview, "preview", false, "print the first rows before replaying")
	f.BoolVar(&replayFlags.showLogs, "show-logs", false, "print the log tail when the replay completes")
	return cmd
}

func (a *app) applyReplayFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	c := &a.cfg
	if f.Changed("delay") {
		c.Replay.Delay = replayFlags.delay
	}
	if f.Changed("log-file") {
		c.Output.LogFile = replayFlags.logFile
	}
	if f.Changed("model") {
		c.Model.Path = replayFlags.model
	}
	if f.Changed("model-kind") {
		c.Model.Kind = replayFlags.modelKind
	}
	if f.Changed("charts-dir") {
		c.Output.ChartsDir = replayFlags.chartsDir
	}
	if f.Changed("history-db") {
		c.Output.HistoryDB = replayFlags.historyDB
	}
	if f.Changed("webhook") {
		c.Output.WebhookURL = replayFlags.webhook
	}
	if f.Changed("json") {
		c.Output.JSON = replayFlags.json
	}
	if f.Changed("pretty") {
		c.Output.Pretty = replayFlags.pretty
	}
	if f.Changed("strict-columns") {
		c.Dataset.StrictColumns = replayFlags.strictColumns
	}
}

func (a *app) runReplay(cmd *cobra.Command, location string) error {
	a.applyReplayFlags(cmd)
	cfg := a.cfg
	if err := errors.Join(cfg.Validate(), cfg.ValidateModel()); err != nil {
		return fmt.Errorf("invalid configuration:\n%w", err)
	}
	logging.Init(cfg.Output.JSON, logging.ParseLevel(cfg.LogLevel))
	ctx := cmd.Context()
	stdOut := cmd.OutOrStdout()

	// The whole dataset is read and validated before anything is opened, so a
	// malformed file leaves no trace in the log.
	ds, err := dataset.Load(ctx, a.sourceConfig(), location, a.datasetOptions())
	if err != nil {
		return err
	}
	if replayFlags.preview {
		w := stdOut
		if cfg.Output.JSON {
			w = cmd.ErrOrStderr()
		}
		fmt.Fprintln(w, report.Preview(ds, report.PreviewRows, report.ASCII))
	}

	pred, err := predictor.Load(cfg.Model.Path, predictor.Options{
		Kind:       predictor.Kind(cfg.Model.Kind),
		RuntimeLib: cfg.Model.RuntimeLib,
	})
	if err != nil {
		return err
	}
	defer pred.Close()

	outs, recorder, closeStore, err := a.openOutputs(ctx, stdOut, ds.Name)
	if err != nil {
		return err
	}
	defer closeStore()

	p := pipeline.New(engine.New(normalize.Default(), pred), multi.New(outs...),
		pipeline.WithDelay(cfg.Replay.Delay),
	)
	sum, runErr := p.Replay(ctx, ds)

	if recorder != nil {
		status := "completed"
		switch {
		case errors.Is(runErr, context.Canceled):
			status = "cancelled"
		case runErr != nil:
			status = "failed"
		}
		if err := recorder.Finish(status); err != nil {
			slog.Warn("history: finish run", "error", err)
		}
	}
	closeErr := p.Close()

	if errors.Is(runErr, context.Canceled) {
		slog.Info("replay interrupted", "rows", sum.Rows)
		runErr = nil
	}
	if err := errors.Join(runErr, closeErr); err != nil {
		return err
	}

	if !cfg.Output.JSON {
		fmt.Fprintln(stdOut, report.Summary(sum, report.ASCII))
		fmt.Fprintf(stdOut, "Monitoring completed. Logs saved to '%s'\n", cfg.Output.LogFile)
		if cfg.Output.ChartsDir != "" && sum.Rows >= 2 {
			fmt.Fprintf(stdOut, "Charts written to '%s'\n", cfg.Output.ChartsDir)
		}
		if replayFlags.showLogs {
			lines, err := file.Tail(cfg.Output.LogFile, cfg.Output.Tail)
			if err != nil {
				return err
			}
			fmt.Fprintln(stdOut, report.Logs(lines, report.ASCII))
		}
	}
	return nil
}

// openOutputs builds the status printer, the log sink and every optional
// side output. The returned cleanup closes the history store after the
// pipeline has closed its outputs.
func (a *app) openOutputs(ctx context.Context, stdOut io.Writer, source string) ([]output.Output, *history.Recorder, func(), error) {
	cfg := a.cfg
	var opened []output.Output
	fail := func(err error) ([]output.Output, *history.Recorder, func(), error) {
		multi.New(opened...).Close()
		return nil, nil, func() {}, err
	}

	sinkOpts := []file.Option{file.WithSync()}
	if cfg.Output.MaxLogSize > 0 {
		sinkOpts = append(sinkOpts, file.WithMaxSize(cfg.Output.MaxLogSize))
	}
	sink, err := file.New(cfg.Output.LogFile, sinkOpts...)
	if err != nil {
		return fail(err)
	}
	opened = append(opened, stdout.NewWriter(stdOut, cfg.Output.JSON, cfg.Output.Pretty), sink)

	if cfg.Output.ChartsDir != "" {
		ch, err := chart.New(cfg.Output.ChartsDir)
		if err != nil {
			return fail(err)
		}
		opened = append(opened, ch)
	}

	if cfg.Output.WebhookURL != "" {
		whOpts := []webhook.Option{
			webhook.WithSource(source),
			webhook.WithOnError(func(err error) { slog.Warn("webhook delivery failed", "error", err) }),
		}
		if cfg.Output.WebhookAllRows {
			whOpts = append(whOpts, webhook.WithAllRows())
		}
		opened = append(opened, async.New(webhook.New(cfg.Output.WebhookURL, whOpts...),
			async.WithBufferSize(cfg.Output.WebhookBuffer),
			async.WithDropOnFull(),
			async.WithOnError(func(err error) { slog.Warn("webhook output", "error", err) }),
		))
	}

	closeStore := func() {}
	var recorder *history.Recorder
	if cfg.Output.HistoryDB != "" {
		store, err := history.NewStore(cfg.Output.HistoryDB)
		if err != nil {
			return fail(err)
		}
		recorder, err = history.NewRecorder(ctx, store, source, filepath.Base(cfg.Model.Path))
		if err != nil {
			store.Close()
			return fail(err)
		}
		closeStore = func() {
			if err := store.Close(); err != nil {
				slog.Warn("history: close store", "error", err)
			}
		}
		opened = append(opened, recorder)
	}
	return opened, recorder, closeStore, nil
}
