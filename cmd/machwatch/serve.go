package main

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/crimson-sun/machwatch/internal/engine"
	"github.com/crimson-sun/machwatch/internal/engine/normalize"
	"github.com/crimson-sun/machwatch/internal/engine/predictor"
	"github.com/crimson-sun/machwatch/internal/output/file"
	"github.com/crimson-sun/machwatch/internal/server"
)

var serveFlags struct {
	addr    string
	model   string
	logFile string
}

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve replays over HTTP",
		Long: `Starts the HTTP surface:

  GET  /healthz
  POST /api/v1/replay   multipart "file" upload, streams NDJSON status events
  GET  /api/v1/logs     last log lines as JSON (?tail=N)

Every replay appends to the same log file. SIGINT/SIGTERM shut the server
down gracefully.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f := cmd.Flags()
			if f.Changed("addr") {
				a.cfg.Server.Addr = serveFlags.addr
			}
			if f.Changed("model") {
				a.cfg.Model.Path = serveFlags.model
			}
			if f.Changed("log-file") {
				a.cfg.Output.LogFile = serveFlags.logFile
			}
			cfg := a.cfg
			if err := errors.Join(cfg.Validate(), cfg.ValidateModel()); err != nil {
				return fmt.Errorf("invalid configuration:\n%w", err)
			}

			pred, err := predictor.Load(cfg.Model.Path, predictor.Options{
				Kind:       predictor.Kind(cfg.Model.Kind),
				RuntimeLib: cfg.Model.RuntimeLib,
			})
			if err != nil {
				return err
			}
			defer pred.Close()

			sinkOpts := []file.Option{file.WithSync()}
			if cfg.Output.MaxLogSize > 0 {
				sinkOpts = append(sinkOpts, file.WithMaxSize(cfg.Output.MaxLogSize))
			}
			sink, err := file.New(cfg.Output.LogFile, sinkOpts...)
			if err != nil {
				return err
			}
			defer sink.Close()

			gin.SetMode(gin.ReleaseMode)
			srv := server.New(server.Config{
				Evaluator:      engine.New(normalize.Default(), pred),
				Log:            sink,
				LogPath:        cfg.Output.LogFile,
				Delay:          cfg.Replay.Delay,
				Dataset:        a.datasetOptions(),
				MaxUploadBytes: cfg.Server.MaxUploadBytes,
				Tail:           cfg.Output.Tail,
			})
			slog.Info("machwatch serving", "addr", cfg.Server.Addr, "model", cfg.Model.Path, "log_file", cfg.Output.LogFile)
			return srv.Run(cmd.Context(), cfg.Server.Addr)
		},
	}
	f := cmd.Flags()
	f.StringVar(&serveFlags.addr, "addr", "", "listen address (default :8080)")
	f.StringVar(&serveFlags.model, "model", "", "classifier artifact (.onnx, .yaml, .json)")
	f.StringVar(&serveFlags.logFile, "log-file", "", "append-only prediction log")
	return cmd
}
