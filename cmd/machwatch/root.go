package main

import (
	"github.com/spf13/cobra"

	"github.com/crimson-sun/machwatch/internal/config"
	"github.com/crimson-sun/machwatch/internal/dataset"
	"github.com/crimson-sun/machwatch/internal/logging"

	// Register dataset sources.
	_ "github.com/crimson-sun/machwatch/internal/dataset/file"
	_ "github.com/crimson-sun/machwatch/internal/dataset/s3"
	_ "github.com/crimson-sun/machwatch/internal/dataset/web"
)

// app carries state shared by every subcommand once the root has loaded
// configuration.
type app struct {
	configPath string
	logLevel   string
	cfg        config.Config
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "machwatch",
		Short: "Predictive maintenance monitor for machine sensor data",
		Long: "machwatch replays sensor readings row by row, classifies each one with a\n" +
			"pre-trained failure model, and keeps an append-only log of every prediction.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load(cmd)
		},
	}

	f := root.PersistentFlags()
	f.StringVar(&a.configPath, "config", "", "YAML config file")
	f.StringVar(&a.logLevel, "log-level", "", "debug, info, warn or error (default from config)")

	root.AddCommand(
		newReplayCmd(a),
		newPreviewCmd(a),
		newLogsCmd(a),
		newHistoryCmd(a),
		newServeCmd(a),
	)
	return root
}

func (a *app) load(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("log-level") {
		cfg.LogLevel = a.logLevel
	}
	a.cfg = cfg
	logging.Init(false, logging.ParseLevel(cfg.LogLevel))
	return nil
}

func (a *app) sourceConfig() dataset.SourceConfig {
	s3 := a.cfg.Dataset.S3
	return dataset.SourceConfig{
		Endpoint:  s3.Endpoint,
		AccessKey: s3.AccessKey,
		SecretKey: s3.SecretKey,
		Region:    s3.Region,
		Secure:    s3.Secure,
		Token:     a.cfg.Dataset.HTTPToken,
	}
}

func (a *app) datasetOptions() dataset.Options {
	return dataset.Options{Comma: a.cfg.Comma(), Strict: a.cfg.Dataset.StrictColumns}
}
