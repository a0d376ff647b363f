// Package cli implements the contextmem operator commands.
package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/lewisedginton/contextmemory/internal/config"
	"github.com/lewisedginton/contextmemory/pkg/logger"
)

const (
	metaConfig = "config"
	metaLogger = "logger"
)

// NewApp builds the contextmem application. Command output goes to out,
// logs go to stderr unless the config says otherwise.
func NewApp(out io.Writer) *cli.App {
	return &cli.App{
		Name:    "contextmem",
		Usage:   "Inspect and operate a persisted context memory",
		Version: "1.0.0",
		Writer:  out,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config-file",
				Usage:   "Path to a YAML configuration file",
				EnvVars: []string{"CONFIG_FILE"},
			},
			&cli.StringSliceFlag{
				Name:  "env-file",
				Usage: "dotenv files loaded before reading the environment",
				Value: cli.NewStringSlice(".env"),
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Override the configured log level (debug, info, warn, error)",
			},
			&cli.StringFlag{
				Name:    "session",
				Aliases: []string{"s"},
				Usage:   "Operate on a per-session store instead of the shared one",
				EnvVars: []string{"CONTEXTMEM_SESSION"},
			},
		},
		Before: func(c *cli.Context) error {
			cfg, err := config.Load(c.String("config-file"), c.StringSlice("env-file")...)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if c.IsSet("log-level") {
				cfg.Common.LogLevel = c.String("log-level")
			}

			log := logger.NewLogger(logger.Config{
				Level:   cfg.GetLogLevel(),
				Format:  cfg.Common.LogFormat,
				Service: config.ServiceName,
				Output:  os.Stderr,
			})

			c.App.Metadata = map[string]interface{}{
				metaConfig: cfg,
				metaLogger: log,
			}
			return nil
		},
		Commands: []*cli.Command{
			StoreCommand(),
			RetrieveCommand(),
			PeekCommand(),
			GetCommand(),
			SimilarCommand(),
			RecentCommand(),
			StatsCommand(),
			BuildCommand(),
			ClearCommand(),
			PrefsCommand(),
			SessionsCommand(),
			HistoryCommand(),
			ServeCommand(),
			ConfigCommand(),
		},
	}
}

// getLogger retrieves the logger from the CLI context metadata
func getLogger(c *cli.Context) logger.Logger {
	if log, ok := c.App.Metadata[metaLogger].(logger.Logger); ok {
		return log
	}
	return logger.NewLogger(logger.Config{Level: logger.InfoLevel, Service: config.ServiceName, Output: os.Stderr})
}

func getConfig(c *cli.Context) (config.AppConfig, error) {
	cfg, ok := c.App.Metadata[metaConfig].(config.AppConfig)
	if !ok {
		return config.AppConfig{}, fmt.Errorf("configuration not loaded")
	}
	return cfg, nil
}
