package main

import (
	"fmt"
	"os"
	"time"

	"bookable/internal/config"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	Version   = "dev"
	CommitSHA = "none"
	BuildDate = "unknown"
)

// configPathEnv overrides the default config location.
const configPathEnv = "BOOKABLE_CONFIG_PATH"

type rootOptions struct {
	configPath string
	envFile    string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "bookable",
		Short:         "Reservation availability engine: validates ranges and enumerates free slots",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// A missing .env is normal outside development.
			if err := godotenv.Load(opts.envFile); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("load %s: %w", opts.envFile, err)
			}
			if opts.configPath == "" {
				opts.configPath = os.Getenv(configPathEnv)
			}
			return nil
		},
	}

	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "",
		"path to config.yaml (default $"+configPathEnv+" or "+config.DefaultPath+")")
	root.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before the config")

	root.AddCommand(newVersionCmd())
	root.AddCommand(newServeCmd(opts))
	root.AddCommand(newImportCmd(opts))
	root.AddCommand(newExportCmd(opts))
	root.AddCommand(newCheckCmd(opts))
	root.AddCommand(newBackupCmd(opts))

	return root
}

func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setup loads the config and builds the process logger.
func setup(opts *rootOptions) (*config.Config, zerolog.Logger, error) {
	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	logger := zerolog.New(output).With().Timestamp().Logger()

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, logger, err
	}
	logger = logger.Level(cfg.LogLevel())
	return cfg, logger, nil
}
