package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/soundprediction/ontoweave/pkg/config"
	"github.com/soundprediction/ontoweave/pkg/logger"
	"github.com/soundprediction/ontoweave/pkg/telemetry"
)

var (
	cfgFile string

	// cfg and log are set before any subcommand runs.
	cfg *config.Config
	log *slog.Logger
	// errorSink is closed after the command so buffered error records reach disk.
	errorSink *telemetry.ParquetHandler

	rootCmd = &cobra.Command{
		Use:   "ontoweave",
		Short: "Ontoweave: ontology consistency engine",
		Long: `Ontoweave keeps an incrementally built ontology a single consistent tree and
checks knowledge graph triplets against it.

Concept batches are validated before they are committed, fragmented ontologies
are stitched back together with merge, bridge and prune operations, and triplets
are admitted only when they conform to the class hierarchy and property
domains and ranges.`,
		SilenceUsage:       true,
		PersistentPreRunE:  setup,
		PersistentPostRunE: teardown,
	}
)

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.ontoweave.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "color", "log format (color, text, json)")
	rootCmd.PersistentFlags().String("name", "default", "name the ontology and knowledge graph are stored under")
	rootCmd.PersistentFlags().String("storage-driver", "file", "storage driver (file, badger)")
	rootCmd.PersistentFlags().String("storage-path", "./ontoweave_data", "storage directory")

	_ = viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format"))
	_ = viper.BindPFlag("storage.name", rootCmd.PersistentFlags().Lookup("name"))
	_ = viper.BindPFlag("storage.driver", rootCmd.PersistentFlags().Lookup("storage-driver"))
	_ = viper.BindPFlag("storage.path", rootCmd.PersistentFlags().Lookup("storage-path"))
}

func setup(cmd *cobra.Command, args []string) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load .env: %w", err)
	}
	if err := initConfig(); err != nil {
		return err
	}

	var err error
	cfg, err = config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	handler := logger.NewHandler(cfg.Log, os.Stderr)
	if cfg.Telemetry.ParquetPath != "" {
		errorSink, err = telemetry.NewParquetHandler(handler, cfg.Telemetry.ParquetPath)
		if err != nil {
			return err
		}
		handler = errorSink
	}
	log = slog.New(handler)
	slog.SetDefault(log)
	return nil
}

func teardown(cmd *cobra.Command, args []string) error {
	if errorSink == nil {
		return nil
	}
	return errorSink.Close()
}

// initConfig reads in config file and ENV variables if set.
func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(home)
		}
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".ontoweave")
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config: %w", err)
		}
		return nil
	}
	fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	return nil
}
