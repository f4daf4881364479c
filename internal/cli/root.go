// Package cli provides the command-line interface for stickynotes.
package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/user/stickynotes/internal/config"
	"github.com/user/stickynotes/internal/storage"
	"go.uber.org/zap"
)

// Global flags
var (
	configPath  string
	jsonOutput  bool
	quiet       bool
	verbose     bool
	storageType string
	dataPath    string
	remoteURL   string
)

// Resolved by the root PersistentPreRunE before any subcommand runs.
var (
	cfg    = config.Default()
	logger = zap.NewNop()
)

// skipConfigAnnotation marks commands that run without loading configuration.
const skipConfigAnnotation = "skip-config"

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "stickynotes",
	Short: "Storage server and tools for the sticky notes widget",
	Long: `stickynotes stores the notes of the sticky notes browser widget and
serves them over a small JSON API.

Notes can live in one of four backends:
  - local:  embedded key-value store in the data directory
  - file:   one JSON file per page group plus an index manifest
  - sqlite: single SQLite database file
  - remote: another stickynotes server reached over HTTP

Configuration is read from --config (YAML), then the environment
(PORT, HOST, STORAGE_TYPE, DATA_BASE_PATH, ...), then flags.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadConfig,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		code, errCode := classifyError(err)
		ExitWithError(code, errCode, err.Error(), nil)
	}
}

func init() {
	// Global flags available to all commands
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a YAML configuration file")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVar(&quiet, "quiet", false, "Suppress non-essential output")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "Enable debug output")
	rootCmd.PersistentFlags().StringVar(&storageType, "storage", "", "Storage backend: local, file, sqlite or remote")
	rootCmd.PersistentFlags().StringVar(&dataPath, "data-path", "", "Base directory for local, file and sqlite data")
	rootCmd.PersistentFlags().StringVar(&remoteURL, "remote-url", "", "API base URL for remote storage")
}

// loadConfig resolves the configuration and logger for the command being run.
func loadConfig(cmd *cobra.Command, args []string) error {
	if cmd.Annotations[skipConfigAnnotation] == "true" {
		return nil
	}

	c, err := config.Load(configPath, os.LookupEnv)
	if err != nil {
		return err
	}
	if storageType != "" {
		c.Storage.Type = strings.ToLower(storageType)
	}
	if dataPath != "" {
		c.Storage.DataPath = dataPath
	}
	if remoteURL != "" {
		c.Storage.Remote.BaseURL = remoteURL
	}
	if err := c.Validate(); err != nil {
		return err
	}

	l, err := newLogger(c.Log, cmd.Name() == "serve")
	if err != nil {
		return err
	}

	cfg = c
	logger = l
	return nil
}

// newLogger builds the process logger. Commands other than serve only
// report warnings unless --verbose is set.
func newLogger(lc config.Log, serving bool) (*zap.Logger, error) {
	var zc zap.Config
	if lc.Format == "json" {
		zc = zap.NewProductionConfig()
	} else {
		zc = zap.NewDevelopmentConfig()
		zc.DisableStacktrace = true
	}

	level, err := zap.ParseAtomicLevel(lc.Level)
	if err != nil {
		return nil, fmt.Errorf("%w: log.level: %v", config.ErrInvalidConfig, err)
	}
	if !serving {
		level.SetLevel(zap.WarnLevel)
	}
	if verbose {
		level.SetLevel(zap.DebugLevel)
	}
	zc.Level = level

	l, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return l, nil
}

// openStorage creates and initializes the backend described by sc.
func openStorage(ctx context.Context, sc config.Storage) (storage.Storage, error) {
	store, err := storage.New(sc, logger)
	if err != nil {
		return nil, err
	}
	if err := store.Init(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

// closeStorage closes store, logging rather than returning the error so
// it can be deferred.
func closeStorage(store storage.Storage) {
	if err := store.Close(); err != nil {
		logger.Warn("failed to close storage", zap.Error(err))
	}
}

// ExitCode is used to communicate exit codes for testing
var ExitCode int

// ExitFunc is the function called to exit the program
// Can be overridden for testing
var ExitFunc = os.Exit

// Exit sets the exit code and calls the exit function
func Exit(code int) {
	ExitCode = code
	ExitFunc(code)
}

// GetJSONOutput returns whether JSON output is enabled
func GetJSONOutput() bool {
	return jsonOutput
}

// IsQuiet returns whether quiet mode is enabled
func IsQuiet() bool {
	return quiet
}

// IsVerbose returns whether verbose mode is enabled
func IsVerbose() bool {
	return verbose
}
