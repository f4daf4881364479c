package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/user/stickynotes/internal/config"
	"github.com/user/stickynotes/internal/model"
	"github.com/user/stickynotes/internal/server"
	"go.uber.org/zap/zapcore"
)

func TestConfigResolution(t *testing.T) {
	t.Run("config file selects the backend", func(t *testing.T) {
		dir := setupTestEnv(t)
		cfgPath := filepath.Join(dir, "stickynotes.yaml")
		require.NoError(t, os.WriteFile(cfgPath, []byte(fmt.Sprintf(
			"storage:\n  type: sqlite\n  data_path: %s\n", dir)), 0644))

		mustSucceed(t, "--config", cfgPath, "add", "--page", "a", "--id", "n1")
		assert.Equal(t, config.StorageSQLite, cfg.Storage.Type)
		assert.FileExists(t, filepath.Join(dir, "notes.db"))
	})

	t.Run("flags override the environment", func(t *testing.T) {
		dir := setupTestEnv(t)
		t.Setenv("STORAGE_TYPE", "sqlite")
		t.Setenv("DATA_BASE_PATH", filepath.Join(dir, "env"))

		mustSucceed(t, "--storage", "FILE", "--data-path", dir, "list")
		assert.Equal(t, config.StorageFile, cfg.Storage.Type)
		assert.Equal(t, dir, cfg.Storage.DataPath)
	})

	t.Run("environment applies without flags", func(t *testing.T) {
		dir := setupTestEnv(t)
		t.Setenv("STORAGE_TYPE", "local")
		t.Setenv("DATA_BASE_PATH", dir)

		mustSucceed(t, "list")
		assert.Equal(t, config.StorageLocal, cfg.Storage.Type)
		assert.DirExists(t, filepath.Join(dir, "local.db"))
	})

	t.Run("unknown storage type", func(t *testing.T) {
		dir := setupTestEnv(t)

		result := runCLI(t, "--storage", "mongo", "--data-path", dir, "list", "--json")
		assert.Equal(t, 1, result.ExitCode)
		jsonErr := parseJSONError(t, result.Stdout)
		assert.Equal(t, ErrCodeConfig, jsonErr.Code)
		assert.Contains(t, jsonErr.Message, "mongo")
	})

	t.Run("missing config file", func(t *testing.T) {
		dir := setupTestEnv(t)

		result := runCLI(t, "--config", filepath.Join(dir, "absent.yaml"), "list")
		assert.Equal(t, 1, result.ExitCode)
		assert.Contains(t, result.Stderr, "failed to read config file")
	})

	t.Run("invalid log level", func(t *testing.T) {
		dir := setupTestEnv(t)
		t.Setenv("LOG_LEVEL", "loud")

		result := runCLI(t, "--storage", "file", "--data-path", dir, "list", "--json")
		assert.Equal(t, 1, result.ExitCode)
		assert.Equal(t, ErrCodeConfig, parseJSONError(t, result.Stdout).Code)
	})
}

func TestNewLogger(t *testing.T) {
	t.Cleanup(resetFlags)

	tests := []struct {
		name    string
		log     config.Log
		serving bool
		verbose bool
		want    zapcore.Level
	}{
		{"serve uses configured level", config.Log{Level: "info"}, true, false, zapcore.InfoLevel},
		{"commands only warn", config.Log{Level: "info"}, false, false, zapcore.WarnLevel},
		{"verbose enables debug", config.Log{Level: "error", Format: "json"}, false, true, zapcore.DebugLevel},
		{"empty level is info", config.Log{}, true, false, zapcore.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verbose = tt.verbose
			l, err := newLogger(tt.log, tt.serving)
			require.NoError(t, err)

			assert.True(t, l.Core().Enabled(tt.want))
			if tt.want > zapcore.DebugLevel {
				assert.False(t, l.Core().Enabled(tt.want-1))
			}
		})
	}
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantExit int
		wantCode string
	}{
		{"validation", fmt.Errorf("failed: %w", model.ErrValidation), 2, ErrCodeValidation},
		{"config", fmt.Errorf("%w: bad", config.ErrInvalidConfig), 1, ErrCodeConfig},
		{"not found", model.ErrNotFound, 4, ErrCodeNotFound},
		{"already running", server.ErrAlreadyRunning, 1, ErrCodeAlreadyRunning},
		{"init", fmt.Errorf("%w: disk", model.ErrInit), 1, ErrCodeStorage},
		{"closed", model.ErrStorageClosed, 1, ErrCodeStorage},
		{"other", errors.New("boom"), 1, ErrCodeCommand},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exit, code := classifyError(tt.err)
			assert.Equal(t, tt.wantExit, exit)
			assert.Equal(t, tt.wantCode, code)
		})
	}
}

func TestUnknownCommand(t *testing.T) {
	setupTestEnv(t)

	result := runCLI(t, "frobnicate")
	assert.Equal(t, 1, result.ExitCode)
	assert.Contains(t, result.Stderr, "unknown command")
}
