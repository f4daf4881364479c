package cli

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/user/stickynotes/internal/model"
)

// Result holds the output of one command execution.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// resetFlags resets all command flags to their default values.
// Cobra keeps flag values between Execute calls on the same command tree.
func resetFlags() {
	// Reset global flags
	configPath = ""
	jsonOutput = false
	quiet = false
	verbose = false
	storageType = ""
	dataPath = ""
	remoteURL = ""
	// Reset serve command flags
	serveHost = ""
	servePort = -1
	serveWatch = false
	// Reset list command flags
	listPage = ""
	// Reset add command flags
	addPage = ""
	addContent = ""
	addX = 0
	addY = 0
	addColor = string(model.DefaultColor)
	addID = ""
	// Reset rm command flags
	rmPage = ""
	// Reset clear command flags
	clearPage = ""
	clearConfirm = false
	// Reset export command flags
	exportForce = false
	// Reset import command flags
	importConfirm = false
	// Reset migrate command flags
	migrateTo = ""
	migrateToDataPath = ""
	migrateToRemoteURL = ""
	migrateConfirm = false
}

// setupTestEnv mocks the exit function and returns a fresh data directory.
func setupTestEnv(t *testing.T) string {
	t.Helper()

	// Mock the exit function to capture exit code instead of exiting
	origExitFunc := ExitFunc
	ExitFunc = func(code int) {
		ExitCode = code
		// Don't actually exit in tests
	}
	ExitCode = 0

	// Keep the environment from overriding the flags under test.
	for _, key := range []string{"STORAGE_TYPE", "DATA_BASE_PATH", "REMOTE_BASE_URL", "LOG_LEVEL", "AUTH_ENABLED"} {
		t.Setenv(key, "")
	}

	t.Cleanup(func() {
		ExitFunc = origExitFunc
		ExitCode = 0
		resetFlags()
	})
	return t.TempDir()
}

// capture runs fn with os.Stdout and os.Stderr redirected to pipes.
func capture(t *testing.T, fn func()) (stdout, stderr string) {
	t.Helper()

	oldStdout, oldStderr := os.Stdout, os.Stderr
	outR, outW, err := os.Pipe()
	require.NoError(t, err)
	errR, errW, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout, os.Stderr = outW, errW

	var outBuf, errBuf bytes.Buffer
	done := make(chan struct{}, 2)
	go func() { io.Copy(&outBuf, outR); done <- struct{}{} }()
	go func() { io.Copy(&errBuf, errR); done <- struct{}{} }()

	defer func() {
		os.Stdout, os.Stderr = oldStdout, oldStderr
	}()
	fn()

	outW.Close()
	errW.Close()
	<-done
	<-done
	return outBuf.String(), errBuf.String()
}

// runCLI executes the command line the way main does and reports the
// captured output and exit code.
func runCLI(t *testing.T, args ...string) Result {
	t.Helper()

	resetFlags()
	ExitCode = 0
	rootCmd.SetArgs(args)

	stdout, stderr := capture(t, Execute)
	return Result{Stdout: stdout, Stderr: stderr, ExitCode: ExitCode}
}

// mustSucceed runs the command line and fails the test on a non-zero exit.
func mustSucceed(t *testing.T, args ...string) Result {
	t.Helper()

	result := runCLI(t, args...)
	require.Equal(t, 0, result.ExitCode,
		"expected success\nstdout: %s\nstderr: %s", result.Stdout, result.Stderr)
	return result
}

// storageArgs returns the global flags selecting a backend in dir.
func storageArgs(kind, dir string) []string {
	return []string{"--storage", kind, "--data-path", dir}
}

func withArgs(base []string, args ...string) []string {
	out := make([]string, 0, len(args)+len(base))
	out = append(out, args...)
	return append(out, base...)
}

// listNotes returns every stored note through `list --json`.
func listNotes(t *testing.T, base []string) []model.Note {
	t.Helper()

	result := mustSucceed(t, withArgs(base, "list", "--json")...)
	var notes []model.Note
	require.NoError(t, json.Unmarshal([]byte(result.Stdout), &notes), "output: %s", result.Stdout)
	return notes
}

// parseJSONError parses a structured error printed with --json.
func parseJSONError(t *testing.T, output string) JSONError {
	t.Helper()

	var jsonErr JSONError
	require.NoError(t, json.Unmarshal([]byte(output), &jsonErr), "output: %s", output)
	return jsonErr
}
