package cli

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/user/stickynotes/internal/config"
	"github.com/user/stickynotes/internal/model"
	"github.com/user/stickynotes/internal/server"
	"github.com/user/stickynotes/internal/storage"
)

func TestServe(t *testing.T) {
	t.Run("records pid file until shut down", func(t *testing.T) {
		dir := setupTestEnv(t)
		pidPath := filepath.Join(dir, "server.pid")

		resetFlags()
		rootCmd.SetArgs([]string{"serve", "--storage", "file", "--data-path", dir,
			"--host", "127.0.0.1", "--port", "0", "--watch"})

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		errCh := make(chan error, 1)
		go func() {
			errCh <- rootCmd.ExecuteContext(ctx)
		}()

		require.Eventually(t, func() bool {
			pid, err := server.ReadPID(pidPath)
			return err == nil && pid == os.Getpid()
		}, 5*time.Second, 20*time.Millisecond)

		cancel()
		select {
		case err := <-errCh:
			require.NoError(t, err)
		case <-time.After(15 * time.Second):
			t.Fatal("serve did not shut down")
		}
		assert.NoFileExists(t, pidPath)
		assert.DirExists(t, filepath.Join(dir, "notes_files"))
	})

	t.Run("refuses a second server on the same data", func(t *testing.T) {
		dir := setupTestEnv(t)
		// The parent of the test binary is a live process.
		require.NoError(t, server.WritePID(filepath.Join(dir, "server.pid"), os.Getppid()))

		result := runCLI(t, "serve", "--storage", "sqlite", "--data-path", dir,
			"--host", "127.0.0.1", "--port", "0", "--json")
		assert.Equal(t, 1, result.ExitCode)
		assert.Equal(t, ErrCodeAlreadyRunning, parseJSONError(t, result.Stdout).Code)
	})

	t.Run("invalid port", func(t *testing.T) {
		dir := setupTestEnv(t)

		result := runCLI(t, "serve", "--storage", "file", "--data-path", dir, "--port", "70000")
		assert.Equal(t, 1, result.ExitCode)
		assert.Contains(t, result.Stderr, "server.port out of range")
	})
}

func TestUsesDataPath(t *testing.T) {
	tests := []struct {
		name string
		sc   config.Storage
		want bool
	}{
		{"file", config.Storage{Type: config.StorageFile}, true},
		{"sqlite", config.Storage{Type: config.StorageSQLite}, true},
		{"local on disk", config.Storage{Type: config.StorageLocal}, true},
		{"local in memory", config.Storage{Type: config.StorageLocal, Local: config.LocalStorage{InMemory: true}}, false},
		{"remote", config.Storage{Type: config.StorageRemote}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, usesDataPath(tt.sc))
		})
	}
}

// startAPI serves a file store in dir and returns the remote base URL.
func startAPI(t *testing.T, dir string) string {
	t.Helper()

	c := config.Default()
	c.Storage.Type = config.StorageFile
	c.Storage.DataPath = dir

	store, err := storage.New(c.Storage, nil)
	require.NoError(t, err)
	require.NoError(t, store.Init(context.Background()))
	t.Cleanup(func() { store.Close() })

	srv := httptest.NewServer(server.New(c, store, nil).Handler())
	t.Cleanup(srv.Close)
	return srv.URL + "/api"
}

func TestMigrate(t *testing.T) {
	seed := func(t *testing.T, base []string) {
		t.Helper()
		mustSucceed(t, withArgs(base, "add", "--page", "a", "--id", "n1", "--content", "one")...)
		mustSucceed(t, withArgs(base, "add", "--page", "b", "--id", "n2", "--content", "two", "--color", "pink")...)
	}
	assertSame := func(t *testing.T, want, got []model.Note) {
		t.Helper()
		require.Len(t, got, len(want))
		sortByID(want)
		sortByID(got)
		for i := range want {
			assert.True(t, model.SameContent(want[i], got[i]), "want %+v, got %+v", want[i], got[i])
		}
	}

	t.Run("file to sqlite in the same directory", func(t *testing.T) {
		dir := setupTestEnv(t)
		source := storageArgs("file", dir)
		seed(t, source)

		result := mustSucceed(t, withArgs(source, "migrate", "--to", "sqlite", "--confirm", "--json")...)
		var out map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(result.Stdout), &out))
		assert.Equal(t, float64(2), out["count"])

		assertSame(t, listNotes(t, source), listNotes(t, storageArgs("sqlite", dir)))
	})

	t.Run("sqlite to local in another directory", func(t *testing.T) {
		dir := setupTestEnv(t)
		target := filepath.Join(dir, "target")
		source := storageArgs("sqlite", dir)
		seed(t, source)

		mustSucceed(t, withArgs(source, "migrate", "--to", "local", "--to-data-path", target, "--confirm")...)

		assertSame(t, listNotes(t, source), listNotes(t, storageArgs("local", target)))
	})

	t.Run("file to remote", func(t *testing.T) {
		dir := setupTestEnv(t)
		apiURL := startAPI(t, filepath.Join(dir, "remote"))
		source := storageArgs("file", dir)
		seed(t, source)

		mustSucceed(t, withArgs(source, "migrate", "--to", "remote", "--to-remote-url", apiURL, "--confirm")...)

		remote := []string{"--storage", "remote", "--remote-url", apiURL}
		assertSame(t, listNotes(t, source), listNotes(t, remote))
	})

	t.Run("replaces target notes", func(t *testing.T) {
		dir := setupTestEnv(t)
		source := storageArgs("file", dir)
		seed(t, source)
		mustSucceed(t, withArgs(storageArgs("sqlite", dir), "add", "--page", "c", "--id", "stale")...)

		mustSucceed(t, withArgs(source, "migrate", "--to", "sqlite", "--confirm")...)

		assertSame(t, listNotes(t, source), listNotes(t, storageArgs("sqlite", dir)))
	})

	t.Run("same backend", func(t *testing.T) {
		dir := setupTestEnv(t)
		result := runCLI(t, withArgs(storageArgs("file", dir), "migrate", "--to", "file", "--confirm")...)
		assert.Equal(t, 2, result.ExitCode)
	})

	t.Run("requires confirm", func(t *testing.T) {
		dir := setupTestEnv(t)
		source := storageArgs("file", dir)
		seed(t, source)

		result := runCLI(t, withArgs(source, "migrate", "--to", "sqlite")...)
		assert.Equal(t, 1, result.ExitCode)
		assert.NoFileExists(t, filepath.Join(dir, "notes.db"))
	})

	t.Run("requires target", func(t *testing.T) {
		dir := setupTestEnv(t)
		result := runCLI(t, withArgs(storageArgs("file", dir), "migrate")...)
		assert.Equal(t, 2, result.ExitCode)
	})

	t.Run("remote target without url", func(t *testing.T) {
		dir := setupTestEnv(t)
		result := runCLI(t, withArgs(storageArgs("file", dir), "migrate", "--to", "remote", "--confirm", "--json")...)
		assert.Equal(t, 1, result.ExitCode)
		assert.Equal(t, ErrCodeConfig, parseJSONError(t, result.Stdout).Code)
	})
}
