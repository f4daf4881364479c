package cli

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/user/stickynotes/internal/config"
	"github.com/user/stickynotes/internal/server"
	"github.com/user/stickynotes/internal/storage"
	"go.uber.org/zap"
)

var (
	serveHost  string
	servePort  int
	serveWatch bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the notes API server",
	Long: `Start the HTTP API used by the sticky notes widget over the configured
storage backend. The server runs until interrupted (SIGINT or SIGTERM),
then finishes in-flight requests and closes the storage.

While running, the server records its process id in <data-path>/server.pid
and refuses to start if another live server already holds that file.

Examples:
  stickynotes serve
  stickynotes serve --port 8080 --storage sqlite
  stickynotes serve --storage file --watch`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Listen host (overrides server.host)")
	serveCmd.Flags().IntVar(&servePort, "port", -1, "Listen port (overrides server.port)")
	serveCmd.Flags().BoolVar(&serveWatch, "watch", false, "Log changes made to file storage by other processes")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	c := cfg
	if serveHost != "" {
		c.Server.Host = serveHost
	}
	if servePort >= 0 {
		c.Server.Port = servePort
	}
	if serveWatch {
		c.Storage.File.Watch = true
	}
	if err := c.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if usesDataPath(c.Storage) {
		pidPath := c.Storage.PIDPath()
		release, err := server.AcquirePIDFile(pidPath)
		if err != nil {
			if errors.Is(err, server.ErrAlreadyRunning) {
				ExitWithError(1, ErrCodeAlreadyRunning, err.Error(),
					map[string]interface{}{"pid_file": pidPath})
				return nil
			}
			return err
		}
		defer func() {
			if err := release(); err != nil {
				logger.Warn("failed to remove pid file", zap.Error(err))
			}
		}()
	}

	store, err := openStorage(ctx, c.Storage)
	if err != nil {
		return fmt.Errorf("failed to open %s storage: %w", c.Storage.Type, err)
	}
	defer closeStorage(store)

	if fs, ok := store.(*storage.FileStorage); ok && c.Storage.File.Watch {
		watcher, err := storage.WatchStorage(fs, logFileChange, logger)
		if err != nil {
			return fmt.Errorf("failed to watch notes directory: %w", err)
		}
		defer watcher.Close()
		if err := watcher.Start(); err != nil {
			return fmt.Errorf("failed to watch notes directory: %w", err)
		}
	}

	return server.New(c, store, logger).ListenAndServe(ctx)
}

// usesDataPath reports whether the backend keeps its data under DataPath.
func usesDataPath(sc config.Storage) bool {
	switch sc.Type {
	case config.StorageRemote:
		return false
	case config.StorageLocal:
		return !sc.Local.InMemory
	default:
		return true
	}
}

func logFileChange(change storage.FileChange) {
	if change.Index {
		logger.Info("notes index changed on disk", zap.Bool("removed", change.Removed))
		return
	}
	logger.Info("notes group changed on disk",
		zap.String("group_key", change.GroupKey),
		zap.Bool("removed", change.Removed),
	)
}
