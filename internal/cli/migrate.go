package cli

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/user/stickynotes/internal/config"
)

var (
	migrateTo          string
	migrateToDataPath  string
	migrateToRemoteURL string
	migrateConfirm     bool
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Copy every note into another storage backend",
	Long: `Read every note from the configured backend and import them into another
backend. The target's existing notes are replaced; the source is not
modified.

The target inherits the source's settings, so --to-data-path is needed
when both backends would share a data directory and file names.

Examples:
  stickynotes migrate --storage file --to sqlite --confirm
  stickynotes migrate --storage sqlite --to local --to-data-path ./data2 --confirm
  stickynotes migrate --storage file --to remote --to-remote-url http://host:3000/api --confirm`,
	Args: cobra.NoArgs,
	RunE: runMigrate,
}

func init() {
	migrateCmd.Flags().StringVar(&migrateTo, "to", "", "Target storage backend: local, file, sqlite or remote (required)")
	migrateCmd.Flags().StringVar(&migrateToDataPath, "to-data-path", "", "Data directory of the target (default: same as source)")
	migrateCmd.Flags().StringVar(&migrateToRemoteURL, "to-remote-url", "", "API base URL when the target is remote")
	migrateCmd.Flags().BoolVar(&migrateConfirm, "confirm", false, "Confirm replacing the target's notes")
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	if migrateTo == "" {
		ExitValidationError("--to is required", nil)
		return nil
	}

	target := cfg
	target.Storage.Type = strings.ToLower(migrateTo)
	if migrateToDataPath != "" {
		target.Storage.DataPath = migrateToDataPath
	}
	if migrateToRemoteURL != "" {
		target.Storage.Remote.BaseURL = migrateToRemoteURL
	}
	if err := target.Validate(); err != nil {
		return fmt.Errorf("invalid migration target: %w", err)
	}
	if sameBackend(cfg.Storage, target.Storage) {
		ExitValidationError("source and target storage are the same",
			map[string]interface{}{"storage": target.Storage.Type})
		return nil
	}

	if !migrateConfirm {
		ExitConfirmRequired(fmt.Sprintf("replacing all notes in %s storage", target.Storage.Type))
		return nil
	}

	ctx := cmd.Context()
	source, err := openStorage(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to open source storage: %w", err)
	}
	defer closeStorage(source)

	notes, err := source.GetAllNotes(ctx)
	if err != nil {
		return fmt.Errorf("failed to read source notes: %w", err)
	}

	dest, err := openStorage(ctx, target.Storage)
	if err != nil {
		return fmt.Errorf("failed to open target storage: %w", err)
	}
	defer closeStorage(dest)

	if err := dest.ImportData(ctx, notes); err != nil {
		return fmt.Errorf("failed to write target notes: %w", err)
	}

	if GetJSONOutput() {
		data, _ := json.Marshal(map[string]interface{}{
			"from":  cfg.Storage.Type,
			"to":    target.Storage.Type,
			"count": len(notes),
		})
		fmt.Println(string(data))
	} else if !IsQuiet() {
		fmt.Printf("Migrated %d note(s) from %s to %s\n", len(notes), cfg.Storage.Type, target.Storage.Type)
	}
	return nil
}

// sameBackend reports whether a and b would open the same underlying data.
func sameBackend(a, b config.Storage) bool {
	if a.Type != b.Type {
		return false
	}
	if a.Type == config.StorageRemote {
		return strings.TrimRight(a.Remote.BaseURL, "/") == strings.TrimRight(b.Remote.BaseURL, "/")
	}
	return filepath.Clean(a.DataPath) == filepath.Clean(b.DataPath)
}
