package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/user/stickynotes/internal/config"
)

var rmPage string

var rmCmd = &cobra.Command{
	Use:     "rm <id>",
	Aliases: []string{"delete", "remove"},
	Short:   "Delete a note",
	Long: `Delete a note by id. Deleting a note that does not exist is not an error.

File storage keeps one file per page group and needs --page to find the
note; the other backends locate notes by id alone.

Examples:
  stickynotes rm note-1
  stickynotes rm note-1 --page https://example.com --storage file`,
	Args: cobra.ExactArgs(1),
	RunE: runRm,
}

func init() {
	rmCmd.Flags().StringVar(&rmPage, "page", "", "Page group of the note (required for file storage)")
	rootCmd.AddCommand(rmCmd)
}

func runRm(cmd *cobra.Command, args []string) error {
	noteID := args[0]

	if rmPage == "" && cfg.Storage.Type == config.StorageFile {
		ExitValidationError("--page is required for file storage",
			map[string]interface{}{"id": noteID})
		return nil
	}

	store, err := openStorage(cmd.Context(), cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer closeStorage(store)

	if err := store.DeleteNote(cmd.Context(), noteID, rmPage); err != nil {
		return fmt.Errorf("failed to delete note: %w", err)
	}

	if GetJSONOutput() {
		data, _ := json.Marshal(map[string]interface{}{
			"id":      noteID,
			"deleted": true,
		})
		fmt.Println(string(data))
	} else if !IsQuiet() {
		fmt.Printf("Deleted note %s\n", noteID)
	}
	return nil
}
