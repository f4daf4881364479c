package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/user/stickynotes/internal/model"
)

var importConfirm bool

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Replace all notes with the contents of a JSON export",
	Long: `Replace every stored note with the notes in a JSON array, as written by
'stickynotes export' or the widget's export button. Use - to read stdin.

Entries without an id or page group are skipped. Two entries sharing an
id reject the whole file before anything is deleted.

The import discards all existing notes, so it refuses to run without
--confirm.

Examples:
  stickynotes import notes.json --confirm
  cat notes.json | stickynotes import - --confirm`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	importCmd.Flags().BoolVar(&importConfirm, "confirm", false, "Confirm replacing all stored notes")
	rootCmd.AddCommand(importCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	inPath := args[0]

	data, err := readImportFile(inPath)
	if err != nil {
		if os.IsNotExist(err) {
			ExitWithError(1, ErrCodeNotFound,
				fmt.Sprintf("file not found: %s", inPath),
				map[string]interface{}{"file": inPath})
			return nil
		}
		return fmt.Errorf("failed to read import file: %w", err)
	}

	notes, err := model.DecodeImport(data)
	if err != nil {
		return err
	}
	kept, err := model.PrepareImport(notes)
	if err != nil {
		return err
	}

	if !importConfirm {
		ExitConfirmRequired(fmt.Sprintf("importing %d note(s) over all stored notes", len(kept)))
		return nil
	}

	store, err := openStorage(cmd.Context(), cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer closeStorage(store)

	if err := store.ImportData(cmd.Context(), notes); err != nil {
		return fmt.Errorf("failed to import notes: %w", err)
	}

	skipped := len(notes) - len(kept)
	if GetJSONOutput() {
		result, _ := json.Marshal(map[string]interface{}{
			"imported": len(kept),
			"skipped":  skipped,
		})
		fmt.Println(string(result))
	} else if !IsQuiet() {
		fmt.Printf("Imported %d note(s)", len(kept))
		if skipped > 0 {
			fmt.Printf(", skipped %d without id or page group", skipped)
		}
		fmt.Println()
	}
	return nil
}

func readImportFile(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}
