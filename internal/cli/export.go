package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/user/stickynotes/internal/model"
)

var exportForce bool

var exportCmd = &cobra.Command{
	Use:   "export [file]",
	Short: "Export every note as a JSON array",
	Long: `Write every stored note as a JSON array, the same format the widget's
export button produces and 'stickynotes import' reads. Without a file the
array is written to stdout.

Examples:
  stickynotes export
  stickynotes export notes.json
  stickynotes export notes.json --force   # Overwrite an existing file`,
	Args: cobra.MaximumNArgs(1),
	RunE: runExport,
}

func init() {
	exportCmd.Flags().BoolVarP(&exportForce, "force", "f", false, "Overwrite an existing file")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	var outPath string
	if len(args) == 1 {
		outPath = args[0]
		if _, err := os.Stat(outPath); err == nil && !exportForce {
			ExitWithError(1, ErrCodeFileExists,
				fmt.Sprintf("file '%s' already exists (use --force to overwrite)", outPath),
				map[string]interface{}{"file": outPath})
			return nil
		}
	}

	store, err := openStorage(cmd.Context(), cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer closeStorage(store)

	notes, err := store.GetAllNotes(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to read notes: %w", err)
	}
	if notes == nil {
		notes = []model.Note{}
	}

	data, err := json.MarshalIndent(notes, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal notes: %w", err)
	}
	data = append(data, '\n')

	if outPath == "" {
		_, err := os.Stdout.Write(data)
		return err
	}

	if err := os.WriteFile(outPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write export file: %w", err)
	}

	if GetJSONOutput() {
		result, _ := json.Marshal(map[string]interface{}{
			"file":  outPath,
			"count": len(notes),
		})
		fmt.Println(string(result))
	} else if !IsQuiet() {
		fmt.Printf("Exported %d note(s) to %s\n", len(notes), outPath)
	}
	return nil
}
