package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/user/stickynotes/internal/model"
)

var (
	addPage    string
	addContent string
	addX       float64
	addY       float64
	addColor   string
	addID      string
)

var addCmd = &cobra.Command{
	Use:   "add",
	Short: "Create or replace a note",
	Long: `Save a note to the configured storage. Without --id a new note id is
generated; with --id an existing note with that id is replaced.

Examples:
  stickynotes add --page https://example.com --content "Check this"
  stickynotes add --page https://example.com --content "Moved" --x 120 --y 40 --color blue
  stickynotes add --page https://example.com --id note-1 --content "Replaced" --json`,
	Args: cobra.NoArgs,
	RunE: runAdd,
}

func init() {
	addCmd.Flags().StringVar(&addPage, "page", "", "Page group the note belongs to (required)")
	addCmd.Flags().StringVar(&addContent, "content", "", "Note text")
	addCmd.Flags().Float64Var(&addX, "x", 0, "Horizontal position")
	addCmd.Flags().Float64Var(&addY, "y", 0, "Vertical position")
	addCmd.Flags().StringVar(&addColor, "color", string(model.DefaultColor), "Note color")
	addCmd.Flags().StringVar(&addID, "id", "", "Note id (default: generated)")
	rootCmd.AddCommand(addCmd)
}

func runAdd(cmd *cobra.Command, args []string) error {
	if addPage == "" {
		ExitValidationError("--page is required", nil)
		return nil
	}
	color := model.Color(addColor)
	if !color.Valid() {
		names := make([]string, 0, len(model.Colors()))
		for _, c := range model.Colors() {
			names = append(names, string(c))
		}
		ExitValidationError(
			fmt.Sprintf("invalid color %q (must be one of %s)", addColor, strings.Join(names, ", ")),
			map[string]interface{}{"color": addColor})
		return nil
	}

	id := addID
	if id == "" {
		id = model.GenerateID()
	}

	store, err := openStorage(cmd.Context(), cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer closeStorage(store)

	saved, err := store.SaveNote(cmd.Context(), model.Note{
		ID:        id,
		PageGroup: addPage,
		Content:   addContent,
		X:         addX,
		Y:         addY,
		Color:     color,
	})
	if err != nil {
		return fmt.Errorf("failed to save note: %w", err)
	}

	switch {
	case GetJSONOutput():
		data, err := json.Marshal(saved)
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		fmt.Println(string(data))
	case IsQuiet():
		fmt.Println(saved.ID)
	default:
		fmt.Printf("Saved note %s on %s\n", saved.ID, saved.PageGroup)
	}
	return nil
}
