package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	clearPage    string
	clearConfirm bool
)

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete all notes of a page group, or every note",
	Long: `Delete every note of one page group (--page) or, without --page, every
stored note. The command refuses to run without --confirm.

Examples:
  stickynotes clear --page https://example.com --confirm
  stickynotes clear --confirm`,
	Args: cobra.NoArgs,
	RunE: runClear,
}

func init() {
	clearCmd.Flags().StringVar(&clearPage, "page", "", "Only clear this page group")
	clearCmd.Flags().BoolVar(&clearConfirm, "confirm", false, "Confirm the deletion")
	rootCmd.AddCommand(clearCmd)
}

func runClear(cmd *cobra.Command, args []string) error {
	if !clearConfirm {
		if clearPage != "" {
			ExitConfirmRequired(fmt.Sprintf("clearing page group %q", clearPage))
		} else {
			ExitConfirmRequired("clearing all notes")
		}
		return nil
	}

	store, err := openStorage(cmd.Context(), cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer closeStorage(store)

	if clearPage != "" {
		err = store.ClearPageNotes(cmd.Context(), clearPage)
	} else {
		err = store.ClearAllNotes(cmd.Context())
	}
	if err != nil {
		return fmt.Errorf("failed to clear notes: %w", err)
	}

	if GetJSONOutput() {
		result := map[string]interface{}{"cleared": true}
		if clearPage != "" {
			result["pageGroup"] = clearPage
		}
		data, _ := json.Marshal(result)
		fmt.Println(string(data))
	} else if !IsQuiet() {
		if clearPage != "" {
			fmt.Printf("Cleared notes of %s\n", clearPage)
		} else {
			fmt.Println("Cleared all notes")
		}
	}
	return nil
}
