package cli

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"github.com/user/stickynotes/internal/model"
)

var listPage string

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List stored notes",
	Long: `List the notes in the configured storage, grouped by page group.

Examples:
  stickynotes list
  stickynotes list --page https://example.com/docs
  stickynotes list --json`,
	Args: cobra.NoArgs,
	RunE: runList,
}

func init() {
	listCmd.Flags().StringVar(&listPage, "page", "", "Only list notes of this page group")
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	store, err := openStorage(cmd.Context(), cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer closeStorage(store)

	var notes []model.Note
	if listPage != "" {
		notes, err = store.GetNotesForPage(cmd.Context(), listPage)
	} else {
		notes, err = store.GetAllNotes(cmd.Context())
	}
	if err != nil {
		return fmt.Errorf("failed to list notes: %w", err)
	}
	if notes == nil {
		notes = []model.Note{}
	}

	if GetJSONOutput() {
		data, err := json.MarshalIndent(notes, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		fmt.Println(string(data))
		return nil
	}

	if len(notes) == 0 {
		if !IsQuiet() {
			fmt.Println("No notes found.")
		}
		return nil
	}

	printNotesTable(notes)
	return nil
}

// Column widths for table output
const (
	idWidth      = 24
	colorWidth   = 6
	posWidth     = 15
	contentWidth = 48
)

// printNotesTable prints notes as one table per page group, groups sorted
// by name.
func printNotesTable(notes []model.Note) {
	groups := model.GroupByPage(notes)
	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	sort.Strings(names)

	header := strings.Join([]string{
		fmt.Sprintf("%-*s", idWidth, "ID"),
		fmt.Sprintf("%-*s", colorWidth, "Color"),
		fmt.Sprintf("%-*s", posWidth, "Position"),
		"Content",
	}, "  ")
	separator := strings.Join([]string{
		strings.Repeat("-", idWidth),
		strings.Repeat("-", colorWidth),
		strings.Repeat("-", posWidth),
		strings.Repeat("-", 7),
	}, "  ")

	for i, name := range names {
		if i > 0 {
			fmt.Println()
		}
		fmt.Printf("%s (%d)\n", name, len(groups[name]))
		fmt.Println(header)
		fmt.Println(separator)

		for _, n := range groups[name] {
			fmt.Println(strings.Join([]string{
				fmt.Sprintf("%-*s", idWidth, truncate(n.ID, idWidth)),
				fmt.Sprintf("%-*s", colorWidth, string(n.Color)),
				fmt.Sprintf("%-*s", posWidth, fmt.Sprintf("%g,%g", n.X, n.Y)),
				truncate(singleLine(n.Content), contentWidth),
			}, "  "))
		}
	}

	fmt.Printf("\nTotal: %d note(s) in %d group(s)\n", len(notes), len(names))
}

func truncate(s string, width int) string {
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	return string(r[:width-3]) + "..."
}

func singleLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
