package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/user/stickynotes/internal/model"
)

var localBackends = []string{"file", "sqlite", "local"}

func sortByID(notes []model.Note) {
	sort.Slice(notes, func(i, j int) bool { return notes[i].ID < notes[j].ID })
}

func TestVersion(t *testing.T) {
	setupTestEnv(t)

	t.Run("plain", func(t *testing.T) {
		result := mustSucceed(t, "version")
		assert.Contains(t, result.Stdout, "stickynotes version dev")
	})

	t.Run("json", func(t *testing.T) {
		result := mustSucceed(t, "version", "--json")
		var out map[string]string
		require.NoError(t, json.Unmarshal([]byte(result.Stdout), &out))
		assert.Equal(t, "dev", out["version"])
	})

	t.Run("ignores invalid configuration", func(t *testing.T) {
		mustSucceed(t, "version", "--storage", "mongo")
	})
}

func TestAddAndList(t *testing.T) {
	for _, kind := range localBackends {
		t.Run(kind, func(t *testing.T) {
			base := storageArgs(kind, setupTestEnv(t))

			mustSucceed(t, withArgs(base, "add",
				"--page", "https://example.com/a",
				"--id", "n1",
				"--content", "first",
				"--x", "10", "--y", "20",
				"--color", "blue")...)
			mustSucceed(t, withArgs(base, "add",
				"--page", "https://example.com/b",
				"--id", "n2",
				"--content", "second")...)

			notes := listNotes(t, base)
			require.Len(t, notes, 2)
			sortByID(notes)
			assert.True(t, model.SameContent(model.Note{
				ID: "n1", PageGroup: "https://example.com/a", Content: "first",
				X: 10, Y: 20, Color: model.ColorBlue,
			}, notes[0]), "got %+v", notes[0])
			assert.Equal(t, model.ColorYellow, notes[1].Color)

			result := mustSucceed(t, withArgs(base, "list", "--json", "--page", "https://example.com/b")...)
			var page []model.Note
			require.NoError(t, json.Unmarshal([]byte(result.Stdout), &page))
			require.Len(t, page, 1)
			assert.Equal(t, "n2", page[0].ID)

			table := mustSucceed(t, withArgs(base, "list")...)
			assert.Contains(t, table.Stdout, "https://example.com/a (1)")
			assert.Contains(t, table.Stdout, "Total: 2 note(s) in 2 group(s)")
		})
	}
}

func TestList_Empty(t *testing.T) {
	base := storageArgs("file", setupTestEnv(t))

	result := mustSucceed(t, withArgs(base, "list")...)
	assert.Contains(t, result.Stdout, "No notes found.")

	assert.Empty(t, listNotes(t, base))
}

func TestAdd(t *testing.T) {
	t.Run("generates an id", func(t *testing.T) {
		base := storageArgs("file", setupTestEnv(t))

		result := mustSucceed(t, withArgs(base, "add", "--page", "p", "--content", "x", "--quiet")...)
		id := trimLine(result.Stdout)
		assert.True(t, model.IsGeneratedID(id), "id %q", id)
	})

	t.Run("replaces by id", func(t *testing.T) {
		base := storageArgs("sqlite", setupTestEnv(t))

		mustSucceed(t, withArgs(base, "add", "--page", "p", "--id", "n1", "--content", "old")...)
		result := mustSucceed(t, withArgs(base, "add", "--page", "p", "--id", "n1", "--content", "new", "--json")...)

		var saved model.Note
		require.NoError(t, json.Unmarshal([]byte(result.Stdout), &saved))
		assert.Equal(t, "new", saved.Content)

		notes := listNotes(t, base)
		require.Len(t, notes, 1)
		assert.Equal(t, "new", notes[0].Content)
	})

	t.Run("missing page", func(t *testing.T) {
		base := storageArgs("file", setupTestEnv(t))

		result := runCLI(t, withArgs(base, "add", "--content", "x")...)
		assert.Equal(t, 2, result.ExitCode)
		assert.Contains(t, result.Stderr, "--page is required")
	})

	t.Run("invalid color", func(t *testing.T) {
		base := storageArgs("file", setupTestEnv(t))

		result := runCLI(t, withArgs(base, "add", "--page", "p", "--color", "orange", "--json")...)
		assert.Equal(t, 2, result.ExitCode)
		jsonErr := parseJSONError(t, result.Stdout)
		assert.True(t, jsonErr.Error)
		assert.Equal(t, ErrCodeValidation, jsonErr.Code)
		assert.Equal(t, "orange", jsonErr.Details["color"])
	})
}

func TestRm(t *testing.T) {
	t.Run("file storage requires page", func(t *testing.T) {
		base := storageArgs("file", setupTestEnv(t))
		mustSucceed(t, withArgs(base, "add", "--page", "p", "--id", "n1")...)

		result := runCLI(t, withArgs(base, "rm", "n1")...)
		assert.Equal(t, 2, result.ExitCode)

		mustSucceed(t, withArgs(base, "rm", "n1", "--page", "p")...)
		assert.Empty(t, listNotes(t, base))
	})

	for _, kind := range []string{"sqlite", "local"} {
		t.Run(kind+" deletes by id", func(t *testing.T) {
			base := storageArgs(kind, setupTestEnv(t))
			mustSucceed(t, withArgs(base, "add", "--page", "p", "--id", "n1")...)
			mustSucceed(t, withArgs(base, "add", "--page", "p", "--id", "n2")...)

			result := mustSucceed(t, withArgs(base, "rm", "n1")...)
			assert.Contains(t, result.Stdout, "Deleted note n1")

			notes := listNotes(t, base)
			require.Len(t, notes, 1)
			assert.Equal(t, "n2", notes[0].ID)
		})
	}

	t.Run("absent note is not an error", func(t *testing.T) {
		base := storageArgs("sqlite", setupTestEnv(t))
		mustSucceed(t, withArgs(base, "rm", "missing")...)
	})
}

func TestClear(t *testing.T) {
	for _, kind := range localBackends {
		t.Run(kind, func(t *testing.T) {
			base := storageArgs(kind, setupTestEnv(t))
			mustSucceed(t, withArgs(base, "add", "--page", "a", "--id", "n1")...)
			mustSucceed(t, withArgs(base, "add", "--page", "a", "--id", "n2")...)
			mustSucceed(t, withArgs(base, "add", "--page", "b", "--id", "n3")...)

			result := runCLI(t, withArgs(base, "clear", "--page", "a", "--json")...)
			assert.Equal(t, 1, result.ExitCode)
			assert.Equal(t, ErrCodeConfirmRequired, parseJSONError(t, result.Stdout).Code)
			assert.Len(t, listNotes(t, base), 3)

			mustSucceed(t, withArgs(base, "clear", "--page", "a", "--confirm")...)
			notes := listNotes(t, base)
			require.Len(t, notes, 1)
			assert.Equal(t, "n3", notes[0].ID)

			mustSucceed(t, withArgs(base, "clear", "--confirm")...)
			assert.Empty(t, listNotes(t, base))
		})
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	for _, kind := range localBackends {
		t.Run(kind, func(t *testing.T) {
			dir := setupTestEnv(t)
			base := storageArgs(kind, dir)
			mustSucceed(t, withArgs(base, "add", "--page", "a", "--id", "n1", "--content", "one", "--color", "green")...)
			mustSucceed(t, withArgs(base, "add", "--page", "b", "--id", "n2", "--content", "two", "--x", "5")...)
			before := listNotes(t, base)

			exportPath := filepath.Join(dir, "export.json")
			result := mustSucceed(t, withArgs(base, "export", exportPath)...)
			assert.Contains(t, result.Stdout, "Exported 2 note(s)")

			mustSucceed(t, withArgs(base, "clear", "--confirm")...)
			require.Empty(t, listNotes(t, base))

			result = mustSucceed(t, withArgs(base, "import", exportPath, "--confirm")...)
			assert.Contains(t, result.Stdout, "Imported 2 note(s)")

			after := listNotes(t, base)
			require.Len(t, after, len(before))
			sortByID(before)
			sortByID(after)
			for i := range before {
				assert.True(t, model.SameContent(before[i], after[i]), "want %+v, got %+v", before[i], after[i])
			}
		})
	}
}

func TestExport(t *testing.T) {
	t.Run("stdout", func(t *testing.T) {
		base := storageArgs("file", setupTestEnv(t))
		mustSucceed(t, withArgs(base, "add", "--page", "a", "--id", "n1")...)

		result := mustSucceed(t, withArgs(base, "export")...)
		var notes []model.Note
		require.NoError(t, json.Unmarshal([]byte(result.Stdout), &notes))
		require.Len(t, notes, 1)
		assert.Equal(t, "n1", notes[0].ID)
	})

	t.Run("empty store exports an empty array", func(t *testing.T) {
		base := storageArgs("sqlite", setupTestEnv(t))

		result := mustSucceed(t, withArgs(base, "export")...)
		assert.Equal(t, "[]", trimLine(result.Stdout))
	})

	t.Run("refuses to overwrite", func(t *testing.T) {
		dir := setupTestEnv(t)
		base := storageArgs("file", dir)
		exportPath := filepath.Join(dir, "existing.json")
		require.NoError(t, os.WriteFile(exportPath, []byte("keep"), 0644))

		result := runCLI(t, withArgs(base, "export", exportPath)...)
		assert.Equal(t, 1, result.ExitCode)
		assert.Contains(t, result.Stderr, "already exists")

		data, err := os.ReadFile(exportPath)
		require.NoError(t, err)
		assert.Equal(t, "keep", string(data))

		mustSucceed(t, withArgs(base, "export", exportPath, "--force")...)
		data, err = os.ReadFile(exportPath)
		require.NoError(t, err)
		assert.Equal(t, "[]", trimLine(string(data)))
	})
}

func TestImport(t *testing.T) {
	writeFile := func(t *testing.T, dir, name, content string) string {
		t.Helper()
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
		return path
	}

	t.Run("skips entries without id or page group", func(t *testing.T) {
		dir := setupTestEnv(t)
		base := storageArgs("local", dir)
		path := writeFile(t, dir, "in.json", `[
			{"id":"n1","pageGroup":"a","content":"kept"},
			{"id":"n2","content":"no group"},
			{"pageGroup":"a","content":"no id"},
			{"id":"n3","pageUrl":"b","content":"legacy field"}
		]`)

		result := mustSucceed(t, withArgs(base, "import", path, "--confirm", "--json")...)
		var out map[string]int
		require.NoError(t, json.Unmarshal([]byte(result.Stdout), &out))
		assert.Equal(t, 2, out["imported"])
		assert.Equal(t, 2, out["skipped"])

		notes := listNotes(t, base)
		sortByID(notes)
		require.Len(t, notes, 2)
		assert.Equal(t, "n1", notes[0].ID)
		assert.Equal(t, "b", notes[1].PageGroup)
	})

	t.Run("requires confirm", func(t *testing.T) {
		dir := setupTestEnv(t)
		base := storageArgs("file", dir)
		mustSucceed(t, withArgs(base, "add", "--page", "a", "--id", "old")...)
		path := writeFile(t, dir, "in.json", `[{"id":"n1","pageGroup":"a"}]`)

		result := runCLI(t, withArgs(base, "import", path)...)
		assert.Equal(t, 1, result.ExitCode)

		notes := listNotes(t, base)
		require.Len(t, notes, 1)
		assert.Equal(t, "old", notes[0].ID)
	})

	t.Run("rejects non-array", func(t *testing.T) {
		dir := setupTestEnv(t)
		base := storageArgs("file", dir)
		path := writeFile(t, dir, "in.json", `{"id":"n1","pageGroup":"a"}`)

		result := runCLI(t, withArgs(base, "import", path, "--confirm", "--json")...)
		assert.Equal(t, 2, result.ExitCode)
		assert.Equal(t, ErrCodeValidation, parseJSONError(t, result.Stdout).Code)
	})

	t.Run("duplicate ids leave existing notes intact", func(t *testing.T) {
		for _, kind := range localBackends {
			t.Run(kind, func(t *testing.T) {
				dir := setupTestEnv(t)
				base := storageArgs(kind, dir)
				mustSucceed(t, withArgs(base, "add", "--page", "a", "--id", "old")...)
				path := writeFile(t, dir, "in.json", `[
					{"id":"dup","pageGroup":"a"},
					{"id":"dup","pageGroup":"b"}
				]`)

				result := runCLI(t, withArgs(base, "import", path, "--confirm")...)
				assert.Equal(t, 2, result.ExitCode)

				notes := listNotes(t, base)
				require.Len(t, notes, 1)
				assert.Equal(t, "old", notes[0].ID)
			})
		}
	})

	t.Run("missing file", func(t *testing.T) {
		dir := setupTestEnv(t)
		base := storageArgs("file", dir)

		result := runCLI(t, withArgs(base, "import", filepath.Join(dir, "absent.json"), "--confirm", "--json")...)
		assert.Equal(t, 1, result.ExitCode)
		assert.Equal(t, ErrCodeNotFound, parseJSONError(t, result.Stdout).Code)
	})
}

func trimLine(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}
