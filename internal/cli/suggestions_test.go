package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/savify/savify/pkg/color"
	"github.com/savify/savify/pkg/model"
)

func TestListHint(t *testing.T) {
	color.Disable()
	hint := listHint("/w/notes.txt")
	assert.Contains(t, hint, `savify ls "/w/notes.txt"`)
}

func TestSuggestVersions(t *testing.T) {
	color.Disable()
	snaps := []model.Snapshot{
		{ID: "3f2a000000000000000000000000000000000003", Label: "Version 3"},
		{ID: "9b10000000000000000000000000000000000002", Label: "Version 2"},
		{ID: "3f77000000000000000000000000000000000001", Label: "Version 1"},
	}

	t.Run("label number", func(t *testing.T) {
		got := suggestVersions("2", snaps, "/w/f")
		assert.Contains(t, got, "Did you mean")
		assert.Contains(t, got, "Version 2")
	})

	t.Run("several matches", func(t *testing.T) {
		got := suggestVersions("3f", snaps, "/w/f")
		assert.Contains(t, got, "one of")
		assert.Contains(t, got, "Version 3")
		assert.Contains(t, got, "Version 1")
	})

	t.Run("no match falls back to list hint", func(t *testing.T) {
		got := suggestVersions("zzzz", snaps, "/w/f")
		assert.Contains(t, got, "savify ls")
	})

	t.Run("empty ref", func(t *testing.T) {
		got := suggestVersions("  ", snaps, "/w/f")
		assert.Contains(t, got, "savify ls")
	})
}
