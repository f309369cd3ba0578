package cli

import (
	"fmt"
	"strings"

	"github.com/savify/savify/pkg/color"
	"github.com/savify/savify/pkg/model"
)

// listHint tells the user how to find version tags for a file.
func listHint(abs string) string {
	return fmt.Sprintf("Run %s to find a list of all the stored versions of your file.",
		color.Highlight(fmt.Sprintf("savify ls %q", abs)))
}

// suggestVersions returns a "Did you mean" line for versions whose tag or
// label loosely matches ref, or the list hint when nothing does.
func suggestVersions(ref string, snaps []model.Snapshot, abs string) string {
	ref = strings.ToLower(strings.TrimSpace(ref))
	var matches []string
	for _, s := range snaps {
		if len(matches) == 3 {
			break
		}
		id := string(s.ID)
		label := strings.ToLower(s.Label)
		if ref != "" && (strings.Contains(id, ref) || strings.Contains(label, ref) || strings.HasSuffix(label, " "+ref)) {
			matches = append(matches, fmt.Sprintf("%s (%s)", color.SnapshotID(s.ID.ShortID()), s.Label))
		}
	}
	if len(matches) == 0 {
		return listHint(abs)
	}
	hint := "Did you mean"
	if len(matches) > 1 {
		hint += " one of"
	}
	return fmt.Sprintf("%s: %s?", hint, strings.Join(matches, ", "))
}
