package history

import (
	"strings"

	"github.com/savify/savify/pkg/errclass"
	"github.com/savify/savify/pkg/model"
)

// MinPrefixLen is the shortest identifier prefix accepted as a reference.
const MinPrefixLen = 4

// Resolve finds the snapshot named by ref: an exact identifier, an exact
// label such as "Version 2", or a unique identifier prefix of at least
// MinPrefixLen characters.
func Resolve(snaps []model.Snapshot, ref string) (model.Snapshot, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return model.Snapshot{}, errclass.ErrVersionNotFound.WithMessage("no version given")
	}

	for _, s := range snaps {
		if string(s.ID) == ref {
			return s, nil
		}
	}
	for _, s := range snaps {
		if strings.EqualFold(s.Label, ref) {
			return s, nil
		}
	}

	if len(ref) >= MinPrefixLen {
		lower := strings.ToLower(ref)
		var matches []model.Snapshot
		for _, s := range snaps {
			if strings.HasPrefix(string(s.ID), lower) {
				matches = append(matches, s)
			}
		}
		switch len(matches) {
		case 1:
			return matches[0], nil
		case 0:
		default:
			ids := make([]string, len(matches))
			for i, m := range matches {
				ids[i] = m.ID.ShortID()
			}
			return model.Snapshot{}, errclass.ErrAmbiguousVersion.WithMessagef(
				"%q matches %d versions: %s", ref, len(matches), strings.Join(ids, ", "))
		}
	}

	return model.Snapshot{}, errclass.ErrVersionNotFound.WithMessagef("no version %q", ref)
}
