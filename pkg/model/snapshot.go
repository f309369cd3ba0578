package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// LabelPrefix starts every snapshot label ("Version N").
const LabelPrefix = "Version "

// SnapshotID identifies a snapshot. For the git backend it is the commit hex SHA.
type SnapshotID string

// ShortID returns the first 8 characters for display.
func (id SnapshotID) ShortID() string {
	s := string(id)
	if len(s) >= 8 {
		return s[:8]
	}
	return s
}

// String returns the full snapshot ID as string.
func (id SnapshotID) String() string {
	return string(id)
}

// Snapshot is one immutable point in a file's history.
type Snapshot struct {
	ID        SnapshotID `json:"id"`
	Label     string     `json:"label"`
	CreatedAt time.Time  `json:"created_at"`
	Author    string     `json:"author"`
	// Path is the only file in the snapshot, workspace-relative. It is empty
	// when the snapshot holds no file or several.
	Path string `json:"-"`
}

// Label returns the sequence label for the n-th snapshot of a line.
func Label(n int) string {
	return LabelPrefix + strconv.Itoa(n)
}

// Sequence parses the number out of a "Version N" label.
func Sequence(label string) (int, error) {
	label = strings.TrimSpace(label)
	if !strings.HasPrefix(label, LabelPrefix) {
		return 0, fmt.Errorf("label %q has no %q prefix", label, LabelPrefix)
	}
	n, err := strconv.Atoi(strings.TrimPrefix(label, LabelPrefix))
	if err != nil {
		return 0, fmt.Errorf("label %q: %w", label, err)
	}
	return n, nil
}
