// Package diff renders line differences between a stored version of a file
// and its working copy.
package diff

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	diffpatch "github.com/sergi/go-diff/diffmatchpatch"

	"github.com/savify/savify/pkg/color"
	"github.com/savify/savify/pkg/model"
)

// Op is the kind of a diff line.
type Op string

const (
	OpEqual  Op = "equal"
	OpInsert Op = "insert"
	OpDelete Op = "delete"
)

// DefaultContext is the number of unchanged lines shown around a change.
const DefaultContext = 3

// Line is one line of the diff, without its trailing newline.
type Line struct {
	Op   Op     `json:"op"`
	Text string `json:"text"`
}

// Result is the difference between a snapshot and the working copy.
type Result struct {
	Path       string           `json:"path"`
	SnapshotID model.SnapshotID `json:"snapshot_id"`
	Label      string           `json:"label"`
	CreatedAt  time.Time        `json:"created_at"`
	Binary     bool             `json:"binary,omitempty"`
	Added      int              `json:"added"`
	Removed    int              `json:"removed"`
	Lines      []Line           `json:"lines,omitempty"`
}

// Identical reports whether the two sides have the same content.
func (r *Result) Identical() bool {
	return r.Added == 0 && r.Removed == 0
}

// Compute diffs the content stored in snap against current.
func Compute(path string, snap model.Snapshot, stored, current []byte) *Result {
	r := &Result{
		Path:       path,
		SnapshotID: snap.ID,
		Label:      snap.Label,
		CreatedAt:  snap.CreatedAt,
	}

	if isBinary(stored) || isBinary(current) {
		r.Binary = true
		if !bytes.Equal(stored, current) {
			r.Added, r.Removed = 1, 1
		}
		return r
	}

	dmp := diffpatch.New()
	a, b, lines := dmp.DiffLinesToChars(string(stored), string(current))
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	for _, d := range diffs {
		var op Op
		switch d.Type {
		case diffpatch.DiffInsert:
			op = OpInsert
		case diffpatch.DiffDelete:
			op = OpDelete
		default:
			op = OpEqual
		}
		for _, text := range splitLines(d.Text) {
			r.Lines = append(r.Lines, Line{Op: op, Text: text})
			switch op {
			case OpInsert:
				r.Added++
			case OpDelete:
				r.Removed++
			}
		}
	}
	return r
}

func isBinary(data []byte) bool {
	return bytes.IndexByte(data, 0) >= 0
}

func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	s = strings.TrimSuffix(s, "\n")
	return strings.Split(s, "\n")
}

// FormatHuman renders the diff with context lines around each change.
// Runs of unchanged lines outside the context are folded into "@@" markers.
func (r *Result) FormatHuman(context int) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "--- %s (%s, %s)\n", r.Path, r.Label, color.SnapshotID(r.SnapshotID.ShortID()))
	fmt.Fprintf(&sb, "+++ %s (working copy)\n", r.Path)

	if r.Binary {
		if r.Identical() {
			sb.WriteString("Binary files are identical.\n")
		} else {
			sb.WriteString("Binary files differ.\n")
		}
		return sb.String()
	}
	if r.Identical() {
		sb.WriteString("No changes.\n")
		return sb.String()
	}

	show := make([]bool, len(r.Lines))
	for i, l := range r.Lines {
		if l.Op == OpEqual {
			continue
		}
		for j := max(0, i-context); j <= min(len(r.Lines)-1, i+context); j++ {
			show[j] = true
		}
	}

	folded := false
	for i, l := range r.Lines {
		if !show[i] {
			if !folded {
				sb.WriteString(color.Dim("@@") + "\n")
				folded = true
			}
			continue
		}
		folded = false
		switch l.Op {
		case OpInsert:
			sb.WriteString(color.Added("+"+l.Text) + "\n")
		case OpDelete:
			sb.WriteString(color.Removed("-"+l.Text) + "\n")
		default:
			sb.WriteString(" " + l.Text + "\n")
		}
	}

	fmt.Fprintf(&sb, "%d added, %d removed\n", r.Added, r.Removed)
	return sb.String()
}
