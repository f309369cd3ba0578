// Package backend adapts a version-control repository to the small set of
// history-line capabilities the engine needs.
package backend

import (
	"context"
	"errors"

	"github.com/savify/savify/pkg/model"
)

var (
	// ErrLineNotFound is returned when a named line has no commits.
	ErrLineNotFound = errors.New("backend: line not found")
	// ErrLineExists is returned by CreateLine for a name already in use.
	ErrLineExists = errors.New("backend: line already exists")
	// ErrSnapshotNotFound is returned for an unknown snapshot identifier.
	ErrSnapshotNotFound = errors.New("backend: snapshot not found")
	// ErrPathNotInSnapshot is returned when a snapshot does not contain a path.
	ErrPathNotInSnapshot = errors.New("backend: path not in snapshot")
	// ErrActiveLine is returned when deleting the line HEAD points at.
	ErrActiveLine = errors.New("backend: cannot delete the active line")
)

// RebuildEntry is one commit of a rewritten line: the snapshot whose
// content, author and timestamps are reused, and its new message.
type RebuildEntry struct {
	Source  model.SnapshotID
	Message string
}

// Backend is the repository capability set. Paths are workspace-relative in
// slash form. Line names are plain branch names.
type Backend interface {
	// ActiveLine returns the line new commits are recorded on.
	ActiveLine(ctx context.Context) (string, error)
	// SwitchActiveLine points the active line at line without touching the
	// working tree. The line need not exist yet.
	SwitchActiveLine(ctx context.Context, line string) error
	// CreateLine reserves a new line name. The line materializes with its
	// first commit.
	CreateLine(ctx context.Context, line string) error
	LineExists(ctx context.Context, line string) (bool, error)
	Lines(ctx context.Context) ([]string, error)
	// CommitOnActiveLine records the current on-disk content of relPath as a
	// new commit whose tree holds only that file.
	CommitOnActiveLine(ctx context.Context, relPath, message string) (model.Snapshot, error)
	// ListCommits returns the commits of line, newest first.
	ListCommits(ctx context.Context, line string) ([]model.Snapshot, error)
	ReadPath(ctx context.Context, id model.SnapshotID, relPath string) ([]byte, error)
	// CheckoutPath overwrites the working copy of relPath with its content at id.
	CheckoutPath(ctx context.Context, id model.SnapshotID, relPath string) error
	// RebuildLine replaces line with a fresh chain of commits built from
	// entries, oldest first.
	RebuildLine(ctx context.Context, line string, entries []RebuildEntry) error
	DeleteLine(ctx context.Context, line string) error
	// SetRemote creates or replaces a named remote.
	SetRemote(ctx context.Context, remote model.Remote) error
	Push(ctx context.Context, remoteName, refspec string) error
}

// BranchRefspec returns the refspec pushing line to the same name remotely.
func BranchRefspec(line string) string {
	return "refs/heads/" + line + ":refs/heads/" + line
}
