// Package history implements the per-file version lifecycle: every tracked
// file owns one history line in the shared repository, and the index maps
// file paths to those lines.
package history

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/savify/savify/internal/backend"
	"github.com/savify/savify/internal/index"
	"github.com/savify/savify/internal/lineid"
	"github.com/savify/savify/pkg/errclass"
	"github.com/savify/savify/pkg/logging"
	"github.com/savify/savify/pkg/model"
	"github.com/savify/savify/pkg/pathutil"
)

// Auditor records mutations. *audit.FileAppender satisfies it.
type Auditor interface {
	Append(eventType model.AuditEventType, path, lineID string, snapshotID model.SnapshotID, details map[string]any) error
}

// Auditors fans a record out to several auditors.
type Auditors []Auditor

func (as Auditors) Append(eventType model.AuditEventType, path, lineID string, snapshotID model.SnapshotID, details map[string]any) error {
	var errs []error
	for _, a := range as {
		if err := a.Append(eventType, path, lineID, snapshotID, details); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Options configures an Engine.
type Options struct {
	// DefaultLine is the bookkeeping line HEAD rests on between operations.
	DefaultLine string
	Logger      *logging.Logger
	Audit       Auditor
	// Rand replaces the random source of the line ID allocator.
	Rand io.Reader
}

// Engine owns the lifecycle of tracked files.
type Engine struct {
	root        string
	backend     backend.Backend
	index       index.Store
	defaultLine string
	alloc       *lineid.Allocator
	log         *logging.Logger
	audit       Auditor
}

// CommitResult describes the snapshot produced by a commit.
type CommitResult struct {
	File     model.TrackedFile `json:"file"`
	Snapshot model.Snapshot    `json:"snapshot"`
	// Created is set when the commit started tracking the file.
	Created bool `json:"created"`
}

// NewEngine creates an Engine for the workspace at root.
func NewEngine(root string, b backend.Backend, store index.Store, opts Options) *Engine {
	e := &Engine{
		root:        root,
		backend:     b,
		index:       store,
		defaultLine: opts.DefaultLine,
		log:         opts.Logger,
		audit:       opts.Audit,
	}
	if e.defaultLine == "" {
		e.defaultLine = "master"
	}
	if e.log == nil {
		e.log = logging.Global()
	}
	var allocOpts []lineid.Option
	if opts.Rand != nil {
		allocOpts = append(allocOpts, lineid.WithRand(opts.Rand))
	}
	e.alloc = lineid.NewAllocator([]lineid.TakenFunc{e.lineIndexed, b.LineExists}, allocOpts...)
	return e
}

// DefaultLine returns the bookkeeping line.
func (e *Engine) DefaultLine() string { return e.defaultLine }

func (e *Engine) lineIndexed(ctx context.Context, id string) (bool, error) {
	_, err := e.index.FindByLine(ctx, id)
	if errors.Is(err, index.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

// EnsureDefaultLine moves the active line back to the default line if an
// earlier run was interrupted while switched away. It reports whether a
// switch was needed.
func (e *Engine) EnsureDefaultLine(ctx context.Context) (bool, error) {
	active, err := e.backend.ActiveLine(ctx)
	if err != nil {
		return false, errclass.ErrRepositoryUnavailable.WithMessagef("read active line: %v", err)
	}
	if active == e.defaultLine {
		return false, nil
	}
	if err := e.backend.SwitchActiveLine(ctx, e.defaultLine); err != nil {
		return false, errclass.ErrRepositoryUnavailable.WithMessagef("restore active line: %v", err)
	}
	e.log.Warn("active line was left off the default line; restored", map[string]any{
		"active":  active,
		"default": e.defaultLine,
	})
	return true, nil
}

// withLine runs fn with line as the active line and restores the prior
// active line on every exit path.
func (e *Engine) withLine(ctx context.Context, line string, fn func() error) (err error) {
	prev, err := e.backend.ActiveLine(ctx)
	if err != nil {
		return errclass.ErrRepositoryUnavailable.WithMessagef("read active line: %v", err)
	}
	if err := e.backend.SwitchActiveLine(ctx, line); err != nil {
		return fmt.Errorf("switch to line %s: %w", line, err)
	}
	e.log.Debug("switched active line", map[string]any{"from": prev, "to": line})

	defer func() {
		restoreCtx := context.WithoutCancel(ctx)
		if rerr := e.backend.SwitchActiveLine(restoreCtx, prev); rerr != nil {
			err = errors.Join(err, fmt.Errorf("restore active line %s: %w", prev, rerr))
			return
		}
		e.log.Debug("switched active line", map[string]any{"from": line, "to": prev})
	}()

	return fn()
}

// target resolves a user path to its index key and its workspace-relative
// repository path.
func (e *Engine) target(path string) (abs, rel string, err error) {
	abs, err = pathutil.Normalize(path)
	if err != nil {
		return "", "", err
	}
	rel, err = pathutil.RelToRoot(e.root, abs)
	if err != nil {
		return "", "", err
	}
	return abs, rel, nil
}

func (e *Engine) lookup(ctx context.Context, abs string) (*model.TrackedFile, error) {
	tf, err := e.index.Find(ctx, abs)
	if errors.Is(err, index.ErrNotFound) {
		return nil, errclass.ErrNotTracked.WithMessagef("%s is not tracked", abs)
	}
	if err != nil {
		return nil, fmt.Errorf("look up %s: %w", abs, err)
	}
	return tf, nil
}

func requireRegularFile(abs string) error {
	info, err := os.Stat(abs)
	if os.IsNotExist(err) {
		return errclass.ErrFileNotFound.WithMessagef("%s does not exist", abs)
	}
	if err != nil {
		return fmt.Errorf("stat %s: %w", abs, err)
	}
	if !info.Mode().IsRegular() {
		return errclass.ErrFileNotFound.WithMessagef("%s is not a regular file", abs)
	}
	return nil
}

func (e *Engine) record(eventType model.AuditEventType, path, lineID string, id model.SnapshotID, details map[string]any) {
	if e.audit == nil {
		return
	}
	if err := e.audit.Append(eventType, path, lineID, id, details); err != nil {
		e.log.WarnErr("audit append failed", err, map[string]any{"event": string(eventType)})
	}
}

// Commit starts tracking path if it is new, otherwise records a new version.
func (e *Engine) Commit(ctx context.Context, path string) (*CommitResult, error) {
	abs, _, err := e.target(path)
	if err != nil {
		return nil, err
	}
	_, err = e.index.Find(ctx, abs)
	switch {
	case errors.Is(err, index.ErrNotFound):
		return e.StartTracking(ctx, path)
	case err != nil:
		return nil, fmt.Errorf("look up %s: %w", abs, err)
	}
	return e.CommitNewVersion(ctx, path)
}

// StartTracking gives path a fresh history line holding "Version 1".
// The repository is written before the index; if the index insert fails the
// new line is removed again.
func (e *Engine) StartTracking(ctx context.Context, path string) (*CommitResult, error) {
	abs, rel, err := e.target(path)
	if err != nil {
		return nil, err
	}
	if err := requireRegularFile(abs); err != nil {
		return nil, err
	}

	_, err = e.index.Find(ctx, abs)
	if err == nil {
		return nil, errclass.ErrAlreadyTracked.WithMessagef("%s is already tracked", abs)
	}
	if !errors.Is(err, index.ErrNotFound) {
		return nil, fmt.Errorf("look up %s: %w", abs, err)
	}

	// Step 1: allocate a line nobody uses
	lineID, err := e.alloc.Allocate(ctx)
	if err != nil {
		return nil, err
	}

	// Step 2: create the line and record the first snapshot on it
	if err := e.backend.CreateLine(ctx, lineID); err != nil {
		return nil, fmt.Errorf("create line: %w", err)
	}
	var snap model.Snapshot
	err = e.withLine(ctx, lineID, func() error {
		var cerr error
		snap, cerr = e.backend.CommitOnActiveLine(ctx, rel, model.Label(1))
		return cerr
	})
	if err != nil {
		return nil, fmt.Errorf("commit first version of %s: %w", abs, err)
	}

	// Step 3: persist the index entry
	tf := model.TrackedFile{Path: abs, LineID: lineID, CreatedAt: snap.CreatedAt}
	if err := e.index.Insert(ctx, tf); err != nil {
		if derr := e.backend.DeleteLine(context.WithoutCancel(ctx), lineID); derr != nil {
			e.log.WarnErr("could not remove line after failed index insert", derr, map[string]any{"line": lineID})
		}
		return nil, fmt.Errorf("index %s: %w", abs, err)
	}

	e.log.Info("tracking file", map[string]any{"path": abs, "line": lineID, "snapshot": snap.ID.ShortID()})
	e.record(model.EventTypeTrack, abs, lineID, snap.ID, nil)
	return &CommitResult{File: tf, Snapshot: snap, Created: true}, nil
}

// CommitNewVersion records the current content of a tracked file as
// "Version N+1", where N is the number of snapshots left on its line.
func (e *Engine) CommitNewVersion(ctx context.Context, path string) (*CommitResult, error) {
	abs, rel, err := e.target(path)
	if err != nil {
		return nil, err
	}
	tf, err := e.lookup(ctx, abs)
	if err != nil {
		return nil, err
	}
	if err := requireRegularFile(abs); err != nil {
		return nil, err
	}

	var snap model.Snapshot
	err = e.withLine(ctx, tf.LineID, func() error {
		existing, lerr := e.backend.ListCommits(ctx, tf.LineID)
		if lerr != nil && !errors.Is(lerr, backend.ErrLineNotFound) {
			return lerr
		}
		var cerr error
		snap, cerr = e.backend.CommitOnActiveLine(ctx, rel, model.Label(len(existing)+1))
		return cerr
	})
	if err != nil {
		return nil, fmt.Errorf("commit %s: %w", abs, err)
	}

	e.log.Info("committed version", map[string]any{"path": abs, "label": snap.Label, "snapshot": snap.ID.ShortID()})
	e.record(model.EventTypeCommit, abs, tf.LineID, snap.ID, map[string]any{"label": snap.Label})
	return &CommitResult{File: *tf, Snapshot: snap}, nil
}

// ListVersions returns the snapshots of a tracked file, newest first. A
// tracked file whose line has vanished yields an empty list.
func (e *Engine) ListVersions(ctx context.Context, path string) ([]model.Snapshot, error) {
	abs, err := pathutil.Normalize(path)
	if err != nil {
		return nil, err
	}
	tf, err := e.lookup(ctx, abs)
	if err != nil {
		return nil, err
	}
	return e.versions(ctx, tf)
}

func (e *Engine) versions(ctx context.Context, tf *model.TrackedFile) ([]model.Snapshot, error) {
	snaps, err := e.backend.ListCommits(ctx, tf.LineID)
	if errors.Is(err, backend.ErrLineNotFound) {
		return []model.Snapshot{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list versions of %s: %w", tf.Path, err)
	}
	return snaps, nil
}

// RestoreVersion overwrites the working copy of path with its content at the
// snapshot named by ref. History is not modified.
func (e *Engine) RestoreVersion(ctx context.Context, path, ref string) (model.Snapshot, error) {
	abs, rel, err := e.target(path)
	if err != nil {
		return model.Snapshot{}, err
	}
	tf, err := e.lookup(ctx, abs)
	if err != nil {
		return model.Snapshot{}, err
	}
	snaps, err := e.versions(ctx, tf)
	if err != nil {
		return model.Snapshot{}, err
	}
	snap, err := Resolve(snaps, ref)
	if err != nil {
		return model.Snapshot{}, err
	}

	if err := e.backend.CheckoutPath(ctx, snap.ID, rel); err != nil {
		return model.Snapshot{}, fmt.Errorf("restore %s: %w", abs, err)
	}

	e.log.Info("restored version", map[string]any{"path": abs, "label": snap.Label, "snapshot": snap.ID.ShortID()})
	e.record(model.EventTypeRestore, abs, tf.LineID, snap.ID, map[string]any{"label": snap.Label})
	return snap, nil
}

// VersionContent returns the snapshot named by ref and the file content
// recorded in it.
func (e *Engine) VersionContent(ctx context.Context, path, ref string) (model.Snapshot, []byte, error) {
	abs, rel, err := e.target(path)
	if err != nil {
		return model.Snapshot{}, nil, err
	}
	tf, err := e.lookup(ctx, abs)
	if err != nil {
		return model.Snapshot{}, nil, err
	}
	snaps, err := e.versions(ctx, tf)
	if err != nil {
		return model.Snapshot{}, nil, err
	}
	snap, err := Resolve(snaps, ref)
	if err != nil {
		return model.Snapshot{}, nil, err
	}
	data, err := e.backend.ReadPath(ctx, snap.ID, rel)
	if err != nil {
		return model.Snapshot{}, nil, fmt.Errorf("read %s at %s: %w", abs, snap.ID.ShortID(), err)
	}
	return snap, data, nil
}

// DeleteAllVersions forgets path. Deleting the repository line is best
// effort; the index entry is always removed. Untracked paths are a no-op and
// report false.
func (e *Engine) DeleteAllVersions(ctx context.Context, path string) (bool, error) {
	abs, err := pathutil.Normalize(path)
	if err != nil {
		return false, err
	}
	tf, err := e.index.Find(ctx, abs)
	if errors.Is(err, index.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("look up %s: %w", abs, err)
	}

	if err := e.backend.DeleteLine(ctx, tf.LineID); err != nil && !errors.Is(err, backend.ErrLineNotFound) {
		e.log.WarnErr("could not delete line; it is now orphaned", err, map[string]any{"path": abs, "line": tf.LineID})
	}
	if err := e.index.Remove(ctx, abs); err != nil {
		return false, fmt.Errorf("unindex %s: %w", abs, err)
	}

	e.log.Info("deleted all versions", map[string]any{"path": abs, "line": tf.LineID})
	e.record(model.EventTypeDeleteAll, abs, tf.LineID, "", nil)
	return true, nil
}

// DeleteOneVersion removes one snapshot by rewriting the file's line without
// it. Survivors keep their content, author and timestamps and are relabelled
// "Version 1".."Version N" oldest first, so snapshots newer than the removed
// one get new identifiers. Removing the last snapshot forgets the file.
// It returns the remaining snapshots, newest first.
func (e *Engine) DeleteOneVersion(ctx context.Context, path, ref string) ([]model.Snapshot, error) {
	abs, err := pathutil.Normalize(path)
	if err != nil {
		return nil, err
	}
	tf, err := e.lookup(ctx, abs)
	if err != nil {
		return nil, err
	}
	snaps, err := e.versions(ctx, tf)
	if err != nil {
		return nil, err
	}
	victim, err := Resolve(snaps, ref)
	if err != nil {
		return nil, err
	}

	if len(snaps) == 1 {
		if _, err := e.DeleteAllVersions(ctx, abs); err != nil {
			return nil, err
		}
		return []model.Snapshot{}, nil
	}

	entries := make([]backend.RebuildEntry, 0, len(snaps)-1)
	for i := len(snaps) - 1; i >= 0; i-- {
		if snaps[i].ID == victim.ID {
			continue
		}
		entries = append(entries, backend.RebuildEntry{
			Source:  snaps[i].ID,
			Message: model.Label(len(entries) + 1),
		})
	}
	if err := e.backend.RebuildLine(ctx, tf.LineID, entries); err != nil {
		return nil, fmt.Errorf("rewrite line of %s: %w", abs, err)
	}

	e.log.Info("deleted version", map[string]any{"path": abs, "label": victim.Label, "snapshot": victim.ID.ShortID()})
	e.record(model.EventTypeDeleteOne, abs, tf.LineID, victim.ID, map[string]any{"label": victim.Label})
	return e.versions(ctx, tf)
}

// ListAllTrackedFiles returns every index entry ordered by path. The
// repository is not consulted.
func (e *Engine) ListAllTrackedFiles(ctx context.Context) ([]model.TrackedFile, error) {
	files, err := e.index.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tracked files: %w", err)
	}
	return files, nil
}
