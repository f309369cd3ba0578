package savify

import (
	"context"
	"fmt"

	"github.com/savify/savify/internal/history"
	"github.com/savify/savify/internal/workspace"
	"github.com/savify/savify/pkg/logging"
	"github.com/savify/savify/pkg/model"
	"github.com/savify/savify/pkg/progress"
)

// Client provides savify operations on a workspace.
type Client struct {
	session *workspace.Session
}

// Options configures how a workspace is opened.
type Options struct {
	Logger *logging.Logger // defaults to the global logger
}

// CommitResult describes a stored version.
type CommitResult = history.CommitResult

// Init initializes a workspace in dir and opens it.
func Init(ctx context.Context, dir string, opts Options) (*Client, error) {
	ws, err := workspace.Init(dir)
	if err != nil {
		return nil, fmt.Errorf("savify init: %w", err)
	}
	return open(ctx, ws, opts)
}

// Open opens the workspace at or above dir.
func Open(ctx context.Context, dir string, opts Options) (*Client, error) {
	ws, err := workspace.Discover(dir)
	if err != nil {
		return nil, fmt.Errorf("savify open: %w", err)
	}
	return open(ctx, ws, opts)
}

// OpenOrInit opens the workspace at or above dir, or initializes one in dir.
func OpenOrInit(ctx context.Context, dir string, opts Options) (*Client, error) {
	ws, _, err := workspace.DiscoverOrInit(dir)
	if err != nil {
		return nil, fmt.Errorf("savify open: %w", err)
	}
	return open(ctx, ws, opts)
}

func open(ctx context.Context, ws *workspace.Workspace, opts Options) (*Client, error) {
	s, err := workspace.Open(ctx, ws, opts.Logger)
	if err != nil {
		return nil, err
	}
	return &Client{session: s}, nil
}

// Close releases the workspace index.
func (c *Client) Close() error {
	return c.session.Close()
}

// Root returns the absolute path of the workspace.
func (c *Client) Root() string {
	return c.session.Root
}

// WorkspaceID returns the unique workspace identifier.
func (c *Client) WorkspaceID() string {
	return c.session.WorkspaceID
}

// DefaultLine returns the branch HEAD rests on between operations.
func (c *Client) DefaultLine() string {
	return c.session.Engine.DefaultLine()
}

// Commit stores the current content of path as a new version, starting a
// history line for it on first use.
func (c *Client) Commit(ctx context.Context, path string) (*CommitResult, error) {
	return c.session.Engine.Commit(ctx, path)
}

// Versions lists the versions of path, newest first.
func (c *Client) Versions(ctx context.Context, path string) ([]model.Snapshot, error) {
	return c.session.Engine.ListVersions(ctx, path)
}

// Restore overwrites path with the version ref names. ref is a version id,
// a unique id prefix or a label.
func (c *Client) Restore(ctx context.Context, path, ref string) (model.Snapshot, error) {
	return c.session.Engine.RestoreVersion(ctx, path, ref)
}

// Content returns the stored bytes of a version without touching the file.
func (c *Client) Content(ctx context.Context, path, ref string) (model.Snapshot, []byte, error) {
	return c.session.Engine.VersionContent(ctx, path, ref)
}

// DeleteAll removes every version of path and stops tracking it. It reports
// false when path was not tracked.
func (c *Client) DeleteAll(ctx context.Context, path string) (bool, error) {
	return c.session.Engine.DeleteAllVersions(ctx, path)
}

// DeleteVersion removes one version of path and returns the remaining ones,
// relabeled oldest first.
func (c *Client) DeleteVersion(ctx context.Context, path, ref string) ([]model.Snapshot, error) {
	return c.session.Engine.DeleteOneVersion(ctx, path, ref)
}

// TrackedFiles lists every tracked file.
func (c *Client) TrackedFiles(ctx context.Context) ([]model.TrackedFile, error) {
	return c.session.Engine.ListAllTrackedFiles(ctx)
}

// SetRemote configures the push remote and saves it to the workspace config.
func (c *Client) SetRemote(ctx context.Context, remote model.Remote) error {
	if err := c.session.Engine.SetRemote(ctx, remote); err != nil {
		return err
	}
	c.session.Config.Remote = &remote
	return c.session.SaveConfig()
}

// Remote returns the configured push remote, or nil.
func (c *Client) Remote() *model.Remote {
	return c.session.Config.Remote
}

// Push pushes every history line to the configured remote. cb may be nil.
func (c *Client) Push(ctx context.Context, cb progress.Callback) (*model.PushReport, error) {
	if cb == nil {
		cb = progress.Noop
	}
	return c.session.Engine.PushAll(ctx, c.session.Config.Remote, cb)
}
