package backend

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/savify/savify/pkg/errclass"
	"github.com/savify/savify/pkg/fsutil"
	"github.com/savify/savify/pkg/model"
)

// Fallback identity when neither config nor the global git config set one.
const (
	DefaultAuthorName  = "savify"
	DefaultAuthorEmail = "savify@localhost"
)

// Author is the identity stamped on new commits.
type Author struct {
	Name  string
	Email string
}

// Git is a Backend over a go-git repository rooted at the workspace. Commits
// are written with object plumbing so the index and working tree of the
// repository are never touched.
type Git struct {
	root   string
	repo   *git.Repository
	author Author
	now    func() time.Time
}

// GitOption configures a Git backend.
type GitOption func(*Git)

// WithAuthor sets the commit identity. Empty fields keep the defaults.
func WithAuthor(a Author) GitOption {
	return func(g *Git) {
		if a.Name != "" {
			g.author.Name = a.Name
		}
		if a.Email != "" {
			g.author.Email = a.Email
		}
	}
}

// WithClock replaces time.Now (tests only).
func WithClock(now func() time.Time) GitOption {
	return func(g *Git) { g.now = now }
}

// OpenGit opens the repository at root, initializing one when none exists.
// created reports whether a new repository was initialized.
func OpenGit(root string, opts ...GitOption) (g *Git, created bool, err error) {
	repo, err := git.PlainOpen(root)
	if errors.Is(err, git.ErrRepositoryNotExists) {
		repo, err = git.PlainInit(root, false)
		created = true
	}
	if err != nil {
		return nil, false, errclass.ErrRepositoryUnavailable.WithMessagef("open git repository at %s: %v", root, err)
	}

	g = &Git{
		root:   root,
		repo:   repo,
		author: globalAuthor(repo),
		now:    time.Now,
	}
	for _, o := range opts {
		o(g)
	}
	return g, created, nil
}

func globalAuthor(repo *git.Repository) Author {
	a := Author{Name: DefaultAuthorName, Email: DefaultAuthorEmail}
	cfg, err := repo.ConfigScoped(config.GlobalScope)
	if err != nil {
		return a
	}
	if cfg.User.Name != "" {
		a.Name = cfg.User.Name
	}
	if cfg.User.Email != "" {
		a.Email = cfg.User.Email
	}
	return a
}

// Root returns the working tree root.
func (g *Git) Root() string { return g.root }

// Author returns the identity used for new commits.
func (g *Git) Author() Author { return g.author }

func (g *Git) ActiveLine(ctx context.Context) (string, error) {
	head, err := g.repo.Storer.Reference(plumbing.HEAD)
	if err != nil {
		return "", fmt.Errorf("read HEAD: %w", err)
	}
	if head.Type() != plumbing.SymbolicReference {
		return "", fmt.Errorf("HEAD is detached at %s", head.Hash())
	}
	return head.Target().Short(), nil
}

func (g *Git) SwitchActiveLine(ctx context.Context, line string) error {
	ref := plumbing.NewSymbolicReference(plumbing.HEAD, plumbing.NewBranchReferenceName(line))
	if err := g.repo.Storer.SetReference(ref); err != nil {
		return fmt.Errorf("switch HEAD to %s: %w", line, err)
	}
	return nil
}

func (g *Git) CreateLine(ctx context.Context, line string) error {
	exists, err := g.LineExists(ctx, line)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: %s", ErrLineExists, line)
	}
	return nil
}

func (g *Git) LineExists(ctx context.Context, line string) (bool, error) {
	_, err := g.repo.Storer.Reference(plumbing.NewBranchReferenceName(line))
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read line %s: %w", line, err)
	}
	return true, nil
}

func (g *Git) Lines(ctx context.Context) ([]string, error) {
	iter, err := g.repo.Branches()
	if err != nil {
		return nil, fmt.Errorf("list branches: %w", err)
	}
	defer iter.Close()

	var names []string
	err = iter.ForEach(func(ref *plumbing.Reference) error {
		names = append(names, ref.Name().Short())
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list branches: %w", err)
	}
	return names, nil
}

func (g *Git) CommitOnActiveLine(ctx context.Context, relPath, message string) (model.Snapshot, error) {
	head, err := g.repo.Storer.Reference(plumbing.HEAD)
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("read HEAD: %w", err)
	}
	if head.Type() != plumbing.SymbolicReference {
		return model.Snapshot{}, fmt.Errorf("HEAD is detached at %s", head.Hash())
	}
	target := head.Target()

	var parents []plumbing.Hash
	tip, err := g.repo.Storer.Reference(target)
	switch {
	case err == nil:
		parents = []plumbing.Hash{tip.Hash()}
	case !errors.Is(err, plumbing.ErrReferenceNotFound):
		return model.Snapshot{}, fmt.Errorf("read %s: %w", target, err)
	}

	abs := filepath.Join(g.root, filepath.FromSlash(relPath))
	info, err := os.Stat(abs)
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("stat %s: %w", relPath, err)
	}
	if !info.Mode().IsRegular() {
		return model.Snapshot{}, fmt.Errorf("%s is not a regular file", relPath)
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("read %s: %w", relPath, err)
	}

	blob, err := g.writeBlob(data)
	if err != nil {
		return model.Snapshot{}, err
	}
	mode := filemode.Regular
	if info.Mode().Perm()&0111 != 0 {
		mode = filemode.Executable
	}
	tree, err := g.writeTree(strings.Split(relPath, "/"), blob, mode)
	if err != nil {
		return model.Snapshot{}, err
	}

	sig := object.Signature{Name: g.author.Name, Email: g.author.Email, When: g.now()}
	commit := &object.Commit{
		Author:       sig,
		Committer:    sig,
		Message:      message,
		TreeHash:     tree,
		ParentHashes: parents,
	}
	hash, err := g.store(commit)
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("write commit: %w", err)
	}
	if err := g.repo.Storer.SetReference(plumbing.NewHashReference(target, hash)); err != nil {
		return model.Snapshot{}, fmt.Errorf("advance %s: %w", target.Short(), err)
	}
	commit.Hash = hash
	snap := snapshotOf(commit)
	snap.Path = relPath
	return snap, nil
}

func (g *Git) ListCommits(ctx context.Context, line string) ([]model.Snapshot, error) {
	ref, err := g.repo.Reference(plumbing.NewBranchReferenceName(line), true)
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrLineNotFound, line)
	}
	if err != nil {
		return nil, fmt.Errorf("read line %s: %w", line, err)
	}

	iter, err := g.repo.Log(&git.LogOptions{From: ref.Hash()})
	if err != nil {
		return nil, fmt.Errorf("log %s: %w", line, err)
	}
	defer iter.Close()

	var out []model.Snapshot
	err = iter.ForEach(func(c *object.Commit) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		snap := snapshotOf(c)
		snap.Path = soleFile(c)
		out = append(out, snap)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("log %s: %w", line, err)
	}
	return out, nil
}

func (g *Git) ReadPath(ctx context.Context, id model.SnapshotID, relPath string) ([]byte, error) {
	f, err := g.file(id, relPath)
	if err != nil {
		return nil, err
	}
	contents, err := f.Contents()
	if err != nil {
		return nil, fmt.Errorf("read %s at %s: %w", relPath, id.ShortID(), err)
	}
	return []byte(contents), nil
}

func (g *Git) CheckoutPath(ctx context.Context, id model.SnapshotID, relPath string) error {
	f, err := g.file(id, relPath)
	if err != nil {
		return err
	}
	contents, err := f.Contents()
	if err != nil {
		return fmt.Errorf("read %s at %s: %w", relPath, id.ShortID(), err)
	}
	perm := os.FileMode(0644)
	if f.Mode == filemode.Executable {
		perm = 0755
	}
	abs := filepath.Join(g.root, filepath.FromSlash(relPath))
	if err := fsutil.ReplaceFile(abs, []byte(contents), perm); err != nil {
		return fmt.Errorf("checkout %s: %w", relPath, err)
	}
	return nil
}

func (g *Git) RebuildLine(ctx context.Context, line string, entries []RebuildEntry) error {
	if len(entries) == 0 {
		return fmt.Errorf("rebuild %s: no commits to keep", line)
	}

	var parent plumbing.Hash
	for i, e := range entries {
		src, err := g.commit(e.Source)
		if err != nil {
			return err
		}
		c := &object.Commit{
			Author:    src.Author,
			Committer: src.Committer,
			Message:   e.Message,
			TreeHash:  src.TreeHash,
		}
		if i > 0 {
			c.ParentHashes = []plumbing.Hash{parent}
		}
		parent, err = g.store(c)
		if err != nil {
			return fmt.Errorf("rebuild %s: %w", line, err)
		}
	}

	ref := plumbing.NewHashReference(plumbing.NewBranchReferenceName(line), parent)
	if err := g.repo.Storer.SetReference(ref); err != nil {
		return fmt.Errorf("rebuild %s: move ref: %w", line, err)
	}
	return nil
}

func (g *Git) DeleteLine(ctx context.Context, line string) error {
	exists, err := g.LineExists(ctx, line)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: %s", ErrLineNotFound, line)
	}
	if active, err := g.ActiveLine(ctx); err == nil && active == line {
		return fmt.Errorf("%w: %s", ErrActiveLine, line)
	}
	if err := g.repo.Storer.RemoveReference(plumbing.NewBranchReferenceName(line)); err != nil {
		return fmt.Errorf("delete line %s: %w", line, err)
	}
	return nil
}

func (g *Git) SetRemote(ctx context.Context, remote model.Remote) error {
	if err := g.repo.DeleteRemote(remote.Name); err != nil && !errors.Is(err, git.ErrRemoteNotFound) {
		return fmt.Errorf("replace remote %s: %w", remote.Name, err)
	}
	_, err := g.repo.CreateRemote(&config.RemoteConfig{
		Name: remote.Name,
		URLs: []string{remote.URL},
	})
	if err != nil {
		return fmt.Errorf("create remote %s: %w", remote.Name, err)
	}
	return nil
}

func (g *Git) Push(ctx context.Context, remoteName, refspec string) error {
	spec := config.RefSpec(refspec)
	if err := spec.Validate(); err != nil {
		return fmt.Errorf("refspec %s: %w", refspec, err)
	}
	err := g.repo.PushContext(ctx, &git.PushOptions{
		RemoteName: remoteName,
		RefSpecs:   []config.RefSpec{spec},
	})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return fmt.Errorf("push %s to %s: %w", refspec, remoteName, err)
	}
	return nil
}

// RemoteURL returns the first URL of a configured remote.
func (g *Git) RemoteURL(name string) (string, error) {
	r, err := g.repo.Remote(name)
	if err != nil {
		return "", fmt.Errorf("remote %s: %w", name, err)
	}
	urls := r.Config().URLs
	if len(urls) == 0 {
		return "", fmt.Errorf("remote %s has no url", name)
	}
	return urls[0], nil
}

func (g *Git) commit(id model.SnapshotID) (*object.Commit, error) {
	if !isHash(string(id)) {
		return nil, fmt.Errorf("%w: %s", ErrSnapshotNotFound, id)
	}
	c, err := g.repo.CommitObject(plumbing.NewHash(string(id)))
	if errors.Is(err, plumbing.ErrObjectNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrSnapshotNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("read commit %s: %w", id, err)
	}
	return c, nil
}

func (g *Git) file(id model.SnapshotID, relPath string) (*object.File, error) {
	c, err := g.commit(id)
	if err != nil {
		return nil, err
	}
	f, err := c.File(relPath)
	if errors.Is(err, object.ErrFileNotFound) {
		return nil, fmt.Errorf("%w: %s at %s", ErrPathNotInSnapshot, relPath, id.ShortID())
	}
	if err != nil {
		return nil, fmt.Errorf("find %s at %s: %w", relPath, id.ShortID(), err)
	}
	return f, nil
}

func (g *Git) writeBlob(data []byte) (plumbing.Hash, error) {
	obj := g.repo.Storer.NewEncodedObject()
	obj.SetType(plumbing.BlobObject)
	obj.SetSize(int64(len(data)))
	w, err := obj.Writer()
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("write blob: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return plumbing.ZeroHash, fmt.Errorf("write blob: %w", err)
	}
	if err := w.Close(); err != nil {
		return plumbing.ZeroHash, fmt.Errorf("write blob: %w", err)
	}
	hash, err := g.repo.Storer.SetEncodedObject(obj)
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("store blob: %w", err)
	}
	return hash, nil
}

// writeTree builds the chain of single-entry trees leading to one file.
func (g *Git) writeTree(parts []string, leaf plumbing.Hash, leafMode filemode.FileMode) (plumbing.Hash, error) {
	hash, mode := leaf, leafMode
	for i := len(parts) - 1; i >= 0; i-- {
		tree := &object.Tree{Entries: []object.TreeEntry{{Name: parts[i], Mode: mode, Hash: hash}}}
		h, err := g.store(tree)
		if err != nil {
			return plumbing.ZeroHash, fmt.Errorf("write tree: %w", err)
		}
		hash, mode = h, filemode.Dir
	}
	return hash, nil
}

type encoder interface {
	Encode(plumbing.EncodedObject) error
}

func (g *Git) store(o encoder) (plumbing.Hash, error) {
	obj := g.repo.Storer.NewEncodedObject()
	if err := o.Encode(obj); err != nil {
		return plumbing.ZeroHash, err
	}
	return g.repo.Storer.SetEncodedObject(obj)
}

func snapshotOf(c *object.Commit) model.Snapshot {
	return model.Snapshot{
		ID:        model.SnapshotID(c.Hash.String()),
		Label:     strings.TrimSpace(c.Message),
		CreatedAt: c.Committer.When,
		Author:    c.Author.Name,
	}
}

// soleFile returns the path of the single file in c's tree, or "" when the
// tree holds none or more than one.
func soleFile(c *object.Commit) string {
	tree, err := c.Tree()
	if err != nil {
		return ""
	}
	iter := tree.Files()
	defer iter.Close()

	var path string
	for n := 0; ; n++ {
		f, err := iter.Next()
		if errors.Is(err, io.EOF) {
			return path
		}
		if err != nil || n > 0 {
			return ""
		}
		path = f.Name
	}
}

func isHash(s string) bool {
	if len(s) != 40 {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}
