package backend

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/go-git/go-billy/v5/util"
	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/storage/filesystem"
)

// UnreachableObjects lists loose objects that no reference, no reflog entry
// and no staged entry of the repository index points at. Objects written
// after olderThan are skipped; a zero olderThan skips none.
func (g *Git) UnreachableObjects(ctx context.Context, olderThan time.Time) ([]string, error) {
	staged := make(map[plumbing.Hash]bool)
	idx, err := g.repo.Storer.Index()
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read repository index: %w", err)
	}
	if idx != nil {
		for _, e := range idx.Entries {
			staged[e.Hash] = true
		}
	}

	roots, err := g.reflogRoots()
	if err != nil {
		return nil, err
	}
	kept, err := g.closure(ctx, roots)
	if err != nil {
		return nil, err
	}

	var ids []string
	err = g.repo.Prune(git.PruneOptions{
		OnlyObjectsOlderThan: olderThan,
		Handler: func(h plumbing.Hash) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if !staged[h] && !kept[h] {
				ids = append(ids, h.String())
			}
			return nil
		},
	})
	if errors.Is(err, git.ErrLooseObjectsNotSupported) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan objects: %w", err)
	}
	sort.Strings(ids)
	return ids, nil
}

// DeleteObjects removes the given loose objects and returns how many were
// deleted. Objects already gone are skipped.
func (g *Git) DeleteObjects(ctx context.Context, ids []string) (int, error) {
	deleted := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return deleted, err
		}
		if !isHash(id) {
			return deleted, fmt.Errorf("invalid object id %q", id)
		}
		err := g.repo.DeleteObject(plumbing.NewHash(id))
		if errors.Is(err, plumbing.ErrObjectNotFound) || errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return deleted, fmt.Errorf("delete object %s: %w", id, err)
		}
		deleted++
	}
	return deleted, nil
}

// reflogRoots returns every old and new value recorded in the reflogs under
// .git/logs.
func (g *Git) reflogRoots() ([]plumbing.Hash, error) {
	st, ok := g.repo.Storer.(*filesystem.Storage)
	if !ok {
		return nil, nil
	}
	fs := st.Filesystem()
	if _, err := fs.Stat("logs"); errors.Is(err, os.ErrNotExist) {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("stat reflogs: %w", err)
	}

	var roots []plumbing.Hash
	err := util.Walk(fs, "logs", func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		f, err := fs.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()

		sc := bufio.NewScanner(f)
		sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for sc.Scan() {
			fields := strings.Fields(sc.Text())
			for _, v := range fields[:min(2, len(fields))] {
				if !isHash(v) {
					continue
				}
				if h := plumbing.NewHash(v); !h.IsZero() {
					roots = append(roots, h)
				}
			}
		}
		return sc.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("read reflogs: %w", err)
	}
	return roots, nil
}

// closure marks roots and every commit, tree and blob reachable from them.
// Objects already missing from the store are ignored.
func (g *Git) closure(ctx context.Context, roots []plumbing.Hash) (map[plumbing.Hash]bool, error) {
	seen := make(map[plumbing.Hash]bool)
	stack := append([]plumbing.Hash(nil), roots...)
	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		h := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[h] {
			continue
		}
		seen[h] = true

		c, err := g.repo.CommitObject(h)
		if errors.Is(err, plumbing.ErrObjectNotFound) || errors.Is(err, object.ErrUnsupportedObject) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read commit %s: %w", h, err)
		}
		if err := g.markTree(c.TreeHash, seen); err != nil {
			return nil, err
		}
		stack = append(stack, c.ParentHashes...)
	}
	return seen, nil
}

func (g *Git) markTree(h plumbing.Hash, seen map[plumbing.Hash]bool) error {
	if seen[h] {
		return nil
	}
	seen[h] = true
	t, err := g.repo.TreeObject(h)
	if errors.Is(err, plumbing.ErrObjectNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read tree %s: %w", h, err)
	}
	for _, e := range t.Entries {
		switch e.Mode {
		case filemode.Dir:
			if err := g.markTree(e.Hash, seen); err != nil {
				return err
			}
		case filemode.Submodule:
		default:
			seen[e.Hash] = true
		}
	}
	return nil
}
