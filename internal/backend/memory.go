package backend

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/savify/savify/pkg/fsutil"
	"github.com/savify/savify/pkg/model"
)

// Memory is an in-process Backend. File content is read from and restored to
// the real working tree under root; commits, lines and remotes live in memory.
type Memory struct {
	mu      sync.Mutex
	root    string
	active  string
	seq     int
	now     func() time.Time
	lines   map[string][]model.SnapshotID // oldest first
	commits map[model.SnapshotID]memCommit
	remotes map[string]string

	// Pushed records every successful refspec push as "remote refspec".
	Pushed []string
	// PushErr, when set, decides per refspec whether a push fails.
	PushErr func(remote, refspec string) error
}

type memCommit struct {
	snap model.Snapshot
	path string
	data []byte
	mode os.FileMode
}

// NewMemory returns an empty Memory backend whose active line is activeLine.
func NewMemory(root, activeLine string) *Memory {
	return &Memory{
		root:    root,
		active:  activeLine,
		now:     time.Now,
		lines:   make(map[string][]model.SnapshotID),
		commits: make(map[model.SnapshotID]memCommit),
		remotes: make(map[string]string),
	}
}

func (m *Memory) ActiveLine(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active, nil
}

func (m *Memory) SwitchActiveLine(ctx context.Context, line string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active = line
	return nil
}

func (m *Memory) CreateLine(ctx context.Context, line string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.lines[line]) > 0 {
		return fmt.Errorf("%w: %s", ErrLineExists, line)
	}
	return nil
}

func (m *Memory) LineExists(ctx context.Context, line string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.lines[line]) > 0, nil
}

func (m *Memory) Lines(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.lines))
	for name, ids := range m.lines {
		if len(ids) > 0 {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (m *Memory) CommitOnActiveLine(ctx context.Context, relPath, message string) (model.Snapshot, error) {
	abs := filepath.Join(m.root, filepath.FromSlash(relPath))
	info, err := os.Stat(abs)
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("stat %s: %w", relPath, err)
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("read %s: %w", relPath, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	snap := model.Snapshot{
		ID:        m.nextID(relPath, data),
		Label:     message,
		CreatedAt: m.now(),
		Author:    DefaultAuthorName,
		Path:      relPath,
	}
	m.commits[snap.ID] = memCommit{snap: snap, path: relPath, data: data, mode: info.Mode().Perm()}
	m.lines[m.active] = append(m.lines[m.active], snap.ID)
	return snap, nil
}

func (m *Memory) nextID(relPath string, data []byte) model.SnapshotID {
	m.seq++
	h := sha1.New()
	h.Write([]byte(strconv.Itoa(m.seq)))
	h.Write([]byte(relPath))
	h.Write(data)
	return model.SnapshotID(hex.EncodeToString(h.Sum(nil)))
}

func (m *Memory) ListCommits(ctx context.Context, line string) ([]model.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := m.lines[line]
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrLineNotFound, line)
	}
	out := make([]model.Snapshot, 0, len(ids))
	for i := len(ids) - 1; i >= 0; i-- {
		out = append(out, m.commits[ids[i]].snap)
	}
	return out, nil
}

func (m *Memory) lookup(id model.SnapshotID, relPath string) (memCommit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.commits[id]
	if !ok {
		return memCommit{}, fmt.Errorf("%w: %s", ErrSnapshotNotFound, id)
	}
	if c.path != relPath {
		return memCommit{}, fmt.Errorf("%w: %s at %s", ErrPathNotInSnapshot, relPath, id.ShortID())
	}
	return c, nil
}

func (m *Memory) ReadPath(ctx context.Context, id model.SnapshotID, relPath string) ([]byte, error) {
	c, err := m.lookup(id, relPath)
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), c.data...), nil
}

func (m *Memory) CheckoutPath(ctx context.Context, id model.SnapshotID, relPath string) error {
	c, err := m.lookup(id, relPath)
	if err != nil {
		return err
	}
	abs := filepath.Join(m.root, filepath.FromSlash(relPath))
	return fsutil.ReplaceFile(abs, c.data, c.mode)
}

func (m *Memory) RebuildLine(ctx context.Context, line string, entries []RebuildEntry) error {
	if len(entries) == 0 {
		return fmt.Errorf("rebuild %s: no commits to keep", line)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]model.SnapshotID, 0, len(entries))
	for _, e := range entries {
		src, ok := m.commits[e.Source]
		if !ok {
			return fmt.Errorf("%w: %s", ErrSnapshotNotFound, e.Source)
		}
		c := src
		c.snap.ID = m.nextID(src.path, src.data)
		c.snap.Label = e.Message
		m.commits[c.snap.ID] = c
		ids = append(ids, c.snap.ID)
	}
	m.lines[line] = ids
	return nil
}

func (m *Memory) DeleteLine(ctx context.Context, line string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.lines[line]) == 0 {
		return fmt.Errorf("%w: %s", ErrLineNotFound, line)
	}
	if line == m.active {
		return fmt.Errorf("%w: %s", ErrActiveLine, line)
	}
	delete(m.lines, line)
	return nil
}

func (m *Memory) SetRemote(ctx context.Context, remote model.Remote) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.remotes[remote.Name] = remote.URL
	return nil
}

// RemoteURL returns the URL stored for name.
func (m *Memory) RemoteURL(name string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.remotes[name]
	return u, ok
}

func (m *Memory) Push(ctx context.Context, remoteName, refspec string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.remotes[remoteName]; !ok {
		return fmt.Errorf("push %s: remote %q not configured", refspec, remoteName)
	}
	if m.PushErr != nil {
		if err := m.PushErr(remoteName, refspec); err != nil {
			return fmt.Errorf("push %s to %s: %w", refspec, remoteName, err)
		}
	}
	m.Pushed = append(m.Pushed, remoteName+" "+refspec)
	return nil
}
